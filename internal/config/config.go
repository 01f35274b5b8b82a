// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"time"

	"github.com/blinklabs-io/mergegate/database/plugin"
	"github.com/blinklabs-io/mergegate/governance"
	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "mergegate.config"

const (
	DefaultShutdownTimeout = "30s"
	DefaultBlobPlugin      = "badger"
	DefaultMetadataPlugin  = "sqlite"

	envPrefix = "mergegate"
)

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

// ErrPluginListRequested is returned when the user requests to list available plugins
// This is not an error condition but a successful operation that displays plugin information
var ErrPluginListRequested = errors.New("plugin list requested")

type tempConfig struct {
	Config   *yaml.Node                `yaml:"config,omitempty"`
	Database *databaseConfig           `yaml:"database,omitempty"`
	Blob     map[string]map[string]any `yaml:"blob,omitempty"`
	Metadata map[string]map[string]any `yaml:"metadata,omitempty"`
}

type databaseConfig struct {
	Blob     map[string]any `yaml:"blob,omitempty"`
	Metadata map[string]any `yaml:"metadata,omitempty"`
}

type Config struct {
	DatabasePath    string          `yaml:"databasePath"    split_words:"true"`
	MetadataPlugin  string          `yaml:"metadataPlugin"  envconfig:"MERGEGATE_DATABASE_METADATA_PLUGIN"`
	BlobPlugin      string          `yaml:"blobPlugin"      envconfig:"MERGEGATE_DATABASE_BLOB_PLUGIN"`
	BindAddr        string          `yaml:"bindAddr"        split_words:"true"`
	ShutdownTimeout string          `yaml:"shutdownTimeout" split_words:"true"`
	MetricsPort     uint            `yaml:"metricsPort"     split_words:"true"`
	Tracing         bool            `yaml:"tracing"`
	TracingStdout   bool            `yaml:"tracingStdout"   split_words:"true"`
	Weights         WeightsConfig   `yaml:"weights"`
	Veto            VetoConfig      `yaml:"veto"`
	Emergency       EmergencyConfig `yaml:"emergency"`
	Status          StatusConfig    `yaml:"status"`
}

type WeightsConfig struct {
	CapPercentage          float64 `yaml:"capPercentage"          split_words:"true"`
	CoolingOffThresholdBtc float64 `yaml:"coolingOffThresholdBtc" split_words:"true"`
	CoolingOffPeriodDays   int     `yaml:"coolingOffPeriodDays"   split_words:"true"`
	RollingWindowDays      int     `yaml:"rollingWindowDays"      split_words:"true"`
	// Cron spec for the periodic weight batch
	UpdateSchedule string `yaml:"updateSchedule" split_words:"true"`
}

type VetoConfig struct {
	ReviewPeriod  time.Duration `yaml:"reviewPeriod"  split_words:"true"`
	CheckSchedule string        `yaml:"checkSchedule" split_words:"true"`
}

type EmergencyConfig struct {
	// Hex encoded secp256k1 public keys allowed to sign emergency actions.
	// Empty means any valid signature counts.
	Keyholders    []string `yaml:"keyholders"`
	CheckSchedule string   `yaml:"checkSchedule" split_words:"true"`
}

type StatusConfig struct {
	DryRun bool `yaml:"dryRun" split_words:"true"`
}

// WeightParams converts the weights section for the governance engine
func (c *Config) WeightParams() governance.WeightParams {
	return governance.WeightParams{
		CapPercentage:          c.Weights.CapPercentage,
		CoolingOffThresholdBtc: c.Weights.CoolingOffThresholdBtc,
		CoolingOffPeriodDays:   c.Weights.CoolingOffPeriodDays,
		RollingWindowDays:      c.Weights.RollingWindowDays,
	}
}

// Validate rejects values outside their domain
func (c *Config) Validate() error {
	var errs []error
	if c.Weights.CapPercentage <= 0 || c.Weights.CapPercentage > 1 {
		errs = append(errs, fmt.Errorf(
			"weights.capPercentage must be in (0, 1], got %v",
			c.Weights.CapPercentage,
		))
	}
	if c.Weights.CoolingOffThresholdBtc < 0 {
		errs = append(errs, errors.New("weights.coolingOffThresholdBtc must not be negative"))
	}
	if c.Weights.CoolingOffPeriodDays < 0 {
		errs = append(errs, errors.New("weights.coolingOffPeriodDays must not be negative"))
	}
	if c.Weights.RollingWindowDays <= 0 {
		errs = append(errs, errors.New("weights.rollingWindowDays must be positive"))
	}
	if c.Veto.ReviewPeriod <= 0 {
		errs = append(errs, errors.New("veto.reviewPeriod must be positive"))
	}
	schedules := map[string]string{
		"weights.updateSchedule":  c.Weights.UpdateSchedule,
		"veto.checkSchedule":      c.Veto.CheckSchedule,
		"emergency.checkSchedule": c.Emergency.CheckSchedule,
	}
	for _, name := range []string{
		"weights.updateSchedule",
		"veto.checkSchedule",
		"emergency.checkSchedule",
	} {
		if _, err := cron.ParseStandard(schedules[name]); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", name, err))
		}
	}
	for _, key := range c.Emergency.Keyholders {
		if _, err := governance.NormalizePublicKeyHex(key); err != nil {
			errs = append(errs, fmt.Errorf("invalid emergency keyholder %q: %w", key, err))
		}
	}
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		errs = append(errs, fmt.Errorf("invalid shutdownTimeout: %w", err))
	}
	if c.MetricsPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid metricsPort: %d", c.MetricsPort))
	}
	return errors.Join(errs...)
}

// ListPlugins prints the available plugins when either plugin name is
// "list" and returns ErrPluginListRequested
func (c *Config) ListPlugins() error {
	if c.BlobPlugin == "list" {
		fmt.Println("Available blob plugins:")
		for _, p := range plugin.GetPlugins(plugin.PluginTypeBlob) {
			fmt.Printf("  %s: %s\n", p.Name, p.Description)
		}
		return ErrPluginListRequested
	}
	if c.MetadataPlugin == "list" {
		fmt.Println("Available metadata plugins:")
		for _, p := range plugin.GetPlugins(plugin.PluginTypeMetadata) {
			fmt.Printf("  %s: %s\n", p.Name, p.Description)
		}
		return ErrPluginListRequested
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		DatabasePath:    ".mergegate",
		MetadataPlugin:  DefaultMetadataPlugin,
		BlobPlugin:      DefaultBlobPlugin,
		BindAddr:        "0.0.0.0",
		ShutdownTimeout: DefaultShutdownTimeout,
		MetricsPort:     12799,
		Weights: WeightsConfig{
			CapPercentage:          governance.DefaultCapPercentage,
			CoolingOffThresholdBtc: governance.DefaultCoolingOffThresholdBtc,
			CoolingOffPeriodDays:   governance.DefaultCoolingOffPeriodDays,
			RollingWindowDays:      governance.DefaultRollingWindowDays,
			UpdateSchedule:         "0 * * * *",
		},
		Veto: VetoConfig{
			ReviewPeriod:  governance.DefaultReviewPeriod,
			CheckSchedule: "*/15 * * * *",
		},
		Emergency: EmergencyConfig{
			CheckSchedule: "*/5 * * * *",
		},
	}
}

var globalConfig = defaultConfig()

func LoadConfig(configFile string) (*Config, error) {
	if configFile == "" {
		// Check for config file in this path: ~/.mergegate/mergegate.yaml
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".mergegate", "mergegate.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}
		if configFile == "" {
			systemPath := "/etc/mergegate/mergegate.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}

	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := loadConfigBytes(buf); err != nil {
			return nil, err
		}
	}

	// Process environment variables
	err := envconfig.Process(envPrefix, globalConfig)
	if err != nil {
		return nil, fmt.Errorf("error processing environment: %+w", err)
	}
	err = plugin.ProcessEnvVars()
	if err != nil {
		return nil, fmt.Errorf(
			"error processing plugin environment variables: %w",
			err,
		)
	}
	if err := globalConfig.Validate(); err != nil {
		return nil, err
	}
	return globalConfig, nil
}

func loadConfigBytes(buf []byte) error {
	// First unmarshal into temp config to handle plugin sections
	var tempCfg tempConfig
	if err := yaml.Unmarshal(buf, &tempCfg); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}
	if tempCfg.Config != nil {
		// Overlay config values onto existing defaults
		if err := tempCfg.Config.Decode(globalConfig); err != nil {
			return fmt.Errorf("error parsing config section: %w", err)
		}
	} else if err := yaml.Unmarshal(buf, globalConfig); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}

	pluginConfig := make(map[string]map[string]map[string]any)
	if tempCfg.Blob != nil {
		pluginConfig["blob"] = tempCfg.Blob
	}
	if tempCfg.Metadata != nil {
		pluginConfig["metadata"] = tempCfg.Metadata
	}
	if tempCfg.Database != nil {
		if tempCfg.Database.Blob != nil {
			name, section := splitPluginSection("blob", tempCfg.Database.Blob)
			if name != "" {
				globalConfig.BlobPlugin = name
			}
			mergePluginSection(pluginConfig, "blob", section)
		}
		if tempCfg.Database.Metadata != nil {
			name, section := splitPluginSection("metadata", tempCfg.Database.Metadata)
			if name != "" {
				globalConfig.MetadataPlugin = name
			}
			mergePluginSection(pluginConfig, "metadata", section)
		}
	}
	if len(pluginConfig) > 0 {
		if err := plugin.ProcessConfig(pluginConfig); err != nil {
			return fmt.Errorf("error processing plugin config: %w", err)
		}
	}
	return nil
}

// splitPluginSection pulls the plugin name out of a database.<type> section
// and returns the per-plugin option maps
func splitPluginSection(
	typeName string,
	section map[string]any,
) (string, map[string]map[string]any) {
	var name string
	if pluginVal, exists := section["plugin"]; exists {
		if pluginName, ok := pluginVal.(string); ok {
			name = pluginName
		}
	}
	ret := make(map[string]map[string]any)
	for k, v := range section {
		if k == "plugin" {
			continue
		}
		switch val := v.(type) {
		case map[string]any:
			ret[k] = val
		case map[any]any:
			stringAnyMap := make(map[string]any)
			for vk, vv := range val {
				if keyStr, ok := vk.(string); ok {
					stringAnyMap[keyStr] = vv
				}
			}
			ret[k] = stringAnyMap
		default:
			fmt.Fprintf(
				os.Stderr,
				"warning: skipping %s config entry %q: expected map, got %T\n",
				typeName,
				k,
				v,
			)
		}
	}
	return name, ret
}

func mergePluginSection(
	pluginConfig map[string]map[string]map[string]any,
	typeName string,
	section map[string]map[string]any,
) {
	if len(section) == 0 {
		return
	}
	if pluginConfig[typeName] == nil {
		pluginConfig[typeName] = section
		return
	}
	maps.Copy(pluginConfig[typeName], section)
}

func GetConfig() *Config {
	return globalConfig
}
