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

package plugin

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// EnvPrefix is prepended to plugin option environment variables
const EnvPrefix = "MERGEGATE"

// ProcessConfig applies plugin options from a config file. The map is keyed
// by plugin type name, then plugin name, then option name.
func ProcessConfig(pluginConfig map[string]map[string]map[string]any) error {
	for typeName, plugins := range pluginConfig {
		pluginType := pluginTypeByName(typeName)
		if pluginType == PluginTypeNone {
			return fmt.Errorf("unknown plugin type: %s", typeName)
		}
		for pluginName, options := range plugins {
			for optName, value := range options {
				if err := SetPluginOption(pluginType, pluginName, optName, value); err != nil {
					return fmt.Errorf(
						"%s plugin %s: %w",
						typeName,
						pluginName,
						err,
					)
				}
			}
		}
	}
	return nil
}

// ProcessEnvVars applies plugin options from environment variables named
// MERGEGATE_<TYPE>_<PLUGIN>_<OPTION>, with dashes mapped to underscores
func ProcessEnvVars() error {
	pluginsMutex.RLock()
	defer pluginsMutex.RUnlock()
	for _, entry := range pluginEntries {
		for _, opt := range entry.Options {
			envName := strings.ToUpper(strings.ReplaceAll(
				strings.Join(
					[]string{
						EnvPrefix,
						PluginTypeName(entry.Type),
						entry.Name,
						opt.Name,
					},
					"_",
				),
				"-",
				"_",
			))
			raw, ok := os.LookupEnv(envName)
			if !ok {
				continue
			}
			value, err := parseOptionValue(opt.Type, raw)
			if err != nil {
				return fmt.Errorf("%s: %w", envName, err)
			}
			if err := assignOption(opt, value); err != nil {
				return fmt.Errorf("%s: %w", envName, err)
			}
		}
	}
	return nil
}

func pluginTypeByName(name string) PluginType {
	switch name {
	case "metadata":
		return PluginTypeMetadata
	case "blob":
		return PluginTypeBlob
	default:
		return PluginTypeNone
	}
}

func parseOptionValue(optType PluginOptionType, raw string) (any, error) {
	switch optType {
	case PluginOptionTypeString:
		return raw, nil
	case PluginOptionTypeBool:
		return strconv.ParseBool(raw)
	case PluginOptionTypeInt:
		return strconv.Atoi(raw)
	case PluginOptionTypeUint:
		return strconv.ParseUint(raw, 10, 64)
	default:
		return nil, fmt.Errorf("unknown plugin option type %d", optType)
	}
}
