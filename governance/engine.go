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

package governance

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/blinklabs-io/mergegate/database"
	"github.com/blinklabs-io/mergegate/event"
	"github.com/prometheus/client_golang/prometheus"
)

// EngineConfig wires the decision engine to its storage and surroundings
type EngineConfig struct {
	Database     *database.Database
	EventBus     *event.EventBus
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	// Verifier defaults to Secp256k1Verifier
	Verifier Verifier
	// Now defaults to time.Now
	Now          func() time.Time
	Weights      WeightParams
	ReviewPeriod time.Duration
	// Keyholders restricts emergency signatures to these public keys when
	// not empty
	Keyholders []string
}

// Engine is the governance decision engine. Its components share one
// database, event bus and clock.
type Engine struct {
	config        EngineConfig
	db            *database.Database
	logger        *slog.Logger
	metrics       engineMetrics
	weights       *WeightCalculator
	veto          *VetoEngine
	votes         *VoteAggregator
	emergencies   *EmergencyManager
	contributions *ContributionRecorder
}

func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Database == nil {
		return nil, errors.New("database is required")
	}
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Verifier == nil {
		cfg.Verifier = Secp256k1Verifier{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.ReviewPeriod <= 0 {
		cfg.ReviewPeriod = DefaultReviewPeriod
	}
	cfg.Weights = cfg.Weights.withDefaults()
	e := &Engine{
		config: cfg,
		db:     cfg.Database,
		logger: cfg.Logger.With("component", "governance"),
	}
	e.metrics.init(cfg.PromRegistry)
	validator, err := NewEmergencyValidator(cfg.Verifier, cfg.Keyholders)
	if err != nil {
		return nil, err
	}
	e.weights = &WeightCalculator{e: e, params: cfg.Weights}
	e.veto = &VetoEngine{e: e, reviewPeriod: cfg.ReviewPeriod}
	e.votes = &VoteAggregator{e: e}
	e.emergencies = &EmergencyManager{e: e, validator: validator}
	e.contributions = &ContributionRecorder{e: e}
	return e, nil
}

func (e *Engine) Weights() *WeightCalculator {
	return e.weights
}

func (e *Engine) Veto() *VetoEngine {
	return e.veto
}

func (e *Engine) Votes() *VoteAggregator {
	return e.votes
}

func (e *Engine) Emergencies() *EmergencyManager {
	return e.emergencies
}

func (e *Engine) Contributions() *ContributionRecorder {
	return e.contributions
}

// now returns the engine clock in UTC
func (e *Engine) now() time.Time {
	return e.config.Now().UTC()
}

// publish sends an event if an event bus is configured. It must only be
// called after the transaction producing the event has committed.
func (e *Engine) publish(eventType event.EventType, data any) {
	if e.config.EventBus == nil {
		return
	}
	e.config.EventBus.Publish(eventType, event.NewEvent(eventType, data))
}
