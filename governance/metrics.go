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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type engineMetrics struct {
	weightUpdateDuration prometheus.Histogram
	totalSystemWeight    prometheus.Gauge
	contributors         prometheus.Gauge
	vetoSignals          *prometheus.CounterVec
	vetoStateChanges     *prometheus.CounterVec
	emergencies          *prometheus.CounterVec
	mergeDecisions       *prometheus.CounterVec
}

// init creates the metrics. With a nil registry they are created but not
// exported.
func (m *engineMetrics) init(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	m.weightUpdateDuration = promautoFactory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mergegate_weight_update_duration_seconds",
			Help:    "duration of participation weight update runs",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		},
	)
	m.totalSystemWeight = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "mergegate_total_system_weight",
		Help: "sum of capped participation weights from the last update",
	})
	m.contributors = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "mergegate_weighted_contributors",
		Help: "active contributors in the last weight update",
	})
	m.vetoSignals = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mergegate_veto_signals_total",
			Help: "economic node signals collected by type",
		},
		[]string{"signal_type"},
	)
	m.vetoStateChanges = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mergegate_veto_state_changes_total",
			Help: "veto state transitions by resolution path",
		},
		[]string{"resolution_path"},
	)
	m.emergencies = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mergegate_emergency_actions_total",
			Help: "emergency activations, extensions and expirations",
		},
		[]string{"action", "tier"},
	)
	m.mergeDecisions = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mergegate_merge_decisions_total",
			Help: "merge evaluations by outcome",
		},
		[]string{"outcome"},
	)
}
