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

package database

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type databaseMetrics struct {
	commits        *prometheus.CounterVec
	commitDuration prometheus.Histogram
}

// metricsRegisterer is implemented by stores that expose their own metrics
type metricsRegisterer interface {
	RegisterMetrics(prometheus.Registerer) error
}

func (d *Database) registerMetrics(reg prometheus.Registerer) error {
	m := &databaseMetrics{
		commits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mergegate_database_commits_total",
				Help: "read-write transaction commits by result",
			},
			[]string{"result"},
		),
		commitDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mergegate_database_commit_duration_seconds",
				Help:    "time spent committing read-write transactions",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
		),
	}
	for _, c := range []prometheus.Collector{m.commits, m.commitDuration} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	if r, ok := d.blob.(metricsRegisterer); ok {
		if err := r.RegisterMetrics(reg); err != nil {
			return err
		}
	}
	d.metrics = m
	return nil
}

func (d *Database) observeCommit(start time.Time, err error) {
	if d.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	d.metrics.commits.WithLabelValues(result).Inc()
	d.metrics.commitDuration.Observe(time.Since(start).Seconds())
}
