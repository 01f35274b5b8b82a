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

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/blinklabs-io/mergegate/governance"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "github.com/blinklabs-io/mergegate/internal/service"

// SchedulerConfig holds cron specs for the periodic governance jobs
type SchedulerConfig struct {
	WeightUpdateSchedule   string
	VetoCheckSchedule      string
	EmergencyCheckSchedule string
}

// Scheduler runs the weight batch, the review-period sweep and the
// emergency expiry sweep on their schedules
type Scheduler struct {
	cron   *cron.Cron
	engine *governance.Engine
	logger *slog.Logger
}

func NewScheduler(
	engine *governance.Engine,
	logger *slog.Logger,
	cfg SchedulerConfig,
) (*Scheduler, error) {
	if engine == nil {
		return nil, errors.New("scheduler requires a governance engine")
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	cronLog := cronLogger{logger: logger}
	s := &Scheduler{
		engine: engine,
		logger: logger,
		cron: cron.New(
			cron.WithLogger(cronLog),
			cron.WithChain(
				cron.Recover(cronLog),
				cron.SkipIfStillRunning(cronLog),
			),
		),
	}
	jobs := []struct {
		name string
		spec string
		fn   func() error
	}{
		{"weights.update", cfg.WeightUpdateSchedule, s.updateWeights},
		{"veto.expire_review_periods", cfg.VetoCheckSchedule, s.expireReviewPeriods},
		{"emergency.expire", cfg.EmergencyCheckSchedule, s.expireEmergencies},
	}
	for _, job := range jobs {
		if job.spec == "" {
			continue
		}
		if _, err := s.cron.AddFunc(job.spec, s.traced(job.name, job.fn)); err != nil {
			return nil, fmt.Errorf("schedule %s: %w", job.name, err)
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and returns a context that is done once running
// jobs have finished
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Entries returns the number of scheduled jobs
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) traced(name string, fn func() error) func() {
	return func() {
		_, span := otel.Tracer(tracerName).Start(context.Background(), name)
		defer span.End()
		if err := fn(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.logger.Error(
				"scheduled job failed",
				"component", "scheduler",
				"job", name,
				"error", err,
			)
			return
		}
		span.SetAttributes(attribute.String("job", name))
	}
}

func (s *Scheduler) updateWeights() error {
	_, err := s.engine.Weights().UpdateParticipationWeights()
	return err
}

func (s *Scheduler) expireReviewPeriods() error {
	resolved, err := s.engine.Veto().ExpireReviewPeriods()
	if err != nil {
		return err
	}
	if resolved > 0 {
		s.logger.Info(
			fmt.Sprintf("resolved %d vetoes after review period", resolved),
			"component", "scheduler",
		)
	}
	return nil
}

func (s *Scheduler) expireEmergencies() error {
	closed, err := s.engine.Emergencies().MarkExpiredEmergencies()
	if err != nil {
		return err
	}
	if closed > 0 {
		s.logger.Info(
			fmt.Sprintf("closed %d expired emergencies", closed),
			"component", "scheduler",
		)
	}
	return nil
}

// cronLogger adapts slog to cron.Logger
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(
		msg,
		append([]any{"component", "scheduler"}, keysAndValues...)...,
	)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(
		msg,
		append([]any{"component", "scheduler", "error", err}, keysAndValues...)...,
	)
}
