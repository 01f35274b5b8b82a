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

// Package service assembles storage, the event bus and the governance engine
// from configuration and runs them as a long-lived process
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/blinklabs-io/mergegate/database"
	"github.com/blinklabs-io/mergegate/event"
	"github.com/blinklabs-io/mergegate/governance"
	"github.com/blinklabs-io/mergegate/internal/config"
	"github.com/blinklabs-io/mergegate/status"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Service owns the storage, event bus and engine built from a Config
type Service struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *database.Database
	eventBus *event.EventBus
	engine   *governance.Engine
}

// Open builds a Service. A nil registry disables metrics.
func Open(
	cfg *config.Config,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	db, err := database.New(&database.Config{
		DataDir:        cfg.DatabasePath,
		Logger:         logger,
		BlobPlugin:     cfg.BlobPlugin,
		MetadataPlugin: cfg.MetadataPlugin,
		PromRegistry:   promRegistry,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	eventBus := event.NewEventBus(promRegistry, logger)
	engine, err := governance.NewEngine(governance.EngineConfig{
		Database:     db,
		EventBus:     eventBus,
		Logger:       logger,
		PromRegistry: promRegistry,
		Weights:      cfg.WeightParams(),
		ReviewPeriod: cfg.Veto.ReviewPeriod,
		Keyholders:   cfg.Emergency.Keyholders,
	})
	if err != nil {
		eventBus.Stop()
		_ = db.Close()
		return nil, err
	}
	return &Service{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		eventBus: eventBus,
		engine:   engine,
	}, nil
}

func (s *Service) Engine() *governance.Engine {
	return s.engine
}

func (s *Service) EventBus() *event.EventBus {
	return s.eventBus
}

// Close stops the event bus, then closes the database
func (s *Service) Close() error {
	s.eventBus.Stop()
	return s.db.Close()
}

// Run serves until SIGINT or SIGTERM: scheduled jobs, status publishing and
// the metrics endpoint
func Run(cfg *config.Config, logger *slog.Logger) error {
	logger.Debug(fmt.Sprintf("config: %+v", cfg), "component", "service")
	shutdownTimeout, err := time.ParseDuration(cfg.ShutdownTimeout)
	if err != nil {
		return fmt.Errorf("invalid shutdown timeout: %w", err)
	}
	if cfg.Tracing {
		shutdownTracing, err := setupTracing(context.Background(), cfg.TracingStdout)
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := shutdownTracing(ctx); err != nil {
				logger.Error("tracer shutdown error", "error", err)
			}
		}()
	}
	svc, err := Open(cfg, logger, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error("database close error", "error", err)
		}
	}()

	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()

	publisher, err := status.NewPublisher(status.PublisherConfig{
		EventBus: svc.eventBus,
		Logger:   logger,
		DryRun:   cfg.Status.DryRun,
	})
	if err != nil {
		return err
	}
	if err := publisher.Start(signalCtx); err != nil {
		return err
	}
	defer publisher.Stop()

	scheduler, err := NewScheduler(svc.engine, logger, SchedulerConfig{
		WeightUpdateSchedule:   cfg.Weights.UpdateSchedule,
		VetoCheckSchedule:      cfg.Veto.CheckSchedule,
		EmergencyCheckSchedule: cfg.Emergency.CheckSchedule,
	})
	if err != nil {
		return err
	}
	scheduler.Start()

	// Metrics and health listener
	metricsAddr := fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.MetricsPort)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	metricsServer := &http.Server{
		Addr:              metricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	logger.Info(
		"serving prometheus metrics on "+metricsAddr,
		"component", "service",
	)
	errChan := make(chan error, 1)
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("metrics listener: %w", err)
		}
	}()

	var runErr error
	select {
	case <-signalCtx.Done():
		logger.Info("signal received, initiating graceful shutdown")
	case runErr = <-errChan:
		logger.Error("service error", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		shutdownTimeout,
	)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", "error", err)
	}
	select {
	case <-scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn("timed out waiting for scheduled jobs")
	}
	logger.Info("shutdown complete")
	return runErr
}
