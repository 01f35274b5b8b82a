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
	"testing"
	"time"

	"github.com/blinklabs-io/mergegate/database/models"
	"github.com/blinklabs-io/mergegate/governance"
	"github.com/blinklabs-io/mergegate/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		MetadataPlugin:  config.DefaultMetadataPlugin,
		BlobPlugin:      config.DefaultBlobPlugin,
		ShutdownTimeout: config.DefaultShutdownTimeout,
		Weights: config.WeightsConfig{
			CapPercentage:          governance.DefaultCapPercentage,
			CoolingOffThresholdBtc: governance.DefaultCoolingOffThresholdBtc,
			CoolingOffPeriodDays:   governance.DefaultCoolingOffPeriodDays,
			RollingWindowDays:      governance.DefaultRollingWindowDays,
			UpdateSchedule:         "0 * * * *",
		},
		Veto: config.VetoConfig{
			ReviewPeriod:  governance.DefaultReviewPeriod,
			CheckSchedule: "*/15 * * * *",
		},
		Emergency: config.EmergencyConfig{
			CheckSchedule: "@every 5m",
		},
	}
}

func openTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := Open(testConfig(), nil, prometheus.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = svc.Close()
	})
	return svc
}

func TestOpenDecidesMerge(t *testing.T) {
	svc := openTestService(t)
	require.NotNil(t, svc.EventBus())
	decision, err := svc.Engine().DecideMerge(governance.MergeInput{
		ProposalID:      12,
		Tier:            2,
		ReviewPeriodMet: true,
		SignaturesMet:   false,
	})
	require.NoError(t, err)
	assert.True(t, decision.ShouldBlock)
	decisions, err := svc.db.GetMergeDecisions(12, nil)
	require.NoError(t, err)
	assert.Len(t, decisions, 1)
}

func TestOpenRejectsBadKeyholder(t *testing.T) {
	cfg := testConfig()
	cfg.Emergency.Keyholders = []string{"not-a-key"}
	_, err := Open(cfg, nil, nil)
	assert.ErrorIs(t, err, governance.ErrInvalidSignature)
}

func TestSchedulerJobs(t *testing.T) {
	svc := openTestService(t)
	cfg := testConfig()
	scheduler, err := NewScheduler(svc.Engine(), nil, SchedulerConfig{
		WeightUpdateSchedule:   cfg.Weights.UpdateSchedule,
		VetoCheckSchedule:      cfg.Veto.CheckSchedule,
		EmergencyCheckSchedule: cfg.Emergency.CheckSchedule,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, scheduler.Entries())

	require.NoError(t, svc.Engine().Contributions().RecordMergeMiningContribution(
		"alice",
		models.ContributorTypeMiningPool,
		4,
		time.Now().UTC().Add(-time.Hour),
	))
	require.NoError(t, scheduler.updateWeights())
	weight, err := svc.db.GetParticipationWeight("alice", nil)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, weight.BaseWeight, 1e-9)
	// A lone contributor is not capped
	assert.InDelta(t, 2.0, weight.CappedWeight, 1e-9)

	require.NoError(t, scheduler.expireReviewPeriods())
	require.NoError(t, scheduler.expireEmergencies())

	scheduler.Start()
	select {
	case <-scheduler.Stop().Done():
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestSchedulerSkipsEmptySpecs(t *testing.T) {
	svc := openTestService(t)
	scheduler, err := NewScheduler(svc.Engine(), nil, SchedulerConfig{
		WeightUpdateSchedule: "@hourly",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, scheduler.Entries())
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	svc := openTestService(t)
	_, err := NewScheduler(svc.Engine(), nil, SchedulerConfig{
		VetoCheckSchedule: "whenever",
	})
	assert.ErrorContains(t, err, "veto.expire_review_periods")
	_, err = NewScheduler(nil, nil, SchedulerConfig{})
	assert.Error(t, err)
}

func TestTracedJobWithStdoutTracing(t *testing.T) {
	shutdown, err := setupTracing(context.Background(), true)
	require.NoError(t, err)
	svc := openTestService(t)
	scheduler, err := NewScheduler(svc.Engine(), nil, SchedulerConfig{})
	require.NoError(t, err)
	assert.Equal(t, 0, scheduler.Entries())
	ran := 0
	job := scheduler.traced("test.failing", func() error {
		ran++
		return errors.New("boom")
	})
	assert.NotPanics(t, job)
	assert.Equal(t, 1, ran)
	require.NoError(t, shutdown(context.Background()))
}
