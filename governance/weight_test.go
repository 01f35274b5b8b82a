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
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/blinklabs-io/mergegate/database/models"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const day = 24 * time.Hour

func TestCalculateParticipationWeight(t *testing.T) {
	testDefs := []struct {
		mergeMining   float64
		feeForwarding float64
		zaps          float64
		expected      float64
	}{
		{mergeMining: 4, expected: 2},
		{feeForwarding: 9, expected: 3},
		{zaps: 1, expected: 1},
		{mergeMining: 2, feeForwarding: 1, zaps: 1, expected: 2},
		{expected: 0},
		{mergeMining: -1, expected: 0},
	}
	for _, testDef := range testDefs {
		assert.InDelta(
			t,
			testDef.expected,
			CalculateParticipationWeight(
				testDef.mergeMining,
				testDef.feeForwarding,
				testDef.zaps,
			),
			1e-12,
		)
	}
}

func TestCheckCoolingOff(t *testing.T) {
	assert.False(t, CheckCoolingOff(0.1, 29))
	assert.True(t, CheckCoolingOff(0.1, 30))
	assert.True(t, CheckCoolingOff(0.09, 0))
	assert.True(t, CheckCoolingOff(5, 31))
	assert.False(t, CheckCoolingOff(5, 0))
}

func TestCheckCoolingOffConfigured(t *testing.T) {
	e := newTestEngine(t, func(cfg *EngineConfig) {
		cfg.Weights = WeightParams{
			CoolingOffThresholdBtc: 1,
			CoolingOffPeriodDays:   7,
		}
	})
	assert.True(t, e.Weights().CheckCoolingOff(0.5, 0))
	assert.False(t, e.Weights().CheckCoolingOff(1, 6))
	assert.True(t, e.Weights().CheckCoolingOff(1, 7))
}

func TestComputeCappedWeightsCapInvariant(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("capped weight never exceeds base or cap share", prop.ForAll(
		func(bases []float64) bool {
			capped, uncapped, cappedTotal := ComputeCappedWeights(bases, DefaultCapPercentage)
			if len(capped) != len(bases) {
				return false
			}
			if cappedTotal > uncapped+1e-9 {
				return false
			}
			for i, w := range capped {
				if w > bases[i] {
					return false
				}
				if len(bases) == 1 {
					if w != bases[0] {
						return false
					}
					continue
				}
				if w > uncapped*DefaultCapPercentage+1e-9 {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Float64Range(0, 1000)),
	))

	properties.TestingRun(t)
}

func TestComputeCappedWeightsSinglePass(t *testing.T) {
	capped, uncapped, total := ComputeCappedWeights([]float64{10, 1, 1}, 0.05)
	assert.InDelta(t, 12, uncapped, 1e-12)
	// Every contributor is limited by the uncapped total, computed once
	for _, w := range capped {
		assert.InDelta(t, 0.6, w, 1e-12)
	}
	assert.InDelta(t, 1.8, total, 1e-12)

	capped, _, _ = ComputeCappedWeights([]float64{25}, 0.05)
	assert.Equal(t, []float64{25}, capped)
}

func TestApplyWeightCap(t *testing.T) {
	e := newTestEngine(t)
	w := e.Weights()
	assert.InDelta(t, 2.0, w.ApplyWeightCap(2, 0), 1e-12)
	assert.InDelta(t, 2.0, w.ApplyWeightCap(2, 100), 1e-12)
	assert.InDelta(t, 1.0, w.ApplyWeightCap(2, 20), 1e-12)
}

func TestGetProposalVoteWeight(t *testing.T) {
	e := newTestEngine(t)
	w := e.Weights()
	testDefs := []struct {
		name          string
		participation float64
		zap           float64
		total         float64
		ageDays       int
		expected      float64
	}{
		{name: "no zap", participation: 2, expected: 2},
		{name: "no zap capped", participation: 2, total: 20, expected: 1},
		{name: "small zap", participation: 1, zap: 0.04, expected: 0.2},
		{name: "floor of standing weight", participation: 5, zap: 0.04, expected: 0.5},
		{name: "cooling off", participation: 3, zap: 1, ageDays: 10, expected: 3},
		{name: "eligible zap", participation: 3, zap: 1, ageDays: 30, expected: 1},
		{name: "eligible zap capped", participation: 3, zap: 4, ageDays: 30, total: 20, expected: 1},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			assert.InDelta(
				t,
				testDef.expected,
				w.GetProposalVoteWeight(
					testDef.participation,
					testDef.zap,
					testDef.total,
					testDef.ageDays,
				),
				1e-12,
			)
		})
	}
}

func TestUpdateParticipationWeightsCapInvariant(t *testing.T) {
	e := newTestEngine(t)
	rec := e.Contributions()
	for i := range 40 {
		require.NoError(t, rec.RecordMergeMiningContribution(
			fmt.Sprintf("pool-%02d", i),
			models.ContributorTypeMiningPool,
			1,
			e.clock.Now().Add(-day),
		))
	}
	// Inactive contributors keep a zeroed row
	require.NoError(t, rec.RecordFeeForwardingContribution(
		"retired",
		models.ContributorTypeNodeOperator,
		50,
		e.clock.Now().Add(-day),
	))
	require.NoError(t, rec.DeactivateContributor("retired"))

	result, err := e.Weights().UpdateParticipationWeights()
	require.NoError(t, err)
	assert.Equal(t, 40, result.Contributors)
	assert.InDelta(t, 40, result.UncappedTotalWeight, 1e-9)
	assert.InDelta(t, 40, result.TotalSystemWeight, 1e-9)

	weights, err := e.db.GetParticipationWeights(nil)
	require.NoError(t, err)
	require.Len(t, weights, 41)
	var cappedSum float64
	for _, w := range weights {
		cappedSum += w.CappedWeight
	}
	for _, w := range weights {
		assert.LessOrEqual(t, w.CappedWeight, w.BaseWeight)
		assert.LessOrEqual(t, w.CappedWeight, DefaultCapPercentage*cappedSum+1e-9)
		assert.InDelta(t, cappedSum, w.TotalSystemWeight, 1e-9)
	}
	retired, err := e.db.GetParticipationWeight("retired", nil)
	require.NoError(t, err)
	assert.Zero(t, retired.CappedWeight)
	assert.Zero(t, retired.BaseWeight)
}

func TestUpdateParticipationWeightsDominantContributor(t *testing.T) {
	e := newTestEngine(t)
	rec := e.Contributions()
	now := e.clock.Now()
	require.NoError(t, rec.RecordMergeMiningContribution("whale", models.ContributorTypeMiningPool, 100, now))
	require.NoError(t, rec.RecordMergeMiningContribution("alice", models.ContributorTypeIndividual, 1, now))
	require.NoError(t, rec.RecordMergeMiningContribution("bob", models.ContributorTypeIndividual, 1, now))

	result, err := e.Weights().UpdateParticipationWeights()
	require.NoError(t, err)
	assert.InDelta(t, 12, result.UncappedTotalWeight, 1e-9)
	whale, err := e.db.GetParticipationWeight("whale", nil)
	require.NoError(t, err)
	assert.InDelta(t, 10, whale.BaseWeight, 1e-9)
	assert.InDelta(t, 0.6, whale.CappedWeight, 1e-9)
	assert.InDelta(t, 12, whale.UncappedTotalWeight, 1e-9)

	// Single-pass capping bounds each weight by the uncapped total only.
	// Everyone ends at 0.6, a third of the capped total, well above 5%.
	weights, err := e.db.GetParticipationWeights(nil)
	require.NoError(t, err)
	require.Len(t, weights, 3)
	var cappedSum float64
	for _, w := range weights {
		assert.InDelta(t, 0.6, w.CappedWeight, 1e-9)
		assert.LessOrEqual(t, w.CappedWeight, DefaultCapPercentage*w.UncappedTotalWeight+1e-9)
		cappedSum += w.CappedWeight
	}
	assert.InDelta(t, 1.8, cappedSum, 1e-9)
	assert.InDelta(t, 1.0/3.0, whale.CappedWeight/cappedSum, 1e-9)
	assert.Greater(t, whale.CappedWeight, DefaultCapPercentage*cappedSum)
}

func TestUpdateParticipationWeightsSingleContributor(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Contributions().RecordFeeForwardingContribution(
		"solo",
		models.ContributorTypeIndividual,
		16,
		e.clock.Now(),
	))
	_, err := e.Weights().UpdateParticipationWeights()
	require.NoError(t, err)
	w, err := e.db.GetParticipationWeight("solo", nil)
	require.NoError(t, err)
	assert.InDelta(t, 4, w.BaseWeight, 1e-9)
	assert.InDelta(t, 4, w.CappedWeight, 1e-9)
}

func TestUpdateParticipationWeightsWindowAndCoolingOff(t *testing.T) {
	e := newTestEngine(t)
	rec := e.Contributions()
	now := e.clock.Now()
	// Outside the rolling window
	require.NoError(t, rec.RecordMergeMiningContribution("alice", models.ContributorTypeIndividual, 4, now.Add(-40*day)))
	require.NoError(t, rec.RecordFeeForwardingContribution("alice", models.ContributorTypeIndividual, 1, now.Add(-5*day)))
	// Still cooling off
	require.NoError(t, rec.RecordZapContribution("alice", 0.5, nil, now.Add(-10*day)))
	// Below the cooling-off threshold
	require.NoError(t, rec.RecordZapContribution("alice", 0.05, nil, now.Add(-day)))
	// Old zaps count regardless of the window
	proposal := uint64(7)
	require.NoError(t, rec.RecordZapContribution("alice", 1, &proposal, now.Add(-45*day)))

	_, err := e.Weights().UpdateParticipationWeights()
	require.NoError(t, err)
	w, err := e.db.GetParticipationWeight("alice", nil)
	require.NoError(t, err)
	assert.InDelta(t, 0, w.MergeMiningBtc, 1e-12)
	assert.InDelta(t, 1, w.FeeForwardingBtc, 1e-12)
	assert.InDelta(t, 1.05, w.CumulativeZapsBtc, 1e-12)
	assert.InDelta(t, math.Sqrt(2.05), w.BaseWeight, 1e-12)

	// Twenty days on, the 0.5 zap is past cooling-off and the fee
	// forwarding is still in the window
	e.clock.Advance(20 * day)
	_, err = e.Weights().UpdateParticipationWeights()
	require.NoError(t, err)
	w, err = e.db.GetParticipationWeight("alice", nil)
	require.NoError(t, err)
	assert.InDelta(t, 1.55, w.CumulativeZapsBtc, 1e-12)

	contributions, err := e.db.GetContributions(nil)
	require.NoError(t, err)
	for _, c := range contributions {
		assert.Equal(t, ageInDays(c.Timestamp, e.clock.Now()), c.AgeDays)
	}
}

func TestRecordContributionValidation(t *testing.T) {
	e := newTestEngine(t)
	rec := e.Contributions()
	err := rec.RecordMergeMiningContribution("", models.ContributorTypeIndividual, 1, e.clock.Now())
	assert.ErrorIs(t, err, ErrInvalidContribution)
	err = rec.RecordZapContribution("alice", 0, nil, e.clock.Now())
	assert.ErrorIs(t, err, ErrInvalidContribution)
	err = rec.RecordMergeMiningContribution("alice", models.ContributorTypeIndividual, math.NaN(), e.clock.Now())
	assert.ErrorIs(t, err, ErrInvalidContribution)
	err = rec.RecordFeeForwardingContribution("alice", models.ContributorTypeIndividual, math.Inf(1), e.clock.Now())
	assert.ErrorIs(t, err, ErrInvalidContribution)
	err = rec.DeactivateContributor("nobody")
	assert.ErrorIs(t, err, models.ErrContributorNotFound)
}
