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
	"encoding/json"
	"testing"
	"time"

	"github.com/blinklabs-io/mergegate/database/models"
	"github.com/blinklabs-io/mergegate/event"
	"github.com/blinklabs-io/mergegate/internal/test/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldBlockMergeScenarios(t *testing.T) {
	assert.False(t, ShouldBlockMerge(true, true, false, 2, false))
	assert.True(t, ShouldBlockMerge(true, true, true, 3, false))
	assert.False(t, ShouldBlockMerge(true, true, true, 2, false))
	assert.False(t, ShouldBlockMerge(false, true, false, 4, true))

	assert.True(t, ShouldBlockMerge(false, true, false, 1, false))
	assert.True(t, ShouldBlockMerge(true, false, false, 1, false))
	assert.True(t, ShouldBlockMerge(true, false, false, 1, true))
	assert.False(t, ShouldBlockMerge(false, true, true, 5, true))
}

func TestShouldBlockMergeWithVeto(t *testing.T) {
	assert.False(t, ShouldBlockMergeWithVeto(true, true, nil, 5, false))
	assert.False(t, ShouldBlockMergeWithVeto(true, true, &VetoThreshold{}, 5, false))
	active := &VetoThreshold{VetoActive: true}
	assert.True(t, ShouldBlockMergeWithVeto(true, true, active, 3, false))
	assert.False(t, ShouldBlockMergeWithVeto(true, true, active, 2, false))
	// A resolved veto no longer blocks
	resolved := &VetoThreshold{
		ThresholdMet:       true,
		MaintainerOverride: true,
		ResolutionPath:     models.ResolutionPathOverride,
	}
	assert.False(t, ShouldBlockMergeWithVeto(true, true, resolved, 4, false))
}

func TestGetBlockReason(t *testing.T) {
	testDefs := []struct {
		review, sigs, veto, emergency bool
		tier                          uint32
		expected                      string
	}{
		{review: true, sigs: true, tier: 2, expected: "All governance requirements met"},
		{
			review:   false,
			sigs:     false,
			veto:     true,
			tier:     3,
			expected: "Governance requirements not met: Review period requirement not met, Signature threshold requirement not met, Economic node veto active (30%+ hashpower or 40%+ economic activity)",
		},
		{
			review:   true,
			sigs:     false,
			veto:     true,
			tier:     2,
			expected: "Governance requirements not met: Signature threshold requirement not met",
		},
		{
			review:   true,
			sigs:     true,
			veto:     true,
			tier:     4,
			expected: "Governance requirements not met: Economic node veto active (30%+ hashpower or 40%+ economic activity)",
		},
		{sigs: false, emergency: true, tier: 1, expected: "Emergency mode: Signature threshold not met"},
		{sigs: true, emergency: true, tier: 1, expected: "Emergency mode: All requirements met"},
	}
	for _, testDef := range testDefs {
		assert.Equal(
			t,
			testDef.expected,
			GetBlockReason(testDef.review, testDef.sigs, testDef.veto, testDef.tier, testDef.emergency),
		)
	}
}

func TestEvaluateMerge(t *testing.T) {
	decision := EvaluateMerge(MergeInput{
		ProposalID:      8,
		Tier:            2,
		ReviewPeriodMet: false,
		SignaturesMet:   true,
	})
	assert.True(t, decision.ShouldBlock)
	assert.Equal(t, "Governance requirements not met: Review period requirement not met", decision.Reason)
	assert.Equal(t, uint64(8), decision.ProposalID)
}

func TestDecideMerge(t *testing.T) {
	bus := event.NewEventBus(nil, nil)
	t.Cleanup(bus.Stop)
	_, decisions := bus.Subscribe(event.MergeDecidedEventType)
	e := newTestEngine(t, withEventBus(bus))
	pool := addMiningPool(t, e, "pool-a", 35)
	require.NoError(t, pool.signal(t, e, 100, models.SignalTypeVeto))

	// The stored veto wins over the caller's flag
	decision, err := e.DecideMerge(MergeInput{
		ProposalID:      100,
		Tier:            3,
		ReviewPeriodMet: true,
		SignaturesMet:   true,
	})
	require.NoError(t, err)
	assert.True(t, decision.ShouldBlock)
	assert.Contains(t, decision.Reason, "Economic node veto active")

	e.clock.Advance(time.Minute)
	decision, err = e.DecideMerge(MergeInput{
		ProposalID:      100,
		Tier:            2,
		ReviewPeriodMet: true,
		SignaturesMet:   true,
	})
	require.NoError(t, err)
	assert.False(t, decision.ShouldBlock)

	_, err = e.DecideMerge(MergeInput{ProposalID: 100, Tier: 0})
	assert.ErrorIs(t, err, ErrInvalidTier)

	records, err := e.db.GetMergeDecisions(100, nil)
	require.NoError(t, err)
	require.Len(t, records, 2)

	raw, err := e.db.LatestMergeDecisionSnapshot(100, nil)
	require.NoError(t, err)
	var snapshot DecisionSnapshot
	require.NoError(t, json.Unmarshal(raw, &snapshot))
	assert.Equal(t, uint32(2), snapshot.Decision.Tier)
	assert.False(t, snapshot.Decision.ShouldBlock)
	assert.Nil(t, snapshot.Veto)

	raw, err = e.db.GetMergeDecisionSnapshot(&records[0], nil)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &snapshot))
	require.NotNil(t, snapshot.Veto)
	assert.True(t, snapshot.Veto.VetoActive)
	assert.True(t, snapshot.Input.EconomicVetoActive)

	evt := testutil.RequireReceive(t, decisions, time.Second, "merge decision event")
	data := evt.Data.(event.MergeDecidedEvent)
	assert.Equal(t, uint64(100), data.ProposalID)
	assert.True(t, data.ShouldBlock)
}

func TestDecideMergeEmergencyModeNeedsEmergency(t *testing.T) {
	holders := newKeyholderSet(t, 7)
	e := newTestEngine(t, func(cfg *EngineConfig) {
		cfg.Keyholders = holders.publicKeys()
	})
	pool := addMiningPool(t, e, "pool-a", 40)
	require.NoError(t, pool.signal(t, e, 9, models.SignalTypeVeto))
	input := MergeInput{
		ProposalID:      9,
		Tier:            4,
		ReviewPeriodMet: false,
		SignaturesMet:   true,
		EmergencyMode:   true,
	}

	// Without an emergency in force the flag is dropped and the veto holds
	decision, err := e.DecideMerge(input)
	require.NoError(t, err)
	assert.True(t, decision.ShouldBlock)
	assert.False(t, decision.EmergencyMode)
	assert.Contains(t, decision.Reason, "Review period requirement not met")
	assert.Contains(t, decision.Reason, "Economic node veto active")

	a := testActivation(EmergencyTierCritical)
	holders.signActivation(t, a, 5, e.clock.Now())
	_, err = e.Emergencies().ActivateEmergency(a)
	require.NoError(t, err)

	e.clock.Advance(time.Minute)
	decision, err = e.DecideMerge(input)
	require.NoError(t, err)
	assert.False(t, decision.ShouldBlock)
	assert.True(t, decision.EmergencyMode)
	assert.Equal(t, "Emergency mode: All requirements met", decision.Reason)
}
