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
	"testing"
	"time"

	"github.com/blinklabs-io/mergegate/database/models"
	"github.com/blinklabs-io/mergegate/event"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVetoThresholdBoundaries(t *testing.T) {
	assert.True(t, VetoThresholdMet(30.0, 0))
	assert.True(t, VetoThresholdMet(0, 40.0))
	assert.False(t, VetoThresholdMet(29.9, 0))
	assert.False(t, VetoThresholdMet(0, 39.9))
	assert.False(t, VetoThresholdMet(29.9, 39.9))
	assert.True(t, VetoThresholdMet(29.9, 40.1))
}

func TestPercentOfRoundsToThreshold(t *testing.T) {
	assert.Equal(t, 30.0, percentOf(0.3, 1.0))
	assert.Equal(t, 40.0, percentOf(0.4, 1.0))
	assert.Equal(t, 0.0, percentOf(0, 0))
	assert.InDelta(t, 27.272727, percentOf(0.3, 1.1), 1e-9)
}

func TestAdvanceVetoStateConsensus(t *testing.T) {
	rp := 90 * day
	state := &models.PrVetoState{ProposalID: 1}

	advanceVetoState(state, 10, 0, testEpoch, rp)
	assert.False(t, state.VetoActive)
	assert.Nil(t, state.VetoTriggeredAt)

	advanceVetoState(state, 35, 0, testEpoch, rp)
	require.True(t, state.VetoActive)
	require.NotNil(t, state.ReviewPeriodEndsAt)
	assert.True(t, state.ReviewPeriodEndsAt.Equal(testEpoch.Add(rp)))

	// Inside the review period the veto holds even once support recovers
	advanceVetoState(state, 5, 0, testEpoch.Add(day), rp)
	assert.True(t, state.VetoActive)
	assert.False(t, state.ThresholdMet)
	assert.Equal(t, models.ResolutionPathNone, state.ResolutionPath)

	advanceVetoState(state, 5, 0, testEpoch.Add(rp), rp)
	assert.False(t, state.VetoActive)
	assert.Equal(t, models.ResolutionPathConsensus, state.ResolutionPath)

	// Resolution is terminal
	advanceVetoState(state, 80, 80, testEpoch.Add(rp+day), rp)
	assert.False(t, state.VetoActive)
	assert.True(t, state.ThresholdMet)
	assert.Equal(t, models.ResolutionPathConsensus, state.ResolutionPath)
}

func TestAdvanceVetoStateStaysActiveWhileThresholdMet(t *testing.T) {
	rp := 90 * day
	state := &models.PrVetoState{ProposalID: 1}
	advanceVetoState(state, 0, 45, testEpoch, rp)
	advanceVetoState(state, 0, 45, testEpoch.Add(2*rp), rp)
	assert.True(t, state.VetoActive)
	assert.Equal(t, models.ResolutionPathNone, state.ResolutionPath)

	state.MaintainerOverride = true
	advanceVetoState(state, 0, 45, testEpoch.Add(2*rp), rp)
	assert.False(t, state.VetoActive)
	assert.Equal(t, models.ResolutionPathOverride, state.ResolutionPath)
}

func TestCollectVetoSignalDuplicate(t *testing.T) {
	e := newTestEngine(t)
	pool := addMiningPool(t, e, "pool-a", 20)
	require.NoError(t, pool.signal(t, e, 42, models.SignalTypeVeto))
	// A node cannot change its mind, whatever the signal type
	assert.ErrorIs(t, pool.signal(t, e, 42, models.SignalTypeSupport), ErrDuplicateSignal)
	assert.ErrorIs(t, pool.signal(t, e, 42, models.SignalTypeVeto), ErrDuplicateSignal)
	// Other proposals are unaffected
	assert.NoError(t, pool.signal(t, e, 43, models.SignalTypeSupport))

	signals, err := e.Veto().GetVetoSignals(42)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, models.SignalTypeVeto, signals[0].SignalType)
	assert.InDelta(t, 0.2, signals[0].Weight, 1e-12)
}

func TestCollectVetoSignalRejections(t *testing.T) {
	e := newTestEngine(t)
	pool := addMiningPool(t, e, "pool-a", 20)

	_, err := e.Veto().CollectVetoSignal(1, 999, models.SignalTypeVeto, "00", "")
	assert.ErrorIs(t, err, ErrNodeNotFound)

	// Signature over another proposal
	sig := SignMessage(pool.key, VetoSignalMessage(2, pool.node.EntityName))
	_, err = e.Veto().CollectVetoSignal(1, pool.node.ID, models.SignalTypeVeto, sig, "")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	// Signature by another key
	other, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	sig = SignMessage(other, VetoSignalMessage(1, pool.node.EntityName))
	_, err = e.Veto().CollectVetoSignal(1, pool.node.ID, models.SignalTypeVeto, sig, "")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = e.Veto().SuspendNode(pool.node.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, pool.signal(t, e, 1, models.SignalTypeVeto), ErrNodeNotActive)

	_, err = e.Veto().CollectVetoSignal(1, pool.node.ID, models.SignalType(9), "00", "")
	assert.Error(t, err)

	// Nothing was stored by the failed attempts
	signals, err := e.Veto().GetVetoSignals(1)
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func TestCheckVetoThresholdIdempotent(t *testing.T) {
	e := newTestEngine(t)
	poolA := addMiningPool(t, e, "pool-a", 30)
	poolB := addMiningPool(t, e, "pool-b", 70)
	require.NoError(t, poolA.signal(t, e, 5, models.SignalTypeVeto))
	require.NoError(t, poolB.signal(t, e, 5, models.SignalTypeSupport))

	first, err := e.Veto().CheckVetoThreshold(5)
	require.NoError(t, err)
	second, err := e.Veto().CheckVetoThreshold(5)
	require.NoError(t, err)
	assert.Equal(t, first.MiningVetoPercent, second.MiningVetoPercent)
	assert.Equal(t, first.EconomicVetoPercent, second.EconomicVetoPercent)
	assert.Equal(t, first.ThresholdMet, second.ThresholdMet)
	assert.Equal(t, first.VetoActive, second.VetoActive)
	assert.Equal(t, first.ResolutionPath, second.ResolutionPath)
	require.NotNil(t, second.ReviewPeriodEndsAt)
	assert.True(t, first.ReviewPeriodEndsAt.Equal(*second.ReviewPeriodEndsAt))

	assert.Equal(t, 30.0, first.MiningVetoPercent)
	assert.True(t, first.ThresholdMet)
	assert.True(t, first.VetoActive)
}

func TestEconomicVetoPercent(t *testing.T) {
	e := newTestEngine(t)
	exchange := addActiveNode(t, e, "exchange", models.NodeTypeExchange, NodeQualification{
		HoldingsBtc:    10_000,
		DailyVolumeUsd: 100_000_000,
	})
	custodian := addActiveNode(t, e, "custodian", models.NodeTypeCustodian, NodeQualification{
		HoldingsBtc: 20_000,
	})
	pool := addMiningPool(t, e, "pool", 10)
	require.NoError(t, exchange.signal(t, e, 9, models.SignalTypeVeto))
	require.NoError(t, custodian.signal(t, e, 9, models.SignalTypeSupport))
	require.NoError(t, pool.signal(t, e, 9, models.SignalTypeSupport))

	veto, err := e.Veto().CheckVetoThreshold(9)
	require.NoError(t, err)
	assert.Equal(t, 0.0, veto.MiningVetoPercent)
	assert.InDelta(t, 58.823529, veto.EconomicVetoPercent, 1e-6)
	assert.True(t, veto.VetoActive)
}

func TestSequentialVetoOverride(t *testing.T) {
	e := newTestEngine(t)
	poolA := addMiningPool(t, e, "pool-a", 30)
	poolB := addMiningPool(t, e, "pool-b", 70)

	_, err := e.Veto().OverrideVeto(11, "maintainer")
	assert.ErrorIs(t, err, ErrNoVetoState)

	require.NoError(t, poolA.signal(t, e, 11, models.SignalTypeVeto))
	require.NoError(t, poolB.signal(t, e, 11, models.SignalTypeSupport))
	veto, err := e.Veto().GetVetoState(11)
	require.NoError(t, err)
	require.True(t, veto.VetoActive)

	_, err = e.Veto().OverrideVeto(11, "maintainer")
	assert.ErrorIs(t, err, ErrReviewPeriodActive)

	e.clock.Advance(DefaultReviewPeriod + time.Second)
	veto, err = e.Veto().OverrideVeto(11, "maintainer")
	require.NoError(t, err)
	assert.False(t, veto.VetoActive)
	assert.True(t, veto.MaintainerOverride)
	assert.Equal(t, "maintainer", veto.OverrideBy)
	assert.Equal(t, models.ResolutionPathOverride, veto.ResolutionPath)
	require.NotNil(t, veto.OverrideTimestamp)

	_, err = e.Veto().OverrideVeto(11, "maintainer")
	assert.ErrorIs(t, err, ErrVetoResolved)

	blocking, err := e.Votes().CheckEconomicVetoBlocking(11, 3)
	require.NoError(t, err)
	assert.False(t, blocking)
}

func TestOverrideWithoutTriggeredVeto(t *testing.T) {
	e := newTestEngine(t)
	pool := addMiningPool(t, e, "pool-a", 30)
	require.NoError(t, pool.signal(t, e, 12, models.SignalTypeSupport))
	_, err := e.Veto().OverrideVeto(12, "maintainer")
	assert.ErrorIs(t, err, ErrNoVetoState)
}

func TestExpireReviewPeriodsConsensus(t *testing.T) {
	bus := event.NewEventBus(nil, nil)
	t.Cleanup(bus.Stop)
	_, changes := bus.Subscribe(event.VetoStateChangedEventType)
	e := newTestEngine(t, withEventBus(bus))
	poolA := addMiningPool(t, e, "pool-a", 30)
	poolB := addMiningPool(t, e, "pool-b", 70)
	poolC := addMiningPool(t, e, "pool-c", 10)

	require.NoError(t, poolA.signal(t, e, 20, models.SignalTypeVeto))
	require.NoError(t, poolB.signal(t, e, 20, models.SignalTypeSupport))
	require.NoError(t, poolC.signal(t, e, 20, models.SignalTypeSupport))
	veto, err := e.Veto().GetVetoState(20)
	require.NoError(t, err)
	assert.True(t, veto.VetoActive)
	assert.False(t, veto.ThresholdMet)

	resolved, err := e.Veto().ExpireReviewPeriods()
	require.NoError(t, err)
	assert.Zero(t, resolved)

	e.clock.Advance(DefaultReviewPeriod)
	resolved, err = e.Veto().ExpireReviewPeriods()
	require.NoError(t, err)
	assert.Equal(t, 1, resolved)
	veto, err = e.Veto().GetVetoState(20)
	require.NoError(t, err)
	assert.False(t, veto.VetoActive)
	assert.Equal(t, models.ResolutionPathConsensus, veto.ResolutionPath)

	var last event.VetoStateChangedEvent
drain:
	for {
		select {
		case evt := <-changes:
			last = evt.Data.(event.VetoStateChangedEvent)
		case <-time.After(200 * time.Millisecond):
			break drain
		}
	}
	assert.Equal(t, uint64(20), last.ProposalID)
	assert.Equal(t, "consensus", last.ResolutionPath)
}
