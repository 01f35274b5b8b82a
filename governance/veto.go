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
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/blinklabs-io/mergegate/database"
	"github.com/blinklabs-io/mergegate/database/models"
	"github.com/blinklabs-io/mergegate/event"
)

const (
	MiningVetoThresholdPercent   = 30.0
	EconomicVetoThresholdPercent = 40.0
)

// VetoThreshold is the veto status of a proposal
type VetoThreshold struct {
	VetoTriggeredAt     *time.Time            `json:"veto_triggered_at,omitempty"`
	ReviewPeriodEndsAt  *time.Time            `json:"review_period_ends_at,omitempty"`
	OverrideTimestamp   *time.Time            `json:"override_timestamp,omitempty"`
	OverrideBy          string                `json:"override_by,omitempty"`
	ProposalID          uint64                `json:"proposal_id"`
	MiningVetoPercent   float64               `json:"mining_veto_percent"`
	EconomicVetoPercent float64               `json:"economic_veto_percent"`
	ThresholdMet        bool                  `json:"threshold_met"`
	VetoActive          bool                  `json:"veto_active"`
	MaintainerOverride  bool                  `json:"maintainer_override"`
	ResolutionPath      models.ResolutionPath `json:"resolution_path"`
}

func vetoThresholdFromState(state *models.PrVetoState) *VetoThreshold {
	return &VetoThreshold{
		ProposalID:          state.ProposalID,
		MiningVetoPercent:   state.MiningVetoPercent,
		EconomicVetoPercent: state.EconomicVetoPercent,
		ThresholdMet:        state.ThresholdMet,
		VetoActive:          state.VetoActive,
		VetoTriggeredAt:     state.VetoTriggeredAt,
		ReviewPeriodEndsAt:  state.ReviewPeriodEndsAt,
		MaintainerOverride:  state.MaintainerOverride,
		OverrideTimestamp:   state.OverrideTimestamp,
		OverrideBy:          state.OverrideBy,
		ResolutionPath:      state.ResolutionPath,
	}
}

// VetoThresholdMet reports whether either class of node crossed its veto
// threshold
func VetoThresholdMet(miningVetoPercent, economicVetoPercent float64) bool {
	return miningVetoPercent >= MiningVetoThresholdPercent ||
		economicVetoPercent >= EconomicVetoThresholdPercent
}

// VetoSignalMessage returns the message a node signs to signal on a proposal
func VetoSignalMessage(proposalID uint64, entityName string) []byte {
	return fmt.Appendf(nil, "PR #%d veto signal from %s", proposalID, entityName)
}

// VetoEngine collects economic node signals and runs the veto state machine
type VetoEngine struct {
	e            *Engine
	reviewPeriod time.Duration
}

// CollectVetoSignal verifies and stores the single signal a node may cast on
// a proposal, then updates the veto state of the proposal
func (v *VetoEngine) CollectVetoSignal(
	proposalID uint64,
	nodeID uint,
	signalType models.SignalType,
	signatureHex string,
	rationale string,
) (*models.VetoSignal, error) {
	switch signalType {
	case models.SignalTypeVeto, models.SignalTypeSupport:
	default:
		return nil, fmt.Errorf("unknown signal type: %s", signalType)
	}
	now := v.e.now()
	var (
		signal  *models.VetoSignal
		node    *models.EconomicNode
		state   *models.PrVetoState
		changed bool
	)
	err := v.e.db.MetadataTxn(true).Do(func(txn *database.Txn) error {
		var err error
		node, err = v.e.db.GetEconomicNode(nodeID, txn)
		if err != nil {
			return mapNodeError(err)
		}
		if node.Status != models.NodeStatusActive {
			return fmt.Errorf(
				"%w: node %d is %s",
				ErrNodeNotActive,
				node.ID,
				node.Status,
			)
		}
		_, err = v.e.db.GetVetoSignal(proposalID, nodeID, txn)
		if err == nil {
			return fmt.Errorf(
				"%w: node %d on proposal %d",
				ErrDuplicateSignal,
				nodeID,
				proposalID,
			)
		}
		if !errors.Is(err, models.ErrVetoSignalNotFound) {
			return err
		}
		msg := VetoSignalMessage(proposalID, node.EntityName)
		if err := v.e.config.Verifier.Verify(node.PublicKey, signatureHex, msg); err != nil {
			return err
		}
		signal = &models.VetoSignal{
			ProposalID: proposalID,
			NodeID:     node.ID,
			SignalType: signalType,
			Weight:     node.Weight,
			Signature:  strings.TrimPrefix(signatureHex, "0x"),
			Rationale:  rationale,
			Timestamp:  now,
		}
		if err := v.e.db.AddVetoSignal(signal, txn); err != nil {
			if errors.Is(err, models.ErrDuplicate) {
				return fmt.Errorf("%w: %w", ErrDuplicateSignal, err)
			}
			return err
		}
		state, changed, err = v.recomputeVetoState(txn, proposalID, now, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	v.e.metrics.vetoSignals.WithLabelValues(signalType.String()).Inc()
	v.e.logger.Info(
		"collected veto signal",
		"proposal_id", proposalID,
		"node_id", node.ID,
		"entity", node.EntityName,
		"signal_type", signalType.String(),
		"weight", signal.Weight,
	)
	v.e.publish(
		event.VetoSignalCollectedEventType,
		event.VetoSignalCollectedEvent{
			ProposalID: proposalID,
			NodeID:     node.ID,
			EntityName: node.EntityName,
			SignalType: signalType.String(),
			Weight:     signal.Weight,
		},
	)
	if changed {
		v.stateChanged(state)
	}
	return signal, nil
}

// CheckVetoThreshold recomputes the veto percentages of a proposal, advances
// the state machine and stores the result. Repeated calls with no new
// signals at the same time return the same values.
func (v *VetoEngine) CheckVetoThreshold(proposalID uint64) (*VetoThreshold, error) {
	now := v.e.now()
	var (
		state   *models.PrVetoState
		changed bool
	)
	err := v.e.db.MetadataTxn(true).Do(func(txn *database.Txn) error {
		var err error
		state, changed, err = v.recomputeVetoState(txn, proposalID, now, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	if changed {
		v.stateChanged(state)
	}
	return vetoThresholdFromState(state), nil
}

// GetVetoState returns the stored veto state without recomputing it
func (v *VetoEngine) GetVetoState(proposalID uint64) (*VetoThreshold, error) {
	state, err := v.e.db.GetPrVetoState(proposalID, nil)
	if err != nil {
		if errors.Is(err, models.ErrPrVetoStateNotFound) {
			return nil, fmt.Errorf("%w: proposal %d", ErrNoVetoState, proposalID)
		}
		return nil, err
	}
	return vetoThresholdFromState(state), nil
}

// GetVetoSignals returns the signals cast on a proposal
func (v *VetoEngine) GetVetoSignals(proposalID uint64) ([]models.VetoSignal, error) {
	return v.e.db.GetVetoSignals(proposalID, nil)
}

// OverrideVeto records a maintainer override once the review period of an
// active veto has ended, and resolves the veto
func (v *VetoEngine) OverrideVeto(
	proposalID uint64,
	maintainer string,
) (*VetoThreshold, error) {
	if maintainer == "" {
		return nil, errors.New("maintainer is required")
	}
	now := v.e.now()
	var (
		state   *models.PrVetoState
		changed bool
	)
	err := v.e.db.MetadataTxn(true).Do(func(txn *database.Txn) error {
		existing, err := v.e.db.GetPrVetoState(proposalID, txn)
		if err != nil {
			if errors.Is(err, models.ErrPrVetoStateNotFound) {
				return fmt.Errorf("%w: proposal %d", ErrNoVetoState, proposalID)
			}
			return err
		}
		if existing.ResolutionPath != models.ResolutionPathNone {
			return fmt.Errorf(
				"%w: proposal %d resolved by %s",
				ErrVetoResolved,
				proposalID,
				existing.ResolutionPath,
			)
		}
		if existing.VetoTriggeredAt == nil {
			return fmt.Errorf(
				"%w: no veto was triggered on proposal %d",
				ErrNoVetoState,
				proposalID,
			)
		}
		if existing.ReviewPeriodEndsAt != nil &&
			now.Before(*existing.ReviewPeriodEndsAt) {
			return fmt.Errorf(
				"%w: ends at %s",
				ErrReviewPeriodActive,
				existing.ReviewPeriodEndsAt.Format(time.RFC3339),
			)
		}
		state, changed, err = v.recomputeVetoState(
			txn,
			proposalID,
			now,
			func(s *models.PrVetoState) error {
				ts := now
				s.MaintainerOverride = true
				s.OverrideTimestamp = &ts
				s.OverrideBy = maintainer
				return nil
			},
		)
		return err
	})
	if err != nil {
		return nil, err
	}
	v.e.logger.Info(
		"maintainer override recorded",
		"proposal_id", proposalID,
		"maintainer", maintainer,
	)
	if changed {
		v.stateChanged(state)
	}
	return vetoThresholdFromState(state), nil
}

// ExpireReviewPeriods advances every active veto whose review period has
// ended. It returns the number of vetoes that were resolved.
func (v *VetoEngine) ExpireReviewPeriods() (int, error) {
	now := v.e.now()
	var changedStates []*models.PrVetoState
	resolved := 0
	err := v.e.db.MetadataTxn(true).Do(func(txn *database.Txn) error {
		active, err := v.e.db.GetActivePrVetoStates(txn)
		if err != nil {
			return err
		}
		for _, s := range active {
			if s.ReviewPeriodEndsAt == nil || now.Before(*s.ReviewPeriodEndsAt) {
				continue
			}
			state, changed, err := v.recomputeVetoState(txn, s.ProposalID, now, nil)
			if err != nil {
				return fmt.Errorf("proposal %d: %w", s.ProposalID, err)
			}
			if changed {
				changedStates = append(changedStates, state)
			}
			if !state.VetoActive {
				resolved++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, state := range changedStates {
		v.stateChanged(state)
	}
	return resolved, nil
}

// recomputeVetoState loads (or creates) the state of a proposal, applies
// mutate, recomputes the percentages and advances the state machine. The
// state is only written when it is new or changed.
func (v *VetoEngine) recomputeVetoState(
	txn *database.Txn,
	proposalID uint64,
	now time.Time,
	mutate func(*models.PrVetoState) error,
) (*models.PrVetoState, bool, error) {
	isNew := false
	state, err := v.e.db.GetPrVetoState(proposalID, txn)
	if err != nil {
		if !errors.Is(err, models.ErrPrVetoStateNotFound) {
			return nil, false, err
		}
		state = &models.PrVetoState{ProposalID: proposalID}
		isNew = true
	}
	prev := *state
	if mutate != nil {
		if err := mutate(state); err != nil {
			return nil, false, err
		}
	}
	mining, economic, err := v.vetoPercentages(txn, proposalID)
	if err != nil {
		return nil, false, err
	}
	advanceVetoState(state, mining, economic, now, v.reviewPeriod)
	if !isNew && !vetoStateChanged(&prev, state) {
		return state, false, nil
	}
	state.UpdatedAt = now
	if err := v.e.db.SetPrVetoState(state, txn); err != nil {
		return nil, false, fmt.Errorf("failed to save veto state: %w", err)
	}
	return state, true, nil
}

// vetoPercentages returns the weighted share of veto signals among the
// mining pools and among the exchanges and custodians that signaled
func (v *VetoEngine) vetoPercentages(
	txn *database.Txn,
	proposalID uint64,
) (float64, float64, error) {
	signals, err := v.e.db.GetVetoSignals(proposalID, txn)
	if err != nil {
		return 0, 0, err
	}
	if len(signals) == 0 {
		return 0, 0, nil
	}
	ids := make([]uint, 0, len(signals))
	for _, s := range signals {
		ids = append(ids, s.NodeID)
	}
	nodes, err := v.e.db.GetEconomicNodesByIDs(ids, txn)
	if err != nil {
		return 0, 0, err
	}
	nodeTypes := make(map[uint]models.NodeType, len(nodes))
	for _, n := range nodes {
		nodeTypes[n.ID] = n.NodeType
	}
	var miningVeto, miningTotal, economicVeto, economicTotal float64
	for _, s := range signals {
		nodeType, ok := nodeTypes[s.NodeID]
		if !ok {
			return 0, 0, fmt.Errorf(
				"signal from unknown node %d: %w",
				s.NodeID,
				ErrNodeNotFound,
			)
		}
		isVeto := s.SignalType == models.SignalTypeVeto
		switch nodeType {
		case models.NodeTypeMiningPool:
			miningTotal += s.Weight
			if isVeto {
				miningVeto += s.Weight
			}
		case models.NodeTypeExchange, models.NodeTypeCustodian:
			economicTotal += s.Weight
			if isVeto {
				economicVeto += s.Weight
			}
		}
	}
	return percentOf(miningVeto, miningTotal), percentOf(economicVeto, economicTotal), nil
}

// percentOf returns part as a percentage of total, rounded to six decimals
// so that shares landing exactly on a threshold compare as expected
func percentOf(part, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(part/total*100*1e6) / 1e6
}

// advanceVetoState is the veto state machine. A veto becomes active the
// first time the threshold is met and stays active for the review period.
// Afterwards an override or a loss of the threshold resolves it for good.
func advanceVetoState(
	state *models.PrVetoState,
	miningVetoPercent float64,
	economicVetoPercent float64,
	now time.Time,
	reviewPeriod time.Duration,
) {
	state.MiningVetoPercent = miningVetoPercent
	state.EconomicVetoPercent = economicVetoPercent
	state.ThresholdMet = VetoThresholdMet(miningVetoPercent, economicVetoPercent)
	if state.ResolutionPath != models.ResolutionPathNone {
		state.VetoActive = false
		return
	}
	if state.VetoTriggeredAt == nil {
		if !state.ThresholdMet {
			state.VetoActive = false
			return
		}
		triggeredAt := now
		endsAt := now.Add(reviewPeriod)
		state.VetoTriggeredAt = &triggeredAt
		state.ReviewPeriodEndsAt = &endsAt
		state.VetoActive = true
		return
	}
	if state.ReviewPeriodEndsAt != nil && now.Before(*state.ReviewPeriodEndsAt) {
		state.VetoActive = true
		return
	}
	switch {
	case state.MaintainerOverride:
		state.ResolutionPath = models.ResolutionPathOverride
		state.VetoActive = false
	case !state.ThresholdMet:
		state.ResolutionPath = models.ResolutionPathConsensus
		state.VetoActive = false
	default:
		state.VetoActive = true
	}
}

func vetoStateChanged(a, b *models.PrVetoState) bool {
	return a.MiningVetoPercent != b.MiningVetoPercent ||
		a.EconomicVetoPercent != b.EconomicVetoPercent ||
		a.ThresholdMet != b.ThresholdMet ||
		a.VetoActive != b.VetoActive ||
		a.MaintainerOverride != b.MaintainerOverride ||
		a.OverrideBy != b.OverrideBy ||
		a.ResolutionPath != b.ResolutionPath ||
		!timePtrEqual(a.VetoTriggeredAt, b.VetoTriggeredAt) ||
		!timePtrEqual(a.ReviewPeriodEndsAt, b.ReviewPeriodEndsAt) ||
		!timePtrEqual(a.OverrideTimestamp, b.OverrideTimestamp)
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func (v *VetoEngine) stateChanged(state *models.PrVetoState) {
	v.e.metrics.vetoStateChanges.WithLabelValues(state.ResolutionPath.String()).Inc()
	v.e.logger.Info(
		"veto state changed",
		"proposal_id", state.ProposalID,
		"mining_veto_percent", state.MiningVetoPercent,
		"economic_veto_percent", state.EconomicVetoPercent,
		"threshold_met", state.ThresholdMet,
		"veto_active", state.VetoActive,
		"resolution_path", state.ResolutionPath.String(),
	)
	v.e.publish(
		event.VetoStateChangedEventType,
		event.VetoStateChangedEvent{
			ProposalID:          state.ProposalID,
			MiningVetoPercent:   state.MiningVetoPercent,
			EconomicVetoPercent: state.EconomicVetoPercent,
			ThresholdMet:        state.ThresholdMet,
			VetoActive:          state.VetoActive,
			ReviewPeriodEndsAt:  state.ReviewPeriodEndsAt,
			ResolutionPath:      state.ResolutionPath.String(),
		},
	)
}
