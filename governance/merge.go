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
	"strings"
	"time"

	"github.com/blinklabs-io/mergegate/database/models"
	"github.com/blinklabs-io/mergegate/event"
)

// BlockReasonPrefix leads every reason GetBlockReason gives for a block
// outside emergency mode
const BlockReasonPrefix = "Governance requirements not met: "

const (
	reasonReviewPeriod = "Review period requirement not met"
	reasonSignatures   = "Signature threshold requirement not met"
	reasonEconomicVeto = "Economic node veto active (30%+ hashpower or 40%+ economic activity)"
)

// ShouldBlockMerge decides whether a proposal must not be merged. In
// emergency mode only the signature threshold applies.
func ShouldBlockMerge(
	reviewPeriodMet bool,
	signaturesMet bool,
	economicVetoActive bool,
	tier uint32,
	emergencyMode bool,
) bool {
	if emergencyMode {
		return !signaturesMet
	}
	if !reviewPeriodMet || !signaturesMet {
		return true
	}
	return tier >= EconomicVetoMinTier && economicVetoActive
}

// ShouldBlockMergeWithVeto is ShouldBlockMerge taking the veto status of the
// proposal. A nil veto is inactive.
func ShouldBlockMergeWithVeto(
	reviewPeriodMet bool,
	signaturesMet bool,
	veto *VetoThreshold,
	tier uint32,
	emergencyMode bool,
) bool {
	return ShouldBlockMerge(
		reviewPeriodMet,
		signaturesMet,
		veto != nil && veto.VetoActive,
		tier,
		emergencyMode,
	)
}

// GetBlockReason explains the outcome of ShouldBlockMerge
func GetBlockReason(
	reviewPeriodMet bool,
	signaturesMet bool,
	economicVetoActive bool,
	tier uint32,
	emergencyMode bool,
) string {
	if emergencyMode {
		if !signaturesMet {
			return "Emergency mode: Signature threshold not met"
		}
		return "Emergency mode: All requirements met"
	}
	var reasons []string
	if !reviewPeriodMet {
		reasons = append(reasons, reasonReviewPeriod)
	}
	if !signaturesMet {
		reasons = append(reasons, reasonSignatures)
	}
	if tier >= EconomicVetoMinTier && economicVetoActive {
		reasons = append(reasons, reasonEconomicVeto)
	}
	if len(reasons) == 0 {
		return "All governance requirements met"
	}
	return BlockReasonPrefix + strings.Join(reasons, ", ")
}

// MergeInput is everything a merge decision depends on
type MergeInput struct {
	ProposalID         uint64 `json:"proposal_id"`
	Tier               uint32 `json:"tier"`
	ReviewPeriodMet    bool   `json:"review_period_met"`
	SignaturesMet      bool   `json:"signatures_met"`
	EconomicVetoActive bool   `json:"economic_veto_active"`
	EmergencyMode      bool   `json:"emergency_mode"`
}

// MergeDecision is the outcome of evaluating a MergeInput
type MergeDecision struct {
	Reason        string `json:"reason"`
	ProposalID    uint64 `json:"proposal_id"`
	Tier          uint32 `json:"tier"`
	ShouldBlock   bool   `json:"should_block"`
	EmergencyMode bool   `json:"emergency_mode"`
}

func EvaluateMerge(input MergeInput) MergeDecision {
	return MergeDecision{
		ProposalID:    input.ProposalID,
		Tier:          input.Tier,
		EmergencyMode: input.EmergencyMode,
		ShouldBlock: ShouldBlockMerge(
			input.ReviewPeriodMet,
			input.SignaturesMet,
			input.EconomicVetoActive,
			input.Tier,
			input.EmergencyMode,
		),
		Reason: GetBlockReason(
			input.ReviewPeriodMet,
			input.SignaturesMet,
			input.EconomicVetoActive,
			input.Tier,
			input.EmergencyMode,
		),
	}
}

// DecisionSnapshot is the record of a merge decision kept in the decision
// log
type DecisionSnapshot struct {
	DecidedAt string         `json:"decided_at"`
	Veto      *VetoThreshold `json:"veto,omitempty"`
	Input     MergeInput     `json:"input"`
	Decision  MergeDecision  `json:"decision"`
}

// DecideMerge evaluates a proposal using its stored veto state, records the
// decision and announces it. The caller's veto flag is replaced by the
// stored state for tiers where economic vetoes apply, and emergency mode
// only holds while an emergency is in force.
func (e *Engine) DecideMerge(input MergeInput) (*MergeDecision, error) {
	if _, err := GetThresholdForTier(input.Tier); err != nil {
		return nil, err
	}
	if input.EmergencyMode {
		if _, err := e.emergencies.CurrentEmergency(); err != nil {
			if !errors.Is(err, ErrEmergencyNotFound) {
				return nil, fmt.Errorf("failed to load current emergency: %w", err)
			}
			e.logger.Warn(
				"emergency mode requested with no emergency in force",
				"proposal_id", input.ProposalID,
			)
			input.EmergencyMode = false
		}
	}
	var veto *VetoThreshold
	if input.Tier >= EconomicVetoMinTier {
		blocking, err := e.votes.CheckEconomicVetoBlocking(input.ProposalID, input.Tier)
		if err != nil {
			return nil, err
		}
		input.EconomicVetoActive = blocking
		if state, err := e.veto.GetVetoState(input.ProposalID); err == nil {
			veto = state
		}
	}
	decision := EvaluateMerge(input)
	now := e.now()
	snapshot, err := CanonicalJSON(DecisionSnapshot{
		DecidedAt: now.Format(time.RFC3339),
		Input:     input,
		Decision:  decision,
		Veto:      veto,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode decision snapshot: %w", err)
	}
	record := &models.MergeDecision{
		ProposalID:    decision.ProposalID,
		Tier:          decision.Tier,
		ShouldBlock:   decision.ShouldBlock,
		EmergencyMode: decision.EmergencyMode,
		Reason:        decision.Reason,
		DecidedAt:     now,
	}
	if err := e.db.AddMergeDecision(record, snapshot, nil); err != nil {
		return nil, fmt.Errorf("failed to record merge decision: %w", err)
	}
	outcome := "allowed"
	if decision.ShouldBlock {
		outcome = "blocked"
	}
	e.metrics.mergeDecisions.WithLabelValues(outcome).Inc()
	e.logger.Info(
		"merge decided",
		"proposal_id", decision.ProposalID,
		"tier", decision.Tier,
		"should_block", decision.ShouldBlock,
		"reason", decision.Reason,
	)
	e.publish(
		event.MergeDecidedEventType,
		event.MergeDecidedEvent{
			ProposalID:    decision.ProposalID,
			Tier:          decision.Tier,
			ShouldBlock:   decision.ShouldBlock,
			EmergencyMode: decision.EmergencyMode,
			Reason:        decision.Reason,
			DecidedAt:     now,
		},
	)
	return &decision, nil
}
