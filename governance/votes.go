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
	"time"

	"github.com/blinklabs-io/mergegate/database"
	"github.com/blinklabs-io/mergegate/database/models"
)

// ZapVetoThreshold is the share of zap weight voting veto that blocks a
// proposal
const ZapVetoThreshold = 0.40

// EconomicVetoMinTier is the lowest tier economic node vetoes apply to
const EconomicVetoMinTier = 3

var tierThresholds = map[uint32]float64{
	1: 100,
	2: 500,
	3: 1_000,
	4: 2_500,
	5: 5_000,
}

// GetThresholdForTier returns the total vote weight a proposal of the given
// tier needs
func GetThresholdForTier(tier uint32) (float64, error) {
	threshold, ok := tierThresholds[tier]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrInvalidTier, tier)
	}
	return threshold, nil
}

// ProposalVotes is the aggregated vote tally of a proposal
type ProposalVotes struct {
	ProposalID                 uint64
	Tier                       uint32
	Threshold                  float64
	SupportWeight              float64
	VetoWeight                 float64
	AbstainWeight              float64
	ZapSupportWeight           float64
	ParticipationSupportWeight float64
	TotalVotes                 float64
	ZapVetoPercent             float64
	ZapVoteCount               int
	ThresholdMet               bool
	EconomicVetoBlocks         bool
	VetoBlocks                 bool
}

// VoteAggregator tallies zap and participation votes on proposals
type VoteAggregator struct {
	e *Engine
}

// RecordZapVote stores a zap cast on a proposal. The vote weighs the square
// root of its amount.
func (a *VoteAggregator) RecordZapVote(
	proposalID uint64,
	governanceEventID string,
	senderPubkey string,
	amountBtc float64,
	voteType models.VoteType,
	timestamp time.Time,
) (*models.ZapVote, error) {
	switch voteType {
	case models.VoteTypeSupport, models.VoteTypeVeto, models.VoteTypeAbstain:
	default:
		return nil, fmt.Errorf("unknown vote type: %s", voteType)
	}
	if !isFinite(amountBtc) || amountBtc <= 0 {
		return nil, fmt.Errorf("zap amount must be positive, got %f", amountBtc)
	}
	if governanceEventID == "" || senderPubkey == "" {
		return nil, errors.New("governance event id and sender are required")
	}
	vote := &models.ZapVote{
		ProposalID:        proposalID,
		GovernanceEventID: governanceEventID,
		SenderPubkey:      senderPubkey,
		AmountBtc:         amountBtc,
		VoteWeight:        math.Sqrt(amountBtc),
		VoteType:          voteType,
		Timestamp:         timestamp.UTC(),
	}
	if err := a.e.db.AddZapVote(vote, nil); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %w", ErrDuplicateZapVote, err)
		}
		return nil, err
	}
	a.e.logger.Debug(
		"recorded zap vote",
		"proposal_id", proposalID,
		"vote_type", voteType.String(),
		"weight", vote.VoteWeight,
	)
	return vote, nil
}

// RecordParticipationVote records a contributor supporting a proposal with
// their participation weight
func (a *VoteAggregator) RecordParticipationVote(
	proposalID uint64,
	contributorID string,
) (*models.ParticipationVote, error) {
	vote := &models.ParticipationVote{
		ProposalID:    proposalID,
		ContributorID: contributorID,
		Timestamp:     a.e.now(),
	}
	err := a.e.db.MetadataTxn(true).Do(func(txn *database.Txn) error {
		if _, err := a.e.db.GetContributor(contributorID, txn); err != nil {
			return err
		}
		if err := a.e.db.AddParticipationVote(vote, txn); err != nil {
			if errors.Is(err, models.ErrDuplicate) {
				return fmt.Errorf("%w: %w", ErrDuplicateParticipationVote, err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vote, nil
}

// AggregateProposalVotes tallies every vote on a proposal and decides
// whether vetoes block it
func (a *VoteAggregator) AggregateProposalVotes(
	proposalID uint64,
	tier uint32,
) (*ProposalVotes, error) {
	threshold, err := GetThresholdForTier(tier)
	if err != nil {
		return nil, err
	}
	ret := &ProposalVotes{
		ProposalID: proposalID,
		Tier:       tier,
		Threshold:  threshold,
	}
	if err := a.tallyVotes(ret); err != nil {
		return nil, err
	}
	ret.SupportWeight = ret.ZapSupportWeight + ret.ParticipationSupportWeight
	ret.TotalVotes = ret.SupportWeight + ret.VetoWeight + ret.AbstainWeight
	ret.ThresholdMet = ret.TotalVotes >= threshold
	if zapTotal := ret.VetoWeight + ret.ZapSupportWeight; zapTotal > 0 {
		ret.ZapVetoPercent = ret.VetoWeight / zapTotal
	}
	ret.EconomicVetoBlocks, err = a.CheckEconomicVetoBlocking(proposalID, tier)
	if err != nil {
		return nil, err
	}
	ret.VetoBlocks = ret.EconomicVetoBlocks ||
		ret.ZapVetoPercent >= ZapVetoThreshold
	return ret, nil
}

// tallyVotes sums zap weights by type and the stored capped participation
// weight of every endorsing contributor
func (a *VoteAggregator) tallyVotes(ret *ProposalVotes) error {
	txn := a.e.db.MetadataTxn(false)
	defer txn.Release()
	zaps, err := a.e.db.GetZapVotes(ret.ProposalID, txn)
	if err != nil {
		return fmt.Errorf("failed to load zap votes: %w", err)
	}
	ret.ZapVoteCount = len(zaps)
	for _, z := range zaps {
		switch z.VoteType {
		case models.VoteTypeSupport:
			ret.ZapSupportWeight += z.VoteWeight
		case models.VoteTypeVeto:
			ret.VetoWeight += z.VoteWeight
		case models.VoteTypeAbstain:
			ret.AbstainWeight += z.VoteWeight
		}
	}
	participation, err := a.e.db.GetParticipationVotes(ret.ProposalID, txn)
	if err != nil {
		return fmt.Errorf("failed to load participation votes: %w", err)
	}
	for _, p := range participation {
		pw, err := a.e.db.GetParticipationWeight(p.ContributorID, txn)
		if err != nil {
			// Contributors without a computed weight count for nothing
			if errors.Is(err, models.ErrParticipationWeightNotFound) {
				continue
			}
			return err
		}
		// Already capped by the weight update
		ret.ParticipationSupportWeight += pw.CappedWeight
	}
	return nil
}

// CheckEconomicVetoBlocking reports whether an active economic node veto
// blocks a proposal. Tiers below 3 are never blocked by economic nodes.
func (a *VoteAggregator) CheckEconomicVetoBlocking(
	proposalID uint64,
	tier uint32,
) (bool, error) {
	if tier < EconomicVetoMinTier {
		return false, nil
	}
	if _, err := a.e.veto.GetVetoState(proposalID); err != nil {
		if errors.Is(err, ErrNoVetoState) {
			return false, nil
		}
		return false, err
	}
	veto, err := a.e.veto.CheckVetoThreshold(proposalID)
	if err != nil {
		return false, err
	}
	return veto.VetoActive, nil
}
