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

package models

import (
	"fmt"
	"time"
)

type VoteType uint8

const (
	VoteTypeSupport VoteType = 0
	VoteTypeVeto    VoteType = 1
	VoteTypeAbstain VoteType = 2
)

func (t VoteType) String() string {
	switch t {
	case VoteTypeSupport:
		return "support"
	case VoteTypeVeto:
		return "veto"
	case VoteTypeAbstain:
		return "abstain"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// ParseVoteType converts the string form back into a VoteType
func ParseVoteType(s string) (VoteType, error) {
	switch s {
	case "support":
		return VoteTypeSupport, nil
	case "veto":
		return VoteTypeVeto, nil
	case "abstain":
		return VoteTypeAbstain, nil
	}
	return 0, fmt.Errorf("unknown vote type: %q", s)
}

// ZapVote is a verified zap cast on a proposal. Rows are immutable.
type ZapVote struct {
	Timestamp         time.Time `gorm:"not null"`
	GovernanceEventID string    `gorm:"uniqueIndex:idx_zap_vote_unique,priority:2;size:128;not null"`
	SenderPubkey      string    `gorm:"uniqueIndex:idx_zap_vote_unique,priority:3;size:130;not null"`
	ID                uint      `gorm:"primarykey"`
	ProposalID        uint64    `gorm:"index;uniqueIndex:idx_zap_vote_unique,priority:1;not null"`
	AmountBtc         float64   `gorm:"not null"`
	VoteWeight        float64   `gorm:"not null"`
	VoteType          VoteType  `gorm:"not null"`
}

// TableName returns the table name
func (ZapVote) TableName() string {
	return "proposal_zap_vote"
}

// ParticipationVote is a contributor endorsing a proposal with their standing
// participation weight. It only counts as support.
type ParticipationVote struct {
	Timestamp     time.Time `gorm:"not null"`
	ContributorID string    `gorm:"uniqueIndex:idx_participation_vote_unique,priority:2;size:128;not null"`
	ID            uint      `gorm:"primarykey"`
	ProposalID    uint64    `gorm:"index;uniqueIndex:idx_participation_vote_unique,priority:1;not null"`
}

// TableName returns the table name
func (ParticipationVote) TableName() string {
	return "participation_vote"
}
