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
	"errors"
	"fmt"
	"time"
)

var ErrContributorNotFound = errors.New("contributor not found")

type ContributorType uint8

const (
	ContributorTypeIndividual   ContributorType = 0
	ContributorTypeMiningPool   ContributorType = 1
	ContributorTypeExchange     ContributorType = 2
	ContributorTypeCustodian    ContributorType = 3
	ContributorTypeNodeOperator ContributorType = 4
)

func (t ContributorType) String() string {
	switch t {
	case ContributorTypeIndividual:
		return "individual"
	case ContributorTypeMiningPool:
		return "mining_pool"
	case ContributorTypeExchange:
		return "exchange"
	case ContributorTypeCustodian:
		return "custodian"
	case ContributorTypeNodeOperator:
		return "node_operator"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// ParseContributorType converts the string form back into a ContributorType
func ParseContributorType(s string) (ContributorType, error) {
	switch s {
	case "individual":
		return ContributorTypeIndividual, nil
	case "mining_pool":
		return ContributorTypeMiningPool, nil
	case "exchange":
		return ContributorTypeExchange, nil
	case "custodian":
		return ContributorTypeCustodian, nil
	case "node_operator":
		return ContributorTypeNodeOperator, nil
	}
	return 0, fmt.Errorf("unknown contributor type: %q", s)
}

// Contributor is created on the first recorded contribution. Rows are never
// removed, only deactivated.
type Contributor struct {
	CreatedAt time.Time
	ID        string          `gorm:"primarykey;size:128"`
	Type      ContributorType `gorm:"not null"`
	Active    bool            `gorm:"index;not null"`
}

// TableName returns the table name
func (Contributor) TableName() string {
	return "contributor"
}

type ContributionKind uint8

const (
	ContributionKindMergeMining   ContributionKind = 0
	ContributionKindFeeForwarding ContributionKind = 1
	ContributionKindZap           ContributionKind = 2
)

func (k ContributionKind) String() string {
	switch k {
	case ContributionKindMergeMining:
		return "merge_mining"
	case ContributionKindFeeForwarding:
		return "fee_forwarding"
	case ContributionKindZap:
		return "zap"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Contribution is a single verified contribution handed over by the ingestion
// layer. AgeDays is refreshed by every weight update run.
type Contribution struct {
	Timestamp     time.Time        `gorm:"index;not null"`
	ContributorID string           `gorm:"index;size:128;not null"`
	ProposalID    *uint64          `gorm:"index"` // set for zaps targeting a proposal
	ID            uint             `gorm:"primarykey"`
	AmountBtc     float64          `gorm:"not null"`
	AgeDays       int              `gorm:"not null"`
	Kind          ContributionKind `gorm:"index;not null"`
}

// TableName returns the table name
func (Contribution) TableName() string {
	return "contribution"
}
