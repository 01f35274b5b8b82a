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

var (
	ErrVetoSignalNotFound  = errors.New("veto signal not found")
	ErrPrVetoStateNotFound = errors.New("veto state not found")
)

type SignalType uint8

const (
	SignalTypeVeto    SignalType = 0
	SignalTypeSupport SignalType = 1
)

func (t SignalType) String() string {
	switch t {
	case SignalTypeVeto:
		return "veto"
	case SignalTypeSupport:
		return "support"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// ParseSignalType converts the string form back into a SignalType
func ParseSignalType(s string) (SignalType, error) {
	switch s {
	case "veto":
		return SignalTypeVeto, nil
	case "support":
		return SignalTypeSupport, nil
	}
	return 0, fmt.Errorf("unknown signal type: %q", s)
}

// VetoSignal is the one and only signal a node may cast on a proposal
type VetoSignal struct {
	Timestamp  time.Time  `gorm:"not null"`
	Signature  string     `gorm:"size:256;not null"`
	Rationale  string     `gorm:"size:4096"`
	ID         uint       `gorm:"primarykey"`
	ProposalID uint64     `gorm:"uniqueIndex:idx_veto_signal_unique,priority:1;not null"`
	NodeID     uint       `gorm:"uniqueIndex:idx_veto_signal_unique,priority:2;not null"`
	Weight     float64    `gorm:"not null"`
	SignalType SignalType `gorm:"not null"`
}

// TableName returns the table name
func (VetoSignal) TableName() string {
	return "veto_signal"
}

type ResolutionPath uint8

const (
	ResolutionPathNone      ResolutionPath = 0
	ResolutionPathConsensus ResolutionPath = 1
	ResolutionPathOverride  ResolutionPath = 2
)

func (p ResolutionPath) String() string {
	switch p {
	case ResolutionPathNone:
		return "none"
	case ResolutionPathConsensus:
		return "consensus"
	case ResolutionPathOverride:
		return "override"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(p))
	}
}

// PrVetoState is the veto state machine record for a single proposal
type PrVetoState struct {
	UpdatedAt           time.Time
	VetoTriggeredAt     *time.Time
	ReviewPeriodEndsAt  *time.Time
	OverrideTimestamp   *time.Time
	OverrideBy          string         `gorm:"size:128"`
	ID                  uint           `gorm:"primarykey"`
	ProposalID          uint64         `gorm:"uniqueIndex;not null"`
	MiningVetoPercent   float64        `gorm:"not null"`
	EconomicVetoPercent float64        `gorm:"not null"`
	ThresholdMet        bool           `gorm:"not null"`
	VetoActive          bool           `gorm:"index;not null"`
	MaintainerOverride  bool           `gorm:"not null"`
	ResolutionPath      ResolutionPath `gorm:"not null"`
}

// TableName returns the table name
func (PrVetoState) TableName() string {
	return "pr_veto_state"
}
