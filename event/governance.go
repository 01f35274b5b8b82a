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

package event

import "time"

const (
	WeightsUpdatedEventType      = EventType("governance.weights_updated")
	VetoSignalCollectedEventType = EventType("governance.veto_signal_collected")
	VetoStateChangedEventType    = EventType("governance.veto_state_changed")
	EmergencyActivatedEventType  = EventType("governance.emergency_activated")
	EmergencyExtendedEventType   = EventType("governance.emergency_extended")
	EmergencyExpiredEventType    = EventType("governance.emergency_expired")
	MergeDecidedEventType        = EventType("governance.merge_decided")
)

// WeightsUpdatedEvent is emitted after participation weights are recomputed
type WeightsUpdatedEvent struct {
	UpdatedAt           time.Time
	Contributors        int
	TotalSystemWeight   float64
	UncappedTotalWeight float64
}

// VetoSignalCollectedEvent is emitted once a node signal has been stored
type VetoSignalCollectedEvent struct {
	EntityName string
	SignalType string
	ProposalID uint64
	NodeID     uint
	Weight     float64
}

// VetoStateChangedEvent is emitted when the veto state of a proposal is
// created or changes
type VetoStateChangedEvent struct {
	ReviewPeriodEndsAt  *time.Time
	ResolutionPath      string
	ProposalID          uint64
	MiningVetoPercent   float64
	EconomicVetoPercent float64
	ThresholdMet        bool
	VetoActive          bool
}

// EmergencyActivatedEvent is emitted when a keyholder quorum activates an
// emergency
type EmergencyActivatedEvent struct {
	ExpiresAt   time.Time
	EmergencyID string
	ActivatedBy string
	Tier        uint8
}

// EmergencyExtendedEvent is emitted after a successful extension
type EmergencyExtendedEvent struct {
	ExpiresAt      time.Time
	EmergencyID    string
	ExtensionCount uint32
	Tier           uint8
}

// EmergencyExpiredEvent is emitted when the expiry sweep closes an emergency
type EmergencyExpiredEvent struct {
	ExpiredAt   time.Time
	EmergencyID string
	Tier        uint8
}

// MergeDecidedEvent is emitted for every merge evaluation
type MergeDecidedEvent struct {
	DecidedAt     time.Time
	Reason        string
	ProposalID    uint64
	Tier          uint32
	ShouldBlock   bool
	EmergencyMode bool
}
