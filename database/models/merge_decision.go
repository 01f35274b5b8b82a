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

import "time"

// MergeDecision indexes a decision snapshot kept in the blob store
type MergeDecision struct {
	DecidedAt     time.Time `gorm:"index;not null"`
	Reason        string    `gorm:"size:1024;not null"`
	BlobKey       []byte    `gorm:"size:64;not null"`
	ID            uint      `gorm:"primarykey"`
	ProposalID    uint64    `gorm:"index;not null"`
	Tier          uint32    `gorm:"not null"`
	ShouldBlock   bool      `gorm:"not null"`
	EmergencyMode bool      `gorm:"not null"`
}

// TableName returns the table name
func (MergeDecision) TableName() string {
	return "merge_decision"
}
