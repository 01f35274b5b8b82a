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
	"time"
)

var ErrParticipationWeightNotFound = errors.New("participation weight not found")

// ParticipationWeight is the per-contributor result of the most recent weight
// update run. Every row written by a run carries the same system totals.
type ParticipationWeight struct {
	UpdatedAt            time.Time `gorm:"not null"`
	ContributorID        string    `gorm:"uniqueIndex;size:128;not null"`
	ID                   uint      `gorm:"primarykey"`
	MergeMiningBtc       float64   `gorm:"not null"`
	FeeForwardingBtc     float64   `gorm:"not null"`
	CumulativeZapsBtc    float64   `gorm:"not null"`
	TotalContributionBtc float64   `gorm:"not null"`
	BaseWeight           float64   `gorm:"not null"`
	CappedWeight         float64   `gorm:"not null"`
	TotalSystemWeight    float64   `gorm:"not null"` // sum of capped weights
	UncappedTotalWeight  float64   `gorm:"not null"` // sum of base weights
}

// TableName returns the table name
func (ParticipationWeight) TableName() string {
	return "participation_weight"
}
