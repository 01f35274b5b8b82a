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

var ErrEmergencyNotFound = errors.New("emergency not found")

// ActiveEmergency is an activated emergency. Only extension mutates it, and
// ExpiredAt is set once the expiry sweep has observed it past ExpiresAt.
type ActiveEmergency struct {
	ActivatedAt           time.Time `gorm:"index;not null"`
	ExpiresAt             time.Time `gorm:"not null"`
	PostMortemDeadline    time.Time `gorm:"not null"`
	SecurityAuditDeadline *time.Time
	ExpiredAt             *time.Time `gorm:"index"`
	ID                    string     `gorm:"primarykey;size:36"`
	ActivatedBy           string     `gorm:"size:128;not null"`
	Reason                string     `gorm:"size:1024;not null"`
	Evidence              string     `gorm:"type:text;not null"`
	ExtensionCount        uint32     `gorm:"not null"`
	Tier                  uint8      `gorm:"not null"`
}

// TableName returns the table name
func (ActiveEmergency) TableName() string {
	return "active_emergency"
}
