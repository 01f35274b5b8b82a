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

var ErrEconomicNodeNotFound = errors.New("economic node not found")

// NodeType is the class of an economic node. Mining pools count toward the
// hashpower veto, exchanges and custodians toward the economic veto.
type NodeType uint8

const (
	NodeTypeMiningPool NodeType = 0
	NodeTypeExchange   NodeType = 1
	NodeTypeCustodian  NodeType = 2
)

func (t NodeType) String() string {
	switch t {
	case NodeTypeMiningPool:
		return "mining_pool"
	case NodeTypeExchange:
		return "exchange"
	case NodeTypeCustodian:
		return "custodian"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// ParseNodeType converts the string form back into a NodeType
func ParseNodeType(s string) (NodeType, error) {
	switch s {
	case "mining_pool":
		return NodeTypeMiningPool, nil
	case "exchange":
		return NodeTypeExchange, nil
	case "custodian":
		return NodeTypeCustodian, nil
	}
	return 0, fmt.Errorf("unknown node type: %q", s)
}

type NodeStatus uint8

const (
	NodeStatusPending   NodeStatus = 0
	NodeStatusActive    NodeStatus = 1
	NodeStatusSuspended NodeStatus = 2
)

func (s NodeStatus) String() string {
	switch s {
	case NodeStatusPending:
		return "pending"
	case NodeStatusActive:
		return "active"
	case NodeStatusSuspended:
		return "suspended"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// EconomicNode is a registered mining pool, exchange or custodian
type EconomicNode struct {
	RegisteredAt      time.Time  `gorm:"not null"`
	LastVerifiedAt    *time.Time
	EntityName        string     `gorm:"size:256;not null"`
	PublicKey         string     `gorm:"uniqueIndex;size:130;not null"` // hex encoded secp256k1 key
	ID                uint       `gorm:"primarykey"`
	Weight            float64    `gorm:"not null"`
	HashpowerPercent  float64    `gorm:"not null"`
	HoldingsBtc       float64    `gorm:"not null"`
	DailyVolumeUsd    float64    `gorm:"not null"`
	NodeType          NodeType   `gorm:"index;not null"`
	Status            NodeStatus `gorm:"index;not null"`
}

// TableName returns the table name
func (EconomicNode) TableName() string {
	return "economic_node"
}
