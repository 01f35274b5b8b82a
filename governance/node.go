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

	"github.com/blinklabs-io/mergegate/database"
	"github.com/blinklabs-io/mergegate/database/models"
)

// Qualification floors and weight normalization for economic nodes
const (
	MinMiningHashpowerPercent = 1.0
	MinHoldingsBtc            = 10_000.0
	MinExchangeDailyVolumeUsd = 100_000_000.0

	holdingsWeightShare = 0.70
	volumeWeightShare   = 0.30
)

// NodeQualification holds the figures a node's weight is derived from
type NodeQualification struct {
	HashpowerPercent float64
	HoldingsBtc      float64
	DailyVolumeUsd   float64
}

// NodeRegistration describes a node asking to take part in veto signaling
type NodeRegistration struct {
	EntityName    string
	PublicKey     string
	NodeType      models.NodeType
	Qualification NodeQualification
}

// CalculateNodeWeight derives the 0.0 to 1.0 weight of a node, rejecting
// nodes below their qualification floor
func CalculateNodeWeight(
	nodeType models.NodeType,
	q NodeQualification,
) (float64, error) {
	if !isFinite(q.HashpowerPercent) ||
		!isFinite(q.HoldingsBtc) ||
		!isFinite(q.DailyVolumeUsd) {
		return 0, fmt.Errorf(
			"%w: qualification figures must be finite",
			ErrInsufficientQualification,
		)
	}
	switch nodeType {
	case models.NodeTypeMiningPool:
		if q.HashpowerPercent < MinMiningHashpowerPercent {
			return 0, fmt.Errorf(
				"%w: hashpower %.2f%% below %.2f%%",
				ErrInsufficientQualification,
				q.HashpowerPercent,
				MinMiningHashpowerPercent,
			)
		}
		return math.Min(q.HashpowerPercent/100, 1), nil
	case models.NodeTypeExchange:
		if q.HoldingsBtc < MinHoldingsBtc ||
			q.DailyVolumeUsd < MinExchangeDailyVolumeUsd {
			return 0, fmt.Errorf(
				"%w: exchange needs %.0f BTC and $%.0f daily volume",
				ErrInsufficientQualification,
				MinHoldingsBtc,
				MinExchangeDailyVolumeUsd,
			)
		}
		return economicWeight(q), nil
	case models.NodeTypeCustodian:
		if q.HoldingsBtc < MinHoldingsBtc {
			return 0, fmt.Errorf(
				"%w: custodian needs %.0f BTC",
				ErrInsufficientQualification,
				MinHoldingsBtc,
			)
		}
		return economicWeight(q), nil
	default:
		return 0, fmt.Errorf("unknown node type: %s", nodeType)
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func economicWeight(q NodeQualification) float64 {
	holdings := math.Min(q.HoldingsBtc/MinHoldingsBtc, 1)
	volume := math.Min(q.DailyVolumeUsd/MinExchangeDailyVolumeUsd, 1)
	return holdingsWeightShare*holdings + volumeWeightShare*volume
}

// RegisterNode stores a new node in pending status
func (v *VetoEngine) RegisterNode(
	reg NodeRegistration,
) (*models.EconomicNode, error) {
	if reg.EntityName == "" {
		return nil, errors.New("entity name is required")
	}
	pubKey, err := NormalizePublicKeyHex(reg.PublicKey)
	if err != nil {
		return nil, err
	}
	weight, err := CalculateNodeWeight(reg.NodeType, reg.Qualification)
	if err != nil {
		return nil, err
	}
	node := &models.EconomicNode{
		EntityName:       reg.EntityName,
		NodeType:         reg.NodeType,
		PublicKey:        pubKey,
		Weight:           weight,
		Status:           models.NodeStatusPending,
		HashpowerPercent: reg.Qualification.HashpowerPercent,
		HoldingsBtc:      reg.Qualification.HoldingsBtc,
		DailyVolumeUsd:   reg.Qualification.DailyVolumeUsd,
		RegisteredAt:     v.e.now(),
	}
	err = v.e.db.MetadataTxn(true).Do(func(txn *database.Txn) error {
		_, err := v.e.db.GetEconomicNodeByPublicKey(pubKey, txn)
		if err == nil {
			return ErrDuplicateNode
		}
		if !errors.Is(err, models.ErrEconomicNodeNotFound) {
			return err
		}
		if err := v.e.db.AddEconomicNode(node, txn); err != nil {
			if errors.Is(err, models.ErrDuplicate) {
				return ErrDuplicateNode
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	v.e.logger.Info(
		"registered economic node",
		"node_id", node.ID,
		"entity", node.EntityName,
		"type", node.NodeType.String(),
		"weight", node.Weight,
	)
	return node, nil
}

// ActivateNode allows a node to signal
func (v *VetoEngine) ActivateNode(nodeID uint) (*models.EconomicNode, error) {
	return v.updateNode(nodeID, func(node *models.EconomicNode) error {
		node.Status = models.NodeStatusActive
		now := v.e.now()
		node.LastVerifiedAt = &now
		return nil
	})
}

// SuspendNode stops a node from signaling. Signals already cast keep
// counting.
func (v *VetoEngine) SuspendNode(nodeID uint) (*models.EconomicNode, error) {
	return v.updateNode(nodeID, func(node *models.EconomicNode) error {
		node.Status = models.NodeStatusSuspended
		return nil
	})
}

// RecalculateNodeWeight updates the qualification figures of a node and
// derives its weight again. Existing signals keep the weight they were cast
// with.
func (v *VetoEngine) RecalculateNodeWeight(
	nodeID uint,
	q NodeQualification,
) (*models.EconomicNode, error) {
	return v.updateNode(nodeID, func(node *models.EconomicNode) error {
		weight, err := CalculateNodeWeight(node.NodeType, q)
		if err != nil {
			return err
		}
		now := v.e.now()
		node.Weight = weight
		node.HashpowerPercent = q.HashpowerPercent
		node.HoldingsBtc = q.HoldingsBtc
		node.DailyVolumeUsd = q.DailyVolumeUsd
		node.LastVerifiedAt = &now
		return nil
	})
}

func (v *VetoEngine) GetNode(nodeID uint) (*models.EconomicNode, error) {
	node, err := v.e.db.GetEconomicNode(nodeID, nil)
	if err != nil {
		return nil, mapNodeError(err)
	}
	return node, nil
}

func (v *VetoEngine) ListNodes() ([]models.EconomicNode, error) {
	return v.e.db.GetEconomicNodes(nil)
}

func (v *VetoEngine) updateNode(
	nodeID uint,
	fn func(*models.EconomicNode) error,
) (*models.EconomicNode, error) {
	var node *models.EconomicNode
	err := v.e.db.MetadataTxn(true).Do(func(txn *database.Txn) error {
		var err error
		node, err = v.e.db.GetEconomicNode(nodeID, txn)
		if err != nil {
			return mapNodeError(err)
		}
		if err := fn(node); err != nil {
			return err
		}
		return v.e.db.UpdateEconomicNode(node, txn)
	})
	if err != nil {
		return nil, err
	}
	v.e.logger.Info(
		"updated economic node",
		"node_id", node.ID,
		"status", node.Status.String(),
		"weight", node.Weight,
	)
	return node, nil
}

func mapNodeError(err error) error {
	if errors.Is(err, models.ErrEconomicNodeNotFound) {
		return fmt.Errorf("%w: %w", ErrNodeNotFound, err)
	}
	return err
}
