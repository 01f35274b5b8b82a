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

package gormstore

import (
	"errors"

	"github.com/blinklabs-io/mergegate/database/models"
	"github.com/blinklabs-io/mergegate/database/types"
	"gorm.io/gorm"
)

// AddVetoSignal inserts a veto signal. A second signal from the same node on
// the same proposal fails with models.ErrDuplicate.
func (s *Store) AddVetoSignal(
	signal *models.VetoSignal,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	return createResult(db.Create(signal))
}

// GetVetoSignal returns the signal of a node on a proposal, or nil
func (s *Store) GetVetoSignal(
	proposalID uint64,
	nodeID uint,
	txn types.Txn,
) (*models.VetoSignal, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	ret := &models.VetoSignal{}
	result := db.Where(
		"proposal_id = ? AND node_id = ?",
		proposalID,
		nodeID,
	).First(ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return ret, nil
}

// GetVetoSignals returns all signals cast on a proposal
func (s *Store) GetVetoSignals(
	proposalID uint64,
	txn types.Txn,
) ([]models.VetoSignal, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.VetoSignal
	result := db.Where("proposal_id = ?", proposalID).Order("id").Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// GetPrVetoState returns the veto state of a proposal, or nil
func (s *Store) GetPrVetoState(
	proposalID uint64,
	txn types.Txn,
) (*models.PrVetoState, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	ret := &models.PrVetoState{}
	if result := db.First(ret, "proposal_id = ?", proposalID); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return ret, nil
}

// GetActivePrVetoStates returns every veto state with an active veto
func (s *Store) GetActivePrVetoStates(
	txn types.Txn,
) ([]models.PrVetoState, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.PrVetoState
	result := db.Where("veto_active = ?", true).Order("proposal_id").Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// SetPrVetoState creates or updates the veto state of a proposal
func (s *Store) SetPrVetoState(
	state *models.PrVetoState,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	if state.ID == 0 {
		return createResult(db.Create(state))
	}
	return db.Save(state).Error
}
