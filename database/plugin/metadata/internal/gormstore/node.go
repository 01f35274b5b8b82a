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

// AddEconomicNode registers a new economic node
func (s *Store) AddEconomicNode(
	node *models.EconomicNode,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	return createResult(db.Create(node))
}

// UpdateEconomicNode saves all fields of an existing economic node
func (s *Store) UpdateEconomicNode(
	node *models.EconomicNode,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	return db.Save(node).Error
}

// GetEconomicNode returns a node by ID, or nil if it does not exist
func (s *Store) GetEconomicNode(
	id uint,
	txn types.Txn,
) (*models.EconomicNode, error) {
	return s.firstEconomicNode(txn, "id = ?", id)
}

// GetEconomicNodeByPublicKey returns the node registered with the given key,
// or nil
func (s *Store) GetEconomicNodeByPublicKey(
	publicKey string,
	txn types.Txn,
) (*models.EconomicNode, error) {
	return s.firstEconomicNode(txn, "public_key = ?", publicKey)
}

func (s *Store) firstEconomicNode(
	txn types.Txn,
	query string,
	args ...any,
) (*models.EconomicNode, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	ret := &models.EconomicNode{}
	if result := db.Where(query, args...).First(ret); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return ret, nil
}

// GetEconomicNodes returns all registered nodes
func (s *Store) GetEconomicNodes(
	txn types.Txn,
) ([]models.EconomicNode, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.EconomicNode
	if result := db.Order("id").Find(&ret); result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// GetEconomicNodesByIDs returns the nodes with the given IDs
func (s *Store) GetEconomicNodesByIDs(
	ids []uint,
	txn types.Txn,
) ([]models.EconomicNode, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.EconomicNode
	if result := db.Where("id IN ?", ids).Order("id").Find(&ret); result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}
