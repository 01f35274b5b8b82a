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

// AddEmergency records a newly activated emergency
func (s *Store) AddEmergency(
	emergency *models.ActiveEmergency,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	return createResult(db.Create(emergency))
}

// UpdateEmergency saves all fields of an existing emergency
func (s *Store) UpdateEmergency(
	emergency *models.ActiveEmergency,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	return db.Save(emergency).Error
}

// GetEmergency returns an emergency by ID, or nil
func (s *Store) GetEmergency(
	id string,
	txn types.Txn,
) (*models.ActiveEmergency, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	ret := &models.ActiveEmergency{}
	if result := db.First(ret, "id = ?", id); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return ret, nil
}

// GetOpenEmergencies returns the emergencies that have not been marked
// expired, most recently activated first
func (s *Store) GetOpenEmergencies(
	txn types.Txn,
) ([]models.ActiveEmergency, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.ActiveEmergency
	result := db.Where("expired_at IS NULL").
		Order("activated_at DESC").
		Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}
