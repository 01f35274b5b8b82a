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
	"github.com/blinklabs-io/mergegate/database/models"
	"github.com/blinklabs-io/mergegate/database/types"
)

// AddMergeDecision indexes a merge decision snapshot
func (s *Store) AddMergeDecision(
	decision *models.MergeDecision,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	return createResult(db.Create(decision))
}

// GetMergeDecisions returns the decisions recorded for a proposal, oldest first
func (s *Store) GetMergeDecisions(
	proposalID uint64,
	txn types.Txn,
) ([]models.MergeDecision, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.MergeDecision
	result := db.Where("proposal_id = ?", proposalID).
		Order("decided_at, id").
		Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}
