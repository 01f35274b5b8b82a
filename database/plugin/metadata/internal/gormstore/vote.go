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

// AddZapVote inserts a verified zap vote
func (s *Store) AddZapVote(vote *models.ZapVote, txn types.Txn) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	return createResult(db.Create(vote))
}

// GetZapVotes returns the zap votes cast on a proposal
func (s *Store) GetZapVotes(
	proposalID uint64,
	txn types.Txn,
) ([]models.ZapVote, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.ZapVote
	result := db.Where("proposal_id = ?", proposalID).Order("id").Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// AddParticipationVote inserts a participation vote
func (s *Store) AddParticipationVote(
	vote *models.ParticipationVote,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	return createResult(db.Create(vote))
}

// GetParticipationVotes returns the participation votes cast on a proposal
func (s *Store) GetParticipationVotes(
	proposalID uint64,
	txn types.Txn,
) ([]models.ParticipationVote, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.ParticipationVote
	result := db.Where("proposal_id = ?", proposalID).Order("id").Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}
