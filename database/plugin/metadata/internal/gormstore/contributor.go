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
	"gorm.io/gorm/clause"
)

// GetContributor returns a contributor by ID, or nil if it does not exist
func (s *Store) GetContributor(
	id string,
	txn types.Txn,
) (*models.Contributor, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	ret := &models.Contributor{}
	if result := db.First(ret, "id = ?", id); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return ret, nil
}

// GetContributors returns all contributors
func (s *Store) GetContributors(txn types.Txn) ([]models.Contributor, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.Contributor
	if result := db.Order("id").Find(&ret); result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// SetContributor creates the contributor if it does not already exist.
// Existing rows are left untouched.
func (s *Store) SetContributor(
	contributor *models.Contributor,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	return db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(contributor).
		Error
}

// SetContributorActive flips the active flag of a contributor
func (s *Store) SetContributorActive(
	id string,
	active bool,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	result := db.Model(&models.Contributor{}).
		Where("id = ?", id).
		Update("active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrContributorNotFound
	}
	return nil
}

// AddContribution records a single contribution
func (s *Store) AddContribution(
	contribution *models.Contribution,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	return createResult(db.Create(contribution))
}

// GetContributions returns every recorded contribution
func (s *Store) GetContributions(
	txn types.Txn,
) ([]models.Contribution, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.Contribution
	if result := db.Order("id").Find(&ret); result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// SetContributionAges updates the age in days of the given contributions,
// keyed by contribution ID
func (s *Store) SetContributionAges(
	ages map[uint]int,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	for id, age := range ages {
		result := db.Model(&models.Contribution{}).
			Where("id = ?", id).
			Update("age_days", age)
		if result.Error != nil {
			return result.Error
		}
	}
	return nil
}

// SetParticipationWeights upserts the given weight rows keyed by contributor
func (s *Store) SetParticipationWeights(
	weights []models.ParticipationWeight,
	txn types.Txn,
) error {
	if len(weights) == 0 {
		return nil
	}
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "contributor_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"updated_at",
			"merge_mining_btc",
			"fee_forwarding_btc",
			"cumulative_zaps_btc",
			"total_contribution_btc",
			"base_weight",
			"capped_weight",
			"total_system_weight",
			"uncapped_total_weight",
		}),
	}).CreateInBatches(weights, 100).Error
}

// GetParticipationWeight returns the weight row of a contributor, or nil
func (s *Store) GetParticipationWeight(
	contributorID string,
	txn types.Txn,
) (*models.ParticipationWeight, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	ret := &models.ParticipationWeight{}
	result := db.First(ret, "contributor_id = ?", contributorID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return ret, nil
}

// GetParticipationWeights returns all weight rows
func (s *Store) GetParticipationWeights(
	txn types.Txn,
) ([]models.ParticipationWeight, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.ParticipationWeight
	if result := db.Order("contributor_id").Find(&ret); result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}
