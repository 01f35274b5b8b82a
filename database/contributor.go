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

package database

import (
	"errors"
	"fmt"

	"github.com/blinklabs-io/mergegate/database/models"
)

// GetContributor returns a contributor by ID
func (d *Database) GetContributor(
	id string,
	txn *Txn,
) (*models.Contributor, error) {
	if txn == nil {
		txn = d.MetadataTxn(false)
		defer txn.Release()
	}
	ret, err := d.metadata.GetContributor(id, txn.Metadata())
	if err != nil {
		return nil, err
	}
	if ret == nil {
		return nil, models.ErrContributorNotFound
	}
	return ret, nil
}

// GetContributors returns all known contributors, active or not
func (d *Database) GetContributors(txn *Txn) ([]models.Contributor, error) {
	if txn == nil {
		txn = d.MetadataTxn(false)
		defer txn.Release()
	}
	return d.metadata.GetContributors(txn.Metadata())
}

// SetContributor creates a contributor. An existing contributor with the same
// ID is left untouched.
func (d *Database) SetContributor(
	contributor *models.Contributor,
	txn *Txn,
) error {
	if contributor == nil {
		return errors.New("contributor cannot be nil")
	}
	return d.metadataWrite(txn, func(txn *Txn) error {
		return d.metadata.SetContributor(contributor, txn.Metadata())
	})
}

// SetContributorActive toggles whether a contributor takes part in weight
// updates
func (d *Database) SetContributorActive(
	id string,
	active bool,
	txn *Txn,
) error {
	return d.metadataWrite(txn, func(txn *Txn) error {
		return d.metadata.SetContributorActive(id, active, txn.Metadata())
	})
}

// AddContribution records a verified contribution
func (d *Database) AddContribution(
	contribution *models.Contribution,
	txn *Txn,
) error {
	if contribution == nil {
		return errors.New("contribution cannot be nil")
	}
	return d.metadataWrite(txn, func(txn *Txn) error {
		if err := d.metadata.AddContribution(contribution, txn.Metadata()); err != nil {
			return fmt.Errorf("failed to add contribution: %w", err)
		}
		return nil
	})
}

// GetContributions returns every recorded contribution
func (d *Database) GetContributions(txn *Txn) ([]models.Contribution, error) {
	if txn == nil {
		txn = d.MetadataTxn(false)
		defer txn.Release()
	}
	return d.metadata.GetContributions(txn.Metadata())
}

// SetContributionAges updates the age in days of the given contributions
func (d *Database) SetContributionAges(ages map[uint]int, txn *Txn) error {
	if len(ages) == 0 {
		return nil
	}
	return d.metadataWrite(txn, func(txn *Txn) error {
		return d.metadata.SetContributionAges(ages, txn.Metadata())
	})
}

// SetParticipationWeights upserts the weights computed by a weight update
func (d *Database) SetParticipationWeights(
	weights []models.ParticipationWeight,
	txn *Txn,
) error {
	if len(weights) == 0 {
		return nil
	}
	return d.metadataWrite(txn, func(txn *Txn) error {
		if err := d.metadata.SetParticipationWeights(weights, txn.Metadata()); err != nil {
			return fmt.Errorf("failed to set participation weights: %w", err)
		}
		return nil
	})
}

// GetParticipationWeight returns the stored weight for a contributor
func (d *Database) GetParticipationWeight(
	contributorID string,
	txn *Txn,
) (*models.ParticipationWeight, error) {
	if txn == nil {
		txn = d.MetadataTxn(false)
		defer txn.Release()
	}
	ret, err := d.metadata.GetParticipationWeight(contributorID, txn.Metadata())
	if err != nil {
		return nil, err
	}
	if ret == nil {
		return nil, models.ErrParticipationWeightNotFound
	}
	return ret, nil
}

// GetParticipationWeights returns every stored participation weight
func (d *Database) GetParticipationWeights(
	txn *Txn,
) ([]models.ParticipationWeight, error) {
	if txn == nil {
		txn = d.MetadataTxn(false)
		defer txn.Release()
	}
	return d.metadata.GetParticipationWeights(txn.Metadata())
}

// metadataWrite runs fn in txn, or in a new metadata transaction that is
// committed when fn succeeds
func (d *Database) metadataWrite(txn *Txn, fn func(*Txn) error) error {
	if txn != nil {
		return fn(txn)
	}
	return d.MetadataTxn(true).Do(fn)
}
