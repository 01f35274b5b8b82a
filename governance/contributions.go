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
	"time"

	"github.com/blinklabs-io/mergegate/database"
	"github.com/blinklabs-io/mergegate/database/models"
)

// ContributionRecorder stores incoming contributions. Contributors are
// created on their first contribution.
type ContributionRecorder struct {
	e *Engine
}

func (r *ContributionRecorder) RecordMergeMiningContribution(
	contributorID string,
	contributorType models.ContributorType,
	amountBtc float64,
	timestamp time.Time,
) error {
	return r.record(
		contributorID,
		contributorType,
		models.ContributionKindMergeMining,
		amountBtc,
		nil,
		timestamp,
	)
}

func (r *ContributionRecorder) RecordFeeForwardingContribution(
	contributorID string,
	contributorType models.ContributorType,
	amountBtc float64,
	timestamp time.Time,
) error {
	return r.record(
		contributorID,
		contributorType,
		models.ContributionKindFeeForwarding,
		amountBtc,
		nil,
		timestamp,
	)
}

// RecordZapContribution stores a zap. A zap aimed at a proposal carries its
// ID.
func (r *ContributionRecorder) RecordZapContribution(
	contributorID string,
	amountBtc float64,
	proposalID *uint64,
	timestamp time.Time,
) error {
	return r.record(
		contributorID,
		models.ContributorTypeIndividual,
		models.ContributionKindZap,
		amountBtc,
		proposalID,
		timestamp,
	)
}

func (r *ContributionRecorder) record(
	contributorID string,
	contributorType models.ContributorType,
	kind models.ContributionKind,
	amountBtc float64,
	proposalID *uint64,
	timestamp time.Time,
) error {
	if contributorID == "" {
		return fmt.Errorf("%w: empty contributor id", ErrInvalidContribution)
	}
	if !isFinite(amountBtc) || amountBtc <= 0 {
		return fmt.Errorf(
			"%w: amount must be positive, got %f",
			ErrInvalidContribution,
			amountBtc,
		)
	}
	now := r.e.now()
	timestamp = timestamp.UTC()
	return r.e.db.MetadataTxn(true).Do(func(txn *database.Txn) error {
		_, err := r.e.db.GetContributor(contributorID, txn)
		if errors.Is(err, models.ErrContributorNotFound) {
			err = r.e.db.SetContributor(
				&models.Contributor{
					ID:        contributorID,
					Type:      contributorType,
					Active:    true,
					CreatedAt: now,
				},
				txn,
			)
		}
		if err != nil {
			return fmt.Errorf("failed to load contributor: %w", err)
		}
		return r.e.db.AddContribution(
			&models.Contribution{
				ContributorID: contributorID,
				Kind:          kind,
				AmountBtc:     amountBtc,
				ProposalID:    proposalID,
				Timestamp:     timestamp,
				AgeDays:       ageInDays(timestamp, now),
			},
			txn,
		)
	})
}

// ActivateContributor includes a contributor in future weight updates
func (r *ContributionRecorder) ActivateContributor(contributorID string) error {
	return r.setActive(contributorID, true)
}

// DeactivateContributor excludes a contributor from future weight updates.
// Contributors are never deleted.
func (r *ContributionRecorder) DeactivateContributor(contributorID string) error {
	return r.setActive(contributorID, false)
}

func (r *ContributionRecorder) setActive(contributorID string, active bool) error {
	return r.e.db.MetadataTxn(true).Do(func(txn *database.Txn) error {
		if _, err := r.e.db.GetContributor(contributorID, txn); err != nil {
			return err
		}
		return r.e.db.SetContributorActive(contributorID, active, txn)
	})
}
