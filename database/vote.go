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

	"github.com/blinklabs-io/mergegate/database/models"
)

// AddZapVote stores a zap vote. Replaying the same governance event from the
// same sender yields models.ErrDuplicate.
func (d *Database) AddZapVote(vote *models.ZapVote, txn *Txn) error {
	if vote == nil {
		return errors.New("vote cannot be nil")
	}
	return d.metadataWrite(txn, func(txn *Txn) error {
		return d.metadata.AddZapVote(vote, txn.Metadata())
	})
}

func (d *Database) GetZapVotes(
	proposalID uint64,
	txn *Txn,
) ([]models.ZapVote, error) {
	if txn == nil {
		txn = d.MetadataTxn(false)
		defer txn.Release()
	}
	return d.metadata.GetZapVotes(proposalID, txn.Metadata())
}

// AddParticipationVote stores a participation vote. A contributor votes at
// most once per proposal.
func (d *Database) AddParticipationVote(
	vote *models.ParticipationVote,
	txn *Txn,
) error {
	if vote == nil {
		return errors.New("vote cannot be nil")
	}
	return d.metadataWrite(txn, func(txn *Txn) error {
		return d.metadata.AddParticipationVote(vote, txn.Metadata())
	})
}

func (d *Database) GetParticipationVotes(
	proposalID uint64,
	txn *Txn,
) ([]models.ParticipationVote, error) {
	if txn == nil {
		txn = d.MetadataTxn(false)
		defer txn.Release()
	}
	return d.metadata.GetParticipationVotes(proposalID, txn.Metadata())
}
