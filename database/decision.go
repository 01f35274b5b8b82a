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
	"github.com/blinklabs-io/mergegate/database/types"
)

// AddMergeDecision records a decision in the metadata store and keeps its
// full snapshot in the blob store. Both writes commit together.
func (d *Database) AddMergeDecision(
	decision *models.MergeDecision,
	snapshot []byte,
	txn *Txn,
) error {
	if decision == nil {
		return errors.New("decision cannot be nil")
	}
	decision.BlobKey = types.DecisionBlobKey(
		decision.ProposalID,
		decision.DecidedAt,
	)
	fn := func(txn *Txn) error {
		if err := d.blob.Set(txn.Blob(), decision.BlobKey, snapshot); err != nil {
			return fmt.Errorf("failed to store decision snapshot: %w", err)
		}
		if err := d.metadata.AddMergeDecision(decision, txn.Metadata()); err != nil {
			return fmt.Errorf("failed to add merge decision: %w", err)
		}
		return nil
	}
	if txn != nil {
		return fn(txn)
	}
	return d.Transaction(true).Do(fn)
}

// GetMergeDecisions returns the decisions recorded for a proposal, oldest first
func (d *Database) GetMergeDecisions(
	proposalID uint64,
	txn *Txn,
) ([]models.MergeDecision, error) {
	if txn == nil {
		txn = d.MetadataTxn(false)
		defer txn.Release()
	}
	return d.metadata.GetMergeDecisions(proposalID, txn.Metadata())
}

// GetMergeDecisionSnapshot returns the snapshot stored for a decision
func (d *Database) GetMergeDecisionSnapshot(
	decision *models.MergeDecision,
	txn *Txn,
) ([]byte, error) {
	if decision == nil {
		return nil, errors.New("decision cannot be nil")
	}
	if txn == nil {
		txn = d.BlobTxn(false)
		defer txn.Release()
	}
	return d.blob.Get(txn.Blob(), decision.BlobKey)
}

// LatestMergeDecisionSnapshot returns the most recent snapshot stored for a
// proposal, or types.ErrBlobKeyNotFound when there is none
func (d *Database) LatestMergeDecisionSnapshot(
	proposalID uint64,
	txn *Txn,
) ([]byte, error) {
	if txn == nil {
		txn = d.BlobTxn(false)
		defer txn.Release()
	}
	prefix := types.DecisionBlobKeyProposalPrefix(proposalID)
	it := d.blob.NewIterator(
		txn.Blob(),
		types.BlobIteratorOptions{Prefix: prefix, Reverse: true},
	)
	defer it.Close()
	// Reverse iteration starts from the last possible key for the prefix
	seekKey := append(append([]byte{}, prefix...), 0xff)
	it.Seek(seekKey)
	if err := it.Err(); err != nil {
		return nil, err
	}
	if !it.ValidForPrefix(prefix) {
		return nil, types.ErrBlobKeyNotFound
	}
	return it.Item().ValueCopy(nil)
}
