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

// AddEconomicNode registers a node. A duplicate public key yields
// models.ErrDuplicate.
func (d *Database) AddEconomicNode(node *models.EconomicNode, txn *Txn) error {
	if node == nil {
		return errors.New("node cannot be nil")
	}
	return d.metadataWrite(txn, func(txn *Txn) error {
		return d.metadata.AddEconomicNode(node, txn.Metadata())
	})
}

// UpdateEconomicNode saves every field of an existing node
func (d *Database) UpdateEconomicNode(node *models.EconomicNode, txn *Txn) error {
	if node == nil {
		return errors.New("node cannot be nil")
	}
	return d.metadataWrite(txn, func(txn *Txn) error {
		return d.metadata.UpdateEconomicNode(node, txn.Metadata())
	})
}

func (d *Database) GetEconomicNode(
	id uint,
	txn *Txn,
) (*models.EconomicNode, error) {
	if txn == nil {
		txn = d.MetadataTxn(false)
		defer txn.Release()
	}
	ret, err := d.metadata.GetEconomicNode(id, txn.Metadata())
	if err != nil {
		return nil, err
	}
	if ret == nil {
		return nil, models.ErrEconomicNodeNotFound
	}
	return ret, nil
}

func (d *Database) GetEconomicNodeByPublicKey(
	publicKey string,
	txn *Txn,
) (*models.EconomicNode, error) {
	if txn == nil {
		txn = d.MetadataTxn(false)
		defer txn.Release()
	}
	ret, err := d.metadata.GetEconomicNodeByPublicKey(publicKey, txn.Metadata())
	if err != nil {
		return nil, err
	}
	if ret == nil {
		return nil, models.ErrEconomicNodeNotFound
	}
	return ret, nil
}

// GetEconomicNodes returns every registered node regardless of status
func (d *Database) GetEconomicNodes(txn *Txn) ([]models.EconomicNode, error) {
	if txn == nil {
		txn = d.MetadataTxn(false)
		defer txn.Release()
	}
	return d.metadata.GetEconomicNodes(txn.Metadata())
}

// GetEconomicNodesByIDs returns the nodes with the given IDs. Unknown IDs
// are skipped.
func (d *Database) GetEconomicNodesByIDs(
	ids []uint,
	txn *Txn,
) ([]models.EconomicNode, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if txn == nil {
		txn = d.MetadataTxn(false)
		defer txn.Release()
	}
	return d.metadata.GetEconomicNodesByIDs(ids, txn.Metadata())
}
