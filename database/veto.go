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

// AddVetoSignal stores a signal. A second signal from the same node on the
// same proposal yields models.ErrDuplicate.
func (d *Database) AddVetoSignal(signal *models.VetoSignal, txn *Txn) error {
	if signal == nil {
		return errors.New("signal cannot be nil")
	}
	return d.metadataWrite(txn, func(txn *Txn) error {
		return d.metadata.AddVetoSignal(signal, txn.Metadata())
	})
}

func (d *Database) GetVetoSignal(
	proposalID uint64,
	nodeID uint,
	txn *Txn,
) (*models.VetoSignal, error) {
	if txn == nil {
		txn = d.MetadataTxn(false)
		defer txn.Release()
	}
	ret, err := d.metadata.GetVetoSignal(proposalID, nodeID, txn.Metadata())
	if err != nil {
		return nil, err
	}
	if ret == nil {
		return nil, models.ErrVetoSignalNotFound
	}
	return ret, nil
}

func (d *Database) GetVetoSignals(
	proposalID uint64,
	txn *Txn,
) ([]models.VetoSignal, error) {
	if txn == nil {
		txn = d.MetadataTxn(false)
		defer txn.Release()
	}
	return d.metadata.GetVetoSignals(proposalID, txn.Metadata())
}

func (d *Database) GetPrVetoState(
	proposalID uint64,
	txn *Txn,
) (*models.PrVetoState, error) {
	if txn == nil {
		txn = d.MetadataTxn(false)
		defer txn.Release()
	}
	ret, err := d.metadata.GetPrVetoState(proposalID, txn.Metadata())
	if err != nil {
		return nil, err
	}
	if ret == nil {
		return nil, models.ErrPrVetoStateNotFound
	}
	return ret, nil
}

// GetActivePrVetoStates returns the states with an active veto
func (d *Database) GetActivePrVetoStates(
	txn *Txn,
) ([]models.PrVetoState, error) {
	if txn == nil {
		txn = d.MetadataTxn(false)
		defer txn.Release()
	}
	return d.metadata.GetActivePrVetoStates(txn.Metadata())
}

// SetPrVetoState inserts or updates the veto state of a proposal
func (d *Database) SetPrVetoState(state *models.PrVetoState, txn *Txn) error {
	if state == nil {
		return errors.New("veto state cannot be nil")
	}
	return d.metadataWrite(txn, func(txn *Txn) error {
		return d.metadata.SetPrVetoState(state, txn.Metadata())
	})
}
