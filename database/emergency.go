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

func (d *Database) AddEmergency(
	emergency *models.ActiveEmergency,
	txn *Txn,
) error {
	if emergency == nil {
		return errors.New("emergency cannot be nil")
	}
	return d.metadataWrite(txn, func(txn *Txn) error {
		return d.metadata.AddEmergency(emergency, txn.Metadata())
	})
}

func (d *Database) UpdateEmergency(
	emergency *models.ActiveEmergency,
	txn *Txn,
) error {
	if emergency == nil {
		return errors.New("emergency cannot be nil")
	}
	return d.metadataWrite(txn, func(txn *Txn) error {
		return d.metadata.UpdateEmergency(emergency, txn.Metadata())
	})
}

func (d *Database) GetEmergency(
	id string,
	txn *Txn,
) (*models.ActiveEmergency, error) {
	if txn == nil {
		txn = d.MetadataTxn(false)
		defer txn.Release()
	}
	ret, err := d.metadata.GetEmergency(id, txn.Metadata())
	if err != nil {
		return nil, err
	}
	if ret == nil {
		return nil, models.ErrEmergencyNotFound
	}
	return ret, nil
}

// GetOpenEmergencies returns emergencies the expiry sweep has not yet closed,
// newest first
func (d *Database) GetOpenEmergencies(
	txn *Txn,
) ([]models.ActiveEmergency, error) {
	if txn == nil {
		txn = d.MetadataTxn(false)
		defer txn.Release()
	}
	return d.metadata.GetOpenEmergencies(txn.Metadata())
}
