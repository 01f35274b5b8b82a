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

package postgres

import (
	"os"
	"testing"
	"time"

	"github.com/blinklabs-io/mergegate/database/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	db, err := NewWithOptions(
		WithHost("pg.internal"),
		WithUser("gov"),
		WithPassword("secret"),
		WithDatabase("governance"),
		WithTimeZone("UTC"),
	)
	require.NoError(t, err)
	assert.Equal(
		t,
		"host=pg.internal user=gov password=secret dbname=governance port=5432 sslmode=disable TimeZone=UTC",
		db.buildDSN(),
	)
	db, err = NewWithOptions(WithDSN("postgres://x@y/z"))
	require.NoError(t, err)
	assert.Equal(t, "postgres://x@y/z", db.buildDSN())
}

func TestCloseUnstarted(t *testing.T) {
	db, err := NewWithOptions()
	require.NoError(t, err)
	assert.NoError(t, db.Close())
}

// newTestPostgresStore skips unless POSTGRES_DSN points at a scratch database
func newTestPostgresStore(t *testing.T) *MetadataStorePostgres {
	t.Helper()
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("Skipping postgres integration test: POSTGRES_DSN not set")
	}
	store, err := NewWithOptions(WithDSN(dsn))
	require.NoError(t, err)
	require.NoError(t, store.Start())
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestPostgresVetoSignalUnique(t *testing.T) {
	store := newTestPostgresStore(t)
	// Integration databases may be reused between runs
	proposalID := uint64(time.Now().UnixNano())
	sig := &models.VetoSignal{
		Timestamp:  time.Now().UTC(),
		Signature:  "3045",
		ProposalID: proposalID,
		NodeID:     1,
		Weight:     0.2,
	}
	require.NoError(t, store.AddVetoSignal(sig, nil))
	dup := *sig
	dup.ID = 0
	assert.ErrorIs(t, store.AddVetoSignal(&dup, nil), models.ErrDuplicate)
	signals, err := store.GetVetoSignals(proposalID, nil)
	require.NoError(t, err)
	assert.Len(t, signals, 1)
}
