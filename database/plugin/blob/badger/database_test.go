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

package badger

import (
	"testing"

	"github.com/blinklabs-io/mergegate/database/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, opts ...BlobStoreBadgerOptionFunc) *BlobStoreBadger {
	t.Helper()
	store, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestSetGetDelete(t *testing.T) {
	store := newTestStore(t)
	txn := store.NewTransaction(true)
	require.NoError(t, store.Set(txn, []byte("k1"), []byte("v1")))
	require.NoError(t, txn.Commit())

	rtxn := store.NewTransaction(false)
	val, err := store.Get(rtxn, []byte("k1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), val)
	_, err = store.Get(rtxn, []byte("missing"))
	assert.ErrorIs(t, err, types.ErrBlobKeyNotFound)
	require.NoError(t, rtxn.Rollback())

	txn = store.NewTransaction(true)
	require.NoError(t, store.Delete(txn, []byte("k1")))
	require.NoError(t, txn.Commit())
	rtxn = store.NewTransaction(false)
	defer rtxn.Rollback() //nolint:errcheck
	_, err = store.Get(rtxn, []byte("k1"))
	assert.ErrorIs(t, err, types.ErrBlobKeyNotFound)
}

func TestFinishedTxnRejected(t *testing.T) {
	store := newTestStore(t)
	txn := store.NewTransaction(true)
	require.NoError(t, txn.Rollback())
	// Finishing twice is harmless
	require.NoError(t, txn.Commit())
	assert.Error(t, store.Set(txn, []byte("k"), []byte("v")))
	assert.ErrorIs(t, store.Set(nil, []byte("k"), []byte("v")), types.ErrNilTxn)
}

func TestIteratorPrefixReverse(t *testing.T) {
	store := newTestStore(t)
	txn := store.NewTransaction(true)
	for _, k := range []string{"a1", "a2", "a3", "b1"} {
		require.NoError(t, store.Set(txn, []byte(k), []byte(k)))
	}
	require.NoError(t, txn.Commit())

	rtxn := store.NewTransaction(false)
	defer rtxn.Rollback() //nolint:errcheck
	it := store.NewIterator(
		rtxn,
		types.BlobIteratorOptions{Prefix: []byte("a"), Reverse: true},
	)
	defer it.Close()
	var keys []string
	// Reverse iteration seeks past the end of the prefix
	for it.Seek([]byte("a\xff")); it.ValidForPrefix([]byte("a")); it.Next() {
		keys = append(keys, string(it.Item().Key()))
	}
	require.NoError(t, it.Err())
	assert.Equal(t, []string{"a3", "a2", "a1"}, keys)
}

func TestErrorIterator(t *testing.T) {
	store := newTestStore(t)
	it := store.NewIterator(nil, types.BlobIteratorOptions{})
	assert.False(t, it.Valid())
	assert.ErrorIs(t, it.Err(), types.ErrNilTxn)
}

func TestCommitTimestamp(t *testing.T) {
	store := newTestStore(t)
	ts, err := store.GetCommitTimestamp()
	require.NoError(t, err)
	assert.Equal(t, int64(0), ts)

	txn := store.NewTransaction(true)
	require.NoError(t, store.SetCommitTimestamp(1700000000123, txn))
	require.NoError(t, txn.Commit())
	ts, err = store.GetCommitTimestamp()
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000123), ts)
}

func TestPersistentDataDir(t *testing.T) {
	dir := t.TempDir()
	store, err := New(WithDataDir(dir), WithGc(false))
	require.NoError(t, err)
	txn := store.NewTransaction(true)
	require.NoError(t, store.Set(txn, []byte("k"), []byte("v")))
	require.NoError(t, txn.Commit())
	require.NoError(t, store.Close())
	// Close is idempotent
	require.NoError(t, store.Close())

	store = newTestStore(t, WithDataDir(dir), WithGc(false))
	rtxn := store.NewTransaction(false)
	defer rtxn.Rollback() //nolint:errcheck
	val, err := store.Get(rtxn, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), val)
}

func TestMetricsRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	newTestStore(t, WithPromRegistry(reg))
	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "mergegate_blob_lsm_size_bytes")
	assert.Contains(t, names, "mergegate_blob_vlog_size_bytes")
}
