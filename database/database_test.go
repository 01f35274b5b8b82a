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

package database_test

import (
	"errors"
	"testing"
	"time"

	"github.com/blinklabs-io/mergegate/database"
	"github.com/blinklabs-io/mergegate/database/models"
	"github.com/blinklabs-io/mergegate/database/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDatabase(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.New(&database.Config{})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func TestContributorNotFound(t *testing.T) {
	db := newTestDatabase(t)
	_, err := db.GetContributor("nobody", nil)
	assert.ErrorIs(t, err, models.ErrContributorNotFound)
	_, err = db.GetParticipationWeight("nobody", nil)
	assert.ErrorIs(t, err, models.ErrParticipationWeightNotFound)
}

func TestContributionsAndWeights(t *testing.T) {
	db := newTestDatabase(t)
	now := time.Now().UTC()
	require.NoError(t, db.SetContributor(&models.Contributor{
		ID:        "alice",
		Type:      models.ContributorTypeIndividual,
		Active:    true,
		CreatedAt: now,
	}, nil))
	require.NoError(t, db.AddContribution(&models.Contribution{
		ContributorID: "alice",
		Kind:          models.ContributionKindMergeMining,
		AmountBtc:     1.5,
		Timestamp:     now,
	}, nil))
	contributions, err := db.GetContributions(nil)
	require.NoError(t, err)
	require.Len(t, contributions, 1)

	require.NoError(t, db.SetContributionAges(
		map[uint]int{contributions[0].ID: 12},
		nil,
	))
	require.NoError(t, db.SetParticipationWeights(
		[]models.ParticipationWeight{{
			ContributorID:       "alice",
			BaseWeight:          1.2,
			CappedWeight:        1.2,
			TotalSystemWeight:   1.2,
			UncappedTotalWeight: 1.2,
			UpdatedAt:           now,
		}},
		nil,
	))
	weight, err := db.GetParticipationWeight("alice", nil)
	require.NoError(t, err)
	assert.InDelta(t, 1.2, weight.CappedWeight, 1e-9)
	contributions, err = db.GetContributions(nil)
	require.NoError(t, err)
	assert.Equal(t, 12, contributions[0].AgeDays)

	require.NoError(t, db.SetContributorActive("alice", false, nil))
	contributor, err := db.GetContributor("alice", nil)
	require.NoError(t, err)
	assert.False(t, contributor.Active)
}

func TestTxnDoRollsBack(t *testing.T) {
	db := newTestDatabase(t)
	boom := errors.New("boom")
	err := db.MetadataTxn(true).Do(func(txn *database.Txn) error {
		if err := db.AddEconomicNode(&models.EconomicNode{
			EntityName:   "pool",
			PublicKey:    "02aa",
			RegisteredAt: time.Now().UTC(),
		}, txn); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	nodes, err := db.GetEconomicNodes(nil)
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestDuplicateEconomicNode(t *testing.T) {
	db := newTestDatabase(t)
	node := &models.EconomicNode{
		EntityName:   "pool",
		PublicKey:    "02bb",
		RegisteredAt: time.Now().UTC(),
	}
	require.NoError(t, db.AddEconomicNode(node, nil))
	dup := *node
	dup.ID = 0
	assert.ErrorIs(t, db.AddEconomicNode(&dup, nil), models.ErrDuplicate)
	got, err := db.GetEconomicNodeByPublicKey("02bb", nil)
	require.NoError(t, err)
	assert.Equal(t, node.ID, got.ID)
	_, err = db.GetEconomicNode(9999, nil)
	assert.ErrorIs(t, err, models.ErrEconomicNodeNotFound)
}

func TestMergeDecisionSnapshot(t *testing.T) {
	db := newTestDatabase(t)
	_, err := db.LatestMergeDecisionSnapshot(7, nil)
	assert.ErrorIs(t, err, types.ErrBlobKeyNotFound)

	base := time.Now().UTC()
	for i, snapshot := range []string{`{"n":1}`, `{"n":2}`} {
		decision := &models.MergeDecision{
			ProposalID: 7,
			Tier:       2,
			DecidedAt:  base.Add(time.Duration(i) * time.Second),
			Reason:     "All governance requirements met",
		}
		require.NoError(t, db.AddMergeDecision(decision, []byte(snapshot), nil))
		assert.NotEmpty(t, decision.BlobKey)
	}
	// Another proposal must not leak into the lookup
	require.NoError(t, db.AddMergeDecision(&models.MergeDecision{
		ProposalID: 8,
		DecidedAt:  base.Add(time.Hour),
	}, []byte(`{"n":3}`), nil))

	decisions, err := db.GetMergeDecisions(7, nil)
	require.NoError(t, err)
	require.Len(t, decisions, 2)
	snapshot, err := db.GetMergeDecisionSnapshot(&decisions[0], nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(snapshot))
	latest, err := db.LatestMergeDecisionSnapshot(7, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":2}`, string(latest))

	// Both stores carry the same commit timestamp after a joint commit
	metaTs, err := db.Metadata().GetCommitTimestamp()
	require.NoError(t, err)
	blobTs, err := db.Blob().GetCommitTimestamp()
	require.NoError(t, err)
	assert.Positive(t, metaTs)
	assert.Equal(t, metaTs, blobTs)
}

func TestVetoStateNotFound(t *testing.T) {
	db := newTestDatabase(t)
	_, err := db.GetPrVetoState(1, nil)
	assert.ErrorIs(t, err, models.ErrPrVetoStateNotFound)
	_, err = db.GetVetoSignal(1, 1, nil)
	assert.ErrorIs(t, err, models.ErrVetoSignalNotFound)
	_, err = db.GetEmergency("missing", nil)
	assert.ErrorIs(t, err, models.ErrEmergencyNotFound)
}

func TestMetricsRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	db, err := database.New(&database.Config{PromRegistry: reg})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.AddZapVote(&models.ZapVote{
		ProposalID:        1,
		GovernanceEventID: "evt",
		SenderPubkey:      "02cc",
		AmountBtc:         0.04,
		VoteWeight:        0.2,
		Timestamp:         time.Now().UTC(),
	}, nil))
	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["mergegate_database_commits_total"])
	assert.True(t, names["mergegate_blob_lsm_size_bytes"])
}

func TestUnknownPlugin(t *testing.T) {
	_, err := database.New(&database.Config{MetadataPlugin: "nope"})
	assert.Error(t, err)
}
