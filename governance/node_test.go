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
	"encoding/hex"
	"math"
	"testing"

	"github.com/blinklabs-io/mergegate/database/models"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateNodeWeight(t *testing.T) {
	testDefs := []struct {
		name     string
		nodeType models.NodeType
		q        NodeQualification
		expected float64
		err      error
	}{
		{
			name:     "mining pool",
			nodeType: models.NodeTypeMiningPool,
			q:        NodeQualification{HashpowerPercent: 25},
			expected: 0.25,
		},
		{
			name:     "mining pool at floor",
			nodeType: models.NodeTypeMiningPool,
			q:        NodeQualification{HashpowerPercent: 1},
			expected: 0.01,
		},
		{
			name:     "mining pool below floor",
			nodeType: models.NodeTypeMiningPool,
			q:        NodeQualification{HashpowerPercent: 0.5},
			err:      ErrInsufficientQualification,
		},
		{
			name:     "exchange at floor",
			nodeType: models.NodeTypeExchange,
			q:        NodeQualification{HoldingsBtc: 10_000, DailyVolumeUsd: 100_000_000},
			expected: 1.0,
		},
		{
			name:     "exchange below volume floor",
			nodeType: models.NodeTypeExchange,
			q:        NodeQualification{HoldingsBtc: 50_000, DailyVolumeUsd: 10_000_000},
			err:      ErrInsufficientQualification,
		},
		{
			name:     "custodian without volume",
			nodeType: models.NodeTypeCustodian,
			q:        NodeQualification{HoldingsBtc: 15_000},
			expected: 0.7,
		},
		{
			name:     "custodian below floor",
			nodeType: models.NodeTypeCustodian,
			q:        NodeQualification{HoldingsBtc: 9_999},
			err:      ErrInsufficientQualification,
		},
		{
			name:     "mining pool NaN hashpower",
			nodeType: models.NodeTypeMiningPool,
			q:        NodeQualification{HashpowerPercent: math.NaN()},
			err:      ErrInsufficientQualification,
		},
		{
			name:     "mining pool infinite hashpower",
			nodeType: models.NodeTypeMiningPool,
			q:        NodeQualification{HashpowerPercent: math.Inf(1)},
			err:      ErrInsufficientQualification,
		},
		{
			name:     "exchange NaN holdings",
			nodeType: models.NodeTypeExchange,
			q:        NodeQualification{HoldingsBtc: math.NaN(), DailyVolumeUsd: 200_000_000},
			err:      ErrInsufficientQualification,
		},
		{
			name:     "custodian NaN volume",
			nodeType: models.NodeTypeCustodian,
			q:        NodeQualification{HoldingsBtc: 20_000, DailyVolumeUsd: math.NaN()},
			err:      ErrInsufficientQualification,
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			weight, err := CalculateNodeWeight(testDef.nodeType, testDef.q)
			if testDef.err != nil {
				assert.ErrorIs(t, err, testDef.err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, testDef.expected, weight, 1e-12)
		})
	}
}

func TestRegisterNode(t *testing.T) {
	e := newTestEngine(t)
	key, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	reg := NodeRegistration{
		EntityName:    "pool-a",
		NodeType:      models.NodeTypeMiningPool,
		PublicKey:     "0x" + hex.EncodeToString(key.PubKey().SerializeUncompressed()),
		Qualification: NodeQualification{HashpowerPercent: 12},
	}
	node, err := e.Veto().RegisterNode(reg)
	require.NoError(t, err)
	assert.Equal(t, models.NodeStatusPending, node.Status)
	assert.Equal(t, hexPubKey(key), node.PublicKey)
	assert.InDelta(t, 0.12, node.Weight, 1e-12)

	// The same key in another encoding is still the same node
	reg.PublicKey = hexPubKey(key)
	_, err = e.Veto().RegisterNode(reg)
	assert.ErrorIs(t, err, ErrDuplicateNode)

	reg.PublicKey = "not-a-key"
	_, err = e.Veto().RegisterNode(reg)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	other, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	reg.PublicKey = hexPubKey(other)
	reg.Qualification = NodeQualification{HashpowerPercent: math.NaN()}
	_, err = e.Veto().RegisterNode(reg)
	assert.ErrorIs(t, err, ErrInsufficientQualification)

	nodes, err := e.Veto().ListNodes()
	require.NoError(t, err)
	assert.Len(t, nodes, 1)
}

func TestNodeLifecycle(t *testing.T) {
	e := newTestEngine(t)
	pool := addMiningPool(t, e, "pool-a", 5)
	assert.Equal(t, models.NodeStatusActive, pool.node.Status)
	require.NotNil(t, pool.node.LastVerifiedAt)

	node, err := e.Veto().RecalculateNodeWeight(
		pool.node.ID,
		NodeQualification{HashpowerPercent: 8},
	)
	require.NoError(t, err)
	assert.InDelta(t, 0.08, node.Weight, 1e-12)

	_, err = e.Veto().RecalculateNodeWeight(
		pool.node.ID,
		NodeQualification{HashpowerPercent: 0.2},
	)
	assert.ErrorIs(t, err, ErrInsufficientQualification)
	node, err = e.Veto().GetNode(pool.node.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.08, node.Weight, 1e-12)

	node, err = e.Veto().SuspendNode(pool.node.ID)
	require.NoError(t, err)
	assert.Equal(t, models.NodeStatusSuspended, node.Status)

	_, err = e.Veto().GetNode(404)
	assert.ErrorIs(t, err, ErrNodeNotFound)
	_, err = e.Veto().ActivateNode(404)
	assert.ErrorIs(t, err, ErrNodeNotFound)
}
