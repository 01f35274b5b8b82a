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
	"testing"
	"time"

	"github.com/blinklabs-io/mergegate/database"
	"github.com/blinklabs-io/mergegate/database/models"
	"github.com/blinklabs-io/mergegate/event"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/require"
)

var testEpoch = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

type testEngine struct {
	*Engine
	db    *database.Database
	clock *testClock
}

func newTestEngine(t *testing.T, mods ...func(*EngineConfig)) *testEngine {
	t.Helper()
	db, err := database.New(&database.Config{})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	clock := &testClock{now: testEpoch}
	cfg := EngineConfig{
		Database: db,
		Now:      clock.Now,
	}
	for _, mod := range mods {
		mod(&cfg)
	}
	e, err := NewEngine(cfg)
	require.NoError(t, err)
	return &testEngine{Engine: e, db: db, clock: clock}
}

func withEventBus(bus *event.EventBus) func(*EngineConfig) {
	return func(cfg *EngineConfig) {
		cfg.EventBus = bus
	}
}

type testNode struct {
	node *models.EconomicNode
	key  *secp256k1.PrivateKey
}

// signal signs and submits a signal from the node
func (n testNode) signal(
	t *testing.T,
	e *testEngine,
	proposalID uint64,
	signalType models.SignalType,
) error {
	t.Helper()
	sig := SignMessage(n.key, VetoSignalMessage(proposalID, n.node.EntityName))
	_, err := e.Veto().CollectVetoSignal(
		proposalID,
		n.node.ID,
		signalType,
		sig,
		"",
	)
	return err
}

// addActiveNode registers and activates a node with a fresh key
func addActiveNode(
	t *testing.T,
	e *testEngine,
	name string,
	nodeType models.NodeType,
	q NodeQualification,
) testNode {
	t.Helper()
	key, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	node, err := e.Veto().RegisterNode(NodeRegistration{
		EntityName:    name,
		NodeType:      nodeType,
		PublicKey:     hexPubKey(key),
		Qualification: q,
	})
	require.NoError(t, err)
	node, err = e.Veto().ActivateNode(node.ID)
	require.NoError(t, err)
	return testNode{node: node, key: key}
}

func addMiningPool(t *testing.T, e *testEngine, name string, hashpower float64) testNode {
	t.Helper()
	return addActiveNode(
		t,
		e,
		name,
		models.NodeTypeMiningPool,
		NodeQualification{HashpowerPercent: hashpower},
	)
}

func hexPubKey(key *secp256k1.PrivateKey) string {
	return hex.EncodeToString(key.PubKey().SerializeCompressed())
}

func hexString(b []byte) string {
	return hex.EncodeToString(b)
}
