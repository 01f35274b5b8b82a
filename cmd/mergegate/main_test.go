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

package main

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func setupCLIEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("MERGEGATE_DATABASE_PATH", dir)
	return dir
}

func TestVersionCommand(t *testing.T) {
	setupCLIEnv(t)
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "mergegate "))
}

func TestListCommand(t *testing.T) {
	setupCLIEnv(t)
	out, err := runCLI(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "sqlite")
	assert.Contains(t, out, "badger")
}

func TestDecideCommand(t *testing.T) {
	setupCLIEnv(t)
	out, err := runCLI(
		t,
		"decide",
		"--proposal", "5",
		"--tier", "2",
		"--review-period-met",
	)
	require.NoError(t, err)
	var decision struct {
		Reason      string `json:"reason"`
		ShouldBlock bool   `json:"should_block"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decision))
	assert.True(t, decision.ShouldBlock)
	assert.Equal(
		t,
		"Governance requirements not met: Signature threshold requirement not met",
		decision.Reason,
	)

	_, err = runCLI(t, "decide", "--tier", "2")
	assert.Error(t, err)
}

func TestVetoFlow(t *testing.T) {
	dir := setupCLIEnv(t)
	keyDir := dir + "/keys"

	out, err := runCLI(t, "keys", "generate", "pool-key", "--key-dir", keyDir)
	require.NoError(t, err)
	fields := strings.Fields(out)
	require.Len(t, fields, 2)
	pubKey := fields[1]

	out, err = runCLI(t, "keys", "list", "--key-dir", keyDir)
	require.NoError(t, err)
	assert.Contains(t, out, "pool-key "+pubKey)

	_, err = runCLI(
		t,
		"node", "register",
		"--name", "Example Pool",
		"--pubkey", pubKey,
		"--type", "mining_pool",
		"--hashpower", "12.5",
	)
	require.NoError(t, err)
	_, err = runCLI(t, "node", "activate", "1")
	require.NoError(t, err)

	out, err = runCLI(
		t,
		"keys", "sign-veto",
		"--key-dir", keyDir,
		"--key", "pool-key",
		"--proposal", "9",
		"--entity", "Example Pool",
	)
	require.NoError(t, err)
	signature := strings.TrimSpace(out)

	out, err = runCLI(
		t,
		"veto", "signal",
		"--proposal", "9",
		"--node", "1",
		"--type", "veto",
		"--signature", signature,
	)
	require.NoError(t, err)
	assert.Contains(t, out, `"threshold_met": true`)
	assert.Contains(t, out, `"veto_active": true`)

	// The node already signaled on this proposal
	_, err = runCLI(
		t,
		"veto", "signal",
		"--proposal", "9",
		"--node", "1",
		"--type", "support",
		"--signature", signature,
	)
	assert.Error(t, err)

	out, err = runCLI(t, "veto", "status", "--proposal", "9")
	require.NoError(t, err)
	assert.Contains(t, out, `"mining_veto_percent": 100`)
}

func TestEmergencyStatusWithoutEmergency(t *testing.T) {
	setupCLIEnv(t)
	out, err := runCLI(t, "emergency", "status")
	require.NoError(t, err)
	assert.Equal(t, "no active emergency\n", out)
}

func TestContributeAndAggregate(t *testing.T) {
	setupCLIEnv(t)
	out, err := runCLI(
		t,
		"contribute", "merge-mining",
		"--contributor", "alice",
		"--type", "mining_pool",
		"--amount", "4",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "recorded merge-mining")

	_, err = runCLI(t, "contribute", "zap", "--contributor", "alice", "--amount", "0.01", "--proposal", "0")
	require.Error(t, err)

	out, err = runCLI(t, "update-weights")
	require.NoError(t, err)
	var result struct {
		Contributors      int
		TotalSystemWeight float64
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 1, result.Contributors)
	assert.InDelta(t, 2.0, result.TotalSystemWeight, 1e-9)

	_, err = runCLI(t, "vote", "participate", "--proposal", "3", "--contributor", "alice")
	require.NoError(t, err)
	out, err = runCLI(t, "vote", "aggregate", "--proposal", "3", "--tier", "1")
	require.NoError(t, err)
	var votes struct {
		ParticipationSupportWeight float64
		VetoBlocks                 bool
	}
	require.NoError(t, json.Unmarshal([]byte(out), &votes))
	assert.InDelta(t, 2.0, votes.ParticipationSupportWeight, 1e-9)
	assert.False(t, votes.VetoBlocks)
}
