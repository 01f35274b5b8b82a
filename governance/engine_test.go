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
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngineRequiresDatabase(t *testing.T) {
	_, err := NewEngine(EngineConfig{})
	assert.Error(t, err)
}

func TestNewEngineRejectsBadKeyholder(t *testing.T) {
	e := newTestEngine(t)
	_, err := NewEngine(EngineConfig{
		Database:   e.db,
		Keyholders: []string{"not-hex"},
	})
	assert.Error(t, err)
}

func TestEngineMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := newTestEngine(t, func(cfg *EngineConfig) {
		cfg.PromRegistry = reg
	})
	_, err := e.Weights().UpdateParticipationWeights()
	require.NoError(t, err)
	_, err = e.DecideMerge(MergeInput{ProposalID: 1, Tier: 1})
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["mergegate_weight_update_duration_seconds"])
	assert.True(t, names["mergegate_total_system_weight"])
	assert.True(t, names["mergegate_merge_decisions_total"])
}
