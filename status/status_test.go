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

package status_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/blinklabs-io/mergegate/event"
	"github.com/blinklabs-io/mergegate/internal/test/testutil"
	"github.com/blinklabs-io/mergegate/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type chanPoster struct {
	checks chan status.Check
	err    error
}

func (p *chanPoster) PostStatus(_ context.Context, check status.Check) error {
	p.checks <- check
	return p.err
}

func TestNewCheck(t *testing.T) {
	testDefs := []struct {
		name        string
		shouldBlock bool
		reason      string
		dryRun      bool
		state       status.State
		description string
	}{
		{
			name:        "allowed",
			reason:      "All governance requirements met",
			state:       status.StateSuccess,
			description: "Governance requirements met - merge allowed",
		},
		{
			name:        "blocked",
			shouldBlock: true,
			reason:      "Governance requirements not met: Review period requirement not met",
			state:       status.StateFailure,
			description: "Merge blocked: Review period requirement not met",
		},
		{
			name:        "blocked for several reasons",
			shouldBlock: true,
			reason:      "Governance requirements not met: Review period requirement not met, Signature threshold requirement not met",
			state:       status.StateFailure,
			description: "Merge blocked: Review period requirement not met, Signature threshold requirement not met",
		},
		{
			name:        "blocked dry run",
			shouldBlock: true,
			reason:      "Emergency mode: Signature threshold not met",
			dryRun:      true,
			state:       status.StateFailure,
			description: "[DRY-RUN] Merge blocked: Emergency mode: Signature threshold not met",
		},
		{
			name:        "allowed dry run",
			dryRun:      true,
			state:       status.StateSuccess,
			description: "[DRY-RUN] Governance requirements met - merge allowed",
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			check := status.NewCheck(42, testDef.shouldBlock, testDef.reason, testDef.dryRun)
			assert.Equal(t, uint64(42), check.ProposalID)
			assert.Equal(t, status.Context, check.Context)
			assert.Equal(t, testDef.state, check.State)
			assert.Equal(t, testDef.description, check.Description)
		})
	}
}

func TestPublisherPostsMergeDecisions(t *testing.T) {
	defer goleak.VerifyNone(t)
	bus := event.NewEventBus(nil, nil)
	defer bus.Stop()
	poster := &chanPoster{
		checks: make(chan status.Check, 2),
		err:    errors.New("forge unavailable"),
	}
	pub, err := status.NewPublisher(status.PublisherConfig{
		EventBus: bus,
		Poster:   poster,
		DryRun:   true,
	})
	require.NoError(t, err)
	require.NoError(t, pub.Start(context.Background()))
	assert.Error(t, pub.Start(context.Background()))

	bus.Publish(
		event.MergeDecidedEventType,
		event.NewEvent(event.MergeDecidedEventType, event.MergeDecidedEvent{
			ProposalID:  7,
			ShouldBlock: true,
			Reason:      "Governance requirements not met: Signature threshold requirement not met",
		}),
	)
	// A failing poster is logged, not retried
	check := testutil.RequireReceive[status.Check](t, poster.checks, 5*time.Second, "status check")
	assert.Equal(t, uint64(7), check.ProposalID)
	assert.Equal(t, status.StateFailure, check.State)
	assert.Equal(
		t,
		"[DRY-RUN] Merge blocked: Signature threshold requirement not met",
		check.Description,
	)

	pub.Stop()
	pub.Stop()
	bus.Publish(
		event.MergeDecidedEventType,
		event.NewEvent(event.MergeDecidedEventType, event.MergeDecidedEvent{ProposalID: 8}),
	)
	testutil.RequireNoReceive[status.Check](t, poster.checks, 100*time.Millisecond, "status check after stop")
}

func TestNewPublisherRequiresBus(t *testing.T) {
	_, err := status.NewPublisher(status.PublisherConfig{})
	assert.Error(t, err)
}

func TestLogPoster(t *testing.T) {
	poster := status.NewLogPoster(nil)
	assert.NoError(t, poster.PostStatus(
		context.Background(),
		status.NewCheck(1, false, "", false),
	))
}
