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

// Package status renders merge decisions as pull request status checks and
// hands them to a Poster
package status

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/blinklabs-io/mergegate/event"
	"github.com/blinklabs-io/mergegate/governance"
)

// Context is the status check context merge decisions are posted under
const Context = "governance/merge"

const (
	dryRunPrefix       = "[DRY-RUN] "
	allowedDescription = "Governance requirements met - merge allowed"
)

type State string

const (
	StateSuccess State = "success"
	StateFailure State = "failure"
)

// Check is a rendered status check for one proposal
type Check struct {
	State       State
	Context     string
	Description string
	ProposalID  uint64
}

// NewCheck renders a merge decision. A dry run marks the description but
// leaves the state as decided.
func NewCheck(
	proposalID uint64,
	shouldBlock bool,
	reason string,
	dryRun bool,
) Check {
	ret := Check{
		ProposalID:  proposalID,
		Context:     Context,
		State:       StateSuccess,
		Description: allowedDescription,
	}
	if shouldBlock {
		ret.State = StateFailure
		ret.Description = "Merge blocked: " + strings.TrimPrefix(
			reason,
			governance.BlockReasonPrefix,
		)
	}
	if dryRun {
		ret.Description = dryRunPrefix + ret.Description
	}
	return ret
}

// Poster delivers a status check to wherever pull requests live
type Poster interface {
	PostStatus(ctx context.Context, check Check) error
}

// LogPoster writes status checks to a logger. It is used when no forge
// integration is configured.
type LogPoster struct {
	logger *slog.Logger
}

func NewLogPoster(logger *slog.Logger) *LogPoster {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &LogPoster{logger: logger}
}

func (p *LogPoster) PostStatus(_ context.Context, check Check) error {
	p.logger.Info(
		"status check",
		"component", "status",
		"proposal_id", check.ProposalID,
		"context", check.Context,
		"state", string(check.State),
		"description", check.Description,
	)
	return nil
}

type PublisherConfig struct {
	EventBus *event.EventBus
	Poster   Poster
	Logger   *slog.Logger
	DryRun   bool
}

// Publisher posts a status check for every merge decision published on the
// event bus
type Publisher struct {
	config PublisherConfig
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	subId  event.EventSubscriberId
	mu     sync.Mutex
}

func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if cfg.EventBus == nil {
		return nil, errors.New("status publisher requires an event bus")
	}
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Poster == nil {
		cfg.Poster = NewLogPoster(cfg.Logger)
	}
	return &Publisher{
		config: cfg,
		logger: cfg.Logger,
	}, nil
}

// Start subscribes to merge decisions. Posting stops when ctx is done or
// Stop is called.
func (p *Publisher) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return errors.New("status publisher already started")
	}
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.subId = p.config.EventBus.SubscribeFunc(
		event.MergeDecidedEventType,
		p.handleMergeDecided,
	)
	return nil
}

func (p *Publisher) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel == nil {
		return
	}
	p.config.EventBus.Unsubscribe(event.MergeDecidedEventType, p.subId)
	p.cancel()
	p.cancel = nil
}

func (p *Publisher) handleMergeDecided(evt event.Event) {
	decided, ok := evt.Data.(event.MergeDecidedEvent)
	if !ok {
		p.logger.Warn(
			fmt.Sprintf("unexpected event data type %T", evt.Data),
			"component", "status",
		)
		return
	}
	p.mu.Lock()
	ctx := p.ctx
	p.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	check := NewCheck(
		decided.ProposalID,
		decided.ShouldBlock,
		decided.Reason,
		p.config.DryRun,
	)
	if err := p.config.Poster.PostStatus(ctx, check); err != nil {
		p.logger.Error(
			"failed to post status check",
			"component", "status",
			"proposal_id", decided.ProposalID,
			"error", err,
		)
	}
}
