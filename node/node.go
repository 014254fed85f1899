// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package node drives a staking engine with a local block clock.
package node

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/vechain/npos/eventdb"
	"github.com/vechain/npos/log"
	"github.com/vechain/npos/npos"
	"github.com/vechain/npos/session"
	"github.com/vechain/npos/staking"
	"github.com/vechain/npos/staking/rewards"
)

var logger = log.WithContext("pkg", "node")

// Options for Node.
type Options struct {
	// BlockInterval is the time between produced blocks.
	BlockInterval time.Duration
	Schedule      session.Periodic
	// PointsPerBlock is credited to the author of every block.
	PointsPerBlock uint64
}

// BlockHook runs inside the node lock after a block is produced, before the state is committed.
type BlockHook func(block uint32, s *staking.Staker) error

// TransitionHook runs inside the node lock after a session rotation.
type TransitionHook func(tr *staking.Transition)

// Node serializes all access to a staker. Blocks are produced by Run, or one by one with Produce.
type Node struct {
	opts   Options
	staker *staking.Staker
	events *eventdb.EventDB

	mu      sync.Mutex
	driver  *session.Driver
	block   uint32
	pending []*staking.Event
	last    *staking.Transition
	hooks   []BlockHook
	onTrans []TransitionHook
}

// New creates a node over an initialized staker. events may be nil.
func New(staker *staking.Staker, events *eventdb.EventDB, opts Options) (*Node, error) {
	if err := opts.Schedule.Validate(); err != nil {
		return nil, err
	}
	current, err := staker.CurrentSession()
	if err != nil {
		return nil, err
	}
	n := &Node{
		opts:   opts,
		staker: staker,
		events: events,
	}
	n.driver = session.NewDriver(opts.Schedule, staker.AsRotator(context.Background(), n.onTransition), current)
	return n, nil
}

// OnBlock registers a hook run on every produced block.
func (n *Node) OnBlock(hook BlockHook) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.hooks = append(n.hooks, hook)
}

// OnTransition registers a hook run on every session rotation.
func (n *Node) OnTransition(hook TransitionHook) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onTrans = append(n.onTrans, hook)
}

func (n *Node) onTransition(tr *staking.Transition) {
	n.last = tr
	for _, hook := range n.onTrans {
		hook(tr)
	}
	if tr.Fault != nil {
		logger.Warn("election fault, validator set kept", "session", tr.Ended, "err", tr.Fault)
	}
	if tr.EraStarted {
		logger.Info("era started", "era", tr.ActiveEra, "session", tr.Started, "validators", len(tr.Validators))
	} else {
		logger.Debug("session rotated", "ended", tr.Ended, "era", tr.ActiveEra)
	}
}

// View implements stakers.Backend.
func (n *Node) View(fn func(s *staking.Staker) error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return fn(n.staker)
}

// Update implements stakers.Backend.
func (n *Node) Update(fn func(s *staking.Staker) error) ([]*staking.Event, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := fn(n.staker); err != nil {
		return nil, err
	}
	events, err := n.commit(n.driver.Current())
	if err != nil {
		n.staker.Discard()
		return nil, err
	}
	return events, nil
}

// commit stores the new events under session, then persists the state.
// Archived rows of a session are replaced on every insert, so a block retried after
// a failed state commit overwrites what it archived before.
func (n *Node) commit(session npos.SessionIndex) ([]*staking.Event, error) {
	pending := n.pending
	if events := n.staker.Events(); len(events) > 0 {
		pending = append(pending[:len(pending):len(pending)], events...)
		if n.events != nil {
			if err := n.events.Insert(session, pending); err != nil {
				return nil, errors.Wrap(err, "store events")
			}
		}
	}
	events, err := n.staker.Commit()
	if err != nil {
		return nil, err
	}
	n.pending = pending
	return events, nil
}

// Block returns the number of the last produced block.
func (n *Node) Block() uint32 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.block
}

// LastTransition returns the latest session transition, nil if no session ended yet.
func (n *Node) LastTransition() *staking.Transition {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.last
}

// Produce produces the next block: its author earns points, then the session ends if the schedule says so.
// A block failing at any step leaves no trace, producing it again starts over.
func (n *Node) Produce() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	block := n.block + 1
	running := n.driver.Current()
	rotated, err := n.produce(block)
	if err == nil {
		_, err = n.commit(running)
	}
	if err != nil {
		n.staker.Discard()
		n.driver.Reset(running)
		metricFailedBlocks().Add(1)
		return errors.WithMessagef(err, "block %d", block)
	}
	if rotated {
		metricSessionEvents().Observe(int64(len(n.pending)))
		n.pending = nil
	}
	n.block = block
	metricBlocks().Add(1)
	return nil
}

func (n *Node) produce(block uint32) (bool, error) {
	if err := n.reward(block); err != nil {
		return false, err
	}
	for _, hook := range n.hooks {
		if err := hook(block, n.staker); err != nil {
			logger.Debug("block hook failed", "block", block, "err", err)
		}
	}
	return n.driver.OnBlock(block)
}

// reward credits the block author, picked round robin from the active validators not disabled.
func (n *Node) reward(block uint32) error {
	if n.opts.PointsPerBlock == 0 {
		return nil
	}
	active, err := n.staker.ActiveEra()
	if err != nil {
		return err
	}
	if active == nil {
		return staking.ErrNotInitialized
	}
	elected, err := n.staker.ElectedValidators(active.Index)
	if err != nil {
		return err
	}
	disabled, err := n.staker.DisabledValidators()
	if err != nil {
		return err
	}
	authors := make([]npos.Address, 0, len(elected))
	for _, v := range elected {
		if !slices.Contains(disabled, v) {
			authors = append(authors, v)
		}
	}
	if len(authors) == 0 {
		return nil
	}
	author := authors[int(block)%len(authors)]
	return n.staker.RewardByIDs([]rewards.Points{{Who: author, Points: n.opts.PointsPerBlock}})
}

// Run produces blocks until ctx is done, or the first failure.
func (n *Node) Run(ctx context.Context) error {
	ticker := time.NewTicker(n.opts.BlockInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := n.Produce(); err != nil {
				return errors.Wrap(err, "produce")
			}
		}
	}
}
