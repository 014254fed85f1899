// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package election

import (
	"context"
	"sync"
)

// Delayed wraps a provider whose result only becomes available after a number of polls,
// emulating an election computed over several blocks.
type Delayed struct {
	Inner Provider

	mu      sync.Mutex
	pending map[uint32]int
	polls   int
}

// NewDelayed returns a provider answering ErrDataUnavailable for the first polls of every era.
func NewDelayed(inner Provider, polls int) *Delayed {
	return &Delayed{Inner: inner, polls: polls, pending: make(map[uint32]int)}
}

func (d *Delayed) Elect(ctx context.Context, snapshot *Snapshot, bounds Bounds) (Supports, error) {
	d.mu.Lock()
	seen := d.pending[uint32(snapshot.Era)]
	d.pending[uint32(snapshot.Era)] = seen + 1
	d.mu.Unlock()

	if seen < d.polls {
		return nil, ErrDataUnavailable
	}
	return d.Inner.Elect(ctx, snapshot, bounds)
}

// Func adapts a function to a Provider.
type Func func(ctx context.Context, snapshot *Snapshot, bounds Bounds) (Supports, error)

func (f Func) Elect(ctx context.Context, snapshot *Snapshot, bounds Bounds) (Supports, error) {
	return f(ctx, snapshot, bounds)
}
