// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package health

import (
	"sync"
	"time"

	"github.com/vechain/npos/npos"
)

type BlockProduction struct {
	Number    *uint32    `json:"number"`
	Timestamp *time.Time `json:"timestamp"`
}

type Status struct {
	Healthy         bool              `json:"healthy"`
	BlockProduction *BlockProduction  `json:"blockProduction"`
	Session         npos.SessionIndex `json:"session"`
	ElectionFault   bool              `json:"electionFault"`
}

// Health tracks block production. The node is healthy when a block was produced within the tolerance
// and the last session ended without an election fault.
type Health struct {
	lock      sync.RWMutex
	tolerance time.Duration
	now       func() time.Time

	lastBlock     time.Time
	number        *uint32
	session       npos.SessionIndex
	electionFault bool
}

func New(tolerance time.Duration) *Health {
	return &Health{tolerance: tolerance, now: time.Now}
}

func (h *Health) NewBlock(number uint32) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.lastBlock = h.now()
	h.number = &number
}

// SessionEnded records the outcome of a session rotation.
func (h *Health) SessionEnded(started npos.SessionIndex, fault bool) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.session = started
	h.electionFault = fault
}

func (h *Health) Status() *Status {
	h.lock.RLock()
	defer h.lock.RUnlock()

	production := &BlockProduction{Number: h.number}
	if h.number != nil {
		ts := h.lastBlock
		production.Timestamp = &ts
	}
	healthy := h.number != nil &&
		h.now().Sub(h.lastBlock) <= h.tolerance &&
		!h.electionFault

	return &Status{
		Healthy:         healthy,
		BlockProduction: production,
		Session:         h.session,
		ElectionFault:   h.electionFault,
	}
}
