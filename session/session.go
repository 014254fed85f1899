// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package session schedules session rotation over block numbers.
package session

import (
	"github.com/pkg/errors"

	"github.com/vechain/npos/npos"
)

// Periodic ends a session every Period blocks, starting at block Offset.
type Periodic struct {
	Period uint32 `yaml:"period"`
	Offset uint32 `yaml:"offset"`
}

func (p Periodic) Validate() error {
	if p.Period == 0 {
		return errors.New("session period must be positive")
	}
	return nil
}

// ShouldEndSession reports if the session ends at block.
func (p Periodic) ShouldEndSession(block uint32) bool {
	return block >= p.Offset && (block-p.Offset)%p.Period == 0
}

// SessionAt returns the index of the session block belongs to.
func (p Periodic) SessionAt(block uint32) npos.SessionIndex {
	if block < p.Offset {
		return 0
	}
	return npos.SessionIndex((block-p.Offset)/p.Period + 1)
}

// Rotator receives session end signals.
type Rotator interface {
	EndSession(ended npos.SessionIndex) error
}

// Driver feeds block numbers to a Rotator according to a schedule.
type Driver struct {
	schedule Periodic
	rotator  Rotator
	current  npos.SessionIndex
}

// NewDriver starts at the given session.
func NewDriver(schedule Periodic, rotator Rotator, current npos.SessionIndex) *Driver {
	return &Driver{schedule: schedule, rotator: rotator, current: current}
}

// Current returns the running session.
func (d *Driver) Current() npos.SessionIndex {
	return d.current
}

// Reset moves the driver back to a running session, after its rotation was discarded.
func (d *Driver) Reset(current npos.SessionIndex) {
	d.current = current
}

// OnBlock ends the running session if the schedule says so.
// It returns true when a session ended.
func (d *Driver) OnBlock(block uint32) (bool, error) {
	if !d.schedule.ShouldEndSession(block) {
		return false, nil
	}
	if err := d.rotator.EndSession(d.current); err != nil {
		return false, errors.Wrapf(err, "end session %d", d.current)
	}
	d.current++
	return true, nil
}
