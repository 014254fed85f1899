// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staking

import (
	"math/big"
	"time"

	"github.com/pkg/errors"

	"github.com/vechain/npos/currency"
	"github.com/vechain/npos/election"
	"github.com/vechain/npos/npos"
	"github.com/vechain/npos/staking/rewards"
)

// Clock reports the time used to measure era durations.
type Clock interface {
	NowMillis() uint64
}

// ClockFunc adapts a function to a Clock.
type ClockFunc func() uint64

func (f ClockFunc) NowMillis() uint64 { return f() }

// WallClock reads the system time.
var WallClock = ClockFunc(func() uint64 { return uint64(time.Now().UnixMilli()) })

// Listener is notified of every ledger slash once applied.
// active is the stash's active stake left after the slash, chunks the post-slash value of every
// unlocking chunk that was hit, keyed by unlock era.
type Listener interface {
	OnSlash(stash npos.Address, active *big.Int, chunks map[npos.EraIndex]*big.Int, total *big.Int)
}

// ListenerFunc adapts a function to a Listener.
type ListenerFunc func(stash npos.Address, active *big.Int, chunks map[npos.EraIndex]*big.Int, total *big.Int)

func (f ListenerFunc) OnSlash(stash npos.Address, active *big.Int, chunks map[npos.EraIndex]*big.Int, total *big.Int) {
	f(stash, active, chunks, total)
}

// Filter tells the stashes barred from adding stake. Restricted stashes may still unbond
// and withdraw what they have bonded.
type Filter interface {
	Restricted(stash npos.Address) bool
}

// FilterFunc adapts a function to a Filter.
type FilterFunc func(stash npos.Address) bool

func (f FilterFunc) Restricted(stash npos.Address) bool { return f(stash) }

// Deps are the collaborators of the engine.
type Deps struct {
	Currency  currency.Currency
	Elections election.Provider
	Curve     rewards.Curve
	Clock     Clock
	Listener  Listener
	// Filter defaults to restricting no one.
	Filter Filter
	// RemainderAccount receives the part of the era inflation not paid to stakers.
	// The remainder is not minted when it is zero.
	RemainderAccount npos.Address
}

func (d *Deps) withDefaults() (Deps, error) {
	out := *d
	if out.Currency == nil {
		return out, errors.New("currency is required")
	}
	if out.Elections == nil {
		out.Elections = election.ApprovalStake{}
	}
	if out.Curve == nil {
		curve, err := rewards.NewNPoSCurve(rewards.DefaultCurveParams())
		if err != nil {
			return out, err
		}
		out.Curve = curve
	}
	if out.Clock == nil {
		out.Clock = WallClock
	}
	if out.Filter == nil {
		out.Filter = FilterFunc(func(npos.Address) bool { return false })
	}
	if out.Listener == nil {
		out.Listener = ListenerFunc(func(npos.Address, *big.Int, map[npos.EraIndex]*big.Int, *big.Int) {})
	}
	return out, nil
}
