// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package election defines the contract between the staking engine and an election provider,
// and ships a reference provider ranking targets by approval stake.
package election

import (
	"context"
	"math/big"

	"github.com/pkg/errors"

	"github.com/vechain/npos/npos"
)

var (
	// ErrElectionFailed is returned when no valid result can be produced.
	ErrElectionFailed = errors.New("election failed")
	// ErrDataUnavailable is returned while the result is still being computed.
	ErrDataUnavailable = errors.New("election data unavailable")
)

// Voter is a stash voting for targets with its active stake.
// Validators vote for themselves.
type Voter struct {
	ID      npos.Address
	Stake   *big.Int
	Targets []npos.Address
}

// Snapshot is the input of an election.
type Snapshot struct {
	Era     npos.EraIndex
	Voters  []Voter
	Targets []npos.Address
}

// Bounds limit the size of an election result.
type Bounds struct {
	MaxWinners          uint32
	MinWinners          uint32
	MaxBackersPerWinner uint32
}

// Backing is the stake one voter assigns to a winner.
type Backing struct {
	Who   npos.Address
	Value *big.Int
}

// Support is the backing of one winner.
type Support struct {
	Winner  npos.Address
	Total   *big.Int
	Backers []Backing
}

// Supports is an election result.
type Supports []Support

// Provider computes election results.
// Elect may return ErrDataUnavailable, in which case the caller polls again later.
type Provider interface {
	Elect(ctx context.Context, snapshot *Snapshot, bounds Bounds) (Supports, error)
}

// Validate checks a result against the bounds and the snapshot targets.
func (s Supports) Validate(snapshot *Snapshot, bounds Bounds) error {
	if uint32(len(s)) > bounds.MaxWinners {
		return errors.Wrapf(ErrElectionFailed, "too many winners: %d > %d", len(s), bounds.MaxWinners)
	}
	if uint32(len(s)) < bounds.MinWinners {
		return errors.Wrapf(ErrElectionFailed, "too few winners: %d < %d", len(s), bounds.MinWinners)
	}
	targets := make(map[npos.Address]struct{}, len(snapshot.Targets))
	for _, t := range snapshot.Targets {
		targets[t] = struct{}{}
	}
	seen := make(map[npos.Address]struct{}, len(s))
	for _, support := range s {
		if _, ok := targets[support.Winner]; !ok {
			return errors.Wrapf(ErrElectionFailed, "winner %v is not a target", support.Winner)
		}
		if _, dup := seen[support.Winner]; dup {
			return errors.Wrapf(ErrElectionFailed, "duplicate winner %v", support.Winner)
		}
		seen[support.Winner] = struct{}{}
		if uint32(len(support.Backers)) > bounds.MaxBackersPerWinner {
			return errors.Wrapf(ErrElectionFailed, "winner %v has %d backers", support.Winner, len(support.Backers))
		}
	}
	return nil
}
