// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package election

import (
	"bytes"
	"context"
	"math/big"
	"sort"

	"github.com/vechain/npos/npos"
)

// ApprovalStake elects the targets with the highest approval stake.
// Each voter's stake is split evenly across its elected targets, the
// remainder of the division goes to the first elected target it voted for.
type ApprovalStake struct{}

var _ Provider = ApprovalStake{}

func (ApprovalStake) Elect(_ context.Context, snapshot *Snapshot, bounds Bounds) (Supports, error) {
	approval := make(map[npos.Address]*big.Int, len(snapshot.Targets))
	for _, t := range snapshot.Targets {
		approval[t] = new(big.Int)
	}
	for _, v := range snapshot.Voters {
		for _, t := range dedup(v.Targets) {
			if a, ok := approval[t]; ok {
				a.Add(a, v.Stake)
			}
		}
	}

	ranked := make([]npos.Address, 0, len(approval))
	for t, a := range approval {
		if a.Sign() > 0 {
			ranked = append(ranked, t)
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if c := approval[ranked[i]].Cmp(approval[ranked[j]]); c != 0 {
			return c > 0
		}
		return bytes.Compare(ranked[i][:], ranked[j][:]) < 0
	})
	if uint32(len(ranked)) > bounds.MaxWinners {
		ranked = ranked[:bounds.MaxWinners]
	}
	if uint32(len(ranked)) < bounds.MinWinners || len(ranked) == 0 {
		return nil, ErrElectionFailed
	}

	winners := make(map[npos.Address]*Support, len(ranked))
	for _, w := range ranked {
		winners[w] = &Support{Winner: w, Total: new(big.Int)}
	}

	for _, v := range snapshot.Voters {
		var elected []npos.Address
		for _, t := range dedup(v.Targets) {
			if _, ok := winners[t]; ok {
				elected = append(elected, t)
			}
		}
		if len(elected) == 0 || v.Stake.Sign() == 0 {
			continue
		}
		share, rem := new(big.Int).QuoRem(v.Stake, big.NewInt(int64(len(elected))), new(big.Int))
		for i, t := range elected {
			value := new(big.Int).Set(share)
			if i == 0 {
				value.Add(value, rem)
			}
			if value.Sign() == 0 {
				continue
			}
			s := winners[t]
			s.Backers = append(s.Backers, Backing{Who: v.ID, Value: value})
		}
	}

	result := make(Supports, 0, len(ranked))
	for _, w := range ranked {
		s := winners[w]
		s.Backers = truncateBackers(w, s.Backers, bounds.MaxBackersPerWinner)
		for _, b := range s.Backers {
			s.Total.Add(s.Total, b.Value)
		}
		result = append(result, *s)
	}
	return result, nil
}

// truncateBackers keeps the winner's self vote and the largest other backers.
func truncateBackers(winner npos.Address, backers []Backing, limit uint32) []Backing {
	if uint32(len(backers)) <= limit {
		return backers
	}
	sort.SliceStable(backers, func(i, j int) bool {
		if (backers[i].Who == winner) != (backers[j].Who == winner) {
			return backers[i].Who == winner
		}
		if c := backers[i].Value.Cmp(backers[j].Value); c != 0 {
			return c > 0
		}
		return bytes.Compare(backers[i].Who[:], backers[j].Who[:]) < 0
	})
	return backers[:limit]
}

func dedup(targets []npos.Address) []npos.Address {
	seen := make(map[npos.Address]struct{}, len(targets))
	out := make([]npos.Address, 0, len(targets))
	for _, t := range targets {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
