// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package rewards

import (
	"bytes"
	"math"
	"sort"

	ethmath "github.com/ethereum/go-ethereum/common/math"

	"github.com/vechain/npos/npos"
)

// Points is the reward points of one validator.
type Points struct {
	Who    npos.Address
	Points uint64
}

// EraRewardPoints accumulates points of an era. Individual is sorted by address.
type EraRewardPoints struct {
	Total      uint64
	Individual []Points
}

// Of returns the points of who.
func (p *EraRewardPoints) Of(who npos.Address) uint64 {
	if i, ok := p.find(who); ok {
		return p.Individual[i].Points
	}
	return 0
}

// add credits points to who, saturating at the max uint64.
func (p *EraRewardPoints) add(who npos.Address, points uint64) {
	i, ok := p.find(who)
	if !ok {
		p.Individual = append(p.Individual, Points{})
		copy(p.Individual[i+1:], p.Individual[i:])
		p.Individual[i] = Points{Who: who}
	}
	p.Individual[i].Points = saturatingAdd(p.Individual[i].Points, points)
	p.Total = saturatingAdd(p.Total, points)
}

func (p *EraRewardPoints) find(who npos.Address) (int, bool) {
	i := sort.Search(len(p.Individual), func(i int) bool {
		return bytes.Compare(p.Individual[i].Who[:], who[:]) >= 0
	})
	return i, i < len(p.Individual) && p.Individual[i].Who == who
}

func saturatingAdd(a, b uint64) uint64 {
	sum, overflow := ethmath.SafeAdd(a, b)
	if overflow {
		return math.MaxUint64
	}
	return sum
}
