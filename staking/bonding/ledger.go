// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package bonding

import (
	"math/big"
	"sort"

	"github.com/vechain/npos/npos"
)

// perquintill is the accuracy of the proportional slash ratio.
var perquintill = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// UnlockChunk is an amount scheduled to become withdrawable at Era.
type UnlockChunk struct {
	Value *big.Int
	Era   npos.EraIndex
}

// Ledger is the bonding state of one stash.
// Total always equals Active plus the sum of the unlocking chunks.
type Ledger struct {
	Stash     npos.Address
	Total     *big.Int
	Active    *big.Int
	Unlocking []UnlockChunk
}

func newLedger(stash npos.Address, value *big.Int) *Ledger {
	return &Ledger{
		Stash:  stash,
		Total:  new(big.Int).Set(value),
		Active: new(big.Int).Set(value),
	}
}

// Clone returns a deep copy.
func (l *Ledger) Clone() *Ledger {
	cpy := &Ledger{
		Stash:  l.Stash,
		Total:  new(big.Int).Set(l.Total),
		Active: new(big.Int).Set(l.Active),
	}
	for _, c := range l.Unlocking {
		cpy.Unlocking = append(cpy.Unlocking, UnlockChunk{Value: new(big.Int).Set(c.Value), Era: c.Era})
	}
	return cpy
}

// UnlockingSum returns the sum of all unlocking chunks.
func (l *Ledger) UnlockingSum() *big.Int {
	sum := new(big.Int)
	for _, c := range l.Unlocking {
		sum.Add(sum, c.Value)
	}
	return sum
}

// IsConsistent reports if total == active + unlocking and active <= total.
func (l *Ledger) IsConsistent() bool {
	if l.Active.Sign() < 0 || l.Active.Cmp(l.Total) > 0 {
		return false
	}
	return new(big.Int).Add(l.Active, l.UnlockingSum()).Cmp(l.Total) == 0
}

// unbond moves value from active into the chunk unlocking at era.
// Chunks sharing an era are merged.
func (l *Ledger) unbond(value *big.Int, era npos.EraIndex, maxChunks uint32) bool {
	for i := range l.Unlocking {
		if l.Unlocking[i].Era == era {
			l.Unlocking[i].Value = new(big.Int).Add(l.Unlocking[i].Value, value)
			l.Active = new(big.Int).Sub(l.Active, value)
			return true
		}
	}
	if uint32(len(l.Unlocking)) >= maxChunks {
		return false
	}
	l.Unlocking = append(l.Unlocking, UnlockChunk{Value: new(big.Int).Set(value), Era: era})
	sort.SliceStable(l.Unlocking, func(i, j int) bool { return l.Unlocking[i].Era < l.Unlocking[j].Era })
	l.Active = new(big.Int).Sub(l.Active, value)
	return true
}

// consolidateUnlocked drops chunks unlocked at or before era and returns their sum.
func (l *Ledger) consolidateUnlocked(era npos.EraIndex) *big.Int {
	withdrawn := new(big.Int)
	kept := l.Unlocking[:0]
	for _, c := range l.Unlocking {
		if c.Era <= era {
			withdrawn.Add(withdrawn, c.Value)
		} else {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		kept = nil
	}
	l.Unlocking = kept
	l.Total = new(big.Int).Sub(l.Total, withdrawn)
	return withdrawn
}

// slash removes up to amount from the ledger and returns the slashed value.
// Active stake and the chunks unlocking at or after slashEra+bondingDuration
// are slashed proportionally. Whatever remains is taken from the older chunks,
// newest first. Any target left below minimumBalance is wiped as dust.
// The post-slash value of every touched chunk is returned keyed by era.
func (l *Ledger) slash(amount, minimumBalance *big.Int, slashEra npos.EraIndex, bondingDuration uint32) (*big.Int, map[npos.EraIndex]*big.Int) {
	chunks := make(map[npos.EraIndex]*big.Int)
	if amount.Sign() <= 0 {
		return new(big.Int), chunks
	}
	preSlashTotal := new(big.Int).Set(l.Total)
	remaining := new(big.Int).Set(amount)
	slashableStart := slashEra + npos.EraIndex(bondingDuration)

	var (
		ratio    *big.Int
		priority []int
	)
	first := -1
	for i, c := range l.Unlocking {
		if c.Era >= slashableStart {
			first = i
			break
		}
	}
	if first >= 0 {
		affected := new(big.Int).Set(l.Active)
		for i := first; i < len(l.Unlocking); i++ {
			affected.Add(affected, l.Unlocking[i].Value)
			priority = append(priority, i)
		}
		for i := first - 1; i >= 0; i-- {
			priority = append(priority, i)
		}
		if affected.Sign() > 0 && amount.Cmp(affected) < 0 {
			// ratio = ceil(amount / affected) in perquintill
			ratio = new(big.Int).Mul(amount, perquintill)
			ratio.Add(ratio, new(big.Int).Sub(affected, big.NewInt(1)))
			ratio.Quo(ratio, affected)
		} else {
			ratio = new(big.Int).Set(perquintill)
		}
	} else {
		for i := len(l.Unlocking) - 1; i >= 0; i-- {
			priority = append(priority, i)
		}
	}

	slashOutOf := func(target *big.Int) *big.Int {
		var take *big.Int
		if ratio != nil {
			take = new(big.Int).Mul(target, ratio)
			take.Add(take, new(big.Int).Sub(perquintill, big.NewInt(1)))
			take.Quo(take, perquintill)
		} else {
			take = new(big.Int).Set(remaining)
		}
		if take.Cmp(target) > 0 {
			take.Set(target)
		}
		if take.Cmp(remaining) > 0 {
			take.Set(remaining)
		}
		left := new(big.Int).Sub(target, take)
		if left.Cmp(minimumBalance) < 0 {
			take.Add(take, left)
			left.SetUint64(0)
		}
		l.Total = new(big.Int).Sub(l.Total, take)
		remaining.Sub(remaining, take)
		if remaining.Sign() < 0 {
			remaining.SetUint64(0)
		}
		return left
	}

	l.Active = slashOutOf(l.Active)
	for _, i := range priority {
		if remaining.Sign() == 0 {
			break
		}
		l.Unlocking[i].Value = slashOutOf(l.Unlocking[i].Value)
		chunks[l.Unlocking[i].Era] = new(big.Int).Set(l.Unlocking[i].Value)
	}

	kept := l.Unlocking[:0]
	for _, c := range l.Unlocking {
		if c.Value.Sign() > 0 {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		kept = nil
	}
	l.Unlocking = kept

	return new(big.Int).Sub(preSlashTotal, l.Total), chunks
}
