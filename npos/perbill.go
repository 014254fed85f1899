// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package npos

import (
	"fmt"
	"math/big"
)

// PerbillAccuracy is the denominator of a Perbill.
const PerbillAccuracy = 1_000_000_000

var bigPerbillAccuracy = big.NewInt(PerbillAccuracy)

// Perbill is a fraction in parts per billion, clamped to [0, 1].
// Slash fractions and validator commissions are expressed as Perbill.
type Perbill uint32

// PerbillOne is the fraction 1.
const PerbillOne = Perbill(PerbillAccuracy)

// PerbillFromPercent builds a Perbill from a whole percentage.
func PerbillFromPercent(p uint32) Perbill {
	if p >= 100 {
		return PerbillOne
	}
	return Perbill(p * 10_000_000)
}

// PerbillFromParts clamps parts to [0, 1e9].
func PerbillFromParts(parts uint32) Perbill {
	if parts > PerbillAccuracy {
		return PerbillOne
	}
	return Perbill(parts)
}

// PerbillFromRational returns floor(n/d) as Perbill, clamped to one. A zero denominator yields one.
func PerbillFromRational(n, d *big.Int) Perbill {
	if d.Sign() <= 0 || n.Cmp(d) >= 0 {
		return PerbillOne
	}
	if n.Sign() <= 0 {
		return 0
	}
	parts := new(big.Int).Mul(n, bigPerbillAccuracy)
	parts.Quo(parts, d)
	return Perbill(parts.Uint64())
}

// Parts returns the raw parts per billion.
func (p Perbill) Parts() uint32 {
	return uint32(p)
}

// IsZero reports if the fraction is zero.
func (p Perbill) IsZero() bool {
	return p == 0
}

// MulFloor returns floor(v * p).
func (p Perbill) MulFloor(v *big.Int) *big.Int {
	r := new(big.Int).Mul(v, big.NewInt(int64(p)))
	return r.Quo(r, bigPerbillAccuracy)
}

// MulCeil returns ceil(v * p).
func (p Perbill) MulCeil(v *big.Int) *big.Int {
	r := new(big.Int).Mul(v, big.NewInt(int64(p)))
	r.Add(r, big.NewInt(PerbillAccuracy-1))
	return r.Quo(r, bigPerbillAccuracy)
}

// Complement returns 1 - p.
func (p Perbill) Complement() Perbill {
	return PerbillOne - p
}

func (p Perbill) String() string {
	return fmt.Sprintf("%d.%07d%%", p/10_000_000, p%10_000_000)
}

// MulDivFloor returns floor(v * n / d), or zero when d is zero.
func MulDivFloor(v, n, d *big.Int) *big.Int {
	if d.Sign() == 0 {
		return new(big.Int)
	}
	r := new(big.Int).Mul(v, n)
	return r.Quo(r, d)
}
