// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package rewards

import (
	"math"
	"math/big"

	"github.com/pkg/errors"

	"github.com/vechain/npos/npos"
)

// MillisecondsPerYear is the length of a julian year.
const MillisecondsPerYear uint64 = 1000 * 3600 * 24 * 36525 / 100

// Curve computes the payout of an era.
type Curve interface {
	// EraPayout returns the amount paid to stakers and the remainder for the era.
	EraPayout(totalStaked, totalIssuance *big.Int, eraDurationMillis uint64) (payout, remainder *big.Int)
}

// Point is a vertex of a piecewise linear function over [0, 1].
type Point struct {
	X npos.Perbill
	Y npos.Perbill
}

// PiecewiseLinear is an inflation curve of the staking rate, interpolated between points.
type PiecewiseLinear struct {
	Points  []Point
	Maximum npos.Perbill
}

// CurveParams shapes the NPoS inflation curve.
type CurveParams struct {
	MinInflation  npos.Perbill `yaml:"minInflation"`
	MaxInflation  npos.Perbill `yaml:"maxInflation"`
	IdealStake    npos.Perbill `yaml:"idealStake"`
	Falloff       npos.Perbill `yaml:"falloff"`
	MaxPieceCount int          `yaml:"maxPieceCount"`
}

// DefaultCurveParams is inflation between 2.5% and 10% peaking at 50% staked.
func DefaultCurveParams() CurveParams {
	return CurveParams{
		MinInflation:  npos.PerbillFromParts(25_000_000),
		MaxInflation:  npos.PerbillFromPercent(10),
		IdealStake:    npos.PerbillFromPercent(50),
		Falloff:       npos.PerbillFromPercent(5),
		MaxPieceCount: 40,
	}
}

// NewNPoSCurve builds the curve: linear growth from MinInflation at 0% staked to MaxInflation at IdealStake,
// then exponential decay back towards MinInflation, halving every Falloff.
func NewNPoSCurve(params CurveParams) (*PiecewiseLinear, error) {
	if params.IdealStake.IsZero() || params.IdealStake >= npos.PerbillOne {
		return nil, errors.New("ideal stake must be within (0, 1)")
	}
	if params.Falloff.IsZero() {
		return nil, errors.New("falloff must be positive")
	}
	if params.MinInflation > params.MaxInflation || params.MaxInflation > npos.PerbillOne {
		return nil, errors.New("inflation bounds out of order")
	}
	if params.MaxPieceCount < 2 {
		return nil, errors.New("at least two pieces required")
	}

	var (
		lo     = float64(params.MinInflation) / npos.PerbillAccuracy
		hi     = float64(params.MaxInflation) / npos.PerbillAccuracy
		ideal  = float64(params.IdealStake) / npos.PerbillAccuracy
		decay  = float64(params.Falloff) / npos.PerbillAccuracy
		pieces = params.MaxPieceCount - 1
	)
	points := []Point{
		{X: 0, Y: params.MinInflation},
		{X: params.IdealStake, Y: params.MaxInflation},
	}
	step := (1 - ideal) / float64(pieces)
	for i := 1; i <= pieces; i++ {
		x := ideal + step*float64(i)
		y := lo + (hi-lo)*math.Exp2((ideal-x)/decay)
		points = append(points, Point{X: toPerbill(x), Y: toPerbill(y)})
	}
	points[len(points)-1].X = npos.PerbillOne
	return &PiecewiseLinear{Points: points, Maximum: params.MaxInflation}, nil
}

func toPerbill(f float64) npos.Perbill {
	return npos.PerbillFromParts(uint32(math.Round(f * npos.PerbillAccuracy)))
}

// Calculate returns the curve value at x.
func (c *PiecewiseLinear) Calculate(x npos.Perbill) npos.Perbill {
	points := c.Points
	if len(points) == 0 {
		return 0
	}
	if x <= points[0].X {
		return points[0].Y
	}
	for i := 1; i < len(points); i++ {
		prev, next := points[i-1], points[i]
		if x > next.X {
			continue
		}
		dx := int64(next.X) - int64(prev.X)
		if dx == 0 {
			return next.Y
		}
		dy := int64(next.Y) - int64(prev.Y)
		return npos.Perbill(int64(prev.Y) + dy*(int64(x)-int64(prev.X))/dx)
	}
	return points[len(points)-1].Y
}

// EraPayout implements Curve.
func (c *PiecewiseLinear) EraPayout(totalStaked, totalIssuance *big.Int, eraDurationMillis uint64) (*big.Int, *big.Int) {
	year := new(big.Int).SetUint64(MillisecondsPerYear)
	duration := new(big.Int).SetUint64(eraDurationMillis)

	rate := npos.PerbillFromRational(totalStaked, totalIssuance)
	if totalIssuance.Sign() == 0 {
		rate = 0
	}
	yearly := c.Calculate(rate).MulFloor(totalIssuance)
	payout := npos.MulDivFloor(yearly, duration, year)
	maxPayout := npos.MulDivFloor(c.Maximum.MulFloor(totalIssuance), duration, year)

	remainder := new(big.Int).Sub(maxPayout, payout)
	if remainder.Sign() < 0 {
		remainder.SetUint64(0)
	}
	return payout, remainder
}

// Fixed pays the same amount every era regardless of stake or duration.
type Fixed struct {
	Payout    *big.Int
	Remainder *big.Int
}

// EraPayout implements Curve.
func (f *Fixed) EraPayout(_, _ *big.Int, _ uint64) (*big.Int, *big.Int) {
	payout, remainder := new(big.Int), new(big.Int)
	if f.Payout != nil {
		payout.Set(f.Payout)
	}
	if f.Remainder != nil {
		remainder.Set(f.Remainder)
	}
	return payout, remainder
}
