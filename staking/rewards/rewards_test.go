// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package rewards

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/npos/lvldb"
	"github.com/vechain/npos/npos"
	"github.com/vechain/npos/staking/exposure"
	"github.com/vechain/npos/staking/reverts"
	"github.com/vechain/npos/state"
	"github.com/vechain/npos/storage"
)

func newService(t *testing.T) *Service {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(storage.NewContext(npos.AccountID(0x4e3), state.New(db)))
}

func TestService_Points(t *testing.T) {
	s := newService(t)
	v1, v2 := npos.AccountID(21), npos.AccountID(11)

	require.NoError(t, s.AddPoints(1, []Points{{v1, 20}, {v2, 20}, {v1, 10}}))
	points, err := s.Points(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(50), points.Total)
	assert.Equal(t, uint64(30), points.Of(v1))
	assert.Equal(t, uint64(20), points.Of(v2))
	assert.Equal(t, v2, points.Individual[0].Who, "sorted by address")

	require.NoError(t, s.AddPoints(1, []Points{{v1, math.MaxUint64}}))
	points, err = s.Points(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), points.Total)
	assert.Equal(t, uint64(math.MaxUint64), points.Of(v1))

	empty, err := s.Points(2)
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
}

func TestService_Claim(t *testing.T) {
	s := newService(t)
	v := npos.AccountID(11)

	payout, err := s.EraPayout(1)
	require.NoError(t, err)
	assert.Nil(t, payout)
	require.NoError(t, s.SetEraPayout(1, big.NewInt(1000)))
	payout, err = s.EraPayout(1)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1000), payout)

	require.NoError(t, s.Claim(1, v, 0))
	assert.ErrorIs(t, s.Claim(1, v, 0), reverts.ErrAlreadyClaimed)
	require.NoError(t, s.Claim(1, v, 1))
	pages, err := s.ClaimedPages(1, v)
	require.NoError(t, err)
	assert.Equal(t, []npos.PageIndex{0, 1}, pages)

	s.ClearEra(1, []npos.Address{v})
	pages, err = s.ClaimedPages(1, v)
	require.NoError(t, err)
	assert.Empty(t, pages)
	payout, err = s.EraPayout(1)
	require.NoError(t, err)
	assert.Nil(t, payout)
}

func TestPageShare_Split(t *testing.T) {
	nominator := npos.AccountID(101)
	overview := &exposure.Overview{Total: big.NewInt(1250), Own: big.NewInt(1000), NominatorCount: 1, PageCount: 1}
	page := &exposure.Page{PageTotal: big.NewInt(250), Others: []exposure.Individual{{Who: nominator, Value: big.NewInt(250)}}}

	share := &PageShare{
		EraPayout:       big.NewInt(1000),
		TotalPoints:     40,
		ValidatorPoints: 20,
		Overview:        overview,
		Page:            page,
	}
	validator, backers := share.Split()
	// 500 split 1000:250
	assert.Equal(t, big.NewInt(400), validator)
	assert.Equal(t, []Payment{{Who: nominator, Amount: big.NewInt(100)}}, backers)

	share.Commission = npos.PerbillFromPercent(10)
	validator, backers = share.Split()
	// 50 commission, 450 leftover split 1000:250
	assert.Equal(t, big.NewInt(50+360), validator)
	assert.Equal(t, big.NewInt(90), backers[0].Amount)

	share.ValidatorPoints = 0
	validator, backers = share.Split()
	assert.Zero(t, validator.Sign())
	assert.Empty(t, backers)
}

func TestPageShare_SplitPaged(t *testing.T) {
	overview := &exposure.Overview{Total: big.NewInt(1000), Own: big.NewInt(400), NominatorCount: 2, PageCount: 2}
	pages := []*exposure.Page{
		{PageTotal: big.NewInt(400), Others: []exposure.Individual{{Who: npos.AccountID(1), Value: big.NewInt(400)}}},
		{PageTotal: big.NewInt(200), Others: []exposure.Individual{{Who: npos.AccountID(2), Value: big.NewInt(200)}}},
	}
	total := new(big.Int)
	for i, p := range pages {
		share := &PageShare{
			EraPayout:       big.NewInt(1000),
			TotalPoints:     1,
			ValidatorPoints: 1,
			Commission:      npos.PerbillFromPercent(50),
			Overview:        overview,
			Page:            p,
			PageIndex:       npos.PageIndex(i),
		}
		validator, backers := share.Split()
		total.Add(total, validator)
		for _, b := range backers {
			total.Add(total, b.Amount)
		}
	}
	assert.Equal(t, big.NewInt(1000), total)
}

func TestCurve(t *testing.T) {
	curve, err := NewNPoSCurve(DefaultCurveParams())
	require.NoError(t, err)

	assert.Equal(t, npos.PerbillFromParts(25_000_000), curve.Calculate(0))
	assert.Equal(t, npos.PerbillFromPercent(10), curve.Calculate(npos.PerbillFromPercent(50)))
	// linear below the ideal stake
	assert.Equal(t, npos.PerbillFromParts(62_500_000), curve.Calculate(npos.PerbillFromPercent(25)))
	// decays after it, never below the minimum
	above := curve.Calculate(npos.PerbillFromPercent(55))
	assert.Less(t, above, npos.PerbillFromPercent(10))
	assert.Greater(t, above, npos.PerbillFromParts(60_000_000))
	assert.GreaterOrEqual(t, curve.Calculate(npos.PerbillOne), npos.PerbillFromParts(25_000_000))

	issuance := big.NewInt(1_000_000_000_000)
	payout, remainder := curve.EraPayout(big.NewInt(500_000_000_000), issuance, MillisecondsPerYear)
	assert.Equal(t, big.NewInt(100_000_000_000), payout)
	assert.Zero(t, remainder.Sign())

	payout, remainder = curve.EraPayout(big.NewInt(0), issuance, MillisecondsPerYear)
	assert.Equal(t, big.NewInt(25_000_000_000), payout)
	assert.Equal(t, big.NewInt(75_000_000_000), remainder)

	_, err = NewNPoSCurve(CurveParams{})
	assert.Error(t, err)

	fixed := &Fixed{Payout: big.NewInt(1000)}
	payout, remainder = fixed.EraPayout(nil, nil, 0)
	assert.Equal(t, big.NewInt(1000), payout)
	assert.Zero(t, remainder.Sign())
}
