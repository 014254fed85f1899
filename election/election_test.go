// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package election

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/npos/npos"
)

var (
	v11  = npos.AccountID(11)
	v21  = npos.AccountID(21)
	v31  = npos.AccountID(31)
	n101 = npos.AccountID(101)
)

func snapshot() *Snapshot {
	return &Snapshot{
		Era: 1,
		Voters: []Voter{
			{ID: v11, Stake: big.NewInt(1000), Targets: []npos.Address{v11}},
			{ID: v21, Stake: big.NewInt(1000), Targets: []npos.Address{v21}},
			{ID: v31, Stake: big.NewInt(500), Targets: []npos.Address{v31}},
			{ID: n101, Stake: big.NewInt(501), Targets: []npos.Address{v11, v21, v11}},
		},
		Targets: []npos.Address{v11, v21, v31},
	}
}

func TestApprovalStake(t *testing.T) {
	supports, err := ApprovalStake{}.Elect(context.Background(), snapshot(), Bounds{MaxWinners: 2, MaxBackersPerWinner: 64})
	require.NoError(t, err)
	require.Len(t, supports, 2)

	// 11 and 21 tie at 1501 approval, ordered by address
	assert.Equal(t, v11, supports[0].Winner)
	assert.Equal(t, v21, supports[1].Winner)

	// 501 split evenly, remainder to the first elected target
	assert.Equal(t, big.NewInt(1251), supports[0].Total)
	assert.Equal(t, big.NewInt(1250), supports[1].Total)
	assert.Equal(t, []Backing{{v11, big.NewInt(1000)}, {n101, big.NewInt(251)}}, supports[0].Backers)

	require.NoError(t, supports.Validate(snapshot(), Bounds{MaxWinners: 2, MaxBackersPerWinner: 64}))
	assert.ErrorIs(t, supports.Validate(snapshot(), Bounds{MaxWinners: 1, MaxBackersPerWinner: 64}), ErrElectionFailed)
	assert.ErrorIs(t, supports.Validate(snapshot(), Bounds{MaxWinners: 2, MaxBackersPerWinner: 1}), ErrElectionFailed)
}

func TestApprovalStakeTruncatesBackers(t *testing.T) {
	snap := snapshot()
	snap.Voters = append(snap.Voters, Voter{ID: npos.AccountID(102), Stake: big.NewInt(10), Targets: []npos.Address{v11}})

	supports, err := ApprovalStake{}.Elect(context.Background(), snap, Bounds{MaxWinners: 1, MaxBackersPerWinner: 2})
	require.NoError(t, err)
	require.Len(t, supports, 1)
	assert.Equal(t, []Backing{{v11, big.NewInt(1000)}, {n101, big.NewInt(501)}}, supports[0].Backers)
	assert.Equal(t, big.NewInt(1501), supports[0].Total)
}

func TestApprovalStakeFailure(t *testing.T) {
	_, err := ApprovalStake{}.Elect(context.Background(), &Snapshot{}, Bounds{MaxWinners: 2})
	assert.ErrorIs(t, err, ErrElectionFailed)

	_, err = ApprovalStake{}.Elect(context.Background(), snapshot(), Bounds{MaxWinners: 5, MinWinners: 4, MaxBackersPerWinner: 8})
	assert.ErrorIs(t, err, ErrElectionFailed)
}

func TestDelayed(t *testing.T) {
	d := NewDelayed(ApprovalStake{}, 2)
	bounds := Bounds{MaxWinners: 2, MaxBackersPerWinner: 64}
	for i := 0; i < 2; i++ {
		_, err := d.Elect(context.Background(), snapshot(), bounds)
		assert.ErrorIs(t, err, ErrDataUnavailable)
	}
	supports, err := d.Elect(context.Background(), snapshot(), bounds)
	require.NoError(t, err)
	assert.Len(t, supports, 2)
}
