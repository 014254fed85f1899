// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package node_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/npos/election"
	"github.com/vechain/npos/eventdb"
	"github.com/vechain/npos/node"
	"github.com/vechain/npos/npos"
	"github.com/vechain/npos/session"
	"github.com/vechain/npos/staking"
	"github.com/vechain/npos/staking/bonding"
	"github.com/vechain/npos/test/testnode"
)

func newNode(t *testing.T, opts node.Options) *testnode.Node {
	tn, err := testnode.NewNodeBuilder().WithOptions(opts).Build()
	require.NoError(t, err)
	t.Cleanup(tn.Close)
	return tn
}

func TestProduce(t *testing.T) {
	tn := newNode(t, node.Options{Schedule: session.Periodic{Period: 1}, PointsPerBlock: 20})
	assert.Nil(t, tn.LastTransition())

	require.NoError(t, tn.ProduceUntilEra(1, 10))
	assert.Equal(t, uint32(3), tn.Block())

	tr := tn.LastTransition()
	require.NotNil(t, tr)
	assert.True(t, tr.EraStarted)
	assert.Equal(t, npos.SessionIndex(3), tr.Started)
	assert.ElementsMatch(t, []npos.Address{testnode.Stash11, testnode.Stash21}, tr.Validators)

	points, err := tn.Staker.EraRewardPoints(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(60), points.Total)
	assert.Len(t, points.Individual, 2)

	ctx := context.Background()
	paid, err := tn.Events.Filter(ctx, &eventdb.Filter{Kinds: []staking.EventKind{staking.EventEraPaid}})
	require.NoError(t, err)
	require.Len(t, paid, 1)
	assert.Equal(t, npos.SessionIndex(2), paid[0].Session)
	assert.Equal(t, npos.EraIndex(0), paid[0].Era)

	last, ok, err := tn.Events.LastSession(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, npos.SessionIndex(2), last)
}

func TestSessionSchedule(t *testing.T) {
	tn := newNode(t, node.Options{Schedule: session.Periodic{Period: 3, Offset: 3}})

	for i := 0; i < 2; i++ {
		require.NoError(t, tn.Produce())
	}
	assert.Nil(t, tn.LastTransition())

	require.NoError(t, tn.Produce())
	tr := tn.LastTransition()
	require.NotNil(t, tr)
	assert.Equal(t, npos.SessionIndex(0), tr.Ended)

	current, err := tn.Staker.CurrentSession()
	require.NoError(t, err)
	assert.Equal(t, npos.SessionIndex(1), current)
}

func TestUpdate(t *testing.T) {
	tn := newNode(t, node.Options{Schedule: session.Periodic{Period: 1}})
	stash := npos.AccountID(77)
	require.NoError(t, tn.Currency.Mint(stash, big.NewInt(300)))

	events, err := tn.Update(func(s *staking.Staker) error {
		return s.Bond(stash, big.NewInt(200), bonding.RewardDestination{Kind: bonding.Staked})
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, staking.EventBonded, events[0].Kind)

	_, err = tn.Update(func(s *staking.Staker) error {
		return s.Bond(stash, big.NewInt(1), bonding.RewardDestination{Kind: bonding.Staked})
	})
	assert.Error(t, err)

	require.NoError(t, tn.View(func(s *staking.Staker) error {
		ledger, err := s.Ledger(stash)
		require.NoError(t, err)
		require.NotNil(t, ledger)
		assert.Equal(t, int64(200), ledger.Active.Int64())
		return nil
	}))

	bonded, err := tn.Events.Filter(context.Background(), &eventdb.Filter{Stash: &stash})
	require.NoError(t, err)
	require.Len(t, bonded, 1)
	assert.Equal(t, npos.SessionIndex(0), bonded[0].Session)
}

func TestRun(t *testing.T) {
	tn := newNode(t, node.Options{BlockInterval: time.Millisecond, Schedule: session.Periodic{Period: 2}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tn.Run(ctx) }()

	assert.Eventually(t, func() bool { return tn.Block() >= 5 }, 5*time.Second, time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}

func TestNewRejectsBadSchedule(t *testing.T) {
	tn := newNode(t, node.Options{Schedule: session.Periodic{Period: 1}})
	_, err := node.New(tn.Staker, nil, node.Options{})
	assert.Error(t, err)
}

func TestOnTransition(t *testing.T) {
	tn := newNode(t, node.Options{Schedule: session.Periodic{Period: 1}})

	var started []npos.SessionIndex
	tn.OnTransition(func(tr *staking.Transition) {
		started = append(started, tr.Started)
	})
	require.NoError(t, tn.ProduceUntilEra(1, 10))
	assert.Equal(t, []npos.SessionIndex{1, 2, 3}, started)
}

func TestProduceFailureDiscardsBlock(t *testing.T) {
	broken := true
	elections := election.Func(func(ctx context.Context, snap *election.Snapshot, b election.Bounds) (election.Supports, error) {
		if snap.Era > 0 && broken {
			return nil, errors.New("election backend down")
		}
		return election.ApprovalStake{}.Elect(ctx, snap, b)
	})
	tn, err := testnode.NewNodeBuilder().
		WithElections(elections).
		WithOptions(node.Options{Schedule: session.Periodic{Period: 1}, PointsPerBlock: 20}).
		Build()
	require.NoError(t, err)
	t.Cleanup(tn.Close)

	// the election of era 1 is requested when session 1 ends, at block 2
	require.NoError(t, tn.Produce())
	assert.Error(t, tn.Produce())
	assert.Error(t, tn.Produce())
	assert.Equal(t, uint32(1), tn.Block())

	current, err := tn.Staker.CurrentSession()
	require.NoError(t, err)
	assert.Equal(t, npos.SessionIndex(1), current)
	points, err := tn.Staker.EraRewardPoints(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), points.Total)

	broken = false
	require.NoError(t, tn.Produce())
	assert.Equal(t, uint32(2), tn.Block())
	points, err = tn.Staker.EraRewardPoints(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(40), points.Total)

	current, err = tn.Staker.CurrentSession()
	require.NoError(t, err)
	assert.Equal(t, npos.SessionIndex(2), current)
}
