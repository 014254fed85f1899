// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staking

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vechain/npos/currency"
	"github.com/vechain/npos/lvldb"
	"github.com/vechain/npos/npos"
	"github.com/vechain/npos/staking/bonding"
	"github.com/vechain/npos/staking/rewards"
	"github.com/vechain/npos/state"
	"github.com/vechain/npos/storage"
)

const sessionMillis = 60_000

var (
	stash11  = npos.AccountID(11)
	stash21  = npos.AccountID(21)
	stash31  = npos.AccountID(31)
	stash41  = npos.AccountID(41)
	nominee  = npos.AccountID(101)
	reporter = npos.AccountID(201)
)

type slashRecord struct {
	stash  npos.Address
	active *big.Int
	chunks map[npos.EraIndex]*big.Int
	total  *big.Int
}

type testEnv struct {
	staker  *Staker
	cur     *currency.Balances
	now     uint64
	slashes []slashRecord
}

type envOption func(cfg *Config, deps *Deps)

func withConfig(f func(cfg *Config)) envOption {
	return func(cfg *Config, _ *Deps) { f(cfg) }
}

func withDeps(f func(deps *Deps)) envOption {
	return func(_ *Config, deps *Deps) { f(deps) }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	st := state.New(db)
	env := &testEnv{now: 1_000_000}
	env.cur = currency.New(storage.NewContext(npos.AccountID(0xba1), st), big.NewInt(1))

	cfg := DefaultConfig()
	deps := Deps{
		Currency: env.cur,
		Curve:    &rewards.Fixed{Payout: big.NewInt(1000)},
		Clock:    ClockFunc(func() uint64 { return env.now }),
		Listener: ListenerFunc(func(stash npos.Address, active *big.Int, chunks map[npos.EraIndex]*big.Int, total *big.Int) {
			env.slashes = append(env.slashes, slashRecord{stash: stash, active: active, chunks: chunks, total: total})
		}),
	}
	for _, opt := range opts {
		opt(&cfg, &deps)
	}
	staker, err := New(npos.AccountID(0x57a), st, cfg, deps)
	require.NoError(t, err)
	env.staker = staker
	return env
}

// defaultGenesis has validators 11 and 21 bonding 1000, 31 bonding 500,
// idle 41 and nominator 101 backing 11 and 21 with 500.
func defaultGenesis() *Genesis {
	return &Genesis{Stakers: []GenesisStaker{
		{Stash: stash11, Bond: big.NewInt(1000), Role: RoleValidator},
		{Stash: stash21, Bond: big.NewInt(1000), Role: RoleValidator},
		{Stash: stash31, Bond: big.NewInt(500), Role: RoleValidator},
		{Stash: stash41, Bond: big.NewInt(1000), Role: RoleIdle},
		{Stash: nominee, Bond: big.NewInt(500), Role: RoleNominator, Targets: []npos.Address{stash11, stash21}},
	}}
}

func (e *testEnv) fund(t *testing.T, who npos.Address, v int64) {
	require.NoError(t, e.cur.Mint(who, big.NewInt(v)))
}

func (e *testEnv) genesis(t *testing.T, g *Genesis) {
	for _, gs := range g.Stakers {
		e.fund(t, gs.Stash, 2000)
	}
	require.NoError(t, e.staker.InitGenesis(context.Background(), g))
}

func newFixture(t *testing.T, opts ...envOption) *testEnv {
	env := newTestEnv(t, opts...)
	env.genesis(t, defaultGenesis())
	return env
}

func (e *testEnv) endSessions(t *testing.T, n int) []*Transition {
	var out []*Transition
	for i := 0; i < n; i++ {
		running, err := e.staker.CurrentSession()
		require.NoError(t, err)
		e.now += sessionMillis
		tr, err := e.staker.EndSession(context.Background(), running)
		require.NoError(t, err)
		out = append(out, tr)
	}
	return out
}

func (e *testEnv) startActiveEra(t *testing.T, era npos.EraIndex) {
	for i := 0; e.activeEra(t) < era; i++ {
		require.Less(t, i, 1000, "era %d never started", era)
		e.endSessions(t, 1)
	}
}

func (e *testEnv) activeEra(t *testing.T) npos.EraIndex {
	active, err := e.staker.ActiveEra()
	require.NoError(t, err)
	require.NotNil(t, active)
	return active.Index
}

func (e *testEnv) ledger(t *testing.T, stash npos.Address) *bonding.Ledger {
	ledger, err := e.staker.Ledger(stash)
	require.NoError(t, err)
	return ledger
}

func (e *testEnv) active(t *testing.T, stash npos.Address) int64 {
	ledger := e.ledger(t, stash)
	require.NotNil(t, ledger)
	return ledger.Active.Int64()
}

func (e *testEnv) free(t *testing.T, who npos.Address) int64 {
	free, err := e.cur.FreeBalance(who)
	require.NoError(t, err)
	return free.Int64()
}

func eventsOf(events []*Event, kind EventKind) []*Event {
	var out []*Event
	for _, ev := range events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}
