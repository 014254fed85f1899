// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package testnode builds in-memory staking nodes for tests.
package testnode

import (
	"context"
	"math/big"

	"github.com/pkg/errors"

	"github.com/vechain/npos/currency"
	"github.com/vechain/npos/election"
	"github.com/vechain/npos/eventdb"
	"github.com/vechain/npos/kv"
	"github.com/vechain/npos/lvldb"
	"github.com/vechain/npos/node"
	"github.com/vechain/npos/npos"
	"github.com/vechain/npos/session"
	"github.com/vechain/npos/staking"
	"github.com/vechain/npos/staking/rewards"
	"github.com/vechain/npos/state"
	"github.com/vechain/npos/storage"
)

// SessionMillis is the clock advance of every produced block.
const SessionMillis = 60_000

var (
	Stash11  = npos.AccountID(11)
	Stash21  = npos.AccountID(21)
	Stash31  = npos.AccountID(31)
	Nominee  = npos.AccountID(101)
	Reporter = npos.AccountID(201)
)

// DefaultGenesis elects 11 and 21, backed by nominator 101. 31 validates with a lower bond.
func DefaultGenesis() *staking.Genesis {
	return &staking.Genesis{Stakers: []staking.GenesisStaker{
		{Stash: Stash11, Bond: big.NewInt(1000), Role: staking.RoleValidator, Commission: npos.PerbillFromPercent(10)},
		{Stash: Stash21, Bond: big.NewInt(1000), Role: staking.RoleValidator},
		{Stash: Stash31, Bond: big.NewInt(500), Role: staking.RoleValidator},
		{Stash: Nominee, Bond: big.NewInt(500), Role: staking.RoleNominator, Targets: []npos.Address{Stash11, Stash21}},
	}}
}

// NodeBuilder implements the builder pattern for creating a test node.
type NodeBuilder struct {
	config  staking.Config
	genesis *staking.Genesis
	opts    node.Options
	payout  int64
	elect   election.Provider
}

// NewNodeBuilder creates a builder with the default staking config, one session every block
// and a fixed era payout of 1000.
func NewNodeBuilder() *NodeBuilder {
	return &NodeBuilder{
		config:  staking.DefaultConfig(),
		genesis: DefaultGenesis(),
		opts:    node.Options{Schedule: session.Periodic{Period: 1}},
		payout:  1000,
	}
}

func (b *NodeBuilder) WithConfig(f func(cfg *staking.Config)) *NodeBuilder {
	f(&b.config)
	return b
}

func (b *NodeBuilder) WithGenesis(genesis *staking.Genesis) *NodeBuilder {
	b.genesis = genesis
	return b
}

// WithElections replaces the default approval stake provider.
func (b *NodeBuilder) WithElections(p election.Provider) *NodeBuilder {
	b.elect = p
	return b
}

func (b *NodeBuilder) WithOptions(opts node.Options) *NodeBuilder {
	b.opts = opts
	return b
}

// Build funds every genesis staker with 2000 and initializes the engine.
// The caller closes the returned node.
func (b *NodeBuilder) Build() (*Node, error) {
	db, err := lvldb.NewMem()
	if err != nil {
		return nil, err
	}
	events, err := eventdb.NewMem()
	if err != nil {
		db.Close()
		return nil, err
	}
	tn := &Node{db: db, Events: events, now: 1_000_000}
	ok := false
	defer func() {
		if !ok {
			tn.Close()
		}
	}()

	st := state.New(kv.Bucket("state.").NewStore(db))
	tn.Currency = currency.New(storage.NewContext(npos.AccountID(0xba1), st), big.NewInt(1))
	staker, err := staking.New(npos.AccountID(0x57a), st, b.config, staking.Deps{
		Currency:  tn.Currency,
		Elections: b.elect,
		Curve:     &rewards.Fixed{Payout: big.NewInt(b.payout)},
		Clock:     staking.ClockFunc(func() uint64 { return tn.now }),
	})
	if err != nil {
		return nil, err
	}
	for _, gs := range b.genesis.Stakers {
		if err := tn.Currency.Mint(gs.Stash, big.NewInt(2000)); err != nil {
			return nil, err
		}
	}
	tn.Staker = staker

	tn.Node, err = node.New(staker, events, b.opts)
	if err != nil {
		return nil, err
	}
	if _, err := tn.Node.Update(func(s *staking.Staker) error {
		return s.InitGenesis(context.Background(), b.genesis)
	}); err != nil {
		return nil, errors.Wrap(err, "genesis")
	}
	tn.Node.OnBlock(func(uint32, *staking.Staker) error {
		tn.now += SessionMillis
		return nil
	})
	ok = true
	return tn, nil
}

// NewDefaultNode creates a node with the default configuration.
func NewDefaultNode() (*Node, error) {
	return NewNodeBuilder().Build()
}
