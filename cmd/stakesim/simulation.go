// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/vechain/npos/currency"
	"github.com/vechain/npos/eventdb"
	"github.com/vechain/npos/health"
	"github.com/vechain/npos/kv"
	"github.com/vechain/npos/lvldb"
	"github.com/vechain/npos/node"
	"github.com/vechain/npos/npos"
	"github.com/vechain/npos/staking"
	"github.com/vechain/npos/state"
	"github.com/vechain/npos/storage"
)

var (
	stateBucket   = kv.Bucket("state.")
	currencyOwner = npos.BytesToAddress([]byte("currency"))
	stakingOwner  = npos.BytesToAddress([]byte("staking"))
)

// simOptions configures a simulation.
type simOptions struct {
	DataDir string
	// BlockTime is the simulated milliseconds between two blocks.
	BlockTime uint64
	Node      node.Options
	Treasury  npos.Address
	// ExistentialDeposit is the minimum balance of an account.
	ExistentialDeposit *big.Int
}

// simulation is a staking node fed by a scenario.
type simulation struct {
	*node.Node
	staker   *staking.Staker
	currency *currency.Balances
	events   *eventdb.EventDB
	db       *lvldb.LevelDB
	health   *health.Health

	now     atomic.Uint64
	resumed bool
}

func openStores(dataDir string) (*lvldb.LevelDB, *eventdb.EventDB, error) {
	if dataDir == "" {
		db, err := lvldb.NewMem()
		if err != nil {
			return nil, nil, err
		}
		events, err := eventdb.NewMem()
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return db, events, nil
	}

	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, nil, errors.Wrapf(err, "create data dir [%v]", dataDir)
	}
	db, err := lvldb.New(filepath.Join(dataDir, "state"), lvldb.Options{
		CacheSize:              128,
		OpenFilesCacheCapacity: 64,
	})
	if err != nil {
		return nil, nil, err
	}
	events, err := eventdb.New(filepath.Join(dataDir, "events.db"))
	if err != nil {
		db.Close()
		return nil, nil, errors.Wrap(err, "open event db")
	}
	return db, events, nil
}

// openSimulation opens the stores and initializes the engine with the scenario genesis.
// A data dir holding an initialized engine is resumed, the scenario genesis, balances and steps are skipped then.
func openSimulation(opts simOptions, sc *Scenario) (sim *simulation, err error) {
	db, events, err := openStores(opts.DataDir)
	if err != nil {
		return nil, err
	}
	sim = &simulation{
		db:     db,
		events: events,
		health: health.New(3 * opts.Node.BlockInterval),
	}
	defer func() {
		if err != nil {
			sim.Close()
			sim = nil
		}
	}()
	sim.now.Store(uint64(time.Now().UnixMilli()))

	ed := opts.ExistentialDeposit
	if ed == nil {
		ed = big.NewInt(1)
	}
	st := state.New(stateBucket.NewStore(db))
	sim.currency = currency.New(storage.NewContext(currencyOwner, st), ed)
	if sim.staker, err = staking.New(stakingOwner, st, sc.Config, staking.Deps{
		Currency:         sim.currency,
		Clock:            staking.ClockFunc(sim.now.Load),
		Filter:           sc.filter(),
		RemainderAccount: opts.Treasury,
	}); err != nil {
		return nil, err
	}

	active, err := sim.staker.ActiveEra()
	if err != nil {
		return nil, err
	}
	if active != nil {
		sim.resumed = true
		if active.Start > sim.now.Load() {
			sim.now.Store(active.Start)
		}
	}

	if sim.Node, err = node.New(sim.staker, events, opts.Node); err != nil {
		return nil, err
	}

	if !sim.resumed {
		if _, err := sim.Update(func(s *staking.Staker) error {
			if err := sc.endow(sim.currency); err != nil {
				return err
			}
			return s.InitGenesis(context.Background(), &sc.Genesis)
		}); err != nil {
			return nil, errors.Wrap(err, "genesis")
		}
		sim.OnBlock(func(block uint32, s *staking.Staker) error {
			if failed := sc.apply(block, s, sim.currency); failed > 0 {
				return errors.Errorf("%d scenario steps failed", failed)
			}
			return nil
		})
	} else {
		logger.Info("resuming staking state, scenario genesis and steps skipped", "era", active.Index)
	}

	sim.OnBlock(func(block uint32, _ *staking.Staker) error {
		sim.now.Add(opts.BlockTime)
		sim.health.NewBlock(block)
		return nil
	})
	sim.OnTransition(func(tr *staking.Transition) {
		sim.health.SessionEnded(tr.Started, tr.Fault != nil)
	})
	return sim, nil
}

func (sim *simulation) Close() {
	if sim.events != nil {
		logger.Info("closing event database...")
		sim.events.Close()
	}
	if sim.db != nil {
		logger.Info("closing state database...")
		sim.db.Close()
	}
}
