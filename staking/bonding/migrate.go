// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package bonding

import (
	"github.com/pkg/errors"

	"github.com/vechain/npos/npos"
	"github.com/vechain/npos/staking/reverts"
)

// Migration is the outcome of one DeprecateControllers batch.
type Migration struct {
	Migrated []npos.Address
	// Deferred stashes did not fit in the batch or wait on a stash whose ledger occupies their key.
	Deferred []npos.Address
	// Skipped stashes have no ledger of their own at their controller.
	Skipped []npos.Address
}

type legacyPair struct {
	stash      npos.Address
	controller npos.Address
	ledger     *Ledger
	// holder is the stash whose ledger is keyed by this stash, if any
	holder npos.Address
}

// DeprecateControllers rewrites up to max stashes with a distinct controller so that each stash
// controls itself. All pairs are read before anything is written, so controller chains
// (a stash that is also the controller of another stash) are collapsed without losing ledgers.
func (s *Service) DeprecateControllers(max int) (*Migration, error) {
	var (
		result  = &Migration{}
		pairs   []*legacyPair
		byStash = make(map[npos.Address]*legacyPair)
	)
	err := s.stashes.Iter(func(stash npos.Address) error {
		controller, err := s.bonded.Get(stash)
		if err != nil {
			return err
		}
		if controller == stash || controller.IsZero() {
			return nil
		}
		ledger, err := s.ledgers.Get(controller)
		if err != nil {
			return err
		}
		if ledger == nil || ledger.Stash != stash {
			logger.Warn("skipping stash without own ledger", "stash", stash, "controller", controller)
			result.Skipped = append(result.Skipped, stash)
			return nil
		}
		held, err := s.ledgers.Get(stash)
		if err != nil {
			return err
		}
		pair := &legacyPair{stash: stash, controller: controller, ledger: ledger}
		if held != nil {
			pair.holder = held.Stash
		}
		pairs = append(pairs, pair)
		byStash[stash] = pair
		return nil
	})
	if err != nil {
		return nil, err
	}

	// a stash can only move once the ledger sitting at its key moves too
	const (
		unvisited = iota
		visiting
		taken
		blocked
	)
	marks := make(map[npos.Address]int, len(pairs))
	count := 0
	var take func(p *legacyPair) bool
	take = func(p *legacyPair) bool {
		switch marks[p.stash] {
		case taken, visiting:
			return true
		case blocked:
			return false
		}
		if count >= max {
			return false
		}
		marks[p.stash] = visiting
		if !p.holder.IsZero() {
			hp, ok := byStash[p.holder]
			if !ok || !take(hp) {
				marks[p.stash] = blocked
				return false
			}
		}
		if count >= max {
			marks[p.stash] = unvisited
			return false
		}
		marks[p.stash] = taken
		count++
		return true
	}
	for _, p := range pairs {
		take(p)
	}

	// write phase
	for _, p := range pairs {
		if marks[p.stash] == taken {
			s.ledgers.Delete(p.controller)
		}
	}
	for _, p := range pairs {
		if marks[p.stash] != taken {
			result.Deferred = append(result.Deferred, p.stash)
			continue
		}
		if err := s.ledgers.Set(p.stash, p.ledger); err != nil {
			return nil, err
		}
		if err := s.bonded.Set(p.stash, p.stash); err != nil {
			return nil, err
		}
		logger.Warn("controller deprecated", "stash", p.stash, "controller", p.controller)
		result.Migrated = append(result.Migrated, p.stash)
	}
	return result, nil
}

// Import writes a ledger as-is under the given controller, holding its total from the stash.
// It does not reject controller chains and exists for loading legacy state.
func (s *Service) Import(ledger *Ledger, controller npos.Address, payee RewardDestination) error {
	if ledger.Stash.IsZero() || controller.IsZero() {
		return reverts.ErrZeroAddress
	}
	if !ledger.IsConsistent() {
		return errors.Wrapf(reverts.ErrBadState, "inconsistent ledger for %v", ledger.Stash)
	}
	if bonded, err := s.IsBonded(ledger.Stash); err != nil {
		return err
	} else if bonded {
		return reverts.ErrAlreadyBonded
	}
	if taken, err := s.ledgers.Has(controller); err != nil {
		return err
	} else if taken {
		return reverts.ErrAlreadyPaired
	}
	if err := s.currency.Hold(ledger.Stash, ledger.Total); err != nil {
		return errors.Wrap(err, "hold imported bond")
	}
	if err := s.bonded.Set(ledger.Stash, controller); err != nil {
		return err
	}
	if err := s.ledgers.Set(controller, ledger); err != nil {
		return err
	}
	if err := s.payees.Set(ledger.Stash, &payee); err != nil {
		return err
	}
	return s.stashes.Add(ledger.Stash)
}
