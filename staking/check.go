// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staking

import (
	"fmt"
	"slices"

	"github.com/davecgh/go-spew/spew"

	"github.com/vechain/npos/npos"
	"github.com/vechain/npos/staking/bonding"
	"github.com/vechain/npos/staking/slashing"
	"github.com/vechain/npos/staking/voters"
)

// CorruptionError reports the first broken invariant found by CheckState.
type CorruptionError struct {
	Check  string
	Stash  npos.Address
	Record any
}

func (e *CorruptionError) Error() string {
	if e.Record == nil {
		return fmt.Sprintf("staking state corrupted: %s (stash %v)", e.Check, e.Stash)
	}
	return fmt.Sprintf("staking state corrupted: %s (stash %v)\n%s", e.Check, e.Stash, spew.Sdump(e.Record))
}

func corrupted(check string, stash npos.Address, record any) error {
	logger.Error("state corruption detected", "check", check, "stash", stash)
	return &CorruptionError{Check: check, Stash: stash, Record: record}
}

// CheckState verifies the bonding registry, the held balances and the era markers.
// It stops at the first violation and never repairs.
func (s *Staker) CheckState() error {
	controllers := make(map[npos.Address]npos.Address)
	err := s.bonding.Stashes(func(stash npos.Address) error {
		controller, err := s.bonding.Controller(stash)
		if err != nil {
			return err
		}
		if controller.IsZero() {
			return corrupted("listed stash without controller", stash, nil)
		}
		if other, dup := controllers[controller]; dup {
			return corrupted("controller shared with "+other.String(), stash, nil)
		}
		controllers[controller] = stash

		ledger, err := s.bonding.LedgerByController(controller)
		if err != nil {
			return err
		}
		if ledger == nil {
			return corrupted("stash without ledger", stash, nil)
		}
		if ledger.Stash != stash {
			return corrupted("ledger of another stash at controller", stash, ledger)
		}
		if !ledger.IsConsistent() {
			return corrupted("ledger total is not active plus unlocking", stash, ledger)
		}
		if uint32(len(ledger.Unlocking)) > s.cfg.MaxUnlockingChunks {
			return corrupted("too many unlocking chunks", stash, ledger)
		}
		payee, err := s.bonding.Payee(stash)
		if err != nil {
			return err
		}
		if payee == nil {
			return corrupted("stash without payee", stash, nil)
		}
		virtual, err := s.bonding.IsVirtual(stash)
		if err != nil {
			return err
		}
		if virtual {
			if payee.Kind != bonding.Account {
				return corrupted("virtual stash without account payee", stash, ledger)
			}
			return nil
		}
		held, err := s.currency.Held(stash)
		if err != nil {
			return err
		}
		if held.Cmp(ledger.Total) != 0 {
			return corrupted(fmt.Sprintf("held balance %v does not match ledger", held), stash, ledger)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.voters.IterValidators(func(stash npos.Address, _ *voters.ValidatorPrefs) error {
		return s.checkIntention(stash, "validator")
	}); err != nil {
		return err
	}
	if err := s.voters.IterNominators(func(stash npos.Address, _ *voters.Nominations) error {
		return s.checkIntention(stash, "nominator")
	}); err != nil {
		return err
	}
	return s.checkEras()
}

func (s *Staker) checkIntention(stash npos.Address, role string) error {
	bonded, err := s.bonding.IsBonded(stash)
	if err != nil {
		return err
	}
	if !bonded {
		return corrupted(role+" without ledger", stash, nil)
	}
	return nil
}

func (s *Staker) checkEras() error {
	active, err := s.eras.ActiveEra()
	if err != nil || active == nil {
		return err
	}
	current, err := s.currentEra()
	if err != nil {
		return err
	}
	if current < active.Index {
		return corrupted(fmt.Sprintf("current era %d behind active era %d", current, active.Index), npos.Address{}, nil)
	}
	bonded, err := s.eras.BondedEras()
	if err != nil {
		return err
	}
	if uint64(len(bonded)) > uint64(s.cfg.HistoryDepth)+1 {
		return corrupted("bonded eras window oversized", npos.Address{}, bonded)
	}
	for i := 1; i < len(bonded); i++ {
		if bonded[i].Era <= bonded[i-1].Era || bonded[i].StartSession <= bonded[i-1].StartSession {
			return corrupted("bonded eras window not sorted", npos.Address{}, bonded)
		}
	}
	if n := len(bonded); n == 0 || bonded[n-1].Era != active.Index {
		return corrupted("active era missing from bonded window", npos.Address{}, bonded)
	}
	for _, b := range bonded {
		if _, ok, err := s.eras.StartSession(b.Era); err != nil {
			return err
		} else if !ok {
			return corrupted(fmt.Sprintf("bonded era %d cleared from history", b.Era), npos.Address{}, bonded)
		}
	}
	return s.checkDisabled(active.Index)
}

func (s *Staker) checkDisabled(active npos.EraIndex) error {
	disabled, err := s.slashing.Disabled()
	if err != nil || len(disabled) == 0 {
		return err
	}
	validators, err := s.exposures.Validators(active)
	if err != nil {
		return err
	}
	if len(disabled) > slashing.DisablingLimit(len(validators)) {
		return corrupted("disabled validators over the limit", npos.Address{}, disabled)
	}
	for _, d := range disabled {
		if !slices.Contains(validators, d.Stash) {
			return corrupted("disabled validator not active", d.Stash, nil)
		}
	}
	return nil
}
