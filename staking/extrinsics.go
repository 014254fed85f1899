// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staking

import (
	"math/big"

	"github.com/vechain/npos/npos"
	"github.com/vechain/npos/staking/bonding"
	"github.com/vechain/npos/staking/eras"
	"github.com/vechain/npos/staking/reverts"
	"github.com/vechain/npos/staking/voters"
)

//
// Bonding
//

// Bond locks up to value of the free balance of stash, which becomes its own controller.
func (s *Staker) Bond(stash npos.Address, value *big.Int, payee bonding.RewardDestination) error {
	return s.atomic("bond", func() error {
		if err := s.checkRestricted(stash); err != nil {
			return err
		}
		ledger, err := s.bonding.Bond(stash, value, payee)
		if err != nil {
			return err
		}
		s.emit(&Event{Kind: EventBonded, Stash: stash, Amount: new(big.Int).Set(ledger.Active)})
		logger.Info("bonded", "stash", stash, "value", ledger.Active)
		return nil
	})
}

// BondWithController bonds stash under a distinct controller. Pairs that would chain are refused.
func (s *Staker) BondWithController(stash, controller npos.Address, value *big.Int, payee bonding.RewardDestination) error {
	return s.atomic("bond_with_controller", func() error {
		if err := s.checkRestricted(stash); err != nil {
			return err
		}
		ledger, err := s.bonding.BondWithController(stash, controller, value, payee)
		if err != nil {
			return err
		}
		s.emit(&Event{Kind: EventBonded, Stash: stash, Amount: new(big.Int).Set(ledger.Active)})
		logger.Info("bonded", "stash", stash, "controller", controller, "value", ledger.Active)
		return nil
	})
}

// BondExtra adds up to value of the free balance of stash to its active stake.
func (s *Staker) BondExtra(stash npos.Address, value *big.Int) error {
	return s.atomic("bond_extra", func() error {
		if err := s.checkRestricted(stash); err != nil {
			return err
		}
		before, err := s.bonding.Ledger(stash)
		if err != nil {
			return err
		}
		if before == nil {
			return reverts.ErrNoLedger
		}
		ledger, err := s.bonding.BondExtra(stash, value)
		if err != nil {
			return err
		}
		s.emit(&Event{Kind: EventBonded, Stash: stash, Amount: new(big.Int).Sub(ledger.Active, before.Active)})
		return nil
	})
}

// VirtualBond bonds value for stash without holding its balance, the funds being managed
// by the caller. Rewards are paid to payee, slashes reduce the ledger and are reported
// to the listener only.
func (s *Staker) VirtualBond(stash npos.Address, value *big.Int, payee npos.Address) error {
	return s.atomic("virtual_bond", func() error {
		ledger, err := s.bonding.VirtualBond(stash, value, payee)
		if err != nil {
			return err
		}
		s.emit(&Event{Kind: EventBonded, Stash: stash, Other: payee, Amount: new(big.Int).Set(ledger.Active)})
		logger.Info("virtually bonded", "stash", stash, "payee", payee, "value", ledger.Active)
		return nil
	})
}

func (s *Staker) checkRestricted(stash npos.Address) error {
	if s.deps.Filter.Restricted(stash) {
		return reverts.ErrRestricted
	}
	return nil
}

// Unbond schedules value of the active stake of stash to unlock after the bonding duration.
// Validators and nominators must keep the minimum bond of their role.
func (s *Staker) Unbond(stash npos.Address, value *big.Int) error {
	return s.atomic("unbond", func() error {
		minActive, err := s.minActiveBond(stash)
		if err != nil {
			return err
		}
		current, err := s.currentEra()
		if err != nil {
			return err
		}
		amount, era, err := s.bonding.Unbond(stash, value, current, minActive)
		if err != nil {
			return err
		}
		s.emit(&Event{Kind: EventUnbonded, Stash: stash, Era: era, Amount: amount})
		logger.Info("unbonded", "stash", stash, "value", amount, "unlock", era)
		return nil
	})
}

// WithdrawUnbonded frees the unlocked chunks of stash. A ledger left empty is removed
// along with the intentions of the stash.
func (s *Staker) WithdrawUnbonded(stash npos.Address) error {
	return s.atomic("withdraw_unbonded", func() error {
		current, err := s.currentEra()
		if err != nil {
			return err
		}
		withdrawn, purged, err := s.bonding.WithdrawUnbonded(stash, current)
		if err != nil {
			return err
		}
		if purged {
			if err := s.chill(stash); err != nil {
				return err
			}
		}
		if withdrawn.Sign() > 0 {
			s.emit(&Event{Kind: EventWithdrawn, Stash: stash, Amount: withdrawn})
		}
		logger.Info("withdrawn", "stash", stash, "value", withdrawn, "purged", purged)
		return nil
	})
}

// SetController makes stash its own controller.
func (s *Staker) SetController(stash npos.Address) error {
	return s.atomic("set_controller", func() error {
		return s.bonding.SetController(stash)
	})
}

func (s *Staker) SetPayee(stash npos.Address, payee bonding.RewardDestination) error {
	return s.atomic("set_payee", func() error {
		return s.bonding.SetPayee(stash, payee)
	})
}

// DeprecateControllerBatch collapses up to MaxControllersInDeprecationBatch legacy controller pairs.
func (s *Staker) DeprecateControllerBatch() (*bonding.Migration, error) {
	var migration *bonding.Migration
	err := s.atomic("deprecate_controller_batch", func() error {
		var err error
		migration, err = s.bonding.DeprecateControllers(int(s.cfg.MaxControllersInDeprecationBatch))
		if err != nil {
			return err
		}
		s.emit(&Event{Kind: EventControllerBatchDeprecated, Count: uint32(len(migration.Migrated))})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return migration, nil
}

//
// Intentions
//

// Validate declares stash a validator candidate.
func (s *Staker) Validate(stash npos.Address, prefs voters.ValidatorPrefs) error {
	return s.atomic("validate", func() error {
		if err := s.requireBond(stash, s.cfg.validatorBond()); err != nil {
			return err
		}
		if err := s.voters.Validate(stash, prefs); err != nil {
			return err
		}
		s.emit(&Event{Kind: EventValidatorPrefsSet, Stash: stash})
		logger.Info("validator intention set", "stash", stash, "commission", prefs.Commission)
		return nil
	})
}

// Nominate declares stash a nominator of targets.
func (s *Staker) Nominate(stash npos.Address, targets []npos.Address) error {
	return s.atomic("nominate", func() error {
		if err := s.requireBond(stash, s.cfg.nominatorBond()); err != nil {
			return err
		}
		current, err := s.currentEra()
		if err != nil {
			return err
		}
		nominations, err := s.voters.Nominate(stash, targets, current)
		if err != nil {
			return err
		}
		logger.Info("nominated", "stash", stash, "targets", len(nominations.Targets))
		return nil
	})
}

// Chill drops any intention of stash.
func (s *Staker) Chill(stash npos.Address) error {
	return s.atomic("chill", func() error {
		bonded, err := s.bonding.IsBonded(stash)
		if err != nil {
			return err
		}
		if !bonded {
			return reverts.ErrNotStash
		}
		return s.chill(stash)
	})
}

// Kick removes nominators from the targets of a validator.
func (s *Staker) Kick(validator npos.Address, nominators []npos.Address) error {
	return s.atomic("kick", func() error {
		prefs, err := s.voters.Validator(validator)
		if err != nil {
			return err
		}
		if prefs == nil {
			return reverts.ErrNotStash
		}
		kicked, err := s.voters.Kick(validator, nominators)
		if err != nil {
			return err
		}
		for _, who := range kicked {
			s.emit(&Event{Kind: EventKicked, Stash: who, Other: validator})
		}
		return nil
	})
}

func (s *Staker) chill(stash npos.Address) error {
	chilled, err := s.voters.Chill(stash)
	if err != nil {
		return err
	}
	if chilled {
		s.emit(&Event{Kind: EventChilled, Stash: stash})
	}
	return nil
}

func (s *Staker) requireBond(stash npos.Address, minimum *big.Int) error {
	ledger, err := s.bonding.Ledger(stash)
	if err != nil {
		return err
	}
	if ledger == nil {
		return reverts.ErrNotStash
	}
	if ledger.Active.Cmp(minimum) < 0 || ledger.Active.Sign() == 0 {
		return reverts.ErrInsufficientBond
	}
	return nil
}

// minActiveBond is the bond stash must keep for its role, nil without one.
func (s *Staker) minActiveBond(stash npos.Address) (*big.Int, error) {
	if prefs, err := s.voters.Validator(stash); err != nil {
		return nil, err
	} else if prefs != nil {
		return s.cfg.validatorBond(), nil
	}
	if noms, err := s.voters.Nominations(stash); err != nil {
		return nil, err
	} else if noms != nil {
		return s.cfg.nominatorBond(), nil
	}
	return nil, nil
}

//
// Administration
//

// ForceNewEra plans a new era at the next session end, once.
func (s *Staker) ForceNewEra() error {
	return s.setForcing(eras.ForceNew)
}

// ForceNoEras stops planning eras until forcing is changed.
func (s *Staker) ForceNoEras() error {
	return s.setForcing(eras.ForceNone)
}

// ForceNewEraAlways plans a new era at every session end.
func (s *Staker) ForceNewEraAlways() error {
	return s.setForcing(eras.ForceAlways)
}

func (s *Staker) setForcing(mode eras.Forcing) error {
	return s.atomic("force_era", func() error {
		if err := s.eras.SetForcing(mode); err != nil {
			return err
		}
		s.emit(&Event{Kind: EventForceEra, Mode: mode.String()})
		logger.Info("era forcing changed", "mode", mode)
		return nil
	})
}

// SetInvulnerables replaces the stashes exempt from slashing.
func (s *Staker) SetInvulnerables(list []npos.Address) error {
	return s.atomic("set_invulnerables", func() error {
		return s.slashing.SetInvulnerables(list)
	})
}

// CancelDeferredSlash cancels the pending slashes due at era with the given sorted indices.
func (s *Staker) CancelDeferredSlash(era npos.EraIndex, indices []uint32) error {
	return s.atomic("cancel_deferred_slash", func() error {
		cancelled, err := s.slashing.Cancel(era, indices)
		if err != nil {
			return err
		}
		for _, slash := range cancelled {
			s.emit(&Event{Kind: EventSlashCancelled, Era: slash.SlashEra, Stash: slash.Validator, Amount: slash.Total()})
			logger.Info("slash cancelled", "validator", slash.Validator, "slashEra", slash.SlashEra, "applyEra", era)
		}
		return nil
	})
}
