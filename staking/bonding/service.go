// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package bonding

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/vechain/npos/currency"
	"github.com/vechain/npos/log"
	"github.com/vechain/npos/npos"
	"github.com/vechain/npos/staking/reverts"
	"github.com/vechain/npos/storage"
)

var (
	slotBonded  = storage.Slot("bonding-bonded")
	slotLedgers = storage.Slot("bonding-ledgers")
	slotPayees  = storage.Slot("bonding-payees")
	slotVirtual = storage.Slot("bonding-virtual")

	logger = log.WithContext("pkg", "bonding")
)

// Params bounds the bonding registry.
type Params struct {
	BondingDuration    uint32
	MaxUnlockingChunks uint32
}

// Service owns the stash to controller pairing, the ledgers and the payees.
// Funds bonded in a ledger are held in the currency at all times, except for virtual
// ledgers whose funds are managed outside the engine.
type Service struct {
	bonded   *storage.Mapping[npos.Address, npos.Address]
	ledgers  *storage.Mapping[npos.Address, *Ledger]
	payees   *storage.Mapping[npos.Address, *RewardDestination]
	virtual  *storage.Mapping[npos.Address, bool]
	stashes  *storage.LinkedList
	currency currency.Currency
	params   Params
}

func New(sctx *storage.Context, cur currency.Currency, params Params) *Service {
	return &Service{
		bonded:   storage.NewMapping[npos.Address, npos.Address](sctx, slotBonded),
		ledgers:  storage.NewMapping[npos.Address, *Ledger](sctx, slotLedgers),
		payees:   storage.NewMapping[npos.Address, *RewardDestination](sctx, slotPayees),
		virtual:  storage.NewMapping[npos.Address, bool](sctx, slotVirtual),
		stashes:  storage.NewLinkedList(sctx, "bonding-stashes"),
		currency: cur,
		params:   params,
	}
}

// Controller returns the controller of a stash, or the zero address if it is not bonded.
func (s *Service) Controller(stash npos.Address) (npos.Address, error) {
	controller, err := s.bonded.Get(stash)
	if err != nil {
		return npos.Address{}, errors.Wrap(err, "failed to get controller")
	}
	return controller, nil
}

// IsBonded reports whether stash has a ledger.
func (s *Service) IsBonded(stash npos.Address) (bool, error) {
	return s.bonded.Has(stash)
}

// IsVirtual reports whether stash was bonded with VirtualBond.
func (s *Service) IsVirtual(stash npos.Address) (bool, error) {
	return s.virtual.Has(stash)
}

// Ledger returns a copy of the ledger of the stash, or nil if not bonded.
func (s *Service) Ledger(stash npos.Address) (*Ledger, error) {
	controller, err := s.Controller(stash)
	if err != nil || controller.IsZero() {
		return nil, err
	}
	ledger, err := s.ledgers.Get(controller)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get ledger")
	}
	if ledger == nil || ledger.Stash != stash {
		return nil, errors.Wrapf(reverts.ErrBadState, "ledger of %v not found at controller %v", stash, controller)
	}
	return ledger, nil
}

// LedgerByController returns the ledger keyed by controller, or nil.
func (s *Service) LedgerByController(controller npos.Address) (*Ledger, error) {
	ledger, err := s.ledgers.Get(controller)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get ledger")
	}
	return ledger, nil
}

// Payee returns the reward destination of a stash, or nil.
func (s *Service) Payee(stash npos.Address) (*RewardDestination, error) {
	payee, err := s.payees.Get(stash)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get payee")
	}
	return payee, nil
}

// SetPayee updates the reward destination of a bonded stash.
func (s *Service) SetPayee(stash npos.Address, payee RewardDestination) error {
	if err := payee.validate(); err != nil {
		return reverts.New(err.Error())
	}
	bonded, err := s.IsBonded(stash)
	if err != nil {
		return err
	}
	if !bonded {
		return reverts.ErrNotStash
	}
	if err := s.checkVirtualPayee(stash, payee); err != nil {
		return err
	}
	return s.payees.Set(stash, &payee)
}

// Stashes iterates bonded stashes in insertion order.
func (s *Service) Stashes(cb func(npos.Address) error) error {
	return s.stashes.Iter(cb)
}

// Count returns the number of bonded stashes.
func (s *Service) Count() (uint64, error) {
	return s.stashes.Len()
}

// Bond bonds up to value from the free balance of stash, using the stash as its own controller.
func (s *Service) Bond(stash npos.Address, value *big.Int, payee RewardDestination) (*Ledger, error) {
	return s.BondWithController(stash, stash, value, payee)
}

// BondWithController bonds up to value from stash under a separate controller.
// Only accepted for pairs that cannot form a controller chain.
func (s *Service) BondWithController(stash, controller npos.Address, value *big.Int, payee RewardDestination) (*Ledger, error) {
	if stash.IsZero() || controller.IsZero() {
		return nil, reverts.ErrZeroAddress
	}
	if value == nil || value.Sign() <= 0 {
		return nil, reverts.ErrZeroAmount
	}
	if err := payee.validate(); err != nil {
		return nil, reverts.New(err.Error())
	}
	if err := s.checkUnbonded(stash); err != nil {
		return nil, err
	}
	if controller != stash {
		if existing, err := s.ledgers.Has(controller); err != nil {
			return nil, err
		} else if existing {
			return nil, reverts.ErrAlreadyPaired
		}
		if isStash, err := s.IsBonded(controller); err != nil {
			return nil, err
		} else if isStash {
			return nil, reverts.ErrAlreadyPaired
		}
	}

	value, err := s.available(stash, value)
	if err != nil {
		return nil, err
	}
	if value.Cmp(s.currency.MinimumBalance()) < 0 {
		return nil, reverts.ErrInsufficientBond
	}
	if err := s.currency.Hold(stash, value); err != nil {
		return nil, err
	}

	ledger := newLedger(stash, value)
	if err := s.insert(ledger, controller, payee); err != nil {
		return nil, err
	}
	logger.Debug("bonded", "stash", stash, "controller", controller, "value", value)
	return ledger, nil
}

// VirtualBond records a ledger of value for stash without holding any of its balance.
// The funds are managed by the caller, rewards go to payee and slashes only reduce the ledger.
func (s *Service) VirtualBond(stash npos.Address, value *big.Int, payee npos.Address) (*Ledger, error) {
	if stash.IsZero() || payee.IsZero() {
		return nil, reverts.ErrZeroAddress
	}
	if payee == stash {
		return nil, reverts.ErrRewardDestinationRestricted
	}
	if value == nil || value.Sign() <= 0 {
		return nil, reverts.ErrZeroAmount
	}
	if err := s.checkUnbonded(stash); err != nil {
		return nil, err
	}
	if value.Cmp(s.currency.MinimumBalance()) < 0 {
		return nil, reverts.ErrInsufficientBond
	}

	ledger := newLedger(stash, value)
	if err := s.insert(ledger, stash, RewardDestination{Kind: Account, Account: payee}); err != nil {
		return nil, err
	}
	if err := s.virtual.Set(stash, true); err != nil {
		return nil, err
	}
	logger.Debug("virtually bonded", "stash", stash, "payee", payee, "value", value)
	return ledger, nil
}

// checkUnbonded fails if stash is bonded or controls the ledger of another stash.
func (s *Service) checkUnbonded(stash npos.Address) error {
	if bonded, err := s.IsBonded(stash); err != nil {
		return err
	} else if bonded {
		return reverts.ErrAlreadyBonded
	}
	if existing, err := s.ledgers.Has(stash); err != nil {
		return err
	} else if existing {
		return reverts.ErrAlreadyPaired
	}
	return nil
}

func (s *Service) insert(ledger *Ledger, controller npos.Address, payee RewardDestination) error {
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

// checkVirtualPayee refuses destinations that would need the held funds of a virtual stash.
func (s *Service) checkVirtualPayee(stash npos.Address, payee RewardDestination) error {
	virtual, err := s.IsVirtual(stash)
	if err != nil {
		return err
	}
	if virtual && (payee.Kind != Account || payee.Account == stash) {
		return reverts.ErrRewardDestinationRestricted
	}
	return nil
}

// BondExtra adds up to value from the free balance of stash to its active stake.
func (s *Service) BondExtra(stash npos.Address, value *big.Int) (*Ledger, error) {
	if value == nil || value.Sign() <= 0 {
		return nil, reverts.ErrZeroAmount
	}
	ledger, err := s.Ledger(stash)
	if err != nil {
		return nil, err
	}
	if ledger == nil {
		return nil, reverts.ErrNoLedger
	}
	if virtual, err := s.IsVirtual(stash); err != nil {
		return nil, err
	} else if virtual {
		return nil, reverts.ErrVirtualStaker
	}
	value, err = s.available(stash, value)
	if err != nil {
		return nil, err
	}
	if value.Sign() == 0 {
		return nil, reverts.ErrInsufficientBalance
	}
	if err := s.currency.Hold(stash, value); err != nil {
		return nil, err
	}
	ledger.Total = new(big.Int).Add(ledger.Total, value)
	ledger.Active = new(big.Int).Add(ledger.Active, value)
	if err := s.update(stash, ledger); err != nil {
		return nil, err
	}
	logger.Debug("bonded extra", "stash", stash, "value", value, "active", ledger.Active)
	return ledger, nil
}

// Unbond schedules value of the active stake to unlock at currentEra+BondingDuration.
// If the remaining active stake would fall below the minimum balance, all of it is unbonded.
// minActive is the bond the stash must keep for its current intention.
func (s *Service) Unbond(stash npos.Address, value *big.Int, currentEra npos.EraIndex, minActive *big.Int) (*big.Int, npos.EraIndex, error) {
	if value == nil || value.Sign() <= 0 {
		return nil, 0, reverts.ErrZeroAmount
	}
	ledger, err := s.mustLedger(stash)
	if err != nil {
		return nil, 0, err
	}
	if value.Cmp(ledger.Active) > 0 {
		return nil, 0, reverts.ErrInsufficientActiveStake
	}
	amount := new(big.Int).Set(value)
	if left := new(big.Int).Sub(ledger.Active, amount); left.Cmp(s.currency.MinimumBalance()) < 0 {
		amount.Set(ledger.Active)
	}
	if minActive != nil && new(big.Int).Sub(ledger.Active, amount).Cmp(minActive) < 0 {
		return nil, 0, reverts.ErrInsufficientBond
	}

	era := currentEra + npos.EraIndex(s.params.BondingDuration)
	if !ledger.unbond(amount, era, s.params.MaxUnlockingChunks) {
		return nil, 0, reverts.ErrTooManyChunks
	}
	if err := s.update(stash, ledger); err != nil {
		return nil, 0, err
	}
	logger.Debug("unbonded", "stash", stash, "value", amount, "era", era)
	return amount, era, nil
}

// WithdrawUnbonded releases every chunk unlocked by currentEra back to the free balance.
// When nothing remains bonded the ledger is removed entirely and purged is true.
func (s *Service) WithdrawUnbonded(stash npos.Address, currentEra npos.EraIndex) (withdrawn *big.Int, purged bool, err error) {
	ledger, err := s.mustLedger(stash)
	if err != nil {
		return nil, false, err
	}
	virtual, err := s.IsVirtual(stash)
	if err != nil {
		return nil, false, err
	}
	release := func(value *big.Int) error {
		if virtual || value.Sign() == 0 {
			return nil
		}
		return s.currency.Release(stash, value)
	}

	withdrawn = ledger.consolidateUnlocked(currentEra)
	if len(ledger.Unlocking) == 0 && ledger.Active.Cmp(s.currency.MinimumBalance()) < 0 {
		// active dust goes with the ledger
		withdrawn.Add(withdrawn, ledger.Active)
		if err := release(withdrawn); err != nil {
			return nil, false, err
		}
		if err := s.Kill(stash); err != nil {
			return nil, false, err
		}
		return withdrawn, true, nil
	}
	if withdrawn.Sign() > 0 {
		if err := release(withdrawn); err != nil {
			return nil, false, err
		}
		if err := s.update(stash, ledger); err != nil {
			return nil, false, err
		}
	}
	logger.Debug("withdrawn", "stash", stash, "value", withdrawn)
	return withdrawn, false, nil
}

// Kill removes all bonding records of the stash. Held funds are left to the caller.
func (s *Service) Kill(stash npos.Address) error {
	controller, err := s.Controller(stash)
	if err != nil {
		return err
	}
	if controller.IsZero() {
		return reverts.ErrNotStash
	}
	s.ledgers.Delete(controller)
	s.bonded.Delete(stash)
	s.payees.Delete(stash)
	s.virtual.Delete(stash)
	if err := s.stashes.Remove(stash); err != nil {
		return err
	}
	logger.Debug("ledger purged", "stash", stash)
	return nil
}

// SetController makes the stash its own controller.
func (s *Service) SetController(stash npos.Address) error {
	controller, err := s.Controller(stash)
	if err != nil {
		return err
	}
	if controller.IsZero() {
		return reverts.ErrNotStash
	}
	if controller == stash {
		return reverts.ErrAlreadyController
	}
	// the stash key is taken by a ledger it controls for another stash
	if taken, err := s.ledgers.Has(stash); err != nil {
		return err
	} else if taken {
		return reverts.ErrBadState
	}
	ledger, err := s.Ledger(stash)
	if err != nil {
		return err
	}
	s.ledgers.Delete(controller)
	if err := s.ledgers.Set(stash, ledger); err != nil {
		return err
	}
	if err := s.bonded.Set(stash, stash); err != nil {
		return err
	}
	logger.Debug("controller reset", "stash", stash, "old", controller)
	return nil
}

// Slash removes up to value from the ledger and burns the held funds.
// Virtual ledgers are only reduced, the caller managing their funds learns of it via the listener.
// It returns the amount slashed and the post-slash unlocking chunk values.
func (s *Service) Slash(stash npos.Address, value *big.Int, slashEra npos.EraIndex) (*big.Int, *Ledger, map[npos.EraIndex]*big.Int, error) {
	ledger, err := s.mustLedger(stash)
	if err != nil {
		return nil, nil, nil, err
	}
	slashed, chunks := ledger.slash(value, s.currency.MinimumBalance(), slashEra, s.params.BondingDuration)
	if slashed.Sign() == 0 {
		return slashed, ledger, chunks, nil
	}
	virtual, err := s.IsVirtual(stash)
	if err != nil {
		return nil, nil, nil, err
	}
	if !virtual {
		burned, err := s.currency.BurnHeld(stash, slashed)
		if err != nil {
			return nil, nil, nil, err
		}
		if burned.Cmp(slashed) != 0 {
			return nil, nil, nil, errors.Wrapf(reverts.ErrBadState, "held funds of %v do not cover ledger", stash)
		}
	}
	if err := s.update(stash, ledger); err != nil {
		return nil, nil, nil, err
	}
	logger.Debug("ledger slashed", "stash", stash, "value", slashed, "active", ledger.Active)
	return slashed, ledger, chunks, nil
}

// available caps value at the free balance of who.
func (s *Service) available(who npos.Address, value *big.Int) (*big.Int, error) {
	free, err := s.currency.FreeBalance(who)
	if err != nil {
		return nil, err
	}
	if free.Cmp(value) < 0 {
		return free, nil
	}
	return new(big.Int).Set(value), nil
}

func (s *Service) mustLedger(stash npos.Address) (*Ledger, error) {
	ledger, err := s.Ledger(stash)
	if err != nil {
		return nil, err
	}
	if ledger == nil {
		return nil, reverts.ErrNotStash
	}
	return ledger, nil
}

func (s *Service) update(stash npos.Address, ledger *Ledger) error {
	controller, err := s.Controller(stash)
	if err != nil {
		return err
	}
	if !ledger.IsConsistent() {
		return errors.Wrapf(reverts.ErrBadState, "inconsistent ledger for %v", stash)
	}
	return s.ledgers.Set(controller, ledger)
}
