// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package voters

import (
	"github.com/pkg/errors"

	"github.com/vechain/npos/log"
	"github.com/vechain/npos/npos"
	"github.com/vechain/npos/staking/reverts"
	"github.com/vechain/npos/storage"
)

var (
	slotValidators = storage.Slot("voters-validators")
	slotNominators = storage.Slot("voters-nominators")

	logger = log.WithContext("pkg", "voters")
)

// ValidatorPrefs is the intention of a stash to validate.
type ValidatorPrefs struct {
	Commission npos.Perbill
	// Blocked validators accept no new nominations.
	Blocked bool
}

// Nominations is the intention of a stash to back a set of validators.
type Nominations struct {
	Targets     []npos.Address
	SubmittedIn npos.EraIndex
	// Suppressed nominations are ignored for elections until renewed.
	Suppressed bool
}

// Params bounds intentions.
type Params struct {
	MaxNominations uint32
	MinCommission  npos.Perbill
	// MaxValidators caps the number of validator intentions, zero means no cap.
	MaxValidators uint32
}

// Service stores validator and nominator intentions. A stash holds at most one of them.
type Service struct {
	validators    *storage.Mapping[npos.Address, *ValidatorPrefs]
	nominators    *storage.Mapping[npos.Address, *Nominations]
	validatorList *storage.LinkedList
	nominatorList *storage.LinkedList
	params        Params
}

func New(sctx *storage.Context, params Params) *Service {
	return &Service{
		validators:    storage.NewMapping[npos.Address, *ValidatorPrefs](sctx, slotValidators),
		nominators:    storage.NewMapping[npos.Address, *Nominations](sctx, slotNominators),
		validatorList: storage.NewLinkedList(sctx, "voters-validator-list"),
		nominatorList: storage.NewLinkedList(sctx, "voters-nominator-list"),
		params:        params,
	}
}

// Validator returns the prefs of a validator, or nil.
func (s *Service) Validator(stash npos.Address) (*ValidatorPrefs, error) {
	prefs, err := s.validators.Get(stash)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get validator prefs")
	}
	return prefs, nil
}

// Nominations returns the nominations of a nominator, or nil.
func (s *Service) Nominations(stash npos.Address) (*Nominations, error) {
	nominations, err := s.nominators.Get(stash)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get nominations")
	}
	return nominations, nil
}

// Validate sets the validator intention of stash, replacing any nomination.
func (s *Service) Validate(stash npos.Address, prefs ValidatorPrefs) error {
	if prefs.Commission > npos.PerbillOne {
		return reverts.New("commission above 100%")
	}
	if prefs.Commission < s.params.MinCommission {
		return reverts.ErrCommissionTooLow
	}
	existing, err := s.validators.Has(stash)
	if err != nil {
		return err
	}
	if !existing && s.params.MaxValidators > 0 {
		count, err := s.validatorList.Len()
		if err != nil {
			return err
		}
		if count >= uint64(s.params.MaxValidators) {
			return reverts.ErrTooManyValidators
		}
	}
	if err := s.removeNominator(stash); err != nil {
		return err
	}
	if err := s.validators.Set(stash, &prefs); err != nil {
		return errors.Wrap(err, "failed to set validator prefs")
	}
	if err := s.validatorList.Add(stash); err != nil {
		return err
	}
	logger.Debug("validator intention set", "stash", stash, "commission", prefs.Commission)
	return nil
}

// Nominate sets the nominator intention of stash, replacing any validator intention.
// Blocked validators can only be kept, never newly added.
func (s *Service) Nominate(stash npos.Address, targets []npos.Address, currentEra npos.EraIndex) (*Nominations, error) {
	if len(targets) == 0 {
		return nil, reverts.ErrEmptyTargets
	}
	if uint32(len(targets)) > s.params.MaxNominations {
		return nil, reverts.ErrTooManyTargets
	}
	old, err := s.Nominations(stash)
	if err != nil {
		return nil, err
	}
	seen := make(map[npos.Address]bool, len(targets))
	deduped := make([]npos.Address, 0, len(targets))
	for _, target := range targets {
		if target.IsZero() {
			return nil, reverts.ErrBadTarget
		}
		if seen[target] {
			continue
		}
		seen[target] = true
		prefs, err := s.Validator(target)
		if err != nil {
			return nil, err
		}
		if prefs != nil && prefs.Blocked && (old == nil || !contains(old.Targets, target)) {
			return nil, reverts.ErrBadTarget
		}
		deduped = append(deduped, target)
	}

	if err := s.removeValidator(stash); err != nil {
		return nil, err
	}
	nominations := &Nominations{Targets: deduped, SubmittedIn: currentEra}
	if err := s.nominators.Set(stash, nominations); err != nil {
		return nil, errors.Wrap(err, "failed to set nominations")
	}
	if err := s.nominatorList.Add(stash); err != nil {
		return nil, err
	}
	logger.Debug("nominations set", "stash", stash, "targets", len(deduped))
	return nominations, nil
}

// Chill removes any intention of stash and reports whether it had one.
func (s *Service) Chill(stash npos.Address) (bool, error) {
	wasValidator, err := s.validators.Has(stash)
	if err != nil {
		return false, err
	}
	wasNominator, err := s.nominators.Has(stash)
	if err != nil {
		return false, err
	}
	if err := s.removeValidator(stash); err != nil {
		return false, err
	}
	if err := s.removeNominator(stash); err != nil {
		return false, err
	}
	return wasValidator || wasNominator, nil
}

// Kick removes the given nominators from the targets of a blocked validator.
func (s *Service) Kick(validator npos.Address, nominators []npos.Address) ([]npos.Address, error) {
	var kicked []npos.Address
	for _, who := range nominators {
		nominations, err := s.Nominations(who)
		if err != nil {
			return nil, err
		}
		if nominations == nil || !contains(nominations.Targets, validator) {
			continue
		}
		kept := nominations.Targets[:0]
		for _, t := range nominations.Targets {
			if t != validator {
				kept = append(kept, t)
			}
		}
		nominations.Targets = kept
		if err := s.nominators.Set(who, nominations); err != nil {
			return nil, err
		}
		kicked = append(kicked, who)
	}
	return kicked, nil
}

// IterValidators iterates validator intentions in insertion order.
func (s *Service) IterValidators(cb func(npos.Address, *ValidatorPrefs) error) error {
	return s.validatorList.Iter(func(stash npos.Address) error {
		prefs, err := s.Validator(stash)
		if err != nil {
			return err
		}
		return cb(stash, prefs)
	})
}

// IterNominators iterates nominator intentions in insertion order.
func (s *Service) IterNominators(cb func(npos.Address, *Nominations) error) error {
	return s.nominatorList.Iter(func(stash npos.Address) error {
		nominations, err := s.Nominations(stash)
		if err != nil {
			return err
		}
		return cb(stash, nominations)
	})
}

func (s *Service) CountValidators() (uint64, error) {
	return s.validatorList.Len()
}

func (s *Service) CountNominators() (uint64, error) {
	return s.nominatorList.Len()
}

func (s *Service) removeValidator(stash npos.Address) error {
	s.validators.Delete(stash)
	return s.validatorList.Remove(stash)
}

func (s *Service) removeNominator(stash npos.Address) error {
	s.nominators.Delete(stash)
	return s.nominatorList.Remove(stash)
}

func contains(list []npos.Address, addr npos.Address) bool {
	for _, a := range list {
		if a == addr {
			return true
		}
	}
	return false
}
