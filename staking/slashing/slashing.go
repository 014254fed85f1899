// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package slashing

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/vechain/npos/log"
	"github.com/vechain/npos/npos"
	"github.com/vechain/npos/staking/exposure"
	"github.com/vechain/npos/staking/reverts"
	"github.com/vechain/npos/storage"
)

var (
	slotValidatorSlashes = storage.Slot("slashing-validator-in-era")
	slotNominatorSlashes = storage.Slot("slashing-nominator-in-era")
	slotSlashedInEra     = storage.Slot("slashing-slashed-in-era")
	slotUnapplied        = storage.Slot("slashing-unapplied")
	slotInvulnerables    = storage.Slot("slashing-invulnerables")

	logger = log.WithContext("pkg", "slashing")
)

// Offence is a misbehaviour of a validator reported for a session.
type Offence struct {
	Offender  npos.Address
	Reporters []npos.Address
	Fraction  npos.Perbill
}

// Status is the lifecycle of an unapplied slash.
type Status uint8

const (
	Pending Status = iota
	Applied
	Cancelled
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Applied:
		return "applied"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// UnappliedSlash is a computed slash waiting to be applied to the ledgers.
type UnappliedSlash struct {
	Validator npos.Address
	SlashEra  npos.EraIndex
	Own       *big.Int
	Others    []exposure.Individual
	Reporters []npos.Address
	// Payout is the amount minted to reporters, known once applied.
	Payout *big.Int
	Status Status
}

// Total is the sum of all amounts the slash takes.
func (u *UnappliedSlash) Total() *big.Int {
	total := new(big.Int).Set(u.Own)
	for _, o := range u.Others {
		total.Add(total, o.Value)
	}
	return total
}

type validatorSlash struct {
	Fraction npos.Perbill
	Amount   *big.Int
}

// Service records per-era slashing state and deferred slashes.
type Service struct {
	validatorSlashes *storage.Mapping[npos.Bytes32, *validatorSlash]
	nominatorSlashes *storage.Mapping[npos.Bytes32, *big.Int]
	slashedInEra     *storage.Mapping[npos.EraIndex, []npos.Address]
	unapplied        *storage.Mapping[npos.EraIndex, []*UnappliedSlash]
	invulnerables    *storage.Value[[]npos.Address]
	disabled         *storage.Value[[]DisabledValidator]
}

func New(sctx *storage.Context) *Service {
	return &Service{
		validatorSlashes: storage.NewMapping[npos.Bytes32, *validatorSlash](sctx, slotValidatorSlashes),
		nominatorSlashes: storage.NewMapping[npos.Bytes32, *big.Int](sctx, slotNominatorSlashes),
		slashedInEra:     storage.NewMapping[npos.EraIndex, []npos.Address](sctx, slotSlashedInEra),
		unapplied:        storage.NewMapping[npos.EraIndex, []*UnappliedSlash](sctx, slotUnapplied),
		invulnerables:    storage.NewValue[[]npos.Address](sctx, slotInvulnerables),
		disabled:         storage.NewValue[[]DisabledValidator](sctx, slotDisabled),
	}
}

// Invulnerables returns the stashes that are never slashed.
func (s *Service) Invulnerables() ([]npos.Address, error) {
	return s.invulnerables.Get()
}

func (s *Service) SetInvulnerables(list []npos.Address) error {
	if len(list) == 0 {
		s.invulnerables.Delete()
		return nil
	}
	return s.invulnerables.Set(list)
}

func (s *Service) IsInvulnerable(stash npos.Address) (bool, error) {
	list, err := s.Invulnerables()
	if err != nil {
		return false, err
	}
	for _, a := range list {
		if a == stash {
			return true, nil
		}
	}
	return false, nil
}

// Compute derives the slash of offence over the offender's exposure in era.
// Only the part exceeding what earlier offences in the same era already took is returned,
// so repeated reports slash by the largest fraction once. A nil result means nothing to slash.
func (s *Service) Compute(era npos.EraIndex, offence Offence, exp *exposure.Exposure) (*UnappliedSlash, error) {
	if offence.Fraction.IsZero() || exp == nil {
		return nil, nil
	}
	fraction := min(offence.Fraction, npos.PerbillOne)
	key := npos.EraStashKey(era, offence.Offender)
	prior, err := s.validatorSlashes.Get(key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get validator slash")
	}
	priorFraction := npos.Perbill(0)
	priorAmount := new(big.Int)
	if prior != nil {
		if fraction <= prior.Fraction {
			logger.Debug("slash not above prior in era", "offender", offence.Offender, "era", era, "prior", prior.Fraction)
			return nil, nil
		}
		priorFraction, priorAmount = prior.Fraction, prior.Amount
	}

	ownSlash := fraction.MulFloor(exp.Own)
	if err := s.validatorSlashes.Set(key, &validatorSlash{Fraction: fraction, Amount: ownSlash}); err != nil {
		return nil, err
	}
	if err := s.markSlashed(era, offence.Offender); err != nil {
		return nil, err
	}

	slash := &UnappliedSlash{
		Validator: offence.Offender,
		SlashEra:  era,
		Own:       new(big.Int).Sub(ownSlash, priorAmount),
		Reporters: offence.Reporters,
		Payout:    new(big.Int),
		Status:    Pending,
	}
	for _, backer := range exp.Others {
		diff := new(big.Int).Sub(fraction.MulFloor(backer.Value), priorFraction.MulFloor(backer.Value))
		if diff.Sign() <= 0 {
			continue
		}
		nomKey := npos.EraStashKey(era, backer.Who)
		inEra, err := s.nominatorSlashes.Get(nomKey)
		if err != nil {
			return nil, errors.Wrap(err, "failed to get nominator slash")
		}
		if inEra == nil {
			inEra = new(big.Int)
		}
		if err := s.nominatorSlashes.Set(nomKey, inEra.Add(inEra, diff)); err != nil {
			return nil, err
		}
		if err := s.markSlashed(era, backer.Who); err != nil {
			return nil, err
		}
		slash.Others = append(slash.Others, exposure.Individual{Who: backer.Who, Value: diff})
	}
	if slash.Own.Sign() <= 0 && len(slash.Others) == 0 {
		return nil, nil
	}
	return slash, nil
}

// ValidatorSlashInEra returns the largest fraction and own amount slashed from a validator in era.
func (s *Service) ValidatorSlashInEra(era npos.EraIndex, stash npos.Address) (npos.Perbill, *big.Int, error) {
	rec, err := s.validatorSlashes.Get(npos.EraStashKey(era, stash))
	if err != nil || rec == nil {
		return 0, new(big.Int), err
	}
	return rec.Fraction, rec.Amount, nil
}

// NominatorSlashInEra returns the amount slashed from a nominator in era.
func (s *Service) NominatorSlashInEra(era npos.EraIndex, stash npos.Address) (*big.Int, error) {
	v, err := s.nominatorSlashes.Get(npos.EraStashKey(era, stash))
	if err != nil || v == nil {
		return new(big.Int), err
	}
	return v, nil
}

// Defer queues slash to be applied when applyEra starts and returns its index in that era.
func (s *Service) Defer(applyEra npos.EraIndex, slash *UnappliedSlash) (int, error) {
	list, err := s.Unapplied(applyEra)
	if err != nil {
		return 0, err
	}
	slash.Status = Pending
	list = append(list, slash)
	if err := s.unapplied.Set(applyEra, list); err != nil {
		return 0, err
	}
	logger.Debug("slash deferred", "validator", slash.Validator, "slashEra", slash.SlashEra, "applyEra", applyEra)
	return len(list) - 1, nil
}

// Unapplied returns every slash queued for applyEra, in any status.
func (s *Service) Unapplied(applyEra npos.EraIndex) ([]*UnappliedSlash, error) {
	list, err := s.unapplied.Get(applyEra)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get unapplied slashes")
	}
	return list, nil
}

// Cancel marks the pending slashes at the given sorted, unique indices as cancelled.
func (s *Service) Cancel(applyEra npos.EraIndex, indices []uint32) ([]*UnappliedSlash, error) {
	if len(indices) == 0 {
		return nil, reverts.ErrEmptySlashIndices
	}
	for i := 1; i < len(indices); i++ {
		if indices[i] <= indices[i-1] {
			return nil, reverts.ErrNotSortedAndUnique
		}
	}
	list, err := s.Unapplied(applyEra)
	if err != nil {
		return nil, err
	}
	if int(indices[len(indices)-1]) >= len(list) {
		return nil, reverts.ErrInvalidSlashIndex
	}
	cancelled := make([]*UnappliedSlash, 0, len(indices))
	for _, i := range indices {
		if list[i].Status != Pending {
			return nil, reverts.ErrSlashNotPending
		}
		list[i].Status = Cancelled
		cancelled = append(cancelled, list[i])
	}
	if err := s.unapplied.Set(applyEra, list); err != nil {
		return nil, err
	}
	return cancelled, nil
}

// MarkApplied records the outcome of applying the pending slash at index.
func (s *Service) MarkApplied(applyEra npos.EraIndex, index int, payout *big.Int) error {
	list, err := s.Unapplied(applyEra)
	if err != nil {
		return err
	}
	if index >= len(list) {
		return errors.Errorf("no unapplied slash %d in era %d", index, applyEra)
	}
	list[index].Status = Applied
	list[index].Payout = new(big.Int).Set(payout)
	return s.unapplied.Set(applyEra, list)
}

// ClearEra drops the per-era records of an era leaving the bonded window.
func (s *Service) ClearEra(era npos.EraIndex) error {
	stashes, err := s.slashedInEra.Get(era)
	if err != nil {
		return err
	}
	for _, stash := range stashes {
		key := npos.EraStashKey(era, stash)
		s.validatorSlashes.Delete(key)
		s.nominatorSlashes.Delete(key)
	}
	s.slashedInEra.Delete(era)
	s.unapplied.Delete(era)
	return nil
}

func (s *Service) markSlashed(era npos.EraIndex, stash npos.Address) error {
	list, err := s.slashedInEra.Get(era)
	if err != nil {
		return err
	}
	for _, a := range list {
		if a == stash {
			return nil
		}
	}
	return s.slashedInEra.Set(era, append(list, stash))
}
