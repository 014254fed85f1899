// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staking

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/vechain/npos/npos"
	"github.com/vechain/npos/staking/eras"
	"github.com/vechain/npos/staking/reverts"
	"github.com/vechain/npos/staking/slashing"
)

// OnOffence handles offences committed in slashSession. The session is resolved to the active era
// when it belongs to it, else to the newest bonded era started at or before it.
// Sessions older than the bonded window fail with eras.ErrEraTooOld.
func (s *Staker) OnOffence(offences []slashing.Offence, slashSession npos.SessionIndex) ([]*slashing.UnappliedSlash, error) {
	era, err := s.eras.EraForSession(slashSession)
	if err != nil {
		return nil, errors.Wrapf(err, "offence session %d", slashSession)
	}
	return s.OnOffenceInEra(offences, era)
}

// OnOffenceInEra handles offences committed in era, which must be the active era or in the bonded window.
// It returns the slashes computed, applied at once without a defer duration, queued otherwise.
func (s *Staker) OnOffenceInEra(offences []slashing.Offence, era npos.EraIndex) ([]*slashing.UnappliedSlash, error) {
	var computed []*slashing.UnappliedSlash
	err := s.atomic("on_offence", func() error {
		bonded, err := s.eras.IsBonded(era)
		if err != nil {
			return err
		}
		if !bonded {
			return errors.Wrapf(eras.ErrEraTooOld, "era %d", era)
		}
		active, err := s.eras.ActiveEra()
		if err != nil {
			return err
		}
		for _, offence := range offences {
			slash, err := s.computeSlash(era, offence)
			if err != nil {
				return err
			}
			if slash == nil {
				continue
			}
			computed = append(computed, slash)
			s.emit(&Event{Kind: EventSlashReported, Era: era, Stash: offence.Offender, Amount: slash.Total()})
			if era == active.Index {
				if err := s.disable(era, offence); err != nil {
					return err
				}
			}

			if s.cfg.SlashDeferDuration == 0 {
				payout, err := s.applySlash(slash)
				if err != nil {
					return err
				}
				slash.Status = slashing.Applied
				slash.Payout = payout
				continue
			}
			applyEra := max(era+npos.EraIndex(s.cfg.SlashDeferDuration), active.Index+1)
			index, err := s.slashing.Defer(applyEra, slash)
			if err != nil {
				return err
			}
			logger.Info("slash deferred", "validator", offence.Offender, "era", era, "applyEra", applyEra, "index", index)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return computed, nil
}

// disable bars the offender from authoring for the rest of the active era.
func (s *Staker) disable(era npos.EraIndex, offence slashing.Offence) error {
	validators, err := s.exposures.Validators(era)
	if err != nil {
		return err
	}
	disabled, reenabled, err := s.slashing.Disable(offence.Offender, offence.Fraction, len(validators))
	if err != nil {
		return err
	}
	if reenabled != nil {
		s.emit(&Event{Kind: EventValidatorReenabled, Era: era, Stash: *reenabled})
		logger.Info("validator re-enabled", "validator", *reenabled, "era", era)
	}
	if disabled {
		s.emit(&Event{Kind: EventValidatorDisabled, Era: era, Stash: offence.Offender})
		logger.Info("validator disabled", "validator", offence.Offender, "era", era)
	}
	return nil
}

func (s *Staker) computeSlash(era npos.EraIndex, offence slashing.Offence) (*slashing.UnappliedSlash, error) {
	invulnerable, err := s.slashing.IsInvulnerable(offence.Offender)
	if err != nil {
		return nil, err
	}
	if invulnerable {
		logger.Debug("offence of invulnerable ignored", "offender", offence.Offender, "era", era)
		return nil, nil
	}
	exp, err := s.exposures.Exposure(era, offence.Offender)
	if err != nil {
		return nil, err
	}
	if exp == nil {
		logger.Debug("offender not exposed", "offender", offence.Offender, "era", era)
		return nil, nil
	}
	return s.slashing.Compute(era, offence, exp)
}

// applySlash takes the slash from the ledgers and rewards the reporters.
// It returns the amount minted to reporters.
func (s *Staker) applySlash(slash *slashing.UnappliedSlash) (*big.Int, error) {
	slashed := new(big.Int)
	take := func(stash npos.Address, value *big.Int) error {
		if value.Sign() <= 0 {
			return nil
		}
		amount, ledger, chunks, err := s.bonding.Slash(stash, value, slash.SlashEra)
		if errors.Is(err, reverts.ErrNotStash) {
			logger.Debug("slashed stash no longer bonded", "stash", stash)
			return nil
		}
		if err != nil {
			return err
		}
		if amount.Sign() == 0 {
			return nil
		}
		slashed.Add(slashed, amount)
		s.emit(&Event{Kind: EventSlashed, Era: slash.SlashEra, Stash: stash, Amount: amount})
		s.deps.Listener.OnSlash(stash, new(big.Int).Set(ledger.Active), chunks, amount)
		metricSlashed().Add(meterValue(amount))
		logger.Info("stash slashed", "stash", stash, "era", slash.SlashEra, "value", amount)
		return nil
	}

	if err := take(slash.Validator, slash.Own); err != nil {
		return nil, err
	}
	for _, other := range slash.Others {
		if err := take(other.Who, other.Value); err != nil {
			return nil, err
		}
	}
	return s.rewardReporters(slash.Reporters, slashed)
}

// rewardReporters mints SlashRewardFraction of slashed, split evenly, to the reporters.
func (s *Staker) rewardReporters(reporters []npos.Address, slashed *big.Int) (*big.Int, error) {
	payout := new(big.Int)
	if len(reporters) == 0 || slashed.Sign() == 0 {
		return payout, nil
	}
	reward := s.cfg.SlashRewardFraction.MulFloor(slashed)
	per := new(big.Int).Quo(reward, big.NewInt(int64(len(reporters))))
	if per.Sign() == 0 {
		return payout, nil
	}
	for _, reporter := range reporters {
		if err := s.currency.Mint(reporter, per); err != nil {
			return nil, errors.Wrap(err, "reward reporter")
		}
		payout.Add(payout, per)
	}
	return payout, nil
}
