// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staking

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/vechain/npos/npos"
	"github.com/vechain/npos/staking/reverts"
	"github.com/vechain/npos/staking/rewards"
)

// PayoutStakersByPage pays one exposure page of stash for era. Anyone may call it.
// The page is marked claimed before paying, so a second call fails with ErrAlreadyClaimed.
func (s *Staker) PayoutStakersByPage(caller, stash npos.Address, era npos.EraIndex, page npos.PageIndex) error {
	return s.atomic("payout_stakers", func() error {
		payout, err := s.claimablePayout(era)
		if err != nil {
			return err
		}
		ledger, err := s.bonding.Ledger(stash)
		if err != nil {
			return err
		}
		if ledger == nil {
			return reverts.ErrNotStash
		}
		count, err := s.exposures.PageCount(era, stash)
		if err != nil {
			return err
		}
		if uint32(page) >= count {
			return reverts.ErrPageNotFound
		}
		if err := s.rewards.Claim(era, stash, page); err != nil {
			return err
		}

		points, err := s.rewards.Points(era)
		if err != nil {
			return err
		}
		prefs, err := s.exposures.Prefs(era, stash)
		if err != nil {
			return err
		}
		overview, err := s.exposures.Overview(era, stash)
		if err != nil {
			return err
		}
		exposurePage, err := s.exposures.Page(era, stash, page)
		if err != nil {
			return err
		}
		share := &rewards.PageShare{
			EraPayout:       payout,
			TotalPoints:     points.Total,
			ValidatorPoints: points.Of(stash),
			Overview:        overview,
			Page:            exposurePage,
			PageIndex:       page,
		}
		if prefs != nil {
			share.Commission = prefs.Commission
		}

		s.emit(&Event{Kind: EventPayoutStarted, Era: era, Stash: stash, Other: caller, Page: page})
		validatorPay, backers := share.Split()
		if err := s.reward(era, stash, validatorPay); err != nil {
			return err
		}
		for _, b := range backers {
			if err := s.reward(era, b.Who, b.Amount); err != nil {
				return err
			}
		}
		logger.Info("page paid out", "era", era, "stash", stash, "page", page, "validator", validatorPay, "backers", len(backers))
		return nil
	})
}

// claimablePayout returns the payout of era, failing if era cannot be claimed any more or yet.
func (s *Staker) claimablePayout(era npos.EraIndex) (*big.Int, error) {
	active, err := s.eras.ActiveEra()
	if err != nil {
		return nil, err
	}
	if active == nil || era >= active.Index {
		return nil, reverts.ErrInvalidEraToReward
	}
	current, err := s.currentEra()
	if err != nil {
		return nil, err
	}
	if uint64(era)+uint64(s.cfg.HistoryDepth) < uint64(current) {
		return nil, reverts.ErrInvalidEraToReward
	}
	payout, err := s.rewards.EraPayout(era)
	if err != nil {
		return nil, err
	}
	if payout == nil {
		return nil, reverts.ErrInvalidEraToReward
	}
	return payout, nil
}

// reward mints amount to the payee of stash. Stashes no longer bonded get nothing.
func (s *Staker) reward(era npos.EraIndex, stash npos.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	payee, err := s.bonding.Payee(stash)
	if err != nil {
		return err
	}
	if payee == nil {
		logger.Debug("reward of unbonded stash dropped", "stash", stash, "era", era, "value", amount)
		return nil
	}
	dest, restake := payee.Resolve(stash)
	if err := s.currency.Mint(dest, amount); err != nil {
		return errors.Wrap(err, "mint reward")
	}
	if restake {
		if _, err := s.bonding.BondExtra(stash, amount); err != nil {
			return errors.Wrap(err, "restake reward")
		}
	}
	s.emit(&Event{Kind: EventRewarded, Era: era, Stash: stash, Other: dest, Amount: amount})
	metricRewarded().Add(meterValue(amount))
	return nil
}
