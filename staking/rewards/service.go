// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package rewards

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/vechain/npos/log"
	"github.com/vechain/npos/npos"
	"github.com/vechain/npos/staking/reverts"
	"github.com/vechain/npos/storage"
)

var (
	slotPoints  = storage.Slot("rewards-points")
	slotPayouts = storage.Slot("rewards-era-payouts")
	slotClaimed = storage.Slot("rewards-claimed")

	logger = log.WithContext("pkg", "rewards")
)

// Service stores reward points, era payouts and claimed pages.
type Service struct {
	points  *storage.Mapping[npos.EraIndex, *EraRewardPoints]
	payouts *storage.Mapping[npos.EraIndex, *big.Int]
	claimed *storage.Mapping[npos.Bytes32, []npos.PageIndex]
}

func New(sctx *storage.Context) *Service {
	return &Service{
		points:  storage.NewMapping[npos.EraIndex, *EraRewardPoints](sctx, slotPoints),
		payouts: storage.NewMapping[npos.EraIndex, *big.Int](sctx, slotPayouts),
		claimed: storage.NewMapping[npos.Bytes32, []npos.PageIndex](sctx, slotClaimed),
	}
}

// Points returns the points of era, never nil.
func (s *Service) Points(era npos.EraIndex) (*EraRewardPoints, error) {
	points, err := s.points.Get(era)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get reward points")
	}
	if points == nil {
		points = &EraRewardPoints{}
	}
	return points, nil
}

// AddPoints credits points to validators in era.
func (s *Service) AddPoints(era npos.EraIndex, credits []Points) error {
	if len(credits) == 0 {
		return nil
	}
	points, err := s.Points(era)
	if err != nil {
		return err
	}
	for _, c := range credits {
		points.add(c.Who, c.Points)
	}
	return s.points.Set(era, points)
}

// SetEraPayout records the amount to distribute for era.
func (s *Service) SetEraPayout(era npos.EraIndex, payout *big.Int) error {
	return s.payouts.Set(era, payout)
}

// EraPayout returns the amount to distribute for era, or nil if the era was never paid.
func (s *Service) EraPayout(era npos.EraIndex) (*big.Int, error) {
	payout, err := s.payouts.Get(era)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get era payout")
	}
	return payout, nil
}

// ClaimedPages returns the pages of stash claimed in era.
func (s *Service) ClaimedPages(era npos.EraIndex, stash npos.Address) ([]npos.PageIndex, error) {
	return s.claimed.Get(npos.EraStashKey(era, stash))
}

// Claim marks page as claimed, failing with ErrAlreadyClaimed the second time.
func (s *Service) Claim(era npos.EraIndex, stash npos.Address, page npos.PageIndex) error {
	key := npos.EraStashKey(era, stash)
	pages, err := s.claimed.Get(key)
	if err != nil {
		return err
	}
	for _, p := range pages {
		if p == page {
			return reverts.ErrAlreadyClaimed
		}
	}
	return s.claimed.Set(key, append(pages, page))
}

// ClearEra drops the reward records of an era falling out of history.
func (s *Service) ClearEra(era npos.EraIndex, validators []npos.Address) {
	for _, v := range validators {
		s.claimed.Delete(npos.EraStashKey(era, v))
	}
	s.points.Delete(era)
	s.payouts.Delete(era)
	logger.Debug("reward records cleared", "era", era)
}
