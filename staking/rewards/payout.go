// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package rewards

import (
	"math/big"

	"github.com/vechain/npos/npos"
	"github.com/vechain/npos/staking/exposure"
)

// PageShare is the input to split one page of a validator's era reward.
type PageShare struct {
	EraPayout       *big.Int
	TotalPoints     uint64
	ValidatorPoints uint64
	Commission      npos.Perbill
	Overview        *exposure.Overview
	Page            *exposure.Page
	PageIndex       npos.PageIndex
}

// Payment is an amount owed to a stash.
type Payment struct {
	Who    npos.Address
	Amount *big.Int
}

// Split computes the validator's and each backer's reward for the page.
// The validator's share of the era is its fraction of points. Commission is taken from it,
// and the leftover is paid pro rata to stake. The validator's own stake counts towards page 0 only,
// and commission is spread over the pages by page weight.
func (s *PageShare) Split() (validator *big.Int, backers []Payment) {
	validator = new(big.Int)
	if s.TotalPoints == 0 || s.ValidatorPoints == 0 || s.Overview == nil || s.Overview.Total.Sign() == 0 {
		return validator, nil
	}
	share := npos.MulDivFloor(s.EraPayout,
		new(big.Int).SetUint64(s.ValidatorPoints),
		new(big.Int).SetUint64(s.TotalPoints))

	commission := s.Commission.MulFloor(share)
	leftover := new(big.Int).Sub(share, commission)
	total := s.Overview.Total

	weight := new(big.Int).Set(s.Page.PageTotal)
	if s.PageIndex == 0 {
		weight.Add(weight, s.Overview.Own)
		validator.Add(validator, npos.MulDivFloor(leftover, s.Overview.Own, total))
	}
	validator.Add(validator, npos.MulDivFloor(commission, weight, total))
	for _, ind := range s.Page.Others {
		amount := npos.MulDivFloor(leftover, ind.Value, total)
		if amount.Sign() == 0 {
			continue
		}
		backers = append(backers, Payment{Who: ind.Who, Amount: amount})
	}
	return validator, backers
}
