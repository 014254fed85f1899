// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package slashing

import (
	"github.com/vechain/npos/npos"
	"github.com/vechain/npos/storage"
)

// DisablingLimitFactor bounds the disabled validators to less than a third of the active set.
const DisablingLimitFactor = 3

var slotDisabled = storage.Slot("slashing-disabled")

// DisabledValidator is an active validator barred from authoring for the rest of the era.
type DisabledValidator struct {
	Stash    npos.Address
	Fraction npos.Perbill
}

// DisablingLimit returns how many of count active validators can be disabled at once.
func DisablingLimit(count int) int {
	if count == 0 {
		return 0
	}
	return (count - 1) / DisablingLimitFactor
}

// Disabled returns the disabled validators of the active era.
func (s *Service) Disabled() ([]DisabledValidator, error) {
	return s.disabled.Get()
}

func (s *Service) IsDisabled(stash npos.Address) (bool, error) {
	list, err := s.disabled.Get()
	if err != nil {
		return false, err
	}
	for _, d := range list {
		if d.Stash == stash {
			return true, nil
		}
	}
	return false, nil
}

// Disable disables an offender slashed by fraction, out of count active validators.
// Once the limit is reached an offender replaces the disabled validator of the lowest fraction,
// when its own fraction is higher. It returns whether stash ended up disabled, and the
// validator it replaced if any.
func (s *Service) Disable(stash npos.Address, fraction npos.Perbill, count int) (bool, *npos.Address, error) {
	list, err := s.disabled.Get()
	if err != nil {
		return false, nil, err
	}
	for i, d := range list {
		if d.Stash == stash {
			if fraction > d.Fraction {
				list[i].Fraction = fraction
				return true, nil, s.disabled.Set(list)
			}
			return true, nil, nil
		}
	}

	entry := DisabledValidator{Stash: stash, Fraction: fraction}
	if len(list) < DisablingLimit(count) {
		return true, nil, s.disabled.Set(append(list, entry))
	}
	if len(list) == 0 {
		logger.Debug("disabling limit reached", "offender", stash, "validators", count)
		return false, nil, nil
	}
	lowest := 0
	for i, d := range list {
		if d.Fraction < list[lowest].Fraction {
			lowest = i
		}
	}
	if fraction <= list[lowest].Fraction {
		return false, nil, nil
	}
	reenabled := list[lowest].Stash
	list[lowest] = entry
	return true, &reenabled, s.disabled.Set(list)
}

// ClearDisabled re-enables every validator, on era start.
func (s *Service) ClearDisabled() {
	s.disabled.Delete()
}
