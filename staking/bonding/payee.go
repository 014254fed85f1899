// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package bonding

import (
	"github.com/pkg/errors"

	"github.com/vechain/npos/npos"
)

// DestinationKind selects where staking rewards go.
type DestinationKind uint8

const (
	// Staked re-bonds the reward into the stash's active stake.
	Staked DestinationKind = iota
	// Stash pays the reward to the stash as free balance.
	Stash
	// Account pays the reward to an arbitrary account.
	Account
)

func (k DestinationKind) String() string {
	switch k {
	case Staked:
		return "staked"
	case Stash:
		return "stash"
	case Account:
		return "account"
	default:
		return "unknown"
	}
}

// RewardDestination is the payee preference of a stash.
type RewardDestination struct {
	Kind    DestinationKind
	Account npos.Address
}

func (d *RewardDestination) validate() error {
	switch d.Kind {
	case Staked, Stash:
		return nil
	case Account:
		if d.Account.IsZero() {
			return errors.New("account destination requires an address")
		}
		return nil
	default:
		return errors.Errorf("unknown reward destination %d", d.Kind)
	}
}

// Resolve returns the account a reward is minted to, and whether it should be re-bonded.
func (d *RewardDestination) Resolve(stash npos.Address) (npos.Address, bool) {
	switch d.Kind {
	case Account:
		return d.Account, false
	case Stash:
		return stash, false
	default:
		return stash, true
	}
}
