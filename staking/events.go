// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staking

import (
	"math/big"

	"github.com/vechain/npos/npos"
)

type EventKind string

const (
	EventBonded                    EventKind = "Bonded"
	EventUnbonded                  EventKind = "Unbonded"
	EventWithdrawn                 EventKind = "Withdrawn"
	EventSlashed                   EventKind = "Slashed"
	EventSlashReported             EventKind = "SlashReported"
	EventSlashCancelled            EventKind = "SlashCancelled"
	EventEraPaid                   EventKind = "EraPaid"
	EventRewarded                  EventKind = "Rewarded"
	EventStakersElected            EventKind = "StakersElected"
	EventElectionFailed            EventKind = "ElectionFailed"
	EventChilled                   EventKind = "Chilled"
	EventValidatorPrefsSet         EventKind = "ValidatorPrefsSet"
	EventForceEra                  EventKind = "ForceEra"
	EventControllerBatchDeprecated EventKind = "ControllerBatchDeprecated"
	EventPayoutStarted             EventKind = "PayoutStarted"
	EventKicked                    EventKind = "Kicked"
	EventValidatorDisabled         EventKind = "ValidatorDisabled"
	EventValidatorReenabled        EventKind = "ValidatorReenabled"
)

// Event is a notification emitted by the engine. Fields a kind does not use are zero.
//
//	Bonded, Unbonded, Withdrawn: Stash, Amount (Unbonded: Era is the unlock era)
//	Slashed: Stash, Era (slash era), Amount
//	SlashReported, SlashCancelled: Stash (validator), Era, Amount (total of the slash)
//	EraPaid: Era, Amount (validator payout), Remainder
//	Rewarded: Era, Stash, Other (destination), Amount
//	StakersElected, ElectionFailed: Era (planned era), Amount (total stake), Count
//	Chilled, ValidatorPrefsSet: Stash
//	ForceEra: Mode
//	ControllerBatchDeprecated: Count (migrated), Other is zero
//	PayoutStarted: Era, Stash (validator), Other (caller), Page
//	Kicked: Stash (nominator), Other (validator)
//	ValidatorDisabled, ValidatorReenabled: Era (active era), Stash
type Event struct {
	Kind      EventKind
	Era       npos.EraIndex
	Stash     npos.Address
	Other     npos.Address
	Amount    *big.Int
	Remainder *big.Int
	Page      npos.PageIndex
	Count     uint32
	Mode      string
}
