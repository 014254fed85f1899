// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package reverts holds the caller errors of the staking engine.
// A call failing with one of them leaves no trace in state.
package reverts

import (
	"errors"
)

type ErrRevert struct {
	message string
}

func New(message string) *ErrRevert {
	return &ErrRevert{
		message: message,
	}
}

func (e *ErrRevert) Error() string {
	return e.message
}

func IsRevertErr(err any) bool {
	if err == nil {
		return false
	}
	e, ok := err.(error)
	if !ok {
		return false
	}
	var ve *ErrRevert
	return errors.As(e, &ve)
}

// bonding
var (
	ErrAlreadyBonded           = New("stash already bonded")
	ErrAlreadyPaired           = New("controller already paired")
	ErrAlreadyController       = New("stash is already its own controller")
	ErrNotStash                = New("not a stash")
	ErrNoLedger                = New("no ledger")
	ErrInsufficientBond        = New("bond below minimum")
	ErrInsufficientActiveStake = New("insufficient active stake")
	ErrInsufficientBalance     = New("insufficient free balance")
	ErrTooManyChunks           = New("too many unlocking chunks")
	ErrBadState                = New("bad bonding state")
	ErrZeroAmount              = New("zero amount")
	ErrZeroAddress             = New("zero address")
	ErrVirtualStaker           = New("operation not allowed for virtual stakers")
	ErrRestricted              = New("account restricted from staking")

	ErrRewardDestinationRestricted = New("reward destination not allowed")
)

// intentions
var (
	ErrEmptyTargets      = New("empty targets")
	ErrTooManyTargets    = New("too many targets")
	ErrBadTarget         = New("bad target")
	ErrTooManyValidators = New("too many validators")
	ErrCommissionTooLow  = New("commission too low")
)

// rewards
var (
	ErrAlreadyClaimed     = New("page already claimed")
	ErrInvalidEraToReward = New("invalid era to reward")
	ErrPageNotFound       = New("page not found")
)

// slashing
var (
	ErrEmptySlashIndices  = New("empty slash indices")
	ErrInvalidSlashIndex  = New("invalid slash index")
	ErrSlashNotPending    = New("slash is not pending")
	ErrNotSortedAndUnique = New("slash indices not sorted and unique")
)
