// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package eventdb

import (
	"github.com/vechain/npos/npos"
	"github.com/vechain/npos/staking"
)

type RangeType string

const (
	Session RangeType = "session"
	Era     RangeType = "era"
)

type Order string

const (
	ASC  Order = "asc"
	DESC Order = "desc"
)

// Range bounds the session or era of the events returned. To below From leaves it open.
type Range struct {
	Unit RangeType `json:"unit"`
	From uint64    `json:"from"`
	To   uint64    `json:"to"`
}

type Options struct {
	Offset uint64 `json:"offset"`
	Limit  uint64 `json:"limit"`
}

// Filter selects stored events. Zero fields match everything.
type Filter struct {
	Kinds   []staking.EventKind `json:"kinds"`
	Stash   *npos.Address       `json:"stash"`
	Range   *Range              `json:"range"`
	Order   Order               `json:"order"`
	Options *Options            `json:"options"`
}

// Record is a staking event with its position in the session stream.
type Record struct {
	staking.Event
	Session npos.SessionIndex
	Index   uint32
}
