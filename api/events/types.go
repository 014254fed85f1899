// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package events

import (
	"fmt"
	"math"

	"github.com/vechain/npos/api/stakers"
	"github.com/vechain/npos/eventdb"
	"github.com/vechain/npos/npos"
	"github.com/vechain/npos/staking"
)

type Range struct {
	Unit eventdb.RangeType `json:"unit"`
	From *uint64           `json:"from,omitempty"`
	To   *uint64           `json:"to,omitempty"`
}

type Options struct {
	Offset uint64 `json:"offset"`
	Limit  uint64 `json:"limit"`
}

type EventFilter struct {
	Kinds   []staking.EventKind `json:"kinds"`
	Stash   *npos.Address       `json:"stash"`
	Range   *Range              `json:"range"`
	Options *Options            `json:"options"`
	Order   eventdb.Order       `json:"order"`
}

// FilteredEvent is an event with its position in the session stream.
type FilteredEvent struct {
	stakers.Event
	Session uint32 `json:"session"`
	Index   uint32 `json:"index"`
}

// ConvertRange maps an api range to a db range. Missing bounds leave the range open.
func ConvertRange(r *Range) (*eventdb.Range, error) {
	if r == nil {
		return nil, nil
	}
	unit := r.Unit
	switch unit {
	case "":
		unit = eventdb.Session
	case eventdb.Session, eventdb.Era:
	default:
		return nil, fmt.Errorf("unknown range unit %q", r.Unit)
	}
	rng := &eventdb.Range{Unit: unit, From: 0, To: math.MaxUint32}
	if r.From != nil {
		rng.From = *r.From
	}
	if r.To != nil {
		rng.To = *r.To
	}
	if rng.From > rng.To {
		return nil, fmt.Errorf("range.to must be greater than or equal to range.from")
	}
	return rng, nil
}

// ConvertEventFilter maps an api filter to a db filter.
func ConvertEventFilter(f *EventFilter) (*eventdb.Filter, error) {
	rng, err := ConvertRange(f.Range)
	if err != nil {
		return nil, err
	}
	order := f.Order
	switch order {
	case "":
		order = eventdb.ASC
	case eventdb.ASC, eventdb.DESC:
	default:
		return nil, fmt.Errorf("unknown order %q", f.Order)
	}
	filter := &eventdb.Filter{
		Kinds: f.Kinds,
		Stash: f.Stash,
		Range: rng,
		Order: order,
	}
	if f.Options != nil {
		filter.Options = &eventdb.Options{Offset: f.Options.Offset, Limit: f.Options.Limit}
	}
	return filter, nil
}

func ConvertEvent(rec *eventdb.Record) *FilteredEvent {
	return &FilteredEvent{
		Event:   *stakers.ConvertEvent(&rec.Event),
		Session: uint32(rec.Session),
		Index:   rec.Index,
	}
}
