// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package kv declares the key-value interfaces the engine state is persisted through.
package kv

// Getter reads values by key.
// A missing key is reported with an error the getter recognizes via IsNotFound.
type Getter interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	IsNotFound(err error) bool
}

// Putter writes and deletes values.
type Putter interface {
	Put(key, val []byte) error
	Delete(key []byte) error
}

// Snapshot is a read-only view frozen at the time it was taken.
type Snapshot interface {
	Getter
	Release()
}

// Bulk batches writes, nothing is visible before Write returns.
type Bulk interface {
	Putter
	Len() int
	Write() error
}

// Iterator walks keys in ascending order.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Release()
	Error() error
}

// Range selects keys in [Start, Limit). An empty Limit means no upper bound.
type Range struct {
	Start []byte
	Limit []byte
}

// Store is a key-value store supporting snapshots, batched writes and range iteration.
type Store interface {
	Getter
	Putter

	Snapshot() Snapshot
	Bulk() Bulk
	Iterate(r Range) Iterator
}
