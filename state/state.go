// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"fmt"

	"github.com/vechain/npos/kv"
	"github.com/vechain/npos/npos"
	"github.com/vechain/npos/stackedmap"
)

// Error is the error caused by state access failure.
type Error struct {
	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("state: %v", e.cause)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// storageKey addresses one storage slot of an owner.
type storageKey struct {
	owner npos.Address
	key   npos.Bytes32
}

func (k storageKey) bytes() []byte {
	return append(append(make([]byte, 0, npos.AddressLength+32), k.owner[:]...), k.key[:]...)
}

// State manages the engine's storage slots on top of a kv store.
// Writes are journaled in memory, can be reverted to any checkpoint and
// are persisted on Commit.
type State struct {
	store kv.Store
	sm    *stackedmap.StackedMap[storageKey, []byte]
}

// New create state object.
func New(store kv.Store) *State {
	s := &State{store: store}
	s.reset()
	return s
}

func (s *State) reset() {
	s.sm = stackedmap.New(s.load)
}

func (s *State) load(key storageKey) ([]byte, bool, error) {
	raw, err := s.store.Get(key.bytes())
	if err != nil {
		if s.store.IsNotFound(err) {
			return []byte(nil), true, nil
		}
		return nil, false, err
	}
	return raw, true, nil
}

// GetRawStorage returns the raw value stored at the given owner and slot.
// Empty value means not set.
func (s *State) GetRawStorage(owner npos.Address, key npos.Bytes32) ([]byte, error) {
	v, _, err := s.sm.Get(storageKey{owner, key})
	if err != nil {
		return nil, &Error{err}
	}
	return v, nil
}

// SetRawStorage sets the raw value. Empty raw deletes the slot.
func (s *State) SetRawStorage(owner npos.Address, key npos.Bytes32, raw []byte) {
	s.sm.Put(storageKey{owner, key}, raw)
}

// EncodeStorage set storage value encoded by given enc method.
// Error returned by enc will be absorbed by State instance.
func (s *State) EncodeStorage(owner npos.Address, key npos.Bytes32, enc func() ([]byte, error)) error {
	raw, err := enc()
	if err != nil {
		return &Error{err}
	}
	s.SetRawStorage(owner, key, raw)
	return nil
}

// DecodeStorage get and decode storage value.
// Error returned by dec will be absorbed by State instance.
func (s *State) DecodeStorage(owner npos.Address, key npos.Bytes32, dec func([]byte) error) error {
	raw, err := s.GetRawStorage(owner, key)
	if err != nil {
		return err
	}
	if err := dec(raw); err != nil {
		return &Error{err}
	}
	return nil
}

// NewCheckpoint makes a checkpoint of current state.
// It returns revision of the checkpoint.
func (s *State) NewCheckpoint() int {
	return s.sm.Push()
}

// RevertTo revert to checkpoint specified by revision.
func (s *State) RevertTo(revision int) {
	s.sm.PopTo(revision)
	if s.sm.Depth() == 0 {
		s.sm.Push()
	}
}

// Commit flushes all journaled changes into the underlying store atomically,
// and starts a fresh journal.
func (s *State) Commit() error {
	bulk := s.store.Bulk()
	for _, c := range s.sm.Changes() {
		var err error
		if len(c.Value) == 0 {
			err = bulk.Delete(c.Key.bytes())
		} else {
			err = bulk.Put(c.Key.bytes(), c.Value)
		}
		if err != nil {
			return &Error{err}
		}
	}
	if err := bulk.Write(); err != nil {
		return &Error{err}
	}
	s.reset()
	return nil
}
