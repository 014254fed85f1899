// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package storage

import (
	"github.com/pkg/errors"

	"github.com/vechain/npos/npos"
)

// LinkedList is an insertion ordered set of addresses kept in storage.
// The zero address is the sentinel and can not be a member.
type LinkedList struct {
	head  *Value[npos.Address]
	tail  *Value[npos.Address]
	count *Value[uint64]
	next  *Mapping[npos.Address, npos.Address]
	prev  *Mapping[npos.Address, npos.Address]
}

// NewLinkedList creates a list whose slots are derived from name.
func NewLinkedList(sctx *Context, name string) *LinkedList {
	return &LinkedList{
		head:  NewValue[npos.Address](sctx, Slot(name+"-head")),
		tail:  NewValue[npos.Address](sctx, Slot(name+"-tail")),
		count: NewValue[uint64](sctx, Slot(name+"-count")),
		next:  NewMapping[npos.Address, npos.Address](sctx, Slot(name+"-next")),
		prev:  NewMapping[npos.Address, npos.Address](sctx, Slot(name+"-prev")),
	}
}

// Add appends an address to the end of the list. Adding a member again is a no-op.
func (l *LinkedList) Add(address npos.Address) error {
	if address.IsZero() {
		return errors.New("zero address can not be listed")
	}
	in, err := l.Contains(address)
	if err != nil || in {
		return err
	}

	oldTail, err := l.tail.Get()
	if err != nil {
		return err
	}

	if oldTail.IsZero() {
		// the list is currently empty, set this entry to head & tail
		if err := l.head.Set(address); err != nil {
			return err
		}
	} else {
		if err := l.next.Set(oldTail, address); err != nil {
			return err
		}
		if err := l.prev.Set(address, oldTail); err != nil {
			return err
		}
	}
	if err := l.tail.Set(address); err != nil {
		return err
	}
	return l.addCount(1)
}

// Remove extracts an address from anywhere in the list, reconnecting adjacent nodes.
func (l *LinkedList) Remove(address npos.Address) error {
	in, err := l.Contains(address)
	if err != nil || !in {
		return err
	}

	prev, err := l.prev.Get(address)
	if err != nil {
		return err
	}
	next, err := l.next.Get(address)
	if err != nil {
		return err
	}

	if !prev.IsZero() {
		if err := l.setOrClear(l.next, prev, next); err != nil {
			return err
		}
	} else if err := l.setOrClearValue(l.head, next); err != nil {
		return err
	}

	if !next.IsZero() {
		if err := l.setOrClear(l.prev, next, prev); err != nil {
			return err
		}
	} else if err := l.setOrClearValue(l.tail, prev); err != nil {
		return err
	}

	l.next.Delete(address)
	l.prev.Delete(address)

	return l.addCount(-1)
}

// Contains reports if address is a member.
func (l *LinkedList) Contains(address npos.Address) (bool, error) {
	if address.IsZero() {
		return false, nil
	}
	head, err := l.head.Get()
	if err != nil {
		return false, err
	}
	if head == address {
		return true, nil
	}
	prev, err := l.prev.Get(address)
	if err != nil {
		return false, err
	}
	return !prev.IsZero(), nil
}

// Len returns the number of members.
func (l *LinkedList) Len() (uint64, error) {
	return l.count.Get()
}

// Head returns the oldest member, or the zero address when empty.
func (l *LinkedList) Head() (npos.Address, error) {
	return l.head.Get()
}

// Iter traverses the list in insertion order, calling callback for each address until completion or error.
// The callback may remove the visited address.
func (l *LinkedList) Iter(callback func(npos.Address) error) error {
	ptr, err := l.head.Get()
	if err != nil {
		return err
	}

	for !ptr.IsZero() {
		next, err := l.next.Get(ptr)
		if err != nil {
			return err
		}
		if err := callback(ptr); err != nil {
			return err
		}
		ptr = next
	}
	return nil
}

// Members returns all addresses in insertion order.
func (l *LinkedList) Members() ([]npos.Address, error) {
	var members []npos.Address
	err := l.Iter(func(addr npos.Address) error {
		members = append(members, addr)
		return nil
	})
	return members, err
}

func (l *LinkedList) addCount(delta int) error {
	count, err := l.count.Get()
	if err != nil {
		return err
	}
	if delta < 0 && count == 0 {
		return errors.New("linked list count underflow")
	}
	count = uint64(int64(count) + int64(delta))
	if count == 0 {
		l.count.Delete()
		return nil
	}
	return l.count.Set(count)
}

func (l *LinkedList) setOrClear(m *Mapping[npos.Address, npos.Address], key, value npos.Address) error {
	if value.IsZero() {
		m.Delete(key)
		return nil
	}
	return m.Set(key, value)
}

func (l *LinkedList) setOrClearValue(v *Value[npos.Address], value npos.Address) error {
	if value.IsZero() {
		v.Delete()
		return nil
	}
	return v.Set(value)
}
