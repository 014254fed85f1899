// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package stackedmap provides a layered write journal over a read-only source.
package stackedmap

// Source loads the value of a key that was never put into the map.
type Source[K comparable, V any] func(key K) (value V, found bool, err error)

// StackedMap keeps writes in a stack of layers.
// Reads see the newest write of a key across all layers before falling back to the source.
// Popping a layer discards every write made since the matching Push.
type StackedMap[K comparable, V any] struct {
	src    Source[K, V]
	layers []layer[K, V]
	// owners lists, per key, the layers holding a write of it in ascending order.
	owners map[K][]int
}

type layer[K comparable, V any] struct {
	values  map[K]V
	journal []Entry[K, V]
}

// Entry is a single journaled write.
type Entry[K comparable, V any] struct {
	Key   K
	Value V
}

// New creates a map with one empty layer on top of src.
func New[K comparable, V any](src Source[K, V]) *StackedMap[K, V] {
	sm := &StackedMap[K, V]{
		src:    src,
		owners: make(map[K][]int),
	}
	sm.Push()
	return sm
}

// Depth returns the number of layers.
func (sm *StackedMap[K, V]) Depth() int {
	return len(sm.layers)
}

// Push opens a new layer and returns the depth before it, usable as a PopTo target.
func (sm *StackedMap[K, V]) Push() int {
	sm.layers = append(sm.layers, layer[K, V]{values: make(map[K]V)})
	return len(sm.layers) - 1
}

// Pop discards the top layer.
func (sm *StackedMap[K, V]) Pop() {
	top := len(sm.layers) - 1
	for key := range sm.layers[top].values {
		owners := sm.owners[key]
		if owners = owners[:len(owners)-1]; len(owners) == 0 {
			delete(sm.owners, key)
		} else {
			sm.owners[key] = owners
		}
	}
	sm.layers = sm.layers[:top]
}

// PopTo discards layers until depth remain.
func (sm *StackedMap[K, V]) PopTo(depth int) {
	for len(sm.layers) > depth {
		sm.Pop()
	}
}

// Get returns the newest value of key.
func (sm *StackedMap[K, V]) Get(key K) (V, bool, error) {
	if owners, ok := sm.owners[key]; ok {
		return sm.layers[owners[len(owners)-1]].values[key], true, nil
	}
	return sm.src(key)
}

// Put writes key into the top layer. It panics when no layer is left.
func (sm *StackedMap[K, V]) Put(key K, value V) {
	top := len(sm.layers) - 1
	lvl := &sm.layers[top]
	lvl.values[key] = value
	lvl.journal = append(lvl.journal, Entry[K, V]{key, value})

	owners := sm.owners[key]
	if len(owners) == 0 || owners[len(owners)-1] != top {
		sm.owners[key] = append(owners, top)
	}
}

// Journal visits every write from the bottom layer up, until cb returns false.
func (sm *StackedMap[K, V]) Journal(cb func(key K, value V) bool) {
	for _, lvl := range sm.layers {
		for _, e := range lvl.journal {
			if !cb(e.Key, e.Value) {
				return
			}
		}
	}
}

// Changes returns the newest value of every written key, ordered by first write.
func (sm *StackedMap[K, V]) Changes() []Entry[K, V] {
	var (
		changes []Entry[K, V]
		index   = make(map[K]int)
	)
	sm.Journal(func(key K, value V) bool {
		if i, ok := index[key]; ok {
			changes[i].Value = value
		} else {
			index[key] = len(changes)
			changes = append(changes, Entry[K, V]{key, value})
		}
		return true
	})
	return changes
}
