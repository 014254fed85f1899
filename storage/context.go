// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package storage provides typed storage primitives over state slots,
// similar to the storage layout of a contract.
package storage

import (
	"github.com/vechain/npos/npos"
	"github.com/vechain/npos/state"
)

// Context binds the primitives to an owner's storage space.
type Context struct {
	owner npos.Address
	state *state.State
}

func NewContext(owner npos.Address, state *state.State) *Context {
	return &Context{owner: owner, state: state}
}

func (c *Context) State() *state.State {
	return c.state
}

func (c *Context) Owner() npos.Address {
	return c.owner
}

// Slot derives a storage position from a human readable name.
func Slot(name string) npos.Bytes32 {
	return npos.Blake2b([]byte(name))
}
