// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package storage

import (
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/vechain/npos/npos"
)

// Value is a single RLP encoded storage variable.
type Value[V any] struct {
	context *Context
	pos     npos.Bytes32
}

func NewValue[V any](context *Context, pos npos.Bytes32) *Value[V] {
	return &Value[V]{context: context, pos: pos}
}

func (v *Value[V]) Get() (value V, err error) {
	err = v.context.state.DecodeStorage(v.context.owner, v.pos, func(raw []byte) error {
		if len(raw) == 0 {
			return nil
		}
		return rlp.DecodeBytes(raw, &value)
	})
	return
}

func (v *Value[V]) Set(value V) error {
	return v.context.state.EncodeStorage(v.context.owner, v.pos, func() ([]byte, error) {
		return rlp.EncodeToBytes(value)
	})
}

func (v *Value[V]) Delete() {
	v.context.state.SetRawStorage(v.context.owner, v.pos, nil)
}

// Uint256 is a wrapper for storage and retrieval of an unsigned big integer.
type Uint256 struct {
	context *Context
	pos     npos.Bytes32
}

func NewUint256(context *Context, pos npos.Bytes32) *Uint256 {
	return &Uint256{context: context, pos: pos}
}

func (u *Uint256) Get() (*big.Int, error) {
	raw, err := u.context.state.GetRawStorage(u.context.owner, u.pos)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(raw), nil
}

func (u *Uint256) Set(value *big.Int) {
	var raw []byte
	if value.Sign() > 0 {
		raw = value.Bytes()
	}
	u.context.state.SetRawStorage(u.context.owner, u.pos, raw)
}

func (u *Uint256) Add(value *big.Int) error {
	storage, err := u.Get()
	if err != nil {
		return err
	}
	u.Set(storage.Add(storage, value))
	return nil
}

// Sub subtracts value, saturating at zero.
func (u *Uint256) Sub(value *big.Int) error {
	storage, err := u.Get()
	if err != nil {
		return err
	}
	storage.Sub(storage, value)
	if storage.Sign() < 0 {
		storage.SetUint64(0)
	}
	u.Set(storage)
	return nil
}
