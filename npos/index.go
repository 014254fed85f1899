// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package npos

import "encoding/binary"

// EraIndex counts validator-set epochs from genesis.
type EraIndex uint32

// SessionIndex counts sessions from genesis.
type SessionIndex uint32

// PageIndex addresses one page of an exposure.
type PageIndex uint32

// Bytes returns the big-endian form, usable as a storage key.
func (e EraIndex) Bytes() []byte {
	return binary.BigEndian.AppendUint32(nil, uint32(e))
}

// Bytes returns the big-endian form, usable as a storage key.
func (s SessionIndex) Bytes() []byte {
	return binary.BigEndian.AppendUint32(nil, uint32(s))
}

// SaturatingSub returns e-n, or zero if n > e.
func (e EraIndex) SaturatingSub(n uint32) EraIndex {
	if uint32(e) < n {
		return 0
	}
	return e - EraIndex(n)
}

// EraStashKey derives the key of a per-era, per-stash record.
func EraStashKey(era EraIndex, stash Address) Bytes32 {
	return Blake2b(era.Bytes(), stash.Bytes())
}

// EraStashPageKey derives the key of one exposure page.
func EraStashPageKey(era EraIndex, stash Address, page PageIndex) Bytes32 {
	return Blake2b(era.Bytes(), stash.Bytes(), binary.BigEndian.AppendUint32(nil, uint32(page)))
}
