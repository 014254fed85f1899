// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/npos/lvldb"
	"github.com/vechain/npos/npos"
)

func newState(t *testing.T) (*State, *lvldb.LevelDB) {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db), db
}

func TestStateCheckpointRevert(t *testing.T) {
	st, _ := newState(t)
	owner := npos.AccountID(1)
	key := npos.Bytes32{1}

	raw, err := st.GetRawStorage(owner, key)
	require.NoError(t, err)
	assert.Empty(t, raw)

	st.SetRawStorage(owner, key, []byte{1})
	cp := st.NewCheckpoint()
	st.SetRawStorage(owner, key, []byte{2})

	raw, err = st.GetRawStorage(owner, key)
	require.NoError(t, err)
	assert.Equal(t, []byte{2}, raw)

	st.RevertTo(cp)
	raw, err = st.GetRawStorage(owner, key)
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, raw)

	// reverting everything keeps the state usable
	st.RevertTo(0)
	st.SetRawStorage(owner, key, []byte{3})
	raw, err = st.GetRawStorage(owner, key)
	require.NoError(t, err)
	assert.Equal(t, []byte{3}, raw)
}

func TestStateCommit(t *testing.T) {
	st, db := newState(t)
	owner := npos.AccountID(1)

	st.SetRawStorage(owner, npos.Bytes32{1}, []byte("a"))
	st.SetRawStorage(owner, npos.Bytes32{2}, []byte("b"))
	require.NoError(t, st.Commit())

	// a fresh state over the same store observes committed values
	reopened := New(db)
	raw, err := reopened.GetRawStorage(owner, npos.Bytes32{1})
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), raw)

	reopened.SetRawStorage(owner, npos.Bytes32{1}, nil)
	require.NoError(t, reopened.Commit())

	has, err := db.Has(storageKey{owner, npos.Bytes32{1}}.bytes())
	require.NoError(t, err)
	assert.False(t, has)
}

func TestStateDecodeError(t *testing.T) {
	st, _ := newState(t)
	err := st.DecodeStorage(npos.AccountID(1), npos.Bytes32{}, func([]byte) error {
		return assert.AnError
	})
	var serr *Error
	assert.ErrorAs(t, err, &serr)
	assert.ErrorIs(t, err, assert.AnError)
}
