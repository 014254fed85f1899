// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package eras

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/npos/lvldb"
	"github.com/vechain/npos/npos"
	"github.com/vechain/npos/state"
	"github.com/vechain/npos/storage"
)

func newService(t *testing.T) *Service {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(storage.NewContext(npos.AccountID(0xe7a), state.New(db)))
}

func TestService_Markers(t *testing.T) {
	svc := newService(t)

	active, err := svc.ActiveEra()
	require.NoError(t, err)
	assert.Nil(t, active)
	_, ok, err := svc.CurrentEra()
	require.NoError(t, err)
	assert.False(t, ok)

	// era 0 starting at session 0 is distinguishable from unplanned
	require.NoError(t, svc.SetStartSession(0, 0))
	start, ok, err := svc.StartSession(0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, start)
	_, ok, err = svc.StartSession(1)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, svc.SetCurrentEra(0))
	current, ok, err := svc.CurrentEra()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, current)

	require.NoError(t, svc.Activate(0, 1000))
	active, err = svc.ActiveEra()
	require.NoError(t, err)
	assert.Equal(t, &ActiveEraInfo{Index: 0, Start: 1000}, active)

	svc.Clear(0)
	_, ok, err = svc.StartSession(0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_BondedEras(t *testing.T) {
	svc := newService(t)
	const depth = 2

	for era := npos.EraIndex(0); era <= 2; era++ {
		evicted, err := svc.PushBondedEra(era, npos.SessionIndex(era*3), depth)
		require.NoError(t, err)
		assert.Empty(t, evicted)
	}
	evicted, err := svc.PushBondedEra(3, 9, depth)
	require.NoError(t, err)
	assert.Equal(t, []npos.EraIndex{0}, evicted)

	bonded, err := svc.BondedEras()
	require.NoError(t, err)
	assert.Equal(t, []BondedEra{{1, 3}, {2, 6}, {3, 9}}, bonded)

	_, err = svc.PushBondedEra(3, 9, depth)
	assert.Error(t, err)
}

func TestService_EvictBondedThrough(t *testing.T) {
	svc := newService(t)
	for era := npos.EraIndex(0); era <= 3; era++ {
		_, err := svc.PushBondedEra(era, npos.SessionIndex(era*3), 80)
		require.NoError(t, err)
	}

	evicted, err := svc.EvictBondedThrough(1)
	require.NoError(t, err)
	assert.Equal(t, []npos.EraIndex{0, 1}, evicted)

	evicted, err = svc.EvictBondedThrough(1)
	require.NoError(t, err)
	assert.Empty(t, evicted)

	bonded, err := svc.BondedEras()
	require.NoError(t, err)
	assert.Equal(t, []BondedEra{{2, 6}, {3, 9}}, bonded)
}

func TestService_EraForSession(t *testing.T) {
	svc := newService(t)

	_, err := svc.EraForSession(0)
	assert.ErrorIs(t, err, ErrEraTooOld)

	for era := npos.EraIndex(1); era <= 3; era++ {
		require.NoError(t, svc.SetStartSession(era, npos.SessionIndex(era*3)))
		_, err := svc.PushBondedEra(era, npos.SessionIndex(era*3), 80)
		require.NoError(t, err)
	}
	require.NoError(t, svc.Activate(3, 0))

	cases := []struct {
		session npos.SessionIndex
		era     npos.EraIndex
		err     error
	}{
		{2, 0, ErrEraTooOld},
		{3, 1, nil},
		{5, 1, nil},
		{7, 2, nil},
		{9, 3, nil},
		{42, 3, nil},
	}
	for _, c := range cases {
		era, err := svc.EraForSession(c.session)
		if c.err != nil {
			assert.ErrorIs(t, err, c.err, "session %d", c.session)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, c.era, era, "session %d", c.session)
	}

	ok, err := svc.IsBonded(2)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = svc.IsBonded(0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_ElectionAndForcing(t *testing.T) {
	svc := newService(t)

	status, err := svc.ElectionStatus()
	require.NoError(t, err)
	assert.Nil(t, status)

	require.NoError(t, svc.SetElectionStatus(&ElectionStatus{TargetEra: 2, StartSession: 6, RequestedAt: 5}))
	status, err = svc.ElectionStatus()
	require.NoError(t, err)
	assert.Equal(t, npos.SessionIndex(6), status.StartSession)
	svc.ClearElectionStatus()
	status, err = svc.ElectionStatus()
	require.NoError(t, err)
	assert.Nil(t, status)

	require.NoError(t, svc.SetForcing(ForceAlways))
	f, err := svc.Forcing()
	require.NoError(t, err)
	assert.Equal(t, ForceAlways, f)
	require.NoError(t, svc.SetForcing(NotForcing))
	f, err = svc.Forcing()
	require.NoError(t, err)
	assert.Equal(t, NotForcing, f)
}
