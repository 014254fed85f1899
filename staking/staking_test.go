// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staking

import (
	"context"
	"math/big"
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/npos/election"
	"github.com/vechain/npos/npos"
	"github.com/vechain/npos/staking/bonding"
	"github.com/vechain/npos/staking/eras"
	"github.com/vechain/npos/staking/reverts"
	"github.com/vechain/npos/staking/rewards"
	"github.com/vechain/npos/staking/slashing"
	"github.com/vechain/npos/staking/voters"
)

func TestGenesis(t *testing.T) {
	env := newFixture(t)
	s := env.staker

	elected, err := s.ElectedValidators(0)
	require.NoError(t, err)
	assert.Equal(t, []npos.Address{stash11, stash21}, elected)

	exp, err := s.Exposure(0, stash11)
	require.NoError(t, err)
	require.NotNil(t, exp)
	assert.Equal(t, int64(1250), exp.Total.Int64())
	assert.Equal(t, int64(1000), exp.Own.Int64())
	require.Len(t, exp.Others, 1)
	assert.Equal(t, nominee, exp.Others[0].Who)
	assert.Equal(t, int64(250), exp.Others[0].Value.Int64())

	exp, err = s.Exposure(0, stash31)
	require.NoError(t, err)
	assert.Nil(t, exp)

	total, err := s.ErasTotalStake(0)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), total.Int64())

	assert.Equal(t, npos.EraIndex(0), env.activeEra(t))
	session, err := s.CurrentSession()
	require.NoError(t, err)
	assert.Equal(t, npos.SessionIndex(0), session)
	assert.Equal(t, int64(1000), env.free(t, stash11))

	assert.Len(t, eventsOf(s.Events(), EventStakersElected), 1)
	assert.NoError(t, s.CheckState())

	err = s.InitGenesis(context.Background(), defaultGenesis())
	assert.Error(t, err)
}

func TestGenesisIsAtomic(t *testing.T) {
	env := newTestEnv(t)
	g := defaultGenesis()
	g.Stakers = append(g.Stakers, GenesisStaker{Stash: npos.AccountID(99), Bond: big.NewInt(10), Role: "observer"})
	for _, gs := range g.Stakers {
		env.fund(t, gs.Stash, 2000)
	}

	err := env.staker.InitGenesis(context.Background(), g)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown genesis role")

	assert.Nil(t, env.ledger(t, stash11))
	assert.Equal(t, int64(2000), env.free(t, stash11))
	assert.Empty(t, env.staker.Events())
	active, err := env.staker.ActiveEra()
	require.NoError(t, err)
	assert.Nil(t, active)

	_, err = env.staker.EndSession(context.Background(), 0)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestEraProgression(t *testing.T) {
	env := newFixture(t)
	s := env.staker

	trs := env.endSessions(t, 6)
	assert.False(t, trs[0].Planned)
	assert.True(t, trs[1].Planned)
	assert.Equal(t, npos.EraIndex(1), trs[1].PlannedEra)
	assert.True(t, trs[2].EraStarted)
	assert.Equal(t, npos.EraIndex(1), trs[2].ActiveEra)
	assert.True(t, trs[5].EraStarted)
	assert.Equal(t, []npos.Address{stash11, stash21}, trs[5].Validators)

	assert.Equal(t, npos.EraIndex(2), env.activeEra(t))
	current, ok, err := s.CurrentEra()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, npos.EraIndex(2), current)

	for era, want := range map[npos.EraIndex]npos.SessionIndex{1: 3, 2: 6} {
		start, ok, err := s.ErasStartSessionIndex(era)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, want, start, "era %d", era)
	}

	bonded, err := s.BondedEras()
	require.NoError(t, err)
	assert.Equal(t, []eras.BondedEra{{Era: 0, StartSession: 0}, {Era: 1, StartSession: 3}, {Era: 2, StartSession: 6}}, bonded)

	payout, err := s.EraPayout(0)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), payout.Int64())
	assert.Len(t, eventsOf(s.Events(), EventEraPaid), 2)

	_, err = s.EndSession(context.Background(), 3)
	assert.Error(t, err)

	assert.NoError(t, s.CheckState())
}

func TestBondUnbondWithdraw(t *testing.T) {
	env := newFixture(t)
	s := env.staker
	stash := npos.AccountID(51)
	env.fund(t, stash, 1000)

	assert.ErrorIs(t, s.BondExtra(stash, big.NewInt(1)), reverts.ErrNoLedger)
	require.NoError(t, s.Bond(stash, big.NewInt(500), bonding.RewardDestination{Kind: bonding.Stash}))
	assert.Equal(t, int64(500), env.free(t, stash))
	assert.ErrorIs(t, s.Bond(stash, big.NewInt(1), bonding.RewardDestination{}), reverts.ErrAlreadyBonded)

	require.NoError(t, s.Unbond(stash, big.NewInt(500)))
	ledger := env.ledger(t, stash)
	require.Len(t, ledger.Unlocking, 1)
	assert.Equal(t, npos.EraIndex(3), ledger.Unlocking[0].Era)
	unbonded := eventsOf(s.Events(), EventUnbonded)
	require.Len(t, unbonded, 1)
	assert.Equal(t, npos.EraIndex(3), unbonded[0].Era)

	require.NoError(t, s.WithdrawUnbonded(stash))
	assert.NotNil(t, env.ledger(t, stash))
	assert.Equal(t, int64(500), env.free(t, stash))

	for i := 0; ; i++ {
		require.Less(t, i, 100)
		current, _, err := s.CurrentEra()
		require.NoError(t, err)
		if current >= 3 {
			break
		}
		env.endSessions(t, 1)
	}
	require.NoError(t, s.WithdrawUnbonded(stash))
	assert.Nil(t, env.ledger(t, stash))
	assert.Equal(t, int64(1000), env.free(t, stash))
	assert.Len(t, eventsOf(s.Events(), EventWithdrawn), 1)

	assert.ErrorIs(t, s.WithdrawUnbonded(stash), reverts.ErrNotStash)
	assert.NoError(t, s.CheckState())
}

func TestRestrictedStash(t *testing.T) {
	restricted := map[npos.Address]bool{}
	env := newFixture(t, withDeps(func(deps *Deps) {
		deps.Filter = FilterFunc(func(stash npos.Address) bool { return restricted[stash] })
	}))
	s := env.staker
	stash := npos.AccountID(51)
	env.fund(t, stash, 1000)
	restricted[stash] = true
	restricted[stash41] = true

	assert.ErrorIs(t, s.Bond(stash, big.NewInt(500), bonding.RewardDestination{}), reverts.ErrRestricted)
	assert.ErrorIs(t, s.BondWithController(stash, npos.AccountID(50), big.NewInt(500), bonding.RewardDestination{}), reverts.ErrRestricted)
	assert.ErrorIs(t, s.BondExtra(stash41, big.NewInt(10)), reverts.ErrRestricted)
	assert.Nil(t, env.ledger(t, stash))
	assert.Equal(t, int64(1000), env.active(t, stash41))

	// restricted stashes can still leave
	require.NoError(t, s.Unbond(stash41, big.NewInt(1000)))
	env.startActiveEra(t, 3)
	require.NoError(t, s.WithdrawUnbonded(stash41))
	assert.Nil(t, env.ledger(t, stash41))
	assert.NoError(t, s.CheckState())
}

func TestVirtualStaker(t *testing.T) {
	env := newFixture(t)
	s := env.staker
	stash, payee := npos.AccountID(61), npos.AccountID(62)

	require.NoError(t, s.VirtualBond(stash, big.NewInt(3000), payee))
	virtual, err := s.IsVirtualStaker(stash)
	require.NoError(t, err)
	assert.True(t, virtual)
	assert.Equal(t, int64(0), env.free(t, stash))
	bonded := eventsOf(s.Events(), EventBonded)
	require.Len(t, bonded, 1)
	assert.Equal(t, payee, bonded[0].Other)

	assert.ErrorIs(t, s.BondExtra(stash, big.NewInt(1)), reverts.ErrVirtualStaker)
	assert.ErrorIs(t, s.SetPayee(stash, bonding.RewardDestination{Kind: bonding.Staked}), reverts.ErrRewardDestinationRestricted)
	assert.ErrorIs(t, s.VirtualBond(stash11, big.NewInt(10), payee), reverts.ErrAlreadyBonded)
	require.NoError(t, s.Validate(stash, voters.ValidatorPrefs{}))

	env.startActiveEra(t, 1)
	elected, err := s.ElectedValidators(1)
	require.NoError(t, err)
	assert.Contains(t, elected, stash)
	require.NoError(t, s.RewardByIDs([]rewards.Points{{Who: stash, Points: 10}}))

	env.startActiveEra(t, 2)
	require.NoError(t, s.PayoutStakersByPage(reporter, stash, 1, 0))
	assert.InDelta(t, 1000, env.free(t, payee), 1)
	assert.Equal(t, int64(0), env.free(t, stash))
	assert.Equal(t, int64(3000), env.active(t, stash))

	// slashes reduce the ledger and reach the listener, no funds are burned
	_, err = s.OnOffenceInEra([]slashing.Offence{{Offender: stash, Fraction: npos.PerbillFromPercent(10)}}, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2700), env.active(t, stash))
	require.NotEmpty(t, env.slashes)
	last := env.slashes[len(env.slashes)-1]
	assert.Equal(t, stash, last.stash)
	assert.Equal(t, big.NewInt(2700), last.active)
	assert.NoError(t, s.CheckState())
}

func TestDisableOffenders(t *testing.T) {
	env := newTestEnv(t, withConfig(func(cfg *Config) { cfg.ValidatorCount = 4 }))
	g := defaultGenesis()
	g.Stakers[3].Role = RoleValidator
	env.genesis(t, g)
	s := env.staker

	elected, err := s.ElectedValidators(0)
	require.NoError(t, err)
	require.Len(t, elected, 4)

	offend := func(stash npos.Address, percent uint32, era npos.EraIndex) {
		_, err := s.OnOffenceInEra([]slashing.Offence{{Offender: stash, Fraction: npos.PerbillFromPercent(percent)}}, era)
		require.NoError(t, err)
	}
	disabled := func() []npos.Address {
		list, err := s.DisabledValidators()
		require.NoError(t, err)
		return list
	}

	offend(stash11, 10, 0)
	assert.Equal(t, []npos.Address{stash11}, disabled())
	// one out of four at most, a lower fraction does not take the place
	offend(stash21, 5, 0)
	assert.Equal(t, []npos.Address{stash11}, disabled())
	offend(stash21, 20, 0)
	assert.Equal(t, []npos.Address{stash21}, disabled())

	reenabled := eventsOf(s.Events(), EventValidatorReenabled)
	require.Len(t, reenabled, 1)
	assert.Equal(t, stash11, reenabled[0].Stash)
	assert.Len(t, eventsOf(s.Events(), EventValidatorDisabled), 2)
	assert.NoError(t, s.CheckState())

	env.startActiveEra(t, 1)
	assert.Empty(t, disabled())
	// offences of past eras slash without disabling
	offend(stash31, 10, 0)
	assert.Empty(t, disabled())
	assert.NoError(t, s.CheckState())
}

func TestIntentions(t *testing.T) {
	env := newFixture(t, withConfig(func(cfg *Config) {
		cfg.MinValidatorBond = big.NewInt(800)
		cfg.MinNominatorBond = big.NewInt(100)
	}))
	s := env.staker

	assert.ErrorIs(t, s.Validate(npos.AccountID(77), voters.ValidatorPrefs{}), reverts.ErrNotStash)
	assert.ErrorIs(t, s.Validate(stash31, voters.ValidatorPrefs{}), reverts.ErrInsufficientBond)
	assert.ErrorIs(t, s.Unbond(stash11, big.NewInt(300)), reverts.ErrInsufficientBond)
	require.NoError(t, s.Unbond(stash11, big.NewInt(200)))

	require.NoError(t, s.Nominate(stash41, []npos.Address{stash11}))
	noms, err := s.Nominations(stash41)
	require.NoError(t, err)
	require.NotNil(t, noms)
	assert.Equal(t, []npos.Address{stash11}, noms.Targets)

	require.NoError(t, s.Kick(stash11, []npos.Address{stash41}))
	assert.Len(t, eventsOf(s.Events(), EventKicked), 1)
	assert.ErrorIs(t, s.Kick(stash41, nil), reverts.ErrNotStash)

	require.NoError(t, s.Chill(nominee))
	noms, err = s.Nominations(nominee)
	require.NoError(t, err)
	assert.Nil(t, noms)
	assert.Len(t, eventsOf(s.Events(), EventChilled), 1)
	assert.ErrorIs(t, s.Chill(npos.AccountID(77)), reverts.ErrNotStash)

	validators, order, err := s.Validators()
	require.NoError(t, err)
	assert.Len(t, validators, 3)
	assert.Equal(t, []npos.Address{stash11, stash21, stash31}, order)
	assert.NoError(t, s.CheckState())
}

func TestPayout(t *testing.T) {
	env := newTestEnv(t)
	g := defaultGenesis()
	g.Stakers[0].Commission = npos.PerbillFromPercent(10)
	env.genesis(t, g)
	s := env.staker

	require.NoError(t, s.SetPayee(nominee, bonding.RewardDestination{Kind: bonding.Stash}))
	require.NoError(t, s.RewardByIDs([]rewards.Points{{Who: stash11, Points: 10}, {Who: stash21, Points: 10}, {Who: stash31, Points: 10}}))
	points, err := s.EraRewardPoints(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), points.Total)
	assert.Equal(t, uint64(0), points.Of(stash31))

	caller := npos.AccountID(1)
	assert.ErrorIs(t, s.PayoutStakersByPage(caller, stash11, 0, 0), reverts.ErrInvalidEraToReward)

	env.startActiveEra(t, 1)
	nomineeFree := env.free(t, nominee)

	require.NoError(t, s.PayoutStakersByPage(caller, stash11, 0, 0))
	assert.Equal(t, int64(1410), env.active(t, stash11))
	assert.Equal(t, int64(500), env.active(t, nominee))
	assert.Equal(t, nomineeFree+90, env.free(t, nominee))

	claimed, err := s.ClaimedPages(0, stash11)
	require.NoError(t, err)
	assert.Equal(t, []npos.PageIndex{0}, claimed)
	assert.Len(t, eventsOf(s.Events(), EventRewarded), 2)
	assert.Len(t, eventsOf(s.Events(), EventPayoutStarted), 1)

	assert.ErrorIs(t, s.PayoutStakersByPage(caller, stash11, 0, 0), reverts.ErrAlreadyClaimed)
	assert.ErrorIs(t, s.PayoutStakersByPage(caller, stash11, 0, 1), reverts.ErrPageNotFound)
	assert.ErrorIs(t, s.PayoutStakersByPage(caller, stash11, 1, 0), reverts.ErrInvalidEraToReward)
	assert.ErrorIs(t, s.PayoutStakersByPage(caller, npos.AccountID(999), 0, 0), reverts.ErrNotStash)
	assert.ErrorIs(t, s.PayoutStakersByPage(caller, stash31, 0, 0), reverts.ErrPageNotFound)
	assert.Equal(t, int64(1410), env.active(t, stash11))

	require.NoError(t, s.PayoutStakersByPage(caller, stash21, 0, 0))
	assert.Equal(t, int64(1400), env.active(t, stash21))
	assert.Equal(t, nomineeFree+190, env.free(t, nominee))
	assert.NoError(t, s.CheckState())
}

func TestPayoutHistoryDepth(t *testing.T) {
	env := newFixture(t, withConfig(func(cfg *Config) { cfg.HistoryDepth = 3 }))
	s := env.staker
	env.startActiveEra(t, 1)
	require.NoError(t, s.RewardByIDs([]rewards.Points{{Who: stash11, Points: 1}}))

	env.startActiveEra(t, 5)
	payout, err := s.EraPayout(1)
	require.NoError(t, err)
	assert.Nil(t, payout)
	points, err := s.EraRewardPoints(1)
	require.NoError(t, err)
	assert.Zero(t, points.Total)
	assert.ErrorIs(t, s.PayoutStakersByPage(stash11, stash11, 1, 0), reverts.ErrInvalidEraToReward)

	require.NoError(t, s.PayoutStakersByPage(stash11, stash11, 4, 0))
}

func TestSlashByLargestFraction(t *testing.T) {
	env := newFixture(t)
	s := env.staker
	reporterFree := env.free(t, stash41)

	slashes, err := s.OnOffenceInEra([]slashing.Offence{{Offender: stash11, Fraction: npos.PerbillFromPercent(10), Reporters: []npos.Address{stash41}}}, 0)
	require.NoError(t, err)
	require.Len(t, slashes, 1)
	assert.Equal(t, slashing.Applied, slashes[0].Status)
	assert.Equal(t, int64(12), slashes[0].Payout.Int64())
	assert.Equal(t, int64(900), env.active(t, stash11))
	assert.Equal(t, int64(475), env.active(t, nominee))
	assert.Equal(t, reporterFree+12, env.free(t, stash41))

	_, err = s.OnOffenceInEra([]slashing.Offence{{Offender: stash11, Fraction: npos.PerbillFromPercent(30)}}, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(700), env.active(t, stash11))
	assert.Equal(t, int64(425), env.active(t, nominee))

	slashes, err = s.OnOffenceInEra([]slashing.Offence{{Offender: stash11, Fraction: npos.PerbillFromPercent(20)}}, 0)
	require.NoError(t, err)
	assert.Empty(t, slashes)
	assert.Equal(t, int64(700), env.active(t, stash11))

	fraction, own, err := s.ValidatorSlashInEra(0, stash11)
	require.NoError(t, err)
	assert.Equal(t, npos.PerbillFromPercent(30), fraction)
	assert.Equal(t, int64(300), own.Int64())
	nom, err := s.NominatorSlashInEra(0, nominee)
	require.NoError(t, err)
	assert.Equal(t, int64(75), nom.Int64())

	require.Len(t, env.slashes, 4)
	assert.Equal(t, stash11, env.slashes[0].stash)
	assert.Equal(t, int64(900), env.slashes[0].active.Int64())
	assert.Equal(t, int64(100), env.slashes[0].total.Int64())
	assert.Len(t, eventsOf(s.Events(), EventSlashed), 4)
	assert.NoError(t, s.CheckState())
}

func TestSlashInvulnerable(t *testing.T) {
	env := newTestEnv(t)
	g := defaultGenesis()
	g.Invulnerables = []npos.Address{stash11}
	env.genesis(t, g)

	slashes, err := env.staker.OnOffenceInEra([]slashing.Offence{
		{Offender: stash11, Fraction: npos.PerbillOne},
		{Offender: stash31, Fraction: npos.PerbillOne},
	}, 0)
	require.NoError(t, err)
	assert.Empty(t, slashes)
	assert.Equal(t, int64(1000), env.active(t, stash11))
	assert.Empty(t, env.slashes)
}

func TestSlashPastEra(t *testing.T) {
	env := newFixture(t)
	s := env.staker
	env.startActiveEra(t, 4)

	slashes, err := s.OnOffence([]slashing.Offence{{Offender: stash11, Fraction: npos.PerbillFromPercent(10)}}, 10)
	require.NoError(t, err)
	require.Len(t, slashes, 1)
	assert.Equal(t, npos.EraIndex(3), slashes[0].SlashEra)

	var total int64
	for _, rec := range env.slashes {
		total += rec.total.Int64()
	}
	assert.Equal(t, int64(125), total)
	assert.Equal(t, stash11, env.slashes[0].stash)
	assert.Equal(t, int64(900), env.slashes[0].active.Int64())
}

func TestSlashEraTooOld(t *testing.T) {
	env := newFixture(t, withConfig(func(cfg *Config) { cfg.HistoryDepth = 3 }))
	s := env.staker
	env.startActiveEra(t, 5)

	offence := []slashing.Offence{{Offender: stash11, Fraction: npos.PerbillFromPercent(10)}}
	_, err := s.OnOffenceInEra(offence, 1)
	assert.ErrorIs(t, err, eras.ErrEraTooOld)
	_, err = s.OnOffence(offence, 0)
	assert.ErrorIs(t, err, eras.ErrEraTooOld)

	slashes, err := s.OnOffenceInEra(offence, 2)
	require.NoError(t, err)
	assert.Len(t, slashes, 1)
	assert.NoError(t, s.CheckState())
}

func TestSlashEraClearedFromHistory(t *testing.T) {
	env := newFixture(t, withConfig(func(cfg *Config) { cfg.HistoryDepth = 3 }))
	s := env.staker
	env.startActiveEra(t, 5)

	// planning era 6 clears era 2
	trs := env.endSessions(t, 2)
	assert.True(t, trs[1].Planned)
	assert.Equal(t, npos.EraIndex(6), trs[1].PlannedEra)

	bonded, err := s.BondedEras()
	require.NoError(t, err)
	require.NotEmpty(t, bonded)
	assert.Equal(t, npos.EraIndex(3), bonded[0].Era)

	offence := []slashing.Offence{{Offender: stash11, Fraction: npos.PerbillFromPercent(10)}}
	_, err = s.OnOffenceInEra(offence, 2)
	assert.ErrorIs(t, err, eras.ErrEraTooOld)
	_, err = s.OnOffence(offence, 6)
	assert.ErrorIs(t, err, eras.ErrEraTooOld)
	assert.Equal(t, int64(1000), env.active(t, stash11))

	slashes, err := s.OnOffenceInEra(offence, 3)
	require.NoError(t, err)
	assert.Len(t, slashes, 1)
	assert.NoError(t, s.CheckState())
}

func TestDeferredSlash(t *testing.T) {
	env := newFixture(t, withConfig(func(cfg *Config) { cfg.SlashDeferDuration = 2 }))
	s := env.staker

	_, err := s.OnOffenceInEra([]slashing.Offence{
		{Offender: stash11, Fraction: npos.PerbillFromPercent(10)},
		{Offender: stash21, Fraction: npos.PerbillFromPercent(10)},
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), env.active(t, stash11))

	pending, err := s.UnappliedSlashes(2)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	assert.ErrorIs(t, s.CancelDeferredSlash(2, nil), reverts.ErrEmptySlashIndices)
	assert.ErrorIs(t, s.CancelDeferredSlash(2, []uint32{5}), reverts.ErrInvalidSlashIndex)
	assert.ErrorIs(t, s.CancelDeferredSlash(2, []uint32{1, 0}), reverts.ErrNotSortedAndUnique)
	require.NoError(t, s.CancelDeferredSlash(2, []uint32{1}))
	assert.ErrorIs(t, s.CancelDeferredSlash(2, []uint32{1}), reverts.ErrSlashNotPending)
	assert.Len(t, eventsOf(s.Events(), EventSlashCancelled), 1)

	env.startActiveEra(t, 1)
	assert.Equal(t, int64(1000), env.active(t, stash11))

	env.startActiveEra(t, 2)
	assert.Equal(t, int64(900), env.active(t, stash11))
	assert.Equal(t, int64(1000), env.active(t, stash21))
	assert.Equal(t, int64(475), env.active(t, nominee))

	applied, err := s.UnappliedSlashes(2)
	require.NoError(t, err)
	require.Len(t, applied, 2)
	assert.Equal(t, slashing.Applied, applied[0].Status)
	assert.Equal(t, slashing.Cancelled, applied[1].Status)
	assert.ErrorIs(t, s.CancelDeferredSlash(2, []uint32{0}), reverts.ErrSlashNotPending)
	assert.NoError(t, s.CheckState())
}

// unavailableAfterGenesis elects era 0 and answers err for every later era.
func unavailableAfterGenesis(err error) election.Provider {
	return election.Func(func(ctx context.Context, snap *election.Snapshot, b election.Bounds) (election.Supports, error) {
		if snap.Era == 0 {
			return election.ApprovalStake{}.Elect(ctx, snap, b)
		}
		return nil, err
	})
}

func TestElectionUnavailable(t *testing.T) {
	env := newFixture(t, withDeps(func(deps *Deps) {
		deps.Elections = unavailableAfterGenesis(election.ErrDataUnavailable)
	}))
	s := env.staker

	trs := env.endSessions(t, 2)
	assert.False(t, trs[1].Planned)
	status, err := s.ElectionStatus()
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, npos.EraIndex(1), status.TargetEra)
	assert.Equal(t, npos.SessionIndex(3), status.StartSession)

	tr := env.endSessions(t, 1)[0]
	assert.ErrorIs(t, tr.Fault, election.ErrDataUnavailable)
	assert.True(t, tr.Planned)
	assert.True(t, tr.EraStarted)
	assert.Equal(t, []npos.Address{stash11, stash21}, tr.Validators)
	assert.Len(t, eventsOf(s.Events(), EventElectionFailed), 1)

	status, err = s.ElectionStatus()
	require.NoError(t, err)
	assert.Nil(t, status)

	exp, err := s.Exposure(1, stash11)
	require.NoError(t, err)
	assert.Equal(t, int64(1250), exp.Total.Int64())
	assert.NoError(t, s.CheckState())
}

func TestElectionFailed(t *testing.T) {
	env := newFixture(t, withDeps(func(deps *Deps) {
		deps.Elections = unavailableAfterGenesis(election.ErrElectionFailed)
	}))

	trs := env.endSessions(t, 3)
	assert.ErrorIs(t, trs[1].Fault, election.ErrElectionFailed)
	assert.True(t, trs[1].Planned)
	assert.Equal(t, npos.EraIndex(1), trs[1].PlannedEra)
	assert.True(t, trs[2].EraStarted)
	assert.NoError(t, trs[2].Fault)
	assert.Equal(t, []npos.Address{stash11, stash21}, trs[2].Validators)
}

func TestElectionDelayed(t *testing.T) {
	delayed := election.NewDelayed(election.ApprovalStake{}, 1)
	env := newFixture(t, withDeps(func(deps *Deps) {
		deps.Elections = election.Func(func(ctx context.Context, snap *election.Snapshot, b election.Bounds) (election.Supports, error) {
			if snap.Era == 0 {
				return election.ApprovalStake{}.Elect(ctx, snap, b)
			}
			return delayed.Elect(ctx, snap, b)
		})
	}))

	trs := env.endSessions(t, 3)
	assert.False(t, trs[1].Planned)
	assert.True(t, trs[2].Planned)
	assert.True(t, trs[2].EraStarted)
	assert.NoError(t, trs[2].Fault)
	assert.Empty(t, eventsOf(env.staker.Events(), EventElectionFailed))
}

func TestSingleSessionEras(t *testing.T) {
	singleSession := withConfig(func(cfg *Config) {
		cfg.SessionsPerEra = 1
		cfg.ElectionLookahead = 0
	})

	t.Run("elected", func(t *testing.T) {
		env := newFixture(t, singleSession)
		trs := env.endSessions(t, 3)
		for i, tr := range trs {
			era := npos.EraIndex(i + 1)
			assert.True(t, tr.Planned)
			assert.Equal(t, era, tr.PlannedEra)
			assert.True(t, tr.EraStarted)
			assert.Equal(t, era, tr.ActiveEra)
			assert.NoError(t, tr.Fault)
		}
		start, ok, err := env.staker.ErasStartSessionIndex(3)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, npos.SessionIndex(3), start)
		assert.NoError(t, env.staker.CheckState())
	})
	t.Run("unavailable", func(t *testing.T) {
		env := newFixture(t, singleSession, withDeps(func(deps *Deps) {
			deps.Elections = unavailableAfterGenesis(election.ErrDataUnavailable)
		}))
		tr := env.endSessions(t, 1)[0]
		assert.ErrorIs(t, tr.Fault, election.ErrDataUnavailable)
		assert.True(t, tr.EraStarted)
		assert.Equal(t, npos.EraIndex(1), tr.ActiveEra)
		assert.Equal(t, []npos.Address{stash11, stash21}, tr.Validators)

		status, err := env.staker.ElectionStatus()
		require.NoError(t, err)
		assert.Nil(t, status)
	})
}

func TestForcing(t *testing.T) {
	t.Run("new", func(t *testing.T) {
		env := newFixture(t)
		require.NoError(t, env.staker.ForceNewEra())
		trs := env.endSessions(t, 2)
		assert.True(t, trs[0].Planned)
		assert.True(t, trs[1].EraStarted)
		start, _, err := env.staker.ErasStartSessionIndex(1)
		require.NoError(t, err)
		assert.Equal(t, npos.SessionIndex(2), start)

		forcing, err := env.staker.Forcing()
		require.NoError(t, err)
		assert.Equal(t, eras.NotForcing, forcing)
		assert.Len(t, eventsOf(env.staker.Events(), EventForceEra), 1)
	})
	t.Run("none", func(t *testing.T) {
		env := newFixture(t)
		require.NoError(t, env.staker.ForceNoEras())
		env.endSessions(t, 10)
		assert.Equal(t, npos.EraIndex(0), env.activeEra(t))
		current, _, err := env.staker.CurrentEra()
		require.NoError(t, err)
		assert.Equal(t, npos.EraIndex(0), current)
	})
	t.Run("always", func(t *testing.T) {
		env := newFixture(t)
		require.NoError(t, env.staker.ForceNewEraAlways())
		env.endSessions(t, 4)
		assert.Equal(t, npos.EraIndex(3), env.activeEra(t))
		assert.NoError(t, env.staker.CheckState())
	})
}

func TestDeprecateControllerBatch(t *testing.T) {
	env := newTestEnv(t)
	g := defaultGenesis()
	chain := [][2]uint64{{333, 444}, {444, 555}, {555, 777}}
	for _, p := range chain {
		g.Stakers = append(g.Stakers, GenesisStaker{
			Stash:      npos.AccountID(p[0]),
			Controller: npos.AccountID(p[1]),
			Bond:       big.NewInt(100),
		})
	}
	env.genesis(t, g)
	s := env.staker

	controller, err := s.Bonded(npos.AccountID(333))
	require.NoError(t, err)
	assert.Equal(t, npos.AccountID(444), controller)

	migration, err := s.DeprecateControllerBatch()
	require.NoError(t, err)
	assert.Len(t, migration.Migrated, 3)
	assert.Empty(t, migration.Deferred)

	for _, p := range chain {
		stash := npos.AccountID(p[0])
		controller, err := s.Bonded(stash)
		require.NoError(t, err)
		assert.Equal(t, stash, controller)
		assert.Equal(t, int64(100), env.active(t, stash))
	}
	ledger, err := s.LedgerByController(npos.AccountID(777))
	require.NoError(t, err)
	assert.Nil(t, ledger)

	batch := eventsOf(s.Events(), EventControllerBatchDeprecated)
	require.Len(t, batch, 1)
	assert.Equal(t, uint32(3), batch[0].Count)
	assert.NoError(t, s.CheckState())
}

func TestCheckStateDetectsCorruption(t *testing.T) {
	env := newFixture(t)
	require.NoError(t, env.staker.CheckState())

	_, err := env.cur.BurnHeld(stash11, big.NewInt(1))
	require.NoError(t, err)

	err = env.staker.CheckState()
	var corruption *CorruptionError
	require.ErrorAs(t, err, &corruption)
	assert.Equal(t, stash11, corruption.Stash)
}

func TestCommit(t *testing.T) {
	env := newFixture(t)
	events, err := env.staker.Commit()
	require.NoError(t, err)
	assert.NotEmpty(t, events)
	assert.Empty(t, env.staker.Events())

	assert.ErrorIs(t, env.staker.Bond(npos.AccountID(51), big.NewInt(0), bonding.RewardDestination{}), reverts.ErrZeroAmount)
	assert.Empty(t, env.staker.Events())

	env.endSessions(t, 3)
	events, err = env.staker.Commit()
	require.NoError(t, err)
	assert.Len(t, eventsOf(events, EventEraPaid), 1)
}

func TestRandomOperations(t *testing.T) {
	env := newFixture(t)
	s := env.staker
	pool := []npos.Address{stash11, stash21, stash31, stash41, nominee, npos.AccountID(51), npos.AccountID(61)}
	for _, who := range pool[5:] {
		env.fund(t, who, 2000)
	}

	var op struct {
		Kind   uint8
		Who    uint8
		Other  uint8
		Amount uint16
	}
	f := fuzz.NewWithSeed(42)
	for i := 0; i < 400; i++ {
		f.Fuzz(&op)
		who := pool[int(op.Who)%len(pool)]
		other := pool[int(op.Other)%len(pool)]
		amount := big.NewInt(int64(op.Amount%600) + 1)

		var err error
		switch op.Kind % 12 {
		case 0:
			err = s.Bond(who, amount, bonding.RewardDestination{Kind: bonding.DestinationKind(op.Other % 2)})
		case 1:
			err = s.BondExtra(who, amount)
		case 2:
			err = s.Unbond(who, amount)
		case 3:
			err = s.WithdrawUnbonded(who)
		case 4:
			err = s.Validate(who, voters.ValidatorPrefs{Commission: npos.PerbillFromPercent(uint32(op.Other % 50))})
		case 5:
			err = s.Nominate(who, []npos.Address{other})
		case 6:
			err = s.Chill(who)
		case 7, 8:
			env.endSessions(t, int(op.Other%3)+1)
		case 9:
			err = s.RewardByIDs([]rewards.Points{{Who: who, Points: uint64(op.Amount)}})
		case 10:
			active := env.activeEra(t)
			_, err = s.OnOffenceInEra([]slashing.Offence{{
				Offender:  who,
				Fraction:  npos.PerbillFromPercent(uint32(op.Amount % 40)),
				Reporters: []npos.Address{reporter},
			}}, active)
		case 11:
			active := env.activeEra(t)
			if active > 0 {
				err = s.PayoutStakersByPage(reporter, who, active-1, 0)
			}
		}
		if err != nil {
			require.True(t, reverts.IsRevertErr(err), "op %d: %v", op.Kind%12, err)
		}
		require.NoError(t, s.CheckState(), "after op %d", op.Kind%12)
	}
}
