// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package staking is a nominated proof of stake engine: it bonds stake, rotates eras
// with the session clock, slashes offenders over a bonded window of past eras and pays
// era rewards page by page.
package staking

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/vechain/npos/currency"
	"github.com/vechain/npos/log"
	"github.com/vechain/npos/npos"
	"github.com/vechain/npos/staking/bonding"
	"github.com/vechain/npos/staking/eras"
	"github.com/vechain/npos/staking/exposure"
	"github.com/vechain/npos/staking/reverts"
	"github.com/vechain/npos/staking/rewards"
	"github.com/vechain/npos/staking/slashing"
	"github.com/vechain/npos/staking/voters"
	"github.com/vechain/npos/state"
	"github.com/vechain/npos/storage"
)

var (
	logger = log.WithContext("pkg", "staking")

	slotSession = storage.Slot("staking-session")

	// ErrNotInitialized is returned by era operations before genesis.
	ErrNotInitialized = errors.New("staking not initialized")
)

// Staker implements the staking engine over one state.
// It is not safe for concurrent use: calls are applied in order, each atomically.
type Staker struct {
	cfg      Config
	deps     Deps
	state    *state.State
	currency currency.Currency

	bonding   *bonding.Service
	voters    *voters.Service
	eras      *eras.Service
	exposures *exposure.Store
	slashing  *slashing.Service
	rewards   *rewards.Service

	session *storage.Value[npos.SessionIndex]
	events  []*Event
}

// New creates a staker keeping its records under owner in st.
func New(owner npos.Address, st *state.State, cfg Config, deps Deps) (*Staker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	deps, err := deps.withDefaults()
	if err != nil {
		return nil, err
	}
	sctx := storage.NewContext(owner, st)
	return &Staker{
		cfg:      cfg,
		deps:     deps,
		state:    st,
		currency: deps.Currency,

		bonding: bonding.New(sctx, deps.Currency, bonding.Params{
			BondingDuration:    cfg.BondingDuration,
			MaxUnlockingChunks: cfg.MaxUnlockingChunks,
		}),
		voters: voters.New(sctx, voters.Params{
			MaxNominations: cfg.MaxNominations,
			MinCommission:  cfg.MinCommission,
			MaxValidators:  cfg.MaxValidatorIntentions,
		}),
		eras:      eras.New(sctx),
		exposures: exposure.New(sctx, cfg.MaxExposurePageSize),
		slashing:  slashing.New(sctx),
		rewards:   rewards.New(sctx),

		session: storage.NewValue[npos.SessionIndex](sctx, slotSession),
	}, nil
}

// Config returns the parameters of the engine.
func (s *Staker) Config() Config {
	return s.cfg
}

// atomic runs fn in a state checkpoint. On error every write and event of fn is dropped.
func (s *Staker) atomic(call string, fn func() error) error {
	checkpoint := s.state.NewCheckpoint()
	mark := len(s.events)
	if err := fn(); err != nil {
		s.state.RevertTo(checkpoint)
		s.events = s.events[:mark]
		s.exposures.PurgeCache()

		status := "error"
		if reverts.IsRevertErr(err) {
			status = "revert"
			logger.Debug("call reverted", "call", call, "err", err)
		} else {
			logger.Info("call failed", "call", call, "err", err)
		}
		metricCalls().AddWithLabel(1, map[string]string{"call": call, "status": status})
		return err
	}
	metricCalls().AddWithLabel(1, map[string]string{"call": call, "status": "ok"})
	return nil
}

func (s *Staker) emit(ev *Event) {
	s.events = append(s.events, ev)
	metricEvents().AddWithLabel(1, map[string]string{"kind": string(ev.Kind)})
}

// Events returns the events emitted since the last commit.
func (s *Staker) Events() []*Event {
	return s.events
}

// Commit writes the state to the store and returns the events of the committed calls.
func (s *Staker) Commit() ([]*Event, error) {
	if err := s.state.Commit(); err != nil {
		return nil, errors.Wrap(err, "commit state")
	}
	events := s.events
	s.events = nil
	return events, nil
}

// Discard drops every change and event not committed yet.
func (s *Staker) Discard() {
	s.state.RevertTo(0)
	s.events = nil
	s.exposures.PurgeCache()
}

// currentEra returns the latest planned era, zero before genesis.
func (s *Staker) currentEra() (npos.EraIndex, error) {
	era, _, err := s.eras.CurrentEra()
	return era, err
}

//
// Queries - no state change
//

// Ledger returns the ledger of stash, or nil if it is not bonded.
func (s *Staker) Ledger(stash npos.Address) (*bonding.Ledger, error) {
	return s.bonding.Ledger(stash)
}

// IsVirtualStaker reports whether stash was bonded with VirtualBond.
func (s *Staker) IsVirtualStaker(stash npos.Address) (bool, error) {
	return s.bonding.IsVirtual(stash)
}

// Bonded returns the controller of stash, or the zero address.
func (s *Staker) Bonded(stash npos.Address) (npos.Address, error) {
	return s.bonding.Controller(stash)
}

// LedgerByController returns the ledger stored under controller, or nil.
func (s *Staker) LedgerByController(controller npos.Address) (*bonding.Ledger, error) {
	return s.bonding.LedgerByController(controller)
}

func (s *Staker) Payee(stash npos.Address) (*bonding.RewardDestination, error) {
	return s.bonding.Payee(stash)
}

// Stashes lists every bonded stash in bonding order.
func (s *Staker) Stashes() ([]npos.Address, error) {
	var list []npos.Address
	err := s.bonding.Stashes(func(stash npos.Address) error {
		list = append(list, stash)
		return nil
	})
	return list, err
}

// Validators lists the validator candidates with their prefs.
func (s *Staker) Validators() (map[npos.Address]*voters.ValidatorPrefs, []npos.Address, error) {
	prefs := make(map[npos.Address]*voters.ValidatorPrefs)
	var order []npos.Address
	err := s.voters.IterValidators(func(stash npos.Address, p *voters.ValidatorPrefs) error {
		prefs[stash] = p
		order = append(order, stash)
		return nil
	})
	return prefs, order, err
}

// Nominators lists the nominators with their nominations.
func (s *Staker) Nominators() (map[npos.Address]*voters.Nominations, []npos.Address, error) {
	noms := make(map[npos.Address]*voters.Nominations)
	var order []npos.Address
	err := s.voters.IterNominators(func(stash npos.Address, n *voters.Nominations) error {
		noms[stash] = n
		order = append(order, stash)
		return nil
	})
	return noms, order, err
}

func (s *Staker) ValidatorPrefs(stash npos.Address) (*voters.ValidatorPrefs, error) {
	return s.voters.Validator(stash)
}

func (s *Staker) Nominations(stash npos.Address) (*voters.Nominations, error) {
	return s.voters.Nominations(stash)
}

// ActiveEra returns the active era, or nil before genesis.
func (s *Staker) ActiveEra() (*eras.ActiveEraInfo, error) {
	return s.eras.ActiveEra()
}

// CurrentEra returns the latest planned era.
func (s *Staker) CurrentEra() (npos.EraIndex, bool, error) {
	return s.eras.CurrentEra()
}

// CurrentSession returns the running session.
func (s *Staker) CurrentSession() (npos.SessionIndex, error) {
	return s.session.Get()
}

func (s *Staker) BondedEras() ([]eras.BondedEra, error) {
	return s.eras.BondedEras()
}

// ErasStartSessionIndex returns the session era starts at and whether it was planned.
func (s *Staker) ErasStartSessionIndex(era npos.EraIndex) (npos.SessionIndex, bool, error) {
	return s.eras.StartSession(era)
}

func (s *Staker) Forcing() (eras.Forcing, error) {
	return s.eras.Forcing()
}

// ElectionStatus returns the election awaiting its result, or nil.
func (s *Staker) ElectionStatus() (*eras.ElectionStatus, error) {
	return s.eras.ElectionStatus()
}

func (s *Staker) EraRewardPoints(era npos.EraIndex) (*rewards.EraRewardPoints, error) {
	return s.rewards.Points(era)
}

// EraPayout returns the validator payout of an ended era, or nil.
func (s *Staker) EraPayout(era npos.EraIndex) (*big.Int, error) {
	return s.rewards.EraPayout(era)
}

func (s *Staker) ClaimedPages(era npos.EraIndex, stash npos.Address) ([]npos.PageIndex, error) {
	return s.rewards.ClaimedPages(era, stash)
}

// DisabledValidators returns the validators disabled in the active era, in disabling order.
func (s *Staker) DisabledValidators() ([]npos.Address, error) {
	list, err := s.slashing.Disabled()
	if err != nil {
		return nil, err
	}
	out := make([]npos.Address, 0, len(list))
	for _, d := range list {
		out = append(out, d.Stash)
	}
	return out, nil
}

// ElectedValidators returns the validators exposed in era.
func (s *Staker) ElectedValidators(era npos.EraIndex) ([]npos.Address, error) {
	return s.exposures.Validators(era)
}

func (s *Staker) ErasTotalStake(era npos.EraIndex) (*big.Int, error) {
	return s.exposures.TotalStake(era)
}

func (s *Staker) Exposure(era npos.EraIndex, stash npos.Address) (*exposure.Exposure, error) {
	return s.exposures.Exposure(era, stash)
}

func (s *Staker) ExposureOverview(era npos.EraIndex, stash npos.Address) (*exposure.Overview, error) {
	return s.exposures.Overview(era, stash)
}

// ErasValidatorPrefs returns the prefs a validator was elected with in era, or nil.
func (s *Staker) ErasValidatorPrefs(era npos.EraIndex, stash npos.Address) (*voters.ValidatorPrefs, error) {
	return s.exposures.Prefs(era, stash)
}

func (s *Staker) ExposurePage(era npos.EraIndex, stash npos.Address, page npos.PageIndex) (*exposure.Page, error) {
	return s.exposures.Page(era, stash, page)
}

func (s *Staker) PageCount(era npos.EraIndex, stash npos.Address) (uint32, error) {
	return s.exposures.PageCount(era, stash)
}

// UnappliedSlashes returns the slashes due when era starts.
func (s *Staker) UnappliedSlashes(era npos.EraIndex) ([]*slashing.UnappliedSlash, error) {
	return s.slashing.Unapplied(era)
}

func (s *Staker) ValidatorSlashInEra(era npos.EraIndex, stash npos.Address) (npos.Perbill, *big.Int, error) {
	return s.slashing.ValidatorSlashInEra(era, stash)
}

func (s *Staker) NominatorSlashInEra(era npos.EraIndex, stash npos.Address) (*big.Int, error) {
	return s.slashing.NominatorSlashInEra(era, stash)
}

func (s *Staker) Invulnerables() ([]npos.Address, error) {
	return s.slashing.Invulnerables()
}

// Score ranks a voter by its active stake, zero when not bonded.
func (s *Staker) Score(stash npos.Address) (*big.Int, error) {
	ledger, err := s.bonding.Ledger(stash)
	if err != nil {
		return nil, err
	}
	if ledger == nil {
		return new(big.Int), nil
	}
	return new(big.Int).Set(ledger.Active), nil
}

// PageCacheStats returns hits and misses of the exposure page cache.
func (s *Staker) PageCacheStats() (hit, miss int64) {
	return s.exposures.CacheStats()
}
