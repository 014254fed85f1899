// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staking

import (
	"context"
	"math/big"

	"github.com/pkg/errors"

	"github.com/vechain/npos/election"
	"github.com/vechain/npos/npos"
	"github.com/vechain/npos/session"
	"github.com/vechain/npos/staking/bonding"
	"github.com/vechain/npos/staking/eras"
	"github.com/vechain/npos/staking/exposure"
	"github.com/vechain/npos/staking/rewards"
	"github.com/vechain/npos/staking/slashing"
	"github.com/vechain/npos/staking/voters"
)

//
// State transition types
//

// Transition describes what one session end changed.
type Transition struct {
	Ended   npos.SessionIndex
	Started npos.SessionIndex
	// ActiveEra is the active era after the transition.
	ActiveEra  npos.EraIndex
	EraStarted bool
	// Validators is the set of the era started by this transition.
	Validators []npos.Address
	// Planned is set when an era was planned, PlannedEra being its index.
	Planned    bool
	PlannedEra npos.EraIndex
	// Fault is the election error the engine recovered from by keeping the previous validator set.
	Fault error
}

// Role is the intention of a genesis staker.
type Role string

const (
	RoleIdle      Role = "idle"
	RoleValidator Role = "validator"
	RoleNominator Role = "nominator"
)

// GenesisStaker is a stash bonded at genesis.
type GenesisStaker struct {
	Stash npos.Address `yaml:"stash"`
	// Controller defaults to the stash. A distinct controller is imported as is.
	Controller npos.Address   `yaml:"controller"`
	Bond       *big.Int       `yaml:"bond"`
	Role       Role           `yaml:"role"`
	Commission npos.Perbill   `yaml:"commission"`
	Targets    []npos.Address `yaml:"targets"`
}

// Genesis is the initial staking state.
type Genesis struct {
	Stakers       []GenesisStaker `yaml:"stakers"`
	Invulnerables []npos.Address  `yaml:"invulnerables"`
}

// InitGenesis bonds the genesis stakers, elects era 0 and activates it at session 0.
func (s *Staker) InitGenesis(ctx context.Context, genesis *Genesis) error {
	return s.atomic("genesis", func() error {
		if active, err := s.eras.ActiveEra(); err != nil {
			return err
		} else if active != nil {
			return errors.New("genesis already initialized")
		}
		staked := bonding.RewardDestination{Kind: bonding.Staked}
		for _, gs := range genesis.Stakers {
			if gs.Bond == nil || gs.Bond.Sign() <= 0 {
				return errors.Errorf("genesis staker %v without bond", gs.Stash)
			}
			if gs.Controller.IsZero() || gs.Controller == gs.Stash {
				if _, err := s.bonding.Bond(gs.Stash, gs.Bond, staked); err != nil {
					return errors.Wrapf(err, "bond genesis staker %v", gs.Stash)
				}
			} else {
				ledger := &bonding.Ledger{Stash: gs.Stash, Total: new(big.Int).Set(gs.Bond), Active: new(big.Int).Set(gs.Bond)}
				if err := s.bonding.Import(ledger, gs.Controller, staked); err != nil {
					return errors.Wrapf(err, "import genesis staker %v", gs.Stash)
				}
			}
			switch gs.Role {
			case RoleValidator:
				if err := s.voters.Validate(gs.Stash, voters.ValidatorPrefs{Commission: gs.Commission}); err != nil {
					return errors.Wrapf(err, "genesis validator %v", gs.Stash)
				}
			case RoleNominator:
				if _, err := s.voters.Nominate(gs.Stash, gs.Targets, 0); err != nil {
					return errors.Wrapf(err, "genesis nominator %v", gs.Stash)
				}
			case RoleIdle, "":
			default:
				return errors.Errorf("unknown genesis role %q", gs.Role)
			}
		}
		if err := s.slashing.SetInvulnerables(genesis.Invulnerables); err != nil {
			return err
		}

		supports, err := s.elect(ctx, 0)
		if err != nil {
			return errors.Wrap(err, "genesis election")
		}
		if err := s.storeElection(0, 0, supports); err != nil {
			return err
		}
		if err := s.startEra(0, 0); err != nil {
			return err
		}
		if err := s.session.Set(0); err != nil {
			return err
		}
		logger.Info("genesis initialized", "stakers", len(genesis.Stakers), "validators", len(supports))
		return nil
	})
}

// EndSession advances the clock past the ended session. The election of the next era
// is requested ElectionLookahead sessions before it starts, and polled on every later session
// end. If no result arrives by the era start, the previous validator set is kept and the
// fault is reported in the transition. Without lookahead the election runs before the era
// start check and a missing result is a fault at once.
func (s *Staker) EndSession(ctx context.Context, ended npos.SessionIndex) (*Transition, error) {
	var tr *Transition
	err := s.atomic("end_session", func() error {
		var err error
		tr, err = s.endSession(ctx, ended)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tr, nil
}

func (s *Staker) endSession(ctx context.Context, ended npos.SessionIndex) (*Transition, error) {
	active, err := s.eras.ActiveEra()
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, ErrNotInitialized
	}
	running, err := s.session.Get()
	if err != nil {
		return nil, err
	}
	if ended != running {
		return nil, errors.Errorf("session %d ended while session %d is running", ended, running)
	}
	tr := &Transition{Ended: ended, Started: ended + 1, ActiveEra: active.Index}

	if err := s.pollElection(ctx, ended, tr); err != nil {
		return nil, err
	}
	// without lookahead the era planned now starts with the next session
	if s.cfg.ElectionLookahead == 0 {
		if err := s.plan(ctx, ended, tr); err != nil {
			return nil, err
		}
	}

	next := active.Index + 1
	start, planned, err := s.eras.StartSession(next)
	if err != nil {
		return nil, err
	}
	if planned && start == tr.Started {
		if err := s.endEra(active); err != nil {
			return nil, errors.Wrapf(err, "end era %d", active.Index)
		}
		if err := s.startEra(next, start); err != nil {
			return nil, errors.Wrapf(err, "start era %d", next)
		}
		tr.EraStarted = true
		tr.ActiveEra = next
		if tr.Validators, err = s.exposures.Validators(next); err != nil {
			return nil, err
		}
	}
	if err := s.session.Set(tr.Started); err != nil {
		return nil, err
	}
	metricSession().Set(int64(tr.Started))

	if s.cfg.ElectionLookahead > 0 {
		if err := s.plan(ctx, ended, tr); err != nil {
			return nil, err
		}
	}
	return tr, nil
}

// pollElection asks again for the result of a pending election.
func (s *Staker) pollElection(ctx context.Context, ended npos.SessionIndex, tr *Transition) error {
	status, err := s.eras.ElectionStatus()
	if err != nil || status == nil {
		return err
	}
	status.Polls++
	supports, err := s.elect(ctx, status.TargetEra)
	switch {
	case err == nil:
		s.eras.ClearElectionStatus()
		if err := s.storeElection(status.TargetEra, status.StartSession, supports); err != nil {
			return err
		}
	case errors.Is(err, election.ErrDataUnavailable) && ended+1 < status.StartSession:
		logger.Debug("election result not ready", "era", status.TargetEra, "polls", status.Polls)
		return s.eras.SetElectionStatus(status)
	case errors.Is(err, election.ErrDataUnavailable), errors.Is(err, election.ErrElectionFailed):
		s.eras.ClearElectionStatus()
		tr.Fault = err
		if err := s.fallback(status.TargetEra, status.StartSession, err); err != nil {
			return err
		}
	default:
		return errors.Wrapf(err, "poll election of era %d", status.TargetEra)
	}
	tr.Planned = true
	tr.PlannedEra = status.TargetEra
	return nil
}

// plan requests the election of the next era when it is due.
func (s *Staker) plan(ctx context.Context, ended npos.SessionIndex, tr *Transition) error {
	active, err := s.eras.ActiveEra()
	if err != nil {
		return err
	}
	current, err := s.currentEra()
	if err != nil {
		return err
	}
	if current != active.Index {
		return nil
	}
	if status, err := s.eras.ElectionStatus(); err != nil || status != nil {
		return err
	}
	forcing, err := s.eras.Forcing()
	if err != nil {
		return err
	}
	lookahead := uint64(s.cfg.ElectionLookahead)
	switch forcing {
	case eras.ForceNone:
		return nil
	case eras.ForceNew, eras.ForceAlways:
	default:
		currentStart, _, err := s.eras.StartSession(current)
		if err != nil {
			return err
		}
		if uint64(ended)+1+lookahead < uint64(currentStart)+uint64(s.cfg.SessionsPerEra) {
			return nil
		}
	}

	target := current + 1
	start := ended + 1 + npos.SessionIndex(lookahead)
	supports, err := s.elect(ctx, target)
	switch {
	case err == nil:
		if err := s.storeElection(target, start, supports); err != nil {
			return err
		}
	case errors.Is(err, election.ErrDataUnavailable) && lookahead > 0:
		logger.Debug("election requested", "era", target, "deadline", start)
		return s.eras.SetElectionStatus(&eras.ElectionStatus{
			TargetEra:    target,
			StartSession: start,
			RequestedAt:  ended,
			Polls:        1,
		})
	case errors.Is(err, election.ErrDataUnavailable), errors.Is(err, election.ErrElectionFailed):
		tr.Fault = err
		if err := s.fallback(target, start, err); err != nil {
			return err
		}
	default:
		return errors.Wrapf(err, "elect era %d", target)
	}
	tr.Planned = true
	tr.PlannedEra = target
	return nil
}

// elect runs the election of era over the current intentions and checks the result.
func (s *Staker) elect(ctx context.Context, era npos.EraIndex) (election.Supports, error) {
	snapshot, err := s.Snapshot(era)
	if err != nil {
		return nil, err
	}
	bounds := s.bounds()
	supports, err := s.deps.Elections.Elect(ctx, snapshot, bounds)
	if err != nil {
		return nil, err
	}
	if err := supports.Validate(snapshot, bounds); err != nil {
		return nil, err
	}
	return supports, nil
}

func (s *Staker) bounds() election.Bounds {
	return election.Bounds{
		MaxWinners:          min(s.cfg.ValidatorCount, s.cfg.MaxValidatorSet),
		MinWinners:          s.cfg.MinValidatorCount,
		MaxBackersPerWinner: s.cfg.MaxBackersPerWinner,
	}
}

// storeElection stores the exposures of an election result as era, planned to start at start.
func (s *Staker) storeElection(era npos.EraIndex, start npos.SessionIndex, supports election.Supports) error {
	for _, support := range supports {
		exp := &exposure.Exposure{Total: new(big.Int), Own: new(big.Int)}
		for _, b := range support.Backers {
			if b.Value == nil || b.Value.Sign() <= 0 {
				continue
			}
			if b.Who == support.Winner {
				exp.Own.Add(exp.Own, b.Value)
			} else {
				exp.Others = append(exp.Others, exposure.Individual{Who: b.Who, Value: new(big.Int).Set(b.Value)})
			}
			exp.Total.Add(exp.Total, b.Value)
		}
		prefs, err := s.voters.Validator(support.Winner)
		if err != nil {
			return err
		}
		if prefs == nil {
			prefs = &voters.ValidatorPrefs{}
		}
		if err := s.exposures.Put(era, support.Winner, exp, *prefs); err != nil {
			return err
		}
		metricBackers().Observe(int64(len(exp.Others)))
	}
	total, err := s.exposures.TotalStake(era)
	if err != nil {
		return err
	}
	s.emit(&Event{Kind: EventStakersElected, Era: era, Amount: total, Count: uint32(len(supports))})
	metricStake().SetWithLabel(meterValue(total), map[string]string{"kind": "planned"})
	return s.markPlanned(era, start)
}

// fallback plans era with the validator set of the active era.
func (s *Staker) fallback(era npos.EraIndex, start npos.SessionIndex, cause error) error {
	active, err := s.eras.ActiveEra()
	if err != nil {
		return err
	}
	if err := s.exposures.Copy(active.Index, era); err != nil {
		return errors.Wrap(err, "copy exposures")
	}
	total, err := s.exposures.TotalStake(era)
	if err != nil {
		return err
	}
	validators, err := s.exposures.Validators(era)
	if err != nil {
		return err
	}
	s.emit(&Event{Kind: EventElectionFailed, Era: era, Amount: total, Count: uint32(len(validators))})
	metricElectionFaults().Add(1)
	logger.Warn("election failed, keeping validator set", "era", era, "validators", len(validators), "err", cause)
	return s.markPlanned(era, start)
}

func (s *Staker) markPlanned(era npos.EraIndex, start npos.SessionIndex) error {
	if err := s.eras.SetCurrentEra(era); err != nil {
		return err
	}
	if err := s.eras.SetStartSession(era, start); err != nil {
		return err
	}
	if depth := s.cfg.HistoryDepth; uint64(era) > uint64(depth) {
		if err := s.clearEra(era - npos.EraIndex(depth) - 1); err != nil {
			return err
		}
	}
	if forcing, err := s.eras.Forcing(); err != nil {
		return err
	} else if forcing == eras.ForceNew {
		if err := s.eras.SetForcing(eras.NotForcing); err != nil {
			return err
		}
	}
	logger.Info("era planned", "era", era, "start", start)
	return nil
}

// clearEra drops the records of an era leaving history. The era leaves the bonded window
// at the same time, offences in it fail with eras.ErrEraTooOld from then on.
func (s *Staker) clearEra(era npos.EraIndex) error {
	evicted, err := s.eras.EvictBondedThrough(era)
	if err != nil {
		return err
	}
	if err := s.clearSlashes(evicted); err != nil {
		return err
	}
	validators, err := s.exposures.Validators(era)
	if err != nil {
		return err
	}
	s.rewards.ClearEra(era, validators)
	if err := s.exposures.Clear(era); err != nil {
		return err
	}
	s.eras.Clear(era)
	logger.Debug("era cleared", "era", era)
	return nil
}

func (s *Staker) clearSlashes(evicted []npos.EraIndex) error {
	for _, era := range evicted {
		if err := s.slashing.ClearEra(era); err != nil {
			return err
		}
	}
	return nil
}

// endEra records the payout of the active era and mints the remainder.
func (s *Staker) endEra(active *eras.ActiveEraInfo) error {
	now := s.deps.Clock.NowMillis()
	var duration uint64
	if now > active.Start {
		duration = now - active.Start
	}
	staked, err := s.exposures.TotalStake(active.Index)
	if err != nil {
		return err
	}
	issuance, err := s.currency.TotalIssuance()
	if err != nil {
		return err
	}
	payout, remainder := s.deps.Curve.EraPayout(staked, issuance, duration)
	if err := s.rewards.SetEraPayout(active.Index, payout); err != nil {
		return err
	}
	if remainder.Sign() > 0 && !s.deps.RemainderAccount.IsZero() {
		if err := s.currency.Mint(s.deps.RemainderAccount, remainder); err != nil {
			return errors.Wrap(err, "mint era remainder")
		}
	}
	s.emit(&Event{Kind: EventEraPaid, Era: active.Index, Amount: payout, Remainder: remainder})
	logger.Info("era paid", "era", active.Index, "payout", payout, "remainder", remainder, "duration", duration)
	return nil
}

// startEra activates era, moves the bonded window and applies the slashes due.
func (s *Staker) startEra(era npos.EraIndex, start npos.SessionIndex) error {
	if err := s.eras.Activate(era, s.deps.Clock.NowMillis()); err != nil {
		return err
	}
	s.slashing.ClearDisabled()
	evicted, err := s.eras.PushBondedEra(era, start, s.cfg.HistoryDepth)
	if err != nil {
		return err
	}
	if err := s.clearSlashes(evicted); err != nil {
		return err
	}

	due, err := s.slashing.Unapplied(era)
	if err != nil {
		return err
	}
	for i, slash := range due {
		if slash.Status != slashing.Pending {
			continue
		}
		payout, err := s.applySlash(slash)
		if err != nil {
			return errors.Wrapf(err, "apply deferred slash of %v", slash.Validator)
		}
		if err := s.slashing.MarkApplied(era, i, payout); err != nil {
			return err
		}
	}

	total, err := s.exposures.TotalStake(era)
	if err != nil {
		return err
	}
	metricActiveEra().Set(int64(era))
	metricStake().SetWithLabel(meterValue(total), map[string]string{"kind": "active"})
	logger.Info("era started", "era", era, "session", start, "stake", total)
	return nil
}

// RewardByIDs credits points in the active era. Validators not exposed in it are ignored.
func (s *Staker) RewardByIDs(points []rewards.Points) error {
	return s.atomic("reward_by_ids", func() error {
		active, err := s.eras.ActiveEra()
		if err != nil {
			return err
		}
		if active == nil {
			return ErrNotInitialized
		}
		credits := make([]rewards.Points, 0, len(points))
		for _, p := range points {
			overview, err := s.exposures.Overview(active.Index, p.Who)
			if err != nil {
				return err
			}
			if overview == nil {
				continue
			}
			credits = append(credits, p)
		}
		return s.rewards.AddPoints(active.Index, credits)
	})
}

type rotator struct {
	staker       *Staker
	ctx          context.Context
	onTransition func(*Transition)
}

func (r *rotator) EndSession(ended npos.SessionIndex) error {
	tr, err := r.staker.EndSession(r.ctx, ended)
	if err != nil {
		return err
	}
	if r.onTransition != nil {
		r.onTransition(tr)
	}
	return nil
}

// AsRotator adapts the staker to a session driver. onTransition may be nil.
func (s *Staker) AsRotator(ctx context.Context, onTransition func(*Transition)) session.Rotator {
	return &rotator{staker: s, ctx: ctx, onTransition: onTransition}
}
