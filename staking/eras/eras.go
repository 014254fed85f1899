// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package eras

import (
	"github.com/pkg/errors"

	"github.com/vechain/npos/log"
	"github.com/vechain/npos/npos"
	"github.com/vechain/npos/storage"
)

var (
	slotActiveEra      = storage.Slot("eras-active")
	slotCurrentEra     = storage.Slot("eras-current")
	slotStartSessions  = storage.Slot("eras-start-sessions")
	slotStartTimes     = storage.Slot("eras-start-times")
	slotBondedEras     = storage.Slot("eras-bonded")
	slotElectionStatus = storage.Slot("eras-election-status")
	slotForcing        = storage.Slot("eras-forcing")

	logger = log.WithContext("pkg", "eras")
)

// ErrEraTooOld is returned when a session resolves to no era still in the bonded window.
var ErrEraTooOld = errors.New("era too old")

// ActiveEraInfo describes the era whose validators are currently producing.
type ActiveEraInfo struct {
	Index npos.EraIndex
	// Start is the era start in unix milliseconds.
	Start uint64
}

// BondedEra is an era still slashable, with the session it started at.
type BondedEra struct {
	Era          npos.EraIndex
	StartSession npos.SessionIndex
}

// Forcing controls when new eras are planned.
type Forcing uint8

const (
	NotForcing Forcing = iota
	ForceNew
	ForceNone
	ForceAlways
)

func (f Forcing) String() string {
	switch f {
	case NotForcing:
		return "not-forcing"
	case ForceNew:
		return "force-new"
	case ForceNone:
		return "force-none"
	case ForceAlways:
		return "force-always"
	default:
		return "unknown"
	}
}

// ElectionStatus is the persisted state of an election awaiting its result.
type ElectionStatus struct {
	// TargetEra is the era being planned.
	TargetEra npos.EraIndex
	// StartSession is the session the target era is planned to start at, the deadline for a result.
	StartSession npos.SessionIndex
	// RequestedAt is the session the election was first requested in.
	RequestedAt npos.SessionIndex
	Polls       uint32
}

type eraMarker struct {
	Index npos.EraIndex
}

type sessionMarker struct {
	Session npos.SessionIndex
}

// Service stores the era clock.
type Service struct {
	active         *storage.Value[*ActiveEraInfo]
	current        *storage.Value[*eraMarker]
	startSessions  *storage.Mapping[npos.EraIndex, *sessionMarker]
	startTimes     *storage.Mapping[npos.EraIndex, uint64]
	bonded         *storage.Value[[]BondedEra]
	electionStatus *storage.Value[*ElectionStatus]
	forcing        *storage.Value[Forcing]
}

func New(sctx *storage.Context) *Service {
	return &Service{
		active:         storage.NewValue[*ActiveEraInfo](sctx, slotActiveEra),
		current:        storage.NewValue[*eraMarker](sctx, slotCurrentEra),
		startSessions:  storage.NewMapping[npos.EraIndex, *sessionMarker](sctx, slotStartSessions),
		startTimes:     storage.NewMapping[npos.EraIndex, uint64](sctx, slotStartTimes),
		bonded:         storage.NewValue[[]BondedEra](sctx, slotBondedEras),
		electionStatus: storage.NewValue[*ElectionStatus](sctx, slotElectionStatus),
		forcing:        storage.NewValue[Forcing](sctx, slotForcing),
	}
}

// ActiveEra returns the active era, or nil before genesis.
func (s *Service) ActiveEra() (*ActiveEraInfo, error) {
	info, err := s.active.Get()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get active era")
	}
	return info, nil
}

// Activate makes era the active era and records its start.
func (s *Service) Activate(era npos.EraIndex, start uint64) error {
	if err := s.active.Set(&ActiveEraInfo{Index: era, Start: start}); err != nil {
		return err
	}
	return s.startTimes.Set(era, start)
}

// StartTime returns the recorded start of era in unix milliseconds.
func (s *Service) StartTime(era npos.EraIndex) (uint64, error) {
	return s.startTimes.Get(era)
}

// CurrentEra returns the latest planned era and whether any era was planned.
func (s *Service) CurrentEra() (npos.EraIndex, bool, error) {
	marker, err := s.current.Get()
	if err != nil {
		return 0, false, errors.Wrap(err, "failed to get current era")
	}
	if marker == nil {
		return 0, false, nil
	}
	return marker.Index, true, nil
}

func (s *Service) SetCurrentEra(era npos.EraIndex) error {
	return s.current.Set(&eraMarker{Index: era})
}

// StartSession returns the session era starts at and whether it was planned.
func (s *Service) StartSession(era npos.EraIndex) (npos.SessionIndex, bool, error) {
	marker, err := s.startSessions.Get(era)
	if err != nil {
		return 0, false, errors.Wrap(err, "failed to get era start session")
	}
	if marker == nil {
		return 0, false, nil
	}
	return marker.Session, true, nil
}

func (s *Service) SetStartSession(era npos.EraIndex, session npos.SessionIndex) error {
	return s.startSessions.Set(era, &sessionMarker{Session: session})
}

// Clear drops the markers of an era falling out of history.
func (s *Service) Clear(era npos.EraIndex) {
	s.startSessions.Delete(era)
	s.startTimes.Delete(era)
}

// BondedEras returns the slashable window, oldest first.
func (s *Service) BondedEras() ([]BondedEra, error) {
	bonded, err := s.bonded.Get()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get bonded eras")
	}
	return bonded, nil
}

// PushBondedEra appends era to the window and evicts every era with era+depth < era being pushed.
// The evicted eras are returned oldest first.
func (s *Service) PushBondedEra(era npos.EraIndex, start npos.SessionIndex, depth uint32) ([]npos.EraIndex, error) {
	bonded, err := s.BondedEras()
	if err != nil {
		return nil, err
	}
	if n := len(bonded); n > 0 && bonded[n-1].Era >= era {
		return nil, errors.Errorf("bonded era %d pushed after %d", era, bonded[n-1].Era)
	}
	bonded = append(bonded, BondedEra{Era: era, StartSession: start})

	var evicted []npos.EraIndex
	for len(bonded) > 0 && uint64(bonded[0].Era)+uint64(depth) < uint64(era) {
		evicted = append(evicted, bonded[0].Era)
		bonded = bonded[1:]
	}
	if err := s.bonded.Set(bonded); err != nil {
		return nil, err
	}
	if len(evicted) > 0 {
		logger.Debug("bonded eras evicted", "from", evicted[0], "to", evicted[len(evicted)-1])
	}
	return evicted, nil
}

// EvictBondedThrough drops every era up to and including era from the window.
// The evicted eras are returned oldest first.
func (s *Service) EvictBondedThrough(era npos.EraIndex) ([]npos.EraIndex, error) {
	bonded, err := s.BondedEras()
	if err != nil {
		return nil, err
	}
	var evicted []npos.EraIndex
	for len(bonded) > 0 && bonded[0].Era <= era {
		evicted = append(evicted, bonded[0].Era)
		bonded = bonded[1:]
	}
	if len(evicted) == 0 {
		return nil, nil
	}
	if err := s.bonded.Set(bonded); err != nil {
		return nil, err
	}
	return evicted, nil
}

// EraForSession resolves the era a session belonged to.
// Sessions of the active era resolve to it, older ones to the newest bonded era started at or before them.
func (s *Service) EraForSession(session npos.SessionIndex) (npos.EraIndex, error) {
	active, err := s.ActiveEra()
	if err != nil {
		return 0, err
	}
	if active == nil {
		return 0, ErrEraTooOld
	}
	start, ok, err := s.StartSession(active.Index)
	if err != nil {
		return 0, err
	}
	if ok && session >= start {
		return active.Index, nil
	}
	bonded, err := s.BondedEras()
	if err != nil {
		return 0, err
	}
	for i := len(bonded) - 1; i >= 0; i-- {
		if bonded[i].StartSession <= session {
			return bonded[i].Era, nil
		}
	}
	return 0, ErrEraTooOld
}

// IsBonded reports whether era is still inside the slashable window or is the active era.
func (s *Service) IsBonded(era npos.EraIndex) (bool, error) {
	active, err := s.ActiveEra()
	if err != nil || active == nil {
		return false, err
	}
	if era == active.Index {
		return true, nil
	}
	bonded, err := s.BondedEras()
	if err != nil {
		return false, err
	}
	for _, b := range bonded {
		if b.Era == era {
			return true, nil
		}
	}
	return false, nil
}

// ElectionStatus returns the pending election, or nil when idle.
func (s *Service) ElectionStatus() (*ElectionStatus, error) {
	status, err := s.electionStatus.Get()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get election status")
	}
	return status, nil
}

func (s *Service) SetElectionStatus(status *ElectionStatus) error {
	return s.electionStatus.Set(status)
}

func (s *Service) ClearElectionStatus() {
	s.electionStatus.Delete()
}

func (s *Service) Forcing() (Forcing, error) {
	return s.forcing.Get()
}

func (s *Service) SetForcing(f Forcing) error {
	if f == NotForcing {
		s.forcing.Delete()
		return nil
	}
	logger.Debug("forcing set", "mode", f)
	return s.forcing.Set(f)
}
