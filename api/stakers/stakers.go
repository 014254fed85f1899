// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package stakers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/vechain/npos/api/restutil"
	"github.com/vechain/npos/npos"
	"github.com/vechain/npos/staking"
	"github.com/vechain/npos/staking/eras"
	"github.com/vechain/npos/staking/slashing"
)

// Backend serializes access to a staker shared with the session driver.
type Backend interface {
	// View runs fn with exclusive access to the staker. fn must not modify it.
	View(fn func(s *staking.Staker) error) error
	// Update runs fn, then commits the state and returns the events emitted.
	// Nothing is committed if fn fails.
	Update(fn func(s *staking.Staker) error) ([]*staking.Event, error)
}

type Stakers struct {
	backend Backend
}

func New(backend Backend) *Stakers {
	return &Stakers{backend}
}

func (st *Stakers) handleGetEra(w http.ResponseWriter, _ *http.Request) error {
	var info EraInfo
	err := st.backend.View(func(s *staking.Staker) error {
		active, err := s.ActiveEra()
		if err != nil {
			return err
		}
		if active == nil {
			return restutil.HTTPError(staking.ErrNotInitialized, http.StatusServiceUnavailable)
		}
		info.ActiveEra, info.ActiveEraStart = uint32(active.Index), active.Start

		current, _, err := s.CurrentEra()
		if err != nil {
			return err
		}
		info.CurrentEra = uint32(current)
		session, err := s.CurrentSession()
		if err != nil {
			return err
		}
		info.Session = uint32(session)
		forcing, err := s.Forcing()
		if err != nil {
			return err
		}
		info.Forcing = forcing.String()
		bonded, err := s.BondedEras()
		if err != nil {
			return err
		}
		for _, b := range bonded {
			info.BondedEras = append(info.BondedEras, BondedEra{Era: uint32(b.Era), StartSession: uint32(b.StartSession)})
		}
		status, err := s.ElectionStatus()
		if err != nil {
			return err
		}
		info.Election = convertElection(status)
		return nil
	})
	if err != nil {
		return err
	}
	return restutil.WriteJSON(w, &info)
}

func (st *Stakers) handleGetLedger(w http.ResponseWriter, req *http.Request) error {
	stash, err := restutil.ParseAddress("stash", mux.Vars(req)["stash"])
	if err != nil {
		return err
	}
	var ledger *Ledger
	err = st.backend.View(func(s *staking.Staker) error {
		l, err := s.Ledger(stash)
		if err != nil {
			return err
		}
		if l == nil {
			return restutil.NotFound(errors.New("stash not bonded"))
		}
		controller, err := s.Bonded(stash)
		if err != nil {
			return err
		}
		payee, err := s.Payee(stash)
		if err != nil {
			return err
		}
		ledger = convertLedger(l, controller, payee)
		return nil
	})
	if err != nil {
		return err
	}
	return restutil.WriteJSON(w, ledger)
}

func (st *Stakers) handleGetValidators(w http.ResponseWriter, _ *http.Request) error {
	var list []*Validator
	err := st.backend.View(func(s *staking.Staker) error {
		prefs, order, err := s.Validators()
		if err != nil {
			return err
		}
		list = make([]*Validator, 0, len(order))
		for _, stash := range order {
			stake, err := s.Score(stash)
			if err != nil {
				return err
			}
			list = append(list, &Validator{
				Stash:      stash,
				Commission: prefs[stash].Commission.Parts(),
				Blocked:    prefs[stash].Blocked,
				Stake:      amount(stake),
			})
		}
		return nil
	})
	if err != nil {
		return err
	}
	return restutil.WriteJSON(w, list)
}

func (st *Stakers) handleGetNominations(w http.ResponseWriter, req *http.Request) error {
	stash, err := restutil.ParseAddress("stash", mux.Vars(req)["stash"])
	if err != nil {
		return err
	}
	var noms *Nominations
	err = st.backend.View(func(s *staking.Staker) error {
		n, err := s.Nominations(stash)
		if err != nil {
			return err
		}
		if n == nil {
			return restutil.NotFound(errors.New("not a nominator"))
		}
		noms = &Nominations{Targets: n.Targets, SubmittedIn: uint32(n.SubmittedIn), Suppressed: n.Suppressed}
		return nil
	})
	if err != nil {
		return err
	}
	return restutil.WriteJSON(w, noms)
}

func parseEra(req *http.Request) (npos.EraIndex, error) {
	era, err := restutil.ParseUint32("era", mux.Vars(req)["era"])
	return npos.EraIndex(era), err
}

func (st *Stakers) handleGetEraValidators(w http.ResponseWriter, req *http.Request) error {
	era, err := parseEra(req)
	if err != nil {
		return err
	}
	var list []*Exposure
	err = st.backend.View(func(s *staking.Staker) error {
		elected, err := s.ElectedValidators(era)
		if err != nil {
			return err
		}
		list = make([]*Exposure, 0, len(elected))
		for _, stash := range elected {
			exp, err := st.exposure(s, era, stash)
			if err != nil {
				return err
			}
			list = append(list, exp)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return restutil.WriteJSON(w, list)
}

func (st *Stakers) exposure(s *staking.Staker, era npos.EraIndex, stash npos.Address) (*Exposure, error) {
	overview, err := s.ExposureOverview(era, stash)
	if err != nil {
		return nil, err
	}
	if overview == nil {
		return nil, restutil.NotFound(errors.New("validator not exposed in era"))
	}
	exp := &Exposure{
		Stash:          stash,
		Total:          amount(overview.Total),
		Own:            amount(overview.Own),
		NominatorCount: overview.NominatorCount,
		PageCount:      overview.PageCount,
		ClaimedPages:   []uint32{},
	}
	prefs, err := s.ErasValidatorPrefs(era, stash)
	if err != nil {
		return nil, err
	}
	if prefs != nil {
		exp.Commission = prefs.Commission.Parts()
	}
	claimed, err := s.ClaimedPages(era, stash)
	if err != nil {
		return nil, err
	}
	for _, p := range claimed {
		exp.ClaimedPages = append(exp.ClaimedPages, uint32(p))
	}
	return exp, nil
}

func (st *Stakers) handleGetExposure(w http.ResponseWriter, req *http.Request) error {
	era, err := parseEra(req)
	if err != nil {
		return err
	}
	stash, err := restutil.ParseAddress("stash", mux.Vars(req)["stash"])
	if err != nil {
		return err
	}
	var exp *Exposure
	err = st.backend.View(func(s *staking.Staker) (err error) {
		exp, err = st.exposure(s, era, stash)
		return err
	})
	if err != nil {
		return err
	}
	return restutil.WriteJSON(w, exp)
}

func (st *Stakers) handleGetExposurePage(w http.ResponseWriter, req *http.Request) error {
	era, err := parseEra(req)
	if err != nil {
		return err
	}
	stash, err := restutil.ParseAddress("stash", mux.Vars(req)["stash"])
	if err != nil {
		return err
	}
	page, err := restutil.ParseUint32("page", mux.Vars(req)["page"])
	if err != nil {
		return err
	}
	var result *ExposurePage
	err = st.backend.View(func(s *staking.Staker) error {
		p, err := s.ExposurePage(era, stash, npos.PageIndex(page))
		if err != nil {
			return err
		}
		if p == nil {
			return restutil.NotFound(errors.New("page not found"))
		}
		result = &ExposurePage{PageTotal: amount(p.PageTotal), Others: individuals(p.Others)}
		return nil
	})
	if err != nil {
		return err
	}
	return restutil.WriteJSON(w, result)
}

func (st *Stakers) handleGetEraRewards(w http.ResponseWriter, req *http.Request) error {
	era, err := parseEra(req)
	if err != nil {
		return err
	}
	var result EraRewards
	err = st.backend.View(func(s *staking.Staker) error {
		payout, err := s.EraPayout(era)
		if err != nil {
			return err
		}
		points, err := s.EraRewardPoints(era)
		if err != nil {
			return err
		}
		result.Payout = amount(payout)
		result.TotalPoints = points.Total
		result.Individual = make([]Points, 0, len(points.Individual))
		for _, p := range points.Individual {
			result.Individual = append(result.Individual, Points{Who: p.Who, Points: p.Points})
		}
		return nil
	})
	if err != nil {
		return err
	}
	return restutil.WriteJSON(w, &result)
}

// handleGetSlashes lists the slashes due at the start of era.
func (st *Stakers) handleGetSlashes(w http.ResponseWriter, req *http.Request) error {
	era, err := parseEra(req)
	if err != nil {
		return err
	}
	var list []*Slash
	err = st.backend.View(func(s *staking.Staker) error {
		slashes, err := s.UnappliedSlashes(era)
		if err != nil {
			return err
		}
		list = make([]*Slash, 0, len(slashes))
		for _, slash := range slashes {
			list = append(list, convertSlash(slash))
		}
		return nil
	})
	if err != nil {
		return err
	}
	return restutil.WriteJSON(w, list)
}

func (st *Stakers) handlePayout(w http.ResponseWriter, req *http.Request) error {
	var body PayoutRequest
	if err := restutil.ParseJSON(req.Body, &body); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	events, err := st.backend.Update(func(s *staking.Staker) error {
		return s.PayoutStakersByPage(body.Caller, body.Stash, npos.EraIndex(body.Era), npos.PageIndex(body.Page))
	})
	if err != nil {
		return restutil.Rejected(err)
	}
	return writeEvents(w, events)
}

func (st *Stakers) handleReportOffences(w http.ResponseWriter, req *http.Request) error {
	var body OffenceReport
	if err := restutil.ParseJSON(req.Body, &body); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	if len(body.Offences) == 0 {
		return restutil.BadRequest(errors.New("no offences"))
	}
	offences := make([]slashing.Offence, 0, len(body.Offences))
	for _, o := range body.Offences {
		offences = append(offences, slashing.Offence{
			Offender:  o.Offender,
			Reporters: o.Reporters,
			Fraction:  npos.PerbillFromParts(o.Fraction),
		})
	}
	var slashes []*slashing.UnappliedSlash
	_, err := st.backend.Update(func(s *staking.Staker) (err error) {
		slashes, err = s.OnOffence(offences, npos.SessionIndex(body.Session))
		return err
	})
	if err != nil {
		if errors.Is(err, eras.ErrEraTooOld) {
			return restutil.BadRequest(err)
		}
		return restutil.Rejected(err)
	}
	list := make([]*Slash, 0, len(slashes))
	for _, slash := range slashes {
		list = append(list, convertSlash(slash))
	}
	return restutil.WriteJSON(w, list)
}

func writeEvents(w http.ResponseWriter, events []*staking.Event) error {
	list := make([]*Event, 0, len(events))
	for _, ev := range events {
		list = append(list, ConvertEvent(ev))
	}
	return restutil.WriteJSON(w, list)
}

func (st *Stakers) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/era").
		Methods(http.MethodGet).
		Name("GET /stakers/era").
		HandlerFunc(restutil.WrapHandlerFunc(st.handleGetEra))
	sub.Path("/ledgers/{stash}").
		Methods(http.MethodGet).
		Name("GET /stakers/ledgers/{stash}").
		HandlerFunc(restutil.WrapHandlerFunc(st.handleGetLedger))
	sub.Path("/validators").
		Methods(http.MethodGet).
		Name("GET /stakers/validators").
		HandlerFunc(restutil.WrapHandlerFunc(st.handleGetValidators))
	sub.Path("/nominations/{stash}").
		Methods(http.MethodGet).
		Name("GET /stakers/nominations/{stash}").
		HandlerFunc(restutil.WrapHandlerFunc(st.handleGetNominations))
	sub.Path("/eras/{era}/validators").
		Methods(http.MethodGet).
		Name("GET /stakers/eras/{era}/validators").
		HandlerFunc(restutil.WrapHandlerFunc(st.handleGetEraValidators))
	sub.Path("/eras/{era}/exposures/{stash}").
		Methods(http.MethodGet).
		Name("GET /stakers/eras/{era}/exposures/{stash}").
		HandlerFunc(restutil.WrapHandlerFunc(st.handleGetExposure))
	sub.Path("/eras/{era}/exposures/{stash}/pages/{page}").
		Methods(http.MethodGet).
		Name("GET /stakers/eras/{era}/exposures/{stash}/pages/{page}").
		HandlerFunc(restutil.WrapHandlerFunc(st.handleGetExposurePage))
	sub.Path("/eras/{era}/rewards").
		Methods(http.MethodGet).
		Name("GET /stakers/eras/{era}/rewards").
		HandlerFunc(restutil.WrapHandlerFunc(st.handleGetEraRewards))
	sub.Path("/eras/{era}/slashes").
		Methods(http.MethodGet).
		Name("GET /stakers/eras/{era}/slashes").
		HandlerFunc(restutil.WrapHandlerFunc(st.handleGetSlashes))
	sub.Path("/payouts").
		Methods(http.MethodPost).
		Name("POST /stakers/payouts").
		HandlerFunc(restutil.WrapHandlerFunc(st.handlePayout))
	sub.Path("/offences").
		Methods(http.MethodPost).
		Name("POST /stakers/offences").
		HandlerFunc(restutil.WrapHandlerFunc(st.handleReportOffences))
}
