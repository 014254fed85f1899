// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package events

import (
	"context"
	"fmt"
	"math"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/vechain/npos/api/restutil"
	"github.com/vechain/npos/eventdb"
)

type Events struct {
	db    *eventdb.EventDB
	limit uint64
}

func New(db *eventdb.EventDB, limit uint64) *Events {
	return &Events{
		db,
		limit,
	}
}

func (e *Events) filter(ctx context.Context, ef *EventFilter) ([]*FilteredEvent, error) {
	filter, err := ConvertEventFilter(ef)
	if err != nil {
		return nil, restutil.BadRequest(err)
	}
	records, err := e.db.Filter(ctx, filter)
	if err != nil {
		return nil, err
	}
	fes := make([]*FilteredEvent, len(records))
	for i, rec := range records {
		fes[i] = ConvertEvent(rec)
	}
	return fes, nil
}

func (e *Events) handleFilter(w http.ResponseWriter, req *http.Request) error {
	var filter EventFilter
	if err := restutil.ParseJSON(req.Body, &filter); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	if filter.Options != nil && filter.Options.Limit > e.limit {
		return restutil.Forbidden(fmt.Errorf("options.limit exceeds the maximum allowed value of %d", e.limit))
	}
	if filter.Options != nil && filter.Options.Offset > math.MaxInt64 {
		return restutil.BadRequest(fmt.Errorf("options.offset exceeds the maximum allowed value of %d", int64(math.MaxInt64)))
	}
	if filter.Options == nil {
		// one over the limit tells whether more events match
		filter.Options = &Options{Limit: e.limit + 1}
	}

	fes, err := e.filter(req.Context(), &filter)
	if err != nil {
		return err
	}
	if len(fes) > int(e.limit) {
		return restutil.Forbidden(fmt.Errorf("the number of filtered events exceeds the maximum allowed value of %d, please use pagination", e.limit))
	}
	return restutil.WriteJSON(w, fes)
}

func (e *Events) handleLastSession(w http.ResponseWriter, req *http.Request) error {
	last, ok, err := e.db.LastSession(req.Context())
	if err != nil {
		return err
	}
	if !ok {
		return restutil.NotFound(errors.New("no events stored"))
	}
	return restutil.WriteJSON(w, restutil.M{"session": uint32(last)})
}

func (e *Events) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").
		Methods(http.MethodPost).
		Name("POST /events").
		HandlerFunc(restutil.WrapHandlerFunc(e.handleFilter))
	sub.Path("/last").
		Methods(http.MethodGet).
		Name("GET /events/last").
		HandlerFunc(restutil.WrapHandlerFunc(e.handleLastSession))
}
