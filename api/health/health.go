// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package health

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vechain/npos/api/restutil"
	"github.com/vechain/npos/health"
)

type API struct {
	health *health.Health
}

func New(h *health.Health) *API {
	return &API{health: h}
}

func (h *API) handleGetHealth(w http.ResponseWriter, _ *http.Request) error {
	status := h.health.Status()

	w.Header().Set("Content-Type", restutil.JSONContentType)
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	return json.NewEncoder(w).Encode(status)
}

func (h *API) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").
		Methods(http.MethodGet).
		Name("GET /health").
		HandlerFunc(restutil.WrapHandlerFunc(h.handleGetHealth))
}
