// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package restutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/npos/staking/reverts"
)

func TestWrapHandlerFunc(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"ok", nil, http.StatusOK},
		{"bad request", BadRequest(errors.New("bad")), http.StatusBadRequest},
		{"wrapped not found", errors.Wrap(NotFound(errors.New("none")), "lookup"), http.StatusNotFound},
		{"revert", Rejected(errors.Wrap(reverts.ErrNotStash, "payout")), http.StatusBadRequest},
		{"internal", Rejected(errors.New("disk")), http.StatusInternalServerError},
		{"no cause", HTTPError(nil, http.StatusTeapot), http.StatusTeapot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WrapHandlerFunc(func(http.ResponseWriter, *http.Request) error { return tt.err })(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestParseJSON(t *testing.T) {
	var v struct {
		Era uint32 `json:"era"`
	}
	require.NoError(t, ParseJSON(strings.NewReader(`{"era":3}`), &v))
	assert.Equal(t, uint32(3), v.Era)
	assert.Error(t, ParseJSON(strings.NewReader(`{"era":3,"page":1}`), &v))
}

func TestParsers(t *testing.T) {
	_, err := ParseAddress("stash", "0x01")
	assert.Error(t, err)
	addr, err := ParseAddress("stash", "0x000000000000000000000000000000000000000b")
	require.NoError(t, err)
	assert.Equal(t, byte(11), addr[19])

	n, err := ParseUint32("era", "42")
	require.NoError(t, err)
	assert.Equal(t, uint32(42), n)
	_, err = ParseUint32("era", "-1")
	assert.Error(t, err)
}
