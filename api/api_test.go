// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/npos/health"
	"github.com/vechain/npos/metrics"
	"github.com/vechain/npos/test/testnode"
)

func init() {
	metrics.InitializePrometheusMetrics()
}

func httpGet(t *testing.T, url string) ([]byte, int) {
	res, err := http.Get(url)
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return body, res.StatusCode
}

func TestRouteLabel(t *testing.T) {
	assert.Equal(t, "stakers_eras_era_rewards", routeLabel("GET /stakers/eras/{era}/rewards"))
	assert.Equal(t, "events", routeLabel("POST /events"))
	assert.Equal(t, "plain", routeLabel("plain"))
}

func TestMetricsMiddleware(t *testing.T) {
	tn, err := testnode.NewDefaultNode()
	require.NoError(t, err)
	defer tn.Close()

	ts := httptest.NewServer(New(tn, tn.Events, Options{EnableMetrics: true, EventsLimit: 10, AllowedOrigins: "*"}))
	defer ts.Close()

	_, code := httpGet(t, ts.URL+"/stakers/era")
	assert.Equal(t, http.StatusOK, code)
	_, code = httpGet(t, ts.URL+"/stakers/ledgers/0x")
	assert.Equal(t, http.StatusBadRequest, code)
	_, code = httpGet(t, ts.URL+"/unknown")
	assert.Equal(t, http.StatusNotFound, code)

	promSrv := httptest.NewServer(metrics.HTTPHandler())
	defer promSrv.Close()
	body, _ := httpGet(t, promSrv.URL)

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(bytes.NewReader(body))
	require.NoError(t, err)

	m := families["npos_staking_api_request_count"].GetMetric()
	require.Len(t, m, 2, "unnamed routes are not counted")

	byCode := make(map[string]string)
	for _, metric := range m {
		labels := metric.GetLabel()
		require.Len(t, labels, 3)
		assert.Equal(t, "code", labels[0].GetName())
		assert.Equal(t, "method", labels[1].GetName())
		assert.Equal(t, "GET", labels[1].GetValue())
		assert.Equal(t, "name", labels[2].GetName())
		assert.Equal(t, float64(1), metric.GetCounter().GetValue())
		byCode[labels[0].GetValue()] = labels[2].GetValue()
	}
	assert.Equal(t, "stakers_era", byCode["200"])
	assert.Equal(t, "stakers_ledgers_stash", byCode["400"])
}

func TestEventsNotMounted(t *testing.T) {
	tn, err := testnode.NewDefaultNode()
	require.NoError(t, err)
	defer tn.Close()

	ts := httptest.NewServer(New(tn, nil, Options{}))
	defer ts.Close()

	_, code := httpGet(t, ts.URL+"/events/last")
	assert.Equal(t, http.StatusNotFound, code)
}

type recordLogger struct {
	msgs []string
	ctx  [][]any
}

func (l *recordLogger) record(msg string, ctx []any) {
	l.msgs = append(l.msgs, msg)
	l.ctx = append(l.ctx, ctx)
}

func (l *recordLogger) Trace(msg string, ctx ...any) { l.record(msg, ctx) }
func (l *recordLogger) Debug(msg string, ctx ...any) { l.record(msg, ctx) }
func (l *recordLogger) Info(msg string, ctx ...any)  { l.record(msg, ctx) }
func (l *recordLogger) Warn(msg string, ctx ...any)  { l.record(msg, ctx) }
func (l *recordLogger) Error(msg string, ctx ...any) { l.record(msg, ctx) }

func TestRequestLogger(t *testing.T) {
	logger := &recordLogger{}

	handler := RequestLoggerHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, `{"era":1}`, string(body))
		w.WriteHeader(http.StatusTeapot)
	}), logger)

	req := httptest.NewRequest(http.MethodPost, "/stakers/payouts", strings.NewReader(`{"era":1}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	require.Equal(t, []string{"API request"}, logger.msgs)
	ctx := logger.ctx[0]
	assert.Contains(t, ctx, "/stakers/payouts")
	assert.Contains(t, ctx, `{"era":1}`)
	assert.Contains(t, ctx, http.StatusTeapot)

	logger.msgs, logger.ctx = nil, nil
	failing := RequestLoggerHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}), logger)
	failing.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/stakers/eras/active", nil))
	require.Equal(t, []string{"API request failed"}, logger.msgs)
	assert.NotContains(t, logger.ctx[0], "body")
}

func TestHealthMounted(t *testing.T) {
	tn, err := testnode.NewDefaultNode()
	require.NoError(t, err)
	defer tn.Close()

	h := health.New(time.Minute)
	ts := httptest.NewServer(New(tn, nil, Options{Health: h}))
	defer ts.Close()

	_, code := httpGet(t, ts.URL+"/health")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	h.NewBlock(1)
	_, code = httpGet(t, ts.URL+"/health")
	assert.Equal(t, http.StatusOK, code)
}
