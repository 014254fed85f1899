// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T) map[string]*dto.MetricFamily {
	srv := httptest.NewServer(HTTPHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(resp.Body)
	require.NoError(t, err)
	return families
}

func TestNoopByDefault(t *testing.T) {
	metrics = defaultNoopMetrics()

	for _, m := range []any{
		Gauge("g"),
		GaugeVec("gv", nil),
		Counter("c"),
		CounterVec("cv", nil),
		Histogram("h", nil),
		HistogramVec("hv", nil, nil),
	} {
		require.IsType(t, &noopMeters{}, m)
	}
	require.Nil(t, HTTPHandler())
}

func TestPrometheus(t *testing.T) {
	metrics = defaultNoopMetrics()
	lazy := LazyLoadCounter("lazy_count")
	InitializePrometheusMetrics()
	t.Cleanup(func() { metrics = defaultNoopMetrics() })

	require.IsType(t, &promCountMeter{}, lazy())

	lazy().Add(2)
	Counter("lazy_count").Add(1)
	CounterVec("slashes", []string{"kind"}).AddWithLabel(3, map[string]string{"kind": "own"})
	Gauge("active_era").Set(7)
	GaugeVec("stake", []string{"role"}).SetWithLabel(5, map[string]string{"role": "validator"})
	GaugeVec("stake", []string{"role"}).AddWithLabel(1, map[string]string{"role": "validator"})
	Histogram("backers", BucketBackers).Observe(3)
	HistogramVec("payout_ms", []string{"page"}, BucketHTTPReqs).ObserveWithLabels(12, map[string]string{"page": "0"})

	families := scrape(t)
	require.Equal(t, float64(3), families["npos_staking_lazy_count"].Metric[0].GetCounter().GetValue())
	require.Equal(t, float64(3), families["npos_staking_slashes"].Metric[0].GetCounter().GetValue())
	require.Equal(t, float64(7), families["npos_staking_active_era"].Metric[0].GetGauge().GetValue())
	require.Equal(t, float64(6), families["npos_staking_stake"].Metric[0].GetGauge().GetValue())
	require.Equal(t, uint64(1), families["npos_staking_backers"].Metric[0].GetHistogram().GetSampleCount())
	require.Equal(t, float64(12), families["npos_staking_payout_ms"].Metric[0].GetHistogram().GetSampleSum())
	require.Contains(t, families, "go_goroutines")
}
