// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package eventdb

import (
	"strings"

	"github.com/vechain/npos/metrics"
)

var (
	metricInserted         = metrics.LazyLoadCounter("eventdb_inserted_count")
	metricQueryParameters  = metrics.LazyLoadCounterVec("eventdb_query_parameters", []string{"parameters"})
	metricQueryOrder       = metrics.LazyLoadCounterVec("eventdb_query_order", []string{"order"})
	metricQueryLimitBucket = metrics.LazyLoadHistogram("eventdb_query_limit_bucket", []int64{0, 5, 10, 25, 50, 100, 250, 500, 1000})

	metricStatements         = metrics.LazyLoadCounterVec("eventdb_statements_count", []string{"result"})
	metricPreparedStatements = metrics.LazyLoadGauge("eventdb_prepared_statements")
)

func metricsHandleFilter(filter *Filter) {
	params := make([]string, 0, 3)
	if len(filter.Kinds) > 0 {
		params = append(params, "kind")
	}
	if filter.Stash != nil {
		params = append(params, "stash")
	}
	if filter.Range != nil {
		params = append(params, string(filter.Range.Unit))
	}
	metricQueryParameters().AddWithLabel(1, map[string]string{"parameters": strings.Join(params, ",")})

	if filter.Order == DESC {
		metricQueryOrder().AddWithLabel(1, map[string]string{"order": "desc"})
	} else {
		metricQueryOrder().AddWithLabel(1, map[string]string{"order": "asc"})
	}
	if filter.Options != nil {
		metricQueryLimitBucket().Observe(int64(min(filter.Options.Limit, 1001)))
	}
}
