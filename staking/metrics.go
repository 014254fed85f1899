// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staking

import (
	"math"
	"math/big"

	"github.com/vechain/npos/metrics"
)

var (
	metricCalls          = metrics.LazyLoadCounterVec("calls_count", []string{"call", "status"})
	metricEvents         = metrics.LazyLoadCounterVec("events_count", []string{"kind"})
	metricActiveEra      = metrics.LazyLoadGauge("active_era")
	metricSession        = metrics.LazyLoadGauge("session")
	metricStake          = metrics.LazyLoadGaugeVec("era_stake", []string{"kind"})
	metricSlashed        = metrics.LazyLoadCounter("slashed_total")
	metricRewarded       = metrics.LazyLoadCounter("rewarded_total")
	metricElectionFaults = metrics.LazyLoadCounter("election_faults_count")
	metricBackers        = metrics.LazyLoadHistogram("exposure_backers", metrics.BucketBackers)
)

// meterValue clamps an amount to what a meter can hold.
func meterValue(v *big.Int) int64 {
	if v == nil || v.Sign() <= 0 {
		return 0
	}
	if !v.IsInt64() {
		return math.MaxInt64
	}
	return v.Int64()
}
