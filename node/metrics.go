// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package node

import "github.com/vechain/npos/metrics"

var (
	metricBlocks        = metrics.LazyLoadCounter("node_blocks_count")
	metricFailedBlocks  = metrics.LazyLoadCounter("node_failed_blocks_count")
	metricSessionEvents = metrics.LazyLoadHistogram("node_session_events", metrics.BucketBackers)
)
