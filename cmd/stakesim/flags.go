// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	cli "gopkg.in/urfave/cli.v1"
)

var (
	scenarioFlag = cli.StringFlag{
		Name:  "scenario",
		Usage: "path to a scenario yaml file, the built-in scenario is used if empty",
	}
	dataDirFlag = cli.StringFlag{
		Name:  "data-dir",
		Usage: "directory for the state and event databases, kept in memory if empty",
	}
	apiAddrFlag = cli.StringFlag{
		Name:  "api-addr",
		Value: "localhost:8669",
		Usage: "API service listening address",
	}
	apiCorsFlag = cli.StringFlag{
		Name:  "api-cors",
		Value: "",
		Usage: "comma separated list of domains from which to accept cross origin requests to API",
	}
	apiTimeoutFlag = cli.Uint64Flag{
		Name:  "api-timeout",
		Value: 10000,
		Usage: "API request timeout value in milliseconds",
	}
	apiEventsLimitFlag = cli.Uint64Flag{
		Name:  "api-events-limit",
		Value: 1000,
		Usage: "limit the number of events returned by /events API",
	}
	enableAPILogsFlag = cli.BoolFlag{
		Name:  "enable-api-logs",
		Usage: "enables API requests logging",
	}
	enableMetricsFlag = cli.BoolFlag{
		Name:  "enable-metrics",
		Usage: "enables metrics collection",
	}
	metricsAddrFlag = cli.StringFlag{
		Name:  "metrics-addr",
		Value: "localhost:2112",
		Usage: "metrics service listening address",
	}
	pprofFlag = cli.BoolFlag{
		Name:  "pprof",
		Usage: "turn on go-pprof",
	}
	blockIntervalFlag = cli.DurationFlag{
		Name:  "block-interval",
		Value: defaultBlockInterval,
		Usage: "wall time between produced blocks",
	}
	blockTimeFlag = cli.Uint64Flag{
		Name:  "block-time",
		Value: 6000,
		Usage: "simulated milliseconds a block advances the clock",
	}
	sessionPeriodFlag = cli.UintFlag{
		Name:  "session-period",
		Value: 10,
		Usage: "blocks per session",
	}
	pointsPerBlockFlag = cli.Uint64Flag{
		Name:  "points-per-block",
		Value: 20,
		Usage: "reward points credited to every block author",
	}
	blocksFlag = cli.UintFlag{
		Name:  "blocks",
		Usage: "stop after producing this many blocks, 0 runs until interrupted",
	}
	treasuryFlag = cli.StringFlag{
		Name:  "treasury",
		Usage: "account receiving the era payout remainder, burned if empty",
	}
	verbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Value: 3,
		Usage: "log verbosity (0-5)",
	}
	jsonLogsFlag = cli.BoolFlag{
		Name:  "json-logs",
		Usage: "output logs in JSON format",
	}
)
