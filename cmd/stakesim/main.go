// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Command stakesim runs a staking engine over a simulated block clock and serves it over http.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/vechain/npos/api"
	"github.com/vechain/npos/log"
	"github.com/vechain/npos/metrics"
	"github.com/vechain/npos/node"
	"github.com/vechain/npos/npos"
	"github.com/vechain/npos/session"
	"github.com/vechain/npos/staking"
)

const defaultBlockInterval = time.Second

var (
	version   string
	gitCommit string

	logger = log.WithContext("pkg", "stakesim")
)

func fullVersion() string {
	if gitCommit == "" {
		return version + "-dev"
	}
	return fmt.Sprintf("%s-%s", version, gitCommit)
}

func main() {
	app := cli.App{
		Version: fullVersion(),
		Name:    "stakesim",
		Usage:   "Nominated proof of stake simulator",
		Flags: []cli.Flag{
			scenarioFlag,
			dataDirFlag,
			apiAddrFlag,
			apiCorsFlag,
			apiTimeoutFlag,
			apiEventsLimitFlag,
			enableAPILogsFlag,
			enableMetricsFlag,
			metricsAddrFlag,
			pprofFlag,
			blockIntervalFlag,
			blockTimeFlag,
			sessionPeriodFlag,
			pointsPerBlockFlag,
			blocksFlag,
			treasuryFlag,
			verbosityFlag,
			jsonLogsFlag,
		},
		Action: defaultAction,
		Commands: []cli.Command{
			{
				Name:   "check",
				Usage:  "load a scenario and print its staking config",
				Flags:  []cli.Flag{scenarioFlag},
				Action: checkAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initLogger(ctx *cli.Context) {
	log.Init(os.Stderr, log.Options{
		Verbosity: ctx.Int(verbosityFlag.Name),
		JSON:      ctx.Bool(jsonLogsFlag.Name),
	})
}

func parseSimOptions(ctx *cli.Context) (simOptions, error) {
	opts := simOptions{
		DataDir:   ctx.String(dataDirFlag.Name),
		BlockTime: ctx.Uint64(blockTimeFlag.Name),
		Node: node.Options{
			BlockInterval:  ctx.Duration(blockIntervalFlag.Name),
			Schedule:       session.Periodic{Period: uint32(ctx.Uint(sessionPeriodFlag.Name))},
			PointsPerBlock: ctx.Uint64(pointsPerBlockFlag.Name),
		},
	}
	if opts.Node.BlockInterval <= 0 {
		return opts, errors.New("block interval must be positive")
	}
	if treasury := ctx.String(treasuryFlag.Name); treasury != "" {
		addr, err := npos.ParseAddress(treasury)
		if err != nil {
			return opts, errors.Wrap(err, "treasury")
		}
		opts.Treasury = *addr
	}
	return opts, nil
}

func checkAction(ctx *cli.Context) error {
	sc, err := loadScenario(ctx.String(scenarioFlag.Name))
	if err != nil {
		return err
	}
	fmt.Printf("%+v\n", sc.Config)
	fmt.Printf("stakers: %d, balances: %d, steps: %d\n", len(sc.Genesis.Stakers), len(sc.Balances), len(sc.Steps))
	return nil
}

func defaultAction(ctx *cli.Context) error {
	defer func() { logger.Info("exited") }()

	initLogger(ctx)
	if ctx.Bool(enableMetricsFlag.Name) {
		metrics.InitializePrometheusMetrics()
	}

	sc, err := loadScenario(ctx.String(scenarioFlag.Name))
	if err != nil {
		return err
	}
	opts, err := parseSimOptions(ctx)
	if err != nil {
		return err
	}
	sim, err := openSimulation(opts, sc)
	if err != nil {
		return err
	}
	defer sim.Close()

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx, cancel := context.WithCancel(runCtx)
	defer cancel()

	if limit := uint32(ctx.Uint(blocksFlag.Name)); limit > 0 {
		sim.OnBlock(func(block uint32, _ *staking.Staker) error {
			if block >= limit {
				cancel()
			}
			return nil
		})
	}

	apiSrv, err := startAPIServer(ctx.String(apiAddrFlag.Name), api.New(sim, sim.events, api.Options{
		AllowedOrigins:  ctx.String(apiCorsFlag.Name),
		EventsLimit:     ctx.Uint64(apiEventsLimitFlag.Name),
		PprofOn:         ctx.Bool(pprofFlag.Name),
		EnableReqLogger: ctx.Bool(enableAPILogsFlag.Name),
		EnableMetrics:   ctx.Bool(enableMetricsFlag.Name),
		Health:          sim.health,
	}), time.Duration(ctx.Uint64(apiTimeoutFlag.Name))*time.Millisecond)
	if err != nil {
		return err
	}

	group, gctx := errgroup.WithContext(runCtx)
	group.Go(func() error { return sim.Run(gctx) })
	group.Go(func() error { return apiSrv.Serve(gctx) })
	logger.Info("API server started", "url", apiSrv.URL()+"/stakers")

	if ctx.Bool(enableMetricsFlag.Name) {
		metricsSrv, err := startMetricsServer(ctx.String(metricsAddrFlag.Name))
		if err != nil {
			cancel()
			group.Wait()
			return err
		}
		group.Go(func() error { return metricsSrv.Serve(gctx) })
		logger.Info("metrics server started", "url", metricsSrv.URL()+"/metrics")
	}

	err = group.Wait()
	logger.Info("simulation stopped", "block", sim.Block())
	return err
}
