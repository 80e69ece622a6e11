// monitor is the 24/7 multi-chain DeFi lending-pool monitor process.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/lendwatch/monitor/internal/config"
	"github.com/lendwatch/monitor/internal/engine"
	"github.com/lendwatch/monitor/internal/notify"
	"github.com/lendwatch/monitor/internal/obs/log"
	"github.com/lendwatch/monitor/internal/obs/metrics"
	"github.com/lendwatch/monitor/internal/store"
)

const clientIdentifier = "monitor"

var app = &cli.App{
	Name:    clientIdentifier,
	Usage:   "multi-chain DeFi lending-pool monitor",
	Version: "1.0.0",
}

func init() {
	fs := pflag.NewFlagSet(clientIdentifier, pflag.ContinueOnError)
	config.RegisterFlags(fs)

	app.Action = runMonitor
	app.Commands = []*cli.Command{
		{
			Name:  "config",
			Usage: "print the effective configuration and exit",
			Action: func(c *cli.Context) error {
				cfg, err := config.Load(fs)
				if err != nil {
					return exitFor(err)
				}
				fmt.Print(cfg.Dump())
				return nil
			},
		},
		{
			Name:  "migrate",
			Usage: "apply the store schema and exit",
			Action: func(c *cli.Context) error {
				cfg, err := config.Load(fs)
				if err != nil {
					return exitFor(err)
				}
				logger := log.New(cfg.LogLevel)
				defer logger.Sync()

				ctx := context.Background()
				pg, err := store.Open(ctx, cfg.StoreDSN, logger)
				if err != nil {
					return exitFor(err)
				}
				pg.Close()
				fmt.Println("schema applied")
				return nil
			},
		},
	}
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runMonitor(c *cli.Context) error {
	fs := pflag.NewFlagSet(clientIdentifier, pflag.ContinueOnError)
	config.RegisterFlags(fs)

	cfg, err := config.Load(fs)
	if err != nil {
		return exitFor(err)
	}

	logger := log.New(cfg.LogLevel)
	defer logger.Sync()
	logger.Info("starting monitor", zap.String("config", cfg.Dump()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := store.Open(ctx, cfg.StoreDSN, logger)
	if err != nil {
		return exitFor(err)
	}

	gateway := notify.NewLoggingGateway(logger)

	eng, err := engine.New(cfg, pg, logger, gateway)
	if err != nil {
		return exitFor(err)
	}

	go serveMetrics(cfg.MetricsAddr, logger)

	eng.Run(ctx)
	return nil
}

func exitFor(err error) error {
	return cli.Exit(err.Error(), 1)
}

func serveMetrics(addr string, logger *zap.Logger) {
	mux := metrics.NewServeMux()
	if err := metrics.ListenAndServe(addr, mux); err != nil {
		logger.Warn("metrics server stopped", zap.Error(err))
	}
}
