// Package engine wires together the chain-access layer, store, schedulers,
// and notification router into the long-running monitor process (§5,
// §9's "Engine owns the store handle and client cache explicitly").
package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lendwatch/monitor/internal/chain"
	"github.com/lendwatch/monitor/internal/config"
	"github.com/lendwatch/monitor/internal/discovery"
	"github.com/lendwatch/monitor/internal/notify"
	"github.com/lendwatch/monitor/internal/poolfetch"
	"github.com/lendwatch/monitor/internal/position"
	"github.com/lendwatch/monitor/internal/retention"
	"github.com/lendwatch/monitor/internal/store"
)

// Engine owns the process's long-lived resources and runs the schedulers
// until the supplied context is cancelled.
type Engine struct {
	cfg     *config.Config
	log     *zap.Logger
	store   store.Store
	clients *chain.Clients

	discoveryScheduler *discovery.Scheduler
	positionScheduler  *position.Scheduler
	retentionJob       *retention.Job
}

// New constructs every component and binds them together; it does not
// start any background work.
func New(cfg *config.Config, st store.Store, log *zap.Logger, gateway notify.ChatGateway) (*Engine, error) {
	clients, err := chain.New(cfg.RPCEndpoints, log)
	if err != nil {
		return nil, err
	}

	router := notify.New(st, gateway, cfg, log)

	table := poolfetch.NewTable(clients, log)
	for chainID, pools := range poolfetch.DefaultDirectPools() {
		table.RegisterDirect(chainID, pools)
	}

	discoveryScheduler := discovery.New(table, st, router, config.SupportedChains, log)

	positionScheduler, err := position.New(clients, st, router, cfg, log)
	if err != nil {
		return nil, err
	}

	retentionJob, err := retention.New(st, cfg.RetentionCron, cfg.RetentionAfter, log)
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:                cfg,
		log:                log,
		store:              st,
		clients:            clients,
		discoveryScheduler: discoveryScheduler,
		positionScheduler:  positionScheduler,
		retentionJob:       retentionJob,
	}, nil
}

// Run starts the two tickers and the retention cron, blocking until ctx
// is cancelled, then drains for up to 30s before returning (§5 shutdown).
func (e *Engine) Run(ctx context.Context) {
	e.retentionJob.Start()

	done := make(chan struct{}, 2)
	go func() {
		e.discoveryScheduler.Run(ctx, e.cfg.DiscoveryInterval)
		done <- struct{}{}
	}()
	go func() {
		e.positionScheduler.Run(ctx, e.cfg.PositionInterval)
		done <- struct{}{}
	}()

	<-ctx.Done()
	e.log.Info("shutting down, draining in-flight ticks")

	drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-drainCtx.Done():
			e.log.Warn("shutdown drain timed out")
		}
	}

	e.retentionJob.Stop(drainCtx)
	e.clients.Close()
	e.store.Close()
}
