// Package discovery implements the pool-discovery scheduler (§4.4): on
// each tick it fans out to every supported chain's pool fetcher, upserts
// the pool cache, appends APY samples, deactivates pools no longer
// observed, and emits PoolAnnouncement / ProtocolLaunchOnChain events.
// Grounded on the pack's meme-perp-dex lending keeper's ticker-driven
// scan loop.
package discovery

import (
	"context"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lendwatch/monitor/internal/config"
	"github.com/lendwatch/monitor/internal/events"
	"github.com/lendwatch/monitor/internal/obs/metrics"
	"github.com/lendwatch/monitor/internal/poolfetch"
	"github.com/lendwatch/monitor/internal/store"
)

// Router is the subset of notify.Router the scheduler depends on.
type Router interface {
	HandlePoolAnnouncement(ctx context.Context, ev events.PoolAnnouncement) error
	HandleProtocolLaunch(ctx context.Context, ev events.ProtocolLaunchOnChain) error
}

// Scheduler owns the pool-discovery tick.
type Scheduler struct {
	table    *poolfetch.Table
	store    store.Store
	router   Router
	log      *zap.Logger
	chains   []config.ChainID
	perChain time.Duration
}

// New builds a discovery Scheduler.
func New(table *poolfetch.Table, st store.Store, router Router, chains []config.ChainID, log *zap.Logger) *Scheduler {
	return &Scheduler{
		table:    table,
		store:    st,
		router:   router,
		log:      log,
		chains:   chains,
		perChain: 5 * time.Minute,
	}
}

// Run blocks, ticking at interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

type chainResult struct {
	chain config.ChainID
	pools []poolfetch.Pool
	err   error
}

// Tick executes steps 1-6 of §4.4 once.
func (s *Scheduler) Tick(ctx context.Context) {
	start := time.Now()
	defer func() {
		metrics.TickDuration.WithLabelValues("discovery").Observe(time.Since(start).Seconds())
	}()

	results := s.fetchAllChains(ctx)

	for _, res := range results {
		if res.err != nil {
			s.log.Warn("chain fetch failed, skipping this tick", zap.Uint64("chain", uint64(res.chain)), zap.Error(res.err))
			metrics.ChainFetchFailures.WithLabelValues(chainLabel(res.chain), "fetch").Inc()
			continue
		}
		for _, pool := range res.pools {
			key := store.PoolKey{Address: pool.Address.Hex(), Chain: uint64(pool.Chain)}
			s.processPool(ctx, key, pool)
		}
	}

	observed, anyNonEmpty := aggregateObserved(results)
	if anyNonEmpty {
		observedByKey := make(map[store.PoolKey]struct{}, observed.Cardinality())
		for _, key := range observed.ToSlice() {
			observedByKey[key] = struct{}{}
		}
		if err := s.store.MarkPoolsInactive(ctx, observedByKey); err != nil {
			s.log.Warn("mark pools inactive failed", zap.Error(err))
		}
	}

	metrics.DiscoveryTicks.WithLabelValues("ok").Inc()
}

// aggregateObserved collects every pool key observed across a tick's
// per-chain results and reports whether any chain returned a non-empty
// batch. A chain that errored contributes nothing either way, so a tick
// where every chain failed reports anyNonEmpty=false and must never
// reach MarkPoolsInactive (§4.4 edge case: a full RPC outage must not
// mass-deactivate the pool cache).
func aggregateObserved(results []chainResult) (mapset.Set[store.PoolKey], bool) {
	observed := mapset.NewThreadUnsafeSet[store.PoolKey]()
	anyNonEmpty := false
	for _, res := range results {
		if res.err != nil {
			continue
		}
		if len(res.pools) > 0 {
			anyNonEmpty = true
		}
		for _, pool := range res.pools {
			observed.Add(store.PoolKey{Address: pool.Address.Hex(), Chain: uint64(pool.Chain)})
		}
	}
	return observed, anyNonEmpty
}

func (s *Scheduler) fetchAllChains(ctx context.Context) []chainResult {
	results := make([]chainResult, len(s.chains))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(s.chains))

	for i, chain := range s.chains {
		i, chain := i, chain
		g.Go(func() error {
			chainCtx, cancel := context.WithTimeout(gctx, s.perChain)
			defer cancel()
			pools, err := s.table.FetchChain(chainCtx, chain)
			results[i] = chainResult{chain: chain, pools: pools, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s *Scheduler) processPool(ctx context.Context, key store.PoolKey, pool poolfetch.Pool) {
	entry := store.PoolCacheEntry{
		Key:               key,
		Name:              pool.Name,
		Symbol:            pool.Symbol,
		UnderlyingSymbol:  pool.UnderlyingSymbol,
		UnderlyingAddress: pool.UnderlyingAddress.Hex(),
		Decimals:          pool.Decimals,
		TVL:               pool.TVL.String(),
		APY:               pool.APY,
		Borrowed:          pool.Borrowed.String(),
		Utilization:       pool.Utilization,
		Collaterals:       pool.Collaterals,
	}

	result, err := s.store.UpsertPool(ctx, entry)
	if err != nil {
		s.log.Warn("upsert pool failed", zap.String("pool", key.Address), zap.Error(err))
		return
	}

	if err := s.store.InsertAPYSample(ctx, store.APYSample{
		Key:        key,
		SupplyAPY:  pool.APY,
		TVL:        entry.TVL,
		RecordedAt: time.Now(),
	}); err != nil {
		s.log.Warn("insert apy sample failed", zap.Error(err))
	}

	if result.Outcome != store.OutcomeNew && result.Outcome != store.OutcomeReactivated {
		return
	}

	if err := s.router.HandlePoolAnnouncement(ctx, events.PoolAnnouncement{Pool: entry}); err != nil {
		s.log.Warn("handle pool announcement failed", zap.Error(err))
	}

	if key.Chain == uint64(config.ChainMonad) {
		s.maybeEmitProtocolLaunch(ctx, key.Chain)
	}
}

// maybeEmitProtocolLaunch implements §4.4 step 6: the first time ever an
// active pool on chain 143 is observed, emit a ProtocolLaunchOnChain event
// in addition to the ordinary announcement.
func (s *Scheduler) maybeEmitProtocolLaunch(ctx context.Context, chain uint64) {
	seen, err := s.store.HasAnyPoolAnnouncementForChain(ctx, chain)
	if err != nil {
		s.log.Warn("check prior pool announcement failed", zap.Error(err))
		return
	}
	if seen {
		return
	}
	ev, err := events.NewProtocolLaunchOnChain(chain)
	if err != nil {
		s.log.Warn("build protocol launch event failed", zap.Error(err))
		return
	}
	if err := s.router.HandleProtocolLaunch(ctx, ev); err != nil {
		s.log.Warn("handle protocol launch failed", zap.Error(err))
	}
}

func chainLabel(c config.ChainID) string {
	switch c {
	case config.ChainEthereum:
		return "ethereum"
	case config.ChainArbitrum:
		return "arbitrum"
	case config.ChainOptimism:
		return "optimism"
	case config.ChainSonic:
		return "sonic"
	case config.ChainPlasma:
		return "plasma"
	case config.ChainMonad:
		return "monad"
	default:
		return "unknown"
	}
}
