// Package position implements the position scheduler (§4.5): on each
// tick it reads every user's share balance against every active pool,
// upserts position rows, closes positions no longer observed, and emits
// APYChange / PositionClosed / DepositObserved events.
package position

import (
	"context"
	"math/big"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lendwatch/monitor/internal/chain"
	"github.com/lendwatch/monitor/internal/config"
	"github.com/lendwatch/monitor/internal/events"
	"github.com/lendwatch/monitor/internal/obs/metrics"
	"github.com/lendwatch/monitor/internal/store"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// Router is the subset of notify.Router the scheduler depends on.
type Router interface {
	HandleAPYChange(ctx context.Context, ev events.APYChange) error
	HandlePositionClosed(ctx context.Context, ev events.PositionClosed) error
	HandleDepositObserved(ctx context.Context, ev events.DepositObserved) error
}

// sampleKey dedups APY samples within a tick by (pool, chain, minute
// bucket), per §4.5 step 7.
type sampleKey struct {
	address string
	chain   uint64
	minute  int64
}

// Scheduler owns the position tick.
type Scheduler struct {
	clients *chain.Clients
	store   store.Store
	router  Router
	log     *zap.Logger

	dustThreshold  *big.Float
	minorThreshold float64
	majorThreshold float64
	sampleDedup    *lru.Cache
}

// New builds a position Scheduler.
func New(clients *chain.Clients, st store.Store, router Router, cfg *config.Config, log *zap.Logger) (*Scheduler, error) {
	dedup, err := lru.New(4096)
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		clients:        clients,
		store:          st,
		router:         router,
		log:            log,
		dustThreshold:  big.NewFloat(cfg.DustThreshold),
		minorThreshold: cfg.MinorAPYThreshold,
		majorThreshold: cfg.MajorAPYThreshold,
		sampleDedup:    dedup,
	}, nil
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

// Tick executes steps 1-7 of §4.5 once.
func (s *Scheduler) Tick(ctx context.Context) {
	start := time.Now()
	defer func() {
		metrics.TickDuration.WithLabelValues("position").Observe(time.Since(start).Seconds())
	}()

	users, err := s.store.UsersWithWallet(ctx)
	if err != nil {
		s.log.Warn("load users with wallet failed", zap.Error(err))
		return
	}

	pools, err := s.store.GetActivePools(ctx)
	if err != nil {
		s.log.Warn("load active pools failed", zap.Error(err))
		return
	}

	seen := make(map[int64]struct{})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	var mu sync.Mutex

	for _, user := range users {
		for _, pool := range pools {
			user, pool := user, pool
			g.Go(func() error {
				posID, ok := s.scanOne(gctx, user, pool)
				if ok {
					mu.Lock()
					seen[posID] = struct{}{}
					mu.Unlock()
				}
				return nil
			})
		}
	}
	_ = g.Wait()

	s.closeUnseenPositions(ctx, seen)
	metrics.PositionTicks.WithLabelValues("ok").Inc()
}

// scanOne implements steps 3-4, 6-7 for a single (user, pool) pair. It
// returns the position id and true when a non-dust balance was read and
// the position row upserted; a dust balance or any failed read or upsert
// returns false.
func (s *Scheduler) scanOne(ctx context.Context, user store.User, pool store.PoolCacheEntry) (int64, bool) {
	callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	poolAddr := ethcommon.HexToAddress(pool.Key.Address)
	holder := ethcommon.HexToAddress(user.Wallet)

	shares, err := s.clients.ReadShareBalance(callCtx, config.ChainID(pool.Key.Chain), poolAddr, holder)
	if err != nil {
		s.log.Debug("read share balance failed", zap.Error(err), zap.String("pool", pool.Key.Address))
		return 0, false
	}

	if isDust(shares, s.dustThreshold) {
		return 0, false
	}

	underlyingValue, err := s.clients.ConvertToAssets(callCtx, config.ChainID(pool.Key.Chain), poolAddr, shares)
	if err != nil {
		s.log.Debug("convert to assets failed", zap.Error(err), zap.String("pool", pool.Key.Address))
		return 0, false
	}

	existing, err := s.store.GetActivePositionsForPool(ctx, pool.Key)
	if err != nil {
		s.log.Warn("get active positions for pool failed", zap.Error(err))
	}
	var prior *store.Position
	for i := range existing {
		if existing[i].UserID == user.ID {
			prior = &existing[i]
			break
		}
	}

	pos := store.Position{
		UserID:           user.ID,
		Key:              pool.Key,
		Shares:           shares.String(),
		UnderlyingValue:  underlyingValue.String(),
		CurrentSupplyAPY: pool.APY,
	}

	result, err := s.store.UpsertPosition(ctx, pos)
	if err != nil {
		s.log.Warn("upsert position failed", zap.Error(err))
		return 0, false
	}
	pos.ID = result.ID

	s.maybeSampleAPY(ctx, pool)

	if result.Outcome == store.OutcomeNew {
		s.emitDepositObservedIfMatches(ctx, pos, pool)
		return pos.ID, true
	}
	if prior == nil {
		return pos.ID, true
	}

	s.maybeEmitAPYChange(ctx, *prior, pool.APY)
	return prior.ID, true
}

func (s *Scheduler) maybeSampleAPY(ctx context.Context, pool store.PoolCacheEntry) {
	key := sampleKey{address: pool.Key.Address, chain: pool.Key.Chain, minute: time.Now().Unix() / 60}
	if _, ok := s.sampleDedup.Get(key); ok {
		return
	}
	s.sampleDedup.Add(key, nil)
	if err := s.store.InsertAPYSample(ctx, store.APYSample{
		Key:        pool.Key,
		SupplyAPY:  pool.APY,
		TVL:        pool.TVL,
		RecordedAt: time.Now(),
	}); err != nil {
		s.log.Warn("insert apy sample failed", zap.Error(err))
	}
}

// maybeEmitAPYChange implements step 6: compare current_supply_apy
// against the prior row's value; emit APYChange if |delta| >= minor
// threshold.
func (s *Scheduler) maybeEmitAPYChange(ctx context.Context, prior store.Position, newAPY float64) {
	delta := newAPY - prior.CurrentSupplyAPY
	if delta < 0 {
		delta = -delta
	}
	if delta < s.minorThreshold {
		return
	}
	major := delta >= s.majorThreshold
	ev := events.APYChange{Position: prior, Old: prior.CurrentSupplyAPY, New: newAPY, Major: major}
	if err := s.router.HandleAPYChange(ctx, ev); err != nil {
		s.log.Warn("handle apy change failed", zap.Error(err))
	}
}

// emitDepositObservedIfMatches implements §4.7: it emits DepositObserved
// for every freshly created position; the router's HandleDepositObserved
// checks whether any of the owner's signed alerts match the pool.
func (s *Scheduler) emitDepositObservedIfMatches(ctx context.Context, pos store.Position, pool store.PoolCacheEntry) {
	if err := s.router.HandleDepositObserved(ctx, events.DepositObserved{Position: pos, Pool: pool}); err != nil {
		s.log.Warn("handle deposit observed failed", zap.Error(err))
	}
}

// closeUnseenPositions implements step 5: any pre-existing active
// position not seen this tick is deactivated and emits PositionClosed.
func (s *Scheduler) closeUnseenPositions(ctx context.Context, seen map[int64]struct{}) {
	users, err := s.store.UsersWithWallet(ctx)
	if err != nil {
		return
	}
	for _, user := range users {
		positions, err := s.store.GetActivePositionsForUser(ctx, user.ChannelID)
		if err != nil {
			s.log.Warn("get active positions for user failed", zap.Error(err))
			continue
		}
		for _, p := range positions {
			if _, ok := seen[p.ID]; ok {
				continue
			}
			if err := s.store.DeactivatePosition(ctx, p.ID); err != nil {
				s.log.Warn("deactivate position failed", zap.Error(err))
				continue
			}
			if err := s.router.HandlePositionClosed(ctx, events.PositionClosed{Position: p}); err != nil {
				s.log.Warn("handle position closed failed", zap.Error(err))
			}
		}
	}
}

func isDust(shares *big.Int, dustThreshold *big.Float) bool {
	f := new(big.Float).SetInt(shares)
	return f.Cmp(dustThreshold) < 0
}
