package discovery

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lendwatch/monitor/internal/config"
	"github.com/lendwatch/monitor/internal/events"
	"github.com/lendwatch/monitor/internal/poolfetch"
	"github.com/lendwatch/monitor/internal/store"
)

func nopLogger() *zap.Logger { return zap.NewNop() }

func fakePool(chainID config.ChainID, address, underlyingSymbol string, apy float64) poolfetch.Pool {
	return poolfetch.Pool{
		Address:          common.HexToAddress(address),
		Chain:            chainID,
		Name:             "test pool",
		Symbol:           "tPOOL",
		UnderlyingSymbol: underlyingSymbol,
		Decimals:         6,
		TVL:              big.NewInt(1_000_000),
		APY:              apy,
		Borrowed:         big.NewInt(0),
		Utilization:      0,
	}
}

// fakeRouter records which events it was asked to handle, in lieu of a
// real notify.Router, for scheduler-level assertions. When st is set, a
// protocol launch is also written to the ledger as a pool_announcement, as
// the real router does on broadcast.
type fakeRouter struct {
	st            store.Store
	announcements []events.PoolAnnouncement
	launches      []events.ProtocolLaunchOnChain
}

func (f *fakeRouter) HandlePoolAnnouncement(_ context.Context, ev events.PoolAnnouncement) error {
	f.announcements = append(f.announcements, ev)
	return nil
}

func (f *fakeRouter) HandleProtocolLaunch(_ context.Context, ev events.ProtocolLaunchOnChain) error {
	f.launches = append(f.launches, ev)
	if f.st != nil {
		return f.st.RecordNotification(context.Background(), store.NotificationRecord{
			Kind: store.KindPoolAnnouncement, Subject: fmt.Sprintf("chain:%d", ev.Chain), Delivered: true,
		})
	}
	return nil
}

func TestMonadFirstLaunchEmitsProtocolLaunchOnce(t *testing.T) {
	ctx := context.Background()
	st := store.NewMem()
	router := &fakeRouter{st: st}

	s := New(nil, st, router, config.SupportedChains, nopLogger())

	pool := fakePool(config.ChainMonad, "0x1111111111111111111111111111111111111111", "USDC", 6)
	key := store.PoolKey{Address: pool.Address.Hex(), Chain: uint64(config.ChainMonad)}
	s.processPool(ctx, key, pool)
	require.Len(t, router.launches, 1)
	require.Equal(t, uint64(config.ChainMonad), router.launches[0].Chain)

	// A second new pool on the same chain must not re-broadcast the launch.
	pool2 := fakePool(config.ChainMonad, "0x2222222222222222222222222222222222222222", "USDC", 6)
	key2 := store.PoolKey{Address: pool2.Address.Hex(), Chain: uint64(config.ChainMonad)}
	s.processPool(ctx, key2, pool2)
	require.Len(t, router.launches, 1)
}

func TestNonMonadChainNeverEmitsProtocolLaunch(t *testing.T) {
	ctx := context.Background()
	st := store.NewMem()
	router := &fakeRouter{}
	s := New(nil, st, router, config.SupportedChains, nopLogger())

	pool := fakePool(config.ChainEthereum, "0x3333333333333333333333333333333333333333", "USDC", 6)
	key := store.PoolKey{Address: pool.Address.Hex(), Chain: uint64(config.ChainEthereum)}
	s.processPool(ctx, key, pool)

	require.Len(t, router.announcements, 1)
	require.Empty(t, router.launches)
}

func TestAggregateObservedAllChainsFailedNeverMarksAnythingInactive(t *testing.T) {
	results := []chainResult{
		{chain: config.ChainEthereum, pools: nil, err: errors.New("rpc down")},
		{chain: config.ChainArbitrum, pools: nil, err: errors.New("rpc down")},
	}

	observed, anyNonEmpty := aggregateObserved(results)
	require.False(t, anyNonEmpty, "an entirely failed tick must never trigger MarkPoolsInactive")
	require.Zero(t, observed.Cardinality())
}

func TestAggregateObservedOneHealthyChainAmongFailuresStillMarksInactive(t *testing.T) {
	healthyPool := fakePool(config.ChainEthereum, "0xhealthy", "USDC", 6)
	results := []chainResult{
		{chain: config.ChainEthereum, pools: []poolfetch.Pool{healthyPool}, err: nil},
		{chain: config.ChainArbitrum, pools: nil, err: errors.New("rpc down")},
	}

	observed, anyNonEmpty := aggregateObserved(results)
	require.True(t, anyNonEmpty)
	require.Equal(t, 1, observed.Cardinality())
}

func TestChainFetchFailureSkipsTickWithoutDeactivatingOtherChains(t *testing.T) {
	ctx := context.Background()
	st := store.NewMem()

	healthyKey := store.PoolKey{Address: "0xhealthy", Chain: uint64(config.ChainArbitrum)}
	_, err := st.UpsertPool(ctx, store.PoolCacheEntry{Key: healthyKey})
	require.NoError(t, err)

	// A tick where every chain failed must never call MarkPoolsInactive.
	_, anyNonEmpty := aggregateObserved([]chainResult{
		{chain: config.ChainEthereum, pools: nil, err: errors.New("rpc down")},
	})
	require.False(t, anyNonEmpty)

	active, err := st.GetActivePools(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1, "pool from the unaffected chain must remain active")
}
