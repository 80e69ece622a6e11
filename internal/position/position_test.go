package position

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lendwatch/monitor/internal/config"
	"github.com/lendwatch/monitor/internal/events"
	"github.com/lendwatch/monitor/internal/store"
)

type fakeRouter struct {
	apyChanges []events.APYChange
	closed     []events.PositionClosed
	deposits   []events.DepositObserved
}

func (f *fakeRouter) HandleAPYChange(_ context.Context, ev events.APYChange) error {
	f.apyChanges = append(f.apyChanges, ev)
	return nil
}

func (f *fakeRouter) HandlePositionClosed(_ context.Context, ev events.PositionClosed) error {
	f.closed = append(f.closed, ev)
	return nil
}

func (f *fakeRouter) HandleDepositObserved(_ context.Context, ev events.DepositObserved) error {
	f.deposits = append(f.deposits, ev)
	return nil
}

func testScheduler(t *testing.T, st store.Store, router Router) *Scheduler {
	t.Helper()
	cfg := &config.Config{DustThreshold: 1, MinorAPYThreshold: 0.5, MajorAPYThreshold: 2}
	s, err := New(nil, st, router, cfg, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestIsDustBelowThreshold(t *testing.T) {
	threshold := big.NewFloat(1_000)
	require.True(t, isDust(big.NewInt(999), threshold))
	require.False(t, isDust(big.NewInt(1_000), threshold))
	require.False(t, isDust(big.NewInt(1_001), threshold))
}

func TestMaybeEmitAPYChangeBelowMinorThresholdIsSilent(t *testing.T) {
	router := &fakeRouter{}
	s := testScheduler(t, store.NewMem(), router)

	prior := store.Position{ID: 1, CurrentSupplyAPY: 5.0}
	s.maybeEmitAPYChange(context.Background(), prior, 5.2)
	require.Empty(t, router.apyChanges)
}

func TestMaybeEmitAPYChangeMinorVsMajor(t *testing.T) {
	router := &fakeRouter{}
	s := testScheduler(t, store.NewMem(), router)

	prior := store.Position{ID: 1, CurrentSupplyAPY: 5.0}
	s.maybeEmitAPYChange(context.Background(), prior, 5.8) // delta 0.8, >= minor(0.5), < major(2)
	require.Len(t, router.apyChanges, 1)
	require.False(t, router.apyChanges[0].Major)

	s.maybeEmitAPYChange(context.Background(), prior, 8.0) // delta 3.0, >= major
	require.Len(t, router.apyChanges, 2)
	require.True(t, router.apyChanges[1].Major)
}

func TestMaybeEmitAPYChangeHandlesDecreases(t *testing.T) {
	router := &fakeRouter{}
	s := testScheduler(t, store.NewMem(), router)

	prior := store.Position{ID: 1, CurrentSupplyAPY: 10.0}
	s.maybeEmitAPYChange(context.Background(), prior, 7.0) // delta -3.0 magnitude 3 >= major
	require.Len(t, router.apyChanges, 1)
	require.True(t, router.apyChanges[0].Major)
}

// TestClosePositionNotSeenThisTickEmitsPositionClosed covers scenario S3:
// a position present in the store but absent from this tick's seen set
// must be deactivated and emit exactly one PositionClosed, with no
// concurrent APYChange for the same position.
func TestClosePositionNotSeenThisTickEmitsPositionClosed(t *testing.T) {
	ctx := context.Background()
	st := store.NewMem()
	router := &fakeRouter{}
	s := testScheduler(t, st, router)

	user, err := st.UpsertUser(ctx, "chan-1")
	require.NoError(t, err)
	require.NoError(t, st.SetWallet(ctx, "chan-1", "0xwallet"))

	pos := store.Position{UserID: user.ID, Key: store.PoolKey{Address: "0xpool", Chain: 1}, Shares: "1000"}
	result, err := st.UpsertPosition(ctx, pos)
	require.NoError(t, err)
	pos.ID = result.ID

	s.closeUnseenPositions(ctx, map[int64]struct{}{})

	require.Len(t, router.closed, 1)
	require.Equal(t, pos.ID, router.closed[0].Position.ID)
	require.Empty(t, router.apyChanges, "a closed position must never also emit an APY change in the same tick")

	active, err := st.GetActivePositionsForUser(ctx, "chan-1")
	require.NoError(t, err)
	require.Empty(t, active)
}

func TestCloseSkipsPositionsSeenThisTick(t *testing.T) {
	ctx := context.Background()
	st := store.NewMem()
	router := &fakeRouter{}
	s := testScheduler(t, st, router)

	user, err := st.UpsertUser(ctx, "chan-1")
	require.NoError(t, err)
	require.NoError(t, st.SetWallet(ctx, "chan-1", "0xwallet"))

	pos := store.Position{UserID: user.ID, Key: store.PoolKey{Address: "0xpool", Chain: 1}, Shares: "1000"}
	result, err := st.UpsertPosition(ctx, pos)
	require.NoError(t, err)

	s.closeUnseenPositions(ctx, map[int64]struct{}{result.ID: {}})

	require.Empty(t, router.closed)
	active, err := st.GetActivePositionsForUser(ctx, "chan-1")
	require.NoError(t, err)
	require.Len(t, active, 1)
}
