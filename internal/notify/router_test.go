package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lendwatch/monitor/internal/config"
	"github.com/lendwatch/monitor/internal/events"
	"github.com/lendwatch/monitor/internal/obs/log"
	"github.com/lendwatch/monitor/internal/store"
)

// recordingGateway is an in-memory ChatGateway fake recording every send
// call, per the testable-properties contract's "in-memory ChatGateway
// fake recording send calls for assertions."
type recordingGateway struct {
	mu    sync.Mutex
	sent  []string
	fail  error
}

func (g *recordingGateway) Send(_ context.Context, channelID, message string, _ []Action) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail != nil {
		return g.fail
	}
	g.sent = append(g.sent, channelID+"|"+message)
	return nil
}

func (g *recordingGateway) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sent)
}

func testConfig() *config.Config {
	return &config.Config{
		AlertMatchCooldown: 24 * time.Hour,
		APYChangeCooldown:  6 * time.Hour,
	}
}

func TestPoolAnnouncementDeliversToMatchingAlertOnly(t *testing.T) {
	ctx := context.Background()
	st := store.NewMem()
	gw := &recordingGateway{}
	r := New(st, gw, testConfig(), log.Nop())

	user, err := st.UpsertUser(ctx, "user-1")
	require.NoError(t, err)
	require.NoError(t, st.SetWallet(ctx, "user-1", "0xwallet"))

	alert, err := st.CreateAlert(ctx, store.Alert{
		UserID: user.ID, Asset: "USDC", MinAPY: 5, ExpiresAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	require.NoError(t, st.SignAlert(ctx, alert.ID))

	pool := store.PoolCacheEntry{Key: store.PoolKey{Address: "0xpool", Chain: 1}, UnderlyingSymbol: "USDC", APY: 6}

	require.NoError(t, r.HandlePoolAnnouncement(ctx, events.PoolAnnouncement{Pool: pool}))
	require.Equal(t, 1, gw.count())

	// A second tick within the cooldown window must not re-deliver.
	require.NoError(t, r.HandlePoolAnnouncement(ctx, events.PoolAnnouncement{Pool: pool}))
	require.Equal(t, 1, gw.count())
}

func TestPoolAnnouncementSkipsNonMatchingAsset(t *testing.T) {
	ctx := context.Background()
	st := store.NewMem()
	gw := &recordingGateway{}
	r := New(st, gw, testConfig(), log.Nop())

	user, err := st.UpsertUser(ctx, "user-1")
	require.NoError(t, err)
	alert, err := st.CreateAlert(ctx, store.Alert{
		UserID: user.ID, Asset: "DAI", MinAPY: 1, ExpiresAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	require.NoError(t, st.SignAlert(ctx, alert.ID))

	pool := store.PoolCacheEntry{Key: store.PoolKey{Address: "0xpool", Chain: 1}, UnderlyingSymbol: "USDC", APY: 10}
	require.NoError(t, r.HandlePoolAnnouncement(ctx, events.PoolAnnouncement{Pool: pool}))
	require.Equal(t, 0, gw.count())
}

func TestProtocolLaunchIsPermanentCooldown(t *testing.T) {
	ctx := context.Background()
	st := store.NewMem()
	gw := &recordingGateway{}
	r := New(st, gw, testConfig(), log.Nop())

	_, err := st.UpsertUser(ctx, "user-1")
	require.NoError(t, err)
	require.NoError(t, st.SetWallet(ctx, "user-1", "0xwallet"))

	ev, err := events.NewProtocolLaunchOnChain(143)
	require.NoError(t, err)

	require.NoError(t, r.HandleProtocolLaunch(ctx, ev))
	require.Equal(t, 1, gw.count())

	require.NoError(t, r.HandleProtocolLaunch(ctx, ev))
	require.Equal(t, 1, gw.count(), "protocol launch must never re-broadcast to the same user")
}

func TestProtocolLaunchEventRefusesZeroChain(t *testing.T) {
	_, err := events.NewProtocolLaunchOnChain(0)
	require.Error(t, err)
}

func TestPositionClosedHasNoCooldown(t *testing.T) {
	ctx := context.Background()
	st := store.NewMem()
	gw := &recordingGateway{}
	r := New(st, gw, testConfig(), log.Nop())

	user, err := st.UpsertUser(ctx, "user-1")
	require.NoError(t, err)

	pos := store.Position{ID: 1, UserID: user.ID, Key: store.PoolKey{Address: "0xpool", Chain: 1}}
	require.NoError(t, r.HandlePositionClosed(ctx, events.PositionClosed{Position: pos}))
	require.Equal(t, 1, gw.count())

	// With no cooldown, a repeat for the same position is delivered again.
	require.NoError(t, r.HandlePositionClosed(ctx, events.PositionClosed{Position: pos}))
	require.Equal(t, 2, gw.count())
}

func TestDeliveryFailureMarksChannelUnreachable(t *testing.T) {
	ctx := context.Background()
	st := store.NewMem()
	gw := &recordingGateway{fail: &PermanentDeliveryError{Err: context.DeadlineExceeded}}
	r := New(st, gw, testConfig(), log.Nop())

	user, err := st.UpsertUser(ctx, "user-1")
	require.NoError(t, err)

	pos := store.Position{ID: 1, UserID: user.ID, Key: store.PoolKey{Address: "0xpool", Chain: 1}}
	require.NoError(t, r.HandlePositionClosed(ctx, events.PositionClosed{Position: pos}))

	unreachable, err := st.IsChannelUnreachable(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, unreachable)
}
