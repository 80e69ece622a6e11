package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/lendwatch/monitor/internal/config"
	"github.com/lendwatch/monitor/internal/notify"
	"github.com/lendwatch/monitor/internal/store"
)

// TestMain verifies the engine's schedulers leave no goroutines running
// once every test in this package has exited, per the invariant that
// Run's 30s drain window (see engine.go) genuinely stops both tickers.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig() *config.Config {
	endpoints := make(map[config.ChainID]config.RPCEndpoint, len(config.SupportedChains))
	for _, c := range config.SupportedChains {
		endpoints[c] = config.RPCEndpoint{Chain: c, URL: "http://127.0.0.1:0"}
	}
	return &config.Config{
		DiscoveryInterval:  time.Hour,
		PositionInterval:   time.Hour,
		RetentionCron:      "0 3 * * *",
		RetentionAfter:     30 * 24 * time.Hour,
		MinorAPYThreshold:  0.5,
		MajorAPYThreshold:  2,
		DustThreshold:      1,
		AlertMatchCooldown: 24 * time.Hour,
		APYChangeCooldown:  6 * time.Hour,
		RPCEndpoints:       endpoints,
	}
}

func TestNewWiresEveryComponentWithoutDialingRPC(t *testing.T) {
	eng, err := New(testConfig(), store.NewMem(), zap.NewNop(), notify.NewLoggingGateway(zap.NewNop()))
	require.NoError(t, err)
	require.NotNil(t, eng)
}

func TestRunDrainsPromptlyOnCancel(t *testing.T) {
	eng, err := New(testConfig(), store.NewMem(), zap.NewNop(), notify.NewLoggingGateway(zap.NewNop()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		eng.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not shut down promptly after context cancellation")
	}
}
