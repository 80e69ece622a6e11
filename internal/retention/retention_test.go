package retention

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lendwatch/monitor/internal/store"
)

func TestRunOncePrunesOldSamplesOnly(t *testing.T) {
	ctx := context.Background()
	st := store.NewMem()

	require.NoError(t, st.InsertAPYSample(ctx, store.APYSample{
		Key:        store.PoolKey{Address: "0xa", Chain: 1},
		RecordedAt: time.Now().Add(-40 * 24 * time.Hour),
	}))
	require.NoError(t, st.InsertAPYSample(ctx, store.APYSample{
		Key:        store.PoolKey{Address: "0xa", Chain: 1},
		RecordedAt: time.Now(),
	}))

	j, err := New(st, "0 3 * * *", 30*24*time.Hour, zap.NewNop())
	require.NoError(t, err)

	j.runOnce()

	pruned, err := st.PruneAPYSamples(ctx, time.Now().Add(-30*24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(0), pruned, "runOnce should have already pruned the stale sample")

	pruned, err = st.PruneAPYSamples(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), pruned, "runOnce must have kept the recent sample")
}

func TestNewRejectsInvalidCronSpec(t *testing.T) {
	_, err := New(store.NewMem(), "not a cron spec", time.Hour, zap.NewNop())
	require.Error(t, err)
}
