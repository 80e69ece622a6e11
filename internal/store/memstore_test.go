package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemUpsertPoolOutcomes(t *testing.T) {
	ctx := context.Background()
	m := NewMem()

	key := PoolKey{Address: "0xabc", Chain: 1}

	result, err := m.UpsertPool(ctx, PoolCacheEntry{Key: key, APY: 5})
	require.NoError(t, err)
	require.Equal(t, OutcomeNew, result.Outcome)

	result, err = m.UpsertPool(ctx, PoolCacheEntry{Key: key, APY: 5})
	require.NoError(t, err)
	require.Equal(t, OutcomeUnchanged, result.Outcome)

	result, err = m.UpsertPool(ctx, PoolCacheEntry{Key: key, APY: 7})
	require.NoError(t, err)
	require.Equal(t, OutcomeAPYChanged, result.Outcome)

	require.NoError(t, m.MarkPoolsInactive(ctx, map[PoolKey]struct{}{}))

	result, err = m.UpsertPool(ctx, PoolCacheEntry{Key: key, APY: 7})
	require.NoError(t, err)
	require.Equal(t, OutcomeReactivated, result.Outcome)
}

func TestMemMarkPoolsInactiveKeepsObservedActive(t *testing.T) {
	ctx := context.Background()
	m := NewMem()

	keyA := PoolKey{Address: "0xa", Chain: 1}
	keyB := PoolKey{Address: "0xb", Chain: 1}

	_, err := m.UpsertPool(ctx, PoolCacheEntry{Key: keyA})
	require.NoError(t, err)
	_, err = m.UpsertPool(ctx, PoolCacheEntry{Key: keyB})
	require.NoError(t, err)

	require.NoError(t, m.MarkPoolsInactive(ctx, map[PoolKey]struct{}{keyA: {}}))

	active, err := m.GetActivePools(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, keyA, active[0].Key)
}

func TestMemNotificationCooldown(t *testing.T) {
	ctx := context.Background()
	m := NewMem()

	user, err := m.UpsertUser(ctx, "chan-1")
	require.NoError(t, err)

	hit, err := m.WasNotifiedAbout(ctx, user.ID, KindAlertMatch, "pool:0xabc:1", 24*time.Hour)
	require.NoError(t, err)
	require.False(t, hit)

	require.NoError(t, m.RecordNotification(ctx, NotificationRecord{
		UserID: user.ID, Kind: KindAlertMatch, Subject: "pool:0xabc:1", Delivered: true,
	}))

	hit, err = m.WasNotifiedAbout(ctx, user.ID, KindAlertMatch, "pool:0xabc:1", 24*time.Hour)
	require.NoError(t, err)
	require.True(t, hit)
}

func TestMemPruneAPYSamples(t *testing.T) {
	ctx := context.Background()
	m := NewMem()

	old := time.Now().Add(-48 * time.Hour)
	recent := time.Now()

	require.NoError(t, m.InsertAPYSample(ctx, APYSample{Key: PoolKey{Address: "0xa", Chain: 1}, RecordedAt: old}))
	require.NoError(t, m.InsertAPYSample(ctx, APYSample{Key: PoolKey{Address: "0xa", Chain: 1}, RecordedAt: recent}))

	pruned, err := m.PruneAPYSamples(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), pruned)
}
