package redis

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MiniPiccino/ThinkDeeperProd/internal/domain/plan"
)

type memPlanStore struct {
	plans map[string]string
	gets  int
}

func (m *memPlanStore) GetPlan(_ context.Context, userID string) (string, error) {
	m.gets++
	return plan.Normalize(m.plans[userID]), nil
}

func (m *memPlanStore) SetPlan(_ context.Context, userID, label string) error {
	if m.plans == nil {
		m.plans = map[string]string{}
	}
	m.plans[userID] = plan.Normalize(label)
	return nil
}

// unreachableCache fails every operation with a connection error, never a
// cache miss.
func unreachableCache() *Cache {
	return &Cache{client: goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		ReadTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})}
}

func TestPlanCacheNilCachePassesThrough(t *testing.T) {
	store := &memPlanStore{plans: map[string]string{"u1": plan.Premium}}
	cached := NewPlanCache(store, nil, nil)
	ctx := context.Background()

	label, err := cached.GetPlan(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, plan.Premium, label)
	assert.Equal(t, 1, store.gets)
}

func TestPlanCacheFallsThroughOnCacheErrors(t *testing.T) {
	store := &memPlanStore{plans: map[string]string{"u1": plan.Premium}}
	cached := NewPlanCache(store, unreachableCache(), nil)
	ctx := context.Background()

	// Reads serve from the store when the cache is down.
	label, err := cached.GetPlan(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, plan.Premium, label)
	assert.Equal(t, 1, store.gets)

	// Writes still land in the store; the failed invalidation is absorbed.
	require.NoError(t, cached.SetPlan(ctx, "u2", plan.Premium))
	label, err = cached.GetPlan(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, plan.Premium, label)
}
