package eviction

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally"
	"go.uber.org/goleak"

	"github.com/qiubz/rethinkdb/buffercache/balancer"
	"github.com/qiubz/rethinkdb/common/clock"
	"github.com/qiubz/rethinkdb/common/log/testlogger"
	"github.com/qiubz/rethinkdb/common/threading"
)

// newIdleBalancer builds a balancer that is never started; good enough for
// pure accounting tests that only need somewhere to send access counts.
func newIdleBalancer(t *testing.T, shards int) *balancer.Balancer {
	t.Helper()
	pool := threading.NewPool(shards, 0, testlogger.New(t))
	return balancer.New(1000, pool, clock.NewMockedTimeSource(), testlogger.New(t), tally.NoopScope)
}

func TestTracker_Accounting(t *testing.T) {
	tr := NewTracker("cache-0", 0, newIdleBalancer(t, 1), nil, testlogger.New(t))

	assert.Equal(t, "cache-0", tr.ID())
	assert.Equal(t, 0, tr.Shard())
	assert.Zero(t, tr.MemoryLimit())

	tr.NotifyLoad(100)
	tr.NotifyLoad(50)
	assert.EqualValues(t, 150, tr.BytesLoaded())
	assert.EqualValues(t, 150, tr.InMemorySize())

	// Unloads shrink the footprint but not the loaded counter.
	tr.NotifyUnload(30)
	assert.EqualValues(t, 150, tr.BytesLoaded())
	assert.EqualValues(t, 120, tr.InMemorySize())

	tr.NotifyUnload(0)
	tr.NotifyLoad(0)
	assert.EqualValues(t, 150, tr.BytesLoaded())
	assert.EqualValues(t, 120, tr.InMemorySize())
}

func TestTracker_UpdateMemoryLimitDrainsLoadedCounter(t *testing.T) {
	tr := NewTracker("cache-0", 0, newIdleBalancer(t, 1), nil, testlogger.New(t))

	tr.NotifyLoad(200)
	require.EqualValues(t, 200, tr.BytesLoaded())

	tr.UpdateMemoryLimit(500)

	assert.EqualValues(t, 500, tr.MemoryLimit())
	assert.Zero(t, tr.BytesLoaded(), "the loaded counter drains when a limit is applied")
	assert.EqualValues(t, 200, tr.InMemorySize())
}

func TestTracker_UpdateMemoryLimitReclaimsExcess(t *testing.T) {
	t.Run("default reclaim trims to the limit", func(t *testing.T) {
		tr := NewTracker("cache-0", 0, newIdleBalancer(t, 1), nil, testlogger.New(t))
		tr.NotifyLoad(1000)

		tr.UpdateMemoryLimit(600)

		assert.EqualValues(t, 600, tr.InMemorySize())
	})

	t.Run("partial reclaim leaves the rest tracked", func(t *testing.T) {
		var seen []uint64
		reclaim := func(excess uint64) uint64 {
			seen = append(seen, excess)
			return excess / 2
		}
		tr := NewTracker("cache-0", 0, newIdleBalancer(t, 1), reclaim, testlogger.New(t))
		tr.NotifyLoad(1000)

		tr.UpdateMemoryLimit(600)

		assert.Equal(t, []uint64{400}, seen)
		assert.EqualValues(t, 800, tr.InMemorySize())
	})

	t.Run("over-reporting reclaim is clamped", func(t *testing.T) {
		reclaim := func(excess uint64) uint64 { return excess * 100 }
		tr := NewTracker("cache-0", 0, newIdleBalancer(t, 1), reclaim, testlogger.New(t))
		tr.NotifyLoad(1000)

		tr.UpdateMemoryLimit(600)

		assert.Zero(t, tr.InMemorySize())
	})

	t.Run("no reclaim under the limit", func(t *testing.T) {
		reclaim := func(excess uint64) uint64 {
			t.Error("reclaim must not run while under the limit")
			return 0
		}
		tr := NewTracker("cache-0", 0, newIdleBalancer(t, 1), reclaim, testlogger.New(t))
		tr.NotifyLoad(100)

		tr.UpdateMemoryLimit(600)

		assert.EqualValues(t, 100, tr.InMemorySize())
	})
}

func TestTracker_RegisterOnWrongShardPanics(t *testing.T) {
	defer goleak.VerifyNone(t)

	pool := threading.NewPool(2, 0, testlogger.New(t))
	require.NoError(t, pool.Start())
	defer func() { require.NoError(t, pool.Stop()) }()

	ts := clock.NewMockedTimeSource()
	bal := balancer.New(1000, pool, ts, testlogger.New(t), tally.NoopScope)
	tr := NewTracker("cache-0", 0, bal, nil, testlogger.New(t))

	assert.Panics(t, func() { tr.Register(context.Background()) })

	require.NoError(t, pool.Call(context.Background(), 1, func(ctx context.Context) {
		assert.Panics(t, func() { tr.Register(ctx) })
	}))

	require.NoError(t, pool.Call(context.Background(), 0, func(ctx context.Context) {
		tr.Register(ctx)
		tr.Deregister(ctx)
	}))
}

func TestTracker_BalancerAssignsProportionalLimits(t *testing.T) {
	defer goleak.VerifyNone(t)

	pool := threading.NewPool(2, 0, testlogger.New(t))
	require.NoError(t, pool.Start())

	ts := clock.NewMockedTimeSource()
	bal := balancer.New(1000, pool, ts, testlogger.New(t), tally.NoopScope)

	trA := NewTracker("cache-a", 0, bal, nil, testlogger.New(t))
	trB := NewTracker("cache-b", 1, bal, nil, testlogger.New(t))
	ctx := context.Background()
	require.NoError(t, pool.Call(ctx, 0, trA.Register))
	require.NoError(t, pool.Call(ctx, 1, trB.Register))

	require.NoError(t, pool.Call(ctx, 0, func(context.Context) { trA.NotifyLoad(300) }))
	require.NoError(t, pool.Call(ctx, 1, func(context.Context) { trB.NotifyLoad(100) }))

	require.NoError(t, bal.Start())
	ts.BlockUntil(1)
	ts.Advance(20 * time.Millisecond)

	// Both partitions start at limit zero, so each ends up with its own
	// load plus an equal share of the leftover budget: 300+300 and 100+300.
	require.Eventually(t, func() bool {
		return trA.MemoryLimit() != 0 && trB.MemoryLimit() != 0
	}, 5*time.Second, time.Millisecond)

	assert.EqualValues(t, 600, trA.MemoryLimit())
	assert.EqualValues(t, 400, trB.MemoryLimit())
	assert.Zero(t, trA.BytesLoaded())
	assert.Zero(t, trB.BytesLoaded())
	assert.True(t, bal.IsReadAheadOK())

	require.NoError(t, bal.Stop())
	require.NoError(t, pool.Stop())
}
