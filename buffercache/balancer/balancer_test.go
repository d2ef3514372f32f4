package balancer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startQueue runs the single-flight worker without the tick loop, so tests
// can call maybeTriggerRebalance deterministically.
func startQueue(t *testing.T, b *Balancer) {
	t.Helper()
	require.NoError(t, b.rebalanceQueue.Start())
	t.Cleanup(func() { require.NoError(t, b.rebalanceQueue.Stop()) })
}

// drainQueue returns once every pass enqueued so far has finished, by
// waiting for a sentinel task to make it through the queue.
func drainQueue(t *testing.T, b *Balancer) {
	t.Helper()
	done := make(chan struct{})
	require.Eventually(t, func() bool {
		return b.rebalanceQueue.TrySubmit(func(context.Context) { close(done) })
	}, 5*time.Second, time.Millisecond)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("rebalance queue did not drain")
	}
}

func TestBalancer_StartStop(t *testing.T) {
	h := newRebalanceHarness(t, 1, 1000)
	b := h.balancer

	require.Error(t, b.Stop())
	require.NoError(t, b.Start())
	require.Error(t, b.Start())
	require.NoError(t, b.Stop())
	require.Error(t, b.Stop())
}

func TestBalancer_TickSuppressedUnderLightLoad(t *testing.T) {
	h := newRebalanceHarness(t, 1, 1000)
	startQueue(t, h.balancer)

	// No expectations: below both thresholds a tick must not even snapshot,
	// so any call on the evicter fails the test.
	ev := NewMockEvicter(h.ctrl)
	h.register(t, 0, ev)

	h.balancer.lastRebalance = h.timeSource.Now()
	for i := 0; i < 99; i++ {
		h.balancer.NotifyAccess(0)
	}
	h.timeSource.Advance(20 * time.Millisecond)
	before := h.balancer.lastRebalance

	h.balancer.maybeTriggerRebalance()
	drainQueue(t, h.balancer)

	assert.Equal(t, before, h.balancer.lastRebalance)
	assert.EqualValues(t, 99, h.balancer.threads[0].accessCount.Load())
}

func TestBalancer_TickTriggersOnAccessThreshold(t *testing.T) {
	h := newRebalanceHarness(t, 2, 1000)
	startQueue(t, h.balancer)

	ev := NewMockEvicter(h.ctrl)
	ev.EXPECT().MemoryLimit().Return(uint64(500))
	ev.EXPECT().BytesLoaded().Return(uint64(100))
	// The sole partition ends up with the whole budget.
	ev.EXPECT().UpdateMemoryLimit(uint64(1000))
	ev.EXPECT().InMemorySize().Return(uint64(200))
	h.register(t, 0, ev)

	h.balancer.lastRebalance = h.timeSource.Now()

	// Accesses count across all shards, not per shard.
	for i := 0; i < 50; i++ {
		h.balancer.NotifyAccess(0)
		h.balancer.NotifyAccess(1)
	}
	h.timeSource.Advance(20 * time.Millisecond)

	h.balancer.maybeTriggerRebalance()
	drainQueue(t, h.balancer)

	assert.Equal(t, h.timeSource.Now(), h.balancer.lastRebalance)
	assert.Zero(t, h.balancer.threads[0].accessCount.Load())
	assert.Zero(t, h.balancer.threads[1].accessCount.Load())
}

func TestBalancer_TickForcedAfterTimeout(t *testing.T) {
	h := newRebalanceHarness(t, 1, 1000)
	startQueue(t, h.balancer)

	ev := NewMockEvicter(h.ctrl)
	ev.EXPECT().MemoryLimit().Return(uint64(500))
	ev.EXPECT().BytesLoaded().Return(uint64(0))
	ev.EXPECT().UpdateMemoryLimit(uint64(1000))
	ev.EXPECT().InMemorySize().Return(uint64(0))
	h.register(t, 0, ev)

	// No accesses at all; elapsing the timeout alone forces a pass.
	h.balancer.lastRebalance = h.timeSource.Now()
	h.timeSource.Advance(500 * time.Millisecond)

	h.balancer.maybeTriggerRebalance()
	drainQueue(t, h.balancer)

	assert.Equal(t, h.timeSource.Now(), h.balancer.lastRebalance)
}

func TestBalancer_RegistrationContract(t *testing.T) {
	h := newRebalanceHarness(t, 2, 1000)
	ev := NewMockEvicter(h.ctrl)

	// Contexts without a shard binding are rejected outright.
	assert.Panics(t, func() { h.balancer.AddEvicter(context.Background(), ev) })

	require.NoError(t, h.pool.Call(context.Background(), 0, func(ctx context.Context) {
		h.balancer.AddEvicter(ctx, ev)
		assert.Panics(t, func() {
			h.balancer.AddEvicter(ctx, ev)
		}, "double registration must be fatal")
	}))

	other := NewMockEvicter(h.ctrl)
	require.NoError(t, h.pool.Call(context.Background(), 0, func(ctx context.Context) {
		assert.Panics(t, func() {
			h.balancer.RemoveEvicter(ctx, other)
		}, "removing an unregistered partition must be fatal")
	}))

	// Registration is per shard; shard 1 has never seen this partition.
	require.NoError(t, h.pool.Call(context.Background(), 1, func(ctx context.Context) {
		assert.Panics(t, func() { h.balancer.RemoveEvicter(ctx, ev) })
	}))

	require.NoError(t, h.pool.Call(context.Background(), 0, func(ctx context.Context) {
		h.balancer.RemoveEvicter(ctx, ev)
	}))
}

func TestBalancer_TickLoopDrivesRebalance(t *testing.T) {
	h := newRebalanceHarness(t, 1, 1000)

	applied := make(chan struct{})
	ev := NewMockEvicter(h.ctrl)
	ev.EXPECT().MemoryLimit().Return(uint64(500))
	ev.EXPECT().BytesLoaded().Return(uint64(0))
	ev.EXPECT().InMemorySize().Return(uint64(100))
	ev.EXPECT().UpdateMemoryLimit(uint64(1000)).Do(func(uint64) { close(applied) })
	h.register(t, 0, ev)

	require.NoError(t, h.balancer.Start())

	// The very first tick triggers a pass: the balancer has never
	// rebalanced, so the timeout path applies.
	h.timeSource.BlockUntil(1)
	h.timeSource.Advance(20 * time.Millisecond)

	select {
	case <-applied:
	case <-time.After(5 * time.Second):
		t.Fatal("tick did not drive a rebalance pass")
	}

	require.NoError(t, h.balancer.Stop())
	assert.True(t, h.balancer.IsReadAheadOK())
}
