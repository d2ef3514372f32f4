package balancer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/uber-go/tally"

	"github.com/qiubz/rethinkdb/buffercache/metricsconstants"
	"github.com/qiubz/rethinkdb/common/clock"
	"github.com/qiubz/rethinkdb/common/log"
	"github.com/qiubz/rethinkdb/common/log/tag"
	"github.com/qiubz/rethinkdb/common/threading"
)

// Rebalance cadence. These are properties of the control loop, not
// configuration: a pass runs when enough accesses accumulate, and at least
// once per timeout regardless of traffic.
const (
	rebalanceCheckInterval        = 20 * time.Millisecond
	rebalanceAccessCountThreshold = uint64(100)
	rebalanceTimeout              = 500 * time.Millisecond
)

// Read-ahead stays enabled while usage is below 9/10 of the budget.
const (
	readAheadRatioNumerator   = 9
	readAheadRatioDenominator = 10
)

const (
	statusInitialized int32 = iota
	statusStarted
	statusStopped
)

// Balancer splits one fixed byte budget across the cache partitions
// registered on each pool shard, favoring partitions that absorb more load.
// One instance serves one cache for the cache's lifetime.
type Balancer struct {
	totalCacheSize uint64

	pool       *threading.Pool
	timeSource clock.TimeSource
	logger     log.Logger
	scope      tally.Scope

	threads      []threadInfo
	evicterTotal atomic.Int64

	// lastRebalance is read and written only by the tick loop goroutine.
	// It moves forward when a pass is triggered, not when it completes, so
	// a slow pass cannot cause a burst of redundant triggers.
	lastRebalance time.Time

	// readAheadOK starts true and latches false once usage first crosses
	// the read-ahead ratio. It never goes back to true. Written only by the
	// rebalance worker.
	readAheadOK atomic.Bool

	rebalanceQueue *threading.SerialQueue

	status atomic.Int32
	stopC  chan struct{}
	wg     sync.WaitGroup
}

// threadInfo is the balancer's per-shard registry slot.
type threadInfo struct {
	// accessCount accumulates accesses on this shard since the last applied
	// pass. Incremented lock-free, reset by the apply step.
	accessCount atomic.Uint64

	// mu guards evicters for registration and for the snapshot step. The
	// apply step reads the set without mu; see applyNewSizes.
	mu       sync.Mutex
	evicters map[Evicter]struct{}
}

// New creates a balancer over the pool's shards with the given global budget
// in bytes.
func New(
	totalCacheSize uint64,
	pool *threading.Pool,
	timeSource clock.TimeSource,
	logger log.Logger,
	scope tally.Scope,
) *Balancer {
	threads := make([]threadInfo, pool.Shards())
	for i := range threads {
		threads[i].evicters = make(map[Evicter]struct{})
	}
	b := &Balancer{
		totalCacheSize: totalCacheSize,
		pool:           pool,
		timeSource:     timeSource,
		logger:         logger.WithTags(tag.ComponentCacheBalancer),
		scope:          scope,
		threads:        threads,
		rebalanceQueue: threading.NewSerialQueue(),
		stopC:          make(chan struct{}),
	}
	b.readAheadOK.Store(true)
	return b
}

// TotalCacheSize returns the immutable global budget.
func (b *Balancer) TotalCacheSize() uint64 {
	return b.totalCacheSize
}

// IsReadAheadOK reports whether speculative reads are still allowed. It
// starts true and permanently becomes false once cache usage first reaches
// the read-ahead threshold.
func (b *Balancer) IsReadAheadOK() bool {
	return b.readAheadOK.Load()
}

// NotifyAccess records one cache access on the given shard. It is lock-free
// and never blocks, so it is safe on the hottest paths. The shard index must
// come from the pool this balancer was built over.
func (b *Balancer) NotifyAccess(shard int) {
	b.threads[shard].accessCount.Add(1)
}

// AddEvicter registers a partition on the shard carried by ctx, which must
// be the partition's own shard. Registering a partition that is already
// present is a programming error and panics.
func (b *Balancer) AddEvicter(ctx context.Context, evicter Evicter) {
	shard := threading.MustShardID(ctx)
	info := &b.threads[shard]

	info.mu.Lock()
	defer info.mu.Unlock()
	if _, ok := info.evicters[evicter]; ok {
		panic(fmt.Sprintf("cache balancer: evicter registered twice on shard %d", shard))
	}
	info.evicters[evicter] = struct{}{}
	b.scope.Gauge(metricsconstants.CacheBalancerRegisteredEvicters).Update(float64(b.evicterTotal.Add(1)))
}

// RemoveEvicter deregisters a partition from the shard carried by ctx, which
// must be the partition's own shard. Removing a partition that was never
// registered is a programming error and panics.
func (b *Balancer) RemoveEvicter(ctx context.Context, evicter Evicter) {
	shard := threading.MustShardID(ctx)
	info := &b.threads[shard]

	info.mu.Lock()
	defer info.mu.Unlock()
	if _, ok := info.evicters[evicter]; !ok {
		panic(fmt.Sprintf("cache balancer: evicter not registered on shard %d", shard))
	}
	delete(info.evicters, evicter)
	b.scope.Gauge(metricsconstants.CacheBalancerRegisteredEvicters).Update(float64(b.evicterTotal.Add(-1)))
}

// Start launches the trigger loop and the rebalance worker.
func (b *Balancer) Start() error {
	if !b.status.CompareAndSwap(statusInitialized, statusStarted) {
		return errors.New("cache balancer is already started")
	}
	if err := b.rebalanceQueue.Start(); err != nil {
		return err
	}
	b.logger.Info("Starting", tag.Shards(len(b.threads)), tag.LimitBytes(b.totalCacheSize))
	b.wg.Add(1)
	go b.tickLoop()
	return nil
}

// Stop halts the trigger loop, then drains the rebalance worker. A pass that
// is running or queued completes first, so the pool must still be running
// when Stop is called.
func (b *Balancer) Stop() error {
	if !b.status.CompareAndSwap(statusStarted, statusStopped) {
		return errors.New("cache balancer is not running")
	}
	b.logger.Info("Stopping")
	close(b.stopC)
	b.wg.Wait()
	return b.rebalanceQueue.Stop()
}

func (b *Balancer) tickLoop() {
	defer b.wg.Done()
	ticker := b.timeSource.NewTicker(rebalanceCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-b.stopC:
			return
		case <-ticker.Chan():
			b.maybeTriggerRebalance()
		}
	}
}

// maybeTriggerRebalance decides on each tick whether a pass is due: always
// once the timeout has elapsed since the last trigger, earlier when the
// accumulated access count crosses the threshold.
func (b *Balancer) maybeTriggerRebalance() {
	now := b.timeSource.Now()
	if now.Sub(b.lastRebalance) < rebalanceTimeout {
		var totalAccesses uint64
		for i := range b.threads {
			totalAccesses += b.threads[i].accessCount.Load()
		}
		if totalAccesses < rebalanceAccessCountThreshold {
			b.scope.Counter(metricsconstants.CacheBalancerRebalanceSkipped).Inc(1)
			return
		}
	}

	// Stamp before enqueueing, not after the pass completes.
	b.lastRebalance = now

	if !b.rebalanceQueue.TrySubmit(b.rebalance) {
		// A pass is already running with another queued behind it; the
		// queued one will observe state at least as fresh as this tick.
		b.scope.Counter(metricsconstants.CacheBalancerRebalanceDropped).Inc(1)
		return
	}
	b.scope.Counter(metricsconstants.CacheBalancerRebalanceTriggered).Inc(1)
}
