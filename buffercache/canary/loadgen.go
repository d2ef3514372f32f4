package canary

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/uber-go/tally"

	"github.com/qiubz/rethinkdb/buffercache/eviction"
	"github.com/qiubz/rethinkdb/buffercache/metricsconstants"
	"github.com/qiubz/rethinkdb/common/clock"
	"github.com/qiubz/rethinkdb/common/log"
	"github.com/qiubz/rethinkdb/common/log/tag"
	"github.com/qiubz/rethinkdb/common/threading"
)

// Block sizes span 256 bytes to 2 KiB, roughly the spread of pages a real
// cache holds.
const (
	minBlockSize  = 256
	blockSizeSpan = 1792
)

// LoadGenerator drives synthetic traffic at one shard's tracker. Each tick
// it submits a batch to the shard executor; the batch mixes hits, loads and
// evictions, with the mix and block sizes derived from a hash over generated
// keys. Higher-weight generators submit proportionally larger batches, which
// keeps the shards unevenly loaded and makes the balancer's limit shifts
// visible.
type LoadGenerator struct {
	shard      int
	weight     int
	opsPerTick int
	interval   time.Duration

	pool       *threading.Pool
	tracker    *eviction.Tracker
	timeSource clock.TimeSource
	logger     log.Logger
	scope      tally.Scope
	ops        *xsync.Counter

	runID string
	seq   uint64 // only touched inside tasks on the owning shard

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewLoadGenerator creates a generator for the given shard. The weight
// multiplies the batch size; ops counts completed operations across all
// generators sharing it.
func NewLoadGenerator(
	shard int,
	weight int,
	cfg Config,
	pool *threading.Pool,
	tracker *eviction.Tracker,
	timeSource clock.TimeSource,
	logger log.Logger,
	scope tally.Scope,
	ops *xsync.Counter,
) *LoadGenerator {
	return &LoadGenerator{
		shard:      shard,
		weight:     weight,
		opsPerTick: cfg.OpsPerTick,
		interval:   cfg.LoadInterval,
		pool:       pool,
		tracker:    tracker,
		timeSource: timeSource,
		logger:     logger.WithTags(tag.ComponentLoadGenerator, tag.Shard(shard)),
		scope:      scope,
		ops:        ops,
		runID:      uuid.New().String(),
		stopChan:   make(chan struct{}),
	}
}

func (g *LoadGenerator) Start(ctx context.Context) {
	g.logger.Info("Starting load generator")
	g.wg.Add(1)
	go g.run(ctx)
}

func (g *LoadGenerator) Stop() {
	g.logger.Info("Stopping load generator")
	close(g.stopChan)
	g.wg.Wait()
}

func (g *LoadGenerator) run(ctx context.Context) {
	defer g.wg.Done()

	ticker := g.timeSource.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-g.stopChan:
			return
		case <-ticker.Chan():
			g.step()
		}
	}
}

// step submits one batch to the owning shard. The generator is stopped
// before the pool during shutdown, so a rejected submit only happens when
// the two race; the batch is dropped and the next tick retries.
func (g *LoadGenerator) step() {
	err := g.pool.Submit(g.shard, func(ctx context.Context) {
		g.batch()
	})
	if err != nil && !errors.Is(err, threading.ErrPoolStopped) {
		g.logger.Error("Submitting load batch failed", tag.Error(err))
	}
}

func (g *LoadGenerator) batch() {
	n := g.opsPerTick * g.weight
	for i := 0; i < n; i++ {
		g.seq++
		key := g.runID + "/" + strconv.FormatUint(g.seq, 10)
		h := xxhash.Sum64String(key)
		size := uint64(minBlockSize + h%blockSizeSpan)
		switch h % 8 {
		case 0, 1:
			// Cold read: the block is fetched and now occupies memory.
			g.tracker.NotifyLoad(size)
			g.scope.Counter(metricsconstants.CanaryLoadedBytes).Inc(int64(size))
		case 2:
			// Drop a block, mimicking local eviction between rebalances.
			if have := g.tracker.InMemorySize(); have > 0 {
				g.tracker.NotifyUnload(min(have, size))
			}
		default:
			// Warm read served from memory.
			g.tracker.NotifyAccess()
		}
		g.ops.Add(1)
	}
	g.scope.Counter(metricsconstants.CanaryOps).Inc(int64(n))
}
