package canary

import (
	"context"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/uber-go/tally"

	"github.com/qiubz/rethinkdb/buffercache/balancer"
	"github.com/qiubz/rethinkdb/buffercache/eviction"
	"github.com/qiubz/rethinkdb/buffercache/metricsconstants"
	"github.com/qiubz/rethinkdb/common/clock"
	"github.com/qiubz/rethinkdb/common/log"
	"github.com/qiubz/rethinkdb/common/log/tag"
)

// Reporter periodically logs a cache-wide summary line and per-partition
// detail, and publishes the observed op rate. Tracker counters are atomics,
// so reading them from the report loop does not disturb the shard executors.
type Reporter struct {
	interval   time.Duration
	bal        *balancer.Balancer
	trackers   []*eviction.Tracker
	ops        *xsync.Counter
	timeSource clock.TimeSource
	logger     log.Logger
	scope      tally.Scope

	lastOps  int64
	lastTime time.Time

	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewReporter(
	cfg Config,
	bal *balancer.Balancer,
	trackers []*eviction.Tracker,
	ops *xsync.Counter,
	timeSource clock.TimeSource,
	logger log.Logger,
	scope tally.Scope,
) *Reporter {
	return &Reporter{
		interval:   cfg.ReportInterval,
		bal:        bal,
		trackers:   trackers,
		ops:        ops,
		timeSource: timeSource,
		logger:     logger.WithTags(tag.ComponentCanary),
		scope:      scope,
		stopChan:   make(chan struct{}),
	}
}

func (r *Reporter) Start(ctx context.Context) {
	r.logger.Info("Starting canary reporter")
	r.lastTime = r.timeSource.Now()
	r.wg.Add(1)
	go r.run(ctx)
}

func (r *Reporter) Stop() {
	r.logger.Info("Stopping canary reporter")
	close(r.stopChan)
	r.wg.Wait()
}

func (r *Reporter) run(ctx context.Context) {
	defer r.wg.Done()

	ticker := r.timeSource.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		case <-ticker.Chan():
			r.step()
		}
	}
}

func (r *Reporter) step() {
	var usage, limits uint64
	for _, tr := range r.trackers {
		used := tr.InMemorySize()
		limit := tr.MemoryLimit()
		usage += used
		limits += limit
		r.logger.Debug("Partition state",
			tag.CacheID(tr.ID()),
			tag.Shard(tr.Shard()),
			tag.LimitBytes(limit),
			tag.UsageBytes(used))
	}

	now := r.timeSource.Now()
	opsNow := r.ops.Value()
	rate := float64(0)
	if elapsed := now.Sub(r.lastTime); elapsed > 0 {
		rate = float64(opsNow-r.lastOps) / elapsed.Seconds()
	}
	r.lastOps = opsNow
	r.lastTime = now

	r.scope.Gauge(metricsconstants.CanaryOpsPerSecond).Update(rate)
	r.logger.Info("Cache traffic report",
		tag.Dynamic("opsPerSecond", rate),
		tag.UsageBytes(usage),
		tag.LimitBytes(limits),
		tag.Evicters(len(r.trackers)),
		tag.ReadAhead(r.bal.IsReadAheadOK()))
}
