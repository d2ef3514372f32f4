package canary

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/uber-go/tally"

	"github.com/qiubz/rethinkdb/buffercache/balancer"
	"github.com/qiubz/rethinkdb/buffercache/eviction"
	"github.com/qiubz/rethinkdb/common/clock"
	"github.com/qiubz/rethinkdb/common/log"
	"github.com/qiubz/rethinkdb/common/log/tag"
	"github.com/qiubz/rethinkdb/common/threading"
)

// Canary wires one tracker and one load generator onto every pool shard and
// keeps the set running until stopped. Generator weights grow with the shard
// number, so the balancer has real skew to chase.
type Canary struct {
	pool       *threading.Pool
	logger     log.Logger
	ops        *xsync.Counter
	trackers   []*eviction.Tracker
	generators []*LoadGenerator
	reporter   *Reporter
}

func New(
	cfg Config,
	pool *threading.Pool,
	bal *balancer.Balancer,
	timeSource clock.TimeSource,
	logger log.Logger,
	scope tally.Scope,
) *Canary {
	c := &Canary{
		pool:   pool,
		logger: logger.WithTags(tag.ComponentCanary),
		ops:    xsync.NewCounter(),
	}
	for shard := 0; shard < pool.Shards(); shard++ {
		tracker := eviction.NewTracker(uuid.New().String(), shard, bal, nil, logger)
		c.trackers = append(c.trackers, tracker)
		c.generators = append(c.generators,
			NewLoadGenerator(shard, shard+1, cfg, pool, tracker, timeSource, logger, scope, c.ops))
	}
	c.reporter = NewReporter(cfg, bal, c.trackers, c.ops, timeSource, logger, scope)
	return c
}

// Trackers returns the per-shard trackers, ordered by shard.
func (c *Canary) Trackers() []*eviction.Tracker {
	return c.trackers
}

// Start registers every tracker on its shard and starts the generators and
// the report loop. ctx bounds the registration calls only; the loops run
// until Stop.
func (c *Canary) Start(ctx context.Context) error {
	c.logger.Info("Starting cache balancer canary", tag.Shards(c.pool.Shards()))
	for _, tracker := range c.trackers {
		tracker := tracker
		err := c.pool.Call(ctx, tracker.Shard(), func(ctx context.Context) {
			tracker.Register(ctx)
		})
		if err != nil {
			return fmt.Errorf("register tracker on shard %d: %w", tracker.Shard(), err)
		}
	}

	runCtx := context.WithoutCancel(ctx)
	for _, g := range c.generators {
		g.Start(runCtx)
	}
	c.reporter.Start(runCtx)
	return nil
}

// Stop halts the traffic, then deregisters the trackers. The pool must
// still be running so the deregistrations can reach their shards.
func (c *Canary) Stop(ctx context.Context) error {
	c.logger.Info("Stopping cache balancer canary")
	for _, g := range c.generators {
		g.Stop()
	}
	c.reporter.Stop()

	var errs []error
	for _, tracker := range c.trackers {
		tracker := tracker
		err := c.pool.Call(ctx, tracker.Shard(), func(ctx context.Context) {
			tracker.Deregister(ctx)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("deregister tracker on shard %d: %w", tracker.Shard(), err))
		}
	}
	return errors.Join(errs...)
}
