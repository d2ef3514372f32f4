package eviction

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/qiubz/rethinkdb/buffercache/balancer"
	"github.com/qiubz/rethinkdb/common/log"
	"github.com/qiubz/rethinkdb/common/log/tag"
	"github.com/qiubz/rethinkdb/common/threading"
)

// ReclaimFunc frees up to excess bytes of cache content and returns how many
// bytes it actually released. It runs on the partition's own shard. This is
// the seam where an eviction policy plugs in; the tracker itself only does
// the byte accounting.
type ReclaimFunc func(excess uint64) uint64

// Tracker is the accounting half of one cache partition. It counts the
// partition's in-memory footprint and the bytes loaded since the last
// applied rebalance, reports accesses to the balancer, and accepts the
// limits the balancer hands down. It implements balancer.Evicter.
//
// NotifyAccess, NotifyLoad and NotifyUnload must be called on the owning
// shard. The counters are atomics because the balancer's snapshot step reads
// them from its own goroutine.
type Tracker struct {
	id    string
	shard int

	bal     *balancer.Balancer
	reclaim ReclaimFunc
	logger  log.Logger

	memoryLimit atomic.Uint64
	bytesLoaded atomic.Uint64
	inMemory    atomic.Uint64
}

// NewTracker creates a tracker for the given shard with an initial limit of
// zero; the first rebalance pass assigns its real share. A nil reclaim keeps
// plain accounting, trimming the tracked footprint to the limit.
func NewTracker(id string, shard int, bal *balancer.Balancer, reclaim ReclaimFunc, logger log.Logger) *Tracker {
	t := &Tracker{
		id:      id,
		shard:   shard,
		bal:     bal,
		reclaim: reclaim,
		logger:  logger.WithTags(tag.ComponentEvictionTracker, tag.CacheID(id), tag.Shard(shard)),
	}
	if t.reclaim == nil {
		t.reclaim = func(excess uint64) uint64 { return excess }
	}
	return t
}

// ID returns the tracker's identifier, used in logs and reports.
func (t *Tracker) ID() string {
	return t.id
}

// Shard returns the shard that owns this partition.
func (t *Tracker) Shard() int {
	return t.shard
}

// Register adds the partition to the balancer. ctx must be a task context on
// the tracker's own shard.
func (t *Tracker) Register(ctx context.Context) {
	t.assertOwnShard(ctx)
	t.bal.AddEvicter(ctx, t)
	t.logger.Debug("Registered with balancer")
}

// Deregister removes the partition from the balancer. ctx must be a task
// context on the tracker's own shard.
func (t *Tracker) Deregister(ctx context.Context) {
	t.assertOwnShard(ctx)
	t.bal.RemoveEvicter(ctx, t)
	t.logger.Debug("Deregistered from balancer")
}

func (t *Tracker) assertOwnShard(ctx context.Context) {
	if shard := threading.MustShardID(ctx); shard != t.shard {
		panic(fmt.Sprintf("eviction: tracker for shard %d used on shard %d", t.shard, shard))
	}
}

// NotifyAccess records one access against this partition. It feeds the
// balancer's trigger policy and never blocks.
func (t *Tracker) NotifyAccess() {
	t.bal.NotifyAccess(t.shard)
}

// NotifyLoad records n bytes brought into memory. A load counts as an
// access.
func (t *Tracker) NotifyLoad(n uint64) {
	if n == 0 {
		t.NotifyAccess()
		return
	}
	t.bytesLoaded.Add(n)
	t.inMemory.Add(n)
	t.NotifyAccess()
}

// NotifyUnload records n bytes leaving memory.
func (t *Tracker) NotifyUnload(n uint64) {
	if n == 0 {
		return
	}
	// Two's complement subtract.
	t.inMemory.Add(^(n - 1))
}

// MemoryLimit returns the limit the partition currently enforces.
func (t *Tracker) MemoryLimit() uint64 {
	return t.memoryLimit.Load()
}

// BytesLoaded returns the bytes loaded since the last applied rebalance.
func (t *Tracker) BytesLoaded() uint64 {
	return t.bytesLoaded.Load()
}

// InMemorySize returns the partition's current tracked footprint.
func (t *Tracker) InMemorySize() uint64 {
	return t.inMemory.Load()
}

// UpdateMemoryLimit stores the newly assigned limit, drains the loaded
// counter and reclaims whatever the new limit no longer covers. Called by
// the balancer's apply step on the owning shard.
func (t *Tracker) UpdateMemoryLimit(limit uint64) {
	t.memoryLimit.Store(limit)
	t.bytesLoaded.Store(0)

	inMemory := t.inMemory.Load()
	if inMemory <= limit {
		return
	}

	excess := inMemory - limit
	freed := t.reclaim(excess)
	if freed > inMemory {
		freed = inMemory
	}
	t.NotifyUnload(freed)
	t.logger.Debug("Reclaimed over-limit bytes", tag.Bytes(freed), tag.LimitBytes(limit))
}
