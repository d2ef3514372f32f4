package balancer

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/qiubz/rethinkdb/buffercache/metricsconstants"
	"github.com/qiubz/rethinkdb/common/log/tag"
)

// cacheData is one partition's record within a single rebalance pass.
type cacheData struct {
	evicter     Evicter
	oldSize     uint64
	bytesLoaded uint64
	newSize     uint64
}

// rebalance runs one full pass: snapshot every shard's registry, compute new
// sizes, push them out to their owning shards and update the read-ahead
// latch. The serial queue guarantees at most one instance runs at a time, so
// a pass always sees the access counts and registrations of the previous
// pass fully applied.
func (b *Balancer) rebalance(ctx context.Context) {
	start := b.timeSource.Now()

	perThread, totalEvicters, totalBytesLoaded := b.snapshot()

	// An empty registry or a zero budget is a legitimate steady state, not
	// an error. Nothing changes, including the latch.
	if b.totalCacheSize == 0 || totalEvicters == 0 {
		b.scope.Counter(metricsconstants.CacheBalancerRebalanceAborted).Inc(1)
		b.logger.Debug("Skipping rebalance pass", tag.Evicters(totalEvicters))
		return
	}

	computeNewSizes(perThread, b.totalCacheSize, totalEvicters, totalBytesLoaded)

	usage, err := b.applyNewSizes(ctx, perThread)
	if err != nil {
		b.scope.Counter(metricsconstants.CacheBalancerDispatchFailures).Inc(1)
		b.logger.Error("Rebalance dispatch failed", tag.Error(err))
		return
	}

	b.updateReadAhead(usage)

	b.scope.Counter(metricsconstants.CacheBalancerRebalanceApplied).Inc(1)
	b.scope.Gauge(metricsconstants.CacheBalancerCacheUsageBytes).Update(float64(usage))
	b.scope.
		Histogram(metricsconstants.CacheBalancerRebalanceLatency, metricsconstants.CacheBalancerRebalanceLatencyBuckets).
		RecordDuration(b.timeSource.Since(start))
}

// snapshot copies every registered partition's current limit and loaded
// counter under its shard's mutex, shard by shard in ascending order.
func (b *Balancer) snapshot() ([][]cacheData, int, uint64) {
	perThread := make([][]cacheData, len(b.threads))
	totalEvicters := 0
	var totalBytesLoaded uint64

	for i := range b.threads {
		info := &b.threads[i]

		info.mu.Lock()
		perThread[i] = make([]cacheData, 0, len(info.evicters))
		totalEvicters += len(info.evicters)
		for evicter := range info.evicters {
			data := cacheData{
				evicter:     evicter,
				oldSize:     evicter.MemoryLimit(),
				bytesLoaded: evicter.BytesLoaded(),
			}
			perThread[i] = append(perThread[i], data)
			totalBytesLoaded += data.bytesLoaded
		}
		info.mu.Unlock()
	}
	return perThread, totalEvicters, totalBytesLoaded
}

// computeNewSizes fills in newSize for every record. Sizing is proportional:
// a partition keeps its old allocation plus its own load, minus the share of
// the cache-wide load its old allocation already entitled it to. The
// remainder loop then redistributes rounding error and underflow clamping so
// the new sizes sum to exactly totalCacheSize.
//
// Requires totalCacheSize > 0 and totalEvicters > 0.
func computeNewSizes(perThread [][]cacheData, totalCacheSize uint64, totalEvicters int, totalBytesLoaded uint64) {
	var totalNewSizes uint64
	for i := range perThread {
		for j := range perThread[i] {
			data := &perThread[i][j]

			attributed := float64(data.oldSize) / float64(totalCacheSize) * float64(totalBytesLoaded)

			newSize := int64(data.bytesLoaded) + int64(data.oldSize) - int64(attributed)
			if newSize < 0 {
				newSize = 0
			}
			data.newSize = uint64(newSize)
			totalNewSizes += data.newSize
		}
	}

	// extra > 0 leaves budget to hand out, extra < 0 means the clamped sizes
	// overshoot. Each full walk either finishes or strictly shrinks |extra|,
	// so the loop terminates.
	extra := int64(totalCacheSize) - int64(totalNewSizes)
	for extra != 0 {
		delta := extra / int64(totalEvicters)
		if delta == 0 {
			if extra < 0 {
				delta = -1
			} else {
				delta = 1
			}
		}
		for i := 0; i < len(perThread) && extra != 0; i++ {
			for j := 0; j < len(perThread[i]) && extra != 0; j++ {
				data := &perThread[i][j]
				if int64(data.newSize)+delta >= 0 {
					data.newSize = uint64(int64(data.newSize) + delta)
					extra -= delta
				} else {
					extra += int64(data.newSize)
					data.newSize = 0
				}
			}
		}
	}
}

// applyNewSizes fans the computed limits out to their owning shards, waits
// for all of them, and returns the cache's summed in-memory footprint.
//
// The shard body reads the registry without its mutex. Registration for
// shard i only ever mutates on shard i, and the body itself runs on shard i,
// so the shard's serial execution order is the synchronization. A partition
// that was deregistered after the snapshot is skipped.
func (b *Balancer) applyNewSizes(ctx context.Context, perThread [][]cacheData) (uint64, error) {
	usage := make([]uint64, len(b.threads))

	var g errgroup.Group
	for i := range b.threads {
		i := i
		g.Go(func() error {
			return b.pool.Call(ctx, i, func(context.Context) {
				info := &b.threads[i]

				var threadUsage uint64
				for j := range perThread[i] {
					data := &perThread[i][j]
					if _, ok := info.evicters[data.evicter]; !ok {
						continue
					}
					data.evicter.UpdateMemoryLimit(data.newSize)
					threadUsage += data.evicter.InMemorySize()
				}
				usage[i] = threadUsage

				info.accessCount.Store(0)
			})
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	var total uint64
	for _, u := range usage {
		total += u
	}
	return total, nil
}

// updateReadAhead applies the latch: while read-ahead is still enabled, a
// pass that sees usage at or above nine tenths of the budget turns it off
// for good.
func (b *Balancer) updateReadAhead(usage uint64) {
	if !b.readAheadOK.Load() {
		return
	}
	stillOK := usage*readAheadRatioDenominator < b.totalCacheSize*readAheadRatioNumerator
	if !stillOK {
		b.logger.Info("Disabling read-ahead", tag.UsageBytes(usage), tag.LimitBytes(b.totalCacheSize))
	}
	b.readAheadOK.Store(stillOK)
	b.scope.Gauge(metricsconstants.CacheBalancerReadAheadEnabled).Update(boolToFloat(stillOK))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
