package balancer

//go:generate mockgen -package $GOPACKAGE -source $GOFILE -destination=evicter_mock.go Evicter

// Evicter is one cache partition as the balancer sees it. The partition
// enforces its own eviction limit; the balancer reads its counters and hands
// down new limits.
//
// MemoryLimit and BytesLoaded are read during the snapshot step from the
// balancer's worker goroutine, under the owning shard's registration mutex,
// so they must be safe to call from off the owning shard. UpdateMemoryLimit
// and InMemorySize are called only on the owning shard, during the apply
// step, and must not block.
type Evicter interface {
	// MemoryLimit returns the byte limit the partition currently enforces.
	MemoryLimit() uint64
	// BytesLoaded returns the bytes loaded into memory since the previous
	// applied rebalance. The counter drains when UpdateMemoryLimit runs.
	BytesLoaded() uint64
	// InMemorySize returns the partition's current in-memory footprint in
	// bytes.
	InMemorySize() uint64
	// UpdateMemoryLimit applies a newly computed byte limit and resets the
	// loaded counter.
	UpdateMemoryLimit(limit uint64)
}
