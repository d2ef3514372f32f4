package metricsconstants

import (
	"time"

	"github.com/uber-go/tally"
)

const (
	// Counter metrics
	CacheBalancerRebalanceTriggered = "cache_balancer_rebalance_triggered"
	CacheBalancerRebalanceSkipped   = "cache_balancer_rebalance_skipped"
	CacheBalancerRebalanceDropped   = "cache_balancer_rebalance_dropped"
	CacheBalancerRebalanceAborted   = "cache_balancer_rebalance_aborted"
	CacheBalancerRebalanceApplied   = "cache_balancer_rebalance_applied"
	CacheBalancerDispatchFailures   = "cache_balancer_dispatch_failures"
	CanaryOps                       = "canary_ops"
	CanaryLoadedBytes               = "canary_loaded_bytes"

	// Gauge metrics
	CacheBalancerRegisteredEvicters = "cache_balancer_registered_evicters"
	CacheBalancerCacheUsageBytes    = "cache_balancer_cache_usage_bytes"
	CacheBalancerReadAheadEnabled   = "cache_balancer_read_ahead_enabled"
	CanaryOpsPerSecond              = "canary_ops_per_second"

	// Histogram/Timer metrics
	CacheBalancerRebalanceLatency = "cache_balancer_rebalance_latency"
)

var (
	// Histogram buckets for the rebalance pass, which normally completes in
	// well under its 20ms check interval.
	CacheBalancerRebalanceLatencyBuckets = tally.DurationBuckets([]time.Duration{
		0,
		100 * time.Microsecond,
		500 * time.Microsecond,
		1 * time.Millisecond,
		5 * time.Millisecond,
		10 * time.Millisecond,
		25 * time.Millisecond,
		50 * time.Millisecond,
		100 * time.Millisecond,
		250 * time.Millisecond,
		500 * time.Millisecond,
		1 * time.Second,
	})
)
