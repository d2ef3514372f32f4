package canary

import (
	"net/http"

	"github.com/uber-go/tally"
	"go.uber.org/fx"

	"github.com/qiubz/rethinkdb/buffercache/balancer"
	"github.com/qiubz/rethinkdb/common/clock"
	"github.com/qiubz/rethinkdb/common/log"
	"github.com/qiubz/rethinkdb/common/threading"
)

// Module assembles a complete canary: the shard pool, the balancer, one
// tracker and load generator per shard, the report loop and the ops server.
// The enclosing app supplies Config, log.Logger, tally.Scope and
// clock.TimeSource; an http.Handler for /metrics is optional.
//
// Lifecycle hooks are appended pool, balancer, canary, ops server, so fx
// stops them in reverse: traffic drains before the balancer goes away, and
// the pool outlives everything that submits to it.
func Module() fx.Option {
	return fx.Module("cache-balancer-canary", opts())
}

func opts() fx.Option {
	return fx.Options(
		fx.Provide(newPool),
		fx.Provide(newBalancer),
		fx.Provide(New),
		fx.Provide(newOpsServer),

		fx.Invoke(func(lc fx.Lifecycle, pool *threading.Pool) {
			lc.Append(fx.StartStopHook(pool.Start, pool.Stop))
		}),
		fx.Invoke(func(lc fx.Lifecycle, bal *balancer.Balancer) {
			lc.Append(fx.StartStopHook(bal.Start, bal.Stop))
		}),
		fx.Invoke(func(lc fx.Lifecycle, c *Canary) {
			lc.Append(fx.StartStopHook(c.Start, c.Stop))
		}),
		fx.Invoke(func(lc fx.Lifecycle, s *OpsServer) {
			lc.Append(fx.StartStopHook(s.Start, s.Stop))
		}),
	)
}

func newPool(cfg Config, logger log.Logger) *threading.Pool {
	return threading.NewPool(cfg.Cache.Shards, cfg.Cache.TaskQueueSize, logger)
}

func newBalancer(
	cfg Config,
	pool *threading.Pool,
	timeSource clock.TimeSource,
	logger log.Logger,
	scope tally.Scope,
) *balancer.Balancer {
	return balancer.New(cfg.Cache.TotalCacheSize, pool, timeSource, logger, scope)
}

type opsServerParams struct {
	fx.In

	Config   Config
	Balancer *balancer.Balancer
	Canary   *Canary
	Metrics  http.Handler `optional:"true"`
	Logger   log.Logger
}

func newOpsServer(params opsServerParams) *OpsServer {
	return NewOpsServer(params.Config, params.Balancer, params.Canary.Trackers(), params.Metrics, params.Logger)
}
