package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/uber-go/tally"
	tallyprom "github.com/uber-go/tally/prometheus"
	"github.com/urfave/cli/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/qiubz/rethinkdb/buffercache/canary"
	"github.com/qiubz/rethinkdb/common/clock"
	"github.com/qiubz/rethinkdb/common/log"
)

const metricsPrefix = "cachebalancer"

func runApp(c *cli.Context) error {
	cfg, err := canary.LoadConfig(c.String("config"))
	if err != nil {
		return err
	}

	fx.New(opts(cfg)).Run()
	return nil
}

func opts(cfg canary.Config) fx.Option {
	return fx.Options(
		fx.Supply(
			cfg,
			fx.Annotate(clock.NewRealTimeSource(), fx.As(new(clock.TimeSource))),
		),
		fx.Provide(zap.NewDevelopment),
		fx.Provide(log.NewLogger),
		fx.Provide(newMetricsScope),

		// Include the canary module
		canary.Module(),
	)
}

// newMetricsScope builds the tally root scope backed by the prometheus
// reporter and hands the scrape handler to the ops server.
func newMetricsScope(lc fx.Lifecycle) (tally.Scope, http.Handler) {
	reporter := tallyprom.NewReporter(tallyprom.Options{})
	scope, closer := tally.NewRootScope(tally.ScopeOptions{
		Prefix:         metricsPrefix,
		CachedReporter: reporter,
		Separator:      tallyprom.DefaultSeparator,
	}, time.Second)

	lc.Append(fx.StopHook(closer.Close))
	return scope, reporter.HTTPHandler()
}

func buildCLI() *cli.App {
	app := cli.NewApp()
	app.Name = "cachebalancer-canary"
	app.Usage = "Synthetic load driver for the cache balancer"
	app.Version = "0.0.1"

	app.Commands = []*cli.Command{
		{
			Name:  "start",
			Usage: "start the cache balancer canary",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "config",
					Aliases: []string{"c"},
					Value:   "",
					Usage:   "path to the canary config file, defaults plus environment when empty",
				},
			},
			Action: runApp,
		},
	}

	return app
}

func main() {
	app := buildCLI()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
