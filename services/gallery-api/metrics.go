package main

import (
	"io"
	"net/http"
	"time"

	"github.com/uber-go/tally"
	promreporter "github.com/uber-go/tally/prometheus"
)

// newMetricsScope returns the root scope of the service. With metrics
// enabled the scope reports to a prometheus registry served by the returned
// handler; otherwise the handler is nil and measurements are discarded.
func newMetricsScope(cfg Config) (tally.Scope, io.Closer, http.Handler) {
	if !cfg.Metrics.Enabled {
		scope, closer := tally.NewRootScope(tally.ScopeOptions{
			Prefix:   "gallery",
			Reporter: tally.NullStatsReporter,
		}, time.Second)
		return scope, closer, nil
	}

	reporter := promreporter.NewReporter(promreporter.Options{})
	scope, closer := tally.NewRootScope(tally.ScopeOptions{
		Prefix:         "gallery",
		CachedReporter: reporter,
		Separator:      promreporter.DefaultSeparator,
	}, time.Second)
	return scope, closer, reporter.HTTPHandler()
}
