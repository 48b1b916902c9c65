// Package exporters publishes stream metrics over HTTP and SSE.
package exporters

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPHandler serves the default registry, which holds the promauto stream
// collectors, together with a build info gauge. OpenMetrics is negotiated
// when the scraper asks for it.
func HTTPHandler() http.Handler {
	registerBuildInfo()
	return promhttp.InstrumentMetricHandler(
		prometheus.DefaultRegisterer,
		promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			ErrorHandling:     promhttp.ContinueOnError,
		}),
	)
}

func registerBuildInfo() {
	err := prometheus.Register(collectors.NewBuildInfoCollector())
	var already prometheus.AlreadyRegisteredError
	if err != nil && !errors.As(err, &already) {
		panic(err)
	}
}
