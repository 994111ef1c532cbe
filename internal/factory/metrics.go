package factory

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	versioncollector "github.com/prometheus/client_golang/prometheus/collectors/version"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/praevisio/vigilance/internal/config"
)

const metricsNamespace = "praevisio"

// CreateRegistry returns a registry carrying the runtime and build info collectors.
func CreateRegistry() (*prometheus.Registry, error) {
	ret := prometheus.NewRegistry()

	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		versioncollector.NewCollector(metricsNamespace),
	} {
		err := ret.Register(c)
		if err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}

	return ret, nil
}

func CreatePrometheusServer(conf config.Metrics, gatherer prometheus.Gatherer) *http.Server {
	ret := &http.Server{Addr: fmt.Sprintf(":%v", conf.Port)}
	ret.SetKeepAlivesEnabled(true)
	ret.IdleTimeout = 5 * time.Second
	ret.ReadHeaderTimeout = 5 * time.Second

	router := http.NewServeMux()
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	ret.Handler = router

	return ret
}
