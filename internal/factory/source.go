package factory

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/praevisio/vigilance/internal/aggregate"
	"github.com/praevisio/vigilance/internal/config"
	"github.com/praevisio/vigilance/internal/domain/entity"
	"github.com/praevisio/vigilance/internal/source"
	"github.com/praevisio/vigilance/pkg/fetch"
)

// Sources groups what the routes need from the external providers.
type Sources struct {
	Seismic    fetch.Fetcher[[]entity.SeismicEvent]
	Aggregator *aggregate.Aggregator
}

func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 4
	transport.IdleConnTimeout = 30 * time.Second

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

func RetryPolicy(conf config.Retry, domain entity.Domain) fetch.RetryPolicy {
	return fetch.RetryPolicy{
		MaxAttempts:      conf.Attempts,
		BaseDelay:        conf.BaseDelay(),
		Backoff:          fetch.BackoffType(conf.Backoff),
		ExhaustedMessage: fmt.Sprintf("Failed to fetch %s data.", domain),
	}
}

/*
 * decorateFetcher decorates a provider call as follow:
 *
 * panic --> duration --> retry --> provider
 */
func decorateFetcher[T any](f fetch.Fetcher[T], domain entity.Domain, policy fetch.RetryPolicy, metrics *fetch.Metrics, clock clockwork.Clock) fetch.Fetcher[T] {
	ret := fetch.NewRetryFetcher(f, policy)
	ret = fetch.NewDurationMetricsFetcher(ret, string(domain), metrics, clock)

	return fetch.NewPanicHandlerFetcher(ret)
}

// CreateSources builds one decorated fetcher per domain and the aggregator over them.
func CreateSources(conf config.Sources, client source.HTTPClient, registry prometheus.Registerer, clock clockwork.Clock, logger logr.Logger) (Sources, error) {
	metrics, err := fetch.NewMetrics(registry, fetch.MetricsConfig{Namespace: metricsNamespace})
	if err != nil {
		return Sources{}, fmt.Errorf("failed to create fetch metrics: %w", err)
	}

	usgs := source.NewUSGS(client, conf.USGS.URL, conf.USGS.Limit)

	seismic := decorateFetcher[[]entity.SeismicEvent](
		fetch.FetcherFunc[[]entity.SeismicEvent](usgs.FetchEvents),
		entity.DomainSeismic,
		RetryPolicy(conf.USGS.Retry, entity.DomainSeismic),
		metrics,
		clock,
	)

	providers := []struct {
		provider source.Provider
		retry    config.Retry
	}{
		{source.NewOpenMeteo(client, conf.Climate.URL, conf.Climate.Latitude, conf.Climate.Longitude), conf.Climate.Retry},
		{source.NewWorldBank(client, conf.Economic.URL, entity.DomainEconomic, conf.Economic.Country, conf.Economic.Indicator), conf.Economic.Retry},
		{source.NewMastodon(client, conf.Social.URL, conf.Social.Limit), conf.Social.Retry},
		{source.NewWorldBank(client, conf.Food.URL, entity.DomainFood, conf.Food.Country, conf.Food.Indicator), conf.Food.Retry},
	}

	sources := []aggregate.Source{
		aggregate.NewSource(entity.DomainSeismic, seismic, source.SeismicFallback),
	}

	for _, p := range providers {
		domain := p.provider.Domain()

		fetcher := decorateFetcher[any](
			fetch.FetcherFunc[any](p.provider.Fetch),
			domain,
			RetryPolicy(p.retry, domain),
			metrics,
			clock,
		)

		sources = append(sources, aggregate.NewSource(domain, fetcher, p.provider.Fallback))
	}

	aggregator, err := aggregate.NewAggregator(sources, clock, conf.Timeout, registry, logger)
	if err != nil {
		return Sources{}, fmt.Errorf("failed to create aggregator: %w", err)
	}

	return Sources{
		Seismic:    seismic,
		Aggregator: aggregator,
	}, nil
}
