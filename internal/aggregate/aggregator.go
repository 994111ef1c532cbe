package aggregate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/praevisio/vigilance/internal/domain/entity"
	"github.com/praevisio/vigilance/pkg/fetch"
)

var ErrInvalidSources = errors.New("invalid sources")

// Source binds a domain to its decorated fetcher and its fallback.
type Source struct {
	Domain   entity.Domain
	Fetcher  fetch.Fetcher[any]
	Fallback fetch.Fallback[any]
}

// NewSource erases the payload type of a typed fetcher.
func NewSource[T any](domain entity.Domain, fetcher fetch.Fetcher[T], fallback fetch.Fallback[T]) Source {
	return Source{
		Domain: domain,
		Fetcher: fetch.FetcherFunc[any](func(ctx context.Context) (any, error) {
			return fetcher.Fetch(ctx)
		}),
		Fallback: func(ctx context.Context) any {
			return fallback(ctx)
		},
	}
}

type Aggregator struct {
	sources   []Source
	clock     clockwork.Clock
	timeout   time.Duration
	fallbacks *prometheus.CounterVec
	logger    logr.Logger
}

// NewAggregator expects exactly one source per domain. A timeout of 0 disables the per-source deadline.
func NewAggregator(sources []Source, clock clockwork.Clock, timeout time.Duration, registry prometheus.Registerer, logger logr.Logger) (*Aggregator, error) {
	byDomain := make(map[entity.Domain]Source, len(sources))

	for _, s := range sources {
		if s.Fetcher == nil || s.Fallback == nil {
			return nil, fmt.Errorf("%w: incomplete source for %s", ErrInvalidSources, s.Domain)
		}

		_, found := byDomain[s.Domain]
		if found {
			return nil, fmt.Errorf("%w: duplicate source for %s", ErrInvalidSources, s.Domain)
		}

		byDomain[s.Domain] = s
	}

	ordered := make([]Source, 0, len(entity.Domains))

	for _, domain := range entity.Domains {
		s, found := byDomain[domain]
		if !found {
			return nil, fmt.Errorf("%w: missing source for %s", ErrInvalidSources, domain)
		}

		ordered = append(ordered, s)
	}

	if len(byDomain) != len(entity.Domains) {
		return nil, fmt.Errorf("%w: unknown domain among %d sources", ErrInvalidSources, len(sources))
	}

	fallbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "praevisio",
		Name:      "source_fallback_total",
		Help:      "Number of times a source was served by its fallback.",
	}, []string{"domain"})

	err := registry.Register(fallbacks)
	if err != nil {
		return nil, fmt.Errorf("failed to register metric: %w", err)
	}

	return &Aggregator{
		sources:   ordered,
		clock:     clock,
		timeout:   timeout,
		fallbacks: fallbacks,
		logger:    logger,
	}, nil
}

// Snapshot queries every source concurrently. It never fails: a failing source is replaced by its fallback.
func (a *Aggregator) Snapshot(ctx context.Context) entity.Snapshot {
	records := make([]entity.ExternalRecord, len(a.sources))

	var group errgroup.Group

	for i, s := range a.sources {
		group.Go(func() error {
			records[i] = a.fetch(ctx, s)

			return nil
		})
	}

	_ = group.Wait()

	ret := entity.Snapshot{GeneratedAt: a.clock.Now().UTC()}

	for i, s := range a.sources {
		switch s.Domain {
		case entity.DomainSeismic:
			ret.Seismic = records[i]
		case entity.DomainClimate:
			ret.Climate = records[i]
		case entity.DomainEconomic:
			ret.Economic = records[i]
		case entity.DomainSocial:
			ret.Social = records[i]
		case entity.DomainFood:
			ret.Food = records[i]
		}
	}

	return ret
}

func (a *Aggregator) fetch(ctx context.Context, s Source) entity.ExternalRecord {
	if a.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	result := fetch.CallWithFallback(ctx, s.Fetcher, s.Fallback)

	if !result.OK {
		a.fallbacks.WithLabelValues(string(s.Domain)).Inc()
		a.logger.V(1).Info("Source degraded, serving fallback", "domain", s.Domain, "error", result.Error)
	}

	return entity.ExternalRecord{
		Payload:     result.Value,
		FetchedAt:   a.clock.Now().UTC(),
		IsMock:      !result.OK,
		SourceError: result.Error,
	}
}
