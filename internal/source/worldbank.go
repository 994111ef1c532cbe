package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/praevisio/vigilance/internal/domain/entity"
	"github.com/praevisio/vigilance/pkg/fetch"
)

const (
	DefaultWorldBankURL = "https://api.worldbank.org/v2"

	IndicatorGDPGrowth = "NY.GDP.MKTP.KD.ZG"
	IndicatorInflation = "FP.CPI.TOTL.ZG"
)

var errNoObservation = errors.New("no observation")

type worldBankObservation struct {
	Indicator struct {
		ID    string `json:"id"`
		Value string `json:"value"`
	} `json:"indicator"`
	Country struct {
		Value string `json:"value"`
	} `json:"country"`
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

// WorldBank reads the most recent observation of one indicator. It serves both
// the economic and the food-price domains.
type WorldBank struct {
	client    HTTPClient
	url       string
	domain    entity.Domain
	country   string
	indicator string
}

func NewWorldBank(client HTTPClient, baseURL string, domain entity.Domain, country, indicator string) WorldBank {
	if baseURL == "" {
		baseURL = DefaultWorldBankURL
	}

	if country == "" {
		country = "WLD"
	}

	return WorldBank{
		client:    client,
		url:       baseURL,
		domain:    domain,
		country:   country,
		indicator: indicator,
	}
}

func (w WorldBank) Domain() entity.Domain {
	return w.domain
}

func (w WorldBank) Fetch(ctx context.Context) (any, error) {
	return w.FetchReading(ctx)
}

func (w WorldBank) Fallback(context.Context) any {
	value := 2.5
	if w.domain == entity.DomainFood {
		value = 5.1
	}

	return entity.IndicatorReading{
		Indicator: w.indicator,
		Name:      fmt.Sprintf("%s (fallback)", w.indicator),
		Country:   w.country,
		Period:    "2023",
		Value:     &value,
	}
}

func (w WorldBank) FetchReading(ctx context.Context) (entity.IndicatorReading, error) {
	endpoint := fmt.Sprintf("%s/country/%s/indicator/%s?%s",
		w.url,
		url.PathEscape(w.country),
		url.PathEscape(w.indicator),
		url.Values{"format": {"json"}, "mrnev": {"1"}}.Encode(),
	)

	// The API answers [metadata, observations] or [error message]
	pages := []json.RawMessage{}

	err := getJSON(ctx, w.client, endpoint, &pages)
	if err != nil {
		return entity.IndicatorReading{}, err
	}

	if len(pages) < 2 {
		return entity.IndicatorReading{}, fetch.NewErrMalformedResponse(fmt.Errorf("%s: %w", w.indicator, errNoObservation))
	}

	observations := []worldBankObservation{}

	err = json.Unmarshal(pages[1], &observations)
	if err != nil {
		return entity.IndicatorReading{}, fetch.NewErrMalformedResponse(fmt.Errorf("failed to unmarshal observations: %w", err))
	}

	if len(observations) == 0 {
		return entity.IndicatorReading{}, fetch.NewErrMalformedResponse(fmt.Errorf("%s: %w", w.indicator, errNoObservation))
	}

	selected := observations[0]

	for _, obs := range observations {
		if obs.Value != nil {
			selected = obs

			break
		}
	}

	return entity.IndicatorReading{
		Indicator: selected.Indicator.ID,
		Name:      selected.Indicator.Value,
		Country:   selected.Country.Value,
		Period:    selected.Date,
		Value:     selected.Value,
	}, nil
}
