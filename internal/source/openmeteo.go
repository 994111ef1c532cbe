package source

import (
	"context"
	"errors"
	"net/url"
	"strconv"

	"github.com/praevisio/vigilance/internal/domain/entity"
	"github.com/praevisio/vigilance/pkg/fetch"
)

const DefaultOpenMeteoURL = "https://api.open-meteo.com/v1/forecast"

var errMissingCurrent = errors.New("missing current weather")

type openMeteoResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Current   *struct {
		Time        string  `json:"time"`
		Temperature float64 `json:"temperature_2m"`
		Humidity    float64 `json:"relative_humidity_2m"`
		WindSpeed   float64 `json:"wind_speed_10m"`
	} `json:"current"`
}

// OpenMeteo reads current conditions at a fixed location.
type OpenMeteo struct {
	client    HTTPClient
	url       string
	latitude  float64
	longitude float64
}

func NewOpenMeteo(client HTTPClient, baseURL string, latitude, longitude float64) OpenMeteo {
	if baseURL == "" {
		baseURL = DefaultOpenMeteoURL
	}

	return OpenMeteo{
		client:    client,
		url:       baseURL,
		latitude:  latitude,
		longitude: longitude,
	}
}

func (o OpenMeteo) Domain() entity.Domain {
	return entity.DomainClimate
}

func (o OpenMeteo) Fetch(ctx context.Context) (any, error) {
	return o.FetchReading(ctx)
}

func (o OpenMeteo) Fallback(context.Context) any {
	return entity.ClimateReading{
		Latitude:     o.latitude,
		Longitude:    o.longitude,
		TemperatureC: 18.5,
		WindSpeedKmh: 12,
		HumidityPct:  55,
		ObservedAt:   "2024-01-01T00:00",
	}
}

func (o OpenMeteo) FetchReading(ctx context.Context) (entity.ClimateReading, error) {
	query := url.Values{}
	query.Set("latitude", strconv.FormatFloat(o.latitude, 'f', -1, 64))
	query.Set("longitude", strconv.FormatFloat(o.longitude, 'f', -1, 64))
	query.Set("current", "temperature_2m,relative_humidity_2m,wind_speed_10m")

	resp := openMeteoResponse{}

	err := getJSON(ctx, o.client, o.url+"?"+query.Encode(), &resp)
	if err != nil {
		return entity.ClimateReading{}, err
	}

	if resp.Current == nil {
		return entity.ClimateReading{}, fetch.NewErrMalformedResponse(errMissingCurrent)
	}

	return entity.ClimateReading{
		Latitude:     resp.Latitude,
		Longitude:    resp.Longitude,
		TemperatureC: resp.Current.Temperature,
		WindSpeedKmh: resp.Current.WindSpeed,
		HumidityPct:  resp.Current.Humidity,
		ObservedAt:   resp.Current.Time,
	}, nil
}
