package source

import (
	"context"
	"errors"
	"time"

	"github.com/praevisio/vigilance/internal/domain/entity"
	"github.com/praevisio/vigilance/pkg/fetch"
)

const DefaultUSGSURL = "https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/2.5_day.geojson"

var errMissingFeatures = errors.New("missing features")

type usgsFeed struct {
	Features *[]usgsFeature `json:"features"`
}

type usgsFeature struct {
	ID         string `json:"id"`
	Properties struct {
		Mag     *float64 `json:"mag"`
		Place   string   `json:"place"`
		Time    int64    `json:"time"`
		URL     string   `json:"url"`
		Tsunami int      `json:"tsunami"`
	} `json:"properties"`
	Geometry struct {
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
}

// USGS reads the USGS GeoJSON earthquake summary feed.
type USGS struct {
	client HTTPClient
	url    string
	limit  int
}

func NewUSGS(client HTTPClient, url string, limit int) USGS {
	if url == "" {
		url = DefaultUSGSURL
	}

	return USGS{
		client: client,
		url:    url,
		limit:  limit,
	}
}

func (u USGS) Domain() entity.Domain {
	return entity.DomainSeismic
}

func (u USGS) Fetch(ctx context.Context) (any, error) {
	return u.FetchEvents(ctx)
}

func (u USGS) Fallback(ctx context.Context) any {
	return SeismicFallback(ctx)
}

// FetchEvents returns normalized events, most recent first as served by the feed.
func (u USGS) FetchEvents(ctx context.Context) ([]entity.SeismicEvent, error) {
	feed := usgsFeed{}

	err := getJSON(ctx, u.client, u.url, &feed)
	if err != nil {
		return nil, err
	}

	if feed.Features == nil {
		return nil, fetch.NewErrMalformedResponse(errMissingFeatures)
	}

	ret := make([]entity.SeismicEvent, 0, len(*feed.Features))

	for _, feature := range *feed.Features {
		if u.limit > 0 && len(ret) >= u.limit {
			break
		}

		ret = append(ret, normalizeUSGSFeature(feature))
	}

	return ret, nil
}

func normalizeUSGSFeature(feature usgsFeature) entity.SeismicEvent {
	ret := entity.SeismicEvent{
		ID:      feature.ID,
		Place:   feature.Properties.Place,
		Time:    time.UnixMilli(feature.Properties.Time).UTC(),
		URL:     feature.Properties.URL,
		Tsunami: feature.Properties.Tsunami != 0,
	}

	if feature.Properties.Mag != nil {
		ret.Magnitude = *feature.Properties.Mag
	}

	// GeoJSON order: longitude, latitude, depth
	coords := feature.Geometry.Coordinates
	if len(coords) > 0 {
		ret.Longitude = coords[0]
	}

	if len(coords) > 1 {
		ret.Latitude = coords[1]
	}

	if len(coords) > 2 {
		ret.DepthKm = coords[2]
	}

	return ret
}

// SeismicFallback is a fixed, plausible set of events.
func SeismicFallback(context.Context) []entity.SeismicEvent {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	return []entity.SeismicEvent{
		{ID: "mock-seismic-1", Magnitude: 4.6, Place: "Offshore Coquimbo, Chile", Time: base, DepthKm: 35, Latitude: -30.1, Longitude: -71.9},
		{ID: "mock-seismic-2", Magnitude: 3.1, Place: "Central California", Time: base.Add(-2 * time.Hour), DepthKm: 8.2, Latitude: 36.6, Longitude: -121.2},
		{ID: "mock-seismic-3", Magnitude: 5.2, Place: "Near the coast of Honshu, Japan", Time: base.Add(-5 * time.Hour), DepthKm: 42, Latitude: 38.3, Longitude: 142.4},
	}
}
