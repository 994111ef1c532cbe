package entity

import "time"

type Domain string

const (
	DomainSeismic  Domain = "seismic"
	DomainClimate  Domain = "climate"
	DomainEconomic Domain = "economic"
	DomainSocial   Domain = "social"
	DomainFood     Domain = "food"
)

// Domains lists every domain an AggregatedSnapshot must carry.
var Domains = []Domain{DomainSeismic, DomainClimate, DomainEconomic, DomainSocial, DomainFood}

// ExternalRecord wraps a provider payload with its provenance.
type ExternalRecord struct {
	Payload     any       `json:"payload"`
	FetchedAt   time.Time `json:"fetchedAt"`
	IsMock      bool      `json:"isMock"`
	SourceError string    `json:"sourceError,omitempty"`
}

type Snapshot struct {
	Seismic     ExternalRecord `json:"seismic"`
	Climate     ExternalRecord `json:"climate"`
	Economic    ExternalRecord `json:"economic"`
	Social      ExternalRecord `json:"social"`
	Food        ExternalRecord `json:"food"`
	GeneratedAt time.Time      `json:"generatedAt"`
}

// Record returns the record of the given domain.
func (s Snapshot) Record(domain Domain) (ExternalRecord, bool) {
	switch domain {
	case DomainSeismic:
		return s.Seismic, true
	case DomainClimate:
		return s.Climate, true
	case DomainEconomic:
		return s.Economic, true
	case DomainSocial:
		return s.Social, true
	case DomainFood:
		return s.Food, true
	default:
		return ExternalRecord{}, false
	}
}

// MockDomains returns the domains served by a fallback, in Domains order.
func (s Snapshot) MockDomains() []Domain {
	ret := []Domain{}

	for _, domain := range Domains {
		record, _ := s.Record(domain)
		if record.IsMock {
			ret = append(ret, domain)
		}
	}

	return ret
}

// Normalized payloads

type SeismicEvent struct {
	ID        string    `json:"id"`
	Magnitude float64   `json:"magnitude"`
	Place     string    `json:"place"`
	Time      time.Time `json:"time"`
	URL       string    `json:"url,omitempty"`
	DepthKm   float64   `json:"depthKm"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Tsunami   bool      `json:"tsunami"`
}

type ClimateReading struct {
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	TemperatureC float64 `json:"temperatureC"`
	WindSpeedKmh float64 `json:"windSpeedKmh"`
	HumidityPct  float64 `json:"humidityPct"`
	ObservedAt   string  `json:"observedAt"`
}

type IndicatorReading struct {
	Indicator string   `json:"indicator"`
	Name      string   `json:"name"`
	Country   string   `json:"country"`
	Period    string   `json:"period"`
	Value     *float64 `json:"value"`
}

type SocialTrend struct {
	Tag      string `json:"tag"`
	URL      string `json:"url,omitempty"`
	Uses     int    `json:"uses"`
	Accounts int    `json:"accounts"`
}

// Vigilance

type SSEToken struct {
	Token     string    `json:"token"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Scope     string    `json:"scope,omitempty"`
}

type VigilanceEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Origin    string    `json:"origin"`
}

// VigilanceState is sent to every new subscriber in the init frame.
type VigilanceState struct {
	Status      string           `json:"status"`
	StartedAt   time.Time        `json:"startedAt"`
	Subscribers int              `json:"subscribers"`
	TotalEvents uint64           `json:"totalEvents"`
	HistorySize int              `json:"historySize"`
	Recent      []VigilanceEvent `json:"recent"`
}

// IngestedEvent is the payload consumed from the operational events topic.
type IngestedEvent struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Origin    string `json:"origin"`
	Timestamp string `json:"timestamp"`
}
