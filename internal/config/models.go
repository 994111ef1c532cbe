package config

import "time"

type Config struct {
	GracefulDuration time.Duration
	Metrics          Metrics
	Logs             Logs
	Server           Server
	Vigilance        Vigilance
	Sources          Sources
	Valkey           Valkey
	ReportArchive    S3
	Kafka            Kafka
	DeadLetterQueue  S3
}

type Metrics struct {
	Port int
}

type Logs struct {
	Level   int
	Encoder EncoderType
}

type EncoderType string

const (
	EncoderTypeJson    EncoderType = "json"
	EncoderTypeConsole EncoderType = "console"
)

type Server struct {
	Port        int
	Production  bool
	BearerToken Secret
	ReadTimeout time.Duration
}

// Secret hides its value when the configuration is dumped.
type Secret string

func (s Secret) String() string {
	if s != "" {
		return "secret set"
	}

	return "no secret"
}

type TokenStoreType string

const (
	TokenStoreMemory TokenStoreType = "memory"
	TokenStoreValkey TokenStoreType = "valkey"
)

type Vigilance struct {
	HistoryCapacity  int
	RecentEvents     int
	TokenTTL         time.Duration
	TokenStore       TokenStoreType
	SubscriberBuffer int
	KeepAlive        time.Duration
	WatchInterval    time.Duration
}

type Sources struct {
	Timeout  time.Duration
	USGS     USGS
	Climate  OpenMeteo
	Economic WorldBank
	Social   Mastodon
	Food     WorldBank
}

type Retry struct {
	Attempts    uint
	BaseDelayMs int
	Backoff     string
}

func (r Retry) BaseDelay() time.Duration {
	return time.Duration(r.BaseDelayMs) * time.Millisecond
}

type USGS struct {
	URL   string
	Limit int
	Retry Retry
}

type OpenMeteo struct {
	URL       string
	Latitude  float64
	Longitude float64
	Retry     Retry
}

type WorldBank struct {
	URL       string
	Country   string
	Indicator string
	Retry     Retry
}

type Mastodon struct {
	URL   string
	Limit int
	Retry Retry
}

type S3 struct {
	Enabled      bool
	Bucket       string
	KeyPrefix    string
	BaseEndpoint string
	Region       string
	UsePathStyle bool
	Creds        AWSCreds
}

type AWSCreds struct {
	AccessKeyID     string
	SecretAccessKey string
}

func (c AWSCreds) String() string {
	if c.AccessKeyID != "" && c.SecretAccessKey != "" {
		return "creds set"
	}

	return "no creds"
}

type Kafka struct {
	Enabled  bool
	Broker   KafkaBroker
	Consumer KafkaConsumer
}

type KafkaBroker struct {
	URLs    string
	Version string
}

type KafkaConsumer struct {
	Topic string
	Group string
}

type Valkey struct {
	URL   string
	Creds ValkeyCreds
}

type ValkeyCreds struct {
	Password string
}

func (c ValkeyCreds) String() string {
	if c.Password != "" {
		return "password set"
	}

	return "no password"
}
