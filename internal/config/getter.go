package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const prefix = "PRAEVISIO"

// Historical variable names still honored, mapped to their config key.
var legacyEnv = map[string]string{
	"sources.usgs.retry.attempts":    "USGS_RETRY_ATTEMPTS",
	"sources.usgs.retry.baseDelayMs": "USGS_RETRY_BASE_DELAY_MS",
	"sources.usgs.url":               "USGS_API_URL",
	"server.bearerToken":             "PRAEVISIO_BEARER_TOKEN",
}

// Parse reads the configuration file given as parameter, then the environment.
func Parse(confFile string) (*Config, error) {
	viper.Reset()

	conf := Config{}

	setDefault()

	viper.SetEnvPrefix(prefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	for key, env := range legacyEnv {
		err := viper.BindEnv(key, fmt.Sprintf("%s_%s", prefix, strings.ToUpper(strings.ReplaceAll(key, ".", "_"))), env)
		if err != nil {
			return &conf, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if len(confFile) > 0 {
		viper.SetConfigFile(confFile)

		err := viper.ReadInConfig()
		if err != nil {
			return &conf, fmt.Errorf("failed to read config file %v: %w", confFile, err)
		}
	}

	err := viper.Unmarshal(&conf)
	if err != nil {
		return &conf, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &conf, nil
}

func setDefault() {
	viper.SetDefault("gracefulDuration", "10s")
	viper.SetDefault("logs.level", 0)
	viper.SetDefault("logs.encoder", EncoderTypeConsole)
	viper.SetDefault("metrics.port", 7777)

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.production", false)
	viper.SetDefault("server.bearerToken", "")
	viper.SetDefault("server.readTimeout", "10s")

	viper.SetDefault("vigilance.historyCapacity", 500)
	viper.SetDefault("vigilance.recentEvents", 10)
	viper.SetDefault("vigilance.tokenTTL", "15m")
	viper.SetDefault("vigilance.tokenStore", TokenStoreMemory)
	viper.SetDefault("vigilance.subscriberBuffer", 64)
	viper.SetDefault("vigilance.keepAlive", "15s")
	viper.SetDefault("vigilance.watchInterval", "0s")

	viper.SetDefault("sources.timeout", "20s")

	viper.SetDefault("sources.usgs.url", "https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/2.5_day.geojson")
	viper.SetDefault("sources.usgs.limit", 50)
	viper.SetDefault("sources.climate.url", "https://api.open-meteo.com/v1/forecast")
	viper.SetDefault("sources.climate.latitude", 48.8566)
	viper.SetDefault("sources.climate.longitude", 2.3522)
	viper.SetDefault("sources.economic.url", "https://api.worldbank.org/v2")
	viper.SetDefault("sources.economic.country", "WLD")
	viper.SetDefault("sources.economic.indicator", "NY.GDP.MKTP.KD.ZG")
	viper.SetDefault("sources.social.url", "https://mastodon.social/api/v1/trends/tags")
	viper.SetDefault("sources.social.limit", 10)
	viper.SetDefault("sources.food.url", "https://api.worldbank.org/v2")
	viper.SetDefault("sources.food.country", "WLD")
	viper.SetDefault("sources.food.indicator", "FP.CPI.TOTL.ZG")

	for _, source := range []string{"usgs", "climate", "economic", "social", "food"} {
		viper.SetDefault(fmt.Sprintf("sources.%s.retry.attempts", source), 3)
		viper.SetDefault(fmt.Sprintf("sources.%s.retry.baseDelayMs", source), 500)
		viper.SetDefault(fmt.Sprintf("sources.%s.retry.backoff", source), "exponential")
	}

	viper.SetDefault("valkey.url", "localhost:6379")
	viper.SetDefault("valkey.creds.password", "")

	viper.SetDefault("reportArchive.enabled", false)
	viper.SetDefault("reportArchive.bucket", "")
	viper.SetDefault("reportArchive.keyPrefix", "reports")
	viper.SetDefault("reportArchive.region", "us-east-1")

	viper.SetDefault("kafka.enabled", false)
	viper.SetDefault("kafka.broker.urls", "localhost:9092")
	viper.SetDefault("kafka.broker.version", "3.6.0")
	viper.SetDefault("kafka.consumer.topic", "vigilance-events")
	viper.SetDefault("kafka.consumer.group", "praevisio-vigilance")

	viper.SetDefault("deadLetterQueue.enabled", false)
	viper.SetDefault("deadLetterQueue.keyPrefix", "dlq")
	viper.SetDefault("deadLetterQueue.region", "us-east-1")
}
