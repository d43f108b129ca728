package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage drivers understood by Load.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
	DriverBolt     = "bolt"
)

// AI providers understood by Load.
const (
	ProviderOpenAI     = "openai"
	ProviderCompatible = "compatible"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName            string
	AppEnv             string
	AppPort            string
	StorageDriver      string
	DatabaseURL        string
	SQLitePath         string
	BoltPath           string
	RedisURL           string
	LeaderboardTTL     time.Duration
	NATSURL            string
	EventsPrefix       string
	AIProvider         string
	OpenAIAPIKey       string
	AIModel            string
	AIBaseURL          string
	AIMaxTokens        int
	AITemperature      float32
	AITimeout          time.Duration
	RubricRegion       string
	RubricPlaces       []string
	DefaultSessionName string
	AnalyzeRateMax     int
	AnalyzeRateWindow  time.Duration
	CORSAllowOrigins   string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// LiveScoring reports whether a model credential is configured. Without one every
// request is scored by the mock evaluator.
func (c Config) LiveScoring() bool {
	return strings.TrimSpace(c.OpenAIAPIKey) != ""
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("BMC")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.BindEnv("openai_api_key", "BMC_OPENAI_API_KEY", "OPENAI_API_KEY"); err != nil {
		return Config{}, fmt.Errorf("bind openai api key: %w", err)
	}

	v.SetDefault("app.name", "BMC Canvas API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("storage.driver", DriverSQLite)
	v.SetDefault("sqlite.path", "bmc.db")
	v.SetDefault("bolt.path", "data/bmc.bolt")
	v.SetDefault("leaderboard.cache_ttl", "30s")
	v.SetDefault("events.prefix", "bmc")
	v.SetDefault("ai.provider", ProviderOpenAI)
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.max_tokens", 1200)
	v.SetDefault("ai.temperature", 0.1)
	v.SetDefault("ai.timeout", "45s")
	v.SetDefault("rubric.region", "Sabah")
	v.SetDefault("rubric.places", "Kota Kinabalu,Sandakan,Tawau,Kudat,Ranau/Kundasang")
	v.SetDefault("session.default_name", "Sesi Utama")
	v.SetDefault("ratelimit.analyze_max", 30)
	v.SetDefault("ratelimit.analyze_window", "1m")
	v.SetDefault("cors.allow_origins", "*")

	cacheTTL, err := parseDuration(v, "leaderboard.cache_ttl")
	if err != nil {
		return Config{}, err
	}
	aiTimeout, err := parseDuration(v, "ai.timeout")
	if err != nil {
		return Config{}, err
	}
	rateWindow, err := parseDuration(v, "ratelimit.analyze_window")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:            v.GetString("app.name"),
		AppEnv:             v.GetString("app.env"),
		AppPort:            v.GetString("app.port"),
		StorageDriver:      strings.ToLower(strings.TrimSpace(v.GetString("storage.driver"))),
		DatabaseURL:        v.GetString("database.url"),
		SQLitePath:         v.GetString("sqlite.path"),
		BoltPath:           v.GetString("bolt.path"),
		RedisURL:           v.GetString("redis.url"),
		LeaderboardTTL:     cacheTTL,
		NATSURL:            v.GetString("nats.url"),
		EventsPrefix:       v.GetString("events.prefix"),
		AIProvider:         strings.ToLower(strings.TrimSpace(v.GetString("ai.provider"))),
		OpenAIAPIKey:       strings.TrimSpace(v.GetString("openai_api_key")),
		AIModel:            v.GetString("ai.model"),
		AIBaseURL:          v.GetString("ai.base_url"),
		AIMaxTokens:        v.GetInt("ai.max_tokens"),
		AITemperature:      float32(v.GetFloat64("ai.temperature")),
		AITimeout:          aiTimeout,
		RubricRegion:       v.GetString("rubric.region"),
		RubricPlaces:       splitList(v.GetString("rubric.places")),
		DefaultSessionName: v.GetString("session.default_name"),
		AnalyzeRateMax:     v.GetInt("ratelimit.analyze_max"),
		AnalyzeRateWindow:  rateWindow,
		CORSAllowOrigins:   v.GetString("cors.allow_origins"),
	}

	switch cfg.StorageDriver {
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("database url must be provided for the postgres driver")
		}
	case DriverRedis:
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("redis url must be provided for the redis driver")
		}
	case DriverSQLite, DriverBolt:
	default:
		return Config{}, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	switch cfg.AIProvider {
	case ProviderOpenAI:
	case ProviderCompatible:
		if cfg.LiveScoring() && cfg.AIBaseURL == "" {
			return Config{}, fmt.Errorf("ai base url must be provided for the compatible provider")
		}
	default:
		return Config{}, fmt.Errorf("unsupported ai provider %q", cfg.AIProvider)
	}

	if cfg.AnalyzeRateMax <= 0 {
		cfg.AnalyzeRateMax = 30
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
