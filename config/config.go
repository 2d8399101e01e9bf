package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App       AppConfig       `yaml:"app"`
	HTTP      HTTPConfig      `yaml:"http"`
	GRPC      GRPCConfig      `yaml:"grpc"`
	Log       LogConfig       `yaml:"log"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Window    WindowConfig    `yaml:"window"`
	Flights   FlightsConfig   `yaml:"flights"`
	CORS      CORSConfig      `yaml:"cors"`
	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Worker    WorkerConfig    `yaml:"worker"`
}

type AppConfig struct {
	Name    string `yaml:"name" env:"APP_NAME" env-default:"flightstat-backend"`
	Version string `yaml:"version" env:"APP_VERSION" env-default:"1.8.1"`
}

type HTTPConfig struct {
	Address string `yaml:"address" env:"HTTP_ADDRESS"`
	Port    string `yaml:"port" env:"PORT" env-default:"3001"`
}

// ListenAddress prefers an explicit address over the bare port.
func (h HTTPConfig) ListenAddress() string {
	if h.Address != "" {
		return h.Address
	}
	return ":" + h.Port
}

type GRPCConfig struct {
	Address string `yaml:"address" env:"GRPC_ADDRESS" env-default:":9090"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

type UpstreamConfig struct {
	BaseURL   string        `yaml:"base_url" env:"AEROAPI_BASE_URL" env-default:"https://aeroapi.flightaware.com/aeroapi"`
	APIKey    string        `yaml:"api_key" env:"AEROAPI_KEY"`
	Timeout   time.Duration `yaml:"timeout" env:"AEROAPI_TIMEOUT" env-default:"15s"`
	MaxPages  int           `yaml:"max_pages" env:"AEROAPI_MAX_PAGES" env-default:"3"`
	UserAgent string        `yaml:"user_agent" env:"AEROAPI_USER_AGENT" env-default:"FlightStat-Bot-2025/1.0"`
}

// WindowConfig holds the query window policy. Bounds are offsets from now.
type WindowConfig struct {
	Lookback   time.Duration `yaml:"lookback" env:"WINDOW_LOOKBACK" env-default:"12h"`
	Lookahead  time.Duration `yaml:"lookahead" env:"WINDOW_LOOKAHEAD" env-default:"12h"`
	LowerBound time.Duration `yaml:"lower_bound" env:"WINDOW_LOWER_BOUND" env-default:"-240h"`
	UpperBound time.Duration `yaml:"upper_bound" env:"WINDOW_UPPER_BOUND" env-default:"48h"`
	RepairStep time.Duration `yaml:"repair_step" env:"WINDOW_REPAIR_STEP" env-default:"1m"`
}

type FlightsConfig struct {
	ActiveOnly bool `yaml:"active_only" env:"FLIGHTS_ACTIVE_ONLY"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-default:"http://localhost:3000,https://localhost:3000"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" env:"RATE_LIMIT_PER_MINUTE"`
}

type KafkaConfig struct {
	Brokers      []string `yaml:"brokers" env:"KAFKA_BROKERS"`
	LookupsTopic string   `yaml:"lookups_topic" env:"KAFKA_LOOKUPS_TOPIC" env-default:"flight-lookups"`
	GroupID      string   `yaml:"group_id" env:"KAFKA_GROUP_ID" env-default:"flightstat-audit"`
}

type WorkerConfig struct {
	MetricsAddress string `yaml:"metrics_address" env:"WORKER_METRICS_ADDRESS" env-default:":9091"`
}

var ErrMissingAPIKey = errors.New("upstream api key is not configured (AEROAPI_KEY)")

// LoadConfig reads the yaml file at path, if it exists, and then lets
// environment variables override it. Unset values fall back to env-default.
func LoadConfig(path string) (*Config, error) {
	// zero is meaningful for bools, so their defaults are set up front
	cfg := Config{Flights: FlightsConfig{ActiveOnly: true}}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		// env only
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read env: %w", err)
	}

	return &cfg, nil
}

// Validate reports configuration errors that must stop the service.
func (c *Config) Validate() error {
	if c.Upstream.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.Upstream.BaseURL == "" {
		return errors.New("upstream base url is empty")
	}
	if c.Upstream.MaxPages <= 0 {
		return fmt.Errorf("upstream max_pages must be positive, got %d", c.Upstream.MaxPages)
	}
	if c.Window.Lookback <= 0 || c.Window.Lookahead <= 0 {
		return fmt.Errorf("window lookback and lookahead must be positive: lookback=%s lookahead=%s", c.Window.Lookback, c.Window.Lookahead)
	}
	if c.Window.LowerBound >= 0 || c.Window.UpperBound <= 0 {
		return fmt.Errorf("window bounds must straddle now: lower=%s upper=%s", c.Window.LowerBound, c.Window.UpperBound)
	}
	if c.Window.RepairStep <= 0 {
		return errors.New("window repair_step must be positive")
	}
	return nil
}
