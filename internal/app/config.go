package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (KART_ prefix), flags, or YAML config files.
type Config struct {
	Addr           string        `default:"0.0.0.0:8080" usage:"Storefront listen address"`
	BackendURL     string        `usage:"Backend REST API base URL (KART_BACKEND_URL or API_URL)" flag:"backend-url"`
	BackendTimeout time.Duration `default:"10s" usage:"Timeout of a single backend request" flag:"backend-timeout"`
	Cart           CartConfig
	Session        SessionConfig
	Redis          RedisConfig
	RateLimit      RateLimitConfig
	CORS           CORSConfig
	Graceful       GracefulConfig
}

// CartConfig controls cart synchronization and alerting.
type CartConfig struct {
	AlertTTL  time.Duration `default:"3s" usage:"How long an alert stays visible" flag:"alert-ttl"`
	JoinLimit int           `default:"8" usage:"Concurrent product lookups per cart operation" flag:"join-limit"`
}

// SessionConfig controls the per-user session registry.
type SessionConfig struct {
	IdleTTL       time.Duration `default:"30m" usage:"Idle time after which a session is dropped" flag:"session-idle-ttl"`
	SweepInterval time.Duration `default:"1m" usage:"Interval of the idle session sweep" flag:"session-sweep-interval"`
	Max           int           `default:"10000" usage:"Maximum number of live sessions" flag:"session-max"`
}

// RedisConfig enables the product metadata cache when URL is set.
type RedisConfig struct {
	URL string        `usage:"Redis URL for the product cache, e.g. redis://localhost:6379/0" flag:"redis-url"`
	TTL time.Duration `default:"5m" usage:"Product cache entry lifetime" flag:"redis-ttl"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "KART",
		Files:     []string{"config.yaml", "/etc/kart/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports missing or inconsistent settings.
func (c *Config) Validate() error {
	if c.BackendURL == "" {
		return errors.New("backend URL is required: set KART_BACKEND_URL or API_URL")
	}
	if c.Session.IdleTTL <= 0 {
		return errors.New("session idle TTL must be positive")
	}
	if c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0 {
		return errors.New("rate limit max and window must be positive")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables that use
// standard names like PORT and API_URL to the KART_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.BackendURL == "" {
		if v := os.Getenv("API_URL"); v != "" {
			c.BackendURL = v
		}
	}
	if c.Redis.URL == "" {
		if v := os.Getenv("REDIS_URL"); v != "" {
			c.Redis.URL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
