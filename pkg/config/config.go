// Package config loads the server configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then a
// .env file, then process environment variables. Command line flags are
// applied on top by the caller.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	BackendMemory   = "memory"
	BackendBolt     = "bolt"
	BackendPostgres = "postgres"
)

type Config struct {
	// Server
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Debug       bool   `yaml:"debug"`
	ServiceName string `yaml:"service_name"`

	// Logging
	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"`
	LogHTTPBodies  bool   `yaml:"log_http_bodies"`
	MaxBodyLogSize int64  `yaml:"max_body_log_size"`

	// Results
	CacheTTL     time.Duration `yaml:"cache_ttl"`
	ResultTTL    time.Duration `yaml:"result_ttl"`
	StoreBackend string        `yaml:"store_backend"`
	StorePath    string        `yaml:"store_path"`
	DatabaseURL  string        `yaml:"database_url"`

	// Fetching
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	FetchRetries int           `yaml:"fetch_retries"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
	UserAgent    string        `yaml:"user_agent"`

	// HTTP surface
	RateLimit   int      `yaml:"rate_limit"`
	CORSOrigins []string `yaml:"cors_origins"`
	APIKey      string   `yaml:"api_key"`
	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// X-Real-IP. Only enable behind a proxy that overwrites them.
	TrustProxyHeaders bool `yaml:"trust_proxy_headers"`

	// Events and tracing
	KafkaBrokers   []string `yaml:"kafka_brokers"`
	KafkaTopic     string   `yaml:"kafka_topic"`
	TracingEnabled bool     `yaml:"tracing_enabled"`

	// Container health check
	HealthStartPeriod time.Duration `yaml:"health_start_period"`
	HealthInterval    time.Duration `yaml:"health_interval"`
	HealthTimeout     time.Duration `yaml:"health_timeout"`
	HealthRetries     int           `yaml:"health_retries"`
}

// LoadOptions names the optional files Load reads.
type LoadOptions struct {
	ConfigFile string
	EnvFile    string
}

func DefaultConfig() *Config {
	return &Config{
		Host:              "0.0.0.0",
		Port:              8000,
		ServiceName:       "ScrapeToAPI",
		LogLevel:          "info",
		LogFormat:         "console",
		MaxBodyLogSize:    4 * 1024,
		CacheTTL:          2 * time.Hour,
		StoreBackend:      BackendMemory,
		StorePath:         "scrapetoapi.db",
		FetchTimeout:      10 * time.Second,
		FetchRetries:      2,
		MaxBodyBytes:      10 << 20,
		UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
		RateLimit:         60,
		CORSOrigins:       []string{"*"},
		KafkaTopic:        "scrape-events",
		HealthStartPeriod: 5 * time.Second,
		HealthInterval:    30 * time.Second,
		HealthTimeout:     30 * time.Second,
		HealthRetries:     3,
	}
}

// Load layers defaults, the YAML file and the environment. The result is not
// validated: callers apply their own overrides first and then call Validate.
func Load(opts LoadOptions) (*Config, error) {
	cfg := DefaultConfig()

	if opts.ConfigFile != "" {
		if err := loadFromFile(cfg, opts.ConfigFile); err != nil {
			return nil, err
		}
	}

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// EnvConfigMapping binds one environment variable to a config field.
type EnvConfigMapping struct {
	EnvKey string
	Type   string
	Setter func(*Config, string) error
}

func buildEnvMappings() []EnvConfigMapping {
	return []EnvConfigMapping{
		{"HOST", "string", func(c *Config, v string) error { c.Host = v; return nil }},
		{"PORT", "int", intSetter(func(c *Config, n int) { c.Port = n })},
		{"DEBUG", "bool", boolSetter(func(c *Config, b bool) { c.Debug = b })},
		{"SERVICE_NAME", "string", func(c *Config, v string) error { c.ServiceName = v; return nil }},
		{"LOG_LEVEL", "string", func(c *Config, v string) error { c.LogLevel = strings.ToLower(v); return nil }},
		{"LOG_FORMAT", "string", func(c *Config, v string) error { c.LogFormat = strings.ToLower(v); return nil }},
		{"LOG_HTTP_BODIES", "bool", boolSetter(func(c *Config, b bool) { c.LogHTTPBodies = b })},
		{"MAX_BODY_LOG_SIZE", "int64", int64Setter(func(c *Config, n int64) { c.MaxBodyLogSize = n })},
		{"CACHE_TTL", "duration", durationSetter(func(c *Config, d time.Duration) { c.CacheTTL = d })},
		{"RESULT_TTL", "duration", durationSetter(func(c *Config, d time.Duration) { c.ResultTTL = d })},
		{"STORE_BACKEND", "string", func(c *Config, v string) error { c.StoreBackend = strings.ToLower(v); return nil }},
		{"STORE_PATH", "string", func(c *Config, v string) error { c.StorePath = v; return nil }},
		{"DATABASE_URL", "string", func(c *Config, v string) error { c.DatabaseURL = v; return nil }},
		{"FETCH_TIMEOUT", "duration", durationSetter(func(c *Config, d time.Duration) { c.FetchTimeout = d })},
		{"FETCH_RETRIES", "int", intSetter(func(c *Config, n int) { c.FetchRetries = n })},
		{"MAX_BODY_BYTES", "int64", int64Setter(func(c *Config, n int64) { c.MaxBodyBytes = n })},
		{"USER_AGENT", "string", func(c *Config, v string) error { c.UserAgent = v; return nil }},
		{"RATE_LIMIT", "int", intSetter(func(c *Config, n int) { c.RateLimit = n })},
		{"CORS_ORIGINS", "list", func(c *Config, v string) error { c.CORSOrigins = splitList(v); return nil }},
		{"API_KEY", "string", func(c *Config, v string) error { c.APIKey = v; return nil }},
		{"TRUST_PROXY_HEADERS", "bool", boolSetter(func(c *Config, b bool) { c.TrustProxyHeaders = b })},
		{"KAFKA_BROKERS", "list", func(c *Config, v string) error { c.KafkaBrokers = splitList(v); return nil }},
		{"KAFKA_TOPIC", "string", func(c *Config, v string) error { c.KafkaTopic = v; return nil }},
		{"TRACING_ENABLED", "bool", boolSetter(func(c *Config, b bool) { c.TracingEnabled = b })},
		{"HEALTH_START_PERIOD", "duration", durationSetter(func(c *Config, d time.Duration) { c.HealthStartPeriod = d })},
		{"HEALTH_INTERVAL", "duration", durationSetter(func(c *Config, d time.Duration) { c.HealthInterval = d })},
		{"HEALTH_TIMEOUT", "duration", durationSetter(func(c *Config, d time.Duration) { c.HealthTimeout = d })},
		{"HEALTH_RETRIES", "int", intSetter(func(c *Config, n int) { c.HealthRetries = n })},
	}
}

func loadFromEnv(cfg *Config) error {
	for _, mapping := range buildEnvMappings() {
		if val := strings.TrimSpace(os.Getenv(mapping.EnvKey)); val != "" {
			if err := mapping.Setter(cfg, val); err != nil {
				return fmt.Errorf("failed to set %s: %w", mapping.EnvKey, err)
			}
		}
	}
	return nil
}

func intSetter(set func(*Config, int)) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("expected an integer, got %q", v)
		}
		set(c, n)
		return nil
	}
}

func int64Setter(set func(*Config, int64)) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("expected an integer, got %q", v)
		}
		set(c, n)
		return nil
	}
}

func boolSetter(set func(*Config, bool)) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("expected a boolean, got %q", v)
		}
		set(c, b)
		return nil
	}
}

// durationSetter accepts Go durations ("2h") and bare seconds ("7200").
func durationSetter(set func(*Config, time.Duration)) func(*Config, string) error {
	return func(c *Config, v string) error {
		if secs, err := strconv.Atoi(v); err == nil {
			set(c, time.Duration(secs)*time.Second)
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("expected a duration, got %q", v)
		}
		set(c, d)
		return nil
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	switch c.LogLevel {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of: trace, debug, info, warn, error")
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("log_format must be console or json")
	}

	switch c.StoreBackend {
	case BackendMemory:
	case BackendBolt:
		if c.StorePath == "" {
			return fmt.Errorf("store_path is required for the bolt backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database_url is required for the postgres backend")
		}
	default:
		return fmt.Errorf("store_backend must be one of: memory, bolt, postgres")
	}

	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache_ttl must be positive")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch_timeout must be positive")
	}
	for name, d := range map[string]time.Duration{
		"result_ttl":          c.ResultTTL,
		"health_start_period": c.HealthStartPeriod,
	} {
		if d < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if c.HealthInterval <= 0 || c.HealthTimeout <= 0 {
		return fmt.Errorf("health_interval and health_timeout must be positive")
	}
	if c.HealthRetries <= 0 {
		return fmt.Errorf("health_retries must be positive")
	}
	if c.FetchRetries < 0 || c.RateLimit < 0 || c.MaxBodyBytes < 0 {
		return fmt.Errorf("fetch_retries, rate_limit and max_body_bytes must not be negative")
	}

	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
