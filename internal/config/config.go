// Package config loads the order service settings.
//
// Defaults are overlaid by the YAML file named in CONFIG_FILE (if any), and
// then by environment variables, so the environment always wins.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jcmexdev/order-registration/internal/resilience"
)

type Config struct {
	HTTPAddr        string        `yaml:"http_addr"`
	ServiceName     string        `yaml:"service_name"`
	Environment     string        `yaml:"environment"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	Store    StoreConfig    `yaml:"store"`
	Journal  JournalConfig  `yaml:"journal"`
	Customer CustomerConfig `yaml:"customer"`
	Redis    RedisConfig    `yaml:"redis"`
	Log      LogConfig      `yaml:"log"`
	OTel     OTelConfig     `yaml:"otel"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"` // sqlite | postgres
	DSN    string `yaml:"dsn"`
}

// JournalConfig locates the saga journal. An empty path disables it.
type JournalConfig struct {
	Path string `yaml:"path"`
}

type CustomerConfig struct {
	BaseURL          string        `yaml:"base_url"`
	TotalTimeout     time.Duration `yaml:"total_timeout"`
	AttemptTimeout   time.Duration `yaml:"attempt_timeout"`
	FailureThreshold uint32        `yaml:"failure_threshold"`
	BreakDuration    time.Duration `yaml:"break_duration"`
	MaxRetries       int           `yaml:"max_retries"`
	BackoffBase      time.Duration `yaml:"backoff_base"`
	MaxJitter        time.Duration `yaml:"max_jitter"`
}

// RedisConfig backs idempotent replay. An empty address disables it.
type RedisConfig struct {
	Addr           string        `yaml:"addr"`
	IdempotencyTTL time.Duration `yaml:"idempotency_ttl"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// OTelConfig configures tracing. An empty endpoint disables export.
type OTelConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

func Default() Config {
	p := resilience.DefaultPolicy()
	return Config{
		HTTPAddr:        ":8080",
		ServiceName:     "order-service",
		Environment:     "local",
		ShutdownTimeout: 10 * time.Second,
		Store:           StoreConfig{Driver: "sqlite", DSN: "./data/orders.db"},
		Journal:         JournalConfig{Path: "./data/saga.db"},
		Customer: CustomerConfig{
			BaseURL:          "https://jsonplaceholder.typicode.com",
			TotalTimeout:     p.TotalTimeout,
			AttemptTimeout:   p.AttemptTimeout,
			FailureThreshold: p.FailureThreshold,
			BreakDuration:    p.BreakDuration,
			MaxRetries:       p.MaxRetries,
			BackoffBase:      p.BackoffBase,
			MaxJitter:        p.MaxJitter,
		},
		Redis: RedisConfig{IdempotencyTTL: 24 * time.Hour},
		Log:   LogConfig{Level: "info", Format: "json"},
		OTel:  OTelConfig{SampleRatio: 1},
	}
}

// Load reads the process configuration.
func Load() (Config, error) {
	return load(os.LookupEnv)
}

type lookupFunc func(key string) (string, bool)

func load(lookup lookupFunc) (Config, error) {
	cfg := Default()

	if path, ok := lookup("CONFIG_FILE"); ok && path != "" {
		if err := overlayFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func overlayFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config, lookup lookupFunc) error {
	e := envReader{lookup: lookup}

	e.str("HTTP_ADDR", &cfg.HTTPAddr)
	e.str("OTEL_SERVICE_NAME", &cfg.ServiceName)
	e.str("OTEL_RESOURCE_ATTRIBUTES_ENV", &cfg.Environment)
	e.duration("SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout)

	e.str("STORE_DRIVER", &cfg.Store.Driver)
	e.str("STORE_DSN", &cfg.Store.DSN)
	e.str("SAGA_JOURNAL_PATH", &cfg.Journal.Path)

	e.str("CUSTOMER_SERVICE_URL", &cfg.Customer.BaseURL)
	e.duration("CUSTOMER_TOTAL_TIMEOUT", &cfg.Customer.TotalTimeout)
	e.duration("CUSTOMER_ATTEMPT_TIMEOUT", &cfg.Customer.AttemptTimeout)
	e.unsigned("BREAKER_FAILURE_THRESHOLD", &cfg.Customer.FailureThreshold)
	e.duration("BREAKER_BREAK_DURATION", &cfg.Customer.BreakDuration)
	e.integer("RETRY_MAX_RETRIES", &cfg.Customer.MaxRetries)
	e.duration("RETRY_BACKOFF_BASE", &cfg.Customer.BackoffBase)
	e.duration("RETRY_MAX_JITTER", &cfg.Customer.MaxJitter)

	e.str("REDIS_ADDR", &cfg.Redis.Addr)
	e.duration("IDEMPOTENCY_TTL", &cfg.Redis.IdempotencyTTL)

	e.str("LOG_LEVEL", &cfg.Log.Level)
	e.str("LOG_FORMAT", &cfg.Log.Format)

	e.str("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.OTel.Endpoint)
	e.float("OTEL_SAMPLE_RATIO", &cfg.OTel.SampleRatio)

	return errors.Join(e.errs...)
}

// Validate rejects settings the service cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http_addr is required"))
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not one of sqlite, postgres", c.Store.Driver))
	}
	if c.Store.DSN == "" {
		errs = append(errs, errors.New("store.dsn is required"))
	}
	if c.Customer.BaseURL == "" {
		errs = append(errs, errors.New("customer.base_url is required"))
	}
	for name, d := range map[string]time.Duration{
		"customer.total_timeout":   c.Customer.TotalTimeout,
		"customer.attempt_timeout": c.Customer.AttemptTimeout,
		"customer.break_duration":  c.Customer.BreakDuration,
		"customer.backoff_base":    c.Customer.BackoffBase,
		"shutdown_timeout":         c.ShutdownTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.Customer.MaxJitter < 0 {
		errs = append(errs, errors.New("customer.max_jitter must not be negative"))
	}
	if c.Customer.FailureThreshold == 0 {
		errs = append(errs, errors.New("customer.failure_threshold must be at least 1"))
	}
	if c.Customer.MaxRetries < 0 {
		errs = append(errs, errors.New("customer.max_retries must not be negative"))
	}
	if c.Redis.Addr != "" && c.Redis.IdempotencyTTL <= 0 {
		errs = append(errs, errors.New("redis.idempotency_ttl must be positive"))
	}
	return errors.Join(errs...)
}

// Policy is the resilience policy for the customer service.
func (c CustomerConfig) Policy() resilience.Policy {
	return resilience.Policy{
		TotalTimeout:     c.TotalTimeout,
		AttemptTimeout:   c.AttemptTimeout,
		FailureThreshold: c.FailureThreshold,
		BreakDuration:    c.BreakDuration,
		MaxRetries:       c.MaxRetries,
		BackoffBase:      c.BackoffBase,
		MaxJitter:        c.MaxJitter,
	}
}

type envReader struct {
	lookup lookupFunc
	errs   []error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	return v, ok && v != ""
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) duration(key string, dst *time.Duration) {
	if v, ok := e.get(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}
}

func (e *envReader) integer(key string, dst *int) {
	if v, ok := e.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
}

func (e *envReader) unsigned(key string, dst *uint32) {
	if v, ok := e.get(key); ok {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = uint32(n)
	}
}

func (e *envReader) float(key string, dst *float64) {
	if v, ok := e.get(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = f
	}
}
