// Package config loads the collector's YAML configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Sternrassler/config-collector/pkg/client"
	"github.com/Sternrassler/config-collector/pkg/fetcher"
	"github.com/Sternrassler/config-collector/pkg/logging"
	"github.com/Sternrassler/config-collector/pkg/providers/aws"
	"github.com/Sternrassler/config-collector/pkg/providers/rest"
	"github.com/Sternrassler/config-collector/pkg/sink"
)

// Providers and sink backends.
const (
	ProviderAWS  = "aws"
	ProviderREST = "rest"

	SinkMemory = "memory"
	SinkRedis  = "redis"
)

// Config is the collector configuration.
type Config struct {
	// Provider selects the API to collect from: aws or rest.
	Provider string `yaml:"provider"`

	Fetch FetchConfig `yaml:"fetch"`

	// Kinds overrides the provider's default kinds.
	Kinds []fetcher.Descriptor `yaml:"kinds"`

	AWS  aws.Options `yaml:"aws"`
	REST RESTConfig  `yaml:"rest"`
	Sink SinkConfig  `yaml:"sink"`

	Log logging.Config `yaml:"log"`

	// MetricsAddr serves /metrics when set, e.g. ":9090".
	MetricsAddr string `yaml:"metrics_addr"`

	// Output is where the collected records are written as JSON ("-" for stdout).
	Output string `yaml:"output"`
}

// FetchConfig sizes the worker pools and the throttle policy.
type FetchConfig struct {
	// ThreadLevel picks preset pool sizes (1-5); explicit worker counts win.
	ThreadLevel   int      `yaml:"thread_level"`
	ListWorkers   int      `yaml:"list_workers"`
	ParseWorkers  int      `yaml:"parse_workers"`
	MaxRequeues   int      `yaml:"max_requeues"`
	WarnAfter     int      `yaml:"warn_after"`
	ThrottleCodes []string `yaml:"throttle_codes"`
}

// RESTConfig configures the REST provider and its API client.
type RESTConfig struct {
	Client client.Config `yaml:",inline"`
	API    rest.Config   `yaml:",inline"`
}

// SinkConfig selects where parsed resources are stored.
type SinkConfig struct {
	Backend string      `yaml:"backend"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig configures the Redis sink.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Provider: ProviderAWS,
		Fetch: FetchConfig{
			ThreadLevel: fetcher.DefaultThreadLevel,
		},
		REST: RESTConfig{
			Client: client.Config{
				UserAgent:  "config-collector/1.0",
				Timeout:    30 * time.Second,
				MaxRetries: 2,
			},
		},
		Sink: SinkConfig{
			Backend: SinkMemory,
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: sink.DefaultPrefix,
			},
		},
		Log: logging.Config{
			Level: logging.LevelInfo,
		},
		Output: "-",
	}
}

// Load reads configuration from path. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderAWS:
	case ProviderREST:
		if c.REST.Client.BaseURL == "" {
			return fmt.Errorf("rest.base_url is required for the rest provider")
		}
		if len(c.REST.API.Kinds) == 0 {
			return fmt.Errorf("rest.kinds must list at least one kind")
		}
		if err := c.REST.API.Validate(); err != nil {
			return fmt.Errorf("rest: %w", err)
		}
	default:
		return fmt.Errorf("provider must be %q or %q (got %q)", ProviderAWS, ProviderREST, c.Provider)
	}

	if _, ok := fetcher.ThreadConfigs[c.Fetch.ThreadLevel]; !ok && c.Fetch.ThreadLevel != 0 {
		return fmt.Errorf("fetch.thread_level must be between 1 and %d (got %d)", len(fetcher.ThreadConfigs), c.Fetch.ThreadLevel)
	}
	if c.Fetch.ListWorkers < 0 || c.Fetch.ParseWorkers < 0 {
		return fmt.Errorf("fetch worker counts cannot be negative")
	}
	if c.Fetch.MaxRequeues < 0 {
		return fmt.Errorf("fetch.max_requeues cannot be negative")
	}

	for i, d := range c.Kinds {
		if d.Kind == "" {
			return fmt.Errorf("kinds[%d]: kind is required", i)
		}
	}

	switch c.Sink.Backend {
	case SinkMemory:
	case SinkRedis:
		if c.Sink.Redis.Addr == "" {
			return fmt.Errorf("sink.redis.addr is required for the redis sink")
		}
	default:
		return fmt.Errorf("sink.backend must be %q or %q (got %q)", SinkMemory, SinkRedis, c.Sink.Backend)
	}

	return nil
}

// FetcherConfig resolves the pool sizes for the fetch pipeline. service names
// what is fetched in progress reports.
func (c *Config) FetcherConfig(service string) (fetcher.Config, error) {
	fc := fetcher.DefaultConfig()
	if c.Fetch.ThreadLevel != 0 {
		var err error
		if fc, err = fetcher.ConfigForLevel(c.Fetch.ThreadLevel); err != nil {
			return fetcher.Config{}, err
		}
	}
	if c.Fetch.ListWorkers > 0 {
		fc.ListWorkers = c.Fetch.ListWorkers
	}
	if c.Fetch.ParseWorkers > 0 {
		fc.ParseWorkers = c.Fetch.ParseWorkers
	}

	fc.Service = service
	fc.MaxRequeues = c.Fetch.MaxRequeues
	fc.WarnAfter = c.Fetch.WarnAfter
	fc.ThrottleCodes = append([]string(nil), c.Fetch.ThrottleCodes...)
	if c.Provider == ProviderAWS {
		fc.ThrottleCodes = append(fc.ThrottleCodes, aws.ThrottleCodes...)
	}
	return fc, nil
}
