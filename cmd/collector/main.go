// Package main is the config-collector command. It lists and parses every
// configured resource kind of one provider and writes what it collected.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/Sternrassler/config-collector/internal/config"
	"github.com/Sternrassler/config-collector/pkg/client"
	"github.com/Sternrassler/config-collector/pkg/fetcher"
	"github.com/Sternrassler/config-collector/pkg/logging"
	"github.com/Sternrassler/config-collector/pkg/metrics"
	"github.com/Sternrassler/config-collector/pkg/providers/aws"
	"github.com/Sternrassler/config-collector/pkg/providers/rest"
	"github.com/Sternrassler/config-collector/pkg/sink"
)

var version = "dev"

// flags holds the command-line overrides of the config file.
type flags struct {
	ConfigPath   string
	Provider     string
	LogLevel     string
	Pretty       bool
	ThreadLevel  int
	ListWorkers  int
	ParseWorkers int
	MaxRequeues  int
	Region       string
	Profile      string
	Sink         string
	RedisAddr    string
	MetricsAddr  string
	Output       string
}

// summary is the JSON document written at the end of a run.
type summary struct {
	Provider  string                    `json:"provider"`
	Stats     statsJSON                 `json:"stats"`
	Resources map[string]map[string]any `json:"resources,omitempty"`
}

type statsJSON struct {
	Kinds      int     `json:"kinds"`
	ListErrors int64   `json:"list_errors"`
	Discovered int64   `json:"discovered"`
	Parsed     int64   `json:"parsed"`
	Dropped    int64   `json:"dropped"`
	Requeued   int64   `json:"requeued"`
	Skipped    int64   `json:"skipped"`
	Seconds    float64 `json:"duration_seconds"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exitCode := 0
	if err := newApp(&flags{}, os.Stdout).Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		exitCode = 1
	}

	stop()
	os.Exit(exitCode)
}

func newApp(f *flags, stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "collector",
		Usage:     "Collect resource configuration from a cloud or REST API",
		UsageText: "collector [options]",
		Description: `collector lists every configured resource kind, parses each discovered
resource and stores it in the configured sink. Throttled resources are
retried until the API lets them through.`,
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("COLLECTOR_CONFIG"),
				Destination: &f.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "provider",
				Usage:       "provider to collect from (aws, rest)",
				Sources:     cli.EnvVars("COLLECTOR_PROVIDER"),
				Destination: &f.Provider,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error)",
				Sources:     cli.EnvVars("COLLECTOR_LOG_LEVEL"),
				Destination: &f.LogLevel,
			},
			&cli.BoolFlag{
				Name:        "pretty",
				Usage:       "human-readable console logs",
				Sources:     cli.EnvVars("COLLECTOR_LOG_PRETTY"),
				Destination: &f.Pretty,
			},
			&cli.IntFlag{
				Name:        "thread-level",
				Usage:       "preset pool sizes, 1 (smallest) to 5",
				Sources:     cli.EnvVars("COLLECTOR_THREAD_LEVEL"),
				Destination: &f.ThreadLevel,
			},
			&cli.IntFlag{
				Name:        "list-workers",
				Usage:       "number of listing workers (overrides --thread-level)",
				Sources:     cli.EnvVars("COLLECTOR_LIST_WORKERS"),
				Destination: &f.ListWorkers,
			},
			&cli.IntFlag{
				Name:        "parse-workers",
				Usage:       "number of parsing workers (overrides --thread-level)",
				Sources:     cli.EnvVars("COLLECTOR_PARSE_WORKERS"),
				Destination: &f.ParseWorkers,
			},
			&cli.IntFlag{
				Name:        "max-requeues",
				Usage:       "drop an item after this many throttled attempts (0 = never)",
				Sources:     cli.EnvVars("COLLECTOR_MAX_REQUEUES"),
				Destination: &f.MaxRequeues,
			},
			&cli.StringFlag{
				Name:        "region",
				Usage:       "AWS region",
				Sources:     cli.EnvVars("COLLECTOR_AWS_REGION", "AWS_REGION"),
				Destination: &f.Region,
			},
			&cli.StringFlag{
				Name:        "profile",
				Usage:       "AWS shared config profile",
				Sources:     cli.EnvVars("COLLECTOR_AWS_PROFILE", "AWS_PROFILE"),
				Destination: &f.Profile,
			},
			&cli.StringFlag{
				Name:        "sink",
				Usage:       "where parsed resources are stored (memory, redis)",
				Sources:     cli.EnvVars("COLLECTOR_SINK"),
				Destination: &f.Sink,
			},
			&cli.StringFlag{
				Name:        "redis-addr",
				Usage:       "Redis address for the redis sink",
				Sources:     cli.EnvVars("COLLECTOR_REDIS_ADDR", "REDIS_URL"),
				Destination: &f.RedisAddr,
			},
			&cli.StringFlag{
				Name:        "metrics-addr",
				Usage:       "serve Prometheus metrics on this address while collecting",
				Sources:     cli.EnvVars("COLLECTOR_METRICS_ADDR"),
				Destination: &f.MetricsAddr,
			},
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "write the collected resources as JSON to this file (- for stdout)",
				Sources:     cli.EnvVars("COLLECTOR_OUTPUT"),
				Destination: &f.Output,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() > 0 {
				return fmt.Errorf("unexpected argument %q. Run 'collector --help' for usage", c.Args().First())
			}

			cfg, err := config.Load(f.ConfigPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			f.apply(c, cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			logging.Setup(cfg.Log)

			_, err = run(ctx, cfg, stdout)
			return err
		},
	}
}

// apply overrides cfg with every flag that was set explicitly.
func (f *flags) apply(c *cli.Command, cfg *config.Config) {
	if c.IsSet("provider") {
		cfg.Provider = f.Provider
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = logging.LogLevel(f.LogLevel)
	}
	if c.IsSet("pretty") {
		cfg.Log.Pretty = f.Pretty
	}
	if c.IsSet("thread-level") {
		cfg.Fetch.ThreadLevel = f.ThreadLevel
	}
	if c.IsSet("list-workers") {
		cfg.Fetch.ListWorkers = f.ListWorkers
	}
	if c.IsSet("parse-workers") {
		cfg.Fetch.ParseWorkers = f.ParseWorkers
	}
	if c.IsSet("max-requeues") {
		cfg.Fetch.MaxRequeues = f.MaxRequeues
	}
	if c.IsSet("region") {
		cfg.AWS.Region = f.Region
	}
	if c.IsSet("profile") {
		cfg.AWS.Profile = f.Profile
	}
	if c.IsSet("sink") {
		cfg.Sink.Backend = f.Sink
	}
	if c.IsSet("redis-addr") {
		cfg.Sink.Redis.Addr = f.RedisAddr
	}
	if c.IsSet("metrics-addr") {
		cfg.MetricsAddr = f.MetricsAddr
	}
	if c.IsSet("output") {
		cfg.Output = f.Output
	}
}

// run collects once with cfg and writes the summary to cfg.Output.
func run(ctx context.Context, cfg *config.Config, stdout io.Writer) (fetcher.Stats, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
				log.Error().Err(err).Str("addr", cfg.MetricsAddr).Msg("Metrics server failed")
			}
		}()
	}

	store, closeSink, err := openSink(ctx, cfg)
	if err != nil {
		return fetcher.Stats{}, err
	}
	defer closeSink()

	provider, err := newProvider(ctx, cfg, store)
	if err != nil {
		return fetcher.Stats{}, err
	}

	fc, err := cfg.FetcherConfig(cfg.Provider)
	if err != nil {
		return fetcher.Stats{}, err
	}

	f, err := fetcher.New(provider, fc,
		fetcher.WithReporter(logging.NewReporter(logging.NewLogger("reporter"))))
	if err != nil {
		return fetcher.Stats{}, err
	}

	stats, err := f.FetchAllStats(ctx, cfg.Kinds)
	if err != nil {
		return stats, err
	}

	out := summary{
		Provider: cfg.Provider,
		Stats: statsJSON{
			Kinds:      stats.Descriptors,
			ListErrors: stats.ListErrors,
			Discovered: stats.Discovered,
			Parsed:     stats.Parsed,
			Dropped:    stats.Dropped,
			Requeued:   stats.Requeued,
			Skipped:    stats.Skipped,
			Seconds:    stats.Duration.Seconds(),
		},
	}
	if mem, ok := store.(*sink.MemorySink); ok {
		out.Resources = mem.Snapshot()
	}

	if err := writeSummary(cfg.Output, stdout, out); err != nil {
		return stats, err
	}
	return stats, nil
}

// openSink builds the configured sink and returns a function releasing it.
func openSink(ctx context.Context, cfg *config.Config) (sink.Sink, func(), error) {
	switch cfg.Sink.Backend {
	case config.SinkRedis:
		rc := cfg.Sink.Redis
		redisClient := redis.NewClient(&redis.Options{
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			redisClient.Close()
			return nil, nil, fmt.Errorf("connect to redis at %s: %w", rc.Addr, err)
		}
		log.Info().Str("addr", rc.Addr).Msg("Connected to Redis")

		s := sink.NewRedisSink(redisClient, sink.RedisConfig{
			Prefix:   rc.Prefix,
			Provider: cfg.Provider,
			TTL:      rc.TTL,
		})
		return s, func() { redisClient.Close() }, nil
	default:
		return sink.NewMemorySink(), func() {}, nil
	}
}

func newProvider(ctx context.Context, cfg *config.Config, s sink.Sink) (fetcher.Provider, error) {
	switch cfg.Provider {
	case config.ProviderREST:
		api, err := client.New(cfg.REST.Client)
		if err != nil {
			return nil, fmt.Errorf("create api client: %w", err)
		}
		reg, err := rest.NewProvider(api, cfg.REST.API, s)
		if err != nil {
			return nil, fmt.Errorf("rest provider: %w", err)
		}
		return reg, nil
	default:
		clients, err := aws.Connect(ctx, cfg.AWS)
		if err != nil {
			return nil, fmt.Errorf("connect to aws: %w", err)
		}
		return aws.NewProvider(clients, s), nil
	}
}

func writeSummary(path string, stdout io.Writer, out summary) error {
	w := stdout
	if path != "" && path != "-" {
		file, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer file.Close()
		w = file
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
