package fetcher

import (
	"fmt"

	"github.com/rs/zerolog"
)

// ThreadConfig is a pair of pool sizes for the two stages.
type ThreadConfig struct {
	List  int
	Parse int
}

// ThreadConfigs maps a concurrency level to pool sizes. Parsing gets more
// workers than listing since every listed kind fans out into many items.
var ThreadConfigs = map[int]ThreadConfig{
	1: {List: 1, Parse: 1},
	2: {List: 2, Parse: 4},
	3: {List: 3, Parse: 6},
	4: {List: 4, Parse: 10},
	5: {List: 10, Parse: 20},
}

// DefaultThreadLevel is the level used by DefaultConfig.
const DefaultThreadLevel = 4

// Config holds fetcher configuration.
type Config struct {
	// Service names what is fetched, used in progress reports.
	Service string

	// ListWorkers is the size of the listing pool.
	ListWorkers int

	// ParseWorkers is the size of the parsing pool.
	ParseWorkers int

	// MaxRequeues caps how often one throttled item is requeued.
	// 0 means unlimited.
	MaxRequeues int

	// WarnAfter logs a warning every time an item has been requeued this many
	// times. 0 selects throttle.DefaultWarnAfter.
	WarnAfter int

	// ThrottleCodes are error codes treated as throttling in addition to
	// throttle.DefaultCode.
	ThrottleCodes []string
}

// DefaultConfig returns the configuration for DefaultThreadLevel.
func DefaultConfig() Config {
	tc := ThreadConfigs[DefaultThreadLevel]
	return Config{
		ListWorkers:  tc.List,
		ParseWorkers: tc.Parse,
	}
}

// ConfigForLevel returns a configuration with the pool sizes of a thread level.
func ConfigForLevel(level int) (Config, error) {
	tc, ok := ThreadConfigs[level]
	if !ok {
		return Config{}, fmt.Errorf("%w: unknown thread level %d", ErrInvalidConfig, level)
	}
	return Config{ListWorkers: tc.List, ParseWorkers: tc.Parse}, nil
}

func (c Config) normalize() (Config, error) {
	if c.ListWorkers < 0 || c.ParseWorkers < 0 {
		return c, fmt.Errorf("%w: pool sizes must be >= 0 (list=%d, parse=%d)",
			ErrInvalidConfig, c.ListWorkers, c.ParseWorkers)
	}
	if c.MaxRequeues < 0 {
		return c, fmt.Errorf("%w: max_requeues must be >= 0 (got %d)", ErrInvalidConfig, c.MaxRequeues)
	}

	defaults := DefaultConfig()
	if c.ListWorkers == 0 {
		c.ListWorkers = defaults.ListWorkers
	}
	if c.ParseWorkers == 0 {
		c.ParseWorkers = defaults.ParseWorkers
	}
	return c, nil
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithReporter sets where per-item failures are reported.
func WithReporter(r Reporter) Option {
	return func(f *Fetcher) {
		if r != nil {
			f.reporter = r
		}
	}
}

// WithLogger sets the logger used for progress logging.
func WithLogger(logger zerolog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}
