package fetcher

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/config-collector/pkg/throttle"
	"github.com/Sternrassler/config-collector/pkg/workqueue"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
)

// Queue names, used as metric labels.
const (
	ServiceQueueName = "service"
	TargetQueueName  = "target"
)

// Fetcher runs the listing and parsing pools against one provider.
// A Fetcher may run several invocations, one after the other or concurrently;
// every invocation gets its own queues, flags and counters.
type Fetcher struct {
	provider   Provider
	reporter   Reporter
	classifier *throttle.Classifier
	config     Config
	logger     zerolog.Logger
}

// Stats summarises one invocation.
type Stats struct {
	Descriptors         int
	ListErrors          int64
	Discovered          int64
	Parsed              int64
	Dropped             int64
	Requeued            int64
	Skipped             int64
	ListWorkersStopped  int64
	ParseWorkersStopped int64
	Duration            time.Duration
}

// run holds everything scoped to one invocation.
type run struct {
	service *workqueue.Queue[Descriptor]
	target  *workqueue.Queue[Item]

	// RunFlags: true until both queues drain, then false for good.
	listing atomic.Bool
	parsing atomic.Bool

	tracker *throttle.Tracker
	seq     atomic.Uint64

	listErrors   atomic.Int64
	discovered   atomic.Int64
	parsed       atomic.Int64
	dropped      atomic.Int64
	requeued     atomic.Int64
	skipped      atomic.Int64
	listStopped  atomic.Int64
	parseStopped atomic.Int64
}

// New creates a Fetcher. Zero pool sizes select DefaultConfig's sizes.
func New(provider Provider, cfg Config, opts ...Option) (*Fetcher, error) {
	if provider == nil {
		return nil, &SetupError{Reason: "provider", Err: ErrNilProvider}
	}

	cfg, err := cfg.normalize()
	if err != nil {
		return nil, &SetupError{Reason: "config", Err: err}
	}

	f := &Fetcher{
		provider:   provider,
		reporter:   NopReporter{},
		classifier: throttle.NewClassifier(cfg.ThrottleCodes...),
		config:     cfg,
		logger:     log.With().Str("component", "fetcher").Logger(),
	}
	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

// Config returns the effective configuration.
func (f *Fetcher) Config() Config {
	return f.config
}

// FetchAll lists and parses every descriptor and blocks until both stages
// have drained and all workers have exited. When descriptors is empty and the
// provider implements DefaultsProvider, its defaults are fetched instead.
//
// Per-item failures go to the Reporter; the returned error is only non-nil
// when the pipeline could not be set up.
func (f *Fetcher) FetchAll(ctx context.Context, descriptors []Descriptor) error {
	_, err := f.FetchAllStats(ctx, descriptors)
	return err
}

// FetchAllStats is FetchAll returning a summary of the invocation.
func (f *Fetcher) FetchAllStats(ctx context.Context, descriptors []Descriptor) (Stats, error) {
	if len(descriptors) == 0 {
		if dp, ok := f.provider.(DefaultsProvider); ok {
			descriptors = dp.Defaults()
		}
	}

	start := time.Now()
	r := f.newRun()

	if f.config.Service != "" {
		f.reporter.ReportInfo(fmt.Sprintf("Fetching %s config...", FormatServiceName(f.config.Service)))
	}

	f.logger.Info().
		Str("service", f.config.Service).
		Int("kinds", len(descriptors)).
		Int("list_workers", f.config.ListWorkers).
		Int("parse_workers", f.config.ParseWorkers).
		Msg("Starting fetch")

	// Parsers first so the target queue has consumers before anything lists
	parsers := pool.New().WithMaxGoroutines(f.config.ParseWorkers)
	for i := 0; i < f.config.ParseWorkers; i++ {
		workerID := i
		parsers.Go(func() { f.parseWorker(ctx, r, workerID) })
	}

	listers := pool.New().WithMaxGoroutines(f.config.ListWorkers)
	for i := 0; i < f.config.ListWorkers; i++ {
		workerID := i
		listers.Go(func() { f.listWorker(ctx, r, workerID) })
	}

	for _, d := range descriptors {
		r.service.Put(d)
	}

	// The service queue is the only producer into the target queue, so it has
	// to drain first.
	r.service.Join()
	r.target.Join()

	f.shutdown(r)

	listers.Wait()
	parsers.Wait()

	stats := r.stats(len(descriptors), time.Since(start))
	fetchDuration.Observe(stats.Duration.Seconds())

	f.logger.Info().
		Str("service", f.config.Service).
		Int64("discovered", stats.Discovered).
		Int64("parsed", stats.Parsed).
		Int64("dropped", stats.Dropped).
		Int64("requeued", stats.Requeued).
		Int64("list_errors", stats.ListErrors).
		Dur("duration", stats.Duration).
		Msg("Fetch complete")

	return stats, nil
}

func (f *Fetcher) newRun() *run {
	r := &run{
		service: workqueue.New[Descriptor](ServiceQueueName),
		target:  workqueue.New[Item](TargetQueueName),
		tracker: throttle.NewTracker(f.config.MaxRequeues, f.config.WarnAfter, f.logger),
	}
	r.listing.Store(true)
	r.parsing.Store(true)
	return r
}

// shutdown flips both run flags and wakes every worker with exactly one
// sentinel each. Flipping alone would leave workers blocked in Get.
func (f *Fetcher) shutdown(r *run) {
	r.parsing.Store(false)
	r.listing.Store(false)

	r.target.Stop(f.config.ParseWorkers)
	r.service.Stop(f.config.ListWorkers)

	f.logger.Debug().
		Int("list_sentinels", f.config.ListWorkers).
		Int("parse_sentinels", f.config.ParseWorkers).
		Msg("Queues drained, stopping workers")
}

func (r *run) stats(descriptors int, d time.Duration) Stats {
	return Stats{
		Descriptors:         descriptors,
		ListErrors:          r.listErrors.Load(),
		Discovered:          r.discovered.Load(),
		Parsed:              r.parsed.Load(),
		Dropped:             r.dropped.Load(),
		Requeued:            r.requeued.Load(),
		Skipped:             r.skipped.Load(),
		ListWorkersStopped:  r.listStopped.Load(),
		ParseWorkersStopped: r.parseStopped.Load(),
		Duration:            d,
	}
}

func (r *run) nextItem(kind string, payload any) Item {
	return Item{Kind: kind, Payload: payload, seq: r.seq.Add(1)}
}
