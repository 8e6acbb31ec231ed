package throttle

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for throttle tracking.
var (
	throttleRequeuesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_throttle_requeues_total",
		Help: "Total number of items requeued after a throttling rejection, by kind",
	}, []string{"kind"})

	throttleLimitDropsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_throttle_limit_drops_total",
		Help: "Total number of items dropped after reaching the requeue limit, by kind",
	}, []string{"kind"})
)

// DefaultWarnAfter is the requeue count at which an item is logged as
// possibly stuck behind a permanent throttle.
const DefaultWarnAfter = 50

// Decision is what the tracker tells the caller to do with a throttled item.
type Decision int

const (
	// Requeue puts the backup back on the queue.
	Requeue Decision = iota

	// Drop abandons the item because it reached the requeue limit.
	Drop
)

// Tracker counts requeues for one fetch invocation.
//
// MaxRequeues == 0 means unlimited: every throttled item is requeued. The
// tracker then only warns (once per multiple of WarnAfter) so that a
// permanently throttled item shows up in the logs.
type Tracker struct {
	maxRequeues int
	warnAfter   int
	logger      zerolog.Logger

	mu     sync.Mutex
	byKey  map[string]int
	byKind map[string]int
	total  int
}

// NewTracker creates a tracker. warnAfter <= 0 selects DefaultWarnAfter.
func NewTracker(maxRequeues, warnAfter int, logger zerolog.Logger) *Tracker {
	if warnAfter <= 0 {
		warnAfter = DefaultWarnAfter
	}
	if maxRequeues < 0 {
		maxRequeues = 0
	}
	return &Tracker{
		maxRequeues: maxRequeues,
		warnAfter:   warnAfter,
		logger:      logger,
		byKey:       make(map[string]int),
		byKind:      make(map[string]int),
	}
}

// Record registers a throttling rejection for the item identified by key and
// returns whether it should be requeued.
func (t *Tracker) Record(kind, key string) Decision {
	t.mu.Lock()
	attempts := t.byKey[key] + 1

	if t.maxRequeues > 0 && attempts > t.maxRequeues {
		t.mu.Unlock()

		throttleLimitDropsTotal.WithLabelValues(kind).Inc()
		t.logger.Error().
			Str("kind", kind).
			Str("item", key).
			Int("max_requeues", t.maxRequeues).
			Msg("Requeue limit reached - dropping throttled item")
		return Drop
	}

	t.byKey[key] = attempts
	t.byKind[kind]++
	t.total++
	t.mu.Unlock()

	throttleRequeuesTotal.WithLabelValues(kind).Inc()

	if attempts%t.warnAfter == 0 {
		t.logger.Warn().
			Str("kind", kind).
			Str("item", key).
			Int("requeues", attempts).
			Msg("Item still throttled after repeated requeues")
	} else {
		t.logger.Debug().
			Str("kind", kind).
			Int("requeues", attempts).
			Msg("Throttled - requeueing item")
	}

	return Requeue
}

// Requeues returns how many times the item identified by key was requeued.
func (t *Tracker) Requeues(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.byKey[key]
}

// KindRequeues returns the requeue count for a kind.
func (t *Tracker) KindRequeues(kind string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.byKind[kind]
}

// Total returns the number of requeues recorded.
func (t *Tracker) Total() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}
