// Package workqueue provides an unbounded, goroutine-safe FIFO with a pending
// counter that can be joined, plus sentinel entries used to wake blocked
// consumers during shutdown.
package workqueue

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for queue state.
var (
	queueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "collector_queue_depth",
		Help: "Number of entries currently buffered in a work queue",
	}, []string{"queue"})

	queuePending = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "collector_queue_pending",
		Help: "Number of enqueued items not yet marked done",
	}, []string{"queue"})
)

type entry[T any] struct {
	value T
	stop  bool
}

// Queue is an unbounded FIFO of work items.
//
// Every Put increments the pending counter and every Done decrements it. Join
// blocks until the counter is back at zero. Sentinels added with Stop are not
// work: they do not count as pending and consumers must not call Done for them.
type Queue[T any] struct {
	name string

	mu      sync.Mutex
	ready   *sync.Cond
	drained *sync.Cond
	items   []entry[T]
	pending int
}

// New creates an empty queue. The name labels its metrics.
func New[T any](name string) *Queue[T] {
	q := &Queue[T]{name: name}
	q.ready = sync.NewCond(&q.mu)
	q.drained = sync.NewCond(&q.mu)
	return q
}

// Name returns the queue name.
func (q *Queue[T]) Name() string {
	return q.name
}

// Put appends an item and increments the pending counter. It never blocks on
// consumers.
func (q *Queue[T]) Put(v T) {
	q.mu.Lock()
	q.items = append(q.items, entry[T]{value: v})
	q.pending++
	q.observe()
	q.mu.Unlock()

	q.ready.Signal()
}

// Stop appends n sentinels. Each sentinel wakes exactly one Get.
func (q *Queue[T]) Stop(n int) {
	if n <= 0 {
		return
	}

	q.mu.Lock()
	for i := 0; i < n; i++ {
		q.items = append(q.items, entry[T]{stop: true})
	}
	q.observe()
	q.mu.Unlock()

	q.ready.Broadcast()
}

// Get blocks until an entry is available and removes it. The boolean is false
// when the entry is a sentinel.
func (q *Queue[T]) Get() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 {
		q.ready.Wait()
	}

	e := q.items[0]
	var zero entry[T]
	q.items[0] = zero
	q.items = q.items[1:]
	q.observe()

	if e.stop {
		var v T
		return v, false
	}
	return e.value, true
}

// Done marks one previously dequeued item as fully handled.
// It panics if called more times than Put.
func (q *Queue[T]) Done() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pending <= 0 {
		panic("workqueue: Done called more times than Put on queue " + q.name)
	}

	q.pending--
	q.observe()

	if q.pending == 0 {
		q.drained.Broadcast()
	}
}

// Join blocks until every item put on the queue has been marked done.
// Items put while Join is waiting extend the wait.
func (q *Queue[T]) Join() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.pending > 0 {
		q.drained.Wait()
	}
}

// Pending returns the number of items not yet marked done.
func (q *Queue[T]) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

// Len returns the number of buffered entries, sentinels included.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// observe publishes gauges; q.mu must be held.
func (q *Queue[T]) observe() {
	queueDepth.WithLabelValues(q.name).Set(float64(len(q.items)))
	queuePending.WithLabelValues(q.name).Set(float64(q.pending))
}
