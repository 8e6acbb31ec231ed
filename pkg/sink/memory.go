package sink

import (
	"context"
	"sort"
	"sync"
)

// MemorySink keeps records in process.
type MemorySink struct {
	mu    sync.RWMutex
	kinds map[string]map[string]*Record
}

var _ Sink = (*MemorySink)(nil)

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{kinds: make(map[string]map[string]*Record)}
}

// Put stores value under kind and id.
func (m *MemorySink) Put(ctx context.Context, kind, id string, value any) error {
	rec, err := newRecord(kind, id, value)
	if err != nil {
		SinkErrors.WithLabelValues("put").Inc()
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	records, ok := m.kinds[kind]
	if !ok {
		records = make(map[string]*Record)
		m.kinds[kind] = records
	}
	records[id] = rec

	SinkWrites.WithLabelValues("memory").Inc()
	return nil
}

// Get returns the record stored under kind and id.
func (m *MemorySink) Get(ctx context.Context, kind, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.kinds[kind][id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

// List returns the records of kind ordered by id.
func (m *MemorySink) List(ctx context.Context, kind string) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := m.kinds[kind]
	out := make([]*Record, 0, len(records))
	for _, rec := range records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Kinds returns the kinds with at least one record, sorted.
func (m *MemorySink) Kinds() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	kinds := make([]string, 0, len(m.kinds))
	for kind := range m.kinds {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// Count returns the number of records stored.
func (m *MemorySink) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, records := range m.kinds {
		n += len(records)
	}
	return n
}

// Snapshot returns every stored value keyed by kind and id.
func (m *MemorySink) Snapshot() map[string]map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]map[string]any, len(m.kinds))
	for kind, records := range m.kinds {
		values := make(map[string]any, len(records))
		for id, rec := range records {
			values[id] = rec.Value
		}
		out[kind] = values
	}
	return out
}
