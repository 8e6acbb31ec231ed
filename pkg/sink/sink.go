package sink

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidRecord indicates a stored record could not be decoded.
	ErrInvalidRecord = errors.New("invalid record")
)

// Sink receives parsed resources. Implementations must be safe for
// concurrent use; the last Put for a kind and id wins.
type Sink interface {
	Put(ctx context.Context, kind, id string, value any) error
}

// Record is one stored resource.
type Record struct {
	Kind     string          `json:"kind"`
	ID       string          `json:"id"`
	Value    json.RawMessage `json:"value"`
	StoredAt time.Time       `json:"stored_at"`
}

// newRecord encodes value for storage.
func newRecord(kind, id string, value any) (*Record, error) {
	if kind == "" || id == "" {
		return nil, fmt.Errorf("%w: kind and id are required", ErrInvalidRecord)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal %s/%s: %w", kind, id, err)
	}
	return &Record{Kind: kind, ID: id, Value: data, StoredAt: time.Now().UTC()}, nil
}

// Decode unmarshals the stored value into out.
func (r *Record) Decode(out any) error {
	if err := json.Unmarshal(r.Value, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return nil
}

// NonProviderID derives a stable id from a name, for resources the provider
// does not assign an id to.
func NonProviderID(name string) string {
	sum := sha1.Sum([]byte(name))
	return hex.EncodeToString(sum[:])
}
