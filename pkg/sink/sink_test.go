package sink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestKey_String(t *testing.T) {
	tests := []struct {
		name     string
		key      Key
		expected string
	}{
		{
			name:     "full key",
			key:      Key{Prefix: "cc", Provider: "aws", Kind: "ec2.instances", ID: "i-0abc"},
			expected: "cc:aws:ec2.instances:i-0abc",
		},
		{
			name:     "default prefix",
			key:      Key{Provider: "rest", Kind: "users", ID: "42"},
			expected: "collector:rest:users:42",
		},
		{
			name:     "no provider",
			key:      Key{Kind: "users", ID: "42"},
			expected: "collector:users:42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.expected {
				t.Errorf("String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestKey_IndexKeys(t *testing.T) {
	k := Key{Provider: "aws", Kind: "s3.buckets", ID: "x"}

	if got := k.IndexKey(); got != "collector:aws:idx:s3.buckets" {
		t.Errorf("IndexKey() = %q", got)
	}
	if got := k.KindsKey(); got != "collector:aws:kinds" {
		t.Errorf("KindsKey() = %q", got)
	}
}

func TestNonProviderID(t *testing.T) {
	// sha1("my-bucket")
	const want = "05e4d09607e1436e2cab7b5922124a1eec1725fb"

	if got := NonProviderID("my-bucket"); got != want {
		t.Errorf("NonProviderID() = %q, want %q", got, want)
	}
	if NonProviderID("my-bucket") == NonProviderID("other-bucket") {
		t.Error("different names produced the same id")
	}
}

func TestMemorySink_PutGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySink()

	if err := s.Put(ctx, "iam.users", "alice", map[string]any{"name": "alice", "mfa": true}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	rec, err := s.Get(ctx, "iam.users", "alice")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	var user struct {
		Name string `json:"name"`
		MFA  bool   `json:"mfa"`
	}
	if err := rec.Decode(&user); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if user.Name != "alice" || !user.MFA {
		t.Errorf("decoded = %+v", user)
	}
	if rec.StoredAt.IsZero() {
		t.Error("StoredAt not set")
	}

	if _, err := s.Get(ctx, "iam.users", "bob"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestMemorySink_LastPutWins(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySink()

	s.Put(ctx, "s3.buckets", "b1", map[string]any{"region": "us-east-1"})
	s.Put(ctx, "s3.buckets", "b1", map[string]any{"region": "eu-west-1"})

	rec, _ := s.Get(ctx, "s3.buckets", "b1")
	var v map[string]string
	rec.Decode(&v)
	if v["region"] != "eu-west-1" {
		t.Errorf("region = %q, want eu-west-1", v["region"])
	}
	if s.Count() != 1 {
		t.Errorf("Count() = %d, want 1", s.Count())
	}
}

func TestMemorySink_InvalidRecord(t *testing.T) {
	s := NewMemorySink()

	if err := s.Put(context.Background(), "", "x", 1); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("Put(empty kind) error = %v, want ErrInvalidRecord", err)
	}
	if err := s.Put(context.Background(), "k", "x", make(chan int)); err == nil {
		t.Error("Put(unencodable) should fail")
	}
}

func TestMemorySink_ListAndKinds(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySink()

	for _, id := range []string{"c", "a", "b"} {
		s.Put(ctx, "ec2.instances", id, id)
	}
	s.Put(ctx, "iam.users", "root", "root")

	recs, err := s.List(ctx, "ec2.instances")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(recs) != 3 || recs[0].ID != "a" || recs[2].ID != "c" {
		t.Errorf("List() not ordered by id: %v", recs)
	}

	kinds := s.Kinds()
	if len(kinds) != 2 || kinds[0] != "ec2.instances" || kinds[1] != "iam.users" {
		t.Errorf("Kinds() = %v", kinds)
	}

	snap := s.Snapshot()
	if len(snap["ec2.instances"]) != 3 {
		t.Errorf("Snapshot() = %v", snap)
	}
}

func TestMemorySink_ConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySink()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				s.Put(ctx, fmt.Sprintf("kind-%d", i%3), fmt.Sprintf("%d-%d", w, i), i)
			}
		}()
	}
	wg.Wait()

	if s.Count() != 800 {
		t.Errorf("Count() = %d, want 800", s.Count())
	}
}
