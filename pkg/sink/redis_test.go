package sink

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupTestRedis connects to a local Redis, skipping the test when none is
// running. tests/integration runs the same checks against a container.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestNewRedisSink_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewRedisSink should panic with nil redis client")
		}
	}()
	NewRedisSink(nil, RedisConfig{})
}

func TestRedisSink_PutGet(t *testing.T) {
	rdb := setupTestRedis(t)
	ctx := context.Background()
	s := NewRedisSink(rdb, RedisConfig{Provider: "aws"})

	if err := s.Put(ctx, "ec2.instances", "i-1", map[string]any{"state": "running"}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	rec, err := s.Get(ctx, "ec2.instances", "i-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	var v map[string]string
	if err := rec.Decode(&v); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if v["state"] != "running" {
		t.Errorf("state = %q, want running", v["state"])
	}

	if _, err := s.Get(ctx, "ec2.instances", "i-2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}

	exists, err := rdb.Exists(ctx, "collector:aws:ec2.instances:i-1").Result()
	if err != nil || exists != 1 {
		t.Errorf("record key not written: exists=%d err=%v", exists, err)
	}
}

func TestRedisSink_ListAndKinds(t *testing.T) {
	rdb := setupTestRedis(t)
	ctx := context.Background()
	s := NewRedisSink(rdb, RedisConfig{Prefix: "test", Provider: "rest"})

	for _, id := range []string{"u2", "u1"} {
		if err := s.Put(ctx, "users", id, id); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
	}
	s.Put(ctx, "groups", "g1", "g1")

	recs, err := s.List(ctx, "users")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(recs) != 2 || recs[0].ID != "u1" || recs[1].ID != "u2" {
		t.Errorf("List() = %v", recs)
	}

	kinds, err := s.Kinds(ctx)
	if err != nil {
		t.Fatalf("Kinds() error = %v", err)
	}
	if len(kinds) != 2 || kinds[0] != "groups" || kinds[1] != "users" {
		t.Errorf("Kinds() = %v", kinds)
	}
}

func TestRedisSink_ExpiredRecordsPruned(t *testing.T) {
	rdb := setupTestRedis(t)
	ctx := context.Background()
	s := NewRedisSink(rdb, RedisConfig{Provider: "aws", TTL: 50 * time.Millisecond})

	if err := s.Put(ctx, "iam.users", "alice", "alice"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	time.Sleep(150 * time.Millisecond)

	recs, err := s.List(ctx, "iam.users")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("List() = %v, want no records after expiry", recs)
	}

	n, _ := rdb.SCard(ctx, "collector:aws:idx:iam.users").Result()
	if n != 0 {
		t.Errorf("index still holds %d ids", n)
	}
}
