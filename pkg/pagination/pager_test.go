package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

// pagesOf serves total pages of size items each, labelled "p<page>-<i>".
func pagesOf(total, size int, fail map[int]error) (PageFunc, *atomic.Int32) {
	var calls atomic.Int32
	return func(ctx context.Context, page int) ([]any, int, error) {
		calls.Add(1)
		if err := fail[page]; err != nil {
			return nil, 0, err
		}
		items := make([]any, size)
		for i := range items {
			items[i] = fmt.Sprintf("p%d-%d", page, i)
		}
		return items, total, nil
	}, &calls
}

func TestNewPager_Defaults(t *testing.T) {
	p := NewPager(Config{})
	def := DefaultConfig()

	if p.config.MaxConcurrency != def.MaxConcurrency {
		t.Errorf("MaxConcurrency = %d, want %d", p.config.MaxConcurrency, def.MaxConcurrency)
	}
	if p.config.Timeout != def.Timeout {
		t.Errorf("Timeout = %v, want %v", p.config.Timeout, def.Timeout)
	}
}

func TestPager_SinglePage(t *testing.T) {
	fetch, calls := pagesOf(1, 3, nil)

	items, err := NewPager(DefaultConfig()).FetchAll(context.Background(), "/v1/users", fetch)
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(items) != 3 {
		t.Errorf("items = %d, want 3", len(items))
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestPager_PageOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	fetch, calls := pagesOf(12, 2, nil)

	items, err := NewPager(Config{MaxConcurrency: 5}).FetchAll(context.Background(), "/v1/users", fetch)
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(items) != 24 {
		t.Fatalf("items = %d, want 24", len(items))
	}
	for page := 1; page <= 12; page++ {
		for i := 0; i < 2; i++ {
			want := fmt.Sprintf("p%d-%d", page, i)
			if got := items[(page-1)*2+i]; got != want {
				t.Fatalf("items[%d] = %v, want %s", (page-1)*2+i, got, want)
			}
		}
	}
	if calls.Load() != 12 {
		t.Errorf("calls = %d, want 12", calls.Load())
	}
}

func TestPager_FirstPageError(t *testing.T) {
	boom := errors.New("denied")
	fetch, _ := pagesOf(3, 1, map[int]error{1: boom})

	items, err := NewPager(DefaultConfig()).FetchAll(context.Background(), "/v1/users", fetch)
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want %v", err, boom)
	}
	if items != nil {
		t.Errorf("items = %v, want nil", items)
	}
}

func TestPager_PartialResults(t *testing.T) {
	boom := errors.New("internal error")
	fetch, _ := pagesOf(4, 1, map[int]error{3: boom})

	items, err := NewPager(DefaultConfig()).FetchAll(context.Background(), "/v1/users", fetch)
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want %v", err, boom)
	}

	var pageErr *PageError
	if !errors.As(err, &pageErr) || pageErr.Page != 3 {
		t.Errorf("error should carry PageError for page 3, got %v", err)
	}

	want := []any{"p1-0", "p2-0", "p4-0"}
	if len(items) != len(want) {
		t.Fatalf("items = %v, want %v", items, want)
	}
	for i := range want {
		if items[i] != want[i] {
			t.Errorf("items[%d] = %v, want %v", i, items[i], want[i])
		}
	}
}

func TestPager_BoundedConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	fetch := func(ctx context.Context, page int) ([]any, int, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return []any{page}, 20, nil
	}

	if _, err := NewPager(Config{MaxConcurrency: 3}).FetchAll(context.Background(), "x", fetch); err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if peak.Load() > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", peak.Load())
	}
}
