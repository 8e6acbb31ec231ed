package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
)

// Config holds pager configuration.
type Config struct {
	// MaxConcurrency is the maximum number of pages fetched in parallel.
	MaxConcurrency int `yaml:"max_concurrency"`

	// Timeout per page fetch.
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultConfig returns the default pager configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        30 * time.Second,
	}
}

// PageFunc fetches one page and returns its items plus the total page count.
type PageFunc func(ctx context.Context, page int) (items []any, totalPages int, err error)

// PageError records a failed page.
type PageError struct {
	Page int
	Err  error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page %d: %v", e.Page, e.Err)
}

func (e *PageError) Unwrap() error {
	return e.Err
}

// Pager fetches all pages of a page-numbered listing.
type Pager struct {
	config Config
}

// NewPager creates a pager. Non-positive settings fall back to DefaultConfig.
func NewPager(config Config) *Pager {
	def := DefaultConfig()
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = def.MaxConcurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	return &Pager{config: config}
}

// FetchAll fetches every page of name and returns the items in page order.
// Pages that fail are skipped; their errors are joined into the returned
// error alongside the items of every page that succeeded.
func (p *Pager) FetchAll(ctx context.Context, name string, fetch PageFunc) ([]any, error) {
	start := time.Now()
	logger := log.With().Str("component", "pagination").Str("endpoint", name).Logger()

	first, totalPages, err := p.fetchPage(ctx, fetch, 1)
	if err != nil {
		return nil, fmt.Errorf("fetch first page: %w", err)
	}

	if totalPages <= 1 {
		logger.Debug().
			Int("pages", 1).
			Dur("duration", time.Since(start)).
			Msg("Fetch complete (single page)")
		return first, nil
	}

	logger.Debug().Int("total_pages", totalPages).Msg("Starting parallel page fetch")

	// Each goroutine owns one slot, so no locking is needed.
	pages := make([][]any, totalPages)
	errs := make([]error, totalPages)
	pages[0] = first

	wp := pool.New().WithMaxGoroutines(p.config.MaxConcurrency)
	for page := 2; page <= totalPages; page++ {
		wp.Go(func() {
			items, _, err := p.fetchPage(ctx, fetch, page)
			if err != nil {
				logger.Warn().Err(err).Int("page", page).Msg("Page fetch failed")
				errs[page-1] = &PageError{Page: page, Err: err}
				return
			}
			pages[page-1] = items
		})
	}
	wp.Wait()

	var items []any
	fetched := 0
	for i, page := range pages {
		if errs[i] != nil {
			continue
		}
		items = append(items, page...)
		fetched++
	}

	if err := errors.Join(errs...); err != nil {
		return items, fmt.Errorf("partial data: %d/%d pages: %w", fetched, totalPages, err)
	}

	logger.Debug().
		Int("pages", fetched).
		Int("items", len(items)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return items, nil
}

func (p *Pager) fetchPage(ctx context.Context, fetch PageFunc, page int) ([]any, int, error) {
	pageCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()
	return fetch(pageCtx, page)
}
