package fetcher

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
)

// listWorker takes descriptors off the service queue until it receives a
// sentinel or sees the listing flag cleared.
func (f *Fetcher) listWorker(ctx context.Context, r *run, workerID int) {
	logger := f.logger.With().Str("stage", "list").Int("worker_id", workerID).Logger()
	defer r.listStopped.Add(1)

	processed := 0
	for {
		d, ok := r.service.Get()
		if !ok {
			logger.Debug().Int("processed", processed).Msg("Listing worker stopping")
			return
		}
		if !r.listing.Load() {
			r.service.Done()
			return
		}

		f.listOne(ctx, r, d, logger)
		r.service.Done()
		processed++
	}
}

// listOne lists one descriptor and feeds the target queue. Nothing raised here
// escapes to the worker loop.
func (f *Fetcher) listOne(ctx context.Context, r *run, d Descriptor, logger zerolog.Logger) {
	defer func() {
		if rec := recover(); rec != nil {
			r.listErrors.Add(1)
			listErrorsTotal.WithLabelValues(d.Kind).Inc()
			f.reporter.ReportException(&PanicError{Stage: "list", Kind: d.Kind, Value: rec, Stack: debug.Stack()})
		}
	}()

	if d.ListMethod == "" {
		logger.Debug().Str("kind", d.Kind).Msg("No list method, skipping kind")
		return
	}

	list, err := f.provider.Lister(d.Kind, d.ListMethod)
	if err != nil {
		f.reporter.ReportException(err)
		return
	}

	start := time.Now()
	items, err := list(ctx, d)
	if err != nil {
		r.listErrors.Add(1)
		listErrorsTotal.WithLabelValues(d.Kind).Inc()
		if !d.IgnoreListError {
			f.reporter.ReportException(&ListError{Kind: d.Kind, Method: d.ListMethod, Err: err})
		}
		logger.Debug().
			Err(err).
			Str("kind", d.Kind).
			Int("partial_items", len(items)).
			Bool("ignored", d.IgnoreListError).
			Msg("List operation failed")
	}

	for _, payload := range items {
		r.target.Put(r.nextItem(d.Kind, payload))
	}

	r.discovered.Add(int64(len(items)))
	itemsDiscoveredTotal.WithLabelValues(d.Kind).Add(float64(len(items)))

	logger.Debug().
		Str("kind", d.Kind).
		Int("items", len(items)).
		Dur("duration", time.Since(start)).
		Msg("Listed kind")
}
