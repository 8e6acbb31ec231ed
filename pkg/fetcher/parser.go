package fetcher

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/Sternrassler/config-collector/pkg/throttle"
	"github.com/mitchellh/copystructure"
	"github.com/rs/zerolog"
)

// parseWorker takes items off the target queue until it receives a sentinel
// or sees the parsing flag cleared.
func (f *Fetcher) parseWorker(ctx context.Context, r *run, workerID int) {
	logger := f.logger.With().Str("stage", "parse").Int("worker_id", workerID).Logger()
	defer r.parseStopped.Add(1)

	processed := 0
	for {
		it, ok := r.target.Get()
		if !ok {
			logger.Debug().Int("processed", processed).Msg("Parsing worker stopping")
			return
		}
		if !r.parsing.Load() {
			r.target.Done()
			return
		}

		f.parseOne(ctx, r, it, logger)

		// The dequeued slot is always closed here. A requeue has already
		// opened a new one, so pending never touches zero in between.
		r.target.Done()
		processed++
	}
}

func (f *Fetcher) parseOne(ctx context.Context, r *run, it Item, logger zerolog.Logger) {
	defer func() {
		if rec := recover(); rec != nil {
			f.drop(r, it.Kind, "panic")
			f.reporter.ReportException(&PanicError{Stage: "parse", Kind: it.Kind, Value: rec, Stack: debug.Stack()})
		}
	}()

	if it.Payload == nil {
		r.skipped.Add(1)
		logger.Debug().Str("kind", it.Kind).Msg("Empty payload, skipping item")
		return
	}

	// The parse operation may mutate the payload; keep an untouched copy to
	// requeue from.
	backup, err := copystructure.Copy(it.Payload)
	if err != nil {
		f.drop(r, it.Kind, "snapshot")
		f.reporter.ReportException(&ParseError{Kind: it.Kind, Err: fmt.Errorf("%w: %w", ErrSnapshot, err)})
		return
	}

	parse, err := f.provider.Parser(it.Kind)
	if err != nil {
		f.drop(r, it.Kind, "no_parser")
		f.reporter.ReportException(err)
		return
	}

	if err := parse(ctx, it.Kind, it.Payload); err != nil {
		f.handleParseError(r, it, backup, err, logger)
		return
	}

	r.parsed.Add(1)
	itemsParsedTotal.WithLabelValues(it.Kind).Inc()
}

// handleParseError applies the throttle policy: throttled items go back on
// the target queue from their backup, everything else is reported and dropped.
func (f *Fetcher) handleParseError(r *run, it Item, backup any, err error, logger zerolog.Logger) {
	if f.classifier.Classify(err) != throttle.ClassThrottled {
		f.drop(r, it.Kind, "parse_error")
		f.reporter.ReportException(&ParseError{Kind: it.Kind, Err: err})
		return
	}

	if r.tracker.Record(it.Kind, it.key()) == throttle.Drop {
		f.drop(r, it.Kind, "requeue_limit")
		f.reporter.ReportException(&ParseError{Kind: it.Kind, Err: fmt.Errorf("%w: %w", ErrRequeueLimit, err)})
		return
	}

	r.target.Put(Item{Kind: it.Kind, Payload: backup, seq: it.seq})
	r.requeued.Add(1)

	logger.Debug().Str("kind", it.Kind).Msg("Item requeued after throttling")
}

func (f *Fetcher) drop(r *run, kind, reason string) {
	r.dropped.Add(1)
	itemsDroppedTotal.WithLabelValues(kind, reason).Inc()
}
