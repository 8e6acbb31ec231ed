package logging

import (
	"errors"

	"github.com/Sternrassler/config-collector/pkg/fetcher"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var reportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "collector_reports_total",
	Help: "Total number of reports sent to the reporting sink, by level",
}, []string{"level"}) // "exception", "info", "error"

// Reporter writes fetcher reports to a zerolog logger.
type Reporter struct {
	logger zerolog.Logger
}

var _ fetcher.Reporter = (*Reporter)(nil)

// NewReporter creates a Reporter on top of logger.
func NewReporter(logger zerolog.Logger) *Reporter {
	return &Reporter{logger: logger}
}

// ReportException logs err with whatever structure it carries.
func (r *Reporter) ReportException(err error) {
	if err == nil {
		return
	}
	reportsTotal.WithLabelValues("exception").Inc()

	event := r.logger.Error().Err(err)

	var (
		listErr  *fetcher.ListError
		parseErr *fetcher.ParseError
		resErr   *fetcher.MethodResolutionError
		panicErr *fetcher.PanicError
	)
	switch {
	case errors.As(err, &listErr):
		event = event.Str("kind", listErr.Kind).Str("method", listErr.Method).Str("stage", "list")
	case errors.As(err, &parseErr):
		event = event.Str("kind", parseErr.Kind).Str("stage", "parse")
	case errors.As(err, &resErr):
		event = event.Str("kind", resErr.Kind).Str("method", resErr.Method)
	case errors.As(err, &panicErr):
		event = event.Str("kind", panicErr.Kind).Str("stage", panicErr.Stage).Bytes("stack", panicErr.Stack)
	}

	event.Msg("Exception while fetching")
}

// ReportInfo logs msg at info level.
func (r *Reporter) ReportInfo(msg string) {
	reportsTotal.WithLabelValues("info").Inc()
	r.logger.Info().Msg(msg)
}

// ReportError logs msg at error level.
func (r *Reporter) ReportError(msg string) {
	reportsTotal.WithLabelValues("error").Inc()
	r.logger.Error().Msg(msg)
}
