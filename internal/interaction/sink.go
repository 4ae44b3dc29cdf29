package interaction

import (
	"context"
	"log/slog"

	"github.com/hashicorp/go-multierror"

	"github.com/couchcryptid/weather-assistant/internal/domain"
)

// LogSink writes each record as a structured log line.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// WriteBatch logs every record at Info level.
func (s *LogSink) WriteBatch(ctx context.Context, recs []domain.Interaction) error {
	for _, rec := range recs {
		s.logger.InfoContext(ctx, "interaction",
			"session_id", rec.SessionID,
			"intent", rec.Intent,
			"confidence", rec.Confidence,
			"latency_ms", rec.LatencyMS,
			"location", rec.Entities.Location,
			"datetime", rec.Entities.DateTime,
			"units", rec.Entities.Units,
			"reply", rec.Snippet(),
		)
	}
	return nil
}

// Fanout writes every batch to all of its sinks.
type Fanout []Sink

// WriteBatch writes to each sink in turn and returns every failure.
func (f Fanout) WriteBatch(ctx context.Context, recs []domain.Interaction) error {
	var result *multierror.Error
	for _, s := range f {
		if err := s.WriteBatch(ctx, recs); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
