// Package interaction persists handled queries without slowing replies down.
// Records are queued in memory and written to a Sink in batches by a
// background loop.
package interaction

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/couchcryptid/weather-assistant/internal/domain"
	"github.com/couchcryptid/weather-assistant/internal/observability"
)

// Defaults used when Config fields are unset.
const (
	DefaultQueueSize     = 1024
	DefaultBatchSize     = 50
	DefaultFlushInterval = 500 * time.Millisecond
)

const (
	initialBackoff   = 200 * time.Millisecond
	maxBackoff       = 5 * time.Second
	maxWriteAttempts = 5
	drainTimeout     = 5 * time.Second
)

// ErrQueueFull is returned by LogInteraction when the record was dropped.
var ErrQueueFull = errors.New("interaction queue full")

// Sink writes a batch of interaction records.
type Sink interface {
	WriteBatch(ctx context.Context, recs []domain.Interaction) error
}

// Config sizes the queue and batching.
type Config struct {
	QueueSize     int
	BatchSize     int
	FlushInterval time.Duration
}

// Pipeline queues interaction records and writes them to a sink in batches.
// It implements domain.InteractionLogger.
type Pipeline struct {
	sink          Sink
	queue         chan domain.Interaction
	batchSize     int
	flushInterval time.Duration
	backoff       time.Duration
	logger        *slog.Logger
	metrics       *observability.Metrics
}

// NewPipeline creates a Pipeline. Call Run to start writing.
func NewPipeline(sink Sink, cfg Config, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	return &Pipeline{
		sink:          sink,
		queue:         make(chan domain.Interaction, cfg.QueueSize),
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		backoff:       initialBackoff,
		logger:        logger,
		metrics:       metrics,
	}
}

// LogInteraction enqueues rec without blocking. A full queue drops the record.
func (p *Pipeline) LogInteraction(_ context.Context, rec domain.Interaction) error {
	rec.Reply = rec.Snippet()
	select {
	case p.queue <- rec:
		p.metrics.ObserveQueued(true)
		return nil
	default:
		p.metrics.ObserveQueued(false)
		return ErrQueueFull
	}
}

// Run writes queued records until the context is cancelled, then flushes
// whatever is still queued.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("interaction log started",
		"batch_size", p.batchSize,
		"queue_size", cap(p.queue),
		"flush_interval", p.flushInterval,
	)

	for {
		batch, more := p.collect(ctx)
		if len(batch) > 0 {
			p.flush(ctx, batch)
		}
		if !more {
			break
		}
	}

	p.logger.Info("interaction log stopping", "reason", ctx.Err(), "queued", len(p.queue))
	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
	defer cancel()
	for {
		batch := p.queued()
		if len(batch) == 0 {
			return nil
		}
		p.flush(drainCtx, batch)
	}
}

// collect waits for the first record, then gathers more until the batch is
// full or the flush interval passes. It reports false once ctx is done.
func (p *Pipeline) collect(ctx context.Context) ([]domain.Interaction, bool) {
	var batch []domain.Interaction
	select {
	case <-ctx.Done():
		return nil, false
	case rec := <-p.queue:
		batch = append(batch, rec)
	}

	timer := time.NewTimer(p.flushInterval)
	defer timer.Stop()

	for len(batch) < p.batchSize {
		select {
		case <-ctx.Done():
			return batch, false
		case rec := <-p.queue:
			batch = append(batch, rec)
		case <-timer.C:
			return batch, true
		}
	}
	return batch, true
}

// queued takes up to one batch of records without blocking.
func (p *Pipeline) queued() []domain.Interaction {
	var batch []domain.Interaction
	for len(batch) < p.batchSize {
		select {
		case rec := <-p.queue:
			batch = append(batch, rec)
		default:
			return batch
		}
	}
	return batch
}

// flush writes one batch, retrying with exponential backoff. After
// maxWriteAttempts, or once ctx is done, the batch is dropped.
func (p *Pipeline) flush(ctx context.Context, batch []domain.Interaction) {
	backoff := p.backoff
	for attempt := 1; ; attempt++ {
		err := p.sink.WriteBatch(ctx, batch)
		if err == nil {
			p.metrics.ObserveBatch(len(batch), nil)
			return
		}

		p.metrics.ObserveBatch(len(batch), err)
		p.logger.Error("write interaction batch failed",
			"error", err,
			"batch_size", len(batch),
			"attempt", attempt,
		)
		if attempt >= maxWriteAttempts || ctx.Err() != nil || !sleepWithContext(ctx, backoff) {
			p.logger.Warn("dropping interaction batch", "batch_size", len(batch))
			p.metrics.ObserveDropped(len(batch))
			return
		}
		backoff = nextBackoff(backoff, maxBackoff)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
