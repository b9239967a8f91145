// Package feed delivers device location fixes read from a message topic to
// the simulated location source.
package feed

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"

	"github.com/couchcryptid/nearby-search/internal/domain"
	"github.com/couchcryptid/nearby-search/internal/observability"
)

// BatchExtractor reads up to batchSize raw events from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// FixSink receives decoded fixes and reported positioning failures.
type FixSink interface {
	Push(fix domain.Fix)
	Fail(err error)
}

// Feed orchestrates the extract-decode-deliver loop.
type Feed struct {
	extractor BatchExtractor
	sink      FixSink
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
	batchSize int
}

// New creates a Feed delivering to sink.
func New(e BatchExtractor, sink FixSink, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Feed {
	return &Feed{
		extractor: e,
		sink:      sink,
		logger:    logger,
		metrics:   metrics,
		batchSize: batchSize,
	}
}

// CheckReadiness returns nil once the feed has delivered at least one
// message, or an error describing why it is not yet ready.
func (f *Feed) CheckReadiness(_ context.Context) error {
	if !f.ready.Load() {
		return errors.New("location feed has not delivered any fixes yet")
	}
	return nil
}

// Run executes the feed loop until the context is cancelled.
func (f *Feed) Run(ctx context.Context) error {
	f.logger.Info("location feed started", "batch_size", f.batchSize)
	f.metrics.FeedRunning.Set(1)
	defer f.metrics.FeedRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			f.logger.Info("location feed stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !f.processBatch(ctx, &backoff, maxBackoff) {
			return nil
		}
	}
}

// processBatch runs one extract-decode-deliver cycle. Returns false if the feed should stop.
func (f *Feed) processBatch(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	rawBatch, err := f.extractor.ExtractBatch(ctx, f.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		f.logger.Error("extract batch failed", "error", err)
		return f.backoffOrStop(ctx, backoff, maxBackoff)
	}

	if len(rawBatch) == 0 {
		return ctx.Err() == nil
	}

	f.metrics.FixesConsumed.Add(float64(len(rawBatch)))
	f.metrics.FeedBatchSize.Observe(float64(len(rawBatch)))
	*backoff = 200 * time.Millisecond

	if f.deliver(ctx, rawBatch) > 0 {
		f.ready.Store(true)
	}
	return true
}

// deliver decodes each message in order and hands it to the sink, committing
// every offset including undecodable ones. Returns the number delivered.
func (f *Feed) deliver(ctx context.Context, rawBatch []domain.RawEvent) int {
	delivered := 0
	for _, raw := range rawBatch {
		fix, reported, err := domain.ParseFix(raw)
		switch {
		case err != nil:
			f.logger.Warn("decode failed, skipping message",
				"error", err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			f.metrics.FixDecodeErrors.Inc()
		case reported != nil:
			f.sink.Fail(reported)
			delivered++
		default:
			f.sink.Push(fix)
			delivered++
		}
		f.commitOffset(ctx, raw)
	}
	return delivered
}

// backoffOrStop checks for context cancellation, sleeps with the current backoff,
// and advances the backoff. Returns false if the feed should stop.
func (f *Feed) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !retry.SleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = retry.NextBackoff(*backoff, maxBackoff)
	return true
}

// commitOffset commits the message offset if a commit function is available.
func (f *Feed) commitOffset(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		f.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}
