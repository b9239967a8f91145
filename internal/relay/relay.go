// Package relay publishes every successful search to a results sink.
package relay

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/nearby-search/internal/domain"
	"github.com/couchcryptid/nearby-search/internal/observability"
	"github.com/couchcryptid/nearby-search/internal/search"
	"github.com/couchcryptid/nearby-search/internal/stream"
)

// ResultLoader writes completed search results to the destination.
type ResultLoader interface {
	LoadResults(ctx context.Context, task *domain.Task, results domain.SearchResults) error
}

// Relay follows a search state stream and loads each Success.
type Relay struct {
	sub     *stream.Subscription[search.State]
	loader  ResultLoader
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New subscribes to states immediately, so states sent before Run starts are
// still relayed once it does.
func New(states stream.Observable[search.State], loader ResultLoader, logger *slog.Logger, metrics *observability.Metrics) *Relay {
	return &Relay{
		sub:     states.Subscribe(),
		loader:  loader,
		logger:  logger,
		metrics: metrics,
	}
}

// Run publishes successes until ctx is cancelled or the state stream ends,
// then releases the subscription. Load failures are logged and counted; they
// never stop the relay.
func (r *Relay) Run(ctx context.Context) error {
	defer r.sub.Cancel()

	r.logger.Info("result relay started")

	// The task that produced a success is the one that was loading just
	// before it.
	var task *domain.Task
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("result relay stopping", "reason", ctx.Err())
			return nil
		case st, ok := <-r.sub.C():
			if !ok {
				r.logger.Info("result relay stopping", "reason", "state stream closed")
				return nil
			}
			switch st.Phase {
			case domain.PhaseLoading:
				task = st.Task
			case domain.PhaseSuccess:
				r.publish(ctx, task, st.Data)
			}
		}
	}
}

func (r *Relay) publish(ctx context.Context, task *domain.Task, results domain.SearchResults) {
	if err := r.loader.LoadResults(ctx, task, results); err != nil {
		r.metrics.PublishErrors.Inc()
		r.logger.Error("publish search results failed", "error", err, "task", task)
		return
	}
	r.metrics.ResultsPublished.Inc()
	r.logger.Debug("search results published", "task", task, "count", len(results.Restaurants))
}
