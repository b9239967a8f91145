package device

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/nearby-search/internal/domain"
)

// FixSink receives position fixes.
type FixSink interface {
	Push(fix domain.Fix)
}

// StaticPositioner reports a fixed coordinate on every tick, standing in for
// a stationary device.
type StaticPositioner struct {
	sink     FixSink
	at       domain.Coordinates
	accuracy float64
	interval time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
}

// NewStaticPositioner reports at every interval. A nil clock uses real time.
func NewStaticPositioner(sink FixSink, at domain.Coordinates, interval time.Duration, clock clockwork.Clock, logger *slog.Logger) *StaticPositioner {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &StaticPositioner{
		sink:     sink,
		at:       at,
		accuracy: 10,
		interval: interval,
		clock:    clock,
		logger:   logger,
	}
}

// Run pushes one fix immediately and then one per interval until ctx is done.
func (p *StaticPositioner) Run(ctx context.Context) error {
	p.logger.Info("static positioner started", "coordinates", p.at.String(), "interval", p.interval)
	p.push()

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("static positioner stopping")
			return nil
		case <-ticker.Chan():
			p.push()
		}
	}
}

func (p *StaticPositioner) push() {
	p.sink.Push(domain.Fix{
		Coordinates: p.at,
		Accuracy:    p.accuracy,
		Timestamp:   p.clock.Now().UTC(),
	})
}
