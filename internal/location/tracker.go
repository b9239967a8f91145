// Package location bridges a callback-driven platform location source into
// observable values and awaitable calls.
package location

import (
	"log/slog"
	"sync"

	"github.com/couchcryptid/nearby-search/internal/domain"
	"github.com/couchcryptid/nearby-search/internal/observability"
	"github.com/couchcryptid/nearby-search/internal/stream"
)

var (
	_ Delegate            = (*Tracker)(nil)
	_ AuthorizationSource = (*Tracker)(nil)
	_ PositionSource      = (*Tracker)(nil)
)

// Tracker owns the platform source and republishes its authorization status
// and last known location. All source interaction and callback translation
// runs on one serial loop goroutine; callers never wait for it.
type Tracker struct {
	source  Source
	logger  *slog.Logger
	metrics *observability.Metrics

	auth     *stream.Stream[domain.AuthorizationStatus]
	location *stream.Stream[domain.TrackedLocation]

	mu     sync.Mutex
	queue  []func()
	closed bool
	wake   chan struct{}
	quit   chan struct{}
	done   chan struct{}

	updating  bool // loop-owned
	closeOnce sync.Once
}

// NewTracker starts the serial loop and attaches the tracker to source.
func NewTracker(source Source, logger *slog.Logger, metrics *observability.Metrics) *Tracker {
	t := &Tracker{
		source:   source,
		logger:   logger,
		metrics:  metrics,
		auth:     stream.NewComparable(domain.NotDetermined),
		location: stream.New(domain.UnknownLocation(), domain.TrackedLocation.Same),
		wake:     make(chan struct{}, 1),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	go t.loop()
	t.post(func() { source.Attach(t) })
	return t
}

func (t *Tracker) Authorization() stream.Observable[domain.AuthorizationStatus] {
	return t.auth
}

func (t *Tracker) Location() stream.Observable[domain.TrackedLocation] {
	return t.location
}

// RequestPermission asks the platform for when-in-use authorization. The
// outcome arrives on Authorization.
func (t *Tracker) RequestPermission() {
	t.post(func() {
		t.logger.Debug("requesting location authorization")
		t.source.RequestWhenInUseAuthorization()
	})
}

// StartUpdating turns on location updates. Redundant calls are ignored.
func (t *Tracker) StartUpdating() {
	t.post(func() {
		if t.updating {
			return
		}
		t.updating = true
		t.logger.Debug("starting location updates")
		t.source.StartUpdatingLocation()
	})
}

// StopUpdating turns off location updates. Redundant calls are ignored.
func (t *Tracker) StopUpdating() {
	t.post(t.stop)
}

// ServicesEnabled queries the source directly on the caller's goroutine.
func (t *Tracker) ServicesEnabled() bool {
	return t.source.ServicesEnabled()
}

// DidChangeAuthorization implements Delegate.
func (t *Tracker) DidChangeAuthorization(status domain.AuthorizationStatus) {
	t.post(func() {
		if t.auth.Send(status) {
			t.logger.Info("location authorization changed", "status", status)
			t.metrics.AuthorizationChanges.WithLabelValues(string(status)).Inc()
		}
	})
}

// DidUpdateLocations implements Delegate. Only the most recent fix is kept.
func (t *Tracker) DidUpdateLocations(fixes []domain.Fix) {
	if len(fixes) == 0 {
		return
	}
	last := fixes[len(fixes)-1]
	t.post(func() {
		if t.location.Send(domain.Located(last)) {
			t.metrics.LocationUpdates.WithLabelValues("located").Inc()
		}
	})
}

// DidFail implements Delegate.
func (t *Tracker) DidFail(err error) {
	t.post(func() {
		t.logger.Warn("location source failed", "error", err)
		t.metrics.LocationUpdates.WithLabelValues("failed").Inc()
		t.location.Send(domain.LocationFailure(err))
	})
}

// Close stops updates, drains pending work and closes both streams.
func (t *Tracker) Close() {
	t.closeOnce.Do(func() {
		t.post(t.stop)
		close(t.quit)
		<-t.done
		t.auth.Close()
		t.location.Close()
	})
}

func (t *Tracker) stop() {
	if !t.updating {
		return
	}
	t.updating = false
	t.logger.Debug("stopping location updates")
	t.source.StopUpdatingLocation()
}

func (t *Tracker) post(op func()) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.queue = append(t.queue, op)
	t.mu.Unlock()

	select {
	case t.wake <- struct{}{}:
	default:
	}
}

func (t *Tracker) drain(closing bool) int {
	t.mu.Lock()
	ops := t.queue
	t.queue = nil
	if closing {
		t.closed = true
	}
	t.mu.Unlock()

	for _, op := range ops {
		op()
	}
	return len(ops)
}

func (t *Tracker) loop() {
	defer close(t.done)

	for {
		if t.drain(false) > 0 {
			continue
		}
		select {
		case <-t.wake:
		case <-t.quit:
			// Callbacks posted while draining are dropped once closed is set.
			for t.drain(false) > 0 {
			}
			t.drain(true)
			return
		}
	}
}
