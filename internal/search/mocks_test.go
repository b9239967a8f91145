package search_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/nearby-search/internal/domain"
	"github.com/couchcryptid/nearby-search/internal/location"
	"github.com/couchcryptid/nearby-search/internal/observability"
	"github.com/couchcryptid/nearby-search/internal/search"
	"github.com/couchcryptid/nearby-search/internal/stream"
)

const (
	waitFor      = 2 * time.Second
	tickInterval = 5 * time.Millisecond
)

// --- mocks ---

type stubAuthSource struct {
	status   *stream.Stream[domain.AuthorizationStatus]
	services bool
}

func (s *stubAuthSource) Authorization() stream.Observable[domain.AuthorizationStatus] {
	return s.status
}
func (s *stubAuthSource) RequestPermission()    {}
func (s *stubAuthSource) ServicesEnabled() bool { return s.services }

type stubPositionSource struct {
	location *stream.Stream[domain.TrackedLocation]
}

func (s *stubPositionSource) Location() stream.Observable[domain.TrackedLocation] {
	return s.location
}
func (s *stubPositionSource) StartUpdating() {}

var sanFrancisco = domain.Fix{
	Coordinates: domain.Coordinates{Latitude: 37.7749, Longitude: -122.4194},
	Timestamp:   time.Date(2024, 4, 26, 12, 0, 0, 0, time.UTC),
}

// mockBackend returns n restaurants per call. Calls for terms listed in hold
// block until released or cancelled.
type mockBackend struct {
	calls atomic.Int32
	n     int
	err   error

	mu   sync.Mutex
	hold map[string]chan struct{}
}

func newMockBackend(n int, held ...string) *mockBackend {
	b := &mockBackend{n: n, hold: make(map[string]chan struct{})}
	for _, terms := range held {
		b.hold[terms] = make(chan struct{})
	}
	return b
}

func (b *mockBackend) release(terms string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.hold[terms]; ok {
		close(ch)
		delete(b.hold, terms)
	}
}

func (b *mockBackend) PerformSearch(ctx context.Context, _ domain.Coordinates, terms *string) (domain.SearchResults, error) {
	b.calls.Add(1)

	key := ""
	if terms != nil {
		key = *terms
	}
	b.mu.Lock()
	ch := b.hold[key]
	b.mu.Unlock()
	if ch != nil {
		select {
		case <-ch:
		case <-ctx.Done():
			return domain.SearchResults{}, ctx.Err()
		}
	}

	if b.err != nil {
		return domain.SearchResults{}, b.err
	}
	results := domain.SearchResults{}
	for i := range b.n {
		results.Restaurants = append(results.Restaurants, domain.Restaurant{
			ID:   fmt.Sprintf("place-%d", i),
			Name: fmt.Sprintf("%s %d", key, i),
		})
	}
	return results, nil
}

// --- helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	auth       *stubAuthSource
	position   *stubPositionSource
	backend    *mockBackend
	controller *search.Controller
}

func newFixture(t *testing.T, status domain.AuthorizationStatus, backend *mockBackend, policy search.Policy) *fixture {
	t.Helper()
	f := &fixture{
		auth: &stubAuthSource{status: stream.NewComparable(status), services: true},
		position: &stubPositionSource{
			location: stream.New(domain.Located(sanFrancisco), domain.TrackedLocation.Same),
		},
		backend: backend,
	}
	logger := discardLogger()
	finder := search.NewNearbyFinder(
		location.NewGate(f.auth, logger),
		location.NewAcquirer(f.position, logger),
		backend,
		logger,
	)
	f.controller = search.NewController(finder, policy, logger, observability.NewMetricsForTesting())
	t.Cleanup(f.controller.Close)
	return f
}

// next reads count states from sub, failing the test on timeout.
func next(t *testing.T, sub *stream.Subscription[search.State], count int) []search.State {
	t.Helper()
	var got []search.State
	for len(got) < count {
		select {
		case st, ok := <-sub.C():
			if !ok {
				t.Fatalf("state stream ended after %v", got)
			}
			got = append(got, st)
		case <-time.After(waitFor):
			t.Fatalf("timed out waiting for state %d, got %v", len(got)+1, got)
		}
	}
	return got
}

func phases(states []search.State) []domain.LoadPhase {
	out := make([]domain.LoadPhase, len(states))
	for i, st := range states {
		out[i] = st.Phase
	}
	return out
}

func awaitTask(t *testing.T, task *domain.Task) {
	t.Helper()
	select {
	case <-task.Done():
	case <-time.After(waitFor):
		t.Fatalf("task %s did not finish", task)
	}
}
