package location

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/couchcryptid/nearby-search/internal/domain"
)

// fakeSource is a scriptable platform source. Callbacks are delivered from
// whichever goroutine the test drives them on, like a real platform would.
type fakeSource struct {
	mu       sync.Mutex
	delegate Delegate

	initial  domain.AuthorizationStatus
	prompt   domain.AuthorizationStatus // reported after a permission request; empty means no answer
	services atomic.Bool

	requests atomic.Int32
	starts   atomic.Int32
	stops    atomic.Int32
}

func newFakeSource(initial domain.AuthorizationStatus) *fakeSource {
	s := &fakeSource{initial: initial}
	s.services.Store(true)
	return s
}

func (s *fakeSource) Attach(d Delegate) {
	s.mu.Lock()
	s.delegate = d
	s.mu.Unlock()
	d.DidChangeAuthorization(s.initial)
}

func (s *fakeSource) RequestWhenInUseAuthorization() {
	s.requests.Add(1)
	if s.prompt != "" {
		s.Delegate().DidChangeAuthorization(s.prompt)
	}
}

func (s *fakeSource) StartUpdatingLocation() { s.starts.Add(1) }
func (s *fakeSource) StopUpdatingLocation()  { s.stops.Add(1) }
func (s *fakeSource) ServicesEnabled() bool  { return s.services.Load() }

func (s *fakeSource) Delegate() Delegate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delegate
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
