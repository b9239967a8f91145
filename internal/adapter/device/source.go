// Package device provides a simulated platform location source. Fixes are
// pushed in by the Kafka fix feed or a static positioner; authorization
// follows a configured policy.
package device

import (
	"log/slog"
	"sync"

	"github.com/couchcryptid/nearby-search/internal/domain"
	"github.com/couchcryptid/nearby-search/internal/location"
)

var _ location.Source = (*Source)(nil)

// Policy scripts how the simulated platform answers authorization queries.
type Policy struct {
	// Initial is reported when the tracker attaches.
	Initial domain.AuthorizationStatus
	// PromptResponse is reported after a permission request made while the
	// status is not determined.
	PromptResponse domain.AuthorizationStatus
	// ServicesEnabled is the global location services switch.
	ServicesEnabled bool
}

// Source implements location.Source. Fixes pushed while updates are off are
// kept as the last known position and delivered when updates start.
type Source struct {
	logger *slog.Logger

	mu        sync.Mutex
	delegate  location.Delegate
	policy    Policy
	status    domain.AuthorizationStatus
	updating  bool
	pending   *domain.Fix
	lastError error
}

func NewSource(policy Policy, logger *slog.Logger) *Source {
	return &Source{
		logger: logger,
		policy: policy,
		status: policy.Initial,
	}
}

func (s *Source) Attach(d location.Delegate) {
	s.mu.Lock()
	s.delegate = d
	status := s.status
	s.mu.Unlock()

	d.DidChangeAuthorization(status)
}

func (s *Source) RequestWhenInUseAuthorization() {
	s.mu.Lock()
	if s.status != domain.NotDetermined || s.policy.PromptResponse == "" {
		s.mu.Unlock()
		return
	}
	s.status = s.policy.PromptResponse
	d, status := s.delegate, s.status
	s.mu.Unlock()

	s.logger.Info("simulated permission prompt answered", "status", status)
	if d != nil {
		d.DidChangeAuthorization(status)
	}
}

func (s *Source) StartUpdatingLocation() {
	s.mu.Lock()
	s.updating = true
	d, fix, failure := s.delegate, s.pending, s.lastError
	s.pending, s.lastError = nil, nil
	s.mu.Unlock()

	if d == nil {
		return
	}
	switch {
	case fix != nil:
		d.DidUpdateLocations([]domain.Fix{*fix})
	case failure != nil:
		d.DidFail(failure)
	}
}

func (s *Source) StopUpdatingLocation() {
	s.mu.Lock()
	s.updating = false
	s.mu.Unlock()
}

func (s *Source) ServicesEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.policy.ServicesEnabled
}

// SetAuthorization changes the authorization status as if the user had
// flipped it in settings.
func (s *Source) SetAuthorization(status domain.AuthorizationStatus) {
	s.mu.Lock()
	if s.status == status {
		s.mu.Unlock()
		return
	}
	s.status = status
	d := s.delegate
	s.mu.Unlock()

	if d != nil {
		d.DidChangeAuthorization(status)
	}
}

// SetServicesEnabled flips the global location services switch.
func (s *Source) SetServicesEnabled(enabled bool) {
	s.mu.Lock()
	s.policy.ServicesEnabled = enabled
	s.mu.Unlock()
}

// Push reports a new position fix.
func (s *Source) Push(fix domain.Fix) {
	s.mu.Lock()
	d := s.delegate
	if !s.updating || d == nil {
		s.pending, s.lastError = &fix, nil
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	d.DidUpdateLocations([]domain.Fix{fix})
}

// Fail reports a positioning failure.
func (s *Source) Fail(err error) {
	s.mu.Lock()
	d := s.delegate
	if !s.updating || d == nil {
		s.pending, s.lastError = nil, err
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	d.DidFail(err)
}

// Updating reports whether location updates are on.
func (s *Source) Updating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updating
}
