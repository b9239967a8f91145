package location

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/nearby-search/internal/domain"
	"github.com/couchcryptid/nearby-search/internal/stream"
)

type stubPosition struct {
	location *stream.Stream[domain.TrackedLocation]
	starts   atomic.Int32
}

func newStubPosition(initial domain.TrackedLocation) *stubPosition {
	return &stubPosition{location: stream.New(initial, domain.TrackedLocation.Same)}
}

func (p *stubPosition) Location() stream.Observable[domain.TrackedLocation] { return p.location }
func (p *stubPosition) StartUpdating()                                      { p.starts.Add(1) }

func TestAcquirer_KnownLocationReturnsImmediately(t *testing.T) {
	want := fixAt(37.7749, -122.4194)
	pos := newStubPosition(domain.Located(want))
	acq := NewAcquirer(pos, discardLogger())

	got, err := acq.CurrentLocation(context.Background())

	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, int32(1), pos.starts.Load())
	assert.Equal(t, 0, pos.location.Subscribers())
}

func TestAcquirer_WaitsForFirstFix(t *testing.T) {
	pos := newStubPosition(domain.UnknownLocation())
	acq := NewAcquirer(pos, discardLogger())
	want := fixAt(40.7128, -74.006)

	go func() {
		assert.Eventually(t, func() bool { return pos.location.Subscribers() == 1 }, waitFor, tick)
		pos.location.Send(domain.Located(want))
	}()

	got, err := acq.CurrentLocation(context.Background())

	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, int32(1), pos.starts.Load())
}

func TestAcquirer_FailureIsReported(t *testing.T) {
	pos := newStubPosition(domain.UnknownLocation())
	acq := NewAcquirer(pos, discardLogger())
	boom := errors.New("location unknown")

	go func() {
		assert.Eventually(t, func() bool { return pos.location.Subscribers() == 1 }, waitFor, tick)
		pos.location.Send(domain.LocationFailure(boom))
	}()

	_, err := acq.CurrentLocation(context.Background())

	var failure *domain.LocationAcquisitionFailure
	require.ErrorAs(t, err, &failure)
	assert.ErrorIs(t, err, boom)
}

func TestAcquirer_PreviousFailureIsNotSticky(t *testing.T) {
	pos := newStubPosition(domain.LocationFailure(errors.New("stale")))
	acq := NewAcquirer(pos, discardLogger())
	want := fixAt(51.5074, -0.1278)

	go func() {
		assert.Eventually(t, func() bool { return pos.location.Subscribers() == 1 }, waitFor, tick)
		pos.location.Send(domain.Located(want))
	}()

	got, err := acq.CurrentLocation(context.Background())

	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestAcquirer_OverlappingCallsBothResolve(t *testing.T) {
	pos := newStubPosition(domain.UnknownLocation())
	acq := NewAcquirer(pos, discardLogger())
	want := fixAt(48.8566, 2.3522)

	var wg sync.WaitGroup
	results := make([]domain.Fix, 2)
	errs := make([]error, 2)
	for i := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = acq.CurrentLocation(context.Background())
		}()
	}

	require.Eventually(t, func() bool { return pos.location.Subscribers() == 2 }, waitFor, tick)
	pos.location.Send(domain.Located(want))
	wg.Wait()

	for i := range 2 {
		require.NoError(t, errs[i])
		assert.Equal(t, want, results[i])
	}
	assert.Equal(t, 0, pos.location.Subscribers())
}

func TestAcquirer_ContextCancelled(t *testing.T) {
	pos := newStubPosition(domain.UnknownLocation())
	acq := NewAcquirer(pos, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := acq.CurrentLocation(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, pos.location.Subscribers())
}
