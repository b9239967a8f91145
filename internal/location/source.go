package location

import (
	"github.com/couchcryptid/nearby-search/internal/domain"
	"github.com/couchcryptid/nearby-search/internal/stream"
)

// Source is the platform location source. Its methods are called from the
// tracker's serial loop, except ServicesEnabled, which any goroutine may call
// and which must therefore be safe for concurrent use.
type Source interface {
	// Attach installs the delegate. The source should report its current
	// authorization status to the delegate once attached.
	Attach(d Delegate)
	RequestWhenInUseAuthorization()
	StartUpdatingLocation()
	StopUpdatingLocation()
	// ServicesEnabled reports whether location services are globally enabled.
	// It may be called concurrently with the other methods.
	ServicesEnabled() bool
}

// Delegate receives platform callbacks. Implementations must not block.
type Delegate interface {
	DidChangeAuthorization(status domain.AuthorizationStatus)
	DidUpdateLocations(fixes []domain.Fix)
	DidFail(err error)
}

// AuthorizationSource is what the permission gate needs from a tracker.
type AuthorizationSource interface {
	Authorization() stream.Observable[domain.AuthorizationStatus]
	RequestPermission()
	ServicesEnabled() bool
}

// PositionSource is what the acquirer needs from a tracker.
type PositionSource interface {
	Location() stream.Observable[domain.TrackedLocation]
	StartUpdating()
}
