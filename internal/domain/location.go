package domain

import (
	"fmt"
	"time"
)

// AuthorizationStatus mirrors the platform's location authorization state.
type AuthorizationStatus string

const (
	NotDetermined       AuthorizationStatus = "notDetermined"
	AuthorizedWhenInUse AuthorizationStatus = "authorizedWhenInUse"
	AuthorizedAlways    AuthorizationStatus = "authorizedAlways"
	Denied              AuthorizationStatus = "denied"
	Restricted          AuthorizationStatus = "restricted"
)

// ParseAuthorizationStatus maps a configuration string onto a known status.
func ParseAuthorizationStatus(s string) (AuthorizationStatus, error) {
	switch status := AuthorizationStatus(s); status {
	case NotDetermined, AuthorizedWhenInUse, AuthorizedAlways, Denied, Restricted:
		return status, nil
	default:
		return "", fmt.Errorf("unknown authorization status %q", s)
	}
}

// Authorized reports whether the status allows reading the device position.
func (s AuthorizationStatus) Authorized() bool {
	return s == AuthorizedWhenInUse || s == AuthorizedAlways
}

// Coordinates is a WGS-84 latitude/longitude pair.
type Coordinates struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

func (c Coordinates) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Latitude, c.Longitude)
}

// Valid reports whether both components are within WGS-84 bounds.
func (c Coordinates) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

// Fix is a single position report from the location source.
type Fix struct {
	Coordinates Coordinates `json:"coordinates"`
	Accuracy    float64     `json:"accuracy,omitempty"` // meters, 0 when unknown
	Timestamp   time.Time   `json:"timestamp"`
}

// LocationPhase discriminates TrackedLocation values.
type LocationPhase int

const (
	LocationUnknown LocationPhase = iota
	LocationLocated
	LocationFailed
)

func (p LocationPhase) String() string {
	switch p {
	case LocationUnknown:
		return "unknown"
	case LocationLocated:
		return "located"
	case LocationFailed:
		return "failed"
	default:
		return fmt.Sprintf("LocationPhase(%d)", int(p))
	}
}

// TrackedLocation is the last thing the location source told us about the
// device position.
type TrackedLocation struct {
	Phase LocationPhase
	Fix   Fix   // set when Phase == LocationLocated
	Err   error // set when Phase == LocationFailed
}

// UnknownLocation is the initial tracked location.
func UnknownLocation() TrackedLocation {
	return TrackedLocation{Phase: LocationUnknown}
}

// Located wraps a fix.
func Located(fix Fix) TrackedLocation {
	return TrackedLocation{Phase: LocationLocated, Fix: fix}
}

// LocationFailure wraps a platform error.
func LocationFailure(err error) TrackedLocation {
	return TrackedLocation{Phase: LocationFailed, Err: err}
}

// Same is the equality used to coalesce consecutive tracked locations.
// Located values compare coordinates only. Failures never compare equal, so
// every reported platform error reaches observers.
func (l TrackedLocation) Same(other TrackedLocation) bool {
	if l.Phase != other.Phase {
		return false
	}
	switch l.Phase {
	case LocationUnknown:
		return true
	case LocationLocated:
		return l.Fix.Coordinates == other.Fix.Coordinates
	default:
		return false
	}
}

func (l TrackedLocation) String() string {
	switch l.Phase {
	case LocationLocated:
		return "located(" + l.Fix.Coordinates.String() + ")"
	case LocationFailed:
		return fmt.Sprintf("failed(%v)", l.Err)
	default:
		return l.Phase.String()
	}
}
