package domain

import (
	"errors"
	"fmt"
)

// DenialReason tells the user what it takes to get location access back.
type DenialReason int

const (
	ReasonUnrecognized DenialReason = iota
	ReasonAuthorizeInSettings
	ReasonServicesDisabled
	ReasonRestricted
)

func (r DenialReason) String() string {
	switch r {
	case ReasonAuthorizeInSettings:
		return "authorize in settings"
	case ReasonServicesDisabled:
		return "location services disabled"
	case ReasonRestricted:
		return "restricted"
	default:
		return "unrecognized"
	}
}

// Message is the user-facing explanation for the reason.
func (r DenialReason) Message() string {
	switch r {
	case ReasonAuthorizeInSettings:
		return "Please go to settings and authorize the application to access the current location."
	case ReasonServicesDisabled:
		return "Please reenable location services in settings and authorize the application to obtain the device location."
	case ReasonRestricted:
		return "The application cannot use location services. Please contact the device's administrator to authorize it to do so."
	default:
		return "Unable to obtain the device location for an unrecognized reason."
	}
}

// DenialReasonFor combines an authorization status with the platform
// capability check.
func DenialReasonFor(status AuthorizationStatus, servicesEnabled bool) DenialReason {
	switch status {
	case Denied:
		if servicesEnabled {
			return ReasonAuthorizeInSettings
		}
		return ReasonServicesDisabled
	case Restricted:
		return ReasonRestricted
	default:
		return ReasonUnrecognized
	}
}

// PermissionDenied means the application may not read the device location.
// It is not retryable without the user acting outside the application.
type PermissionDenied struct {
	Status AuthorizationStatus
	Reason DenialReason
}

func (e *PermissionDenied) Error() string {
	return fmt.Sprintf("location permission denied (%s): %s", e.Reason, e.Reason.Message())
}

// LocationAcquisitionFailure wraps an error reported by the location source.
type LocationAcquisitionFailure struct {
	Err error
}

func (e *LocationAcquisitionFailure) Error() string {
	return fmt.Sprintf("acquire location: %v", e.Err)
}

func (e *LocationAcquisitionFailure) Unwrap() error { return e.Err }

// SearchBackendFailure wraps a failed search call or an unexpected payload
// status.
type SearchBackendFailure struct {
	Status string // payload status when the call itself succeeded
	Err    error
}

func (e *SearchBackendFailure) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("search backend: unexpected status %s", e.Status)
	}
	return fmt.Sprintf("search backend: %v", e.Err)
}

func (e *SearchBackendFailure) Unwrap() error { return e.Err }

// InvariantViolation records a load state transition attempted from an
// incompatible source state. It signals a logic defect.
type InvariantViolation struct {
	From string
	To   string
}

// NewInvariantViolation describes the rejected from -> to transition.
func NewInvariantViolation[T any](from, to LoadState[T]) *InvariantViolation {
	return &InvariantViolation{From: from.String(), To: to.String()}
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("load state unexpectedly going from %s to %s", e.From, e.To)
}

// IsRetryable reports whether calling Fetch again may succeed without user
// action. Permission denials and invariant violations are not retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var denied *PermissionDenied
	var violation *InvariantViolation
	return !errors.As(err, &denied) && !errors.As(err, &violation)
}
