package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDenialReasonFor(t *testing.T) {
	tests := []struct {
		status   AuthorizationStatus
		services bool
		want     DenialReason
	}{
		{Denied, true, ReasonAuthorizeInSettings},
		{Denied, false, ReasonServicesDisabled},
		{Restricted, true, ReasonRestricted},
		{Restricted, false, ReasonRestricted},
		{NotDetermined, true, ReasonUnrecognized},
		{AuthorizedAlways, true, ReasonUnrecognized},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%t", tt.status, tt.services), func(t *testing.T) {
			assert.Equal(t, tt.want, DenialReasonFor(tt.status, tt.services))
		})
	}
}

func TestPermissionDenied_Message(t *testing.T) {
	err := &PermissionDenied{Status: Denied, Reason: ReasonServicesDisabled}

	assert.Contains(t, err.Error(), "Please reenable location services in settings")
}

func TestIsRetryable(t *testing.T) {
	cause := errors.New("timeout")

	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(&PermissionDenied{Status: Denied}))
	assert.False(t, IsRetryable(fmt.Errorf("wrapped: %w", &PermissionDenied{Status: Restricted})))
	assert.False(t, IsRetryable(&InvariantViolation{From: "done", To: "success"}))
	assert.True(t, IsRetryable(&LocationAcquisitionFailure{Err: cause}))
	assert.True(t, IsRetryable(&SearchBackendFailure{Err: cause}))
	assert.True(t, IsRetryable(cause))
}

func TestSearchBackendFailure(t *testing.T) {
	cause := errors.New("connection reset")

	assert.ErrorIs(t, &SearchBackendFailure{Err: cause}, cause)
	assert.Equal(t, "search backend: unexpected status OVER_QUERY_LIMIT",
		(&SearchBackendFailure{Status: "OVER_QUERY_LIMIT"}).Error())
}
