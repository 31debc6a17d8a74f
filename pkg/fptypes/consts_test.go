package fptypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageTypeValues(t *testing.T) {
	// Wire values are part of the device contract and must never drift.
	assert.EqualValues(t, -1, MessageTypeError)
	assert.EqualValues(t, 1, MessageTypeAcquired)
	assert.EqualValues(t, 3, MessageTypeTemplateEnrolling)
	assert.EqualValues(t, 4, MessageTypeTemplateRemoved)
	assert.EqualValues(t, 5, MessageTypeAuthenticated)
	assert.EqualValues(t, 6, MessageTypeTemplateEnumerating)
	assert.EqualValues(t, 7, MessageTypeChallengeGenerated)
	assert.EqualValues(t, 8, MessageTypeChallengeRevoked)
	assert.EqualValues(t, 9, MessageTypeAuthenticatorIDRetrieved)
	assert.EqualValues(t, 10, MessageTypeAuthenticatorIDInvalidate)
	assert.EqualValues(t, 11, MessageTypeResetLockout)
}

func TestErrorCodeVendorRange(t *testing.T) {
	assert.False(t, ErrorLockout.IsVendor())
	assert.True(t, ErrorVendorBase.IsVendor())
	assert.True(t, (ErrorVendorBase + 17).IsVendor())
}

func TestErrorCodeStrings(t *testing.T) {
	assert.Equal(t, "Lockout", ErrorLockout.String())
	assert.Equal(t, "Vendor(3)", (ErrorVendorBase + 3).String())
	assert.Equal(t, "ErrorCode(42)", ErrorCode(42).String())
}

func TestAcquiredInfoStrings(t *testing.T) {
	assert.Equal(t, "Good", AcquiredGood.String())
	assert.Equal(t, "Partial", AcquiredPartial.String())
	assert.Equal(t, "Vendor(3)", (AcquiredVendorBase + 3).String())
}

func TestSensorEnums(t *testing.T) {
	assert.True(t, StrengthStrong.IsValid())
	assert.False(t, SensorStrength("medium").IsValid())

	assert.True(t, SensorTypeUnderDisplayOptical.IsUnderDisplay())
	assert.False(t, SensorTypeRearCapacitive.IsUnderDisplay())
	assert.False(t, SensorType("palm").IsValid())
}

func TestAPIVersionString(t *testing.T) {
	assert.Equal(t, "2.1", APIVersion2_1.String())
	assert.Equal(t, "3.0", APIVersion3_0.String())
}

func TestTemplateEventSentinel(t *testing.T) {
	assert.True(t, TemplateEvent{}.IsSentinel())
	assert.False(t, TemplateEvent{Finger: 1}.IsSentinel())
	assert.False(t, TemplateEvent{Remaining: 2}.IsSentinel())
}
