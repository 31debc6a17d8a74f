// Package fphal declares the fingerprint device contract: the operation
// surface a driver implements, the closed set of events it reports, and
// the registry the framework opens drivers through.
//
// The contract is cooperative and single-operation-at-a-time. Commands
// return an acceptance error immediately; outcomes arrive later through
// the notify callback, from a driver-owned goroutine.
package fphal

import (
	"time"

	"github.com/go-fprint/fphal/pkg/fptypes"
	"github.com/go-fprint/fphal/pkg/hwauth"
	"github.com/google/uuid"
)

// Device is the live device handle. A device serves exactly one client;
// concurrent invocation of the operation surface on one handle is not
// supported, and a call made while a long-running operation is in flight
// fails with ErrBusy (or, for SetNotify, blocks until the device leaves
// the busy state).
type Device interface {
	// SetNotify registers the single callback that receives all
	// asynchronous events. It blocks while the device state machine is
	// busy with an operation. Registering nil detaches the callback.
	SetNotify(fn NotifyFunc) error

	// GenerateChallenge begins a secure transaction, returning an opaque
	// value the framework embeds into a verifiable hardware auth token.
	// The driver also reports the value via ChallengeGeneratedEvent.
	GenerateChallenge() (uint64, error)

	// RevokeChallenge invalidates a previously generated challenge. A
	// ChallengeRevokedEvent is emitted even if the value is unknown.
	RevokeChallenge(challenge uint64) error

	// Enroll collects and stores a new fingerprint template. The token
	// must attest recent user presence and carry a live challenge. The
	// device stays in the enrolling state until the sample counter hits
	// zero, the timeout elapses (ErrorTimeout), or Cancel is called. A
	// zero timeout selects the driver default.
	Enroll(hat *hwauth.Token, timeout time.Duration) error

	// Cancel aborts a pending enroll or authenticate, reporting
	// ErrorCanceled, and returns the device to idle. It does not revoke
	// outstanding challenges.
	Cancel() error

	// Enumerate lists all templates under the active group. One
	// TemplateEnumeratedEvent is emitted per template with a remaining
	// countdown; an empty group emits exactly one sentinel event with
	// finger id 0 and remaining 0.
	Enumerate() error

	// Remove deletes the given enrollments from the active group, one
	// TemplateRemovedEvent per removed id with the same countdown
	// discipline as Enumerate. Unknown ids report ErrorUnableToRemove.
	Remove(ids []fptypes.FingerID) error

	// SetActiveGroup restricts all subsequent operations to templates of
	// one group stored under storePath. This is how multi-user systems
	// isolate template sets.
	SetActiveGroup(gid fptypes.GroupID, storePath string) error

	// Authenticate starts a match for the operation identified by
	// operationID. Success is reported via AuthenticatedEvent carrying a
	// token bound to operationID; failures arrive on the error channel.
	Authenticate(operationID uint64) error

	// GetAuthenticatorID returns a value identifying the current enrolled
	// template set. It changes whenever the set changes and is stable
	// otherwise; callers use it to detect stale tokens.
	GetAuthenticatorID() (uint64, error)

	// InvalidateAuthenticatorID forces rotation of the authenticator id.
	// On sensors not configured as Strong this is a trivial immediate
	// no-op acknowledgement; nothing observable changes.
	InvalidateAuthenticatorID() error

	// ResetLockout clears the too-many-attempts lockout counter after
	// verifying the token. Invalid or expired tokens are reported through
	// the error channel. Lockout also clears on a driver-internal timer,
	// reported with LockoutClearedEvent.
	ResetLockout(hat *hwauth.Token) error

	// Close tears the device down. Pending operations are canceled.
	Close() error
}

// SensorInfo describes a sensor to the framework.
type SensorInfo struct {
	SensorID uuid.UUID
	Version  fptypes.APIVersion
	Strength fptypes.SensorStrength
	Kind     fptypes.SensorType
}

// Informer is implemented by drivers that can describe their sensor.
type Informer interface {
	SensorInfo() SensorInfo
}

// PointerMonitor is the optional pointer-gesture surface kept for
// under-display sensors. Drivers for any other sensor kind treat both
// calls as no-ops and return immediately.
//
// Deprecated: superseded by a context-carrying variant outside this
// contract; new framework code should not depend on it.
type PointerMonitor interface {
	OnPointerDown(pointerID int32, x, y int32, minor, major float32)
	OnPointerUp(pointerID int32)
}

// Extender is the optional vendor extension hook: an opaque
// command/parameter pair with driver-defined semantics. It is an escape
// hatch, not part of the portable contract.
type Extender interface {
	ExtCmd(cmd, param int32) (int32, error)
}
