package fphal

import (
	"github.com/go-fprint/fphal/pkg/fptypes"
	"github.com/go-fprint/fphal/pkg/hwauth"
)

// Event is one asynchronous notification from a driver. It is a closed
// sum: the only implementations are the event structs in this package,
// one per message type, so a type switch over them can be exhaustive.
//
// Delivery contract: a driver owns a single notifier goroutine per
// device; events are delivered strictly in order and the callback is
// never invoked concurrently. Every long-running operation terminates
// with either its success event or an explicit ErrorEvent.
type Event interface {
	Type() fptypes.MessageType
	isEvent()
}

// NotifyFunc receives driver events. It must not block for long; it runs
// on the driver's notifier goroutine and stalls all later events while it
// runs.
type NotifyFunc func(Event)

// ErrorEvent reports a failure discovered after a command was accepted.
type ErrorEvent struct {
	Code fptypes.ErrorCode
	// Vendor carries extra detail when Code is in the vendor range.
	Vendor int32
}

func (ErrorEvent) isEvent() {}

func (ErrorEvent) Type() fptypes.MessageType { return fptypes.MessageTypeError }

// AcquiredEvent is capture feedback for the operation in flight.
type AcquiredEvent struct {
	Info   fptypes.AcquiredInfo
	Vendor int32
}

func (AcquiredEvent) isEvent() {}

func (AcquiredEvent) Type() fptypes.MessageType { return fptypes.MessageTypeAcquired }

// EnrollProgressEvent reports progress of an in-flight enrollment. The
// SamplesRemaining counter is non-increasing across one enrollment and a
// successful sequence ends with 0.
type EnrollProgressEvent struct {
	Progress fptypes.EnrollProgress
}

func (EnrollProgressEvent) isEvent() {}

func (EnrollProgressEvent) Type() fptypes.MessageType { return fptypes.MessageTypeTemplateEnrolling }

// TemplateEnumeratedEvent is one step of an enumerate listing.
type TemplateEnumeratedEvent struct {
	Template fptypes.TemplateEvent
}

func (TemplateEnumeratedEvent) isEvent() {}

func (TemplateEnumeratedEvent) Type() fptypes.MessageType {
	return fptypes.MessageTypeTemplateEnumerating
}

// TemplateRemovedEvent is one step of a remove listing.
type TemplateRemovedEvent struct {
	Template fptypes.TemplateEvent
}

func (TemplateRemovedEvent) isEvent() {}

func (TemplateRemovedEvent) Type() fptypes.MessageType { return fptypes.MessageTypeTemplateRemoved }

// AuthenticatedEvent reports a successful match. Token is a hardware auth
// token bound to the operation id the authenticate call was started with.
type AuthenticatedEvent struct {
	Finger fptypes.FingerID
	Token  *hwauth.Token
}

func (AuthenticatedEvent) isEvent() {}

func (AuthenticatedEvent) Type() fptypes.MessageType { return fptypes.MessageTypeAuthenticated }

// ChallengeGeneratedEvent carries a freshly generated challenge.
type ChallengeGeneratedEvent struct {
	Challenge uint64
}

func (ChallengeGeneratedEvent) isEvent() {}

func (ChallengeGeneratedEvent) Type() fptypes.MessageType {
	return fptypes.MessageTypeChallengeGenerated
}

// ChallengeRevokedEvent acknowledges a revocation. It is emitted even for
// challenges the driver never issued; revocation is idempotent by
// contract.
type ChallengeRevokedEvent struct {
	Challenge uint64
}

func (ChallengeRevokedEvent) isEvent() {}

func (ChallengeRevokedEvent) Type() fptypes.MessageType { return fptypes.MessageTypeChallengeRevoked }

// AuthenticatorIDRetrievedEvent carries the current authenticator id.
type AuthenticatorIDRetrievedEvent struct {
	ID uint64
}

func (AuthenticatorIDRetrievedEvent) isEvent() {}

func (AuthenticatorIDRetrievedEvent) Type() fptypes.MessageType {
	return fptypes.MessageTypeAuthenticatorIDRetrieved
}

// AuthenticatorIDInvalidatedEvent reports the authenticator id after an
// invalidation request. On sensors below Strong the id is unchanged and
// the event is a trivial acknowledgement.
type AuthenticatorIDInvalidatedEvent struct {
	ID uint64
}

func (AuthenticatorIDInvalidatedEvent) isEvent() {}

func (AuthenticatorIDInvalidatedEvent) Type() fptypes.MessageType {
	return fptypes.MessageTypeAuthenticatorIDInvalidate
}

// LockoutClearedEvent reports that the lockout counter was cleared,
// either by a verified ResetLockout call or by the driver's internal
// expiry timer.
type LockoutClearedEvent struct{}

func (LockoutClearedEvent) isEvent() {}

func (LockoutClearedEvent) Type() fptypes.MessageType { return fptypes.MessageTypeResetLockout }
