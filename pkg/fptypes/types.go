package fptypes

import (
	"time"

	"github.com/google/uuid"
)

// FingerID identifies one enrolled fingerprint template. It is assigned at
// enrollment completion, referenced by authenticate/remove, and destroyed
// on removal. The zero value is the sentinel used by empty enumerate and
// remove results.
type FingerID uint32

// GroupID identifies one (user, storage) scope. All storage-backed
// operations apply to the currently active group only.
type GroupID uint32

// EnrollProgress is the payload of a TemplateEnrolling notification.
type EnrollProgress struct {
	Finger FingerID
	// SamplesRemaining goes from N (no data collected, but N scans needed)
	// to 0 (no more data is needed to build a template).
	SamplesRemaining uint32
	// Guidance is a vendor-specific value used for user guidance.
	Guidance uint64
}

// Done reports whether this progress event completes the enrollment.
func (p EnrollProgress) Done() bool {
	return p.SamplesRemaining == 0
}

// TemplateEvent is one step of a multi-result listing; it is the payload
// of both TemplateEnumerating and TemplateRemoved notifications.
// Remaining counts down to 0 on the last event of the listing.
type TemplateEvent struct {
	Finger    FingerID
	Remaining uint32
}

// IsSentinel reports whether the event is the empty-set sentinel emitted
// when an enumerate or remove finds no templates.
func (e TemplateEvent) IsSentinel() bool {
	return e.Finger == 0 && e.Remaining == 0
}

// TemplateRecord is the stored metadata of one enrolled template. Records
// are what the store persists; the biometric data itself is opaque vendor
// territory and never appears here.
type TemplateRecord struct {
	RecordID   uuid.UUID `cbor:"1,keyasint"`
	Finger     FingerID  `cbor:"2,keyasint"`
	Group      GroupID   `cbor:"3,keyasint"`
	Name       string    `cbor:"4,keyasint,omitempty"`
	EnrolledAt time.Time `cbor:"5,keyasint"`
}
