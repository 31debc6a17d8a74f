// Package halproxy carries the device contract across a process
// boundary: a server wraps a local device and streams its events to one
// remote client, which exposes the same contract on its side of a unix
// socket (or a named pipe on Windows).
//
// A frame is kind(1) + op(1) + big-endian length(2) + CBOR payload.
// Requests and replies alternate one at a time, matching the
// single-operation contract; event frames may appear between them.
package halproxy

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-fprint/fphal/pkg/fphal"
	"github.com/go-fprint/fphal/pkg/fptypes"
	"github.com/go-fprint/fphal/pkg/hwauth"
)

var encMode, _ = cbor.CoreDetEncOptions().EncMode()

// DefaultPath is the well-known endpoint a serving daemon listens on.
const DefaultPath = "/run/fphal/fingerprint.sock"

type frameKind byte

const (
	frameRequest frameKind = iota + 1
	frameReply
	frameEvent
)

type opcode byte

const (
	opGenerateChallenge opcode = iota + 1
	opRevokeChallenge
	opEnroll
	opCancel
	opEnumerate
	opRemove
	opSetActiveGroup
	opAuthenticate
	opGetAuthenticatorID
	opInvalidateAuthenticatorID
	opResetLockout
	opPresentFinger
)

// maxPayload bounds a frame payload; nothing in the contract comes close.
const maxPayload = 1 << 14

var (
	ErrPayloadTooLarge = errors.New("halproxy: frame payload too large")
	ErrBadFrame        = errors.New("halproxy: malformed frame")
)

type frame struct {
	kind    frameKind
	op      opcode
	payload []byte
}

func newFrame(kind frameKind, op opcode, v any) (*frame, error) {
	var payload []byte
	if v != nil {
		b, err := encMode.Marshal(v)
		if err != nil {
			return nil, err
		}
		payload = b
	}
	if len(payload) > maxPayload {
		return nil, ErrPayloadTooLarge
	}
	return &frame{kind: kind, op: op, payload: payload}, nil
}

func (f *frame) decode(v any) error {
	return cbor.Unmarshal(f.payload, v)
}

// WriteTo writes the frame: kind, op, BCNTH/BCNTL, payload.
func (f *frame) WriteTo(w io.Writer) (int64, error) {
	hdr := make([]byte, 4)
	hdr[0] = byte(f.kind)
	hdr[1] = byte(f.op)
	binary.BigEndian.PutUint16(hdr[2:], uint16(len(f.payload)))

	n, err := w.Write(hdr)
	if err != nil {
		return int64(n), err
	}
	m, err := w.Write(f.payload)
	return int64(n + m), err
}

// ReadFrom reads one frame.
func (f *frame) ReadFrom(r io.Reader) (int64, error) {
	hdr := make([]byte, 4)
	n, err := io.ReadFull(r, hdr)
	if err != nil {
		return int64(n), err
	}

	f.kind = frameKind(hdr[0])
	f.op = opcode(hdr[1])
	length := binary.BigEndian.Uint16(hdr[2:])
	if length > maxPayload {
		return int64(n), ErrPayloadTooLarge
	}

	f.payload = make([]byte, length)
	m, err := io.ReadFull(r, f.payload)
	return int64(n + m), err
}

// Request payloads. One struct per op that carries parameters.

type enrollRequest struct {
	Token     []byte `cbor:"1,keyasint"`
	TimeoutMS int64  `cbor:"2,keyasint,omitempty"`
}

type challengeRequest struct {
	Challenge uint64 `cbor:"1,keyasint"`
}

type removeRequest struct {
	IDs []fptypes.FingerID `cbor:"1,keyasint,omitempty"`
}

type activeGroupRequest struct {
	Group fptypes.GroupID `cbor:"1,keyasint"`
	Path  string          `cbor:"2,keyasint"`
}

type authenticateRequest struct {
	OperationID uint64 `cbor:"1,keyasint"`
}

type tokenRequest struct {
	Token []byte `cbor:"1,keyasint"`
}

type presentFingerRequest struct {
	Finger  fptypes.FingerID     `cbor:"1,keyasint"`
	Quality fptypes.AcquiredInfo `cbor:"2,keyasint"`
}

// reply is the response to every request.
type reply struct {
	Status  replyStatus `cbor:"1,keyasint,omitempty"`
	Message string      `cbor:"2,keyasint,omitempty"`
	Value   uint64      `cbor:"3,keyasint,omitempty"`
}

type replyStatus byte

const (
	statusOK replyStatus = iota
	statusBusy
	statusClosed
	statusNoActiveGroup
	statusNotSupported
	statusTokenRequired
	statusFailed
)

// statusOf maps a local error onto the wire status.
func statusOf(err error) (replyStatus, string) {
	switch {
	case err == nil:
		return statusOK, ""
	case errors.Is(err, fphal.ErrBusy):
		return statusBusy, ""
	case errors.Is(err, fphal.ErrClosed):
		return statusClosed, ""
	case errors.Is(err, fphal.ErrNoActiveGroup):
		return statusNoActiveGroup, ""
	case errors.Is(err, fphal.ErrNotSupported):
		return statusNotSupported, ""
	case errors.Is(err, fphal.ErrTokenRequired):
		return statusTokenRequired, err.Error()
	default:
		return statusFailed, err.Error()
	}
}

// errOf is the client-side inverse of statusOf.
func errOf(r *reply) error {
	switch r.Status {
	case statusOK:
		return nil
	case statusBusy:
		return fphal.ErrBusy
	case statusClosed:
		return fphal.ErrClosed
	case statusNoActiveGroup:
		return fphal.ErrNoActiveGroup
	case statusNotSupported:
		return fphal.ErrNotSupported
	case statusTokenRequired:
		return fphal.NewErrorMessage(fphal.ErrTokenRequired, r.Message)
	default:
		return errors.New("halproxy: " + r.Message)
	}
}

// wireEvent is the flat transport form of an event; Type picks which
// fields are meaningful.
type wireEvent struct {
	Type      fptypes.MessageType  `cbor:"1,keyasint"`
	Error     fptypes.ErrorCode    `cbor:"2,keyasint,omitempty"`
	Acquired  fptypes.AcquiredInfo `cbor:"3,keyasint,omitempty"`
	Vendor    int32                `cbor:"4,keyasint,omitempty"`
	Finger    fptypes.FingerID     `cbor:"5,keyasint,omitempty"`
	Remaining uint32               `cbor:"6,keyasint,omitempty"`
	Guidance  uint64               `cbor:"7,keyasint,omitempty"`
	Challenge uint64               `cbor:"8,keyasint,omitempty"`
	ID        uint64               `cbor:"9,keyasint,omitempty"`
	Token     []byte               `cbor:"10,keyasint,omitempty"`
}

func encodeEvent(ev fphal.Event) (*wireEvent, error) {
	w := &wireEvent{Type: ev.Type()}

	switch e := ev.(type) {
	case fphal.ErrorEvent:
		w.Error = e.Code
		w.Vendor = e.Vendor
	case fphal.AcquiredEvent:
		w.Acquired = e.Info
		w.Vendor = e.Vendor
	case fphal.EnrollProgressEvent:
		w.Finger = e.Progress.Finger
		w.Remaining = e.Progress.SamplesRemaining
		w.Guidance = e.Progress.Guidance
	case fphal.TemplateEnumeratedEvent:
		w.Finger = e.Template.Finger
		w.Remaining = e.Template.Remaining
	case fphal.TemplateRemovedEvent:
		w.Finger = e.Template.Finger
		w.Remaining = e.Template.Remaining
	case fphal.AuthenticatedEvent:
		w.Finger = e.Finger
		if e.Token != nil {
			b, err := e.Token.MarshalBinary()
			if err != nil {
				return nil, err
			}
			w.Token = b
		}
	case fphal.ChallengeGeneratedEvent:
		w.Challenge = e.Challenge
	case fphal.ChallengeRevokedEvent:
		w.Challenge = e.Challenge
	case fphal.AuthenticatorIDRetrievedEvent:
		w.ID = e.ID
	case fphal.AuthenticatorIDInvalidatedEvent:
		w.ID = e.ID
	case fphal.LockoutClearedEvent:
	default:
		return nil, ErrBadFrame
	}

	return w, nil
}

func decodeEvent(w *wireEvent) (fphal.Event, error) {
	switch w.Type {
	case fptypes.MessageTypeError:
		return fphal.ErrorEvent{Code: w.Error, Vendor: w.Vendor}, nil
	case fptypes.MessageTypeAcquired:
		return fphal.AcquiredEvent{Info: w.Acquired, Vendor: w.Vendor}, nil
	case fptypes.MessageTypeTemplateEnrolling:
		return fphal.EnrollProgressEvent{Progress: fptypes.EnrollProgress{
			Finger:           w.Finger,
			SamplesRemaining: w.Remaining,
			Guidance:         w.Guidance,
		}}, nil
	case fptypes.MessageTypeTemplateEnumerating:
		return fphal.TemplateEnumeratedEvent{Template: fptypes.TemplateEvent{
			Finger:    w.Finger,
			Remaining: w.Remaining,
		}}, nil
	case fptypes.MessageTypeTemplateRemoved:
		return fphal.TemplateRemovedEvent{Template: fptypes.TemplateEvent{
			Finger:    w.Finger,
			Remaining: w.Remaining,
		}}, nil
	case fptypes.MessageTypeAuthenticated:
		ev := fphal.AuthenticatedEvent{Finger: w.Finger}
		if len(w.Token) > 0 {
			tok := new(hwauth.Token)
			if err := tok.UnmarshalBinary(w.Token); err != nil {
				return nil, err
			}
			ev.Token = tok
		}
		return ev, nil
	case fptypes.MessageTypeChallengeGenerated:
		return fphal.ChallengeGeneratedEvent{Challenge: w.Challenge}, nil
	case fptypes.MessageTypeChallengeRevoked:
		return fphal.ChallengeRevokedEvent{Challenge: w.Challenge}, nil
	case fptypes.MessageTypeAuthenticatorIDRetrieved:
		return fphal.AuthenticatorIDRetrievedEvent{ID: w.ID}, nil
	case fptypes.MessageTypeAuthenticatorIDInvalidate:
		return fphal.AuthenticatorIDInvalidatedEvent{ID: w.ID}, nil
	case fptypes.MessageTypeResetLockout:
		return fphal.LockoutClearedEvent{}, nil
	default:
		return nil, ErrBadFrame
	}
}
