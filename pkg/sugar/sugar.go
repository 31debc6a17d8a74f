// Package sugar layers channel-based conveniences over the callback
// contract, for callers that want to drive one operation to completion
// without wiring their own notify plumbing.
package sugar

import (
	"errors"
	"time"

	"github.com/go-fprint/fphal/pkg/fphal"
	"github.com/go-fprint/fphal/pkg/fptypes"
	"github.com/samber/lo"

	"github.com/samber/mo"
)

var (
	ErrTimeout = errors.New("sugar: timed out waiting for event")
	ErrClosed  = errors.New("sugar: event stream closed")
)

// EventError surfaces an asynchronous ErrorEvent as a Go error.
type EventError struct {
	Code   fptypes.ErrorCode
	Vendor int32
}

func (e *EventError) Error() string {
	return "sugar: operation failed (" + e.Code.String() + ")"
}

// Subscribe registers a buffered channel as the device's notify callback.
// The buffer must outpace the driver; a full buffer stalls delivery, so
// size it for the longest listing expected.
func Subscribe(dev fphal.Device, buffer int) (<-chan fphal.Event, error) {
	ch := make(chan fphal.Event, buffer)
	if err := dev.SetNotify(func(ev fphal.Event) { ch <- ev }); err != nil {
		return nil, err
	}
	return ch, nil
}

// Await pumps events until pred accepts one (Left) or the operation
// fails with an ErrorEvent, a closed stream, or the timeout (Right).
func Await(
	events <-chan fphal.Event,
	timeout time.Duration,
	pred func(fphal.Event) bool,
) mo.Either[fphal.Event, error] {
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return mo.Right[fphal.Event, error](ErrClosed)
			}
			if errEv, isErr := ev.(fphal.ErrorEvent); isErr {
				return mo.Right[fphal.Event, error](&EventError{
					Code:   errEv.Code,
					Vendor: errEv.Vendor,
				})
			}
			if pred(ev) {
				return mo.Left[fphal.Event, error](ev)
			}
		case <-deadline:
			return mo.Right[fphal.Event, error](ErrTimeout)
		}
	}
}

// AwaitEnrolled waits for an enrollment to finish and returns the new
// finger id.
func AwaitEnrolled(events <-chan fphal.Event, timeout time.Duration) (fptypes.FingerID, error) {
	res := Await(events, timeout, func(ev fphal.Event) bool {
		p, ok := ev.(fphal.EnrollProgressEvent)
		return ok && p.Progress.Done()
	})
	if err, failed := res.Right(); failed {
		return 0, err
	}
	return res.MustLeft().(fphal.EnrollProgressEvent).Progress.Finger, nil
}

// AwaitAuthenticated waits for a successful match. Rejected captures
// (finger id 0) are skipped; the first asynchronous error ends the wait.
func AwaitAuthenticated(events <-chan fphal.Event, timeout time.Duration) (fphal.AuthenticatedEvent, error) {
	res := Await(events, timeout, func(ev fphal.Event) bool {
		a, ok := ev.(fphal.AuthenticatedEvent)
		return ok && a.Finger != 0
	})
	if err, failed := res.Right(); failed {
		return fphal.AuthenticatedEvent{}, err
	}
	return res.MustLeft().(fphal.AuthenticatedEvent), nil
}

// EnumerateSync runs a full enumerate and collects the listed finger
// ids. An empty group comes back as an empty slice, decoded from the
// sentinel event.
func EnumerateSync(dev fphal.Device, events <-chan fphal.Event, timeout time.Duration) ([]fptypes.FingerID, error) {
	if err := dev.Enumerate(); err != nil {
		return nil, err
	}

	var listed []fptypes.TemplateEvent
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil, ErrClosed
			}
			switch e := ev.(type) {
			case fphal.TemplateEnumeratedEvent:
				if e.Template.IsSentinel() {
					return []fptypes.FingerID{}, nil
				}
				listed = append(listed, e.Template)
				if e.Template.Remaining == 0 {
					return lo.Map(listed, func(te fptypes.TemplateEvent, _ int) fptypes.FingerID {
						return te.Finger
					}), nil
				}
			case fphal.ErrorEvent:
				return nil, &EventError{Code: e.Code, Vendor: e.Vendor}
			}
		case <-deadline:
			return nil, ErrTimeout
		}
	}
}
