package fphal

import (
	"errors"
)

var (
	ErrBusy          = errors.New("fphal: device busy with another operation")
	ErrClosed        = errors.New("fphal: device closed")
	ErrNoActiveGroup = errors.New("fphal: no active group set")
	ErrNotSupported  = errors.New("fphal: not supported")
	ErrTokenRequired = errors.New("fphal: hardware auth token required")
	ErrUnknownDriver = errors.New("fphal: unknown driver")
)

type ErrorWithMessage struct {
	Message string
	Err     error
}

func NewErrorMessage(err error, msg string) *ErrorWithMessage {
	return &ErrorWithMessage{
		Message: msg,
		Err:     err,
	}
}

func (m *ErrorWithMessage) Error() string {
	if m.Message != "" {
		return m.Err.Error() + " (" + m.Message + ")"
	}
	return m.Err.Error()
}

func (m *ErrorWithMessage) Unwrap() error {
	return m.Err
}
