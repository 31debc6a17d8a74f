package hwauth

import "errors"

var (
	ErrNoMAC             = errors.New("hwauth: token carries no MAC")
	ErrTruncated         = errors.New("hwauth: truncated token")
	ErrBadMAC            = errors.New("hwauth: MAC verification failed")
	ErrChallengeMismatch = errors.New("hwauth: token bound to a different challenge")
	ErrExpired           = errors.New("hwauth: token expired")
	ErrVersion           = errors.New("hwauth: unsupported token version")
)
