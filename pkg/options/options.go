package options

import (
	"log/slog"
	"time"

	"github.com/go-fprint/fphal/pkg/fptypes"
)

type Options struct {
	Logger          *slog.Logger
	Strength        fptypes.SensorStrength
	Kind            fptypes.SensorType
	SamplesNeeded   uint32
	EnrollTimeout   time.Duration
	MaxAttempts     uint32
	LockoutDuration time.Duration
	TokenMaxAge     time.Duration
	Secret          []byte
	Clock           func() time.Time
}

type Option func(*Options)

func WithLogger(logger *slog.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithStrength sets the sensor security class. Authenticator-id
// invalidation only rotates the id on Strong sensors.
func WithStrength(strength fptypes.SensorStrength) Option {
	return func(opts *Options) {
		opts.Strength = strength
	}
}

func WithSensorType(kind fptypes.SensorType) Option {
	return func(opts *Options) {
		opts.Kind = kind
	}
}

// WithSamplesNeeded sets how many good captures build one template.
func WithSamplesNeeded(n uint32) Option {
	return func(opts *Options) {
		opts.SamplesNeeded = n
	}
}

// WithEnrollTimeout sets the default timeout for enrollments started
// with a zero timeout.
func WithEnrollTimeout(d time.Duration) Option {
	return func(opts *Options) {
		opts.EnrollTimeout = d
	}
}

// WithMaxAttempts sets how many failed matches trigger lockout.
func WithMaxAttempts(n uint32) Option {
	return func(opts *Options) {
		opts.MaxAttempts = n
	}
}

// WithLockoutDuration sets how long a lockout lasts before the driver
// clears it on its own.
func WithLockoutDuration(d time.Duration) Option {
	return func(opts *Options) {
		opts.LockoutDuration = d
	}
}

// WithTokenMaxAge sets how old a hardware auth token may be before the
// driver treats it as expired.
func WithTokenMaxAge(d time.Duration) Option {
	return func(opts *Options) {
		opts.TokenMaxAge = d
	}
}

// WithSecret sets the device secret hardware auth tokens are keyed from.
func WithSecret(secret []byte) Option {
	return func(opts *Options) {
		opts.Secret = secret
	}
}

// WithClock overrides the driver's clock; for tests.
func WithClock(now func() time.Time) Option {
	return func(opts *Options) {
		opts.Clock = now
	}
}

func NewOptions(opts ...Option) *Options {
	oo := &Options{
		Logger:          slog.Default(),
		Strength:        fptypes.StrengthStrong,
		Kind:            fptypes.SensorTypeRearCapacitive,
		SamplesNeeded:   10,
		EnrollTimeout:   60 * time.Second,
		MaxAttempts:     5,
		LockoutDuration: 30 * time.Second,
		TokenMaxAge:     10 * time.Minute,
		Clock:           time.Now,
	}

	for _, opt := range opts {
		opt(oo)
	}

	return oo
}
