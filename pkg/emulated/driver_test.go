package emulated

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/go-fprint/fphal/pkg/fphal"
	"github.com/go-fprint/fphal/pkg/fptypes"
	"github.com/go-fprint/fphal/pkg/hwauth"
	"github.com/go-fprint/fphal/pkg/options"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("emulated driver test secret")

type recorder struct {
	ch chan fphal.Event
}

// await skips events until one of the wanted type arrives.
func await[T fphal.Event](t *testing.T, r *recorder) T {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-r.ch:
			if v, ok := ev.(T); ok {
				return v
			}
		case <-deadline:
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}

func newTestDevice(t *testing.T, opts ...options.Option) (*Driver, *recorder) {
	t.Helper()

	base := []options.Option{
		options.WithSecret(testSecret),
		options.WithSamplesNeeded(3),
		options.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	d, err := New(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	require.NoError(t, d.SetActiveGroup(1, t.TempDir()))

	r := &recorder{ch: make(chan fphal.Event, 128)}
	require.NoError(t, d.SetNotify(func(ev fphal.Event) { r.ch <- ev }))

	return d, r
}

// presenceToken plays the framework's part: generate a challenge and wrap
// it into a verifiable token.
func presenceToken(t *testing.T, d *Driver) *hwauth.Token {
	t.Helper()

	challenge, err := d.GenerateChallenge()
	require.NoError(t, err)

	tok, err := d.Minter().Mint(challenge, 1, 0, hwauth.TypePassword)
	require.NoError(t, err)
	return tok
}

// enrollOne drives a full enrollment and returns the new finger id.
func enrollOne(t *testing.T, d *Driver, r *recorder) fptypes.FingerID {
	t.Helper()

	require.NoError(t, d.Enroll(presenceToken(t, d), 0))
	for {
		d.PresentFinger(0, fptypes.AcquiredGood)
		ev := await[fphal.EnrollProgressEvent](t, r)
		if ev.Progress.Done() {
			return ev.Progress.Finger
		}
	}
}

func TestEnrollProgressCountdown(t *testing.T) {
	d, r := newTestDevice(t)

	require.NoError(t, d.Enroll(presenceToken(t, d), 0))

	var remaining []uint32
	for i := 0; i < 3; i++ {
		d.PresentFinger(0, fptypes.AcquiredGood)
		ev := await[fphal.EnrollProgressEvent](t, r)
		remaining = append(remaining, ev.Progress.SamplesRemaining)
	}

	assert.Equal(t, []uint32{2, 1, 0}, remaining)

	// The template shows up on a subsequent enumerate.
	require.NoError(t, d.Enumerate())
	ev := await[fphal.TemplateEnumeratedEvent](t, r)
	assert.False(t, ev.Template.IsSentinel())
	assert.EqualValues(t, 0, ev.Template.Remaining)
}

func TestEnrollBadCapturesDontCount(t *testing.T) {
	d, r := newTestDevice(t)

	require.NoError(t, d.Enroll(presenceToken(t, d), 0))

	d.PresentFinger(0, fptypes.AcquiredImagerDirty)
	ack := await[fphal.AcquiredEvent](t, r)
	assert.Equal(t, fptypes.AcquiredImagerDirty, ack.Info)

	d.PresentFinger(0, fptypes.AcquiredGood)
	ev := await[fphal.EnrollProgressEvent](t, r)
	assert.EqualValues(t, 2, ev.Progress.SamplesRemaining)
}

func TestEnrollRequiresToken(t *testing.T) {
	d, _ := newTestDevice(t)

	assert.ErrorIs(t, d.Enroll(nil, 0), fphal.ErrTokenRequired)

	// A token carrying a challenge this device never issued is refused.
	foreign, err := d.Minter().Mint(0xbad, 1, 0, hwauth.TypePassword)
	require.NoError(t, err)
	assert.ErrorIs(t, d.Enroll(foreign, 0), fphal.ErrTokenRequired)
}

func TestEnrollTimeout(t *testing.T) {
	d, r := newTestDevice(t)

	require.NoError(t, d.Enroll(presenceToken(t, d), 20*time.Millisecond))

	ev := await[fphal.ErrorEvent](t, r)
	assert.Equal(t, fptypes.ErrorTimeout, ev.Code)

	// Back to idle: a fresh enrollment is accepted right away.
	require.NoError(t, d.Enroll(presenceToken(t, d), 0))
}

func TestEnumerateEmpty(t *testing.T) {
	d, r := newTestDevice(t)

	require.NoError(t, d.Enumerate())

	ev := await[fphal.TemplateEnumeratedEvent](t, r)
	assert.True(t, ev.Template.IsSentinel())
}

func TestRemoveEmpty(t *testing.T) {
	d, r := newTestDevice(t)

	require.NoError(t, d.Remove(nil))

	ev := await[fphal.TemplateRemovedEvent](t, r)
	assert.True(t, ev.Template.IsSentinel())
}

func TestRemoveCountdown(t *testing.T) {
	d, r := newTestDevice(t)

	first := enrollOne(t, d, r)
	second := enrollOne(t, d, r)

	require.NoError(t, d.Remove([]fptypes.FingerID{first, second}))

	ev := await[fphal.TemplateRemovedEvent](t, r)
	assert.Equal(t, first, ev.Template.Finger)
	assert.EqualValues(t, 1, ev.Template.Remaining)

	ev = await[fphal.TemplateRemovedEvent](t, r)
	assert.Equal(t, second, ev.Template.Finger)
	assert.EqualValues(t, 0, ev.Template.Remaining)

	require.NoError(t, d.Enumerate())
	enumEv := await[fphal.TemplateEnumeratedEvent](t, r)
	assert.True(t, enumEv.Template.IsSentinel())
}

func TestRemoveUnknown(t *testing.T) {
	d, r := newTestDevice(t)

	require.NoError(t, d.Remove([]fptypes.FingerID{99}))

	ev := await[fphal.ErrorEvent](t, r)
	assert.Equal(t, fptypes.ErrorUnableToRemove, ev.Code)
}

func TestRevokeUnknownChallenge(t *testing.T) {
	d, r := newTestDevice(t)

	require.NoError(t, d.RevokeChallenge(12345))

	ev := await[fphal.ChallengeRevokedEvent](t, r)
	assert.EqualValues(t, 12345, ev.Challenge)
}

func TestCancelDuringEnroll(t *testing.T) {
	d, r := newTestDevice(t)

	challenge, err := d.GenerateChallenge()
	require.NoError(t, err)
	tok, err := d.Minter().Mint(challenge, 1, 0, hwauth.TypePassword)
	require.NoError(t, err)

	require.NoError(t, d.Enroll(tok, 0))
	require.NoError(t, d.Cancel())

	ev := await[fphal.ErrorEvent](t, r)
	assert.Equal(t, fptypes.ErrorCanceled, ev.Code)

	// Cancellation does not revoke the outstanding challenge.
	tok2, err := d.Minter().Mint(challenge, 1, 0, hwauth.TypePassword)
	require.NoError(t, err)
	require.NoError(t, d.Enroll(tok2, 0))
}

func TestCancelDuringAuthenticate(t *testing.T) {
	d, r := newTestDevice(t)

	require.NoError(t, d.Authenticate(1))
	require.NoError(t, d.Cancel())

	ev := await[fphal.ErrorEvent](t, r)
	assert.Equal(t, fptypes.ErrorCanceled, ev.Code)

	require.NoError(t, d.Authenticate(2))
}

func TestAuthenticateSuccess(t *testing.T) {
	d, r := newTestDevice(t)

	fid := enrollOne(t, d, r)

	const opID = 0xfeedface
	require.NoError(t, d.Authenticate(opID))
	d.PresentFinger(fid, fptypes.AcquiredGood)

	ev := await[fphal.AuthenticatedEvent](t, r)
	assert.Equal(t, fid, ev.Finger)
	require.NotNil(t, ev.Token)

	// The token is bound to the operation id as its challenge.
	assert.NoError(t, d.Minter().Verify(ev.Token, opID, time.Minute))
	assert.Equal(t, hwauth.TypeFingerprint, ev.Token.AuthenticatorType)
}

func TestAuthenticateReject(t *testing.T) {
	d, r := newTestDevice(t)

	fid := enrollOne(t, d, r)

	require.NoError(t, d.Authenticate(1))
	d.PresentFinger(fid+1, fptypes.AcquiredGood)

	ev := await[fphal.AuthenticatedEvent](t, r)
	assert.EqualValues(t, 0, ev.Finger)
	assert.Nil(t, ev.Token)

	// Still authenticating: the right finger succeeds afterwards.
	d.PresentFinger(fid, fptypes.AcquiredGood)
	ev = await[fphal.AuthenticatedEvent](t, r)
	assert.Equal(t, fid, ev.Finger)
}

func TestLockoutAndReset(t *testing.T) {
	d, r := newTestDevice(t, options.WithMaxAttempts(2), options.WithLockoutDuration(time.Hour))

	fid := enrollOne(t, d, r)

	require.NoError(t, d.Authenticate(1))
	d.PresentFinger(fid+1, fptypes.AcquiredGood)
	d.PresentFinger(fid+1, fptypes.AcquiredGood)

	ev := await[fphal.ErrorEvent](t, r)
	assert.Equal(t, fptypes.ErrorLockout, ev.Code)

	// Locked out: a new authenticate is acknowledged with the lockout
	// error instead of starting.
	require.NoError(t, d.Authenticate(2))
	ev = await[fphal.ErrorEvent](t, r)
	assert.Equal(t, fptypes.ErrorLockout, ev.Code)

	require.NoError(t, d.ResetLockout(presenceToken(t, d)))
	await[fphal.LockoutClearedEvent](t, r)

	require.NoError(t, d.Authenticate(3))
	d.PresentFinger(fid, fptypes.AcquiredGood)
	authEv := await[fphal.AuthenticatedEvent](t, r)
	assert.Equal(t, fid, authEv.Finger)
}

func TestLockoutAutoExpires(t *testing.T) {
	d, r := newTestDevice(t, options.WithMaxAttempts(1), options.WithLockoutDuration(20*time.Millisecond))

	fid := enrollOne(t, d, r)

	require.NoError(t, d.Authenticate(1))
	d.PresentFinger(fid+1, fptypes.AcquiredGood)

	ev := await[fphal.ErrorEvent](t, r)
	assert.Equal(t, fptypes.ErrorLockout, ev.Code)

	// Expiry is driver-internal and must be notified.
	await[fphal.LockoutClearedEvent](t, r)
}

func TestResetLockoutBadToken(t *testing.T) {
	d, r := newTestDevice(t)

	tok := presenceToken(t, d)
	tok.UserID++ // break the MAC

	require.NoError(t, d.ResetLockout(tok))

	ev := await[fphal.ErrorEvent](t, r)
	assert.Equal(t, fptypes.ErrorUnableToProcess, ev.Code)
}

func TestAuthenticatorIDLifecycle(t *testing.T) {
	d, r := newTestDevice(t)

	first, err := d.GetAuthenticatorID()
	require.NoError(t, err)
	await[fphal.AuthenticatorIDRetrievedEvent](t, r)

	// Stable while the template set is unchanged.
	again, err := d.GetAuthenticatorID()
	require.NoError(t, err)
	assert.Equal(t, first, again)

	fid := enrollOne(t, d, r)
	afterEnroll, err := d.GetAuthenticatorID()
	require.NoError(t, err)
	assert.NotEqual(t, first, afterEnroll)

	require.NoError(t, d.Remove([]fptypes.FingerID{fid}))
	await[fphal.TemplateRemovedEvent](t, r)
	afterRemove, err := d.GetAuthenticatorID()
	require.NoError(t, err)
	assert.NotEqual(t, afterEnroll, afterRemove)
}

func TestInvalidateAuthenticatorID(t *testing.T) {
	t.Run("strong rotates", func(t *testing.T) {
		d, r := newTestDevice(t, options.WithStrength(fptypes.StrengthStrong))

		before, err := d.GetAuthenticatorID()
		require.NoError(t, err)

		require.NoError(t, d.InvalidateAuthenticatorID())
		ev := await[fphal.AuthenticatorIDInvalidatedEvent](t, r)
		assert.NotEqual(t, before, ev.ID)
	})

	t.Run("weak is a no-op acknowledgement", func(t *testing.T) {
		d, r := newTestDevice(t, options.WithStrength(fptypes.StrengthWeak))

		before, err := d.GetAuthenticatorID()
		require.NoError(t, err)

		require.NoError(t, d.InvalidateAuthenticatorID())
		ev := await[fphal.AuthenticatorIDInvalidatedEvent](t, r)
		assert.Equal(t, before, ev.ID)

		after, err := d.GetAuthenticatorID()
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})
}

func TestSetNotifyBlocksWhileBusy(t *testing.T) {
	d, r := newTestDevice(t)

	require.NoError(t, d.Enroll(presenceToken(t, d), 0))

	done := make(chan struct{})
	go func() {
		_ = d.SetNotify(func(ev fphal.Event) { r.ch <- ev })
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("SetNotify returned while the device was busy")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, d.Cancel())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("SetNotify did not unblock after cancel")
	}
}

func TestBusyRejectsOverlap(t *testing.T) {
	d, _ := newTestDevice(t)

	require.NoError(t, d.Enroll(presenceToken(t, d), 0))

	assert.ErrorIs(t, d.Authenticate(1), fphal.ErrBusy)
	assert.ErrorIs(t, d.Enumerate(), fphal.ErrBusy)
	assert.ErrorIs(t, d.Remove([]fptypes.FingerID{1}), fphal.ErrBusy)
}

func TestNoActiveGroup(t *testing.T) {
	d, err := New(
		options.WithSecret(testSecret),
		options.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	assert.ErrorIs(t, d.Enumerate(), fphal.ErrNoActiveGroup)
	assert.ErrorIs(t, d.Authenticate(1), fphal.ErrNoActiveGroup)
}

func TestExtCmd(t *testing.T) {
	d, _ := newTestDevice(t)

	n, err := d.ExtCmd(extCmdSamplesNeeded, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	_, err = d.ExtCmd(0x7f, 0)
	assert.ErrorIs(t, err, fphal.ErrNotSupported)
}

func TestRegistryOpen(t *testing.T) {
	dev, err := fphal.Open(DriverName,
		options.WithSecret(testSecret),
		options.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dev.Close() })

	info, ok := dev.(fphal.Informer)
	require.True(t, ok)
	assert.Equal(t, fptypes.APIVersion3_0, info.SensorInfo().Version)

	_, err = fphal.Open("no-such-driver")
	assert.ErrorIs(t, err, fphal.ErrUnknownDriver)
}
