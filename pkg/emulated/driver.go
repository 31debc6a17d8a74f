// Package emulated implements the fingerprint device contract against a
// software sensor. Captures are injected by the caller through
// PresentFinger, which makes the full externally observed state machine
// (idle, enrolling, authenticating, lockout) executable without hardware.
package emulated

import (
	"crypto/rand"
	"encoding/binary"
	"log/slog"
	"sync"
	"time"

	"github.com/go-fprint/fphal/pkg/fphal"
	"github.com/go-fprint/fphal/pkg/fptypes"
	"github.com/go-fprint/fphal/pkg/hwauth"
	"github.com/go-fprint/fphal/pkg/options"
	"github.com/google/uuid"
)

// DriverName is the name the driver registers itself under.
const DriverName = "emulated"

func init() {
	fphal.Register(DriverName, factory{})
}

type factory struct{}

func (factory) Open(opts ...options.Option) (fphal.Device, error) {
	return New(opts...)
}

type state int

const (
	stateIdle state = iota
	stateEnrolling
	stateAuthenticating
)

// extCmdSamplesNeeded is the one vendor extension command the emulated
// sensor answers: it returns how many good captures build a template.
const extCmdSamplesNeeded int32 = 1

// Driver is an emulated fingerprint device. It serves one client; all
// methods are safe for use from the client goroutine plus the injection
// calls, but the contract itself is single-operation-at-a-time.
type Driver struct {
	mu       sync.Mutex
	idleCond *sync.Cond

	log      *slog.Logger
	opts     *options.Options
	minter   *hwauth.Minter
	sensorID uuid.UUID

	notifier *notifier

	state  state
	closed bool

	group    *store
	gid      fptypes.GroupID
	haveGrp  bool

	challenges      map[uint64]struct{}
	authenticatorID uint64

	// enrolling
	pendingFinger   fptypes.FingerID
	enrollRemaining uint32
	enrollTimer     *time.Timer

	// authenticating
	operationID uint64

	failedAttempts uint32
	lockedOut      bool
	lockoutTimer   *time.Timer
}

// New opens an emulated device. The hardware auth token key is derived
// from the configured secret; when none is given a random one is drawn,
// which still lets the device verify its own tokens.
func New(opts ...options.Option) (*Driver, error) {
	oo := options.NewOptions(opts...)

	secret := oo.Secret
	if secret == nil {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, err
		}
	}

	minter, err := hwauth.NewMinter(secret)
	if err != nil {
		return nil, err
	}
	minter.WithClock(oo.Clock)

	d := &Driver{
		log:             oo.Logger,
		opts:            oo,
		minter:          minter,
		sensorID:        uuid.New(),
		notifier:        newNotifier(),
		challenges:      make(map[uint64]struct{}),
		authenticatorID: randomID(),
	}
	d.idleCond = sync.NewCond(&d.mu)

	d.log.Debug("emulated sensor opened",
		"sensor_id", d.sensorID,
		"strength", oo.Strength,
		"kind", oo.Kind,
	)

	return d, nil
}

func randomID() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	id := binary.BigEndian.Uint64(b[:])
	if id == 0 {
		id = 1
	}
	return id
}

// Minter exposes the device's token minter so a test or daemon sharing
// the device secret can produce presence tokens for Enroll/ResetLockout.
func (d *Driver) Minter() *hwauth.Minter {
	return d.minter
}

// SensorInfo implements fphal.Informer.
func (d *Driver) SensorInfo() fphal.SensorInfo {
	return fphal.SensorInfo{
		SensorID: d.sensorID,
		Version:  fptypes.APIVersion3_0,
		Strength: d.opts.Strength,
		Kind:     d.opts.Kind,
	}
}

// SetNotify registers the notify callback. Per the contract it blocks
// while the state machine is busy with an operation.
func (d *Driver) SetNotify(fn fphal.NotifyFunc) error {
	d.mu.Lock()
	for d.state != stateIdle && !d.closed {
		d.idleCond.Wait()
	}
	closed := d.closed
	d.mu.Unlock()

	if closed {
		return fphal.ErrClosed
	}
	d.notifier.setFunc(fn)
	return nil
}

func (d *Driver) GenerateChallenge() (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return 0, fphal.ErrClosed
	}

	challenge := randomID()
	d.challenges[challenge] = struct{}{}
	d.notifier.push(fphal.ChallengeGeneratedEvent{Challenge: challenge})

	d.log.Debug("challenge generated", "challenge", challenge)
	return challenge, nil
}

// RevokeChallenge invalidates a challenge. Unknown values still get the
// revoked acknowledgement; revocation is idempotent by contract.
func (d *Driver) RevokeChallenge(challenge uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return fphal.ErrClosed
	}

	delete(d.challenges, challenge)
	d.notifier.push(fphal.ChallengeRevokedEvent{Challenge: challenge})
	return nil
}

// verifyToken checks MAC, freshness, and that the token's challenge is
// one this device issued and has not revoked.
func (d *Driver) verifyToken(hat *hwauth.Token) error {
	if err := d.minter.Verify(hat, 0, d.opts.TokenMaxAge); err != nil {
		return err
	}
	if _, ok := d.challenges[hat.Challenge]; !ok {
		return hwauth.ErrChallengeMismatch
	}
	return nil
}

func (d *Driver) Enroll(hat *hwauth.Token, timeout time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case d.closed:
		return fphal.ErrClosed
	case d.state != stateIdle:
		return fphal.ErrBusy
	case !d.haveGrp:
		return fphal.ErrNoActiveGroup
	case hat == nil:
		return fphal.ErrTokenRequired
	}

	if err := d.verifyToken(hat); err != nil {
		return fphal.NewErrorMessage(fphal.ErrTokenRequired, err.Error())
	}

	if timeout <= 0 {
		timeout = d.opts.EnrollTimeout
	}

	d.state = stateEnrolling
	d.pendingFinger = d.group.nextFinger()
	d.enrollRemaining = d.opts.SamplesNeeded
	d.enrollTimer = time.AfterFunc(timeout, d.enrollTimedOut)

	d.log.Info("enrollment started",
		"finger", d.pendingFinger,
		"samples_needed", d.enrollRemaining,
		"timeout", timeout,
	)
	return nil
}

func (d *Driver) enrollTimedOut() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != stateEnrolling {
		return
	}

	d.log.Info("enrollment timed out", "finger", d.pendingFinger)
	d.notifier.push(fphal.ErrorEvent{Code: fptypes.ErrorTimeout})
	d.toIdle()
}

// toIdle resets the operation state; callers hold d.mu.
func (d *Driver) toIdle() {
	if d.enrollTimer != nil {
		d.enrollTimer.Stop()
		d.enrollTimer = nil
	}
	d.state = stateIdle
	d.idleCond.Broadcast()
}

// Cancel aborts a pending enroll or authenticate with ErrorCanceled and
// returns the device to idle. Outstanding challenges survive.
func (d *Driver) Cancel() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return fphal.ErrClosed
	}
	if d.state == stateIdle {
		return nil
	}

	d.log.Info("operation canceled")
	d.notifier.push(fphal.ErrorEvent{Code: fptypes.ErrorCanceled})
	d.toIdle()
	return nil
}

func (d *Driver) Enumerate() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case d.closed:
		return fphal.ErrClosed
	case d.state != stateIdle:
		return fphal.ErrBusy
	case !d.haveGrp:
		return fphal.ErrNoActiveGroup
	}

	ids := d.group.ids()
	if len(ids) == 0 {
		// Exactly one sentinel event, so an empty group is observable as
		// such and never ambiguous with "not started".
		d.notifier.push(fphal.TemplateEnumeratedEvent{})
		return nil
	}

	for i, fid := range ids {
		d.notifier.push(fphal.TemplateEnumeratedEvent{
			Template: fptypes.TemplateEvent{
				Finger:    fid,
				Remaining: uint32(len(ids) - 1 - i),
			},
		})
	}
	return nil
}

func (d *Driver) Remove(ids []fptypes.FingerID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case d.closed:
		return fphal.ErrClosed
	case d.state != stateIdle:
		return fphal.ErrBusy
	case !d.haveGrp:
		return fphal.ErrNoActiveGroup
	}

	for _, fid := range ids {
		if !d.group.contains(fid) {
			d.log.Warn("remove of unknown template", "finger", fid)
			d.notifier.push(fphal.ErrorEvent{Code: fptypes.ErrorUnableToRemove})
			return nil
		}
	}

	if len(ids) == 0 {
		d.notifier.push(fphal.TemplateRemovedEvent{})
		return nil
	}

	for i, fid := range ids {
		d.group.remove(fid)
		d.notifier.push(fphal.TemplateRemovedEvent{
			Template: fptypes.TemplateEvent{
				Finger:    fid,
				Remaining: uint32(len(ids) - 1 - i),
			},
		})
	}

	if err := d.group.save(); err != nil {
		d.notifier.push(fphal.ErrorEvent{Code: fptypes.ErrorUnableToProcess})
		return nil
	}

	// The enrolled set changed, so the authenticator id must rotate.
	d.authenticatorID = randomID()

	d.log.Info("templates removed", "count", len(ids))
	return nil
}

func (d *Driver) SetActiveGroup(gid fptypes.GroupID, storePath string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case d.closed:
		return fphal.ErrClosed
	case d.state != stateIdle:
		return fphal.ErrBusy
	}

	s, err := openStore(storePath)
	if err != nil {
		return err
	}

	d.group = s
	d.gid = gid
	d.haveGrp = true

	d.log.Info("active group set", "group", gid, "path", storePath)
	return nil
}

func (d *Driver) Authenticate(operationID uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case d.closed:
		return fphal.ErrClosed
	case d.state != stateIdle:
		return fphal.ErrBusy
	case !d.haveGrp:
		return fphal.ErrNoActiveGroup
	}

	if d.lockedOut {
		d.notifier.push(fphal.ErrorEvent{Code: fptypes.ErrorLockout})
		return nil
	}

	d.state = stateAuthenticating
	d.operationID = operationID

	d.log.Info("authentication started", "operation_id", operationID)
	return nil
}

func (d *Driver) GetAuthenticatorID() (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return 0, fphal.ErrClosed
	}

	d.notifier.push(fphal.AuthenticatorIDRetrievedEvent{ID: d.authenticatorID})
	return d.authenticatorID, nil
}

// InvalidateAuthenticatorID rotates the authenticator id on Strong
// sensors. On weaker sensors the acknowledgement is immediate and nothing
// observable changes, per the strength-tiered contract.
func (d *Driver) InvalidateAuthenticatorID() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return fphal.ErrClosed
	}

	if d.opts.Strength == fptypes.StrengthStrong {
		d.authenticatorID = randomID()
		d.log.Info("authenticator id invalidated")
	}
	d.notifier.push(fphal.AuthenticatorIDInvalidatedEvent{ID: d.authenticatorID})
	return nil
}

func (d *Driver) ResetLockout(hat *hwauth.Token) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return fphal.ErrClosed
	}
	if hat == nil {
		return fphal.ErrTokenRequired
	}

	if err := d.verifyToken(hat); err != nil {
		// Accepted but rejected after the fact: the bad token is an
		// asynchronous discovery on this path.
		d.log.Warn("lockout reset with bad token", "err", err)
		d.notifier.push(fphal.ErrorEvent{Code: fptypes.ErrorUnableToProcess})
		return nil
	}

	d.clearLockout()
	return nil
}

// clearLockout resets the attempt counter and acknowledges; callers hold
// d.mu.
func (d *Driver) clearLockout() {
	if d.lockoutTimer != nil {
		d.lockoutTimer.Stop()
		d.lockoutTimer = nil
	}
	d.lockedOut = false
	d.failedAttempts = 0
	d.notifier.push(fphal.LockoutClearedEvent{})
	d.log.Info("lockout cleared")
}

func (d *Driver) lockoutExpired() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.lockedOut {
		return
	}
	d.clearLockout()
}

// PresentFinger injects one capture into the in-flight operation; it is
// the emulated sensor surface. During enrollment a Good capture counts
// one sample; during authentication it is matched against the active
// group by finger id. Outside an operation only the acquisition feedback
// is reported.
func (d *Driver) PresentFinger(fid fptypes.FingerID, quality fptypes.AcquiredInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}

	d.notifier.push(fphal.AcquiredEvent{Info: quality})

	if quality != fptypes.AcquiredGood {
		return
	}

	switch d.state {
	case stateEnrolling:
		d.enrollSample()
	case stateAuthenticating:
		d.matchSample(fid)
	case stateIdle:
	}
}

// enrollSample counts one good capture; callers hold d.mu.
func (d *Driver) enrollSample() {
	d.enrollRemaining--
	d.notifier.push(fphal.EnrollProgressEvent{
		Progress: fptypes.EnrollProgress{
			Finger:           d.pendingFinger,
			SamplesRemaining: d.enrollRemaining,
		},
	})

	if d.enrollRemaining > 0 {
		return
	}

	d.group.add(fptypes.TemplateRecord{
		RecordID:   uuid.New(),
		Finger:     d.pendingFinger,
		Group:      d.gid,
		EnrolledAt: d.opts.Clock(),
	})
	if err := d.group.save(); err != nil {
		d.log.Error("persisting template failed", "err", err)
		d.notifier.push(fphal.ErrorEvent{Code: fptypes.ErrorNoSpace})
		d.notifier.push(fphal.ErrorEvent{Code: fptypes.ErrorCanceled})
		d.toIdle()
		return
	}

	// New template set, new authenticator id.
	d.authenticatorID = randomID()

	d.log.Info("enrollment complete", "finger", d.pendingFinger)
	d.toIdle()
}

// matchSample matches one good capture against the store; callers hold
// d.mu.
func (d *Driver) matchSample(fid fptypes.FingerID) {
	if d.group.contains(fid) {
		tok, err := d.minter.Mint(
			d.operationID,
			uint64(d.gid),
			d.authenticatorID,
			hwauth.TypeFingerprint,
		)
		if err != nil {
			d.log.Error("minting auth token failed", "err", err)
			d.notifier.push(fphal.ErrorEvent{Code: fptypes.ErrorUnableToProcess})
			d.notifier.push(fphal.ErrorEvent{Code: fptypes.ErrorCanceled})
			d.toIdle()
			return
		}

		d.failedAttempts = 0
		d.notifier.push(fphal.AuthenticatedEvent{Finger: fid, Token: tok})
		d.log.Info("authenticated", "finger", fid, "operation_id", d.operationID)
		d.toIdle()
		return
	}

	// Rejected capture: finger id 0, no token. The operation stays alive
	// for another attempt unless this one tripped the lockout.
	d.failedAttempts++
	d.notifier.push(fphal.AuthenticatedEvent{Finger: 0})

	if d.failedAttempts < d.opts.MaxAttempts {
		return
	}

	d.lockedOut = true
	d.lockoutTimer = time.AfterFunc(d.opts.LockoutDuration, d.lockoutExpired)
	d.log.Warn("lockout engaged", "attempts", d.failedAttempts)
	d.notifier.push(fphal.ErrorEvent{Code: fptypes.ErrorLockout})
	d.toIdle()
}

// OnPointerDown implements fphal.PointerMonitor. Only under-display
// sensors consume it; for them a touch while busy reads as first contact.
func (d *Driver) OnPointerDown(pointerID int32, x, y int32, minor, major float32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.opts.Kind.IsUnderDisplay() || d.closed {
		return
	}
	if d.state != stateIdle {
		d.notifier.push(fphal.AcquiredEvent{Info: fptypes.AcquiredDetected})
	}
}

// OnPointerUp implements fphal.PointerMonitor; a no-op for every sensor
// kind the emulated driver models.
func (d *Driver) OnPointerUp(pointerID int32) {}

// ExtCmd implements fphal.Extender.
func (d *Driver) ExtCmd(cmd, param int32) (int32, error) {
	switch cmd {
	case extCmdSamplesNeeded:
		return int32(d.opts.SamplesNeeded), nil
	default:
		return 0, fphal.ErrNotSupported
	}
}

func (d *Driver) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	if d.state != stateIdle {
		d.notifier.push(fphal.ErrorEvent{Code: fptypes.ErrorCanceled})
		d.toIdle()
	}
	if d.lockoutTimer != nil {
		d.lockoutTimer.Stop()
		d.lockoutTimer = nil
	}
	d.closed = true
	d.idleCond.Broadcast()
	d.mu.Unlock()

	d.notifier.close()
	d.log.Debug("emulated sensor closed", "sensor_id", d.sensorID)
	return nil
}
