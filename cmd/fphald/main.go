// Command fphald serves a fingerprint device to desktop clients, either
// over D-Bus with fprintd-style methods and signals, or (with -listen)
// over the wire proxy for remote fphal clients.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-fprint/fphal/pkg/emulated"
	"github.com/go-fprint/fphal/pkg/fphal"
	"github.com/go-fprint/fphal/pkg/fptypes"
	"github.com/go-fprint/fphal/pkg/halproxy"
	"github.com/go-fprint/fphal/pkg/hwauth"
	"github.com/go-fprint/fphal/pkg/options"
	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/samber/lo"
)

const (
	busName       = "org.gofprint.Fingerprint"
	devicePath    = dbus.ObjectPath("/org/gofprint/Fingerprint/Device0")
	deviceIface   = "org.gofprint.Fingerprint.Device"
	enrollSignal  = deviceIface + ".EnrollStatus"
	verifySignal  = deviceIface + ".VerifyStatus"
	lockoutSignal = deviceIface + ".LockoutCleared"
)

// fprintd-compatible status strings, so existing desktop tooling can
// follow along.
const (
	statusEnrollStagePassed = "enroll-stage-passed"
	statusEnrollCompleted   = "enroll-completed"
	statusEnrollFailed      = "enroll-failed"
	statusVerifyMatch       = "verify-match"
	statusVerifyNoMatch     = "verify-no-match"
	statusVerifyRetryScan   = "verify-retry-scan"
	statusVerifyUnknown     = "verify-unknown-error"
)

func main() {
	var (
		driverName = flag.String("driver", emulated.DriverName, "device driver to open")
		storeDir   = flag.String("store", "/var/lib/fphald", "template store directory")
		group      = flag.Uint("group", 0, "active template group")
		useSystem  = flag.Bool("system", false, "attach to the system bus instead of the session bus")
		listenPath = flag.String("listen", "", "serve the wire proxy on this socket instead of D-Bus")
		debug      = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	lvl := new(slog.LevelVar)
	if *debug {
		lvl.Set(slog.LevelDebug)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: lvl,
	}))

	dev, err := fphal.Open(*driverName, options.WithLogger(logger))
	if err != nil {
		logger.Error("opening device failed", "driver", *driverName, "err", err)
		os.Exit(1)
	}
	defer func() {
		_ = dev.Close()
	}()

	if err := dev.SetActiveGroup(fptypes.GroupID(*group), *storeDir); err != nil {
		logger.Error("activating template group failed", "err", err)
		os.Exit(1)
	}

	if *listenPath != "" {
		if err := serveProxy(dev, *listenPath, logger); err != nil {
			logger.Error("proxy serving failed", "err", err)
			os.Exit(1)
		}
		return
	}

	if err := serveBus(dev, *useSystem, logger); err != nil {
		logger.Error("bus serving failed", "err", err)
		os.Exit(1)
	}
}

func serveProxy(dev fphal.Device, path string, logger *slog.Logger) error {
	l, err := halproxy.Listen(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = l.Close()
	}()

	logger.Info("serving wire proxy", "path", path)
	return halproxy.NewServer(dev, options.WithLogger(logger)).Serve(l)
}

func serveBus(dev fphal.Device, system bool, logger *slog.Logger) error {
	conn, err := lo.Ternary(system, dbus.ConnectSystemBus, dbus.ConnectSessionBus)()
	if err != nil {
		return err
	}
	defer func() {
		_ = conn.Close()
	}()

	svc := &service{dev: dev, conn: conn, log: logger}
	if err := dev.SetNotify(svc.relay); err != nil {
		return err
	}
	defer func() {
		_ = dev.SetNotify(nil)
	}()

	if err := conn.Export(svc, devicePath, deviceIface); err != nil {
		return err
	}
	if err := conn.Export(introspect.Introspectable(introspectXML), devicePath,
		"org.freedesktop.DBus.Introspectable"); err != nil {
		return err
	}

	reply, err := conn.RequestName(busName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return err
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("bus name %s already taken", busName)
	}

	logger.Info("serving device on bus", "name", busName, "path", devicePath)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down")
	return nil
}

// service exports one device on the bus. Method errors travel as D-Bus
// errors; asynchronous progress travels as EnrollStatus/VerifyStatus
// signals with fprintd-compatible status strings.
type service struct {
	dev  fphal.Device
	conn *dbus.Conn
	log  *slog.Logger

	mu        sync.Mutex
	claimedBy string
}

// relay is the notify callback; it runs on the device's delivery
// goroutine, so signal emission keeps event order.
func (s *service) relay(ev fphal.Event) {
	switch e := ev.(type) {
	case fphal.EnrollProgressEvent:
		done := e.Progress.Done()
		status := lo.Ternary(done, statusEnrollCompleted, statusEnrollStagePassed)
		s.emit(enrollSignal, status, done, uint32(e.Progress.Finger), e.Progress.SamplesRemaining)

	case fphal.AuthenticatedEvent:
		if e.Finger == 0 {
			s.emit(verifySignal, statusVerifyNoMatch, false, uint32(0))
			return
		}
		s.emit(verifySignal, statusVerifyMatch, true, uint32(e.Finger))

	case fphal.AcquiredEvent:
		if e.Info != fptypes.AcquiredGood && e.Info != fptypes.AcquiredDetected {
			s.emit(verifySignal, statusVerifyRetryScan, false, uint32(0))
		}

	case fphal.ErrorEvent:
		switch e.Code {
		case fptypes.ErrorCanceled:
			// Stops are client-initiated, no signal needed.
		case fptypes.ErrorTimeout:
			s.emit(enrollSignal, statusEnrollFailed, true, uint32(0), uint32(0))
		default:
			s.emit(verifySignal, statusVerifyUnknown, true, uint32(0))
		}

	case fphal.LockoutClearedEvent:
		s.emit(lockoutSignal)
	}
}

func (s *service) emit(name string, args ...any) {
	if err := s.conn.Emit(devicePath, name, args...); err != nil {
		s.log.Debug("emitting signal failed", "signal", name, "err", err)
	}
}

// Claim reserves the device for one bus client, fprintd-style. The
// device contract is single-client anyway; the claim just makes the
// owner explicit.
func (s *service) Claim(username string) *dbus.Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.claimedBy != "" {
		return dbus.MakeFailedError(fmt.Errorf("device already claimed by %s", s.claimedBy))
	}
	s.claimedBy = username
	s.log.Info("device claimed", "user", username)
	return nil
}

func (s *service) Release() *dbus.Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.claimedBy == "" {
		return dbus.MakeFailedError(fmt.Errorf("device is not claimed"))
	}
	s.log.Info("device released", "user", s.claimedBy)
	s.claimedBy = ""
	return failedOrNil(s.dev.Cancel())
}

func (s *service) GenerateChallenge() (uint64, *dbus.Error) {
	challenge, err := s.dev.GenerateChallenge()
	if err != nil {
		return 0, dbus.MakeFailedError(err)
	}
	return challenge, nil
}

func (s *service) RevokeChallenge(challenge uint64) *dbus.Error {
	return failedOrNil(s.dev.RevokeChallenge(challenge))
}

func (s *service) EnrollStart(token []byte, timeoutMS int64) *dbus.Error {
	hat := new(hwauth.Token)
	if err := hat.UnmarshalBinary(token); err != nil {
		return dbus.MakeFailedError(err)
	}
	return failedOrNil(s.dev.Enroll(hat, time.Duration(timeoutMS)*time.Millisecond))
}

func (s *service) EnrollStop() *dbus.Error {
	return failedOrNil(s.dev.Cancel())
}

func (s *service) VerifyStart(operationID uint64) *dbus.Error {
	return failedOrNil(s.dev.Authenticate(operationID))
}

func (s *service) VerifyStop() *dbus.Error {
	return failedOrNil(s.dev.Cancel())
}

// ListEnrolled gathers one enumerate pass synchronously; listing shares
// the single-operation lock with everything else, so a busy device
// answers with an error rather than queueing.
func (s *service) ListEnrolled() ([]uint32, *dbus.Error) {
	collected := make(chan []uint32, 1)
	var ids []uint32

	prev := s.relay
	if err := s.dev.SetNotify(func(ev fphal.Event) {
		te, ok := ev.(fphal.TemplateEnumeratedEvent)
		if !ok {
			prev(ev)
			return
		}
		if te.Template.IsSentinel() {
			collected <- nil
			return
		}
		ids = append(ids, uint32(te.Template.Finger))
		if te.Template.Remaining == 0 {
			collected <- ids
		}
	}); err != nil {
		return nil, dbus.MakeFailedError(err)
	}
	defer func() {
		_ = s.dev.SetNotify(s.relay)
	}()

	if err := s.dev.Enumerate(); err != nil {
		return nil, dbus.MakeFailedError(err)
	}

	select {
	case got := <-collected:
		return got, nil
	case <-time.After(10 * time.Second):
		return nil, dbus.MakeFailedError(fmt.Errorf("enumerate timed out"))
	}
}

func (s *service) DeleteEnrolled(ids []uint32) *dbus.Error {
	return failedOrNil(s.dev.Remove(lo.Map(ids, func(id uint32, _ int) fptypes.FingerID {
		return fptypes.FingerID(id)
	})))
}

func (s *service) SetActiveGroup(group uint32, storePath string) *dbus.Error {
	return failedOrNil(s.dev.SetActiveGroup(fptypes.GroupID(group), storePath))
}

func (s *service) GetAuthenticatorID() (uint64, *dbus.Error) {
	id, err := s.dev.GetAuthenticatorID()
	if err != nil {
		return 0, dbus.MakeFailedError(err)
	}
	return id, nil
}

func (s *service) ResetLockout(token []byte) *dbus.Error {
	hat := new(hwauth.Token)
	if err := hat.UnmarshalBinary(token); err != nil {
		return dbus.MakeFailedError(err)
	}
	return failedOrNil(s.dev.ResetLockout(hat))
}

func failedOrNil(err error) *dbus.Error {
	if err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

const introspectXML = `
<node>
	<interface name="` + deviceIface + `">
		<method name="Claim">
			<arg direction="in" type="s"/>
		</method>
		<method name="Release"/>
		<method name="GenerateChallenge">
			<arg direction="out" type="t"/>
		</method>
		<method name="RevokeChallenge">
			<arg direction="in" type="t"/>
		</method>
		<method name="EnrollStart">
			<arg direction="in" type="ay"/>
			<arg direction="in" type="x"/>
		</method>
		<method name="EnrollStop"/>
		<method name="VerifyStart">
			<arg direction="in" type="t"/>
		</method>
		<method name="VerifyStop"/>
		<method name="ListEnrolled">
			<arg direction="out" type="au"/>
		</method>
		<method name="DeleteEnrolled">
			<arg direction="in" type="au"/>
		</method>
		<method name="SetActiveGroup">
			<arg direction="in" type="u"/>
			<arg direction="in" type="s"/>
		</method>
		<method name="GetAuthenticatorID">
			<arg direction="out" type="t"/>
		</method>
		<method name="ResetLockout">
			<arg direction="in" type="ay"/>
		</method>
		<signal name="EnrollStatus">
			<arg type="s"/>
			<arg type="b"/>
			<arg type="u"/>
			<arg type="u"/>
		</signal>
		<signal name="VerifyStatus">
			<arg type="s"/>
			<arg type="b"/>
			<arg type="u"/>
		</signal>
		<signal name="LockoutCleared"/>
	</interface>
	` + introspect.IntrospectDataString + `
</node>`
