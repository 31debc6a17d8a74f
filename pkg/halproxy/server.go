package halproxy

import (
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/go-fprint/fphal/pkg/fphal"
	"github.com/go-fprint/fphal/pkg/fptypes"
	"github.com/go-fprint/fphal/pkg/hwauth"
	"github.com/go-fprint/fphal/pkg/options"
)

// fingerInjector is the optional capture-injection surface a served
// device may expose (the emulated driver does). Without it the
// PresentFinger op answers not-supported.
type fingerInjector interface {
	PresentFinger(fid fptypes.FingerID, quality fptypes.AcquiredInfo)
}

// Server exposes one local device to one remote client at a time,
// matching the contract's single-client assumption.
type Server struct {
	dev fphal.Device
	log *slog.Logger
}

func NewServer(dev fphal.Device, opts ...options.Option) *Server {
	oo := options.NewOptions(opts...)
	return &Server{
		dev: dev,
		log: oo.Logger,
	}
}

// Serve accepts clients sequentially until the listener fails.
func (s *Server) Serve(l net.Listener) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			return err
		}
		s.log.Info("proxy client connected", "remote", conn.RemoteAddr())
		s.handle(conn)
		s.log.Info("proxy client disconnected")
	}
}

func (s *Server) handle(conn net.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	// Replies and streamed events share the connection; serialize writes.
	var wmu sync.Mutex
	writeFrame := func(f *frame) error {
		wmu.Lock()
		defer wmu.Unlock()
		_, err := f.WriteTo(conn)
		return err
	}

	if err := s.dev.SetNotify(func(ev fphal.Event) {
		w, err := encodeEvent(ev)
		if err != nil {
			s.log.Error("encoding event failed", "type", ev.Type(), "err", err)
			return
		}
		f, err := newFrame(frameEvent, 0, w)
		if err != nil {
			s.log.Error("framing event failed", "type", ev.Type(), "err", err)
			return
		}
		if err := writeFrame(f); err != nil {
			s.log.Debug("streaming event failed", "err", err)
		}
	}); err != nil {
		return
	}
	defer func() {
		_ = s.dev.SetNotify(nil)
	}()

	for {
		f := new(frame)
		if _, err := f.ReadFrom(conn); err != nil {
			return
		}
		if f.kind != frameRequest {
			return
		}

		rep := s.dispatch(f)
		rf, err := newFrame(frameReply, f.op, rep)
		if err != nil {
			return
		}
		if err := writeFrame(rf); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(f *frame) *reply {
	rep := new(reply)

	fail := func(err error) *reply {
		rep.Status, rep.Message = statusOf(err)
		return rep
	}

	switch f.op {
	case opGenerateChallenge:
		challenge, err := s.dev.GenerateChallenge()
		if err != nil {
			return fail(err)
		}
		rep.Value = challenge
		return rep

	case opRevokeChallenge:
		var req challengeRequest
		if err := f.decode(&req); err != nil {
			return fail(err)
		}
		return fail(s.dev.RevokeChallenge(req.Challenge))

	case opEnroll:
		var req enrollRequest
		if err := f.decode(&req); err != nil {
			return fail(err)
		}
		tok := new(hwauth.Token)
		if err := tok.UnmarshalBinary(req.Token); err != nil {
			return fail(err)
		}
		return fail(s.dev.Enroll(tok, time.Duration(req.TimeoutMS)*time.Millisecond))

	case opCancel:
		return fail(s.dev.Cancel())

	case opEnumerate:
		return fail(s.dev.Enumerate())

	case opRemove:
		var req removeRequest
		if err := f.decode(&req); err != nil {
			return fail(err)
		}
		return fail(s.dev.Remove(req.IDs))

	case opSetActiveGroup:
		var req activeGroupRequest
		if err := f.decode(&req); err != nil {
			return fail(err)
		}
		return fail(s.dev.SetActiveGroup(req.Group, req.Path))

	case opAuthenticate:
		var req authenticateRequest
		if err := f.decode(&req); err != nil {
			return fail(err)
		}
		return fail(s.dev.Authenticate(req.OperationID))

	case opGetAuthenticatorID:
		id, err := s.dev.GetAuthenticatorID()
		if err != nil {
			return fail(err)
		}
		rep.Value = id
		return rep

	case opInvalidateAuthenticatorID:
		return fail(s.dev.InvalidateAuthenticatorID())

	case opResetLockout:
		var req tokenRequest
		if err := f.decode(&req); err != nil {
			return fail(err)
		}
		tok := new(hwauth.Token)
		if err := tok.UnmarshalBinary(req.Token); err != nil {
			return fail(err)
		}
		return fail(s.dev.ResetLockout(tok))

	case opPresentFinger:
		inj, ok := s.dev.(fingerInjector)
		if !ok {
			return fail(fphal.ErrNotSupported)
		}
		var req presentFingerRequest
		if err := f.decode(&req); err != nil {
			return fail(err)
		}
		inj.PresentFinger(req.Finger, req.Quality)
		return rep

	default:
		return fail(ErrBadFrame)
	}
}
