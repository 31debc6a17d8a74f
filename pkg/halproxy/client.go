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

// Client is the remote side of a proxied device. It implements
// fphal.Device; every operation is one request/reply exchange, and
// streamed event frames are handed to the locally registered callback in
// arrival order by a single reader goroutine, preserving the delivery
// contract end to end.
type Client struct {
	conn net.Conn
	log  *slog.Logger

	// reqMu serializes request/reply exchanges; the contract is
	// single-operation-at-a-time anyway.
	reqMu   sync.Mutex
	replies chan *reply

	notifyMu sync.Mutex
	notify   fphal.NotifyFunc

	closeOnce sync.Once
}

// Dial connects to a serving daemon at path (a unix socket, or a named
// pipe on Windows).
func Dial(path string, opts ...options.Option) (*Client, error) {
	conn, err := dialTransport(path)
	if err != nil {
		return nil, err
	}
	return NewClient(conn, opts...), nil
}

// NewClient wraps an established connection.
func NewClient(conn net.Conn, opts ...options.Option) *Client {
	oo := options.NewOptions(opts...)

	c := &Client{
		conn:    conn,
		log:     oo.Logger,
		replies: make(chan *reply, 1),
	}
	go c.readLoop()
	return c
}

func (c *Client) readLoop() {
	defer close(c.replies)

	for {
		f := new(frame)
		if _, err := f.ReadFrom(c.conn); err != nil {
			return
		}

		switch f.kind {
		case frameReply:
			rep := new(reply)
			if err := f.decode(rep); err != nil {
				return
			}
			c.replies <- rep

		case frameEvent:
			var w wireEvent
			if err := f.decode(&w); err != nil {
				return
			}
			ev, err := decodeEvent(&w)
			if err != nil {
				c.log.Error("dropping undecodable event", "err", err)
				continue
			}

			c.notifyMu.Lock()
			fn := c.notify
			c.notifyMu.Unlock()
			if fn != nil {
				fn(ev)
			}

		default:
			return
		}
	}
}

func (c *Client) call(op opcode, req any) (*reply, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	f, err := newFrame(frameRequest, op, req)
	if err != nil {
		return nil, err
	}
	if _, err := f.WriteTo(c.conn); err != nil {
		return nil, fphal.ErrClosed
	}

	rep, ok := <-c.replies
	if !ok {
		return nil, fphal.ErrClosed
	}
	return rep, nil
}

func (c *Client) do(op opcode, req any) error {
	rep, err := c.call(op, req)
	if err != nil {
		return err
	}
	return errOf(rep)
}

// SetNotify registers the local callback event frames are delivered to.
func (c *Client) SetNotify(fn fphal.NotifyFunc) error {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.notify = fn
	return nil
}

func (c *Client) GenerateChallenge() (uint64, error) {
	rep, err := c.call(opGenerateChallenge, nil)
	if err != nil {
		return 0, err
	}
	if err := errOf(rep); err != nil {
		return 0, err
	}
	return rep.Value, nil
}

func (c *Client) RevokeChallenge(challenge uint64) error {
	return c.do(opRevokeChallenge, challengeRequest{Challenge: challenge})
}

func (c *Client) Enroll(hat *hwauth.Token, timeout time.Duration) error {
	if hat == nil {
		return fphal.ErrTokenRequired
	}
	b, err := hat.MarshalBinary()
	if err != nil {
		return err
	}
	return c.do(opEnroll, enrollRequest{
		Token:     b,
		TimeoutMS: timeout.Milliseconds(),
	})
}

func (c *Client) Cancel() error {
	return c.do(opCancel, nil)
}

func (c *Client) Enumerate() error {
	return c.do(opEnumerate, nil)
}

func (c *Client) Remove(ids []fptypes.FingerID) error {
	return c.do(opRemove, removeRequest{IDs: ids})
}

func (c *Client) SetActiveGroup(gid fptypes.GroupID, storePath string) error {
	return c.do(opSetActiveGroup, activeGroupRequest{Group: gid, Path: storePath})
}

func (c *Client) Authenticate(operationID uint64) error {
	return c.do(opAuthenticate, authenticateRequest{OperationID: operationID})
}

func (c *Client) GetAuthenticatorID() (uint64, error) {
	rep, err := c.call(opGetAuthenticatorID, nil)
	if err != nil {
		return 0, err
	}
	if err := errOf(rep); err != nil {
		return 0, err
	}
	return rep.Value, nil
}

func (c *Client) InvalidateAuthenticatorID() error {
	return c.do(opInvalidateAuthenticatorID, nil)
}

func (c *Client) ResetLockout(hat *hwauth.Token) error {
	if hat == nil {
		return fphal.ErrTokenRequired
	}
	b, err := hat.MarshalBinary()
	if err != nil {
		return err
	}
	return c.do(opResetLockout, tokenRequest{Token: b})
}

// PresentFinger injects a capture into the remote sensor, when the served
// device supports injection.
func (c *Client) PresentFinger(fid fptypes.FingerID, quality fptypes.AcquiredInfo) error {
	return c.do(opPresentFinger, presentFingerRequest{Finger: fid, Quality: quality})
}

// Close tears down the proxy handle. The served device itself stays open;
// the server detaches its callback when the connection drops.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
	})
	return err
}
