// Package hwauth implements hardware auth tokens (HATs): opaque,
// MAC-protected proof of a prior authentication event. A HAT binds the
// event to a challenge so that operations requiring user presence
// (enrollment, lockout reset) can verify it happened recently and for the
// right transaction.
package hwauth

import (
	"encoding/binary"
	"io"
)

// AuthenticatorType tells which kind of authenticator produced a token.
type AuthenticatorType uint32

const (
	TypeNone        AuthenticatorType = 0
	TypePassword    AuthenticatorType = 1 << 0
	TypeFingerprint AuthenticatorType = 1 << 1
)

// TokenVersion is the current wire layout revision.
const TokenVersion byte = 0

// macLen is the length of the HMAC-SHA256 tag.
const macLen = 32

// prefixLen is the length of the MACed portion of the wire layout:
// version(1) + challenge(8) + userID(8) + authenticatorID(8) +
// authenticatorType(4) + timestamp(8).
const prefixLen = 1 + 8 + 8 + 8 + 4 + 8

// TokenLen is the full encoded token length.
const TokenLen = prefixLen + macLen

// Token is one hardware auth token. All multi-byte fields are encoded
// big-endian; the MAC covers the entire prefix in wire order.
type Token struct {
	Version           byte
	Challenge         uint64
	UserID            uint64
	AuthenticatorID   uint64
	AuthenticatorType AuthenticatorType
	// Timestamp is unix milliseconds at mint time.
	Timestamp uint64
	MAC       []byte
}

func (t *Token) prefix() []byte {
	buf := make([]byte, 0, prefixLen)
	buf = append(buf, t.Version)
	buf = binary.BigEndian.AppendUint64(buf, t.Challenge)
	buf = binary.BigEndian.AppendUint64(buf, t.UserID)
	buf = binary.BigEndian.AppendUint64(buf, t.AuthenticatorID)
	buf = binary.BigEndian.AppendUint32(buf, uint32(t.AuthenticatorType))
	buf = binary.BigEndian.AppendUint64(buf, t.Timestamp)
	return buf
}

// MarshalBinary encodes the token into its fixed wire layout.
func (t *Token) MarshalBinary() ([]byte, error) {
	if len(t.MAC) != macLen {
		return nil, ErrNoMAC
	}
	return append(t.prefix(), t.MAC...), nil
}

// UnmarshalBinary decodes a token from its fixed wire layout.
func (t *Token) UnmarshalBinary(data []byte) error {
	if len(data) != TokenLen {
		return ErrTruncated
	}
	t.Version = data[0]
	t.Challenge = binary.BigEndian.Uint64(data[1:])
	t.UserID = binary.BigEndian.Uint64(data[9:])
	t.AuthenticatorID = binary.BigEndian.Uint64(data[17:])
	t.AuthenticatorType = AuthenticatorType(binary.BigEndian.Uint32(data[25:]))
	t.Timestamp = binary.BigEndian.Uint64(data[29:])
	t.MAC = append([]byte(nil), data[prefixLen:]...)
	return nil
}

// WriteTo writes the encoded token to w.
func (t *Token) WriteTo(w io.Writer) (int64, error) {
	b, err := t.MarshalBinary()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(b)
	return int64(n), err
}

// ReadFrom reads one encoded token from r.
func (t *Token) ReadFrom(r io.Reader) (int64, error) {
	buf := make([]byte, TokenLen)
	n, err := io.ReadFull(r, buf)
	if err != nil {
		return int64(n), err
	}
	return int64(n), t.UnmarshalBinary(buf)
}
