package hwauth

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("device secret for tests")

func TestMintVerify(t *testing.T) {
	m, err := NewMinter(testSecret)
	require.NoError(t, err)

	tok, err := m.Mint(0xdeadbeef, 42, 7, TypeFingerprint)
	require.NoError(t, err)
	require.Len(t, tok.MAC, 32)

	assert.NoError(t, m.Verify(tok, 0xdeadbeef, time.Minute))

	// Another minter with the same secret derives the same key.
	m2, err := NewMinter(testSecret)
	require.NoError(t, err)
	assert.NoError(t, m2.Verify(tok, 0xdeadbeef, time.Minute))

	// A different secret must not verify.
	m3, err := NewMinter([]byte("other secret"))
	require.NoError(t, err)
	assert.ErrorIs(t, m3.Verify(tok, 0xdeadbeef, time.Minute), ErrBadMAC)
}

func TestVerifyTamper(t *testing.T) {
	m, err := NewMinter(testSecret)
	require.NoError(t, err)

	tok, err := m.Mint(1, 1, 1, TypeFingerprint)
	require.NoError(t, err)

	tok.UserID = 2
	assert.ErrorIs(t, m.Verify(tok, 1, 0), ErrBadMAC)
}

func TestVerifyChallengeMismatch(t *testing.T) {
	m, err := NewMinter(testSecret)
	require.NoError(t, err)

	tok, err := m.Mint(100, 1, 1, TypePassword)
	require.NoError(t, err)

	assert.ErrorIs(t, m.Verify(tok, 200, 0), ErrChallengeMismatch)
	// Zero challenge skips the binding check.
	assert.NoError(t, m.Verify(tok, 0, 0))
}

func TestVerifyExpired(t *testing.T) {
	m, err := NewMinter(testSecret)
	require.NoError(t, err)

	minted := time.Now()
	m.WithClock(func() time.Time { return minted })

	tok, err := m.Mint(1, 1, 1, TypeFingerprint)
	require.NoError(t, err)

	m.WithClock(func() time.Time { return minted.Add(time.Hour) })
	assert.ErrorIs(t, m.Verify(tok, 1, time.Minute), ErrExpired)
	assert.NoError(t, m.Verify(tok, 1, 2*time.Hour))
}

func TestTokenCodec(t *testing.T) {
	m, err := NewMinter(testSecret)
	require.NoError(t, err)

	tok, err := m.Mint(0x0102030405060708, 9, 10, TypeFingerprint)
	require.NoError(t, err)

	buf := bytes.NewBuffer(nil)
	n, err := tok.WriteTo(buf)
	require.NoError(t, err)
	assert.Equal(t, int64(TokenLen), n)

	decoded := new(Token)
	_, err = decoded.ReadFrom(buf)
	require.NoError(t, err)

	assert.Equal(t, tok, decoded)
	assert.NoError(t, m.Verify(decoded, 0x0102030405060708, 0))
}

func TestTokenTruncated(t *testing.T) {
	decoded := new(Token)
	err := decoded.UnmarshalBinary(make([]byte, TokenLen-1))
	assert.ErrorIs(t, err, ErrTruncated)
}
