package hwauth

import (
	"crypto/sha256"
	"fmt"
	"io"
	"time"

	"github.com/ldclabs/cose/iana"
	"github.com/ldclabs/cose/key"
	cosehmac "github.com/ldclabs/cose/key/hmac"
	"golang.org/x/crypto/hkdf"
)

// hkdfInfo domain-separates the HAT key from any other key derived from
// the same device secret.
var hkdfInfo = []byte("fphal hardware auth token key")

// Minter mints and verifies tokens with an HMAC-SHA256 key derived from a
// device secret. Driver and verifier must be constructed from the same
// secret; there is no key exchange.
type Minter struct {
	macer key.MACer
	now   func() time.Time
}

// NewMinter derives the token key from secret using HKDF-SHA256.
func NewMinter(secret []byte) (*Minter, error) {
	raw := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, hkdfInfo), raw); err != nil {
		return nil, fmt.Errorf("deriving token key using HKDF failed: %w", err)
	}

	k, err := cosehmac.KeyFrom(iana.AlgorithmHMAC_256_256, raw)
	if err != nil {
		return nil, fmt.Errorf("cannot build COSE HMAC key: %w", err)
	}
	macer, err := cosehmac.New(k)
	if err != nil {
		return nil, fmt.Errorf("cannot create MACer: %w", err)
	}

	return &Minter{
		macer: macer,
		now:   time.Now,
	}, nil
}

// WithClock overrides the minter's clock; for tests.
func (m *Minter) WithClock(now func() time.Time) *Minter {
	m.now = now
	return m
}

// Mint produces a token for the given transaction, MACed and timestamped.
func (m *Minter) Mint(challenge, userID, authenticatorID uint64, typ AuthenticatorType) (*Token, error) {
	t := &Token{
		Version:           TokenVersion,
		Challenge:         challenge,
		UserID:            userID,
		AuthenticatorID:   authenticatorID,
		AuthenticatorType: typ,
		Timestamp:         uint64(m.now().UnixMilli()),
	}

	mac, err := m.macer.MACCreate(t.prefix())
	if err != nil {
		return nil, err
	}
	t.MAC = mac

	return t, nil
}

// Verify checks the token's MAC, its challenge binding, and its age.
// A wantChallenge of 0 skips the challenge check; a maxAge of 0 skips the
// freshness check.
func (m *Minter) Verify(t *Token, wantChallenge uint64, maxAge time.Duration) error {
	if t == nil || len(t.MAC) != macLen {
		return ErrNoMAC
	}
	if t.Version != TokenVersion {
		return ErrVersion
	}
	if err := m.macer.MACVerify(t.prefix(), t.MAC); err != nil {
		return ErrBadMAC
	}
	if wantChallenge != 0 && t.Challenge != wantChallenge {
		return ErrChallengeMismatch
	}
	if maxAge > 0 {
		age := m.now().Sub(time.UnixMilli(int64(t.Timestamp)))
		if age > maxAge || age < -maxAge {
			return ErrExpired
		}
	}
	return nil
}
