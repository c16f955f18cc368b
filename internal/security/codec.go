package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// ErrInvalidToken covers every way a signed token can fail verification:
// missing separator, undecodable parts, signature mismatch. Callers must
// treat it exactly like an absent credential.
var ErrInvalidToken = errors.New("invalid signed token")

const signatureSize = sha256.Size

// TokenCodec wraps opaque session tokens in a tamper-evident signature.
// The signing key is derived once from the process-wide secret and a
// component salt, so rotating the salt invalidates only this component's
// tokens.
type TokenCodec struct {
	key []byte
}

func NewTokenCodec(secret, salt string) (*TokenCodec, error) {
	if secret == "" {
		return nil, errors.New("token codec: secret must not be empty")
	}
	kdf := hkdf.New(sha256.New, []byte(secret), []byte(salt), []byte("session-token-v1"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("token codec: derive key: %w", err)
	}
	return &TokenCodec{key: key}, nil
}

// Sign produces the wire form "<opaque>.<base64url(hmac)>". It is
// deterministic for a given key and opaque token.
func (c *TokenCodec) Sign(opaque string) string {
	return opaque + "." + base64.RawURLEncoding.EncodeToString(c.mac(opaque))
}

// Verify recomputes the expected signature for the embedded payload and
// returns the opaque token on match. The comparison is constant time and
// every failure mode collapses into ErrInvalidToken.
func (c *TokenCodec) Verify(signed string) (string, error) {
	idx := strings.LastIndexByte(signed, '.')
	if idx <= 0 || idx == len(signed)-1 {
		return "", ErrInvalidToken
	}
	opaque, sig := signed[:idx], signed[idx+1:]
	// Strict decoding rejects signatures that differ only in the unused
	// trailing bits of the final base64 character.
	got, err := base64.RawURLEncoding.Strict().DecodeString(sig)
	if err != nil || len(got) != signatureSize {
		return "", ErrInvalidToken
	}
	if !hmac.Equal(got, c.mac(opaque)) {
		return "", ErrInvalidToken
	}
	return opaque, nil
}

func (c *TokenCodec) mac(opaque string) []byte {
	h := hmac.New(sha256.New, c.key)
	h.Write([]byte(opaque))
	return h.Sum(nil)
}
