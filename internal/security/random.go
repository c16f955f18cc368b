package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// NewOpaqueToken returns a 256-bit random identifier in base64url form.
// It is the primary key into the session store and never travels on the
// wire without a signature.
func NewOpaqueToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate opaque token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
