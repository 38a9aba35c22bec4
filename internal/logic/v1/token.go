package v1

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// newSessionToken returns a 256-bit random token encoded as hex. The token
// is the bearer credential and the sole session lookup key, so it must be
// unguessable and non-sequential.
func newSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
