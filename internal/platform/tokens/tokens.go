// Package tokens generates the opaque credentials handed to voters. Session
// and receipt tokens are independent random material: a receipt can never be
// derived from the session that produced it.
package tokens

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const tokenBytes = 32

// New returns a 64-character hex token backed by 32 bytes of OS entropy.
func New() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("tokens: reading entropy: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
