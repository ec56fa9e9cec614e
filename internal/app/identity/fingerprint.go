package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/marcelojr/votemap/internal/domain"
)

// canonicalFingerprint is the stable serialization fed to the hash. Field
// order is fixed by the struct; only the signals that survive across sessions
// of the same device participate.
type canonicalFingerprint struct {
	VisitorID        string `json:"visitorId"`
	UserAgent        string `json:"userAgent"`
	ScreenResolution string `json:"screenResolution"`
}

// FingerprintHash derives the pseudonymous device identity key. Identical
// {visitorId, userAgent, screenResolution} triples always hash identically.
func FingerprintHash(descriptor domain.FingerprintDescriptor) (string, error) {
	if descriptor.VisitorID == "" {
		return "", fmt.Errorf("%w: missing visitor id", domain.ErrValidation)
	}

	canonical, err := json.Marshal(canonicalFingerprint{
		VisitorID:        descriptor.VisitorID,
		UserAgent:        descriptor.UserAgent,
		ScreenResolution: descriptor.ScreenResolution,
	})
	if err != nil {
		return "", fmt.Errorf("identity: canonicalize fingerprint: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// HashIP hashes a client address with a deployment salt. Kept for abuse
// forensics only; never used to link a ballot back to a voter.
func HashIP(salt, ip string) string {
	sum := sha256.Sum256([]byte(salt + "|" + ip))
	return hex.EncodeToString(sum[:])
}
