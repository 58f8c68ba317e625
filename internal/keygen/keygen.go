// Package keygen generates and hashes ZodForge API keys.
//
// A key is "zf_" followed by 64 lowercase hex characters (32 bytes from a
// CSPRNG). Only the SHA-256 hash of the full key string is ever persisted;
// the plaintext exists in memory just long enough to be emailed to the
// customer.
package keygen

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Prefix identifies ZodForge API keys at a glance in logs and support tickets.
const Prefix = "zf_"

// randomBytes is the entropy drawn per key.
const randomBytes = 32

// previewLen is how many characters after the prefix appear in log previews.
const previewLen = 8

// Key pairs a freshly generated plaintext key with its storable hash.
type Key struct {
	// Plaintext is the full key, shown to the customer exactly once.
	Plaintext string
	// Hash is the lowercase hex SHA-256 of Plaintext, safe to persist.
	Hash string
}

// Generate produces a new API key from the operating system's CSPRNG.
// It fails only if the entropy source is unavailable.
func Generate() (Key, error) {
	buf := make([]byte, randomBytes)
	if _, err := rand.Read(buf); err != nil {
		return Key{}, fmt.Errorf("reading random bytes: %w", err)
	}
	plaintext := Prefix + hex.EncodeToString(buf)
	return Key{Plaintext: plaintext, Hash: Hash(plaintext)}, nil
}

// Hash returns the lowercase hex SHA-256 digest of a key string. The digest
// is computed over the full key including the prefix, so hashes from other
// tooling must do the same to match.
func Hash(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// Preview returns a truncated form of a key safe for log output,
// e.g. "zf_1a2b3c4d...". Previews of short or malformed inputs return the
// input unchanged only if it is already shorter than the preview itself.
func Preview(plaintext string) string {
	cut := len(Prefix) + previewLen
	if len(plaintext) <= cut {
		return plaintext
	}
	return plaintext[:cut] + "..."
}
