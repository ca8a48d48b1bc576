// Package auth provides API key generation, hashing and request identity.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Keys look like utr_<prefix>_<secret>, e.g.
// utr_7a9f3c_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b. The prefix is stored in
// clear for lookup; only the argon2id hash of the whole key is persisted.
const (
	KeyScheme    = "utr"
	KeyPrefixLen = 6
	KeySecretLen = 32
)

// ErrInvalidKeyFormat is returned for anything that is not a canonical key.
var ErrInvalidKeyFormat = errors.New("invalid API key format")

// GeneratedKey is a key ready to be stored and handed to its owner.
type GeneratedKey struct {
	Plaintext string
	Hash      string
	Prefix    string
}

// ParsedKey holds the two random segments of a key.
type ParsedKey struct {
	Prefix string
	Secret string
}

// GenerateAPIKey draws a fresh prefix and secret from crypto/rand.
func GenerateAPIKey() (*GeneratedKey, error) {
	buf := make([]byte, (KeyPrefixLen+KeySecretLen)/2)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("read random bytes: %w", err)
	}
	encoded := hex.EncodeToString(buf)
	return FromPlaintext(KeyScheme + "_" + encoded[:KeyPrefixLen] + "_" + encoded[KeyPrefixLen:])
}

// FromPlaintext hashes an operator-supplied key such as ADMIN_API_KEY.
func FromPlaintext(plaintext string) (*GeneratedKey, error) {
	parsed, err := ParseAPIKey(plaintext)
	if err != nil {
		return nil, err
	}
	hash, err := HashKey(plaintext)
	if err != nil {
		return nil, fmt.Errorf("hash key: %w", err)
	}
	return &GeneratedKey{Plaintext: plaintext, Hash: hash, Prefix: parsed.Prefix}, nil
}

// ParseAPIKey splits a key into prefix and secret.
func ParseAPIKey(key string) (*ParsedKey, error) {
	scheme, rest, ok := strings.Cut(key, "_")
	if !ok || scheme != KeyScheme {
		return nil, ErrInvalidKeyFormat
	}
	prefix, secret, ok := strings.Cut(rest, "_")
	if !ok || !isLowerHex(prefix, KeyPrefixLen) || !isLowerHex(secret, KeySecretLen) {
		return nil, ErrInvalidKeyFormat
	}
	return &ParsedKey{Prefix: prefix, Secret: secret}, nil
}

// ValidateKeyFormat reports whether key is a canonical API key.
func ValidateKeyFormat(key string) bool {
	_, err := ParseAPIKey(key)
	return err == nil
}

func isLowerHex(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
