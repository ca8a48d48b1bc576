package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Params are the Argon2id cost settings recorded in every stored hash.
type Params struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams is the OWASP minimum profile for Argon2id (19 MiB, t=2,
// p=1). Keys carry 128 bits of entropy, so a heavier profile would only
// slow down every uncached request.
var DefaultParams = Params{
	Memory:      19 * 1024,
	Iterations:  2,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

var (
	// ErrInvalidHash indicates the stored hash is not an argon2id PHC string.
	ErrInvalidHash = errors.New("invalid hash format")
	// ErrIncompatibleVersion indicates the hash was made by another argon2 version.
	ErrIncompatibleVersion = errors.New("incompatible argon2 version")
)

var b64 = base64.RawStdEncoding

// HashKey hashes key with DefaultParams.
func HashKey(key string) (string, error) {
	return HashKeyWith(key, DefaultParams)
}

// HashKeyWith hashes key and encodes the result as
// $argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt>$<hash>.
func HashKeyWith(key string, p Params) (string, error) {
	salt := make([]byte, p.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	sum := argon2.IDKey([]byte(key), salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLength)

	var sb strings.Builder
	fmt.Fprintf(&sb, "$argon2id$v=%d$m=%d,t=%d,p=%d$", argon2.Version, p.Memory, p.Iterations, p.Parallelism)
	sb.WriteString(b64.EncodeToString(salt))
	sb.WriteByte('$')
	sb.WriteString(b64.EncodeToString(sum))
	return sb.String(), nil
}

// VerifyKey reports whether key matches encoded. The comparison is
// constant time; the cost settings come from the hash itself.
func VerifyKey(key, encoded string) (bool, error) {
	p, salt, want, err := decodeHash(encoded)
	if err != nil {
		return false, err
	}
	got := argon2.IDKey([]byte(key), salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLength)
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

func decodeHash(encoded string) (Params, []byte, []byte, error) {
	var p Params

	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != "argon2id" {
		return p, nil, nil, ErrInvalidHash
	}

	v, ok := strings.CutPrefix(fields[2], "v=")
	if !ok {
		return p, nil, nil, ErrInvalidHash
	}
	version, err := strconv.Atoi(v)
	if err != nil {
		return p, nil, nil, ErrInvalidHash
	}
	if version != argon2.Version {
		return p, nil, nil, ErrIncompatibleVersion
	}

	for _, kv := range strings.Split(fields[3], ",") {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return p, nil, nil, ErrInvalidHash
		}
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil || n == 0 {
			return p, nil, nil, ErrInvalidHash
		}
		switch name {
		case "m":
			p.Memory = uint32(n)
		case "t":
			p.Iterations = uint32(n)
		case "p":
			if n > 255 {
				return p, nil, nil, ErrInvalidHash
			}
			p.Parallelism = uint8(n)
		default:
			return p, nil, nil, ErrInvalidHash
		}
	}
	if p.Memory == 0 || p.Iterations == 0 || p.Parallelism == 0 {
		return p, nil, nil, ErrInvalidHash
	}

	salt, err := b64.DecodeString(fields[4])
	if err != nil || len(salt) == 0 {
		return p, nil, nil, ErrInvalidHash
	}
	sum, err := b64.DecodeString(fields[5])
	if err != nil || len(sum) == 0 {
		return p, nil, nil, ErrInvalidHash
	}
	p.SaltLength = uint32(len(salt))
	p.KeyLength = uint32(len(sum))

	return p, salt, sum, nil
}

// CacheKey derives a cache key component from a plaintext API key so the
// key itself never reaches Redis. Not suitable for storage.
func CacheKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:16])
}
