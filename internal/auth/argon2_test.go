package auth

import (
	"errors"
	"strings"
	"testing"
)

const sampleKey = "utr_abc123_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b"

// fastParams keeps hashing cheap in tests that do not check the profile.
var fastParams = Params{Memory: 64, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}

func TestHashKey_EncodesDefaultParams(t *testing.T) {
	t.Parallel()

	hash, err := HashKey(sampleKey)
	if err != nil {
		t.Fatalf("HashKey failed: %v", err)
	}

	if !strings.HasPrefix(hash, "$argon2id$v=19$m=19456,t=2,p=1$") {
		t.Errorf("unexpected hash header: %s", hash)
	}
	if strings.Contains(hash, sampleKey) {
		t.Error("hash contains the plaintext key")
	}

	p, salt, sum, err := decodeHash(hash)
	if err != nil {
		t.Fatalf("decodeHash failed: %v", err)
	}
	if p != DefaultParams {
		t.Errorf("decoded params = %+v, want %+v", p, DefaultParams)
	}
	if len(salt) != 16 || len(sum) != 32 {
		t.Errorf("salt/hash lengths = %d/%d, want 16/32", len(salt), len(sum))
	}
}

func TestVerifyKey(t *testing.T) {
	t.Parallel()

	hash, err := HashKeyWith(sampleKey, fastParams)
	if err != nil {
		t.Fatalf("HashKeyWith failed: %v", err)
	}

	tests := []struct {
		name string
		key  string
		want bool
	}{
		{"correct key", sampleKey, true},
		{"wrong secret", "utr_abc123_00000000000000000000000000000000", false},
		{"wrong prefix", "utr_ffffff_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := VerifyKey(tt.key, hash)
			if err != nil {
				t.Fatalf("VerifyKey error = %v", err)
			}
			if got != tt.want {
				t.Errorf("VerifyKey() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHashKey_SaltedPerCall(t *testing.T) {
	t.Parallel()

	h1, err := HashKeyWith(sampleKey, fastParams)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := HashKeyWith(sampleKey, fastParams)
	if err != nil {
		t.Fatal(err)
	}
	if h1 == h2 {
		t.Error("two hashes of the same key should differ by salt")
	}
}

func TestVerifyKey_UsesParamsFromHash(t *testing.T) {
	t.Parallel()

	// A hash made with other settings still verifies.
	custom := Params{Memory: 128, Iterations: 3, Parallelism: 2, SaltLength: 12, KeyLength: 24}
	hash, err := HashKeyWith(sampleKey, custom)
	if err != nil {
		t.Fatal(err)
	}
	ok, err := VerifyKey(sampleKey, hash)
	if err != nil || !ok {
		t.Errorf("VerifyKey() = %v, %v; want true, nil", ok, err)
	}
}

func TestVerifyKey_MalformedHash(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		hash    string
		wantErr error
	}{
		{"empty", "", ErrInvalidHash},
		{"not phc", "not-a-hash", ErrInvalidHash},
		{"other algorithm", "$argon2i$v=19$m=64,t=1,p=1$c2FsdA$aGFzaA", ErrInvalidHash},
		{"missing fields", "$argon2id$v=19$m=64,t=1,p=1", ErrInvalidHash},
		{"bad version field", "$argon2id$version=19$m=64,t=1,p=1$c2FsdA$aGFzaA", ErrInvalidHash},
		{"old version", "$argon2id$v=16$m=64,t=1,p=1$c2FsdA$aGFzaA", ErrIncompatibleVersion},
		{"unknown param", "$argon2id$v=19$m=64,t=1,x=1$c2FsdA$aGFzaA", ErrInvalidHash},
		{"zero memory", "$argon2id$v=19$m=0,t=1,p=1$c2FsdA$aGFzaA", ErrInvalidHash},
		{"missing parallelism", "$argon2id$v=19$m=64,t=1$c2FsdA$aGFzaA", ErrInvalidHash},
		{"parallelism overflow", "$argon2id$v=19$m=64,t=1,p=300$c2FsdA$aGFzaA", ErrInvalidHash},
		{"bad salt", "$argon2id$v=19$m=64,t=1,p=1$!!!$aGFzaA", ErrInvalidHash},
		{"empty hash", "$argon2id$v=19$m=64,t=1,p=1$c2FsdA$", ErrInvalidHash},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ok, err := VerifyKey("key", tt.hash)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("VerifyKey error = %v, want %v", err, tt.wantErr)
			}
			if ok {
				t.Error("malformed hash must not match")
			}
		})
	}
}

func TestCacheKey(t *testing.T) {
	t.Parallel()

	a := CacheKey(sampleKey)
	if a != CacheKey(sampleKey) {
		t.Error("CacheKey is not deterministic")
	}
	if len(a) != 32 {
		t.Errorf("CacheKey length = %d, want 32", len(a))
	}
	if strings.Contains(a, "abc123") {
		t.Error("CacheKey leaks the key prefix")
	}
	if a == CacheKey("utr_abc123_00000000000000000000000000000000") {
		t.Error("different keys share a cache key")
	}
}
