package domain

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for admin API key hashes.
const (
	Argon2Memory      uint32 = 16384 // KiB
	Argon2Time        uint32 = 2
	Argon2Parallelism uint8  = 2
	Argon2KeyLen      uint32 = 32
	Argon2SaltLen            = 16
)

const apiKeyHashPrefix = "$argon2id$v=19$m=16384,t=2,p=2$"

// ErrInvalidAPIKeyHash reports a configured key that is not an argon2id hash
// in the format HashAPIKey produces.
var ErrInvalidAPIKeyHash = NewDomainError("AS-ARG-4001", "invalid API key hash")

// HashAPIKey returns the argon2id hash of secret in the form
// $argon2id$v=19$m=16384,t=2,p=2$<salt>$<hash>.
func HashAPIKey(secret string) (string, error) {
	salt := make([]byte, Argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	sum := argon2.IDKey([]byte(secret), salt, Argon2Time, Argon2Memory, Argon2Parallelism, Argon2KeyLen)
	return apiKeyHashPrefix +
		base64.RawStdEncoding.EncodeToString(salt) + "$" +
		base64.RawStdEncoding.EncodeToString(sum), nil
}

// CheckAPIKeyHash validates the format of a hash produced by HashAPIKey.
func CheckAPIKeyHash(hash string) error {
	_, _, err := parseAPIKeyHash(hash)
	return err
}

// VerifyAPIKey reports whether secret matches hash. The comparison takes
// constant time in the length of the hash.
func VerifyAPIKey(secret, hash string) bool {
	salt, want, err := parseAPIKeyHash(hash)
	if err != nil {
		return false
	}
	got := argon2.IDKey([]byte(secret), salt, Argon2Time, Argon2Memory, Argon2Parallelism, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}

func parseAPIKeyHash(hash string) (salt, sum []byte, err error) {
	rest, ok := strings.CutPrefix(hash, apiKeyHashPrefix)
	if !ok {
		return nil, nil, ErrInvalidAPIKeyHash.WithDetails("want prefix " + apiKeyHashPrefix)
	}
	saltB64, sumB64, ok := strings.Cut(rest, "$")
	if !ok {
		return nil, nil, ErrInvalidAPIKeyHash.WithDetails("missing hash")
	}
	if salt, err = base64.RawStdEncoding.DecodeString(saltB64); err != nil || len(salt) == 0 {
		return nil, nil, ErrInvalidAPIKeyHash.WithDetails("bad salt")
	}
	if sum, err = base64.RawStdEncoding.DecodeString(sumB64); err != nil || len(sum) == 0 {
		return nil, nil, ErrInvalidAPIKeyHash.WithDetails("bad hash")
	}
	return salt, sum, nil
}
