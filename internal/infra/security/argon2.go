package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/creativedesigns/retail-iam/internal/core/domain"
)

// Argon2Params tune the Argon2id key derivation.
type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Params are safe production values (64 MB, 3 passes).
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 4,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Hasher derives and verifies Argon2id credential hashes. The stored encoding
// is "salt:hash" with both components base64-encoded.
type Hasher struct {
	params Argon2Params
}

// NewHasher constructs a hasher, falling back to defaults for zero params.
func NewHasher(params Argon2Params) *Hasher {
	defaults := DefaultArgon2Params()
	if params.Memory == 0 {
		params.Memory = defaults.Memory
	}
	if params.Iterations == 0 {
		params.Iterations = defaults.Iterations
	}
	if params.Parallelism == 0 {
		params.Parallelism = defaults.Parallelism
	}
	if params.SaltLength == 0 {
		params.SaltLength = defaults.SaltLength
	}
	if params.KeyLength == 0 {
		params.KeyLength = defaults.KeyLength
	}
	return &Hasher{params: params}
}

// Hash generates an Argon2id hash for the provided secret.
func (h *Hasher) Hash(secret string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(secret), salt, h.params.Iterations, h.params.Memory, h.params.Parallelism, h.params.KeyLength)
	encodedSalt := base64.StdEncoding.EncodeToString(salt)
	encodedHash := base64.StdEncoding.EncodeToString(hash)

	return fmt.Sprintf("%s:%s", encodedSalt, encodedHash), nil
}

// Compare verifies the candidate secret against a stored hash in constant
// time.
func (h *Hasher) Compare(candidate, stored string) (bool, error) {
	if candidate == "" || stored == "" {
		return false, nil
	}

	parts := strings.Split(stored, ":")
	if len(parts) != 2 {
		return false, fmt.Errorf("invalid credential hash format")
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false, fmt.Errorf("decode salt: %w", err)
	}

	storedHash, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false, fmt.Errorf("decode hash: %w", err)
	}

	computed := argon2.IDKey([]byte(candidate), salt, h.params.Iterations, h.params.Memory, h.params.Parallelism, uint32(len(storedHash)))

	return subtle.ConstantTimeCompare(computed, storedHash) == 1, nil
}

var (
	_ domain.SecretHasher       = (*Hasher)(nil)
	_ domain.CredentialComparer = (*Hasher)(nil)
)
