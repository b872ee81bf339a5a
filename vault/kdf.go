package vault

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2 parameters (matching the browser wallet's WebCrypto settings).
// The iteration count is the work factor against offline brute force;
// 100k is the OWASP floor for PBKDF2-SHA256. Keep it configurable, never
// swap in a fast general-purpose hash.
const (
	DefaultKDFIterations = 100_000
	SaltLen              = 16
	KeyLen               = 32
)

// KDFParams controls the key-derivation work factor.
type KDFParams struct {
	Iterations int
}

// DefaultKDFParams returns the production work factor.
func DefaultKDFParams() KDFParams {
	return KDFParams{Iterations: DefaultKDFIterations}
}

// DeriveKey derives a 32-byte symmetric key from a password and a 16-byte
// salt using PBKDF2-SHA256. Deterministic for a fixed (password, salt)
// pair; different salts yield different keys for the same password.
// It fails only on malformed input; a wrong password still derives a key,
// and wrongness is detected later by the cipher's integrity check.
func DeriveKey(password string, salt []byte, params KDFParams) ([]byte, error) {
	if password == "" {
		return nil, fmt.Errorf("%w: empty password", ErrWeakInput)
	}
	if len(salt) != SaltLen {
		return nil, fmt.Errorf("%w: salt must be %d bytes, got %d", ErrWeakInput, SaltLen, len(salt))
	}
	iterations := params.Iterations
	if iterations <= 0 {
		iterations = DefaultKDFIterations
	}
	return pbkdf2.Key([]byte(password), salt, iterations, KeyLen, sha256.New), nil
}

// GenerateSalt generates a fresh random 16-byte salt. A salt is never
// reused across records or across re-encryption of the same record.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}
