package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
)

// IVLen is the AES-GCM nonce length. IV reuse under the same key is
// forbidden; Encrypt generates a fresh one when the caller passes nil.
const IVLen = 12

// Encrypt seals plaintext under key with AES-256-GCM. If iv is nil a fresh
// random IV is generated. Returns the ciphertext (with GCM tag appended)
// and the IV that was used. Pure transform, no side effects.
func Encrypt(plaintext, key, iv []byte) (ciphertext, usedIV []byte, err error) {
	if len(key) != KeyLen {
		return nil, nil, fmt.Errorf("key must be %d bytes, got %d", KeyLen, len(key))
	}

	if iv == nil {
		iv = make([]byte, IVLen)
		if _, err := rand.Read(iv); err != nil {
			return nil, nil, fmt.Errorf("failed to generate IV: %w", err)
		}
	}
	if len(iv) != IVLen {
		return nil, nil, fmt.Errorf("IV must be %d bytes, got %d", IVLen, len(iv))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return aead.Seal(nil, iv, plaintext, nil), iv, nil
}

// Decrypt opens ciphertext under key and iv. Any authentication failure
// (wrong key, wrong IV, tampered ciphertext) returns ErrWrongPassword.
// Collapsing those cases is deliberate: the caller presents a single
// "wrong password" prompt and learns nothing else.
func Decrypt(ciphertext, key, iv []byte) ([]byte, error) {
	if len(key) != KeyLen {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeyLen, len(key))
	}
	if len(iv) != IVLen {
		return nil, ErrWrongPassword
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	plaintext, err := aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, ErrWrongPassword
	}
	return plaintext, nil
}
