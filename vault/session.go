package vault

import (
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// MinPasswordLen is the minimum accepted password length.
const MinPasswordLen = 8

// SessionState is the unlock state of the vault session.
type SessionState int

const (
	// StateLoggedOut means no wallet is selected; the user picks one and
	// unlocks it to proceed.
	StateLoggedOut SessionState = iota
	// StateLocked means a wallet is selected but its seed is not in memory.
	StateLocked
	// StateUnlocked means the active wallet's seed is cached in memory.
	StateUnlocked
)

func (s SessionState) String() string {
	switch s {
	case StateLocked:
		return "locked"
	case StateUnlocked:
		return "unlocked"
	default:
		return "logged_out"
	}
}

// Session owns the volatile unlock state: which wallet is active and the
// decrypted seed, held only in process memory. It is the sole writer of
// the cached seed, and CachedSeed is the sole read path; no other
// component keeps a plaintext copy beyond its immediate operation.
//
// Key derivation and decryption run synchronously on the calling
// goroutine; the session only ever observes LoggedOut, Locked or Unlocked.
type Session struct {
	store *RecordStore
	kdf   KDFParams

	mu         sync.Mutex
	state      SessionState
	cachedSeed string
}

// NewSession creates a logged-out session over the record store.
func NewSession(store *RecordStore, kdf KDFParams) *Session {
	return &Session{
		store: store,
		kdf:   kdf,
		state: StateLoggedOut,
	}
}

// State returns the current session state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CachedSeed returns the decrypted seed of the active wallet, or false
// whenever the session is not unlocked. This is the single enforcement
// point of the no-plaintext-while-locked invariant.
func (s *Session) CachedSeed() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUnlocked {
		return "", false
	}
	return s.cachedSeed, true
}

// CreateWallet encrypts seed under password and stores it as a new wallet
// record, which becomes the active, unlocked wallet. Password strength is
// checked before any key derivation work.
func (s *Session) CreateWallet(name, seed, password string) (*WalletRecord, error) {
	if len(password) < MinPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrWeakInput, MinPasswordLen)
	}
	if seed == "" {
		return nil, fmt.Errorf("%w: seed is required", ErrWeakInput)
	}

	encryptedSeed, salt, iv, err := s.encryptSeed(seed, password)
	if err != nil {
		return nil, err
	}

	record, err := s.store.Create(name, encryptedSeed, salt, iv)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetActiveWallet(record.ID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cachedSeed = seed
	s.state = StateUnlocked
	s.mu.Unlock()

	return record, nil
}

// Unlock decrypts the record's seed with the given password. On success
// the session becomes Unlocked, the seed is cached, the record becomes the
// active wallet and its LastAccess is bumped. On failure the session state
// is left untouched and ErrWrongPassword (or ErrNotFound) is returned; a
// structurally corrupt record surfaces as ErrWrongPassword as well, so the
// caller learns nothing beyond "that didn't work".
func (s *Session) Unlock(id, password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("%w: password is required", ErrWeakInput)
	}

	record, err := s.store.GetByID(id)
	if err != nil {
		return "", err
	}

	seed, err := s.decryptRecord(record, password)
	if err != nil {
		return "", err
	}

	if err := s.store.SetActiveWallet(record.ID); err != nil {
		return "", err
	}

	s.mu.Lock()
	s.cachedSeed = seed
	s.state = StateUnlocked
	s.mu.Unlock()

	log.Info().Str("wallet_id", record.ID).Msg("Wallet unlocked")
	return seed, nil
}

// ChangePassword re-encrypts the active wallet's seed under newPassword.
// The old password must decrypt the record first; on success the record's
// ciphertext, salt and IV are fully replaced with fresh values in a single
// update; the old ones are never kept alongside.
func (s *Session) ChangePassword(oldPassword, newPassword string) error {
	if len(newPassword) < MinPasswordLen {
		return fmt.Errorf("%w: new password must be at least %d characters", ErrWeakInput, MinPasswordLen)
	}
	if oldPassword == "" {
		return fmt.Errorf("%w: current password is required", ErrWeakInput)
	}

	id, ok := s.store.ActiveWalletID()
	if !ok {
		return ErrNotFound
	}
	record, err := s.store.GetByID(id)
	if err != nil {
		return err
	}

	seed, err := s.decryptRecord(record, oldPassword)
	if err != nil {
		return err
	}

	encryptedSeed, salt, iv, err := s.encryptSeed(seed, newPassword)
	if err != nil {
		return err
	}

	err = s.store.Update(id, RecordUpdate{
		EncryptedSeed: &encryptedSeed,
		Salt:          &salt,
		IV:            &iv,
	})
	if err != nil {
		return err
	}

	// The seed itself did not change; an unlocked session stays unlocked.
	log.Info().Str("wallet_id", id).Msg("Wallet password changed")
	return nil
}

// Lock clears the cached seed and puts the session in the Locked state.
// Idempotent; no stale plaintext survives the transition.
func (s *Session) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cachedSeed = ""
	if s.state != StateLocked {
		s.state = StateLocked
		log.Info().Msg("Wallet locked")
	}
}

// Logout clears the cached seed and additionally forgets which wallet was
// active, forcing re-selection on the next login.
func (s *Session) Logout() error {
	s.mu.Lock()
	s.cachedSeed = ""
	s.state = StateLoggedOut
	s.mu.Unlock()

	if err := s.store.ClearActiveWallet(); err != nil {
		return err
	}
	log.Info().Msg("Logged out")
	return nil
}

// encryptSeed derives a key from password under a fresh salt and seals the
// seed with a fresh IV. Returns base64 ciphertext, salt and IV.
func (s *Session) encryptSeed(seed, password string) (encryptedSeed, salt, iv string, err error) {
	saltBytes, err := GenerateSalt()
	if err != nil {
		return "", "", "", err
	}
	key, err := DeriveKey(password, saltBytes, s.kdf)
	if err != nil {
		return "", "", "", err
	}
	ciphertext, ivBytes, err := Encrypt([]byte(seed), key, nil)
	if err != nil {
		return "", "", "", err
	}

	return base64.StdEncoding.EncodeToString(ciphertext),
		base64.StdEncoding.EncodeToString(saltBytes),
		base64.StdEncoding.EncodeToString(ivBytes),
		nil
}

// decryptRecord decodes the record's encrypted fields and opens them with
// the key derived from password.
func (s *Session) decryptRecord(record *WalletRecord, password string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(record.EncryptedSeed)
	if err != nil {
		return "", ErrWrongPassword
	}
	salt, err := base64.StdEncoding.DecodeString(record.Salt)
	if err != nil {
		return "", ErrWrongPassword
	}
	iv, err := base64.StdEncoding.DecodeString(record.IV)
	if err != nil {
		return "", ErrWrongPassword
	}
	if len(salt) != SaltLen {
		// A truncated salt is record corruption; present it as a failed
		// decrypt like any other.
		return "", ErrWrongPassword
	}

	key, err := DeriveKey(password, salt, s.kdf)
	if err != nil {
		return "", err
	}

	seed, err := Decrypt(ciphertext, key, iv)
	if err != nil {
		return "", err
	}
	return string(seed), nil
}
