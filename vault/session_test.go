package vault

import (
	"errors"
	"testing"
)

const testSeed = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func newTestSession(t *testing.T) (*Session, *RecordStore) {
	t.Helper()
	rs := newTestStore(t)
	return NewSession(rs, testKDF), rs
}

func TestWalletLifecycle(t *testing.T) {
	session, rs := newTestSession(t)

	record, err := session.CreateWallet("Trading", testSeed, "Sup3rSecret!")
	if err != nil {
		t.Fatalf("Failed to create wallet: %v", err)
	}

	records := rs.ListAll()
	if len(records) != 1 {
		t.Fatalf("Expected 1 wallet, got %d", len(records))
	}
	if records[0].Name != "Trading" {
		t.Errorf("Expected name 'Trading', got %q", records[0].Name)
	}

	// Creation leaves the session unlocked with the new wallet active.
	if session.State() != StateUnlocked {
		t.Errorf("Expected unlocked state after creation, got %s", session.State())
	}
	if active, ok := rs.ActiveWalletID(); !ok || active != record.ID {
		t.Error("Created wallet should be the active wallet")
	}

	session.Lock()

	seed, err := session.Unlock(record.ID, "Sup3rSecret!")
	if err != nil {
		t.Fatalf("Failed to unlock: %v", err)
	}
	if seed != testSeed {
		t.Error("Unlock did not return the original seed")
	}

	if _, err := session.Unlock(record.ID, "wrong"); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("Expected ErrWrongPassword, got %v", err)
	}
}

func TestUnlockUnknownWallet(t *testing.T) {
	session, _ := newTestSession(t)

	if _, err := session.Unlock("no-such-id", "password"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestUnlockFailureLeavesStateUntouched(t *testing.T) {
	session, _ := newTestSession(t)

	record, err := session.CreateWallet("Main", testSeed, "Sup3rSecret!")
	if err != nil {
		t.Fatalf("Failed to create wallet: %v", err)
	}
	session.Lock()

	if _, err := session.Unlock(record.ID, "wrong password"); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("Expected ErrWrongPassword, got %v", err)
	}
	if session.State() != StateLocked {
		t.Errorf("Failed unlock must leave the session locked, got %s", session.State())
	}
	if _, ok := session.CachedSeed(); ok {
		t.Error("Failed unlock must not cache a seed")
	}
}

func TestCorruptRecordUnlocksAsWrongPassword(t *testing.T) {
	session, rs := newTestSession(t)

	record, err := session.CreateWallet("Main", testSeed, "Sup3rSecret!")
	if err != nil {
		t.Fatalf("Failed to create wallet: %v", err)
	}
	session.Lock()

	garbage := "not base64!!"
	if err := rs.Update(record.ID, RecordUpdate{EncryptedSeed: &garbage}); err != nil {
		t.Fatalf("Failed to corrupt record: %v", err)
	}

	if _, err := session.Unlock(record.ID, "Sup3rSecret!"); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("A corrupt record must surface as ErrWrongPassword, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	session, rs := newTestSession(t)

	record, err := session.CreateWallet("Main", testSeed, "old password")
	if err != nil {
		t.Fatalf("Failed to create wallet: %v", err)
	}
	before, _ := rs.GetByID(record.ID)

	if err := session.ChangePassword("old password", "new password"); err != nil {
		t.Fatalf("Failed to change password: %v", err)
	}

	after, _ := rs.GetByID(record.ID)
	if after.Salt == before.Salt {
		t.Error("Password change must generate a fresh salt")
	}
	if after.IV == before.IV {
		t.Error("Password change must generate a fresh IV")
	}
	if after.EncryptedSeed == before.EncryptedSeed {
		t.Error("Password change must replace the ciphertext")
	}

	session.Lock()
	if _, err := session.Unlock(record.ID, "old password"); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("Old password must stop working, got %v", err)
	}
	seed, err := session.Unlock(record.ID, "new password")
	if err != nil {
		t.Fatalf("New password must unlock: %v", err)
	}
	if seed != testSeed {
		t.Error("Seed must survive a password change unchanged")
	}
}

func TestChangePasswordWrongOldPassword(t *testing.T) {
	session, rs := newTestSession(t)

	record, err := session.CreateWallet("Main", testSeed, "old password")
	if err != nil {
		t.Fatalf("Failed to create wallet: %v", err)
	}
	before, _ := rs.GetByID(record.ID)

	err = session.ChangePassword("not the password", "new password")
	if !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("Expected ErrWrongPassword, got %v", err)
	}

	after, _ := rs.GetByID(record.ID)
	if after.EncryptedSeed != before.EncryptedSeed || after.Salt != before.Salt || after.IV != before.IV {
		t.Error("Failed password change must leave the record untouched")
	}
}

func TestChangePasswordValidation(t *testing.T) {
	session, _ := newTestSession(t)

	if _, err := session.CreateWallet("Main", testSeed, "old password"); err != nil {
		t.Fatalf("Failed to create wallet: %v", err)
	}

	if err := session.ChangePassword("old password", "short"); !errors.Is(err, ErrWeakInput) {
		t.Errorf("Expected ErrWeakInput for short new password, got %v", err)
	}
	if err := session.ChangePassword("", "new password"); !errors.Is(err, ErrWeakInput) {
		t.Errorf("Expected ErrWeakInput for empty old password, got %v", err)
	}
}

func TestCreateWalletWeakPassword(t *testing.T) {
	session, rs := newTestSession(t)

	if _, err := session.CreateWallet("Main", testSeed, "short"); !errors.Is(err, ErrWeakInput) {
		t.Errorf("Expected ErrWeakInput, got %v", err)
	}
	if rs.HasAny() {
		t.Error("A rejected creation must not persist a record")
	}
}

func TestLockClearsPlaintext(t *testing.T) {
	session, rs := newTestSession(t)

	record, err := session.CreateWallet("Main", testSeed, "Sup3rSecret!")
	if err != nil {
		t.Fatalf("Failed to create wallet: %v", err)
	}

	if _, ok := session.CachedSeed(); !ok {
		t.Fatal("Expected a cached seed while unlocked")
	}

	session.Lock()
	session.Lock() // idempotent

	if session.State() != StateLocked {
		t.Errorf("Expected locked state, got %s", session.State())
	}
	if seed, ok := session.CachedSeed(); ok || seed != "" {
		t.Error("Lock must clear the cached seed")
	}
	if _, err := rs.GetByID(record.ID); err != nil {
		t.Error("Locking must not touch the stored record")
	}
}

func TestLogoutForgetsActiveWallet(t *testing.T) {
	session, rs := newTestSession(t)

	if _, err := session.CreateWallet("Main", testSeed, "Sup3rSecret!"); err != nil {
		t.Fatalf("Failed to create wallet: %v", err)
	}

	if err := session.Logout(); err != nil {
		t.Fatalf("Failed to log out: %v", err)
	}

	if session.State() != StateLoggedOut {
		t.Errorf("Expected logged_out state, got %s", session.State())
	}
	if _, ok := session.CachedSeed(); ok {
		t.Error("Logout must clear the cached seed")
	}
	if _, ok := rs.ActiveWalletID(); ok {
		t.Error("Logout must clear the active-wallet pointer")
	}
}
