package storage

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteGetPutDelete(t *testing.T) {
	store := newTestSQLiteStore(t)

	if _, err := store.Get("missing"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Expected ErrKeyNotFound, got %v", err)
	}

	if err := store.Put("wallets", []byte("v1")); err != nil {
		t.Fatalf("Failed to put: %v", err)
	}
	got, err := store.Get("wallets")
	if err != nil {
		t.Fatalf("Failed to get: %v", err)
	}
	if !bytes.Equal(got, []byte("v1")) {
		t.Errorf("Expected 'v1', got %q", got)
	}

	if err := store.Put("wallets", []byte("v2")); err != nil {
		t.Fatalf("Failed to overwrite: %v", err)
	}
	got, _ = store.Get("wallets")
	if !bytes.Equal(got, []byte("v2")) {
		t.Errorf("Expected 'v2' after overwrite, got %q", got)
	}

	if err := store.Delete("wallets"); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if _, err := store.Get("wallets"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Expected ErrKeyNotFound after delete, got %v", err)
	}

	// Deleting an absent key is not an error.
	if err := store.Delete("wallets"); err != nil {
		t.Errorf("Deleting an absent key should succeed: %v", err)
	}
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "persist.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if err := store.Put("settings", []byte("15")); err != nil {
		t.Fatalf("Failed to put: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}

	reopened, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get("settings")
	if err != nil {
		t.Fatalf("Failed to get after reopen: %v", err)
	}
	if !bytes.Equal(got, []byte("15")) {
		t.Errorf("Expected '15', got %q", got)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	store := newTestSQLiteStore(t)
	hmacKey := []byte("snapshot-test-key")

	docs := map[string]string{
		"wallets":              `[{"id":"w1"}]`,
		"wdk_active_wallet_id": "w1",
		"wdk_autolock_minutes": "15",
	}
	for k, v := range docs {
		if err := store.Put(k, []byte(v)); err != nil {
			t.Fatalf("Failed to put %q: %v", k, err)
		}
	}

	snapshot, err := store.CreateSnapshot(hmacKey)
	if err != nil {
		t.Fatalf("Failed to create snapshot: %v", err)
	}

	encoded, err := EncodeSnapshot(snapshot)
	if err != nil {
		t.Fatalf("Failed to encode snapshot: %v", err)
	}
	decoded, err := DecodeSnapshot(encoded)
	if err != nil {
		t.Fatalf("Failed to decode snapshot: %v", err)
	}

	// Restore into a fresh store with diverging content.
	target := newTestSQLiteStore(t)
	if err := target.Put("stale", []byte("gone after restore")); err != nil {
		t.Fatalf("Failed to put: %v", err)
	}

	if err := target.RestoreSnapshot(decoded, hmacKey); err != nil {
		t.Fatalf("Failed to restore snapshot: %v", err)
	}

	for k, v := range docs {
		got, err := target.Get(k)
		if err != nil {
			t.Fatalf("Failed to get %q after restore: %v", k, err)
		}
		if !bytes.Equal(got, []byte(v)) {
			t.Errorf("Document %q: expected %q, got %q", k, v, got)
		}
	}
	if _, err := target.Get("stale"); !errors.Is(err, ErrKeyNotFound) {
		t.Error("Restore must replace the store's contents entirely")
	}
}

func TestSnapshotRejectsWrongKey(t *testing.T) {
	store := newTestSQLiteStore(t)
	if err := store.Put("wallets", []byte("data")); err != nil {
		t.Fatalf("Failed to put: %v", err)
	}

	snapshot, err := store.CreateSnapshot([]byte("right key"))
	if err != nil {
		t.Fatalf("Failed to create snapshot: %v", err)
	}

	target := newTestSQLiteStore(t)
	if err := target.Put("keep", []byte("untouched")); err != nil {
		t.Fatalf("Failed to put: %v", err)
	}

	if err := target.RestoreSnapshot(snapshot, []byte("wrong key")); err == nil {
		t.Fatal("Restore with the wrong HMAC key must fail")
	}
	if _, err := target.Get("keep"); err != nil {
		t.Error("A rejected restore must not modify the store")
	}
}

func TestSnapshotRejectsTamperedPayload(t *testing.T) {
	store := newTestSQLiteStore(t)
	if err := store.Put("wallets", []byte("data")); err != nil {
		t.Fatalf("Failed to put: %v", err)
	}

	hmacKey := []byte("key")
	snapshot, err := store.CreateSnapshot(hmacKey)
	if err != nil {
		t.Fatalf("Failed to create snapshot: %v", err)
	}

	snapshot.Data[0] ^= 0xff

	target := newTestSQLiteStore(t)
	if err := target.RestoreSnapshot(snapshot, hmacKey); err == nil {
		t.Fatal("Restore of a tampered snapshot must fail")
	}
}

func TestSnapshotRejectsUnknownVersion(t *testing.T) {
	store := newTestSQLiteStore(t)

	snapshot, err := store.CreateSnapshot([]byte("key"))
	if err != nil {
		t.Fatalf("Failed to create snapshot: %v", err)
	}
	snapshot.Version = 99

	target := newTestSQLiteStore(t)
	if err := target.RestoreSnapshot(snapshot, []byte("key")); err == nil {
		t.Fatal("Restore of an unknown snapshot version must fail")
	}
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	mem := NewMemoryStore()

	original := []byte("original")
	if err := mem.Put("key", original); err != nil {
		t.Fatalf("Failed to put: %v", err)
	}
	original[0] = 'X'

	got, err := mem.Get("key")
	if err != nil {
		t.Fatalf("Failed to get: %v", err)
	}
	if !bytes.Equal(got, []byte("original")) {
		t.Error("Put must copy the value, not alias the caller's slice")
	}

	got[0] = 'Y'
	again, _ := mem.Get("key")
	if !bytes.Equal(again, []byte("original")) {
		t.Error("Get must return a copy, not the stored slice")
	}
}
