package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists vault documents in a single SQLite table.
// Each document is written in one statement, so a write either lands
// completely or not at all; a crash can never leave a half-written
// collection behind.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string

	mu sync.RWMutex
}

// NewSQLiteStore opens (or creates) the document store at dbPath.
// Pass ":memory:" for an ephemeral store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",   // atomic single-statement writes survive crashes
		"PRAGMA synchronous=NORMAL", // balance between safety and speed
		"PRAGMA busy_timeout=5000",  // 5 second timeout for locks
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	store := &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Vault documents. The wallet collection, the active-wallet pointer and
	-- the auto-lock setting each live under their own key as one document.
	CREATE TABLE IF NOT EXISTS documents (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Get retrieves the document stored under key.
func (s *SQLiteStore) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value []byte
	err := s.db.QueryRow(`SELECT value FROM documents WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return value, nil
}

// Put stores value under key, replacing any previous document.
func (s *SQLiteStore) Put(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO documents (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to put document: %w", err)
	}
	return nil
}

// Delete removes the document under key.
func (s *SQLiteStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM documents WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)

// Snapshot is a point-in-time copy of every document in the store, with an
// HMAC over the encoded payload so a restore can detect tampering or
// corruption before applying anything.
type Snapshot struct {
	Version   int    `cbor:"version"`
	CreatedAt int64  `cbor:"created_at"`
	Data      []byte `cbor:"data"`
	HMAC      []byte `cbor:"hmac"`
}

const snapshotVersion = 1

type snapshotDocument struct {
	Key       string `cbor:"key"`
	Value     []byte `cbor:"value"`
	UpdatedAt int64  `cbor:"updated_at"`
}

// CreateSnapshot exports all documents and authenticates the payload with
// HMAC-SHA256 under key.
func (s *SQLiteStore) CreateSnapshot(key []byte) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT key, value, updated_at FROM documents ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to export documents: %w", err)
	}
	defer rows.Close()

	var docs []snapshotDocument
	for rows.Next() {
		var doc snapshotDocument
		if err := rows.Scan(&doc.Key, &doc.Value, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}

	data, err := cbor.Marshal(docs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	h := hmac.New(sha256.New, key)
	h.Write(data)

	return &Snapshot{
		Version:   snapshotVersion,
		CreatedAt: time.Now().Unix(),
		Data:      data,
		HMAC:      h.Sum(nil),
	}, nil
}

// RestoreSnapshot verifies the snapshot's HMAC under key and replaces the
// store's contents with the snapshot's documents. On any verification or
// decode failure nothing is applied.
func (s *SQLiteStore) RestoreSnapshot(snapshot *Snapshot, key []byte) error {
	if snapshot.Version != snapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d", snapshot.Version)
	}

	h := hmac.New(sha256.New, key)
	h.Write(snapshot.Data)
	if !hmac.Equal(h.Sum(nil), snapshot.HMAC) {
		return fmt.Errorf("snapshot HMAC verification failed")
	}

	var docs []snapshotDocument
	if err := cbor.Unmarshal(snapshot.Data, &docs); err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin restore: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM documents`); err != nil {
		return fmt.Errorf("failed to clear documents: %w", err)
	}

	for _, doc := range docs {
		_, err := tx.Exec(`
			INSERT INTO documents (key, value, updated_at)
			VALUES (?, ?, ?)
		`, doc.Key, doc.Value, doc.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to restore document %q: %w", doc.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit restore: %w", err)
	}
	return nil
}

// EncodeSnapshot serializes a snapshot for transport or upload.
func EncodeSnapshot(snapshot *Snapshot) ([]byte, error) {
	data, err := cbor.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses a snapshot produced by EncodeSnapshot.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var snapshot Snapshot
	if err := cbor.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snapshot, nil
}
