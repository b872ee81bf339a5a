package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/wdklabs/walletvault/vault/storage"
)

// Persisted document keys. Kept byte-compatible with the browser wallet's
// localStorage layout so an exported store can be read back by either.
const (
	walletsKey      = "wdk_wallets"
	activeWalletKey = "wdk_active_wallet_id"
	autoLockKey     = "wdk_autolock_minutes"

	legacySeedKey = "wdk_wallet_encrypted_seed"
	legacyMetaKey = "wdk_wallet_metadata"
)

// DefaultAutoLockMinutes is the auto-lock idle timeout applied when the
// user has never set one.
const DefaultAutoLockMinutes = 15

// RecordStore is the persisted collection of wallet records plus the
// active-wallet pointer and the auto-lock setting. All mutations go
// through a single load-modify-save path under one mutex, so concurrent
// callers can never interleave a read-modify-write.
type RecordStore struct {
	store storage.Store
	mu    sync.Mutex
}

// NewRecordStore creates a record store over the given document store and
// migrates the legacy single-wallet slot if one is present (see legacy.go).
func NewRecordStore(store storage.Store) (*RecordStore, error) {
	rs := &RecordStore{store: store}
	if err := rs.migrateLegacy(); err != nil {
		return nil, fmt.Errorf("legacy migration: %w", err)
	}
	return rs, nil
}

// loadAll reads the wallet collection. Missing or unreadable storage
// degrades to an empty collection rather than an error: a corrupt store
// must present as "no wallets", never as a crash.
func (rs *RecordStore) loadAll() []WalletRecord {
	data, err := rs.store.Get(walletsKey)
	if err != nil {
		if !errors.Is(err, storage.ErrKeyNotFound) {
			log.Warn().Err(err).Msg("Failed to read wallet collection")
		}
		return nil
	}

	var records []WalletRecord
	if err := json.Unmarshal(data, &records); err != nil {
		log.Warn().Err(err).Msg("Wallet collection is corrupt, treating as empty")
		return nil
	}
	return records
}

// saveAll writes the whole collection as one document. This is the single
// write path; the document store makes the write atomic.
func (rs *RecordStore) saveAll(records []WalletRecord) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("%w: failed to encode wallet collection: %v", ErrStorageFailure, err)
	}
	if err := rs.store.Put(walletsKey, data); err != nil {
		return fmt.Errorf("%w: failed to persist wallet collection: %v", ErrStorageFailure, err)
	}
	return nil
}

// ListAll returns all wallet records. Never fails; an unreadable store
// yields an empty slice.
func (rs *RecordStore) ListAll() []WalletRecord {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.loadAll()
}

// GetByID returns the record with the given id, or ErrNotFound.
func (rs *RecordStore) GetByID(id string) (*WalletRecord, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.findLocked(id)
}

func (rs *RecordStore) findLocked(id string) (*WalletRecord, error) {
	for _, r := range rs.loadAll() {
		if r.ID == id {
			record := r
			return &record, nil
		}
	}
	return nil, ErrNotFound
}

// Create appends a new wallet record with a fresh id, de-duplicating the
// display name against existing records, and persists the collection.
func (rs *RecordStore) Create(name, encryptedSeed, salt, iv string) (*WalletRecord, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: wallet name is required", ErrWeakInput)
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	records := rs.loadAll()
	now := time.Now().UTC()

	record := WalletRecord{
		ID:            uuid.NewString(),
		Name:          uniqueName(records, name),
		EncryptedSeed: encryptedSeed,
		Salt:          salt,
		IV:            iv,
		CreatedAt:     now,
		LastAccess:    now,
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}

	records = append(records, record)
	if err := rs.saveAll(records); err != nil {
		return nil, err
	}

	log.Info().Str("wallet_id", record.ID).Str("name", record.Name).Msg("Wallet created")
	return &record, nil
}

// Update merges the partial update into the record with the given id and
// persists the collection. Returns ErrNotFound if the id does not exist.
func (rs *RecordStore) Update(id string, update RecordUpdate) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	records := rs.loadAll()
	for i := range records {
		if records[i].ID == id {
			update.apply(&records[i])
			return rs.saveAll(records)
		}
	}
	return ErrNotFound
}

// Delete removes the record with the given id. If it was the active
// wallet, the active pointer is cleared as well.
func (rs *RecordStore) Delete(id string) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	records := rs.loadAll()
	index := -1
	for i := range records {
		if records[i].ID == id {
			index = i
			break
		}
	}
	if index == -1 {
		return ErrNotFound
	}

	name := records[index].Name
	records = append(records[:index], records[index+1:]...)
	if err := rs.saveAll(records); err != nil {
		return err
	}

	if active, ok := rs.activeWalletLocked(); ok && active == id {
		if err := rs.store.Delete(activeWalletKey); err != nil {
			return fmt.Errorf("%w: failed to clear active wallet: %v", ErrStorageFailure, err)
		}
	}

	log.Info().Str("wallet_id", id).Str("name", name).Msg("Wallet deleted")
	return nil
}

// Restore applies backup-imported fields: an existing id gets its
// encrypted fields overwritten, an unknown id becomes a new record with
// the imported id preserved and the name de-duplicated.
func (rs *RecordStore) Restore(record WalletRecord) (*WalletRecord, error) {
	if err := record.Validate(); err != nil {
		return nil, err
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	records := rs.loadAll()
	for i := range records {
		if records[i].ID == record.ID {
			records[i].EncryptedSeed = record.EncryptedSeed
			records[i].Salt = record.Salt
			records[i].IV = record.IV
			if err := rs.saveAll(records); err != nil {
				return nil, err
			}
			restored := records[i]
			log.Info().Str("wallet_id", restored.ID).Msg("Wallet restored from backup")
			return &restored, nil
		}
	}

	if record.Name == "" {
		record.Name = "Wallet"
	}
	record.Name = uniqueName(records, record.Name)
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	record.LastAccess = time.Now().UTC()

	records = append(records, record)
	if err := rs.saveAll(records); err != nil {
		return nil, err
	}
	log.Info().Str("wallet_id", record.ID).Str("name", record.Name).Msg("Wallet imported from backup")
	return &record, nil
}

// Count returns the number of stored wallet records.
func (rs *RecordStore) Count() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.loadAll())
}

// HasAny reports whether any wallet record exists. The UI routes to the
// login screen or the onboarding wizard based on this.
func (rs *RecordStore) HasAny() bool {
	return rs.Count() > 0
}

// ActiveWalletID returns the persisted active-wallet pointer, if set.
// Reading it never requires decrypting anything.
func (rs *RecordStore) ActiveWalletID() (string, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.activeWalletLocked()
}

func (rs *RecordStore) activeWalletLocked() (string, bool) {
	data, err := rs.store.Get(activeWalletKey)
	if err != nil || len(data) == 0 {
		return "", false
	}
	return string(data), true
}

// SetActiveWallet marks the record as active and bumps its LastAccess.
func (rs *RecordStore) SetActiveWallet(id string) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	records := rs.loadAll()
	found := false
	now := time.Now().UTC()
	for i := range records {
		if records[i].ID == id {
			records[i].LastAccess = now
			found = true
			break
		}
	}
	if !found {
		return ErrNotFound
	}
	if err := rs.saveAll(records); err != nil {
		return err
	}
	if err := rs.store.Put(activeWalletKey, []byte(id)); err != nil {
		return fmt.Errorf("%w: failed to persist active wallet: %v", ErrStorageFailure, err)
	}
	return nil
}

// ClearActiveWallet forgets which wallet was active.
func (rs *RecordStore) ClearActiveWallet() error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if err := rs.store.Delete(activeWalletKey); err != nil {
		return fmt.Errorf("%w: failed to clear active wallet: %v", ErrStorageFailure, err)
	}
	return nil
}

// AutoLockMinutes returns the persisted auto-lock timeout, defaulting to
// DefaultAutoLockMinutes. 0 means auto-lock is disabled.
func (rs *RecordStore) AutoLockMinutes() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	data, err := rs.store.Get(autoLockKey)
	if err != nil {
		return DefaultAutoLockMinutes
	}
	minutes, err := strconv.Atoi(string(data))
	if err != nil || minutes < 0 {
		return DefaultAutoLockMinutes
	}
	return minutes
}

// SetAutoLockMinutes persists the auto-lock timeout.
func (rs *RecordStore) SetAutoLockMinutes(minutes int) error {
	if minutes < 0 {
		return fmt.Errorf("%w: auto-lock minutes must be >= 0", ErrWeakInput)
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	if err := rs.store.Put(autoLockKey, []byte(strconv.Itoa(minutes))); err != nil {
		return fmt.Errorf("%w: failed to persist auto-lock setting: %v", ErrStorageFailure, err)
	}
	return nil
}
