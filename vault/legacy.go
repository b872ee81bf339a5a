package vault

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/wdklabs/walletvault/vault/storage"
)

// legacySlot is the pre-multi-wallet single-seed slot. Older installs
// stored exactly one encrypted seed here with its metadata beside it.
type legacySlot struct {
	EncryptedData string `json:"encryptedData"`
	Salt          string `json:"salt"`
	IV            string `json:"iv"`
}

type legacyMetadata struct {
	Timestamp        int64  `json:"timestamp"` // epoch-ms
	Version          string `json:"version"`
	HasEncryptedSeed bool   `json:"hasEncryptedSeed"`
}

// migrateLegacy turns a populated legacy single-seed slot into the first
// multi-wallet record. The legacy slot is read-only migration input: it is
// consulted only when no wallet collection has ever been written, and it
// is never written or deleted, so an older install reading the same store
// keeps working.
func (rs *RecordStore) migrateLegacy() error {
	if _, err := rs.store.Get(walletsKey); !errors.Is(err, storage.ErrKeyNotFound) {
		// A collection exists (possibly empty); migration ran before or
		// was never needed.
		return nil
	}

	metaData, err := rs.store.Get(legacyMetaKey)
	if err != nil {
		return nil // no legacy install
	}
	var meta legacyMetadata
	if err := json.Unmarshal(metaData, &meta); err != nil || !meta.HasEncryptedSeed {
		return nil
	}

	slotData, err := rs.store.Get(legacySeedKey)
	if err != nil {
		return nil
	}
	var slot legacySlot
	if err := json.Unmarshal(slotData, &slot); err != nil {
		log.Warn().Err(err).Msg("Legacy seed slot is unreadable, skipping migration")
		return nil
	}
	if slot.EncryptedData == "" || slot.Salt == "" || slot.IV == "" {
		return nil
	}

	createdAt := time.Now().UTC()
	if meta.Timestamp > 0 {
		createdAt = time.UnixMilli(meta.Timestamp).UTC()
	}

	record := WalletRecord{
		ID:            uuid.NewString(),
		Name:          "Wallet",
		EncryptedSeed: slot.EncryptedData,
		Salt:          slot.Salt,
		IV:            slot.IV,
		CreatedAt:     createdAt,
		LastAccess:    createdAt,
	}

	if err := rs.saveAll([]WalletRecord{record}); err != nil {
		return err
	}

	log.Info().Str("wallet_id", record.ID).Msg("Migrated legacy seed slot to wallet record")
	return nil
}
