package vault

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Backup document tags. A document whose type tag is neither of these is
// rejected before any other field is looked at.
const (
	BackupVersion        = "1.0"
	BackupTypeWallet     = "wdk-wallet-backup"
	BackupTypeLegacySeed = "wdk-encrypted-seed"
)

// backupFile is the portable .wdk document. The multi-wallet shape nests
// the record under "wallet"; the legacy single-seed shape carries the
// encrypted fields flat under "encrypted". Import accepts both.
type backupFile struct {
	Version   string            `json:"version,omitempty"`
	Type      string            `json:"type"`
	Exported  int64             `json:"exported"` // epoch-ms
	Original  int64             `json:"original,omitempty"`
	Wallet    *backupWallet     `json:"wallet,omitempty"`
	Encrypted *backupLegacySlot `json:"encrypted,omitempty"`
}

type backupWallet struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	EncryptedSeed string    `json:"encryptedSeed"`
	Salt          string    `json:"salt"`
	IV            string    `json:"iv"`
	CreatedAt     time.Time `json:"createdAt"`
}

type backupLegacySlot struct {
	EncryptedData string `json:"encryptedData"`
	Salt          string `json:"salt"`
	IV            string `json:"iv"`
}

// ExportRecord serializes a wallet record as a portable backup document.
// The seed stays encrypted exactly as stored; no password is required and
// none is embedded, so the original password is needed again after import.
func ExportRecord(record *WalletRecord) ([]byte, error) {
	if err := record.Validate(); err != nil {
		return nil, err
	}

	doc := backupFile{
		Version:  BackupVersion,
		Type:     BackupTypeWallet,
		Exported: time.Now().UnixMilli(),
		Wallet: &backupWallet{
			ID:            record.ID,
			Name:          record.Name,
			EncryptedSeed: record.EncryptedSeed,
			Salt:          record.Salt,
			IV:            record.IV,
			CreatedAt:     record.CreatedAt,
		},
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode backup: %w", err)
	}
	return data, nil
}

// ImportBackup validates a backup document and returns the record-shaped
// fields it carries. Nothing is persisted here: the caller hands the
// result to RecordStore.Restore. Any format or version mismatch returns
// ErrInvalidBackupFormat, deliberately distinguishable from
// ErrWrongPassword, so the UI can say "this file isn't a wallet backup".
func ImportBackup(blob []byte) (*WalletRecord, error) {
	var doc backupFile
	if err := json.Unmarshal(blob, &doc); err != nil {
		return nil, fmt.Errorf("%w: not a backup document", ErrInvalidBackupFormat)
	}

	if doc.Version != "" && doc.Version != BackupVersion {
		return nil, fmt.Errorf("%w: unsupported version %q", ErrInvalidBackupFormat, doc.Version)
	}

	switch doc.Type {
	case BackupTypeWallet:
		return importWalletBackup(&doc)
	case BackupTypeLegacySeed:
		return importLegacyBackup(&doc)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidBackupFormat, doc.Type)
	}
}

func importWalletBackup(doc *backupFile) (*WalletRecord, error) {
	w := doc.Wallet
	if w == nil || w.ID == "" || w.EncryptedSeed == "" || w.Salt == "" || w.IV == "" {
		return nil, fmt.Errorf("%w: missing wallet fields", ErrInvalidBackupFormat)
	}

	return &WalletRecord{
		ID:            w.ID,
		Name:          w.Name,
		EncryptedSeed: w.EncryptedSeed,
		Salt:          w.Salt,
		IV:            w.IV,
		CreatedAt:     w.CreatedAt,
	}, nil
}

func importLegacyBackup(doc *backupFile) (*WalletRecord, error) {
	e := doc.Encrypted
	if e == nil || e.EncryptedData == "" || e.Salt == "" || e.IV == "" {
		return nil, fmt.Errorf("%w: missing encrypted fields", ErrInvalidBackupFormat)
	}

	createdAt := time.Time{}
	if doc.Original > 0 {
		createdAt = time.UnixMilli(doc.Original).UTC()
	}

	// Legacy documents predate record ids; the import becomes a brand-new
	// record.
	return &WalletRecord{
		ID:            uuid.NewString(),
		Name:          "Wallet",
		EncryptedSeed: e.EncryptedData,
		Salt:          e.Salt,
		IV:            e.IV,
		CreatedAt:     createdAt,
	}, nil
}
