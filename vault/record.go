package vault

import (
	"fmt"
	"strings"
	"time"
)

// WalletRecord is a named wallet whose seed phrase is stored encrypted.
// The id is the sole external handle and never changes; salt and IV are
// regenerated on every re-encryption, so two records (or two encryptions
// of the same record) never share them.
type WalletRecord struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	EncryptedSeed string    `json:"encryptedSeed"` // base64 AES-GCM ciphertext
	Salt          string    `json:"salt"`          // base64, 16 bytes
	IV            string    `json:"iv"`            // base64, 12 bytes
	CreatedAt     time.Time `json:"createdAt"`
	LastAccess    time.Time `json:"lastAccess"`
}

// Validate checks the record invariants: non-empty id and encrypted fields.
func (r *WalletRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: missing id", ErrWeakInput)
	}
	if r.EncryptedSeed == "" || r.Salt == "" || r.IV == "" {
		return fmt.Errorf("%w: missing encrypted fields", ErrWeakInput)
	}
	return nil
}

// RecordUpdate is a partial update merged into an existing record. Nil
// fields are left untouched. Used for re-encryption on password change and
// for backup import.
type RecordUpdate struct {
	Name          *string
	EncryptedSeed *string
	Salt          *string
	IV            *string
	LastAccess    *time.Time
}

func (u *RecordUpdate) apply(r *WalletRecord) {
	if u.Name != nil {
		r.Name = *u.Name
	}
	if u.EncryptedSeed != nil {
		r.EncryptedSeed = *u.EncryptedSeed
	}
	if u.Salt != nil {
		r.Salt = *u.Salt
	}
	if u.IV != nil {
		r.IV = *u.IV
	}
	if u.LastAccess != nil {
		r.LastAccess = *u.LastAccess
	}
}

// uniqueName suffixes name with " (1)", " (2)", … until it collides with
// no existing record name, case-insensitively.
func uniqueName(records []WalletRecord, name string) string {
	taken := make(map[string]bool, len(records))
	for _, r := range records {
		taken[strings.ToLower(r.Name)] = true
	}

	finalName := name
	for counter := 1; taken[strings.ToLower(finalName)]; counter++ {
		finalName = fmt.Sprintf("%s (%d)", name, counter)
	}
	return finalName
}
