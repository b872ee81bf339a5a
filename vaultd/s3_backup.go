package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/wdklabs/walletvault/vault/storage"
)

// SnapshotManager creates HMAC-authenticated snapshots of the document
// store and optionally uploads them to S3. Snapshots hold the same
// ciphertext the store does; no wallet password is involved.
type SnapshotManager struct {
	store    *storage.SQLiteStore
	hmacKey  []byte
	uploader *S3Uploader // nil when remote upload is disabled
}

// SnapshotInfo describes a completed snapshot.
type SnapshotInfo struct {
	Size      int
	Uploaded  bool
	CreatedAt int64
}

// NewSnapshotManager creates a snapshot manager. The HMAC key is derived
// from the configured secret.
func NewSnapshotManager(store *storage.SQLiteStore, secret string, uploader *S3Uploader) *SnapshotManager {
	key := sha256.Sum256([]byte(secret))
	return &SnapshotManager{
		store:    store,
		hmacKey:  key[:],
		uploader: uploader,
	}
}

// Trigger creates a snapshot and uploads it if an uploader is configured.
func (m *SnapshotManager) Trigger(ctx context.Context) (*SnapshotInfo, error) {
	snapshot, err := m.store.CreateSnapshot(m.hmacKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot: %w", err)
	}

	encoded, err := storage.EncodeSnapshot(snapshot)
	if err != nil {
		return nil, err
	}

	info := &SnapshotInfo{
		Size:      len(encoded),
		CreatedAt: snapshot.CreatedAt,
	}

	if m.uploader != nil {
		key := fmt.Sprintf("snapshot-%d.cbor", snapshot.CreatedAt)
		if err := m.uploader.Put(ctx, key, encoded); err != nil {
			return nil, fmt.Errorf("snapshot upload failed: %w", err)
		}
		info.Uploaded = true
	}

	log.Info().
		Int("size", info.Size).
		Bool("uploaded", info.Uploaded).
		Msg("Snapshot created")
	return info, nil
}

// Run uploads a snapshot on the configured interval until ctx is done.
func (m *SnapshotManager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Trigger(ctx); err != nil {
				log.Error().Err(err).Msg("Scheduled snapshot failed")
			}
		}
	}
}

// S3Uploader stores snapshot objects in S3.
type S3Uploader struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
}

// NewS3Uploader creates an S3 uploader for the configured bucket.
func NewS3Uploader(ctx context.Context, cfg BackupConfig) (*S3Uploader, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &S3Uploader{
		client:    s3.NewFromConfig(awsCfg),
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
	}, nil
}

// Put stores an object under the configured prefix.
func (u *S3Uploader) Put(ctx context.Context, key string, data []byte) error {
	objectKey := u.keyPrefix + "/" + key

	log.Debug().
		Str("bucket", u.bucket).
		Str("key", objectKey).
		Int("size", len(data)).
		Msg("S3 PUT")

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &u.bucket,
		Key:    &objectKey,
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("S3 PutObject failed: %w", err)
	}
	return nil
}
