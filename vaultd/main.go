// Command vaultd is the encrypted multi-wallet vault daemon. It persists
// named wallets whose seed phrases are encrypted under user passwords and
// exposes unlock, password-change, auto-lock and backup operations over
// NATS for the wallet UI.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wdklabs/walletvault/vault"
	"github.com/wdklabs/walletvault/vault/storage"
)

// Version is set at build time
var Version = "dev"

func main() {
	configPath := flag.String("config", "vaultd.yaml", "Path to configuration file")
	devMode := flag.Bool("dev-mode", false, "Run with an in-memory store")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if *devMode {
		cfg.DevMode = true
	}

	log.Info().
		Str("version", Version).
		Bool("dev_mode", cfg.DevMode).
		Msg("Wallet vault daemon starting")

	// Document store: SQLite on disk, or in memory for dev mode.
	var (
		docStore  storage.Store
		snapshots *SnapshotManager
	)
	if cfg.DevMode {
		docStore = storage.NewMemoryStore()
	} else {
		sqliteStore, err := storage.NewSQLiteStore(cfg.Storage.Path)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Storage.Path).Msg("Failed to open store")
		}
		docStore = sqliteStore

		var uploader *S3Uploader
		if cfg.Backup.Enabled {
			uploader, err = NewS3Uploader(context.Background(), cfg.Backup)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to configure snapshot upload")
			}
		}
		snapshots = NewSnapshotManager(sqliteStore, cfg.Backup.Secret, uploader)
	}

	recordStore, err := vault.NewRecordStore(docStore)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open wallet records")
	}

	session := vault.NewSession(recordStore, vault.KDFParams{Iterations: cfg.KDFIterations})
	autoLock := vault.NewAutoLock(session, recordStore)
	handler := NewHandler(recordStore, session, autoLock, snapshots)

	server, err := NewNATSServer(cfg.NATS, handler)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to NATS")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := server.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}

	if snapshots != nil && cfg.Backup.Enabled {
		go snapshots.Run(ctx, time.Duration(cfg.Backup.IntervalMinutes)*time.Minute)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	cancel()
	autoLock.Stop()
	session.Lock() // drop any cached seed before exit
	server.Close()
	if err := docStore.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close store")
	}

	log.Info().Msg("Wallet vault daemon shutdown complete")
}
