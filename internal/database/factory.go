package database

import (
	"fmt"
	"os"
	"path/filepath"

	"academic-vault/internal/auth"
	"academic-vault/internal/av"
	"academic-vault/internal/config"
)

// FileName is the SQLite file inside DatabaseConfig.DataDir.
const FileName = "vault.db"

// Store is what the app needs from a records backend: folders, files and
// collections for the vault, accounts and profiles for auth, and schema
// management.
type Store interface {
	av.Repository
	auth.AccountStore

	Migrate() error
	CheckMigrations() error
}

var (
	_ Store = (*SQLiteDatabase)(nil)
	_ Store = (*MemoryDatabase)(nil)
)

// NewStoreFromConfig opens the configured records backend. For sqlite the
// data directory is created if needed.
func NewStoreFromConfig(cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("database type sqlite: data_dir is required")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		db, err := NewSQLiteDatabase(filepath.Join(cfg.DataDir, FileName))
		if err != nil {
			return nil, err
		}
		return db, nil
	case "memory":
		return NewMemoryDatabase(), nil
	}
	return nil, fmt.Errorf("unknown database type %q (want sqlite or memory)", cfg.Type)
}
