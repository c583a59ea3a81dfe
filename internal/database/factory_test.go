package database

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"academic-vault/internal/config"
	"academic-vault/internal/database/migrations"
)

func TestNewStoreFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     func(dir string) config.DatabaseConfig
		wantErr bool
	}{
		{name: "memory", cfg: func(string) config.DatabaseConfig { return config.DatabaseConfig{Type: "memory"} }},
		{name: "sqlite", cfg: func(dir string) config.DatabaseConfig { return config.DatabaseConfig{Type: "sqlite", DataDir: dir} }},
		{name: "sqlite creates data dir", cfg: func(dir string) config.DatabaseConfig {
			return config.DatabaseConfig{Type: "sqlite", DataDir: filepath.Join(dir, "nested", "db")}
		}},
		{name: "sqlite without data_dir", cfg: func(string) config.DatabaseConfig { return config.DatabaseConfig{Type: "sqlite"} }, wantErr: true},
		{name: "unknown", cfg: func(string) config.DatabaseConfig { return config.DatabaseConfig{Type: "postgres"} }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := tt.cfg(t.TempDir())
			got, err := NewStoreFromConfig(cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewStoreFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if got != nil {
					t.Error("NewStoreFromConfig() returned a store with an error")
				}
				return
			}
			defer got.Close()

			if err := got.Migrate(); err != nil {
				t.Fatalf("Migrate() error = %v", err)
			}
			if err := got.CheckMigrations(); err != nil {
				t.Errorf("CheckMigrations() after Migrate error = %v", err)
			}
			if cfg.Type == "sqlite" {
				if _, err := os.Stat(filepath.Join(cfg.DataDir, FileName)); err != nil {
					t.Errorf("database file not created: %v", err)
				}
			}
		})
	}
}

func TestNewStoreFromConfig_SQLiteNeedsMigration(t *testing.T) {
	got, err := NewStoreFromConfig(config.DatabaseConfig{Type: "sqlite", DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewStoreFromConfig() error = %v", err)
	}
	defer got.Close()

	if err := got.CheckMigrations(); !errors.Is(err, migrations.ErrNeedsMigration) {
		t.Errorf("CheckMigrations() on fresh database error = %v, want ErrNeedsMigration", err)
	}
}
