package storage

import (
	"context"
	"fmt"

	"academic-vault/internal/av"
	"academic-vault/internal/config"
)

// NewStoreFromConfig creates an ObjectStore based on the storage config type.
// When cfg.Encrypt is set the store is wrapped with enc, which must not be nil.
func NewStoreFromConfig(ctx context.Context, cfg config.StorageConfig, enc av.Encryptor) (av.ObjectStore, error) {
	var (
		store av.ObjectStore
		err   error
	)
	switch cfg.Type {
	case "memory":
		store = NewMemoryStore()
	case "filesystem":
		if cfg.Root == "" {
			return nil, fmt.Errorf("filesystem storage requires root to be set")
		}
		store, err = NewFileSystemStore(cfg.Root)
	case "s3":
		store, err = NewS3Store(ctx, cfg)
	case "minio":
		store, err = NewMinioStore(cfg)
	default:
		return nil, fmt.Errorf("unknown storage type: %q", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	if !cfg.Encrypt {
		return store, nil
	}
	if enc == nil {
		return nil, fmt.Errorf("storage encryption requires an encryptor: set encryption.type")
	}
	return NewEncryptedStore(store, enc, ""), nil
}
