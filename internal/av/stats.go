package av

import (
	"context"
	"fmt"

	"academic-vault/internal/model"
)

// Stats is the admin overview of the whole vault.
type Stats struct {
	TotalUsers  int   `json:"total_users" yaml:"total_users"` // distinct owners of files or folders
	TotalFiles  int   `json:"total_files" yaml:"total_files"`
	StorageUsed int64 `json:"storage_used" yaml:"storage_used"` // bytes
	SharedFiles int   `json:"shared_files" yaml:"shared_files"`
	Collections int   `json:"collections" yaml:"collections"`
}

// ComputeStats aggregates the admin overview. Only admins may call it.
func ComputeStats(ctx context.Context, repo Repository, identity *Identity) (*Stats, error) {
	if !identity.IsAdmin() {
		return nil, fmt.Errorf("%w: admin role required", ErrPermission)
	}

	files, err := repo.ListAllFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	folders, err := repo.ListAllFolders(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("listing folders: %w", err)
	}
	collections, err := repo.ListCollections(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}

	owners := make(map[string]struct{})
	stats := &Stats{TotalFiles: len(files), Collections: len(collections)}
	for _, f := range files {
		owners[f.OwnerID] = struct{}{}
		stats.StorageUsed += f.Size
		if f.Visibility == model.VisibilityShared {
			stats.SharedFiles++
		}
	}
	for _, f := range folders {
		owners[f.OwnerID] = struct{}{}
	}
	stats.TotalUsers = len(owners)
	return stats, nil
}
