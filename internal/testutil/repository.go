package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"academic-vault/internal/av"
	"academic-vault/internal/database"
	"academic-vault/internal/model"
)

// NewTestRepository returns a migrated in-memory SQLite vault, closed at the
// end of the test.
func NewTestRepository(t *testing.T) *database.SQLiteDatabase {
	t.Helper()
	db, err := database.NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("opening vault database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(); err != nil {
		t.Fatalf("migrating vault database: %v", err)
	}
	return db
}

// SpyRepository wraps a Repository, counting calls and allowing failures or
// gates to be injected before selected operations. Hooks must be set before
// the repository is shared between goroutines.
type SpyRepository struct {
	av.Repository

	BeforeListFiles      func(ctx context.Context, filter av.ListFilter) error
	BeforeCreateFile     func(ctx context.Context, file *model.File) error
	BeforeUpdateFile     func(ctx context.Context, file *model.File) error
	BeforeDeleteFiles    func(ctx context.Context, ids []string) error
	BeforeFolderAncestry func(ctx context.Context, id string) error

	mu    sync.Mutex
	calls map[string]int
}

var _ av.Repository = (*SpyRepository)(nil)

// NewSpyRepository wraps inner.
func NewSpyRepository(inner av.Repository) *SpyRepository {
	return &SpyRepository{Repository: inner, calls: make(map[string]int)}
}

// Calls returns how many times the named method was invoked.
func (s *SpyRepository) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// Reset zeroes the call counters.
func (s *SpyRepository) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = make(map[string]int)
}

func (s *SpyRepository) record(method string) {
	s.mu.Lock()
	s.calls[method]++
	s.mu.Unlock()
}

func (s *SpyRepository) ListFolders(ctx context.Context, filter av.ListFilter) ([]*model.Folder, error) {
	s.record("ListFolders")
	return s.Repository.ListFolders(ctx, filter)
}

func (s *SpyRepository) ListFiles(ctx context.Context, filter av.ListFilter) ([]*model.File, error) {
	s.record("ListFiles")
	if s.BeforeListFiles != nil {
		if err := s.BeforeListFiles(ctx, filter); err != nil {
			return nil, err
		}
	}
	return s.Repository.ListFiles(ctx, filter)
}

func (s *SpyRepository) FolderAncestry(ctx context.Context, id string) ([]*model.Folder, error) {
	s.record("FolderAncestry")
	if s.BeforeFolderAncestry != nil {
		if err := s.BeforeFolderAncestry(ctx, id); err != nil {
			return nil, err
		}
	}
	return s.Repository.FolderAncestry(ctx, id)
}

func (s *SpyRepository) ListAllFolders(ctx context.Context, ownerID string) ([]*model.Folder, error) {
	s.record("ListAllFolders")
	return s.Repository.ListAllFolders(ctx, ownerID)
}

func (s *SpyRepository) CreateFile(ctx context.Context, file *model.File) error {
	s.record("CreateFile")
	if s.BeforeCreateFile != nil {
		if err := s.BeforeCreateFile(ctx, file); err != nil {
			return err
		}
	}
	return s.Repository.CreateFile(ctx, file)
}

func (s *SpyRepository) UpdateFile(ctx context.Context, file *model.File) error {
	s.record("UpdateFile")
	if s.BeforeUpdateFile != nil {
		if err := s.BeforeUpdateFile(ctx, file); err != nil {
			return err
		}
	}
	return s.Repository.UpdateFile(ctx, file)
}

func (s *SpyRepository) DeleteFiles(ctx context.Context, ids []string) error {
	s.record("DeleteFiles")
	if s.BeforeDeleteFiles != nil {
		if err := s.BeforeDeleteFiles(ctx, ids); err != nil {
			return err
		}
	}
	return s.Repository.DeleteFiles(ctx, ids)
}

func (s *SpyRepository) DeleteFolders(ctx context.Context, ids []string) error {
	s.record("DeleteFolders")
	return s.Repository.DeleteFolders(ctx, ids)
}

func (s *SpyRepository) PublishFiles(ctx context.Context, ids []string, at time.Time) error {
	s.record("PublishFiles")
	return s.Repository.PublishFiles(ctx, ids, at)
}
