package av

import (
	"context"
	"fmt"
	"slices"

	"academic-vault/internal/model"
)

// Collections manages a user's cross-folder groupings of files. A collection
// lists file ids and every member file lists the collection id; both sides
// are kept in step.
type Collections struct {
	repo     Repository
	identity *Identity
	logger   Logger
	clock    Clock
	idgen    IDGenerator
}

// NewCollections creates a Collections service for one session.
func NewCollections(repo Repository, identity *Identity, logger Logger, clock Clock, idgen IDGenerator) *Collections {
	if logger == nil {
		logger = NewNopLogger()
	}
	if clock == nil {
		clock = RealClock{}
	}
	if idgen == nil {
		idgen = UUIDGenerator{}
	}
	return &Collections{
		repo:     repo,
		identity: identity,
		logger:   logger,
		clock:    clock,
		idgen:    idgen,
	}
}

// Create creates an empty private collection.
func (s *Collections) Create(ctx context.Context, title string) (*model.Collection, error) {
	title = normalizeTitle(title)
	if title == "" {
		return nil, fmt.Errorf("%w: collection title is required", ErrValidation)
	}
	if s.identity.Role() == model.RoleGuest {
		return nil, fmt.Errorf("%w: guests cannot create collections", ErrPermission)
	}

	now := s.clock.Now()
	c := &model.Collection{
		ID:         s.idgen.New(),
		OwnerID:    s.identity.UserID,
		Title:      title,
		Visibility: model.VisibilityPrivate,
		FileIDs:    []string{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.CreateCollection(ctx, c); err != nil {
		return nil, fmt.Errorf("creating collection: %w", err)
	}
	s.logger.Info("collection created", "collection_id", c.ID, "title", title)
	return c, nil
}

// List returns the caller's collections ordered by title.
func (s *Collections) List(ctx context.Context) ([]*model.Collection, error) {
	collections, err := s.repo.ListCollections(ctx, s.identity.UserID)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	return collections, nil
}

// Get returns a collection the caller owns.
func (s *Collections) Get(ctx context.Context, id string) (*model.Collection, error) {
	c, err := s.repo.GetCollection(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting collection: %w", err)
	}
	if c == nil || (c.OwnerID != s.identity.UserID && !s.identity.IsAdmin()) {
		return nil, fmt.Errorf("%w: collection %s", ErrNotFound, id)
	}
	return c, nil
}

// AddFiles adds files to a collection. Files already in it are skipped.
func (s *Collections) AddFiles(ctx context.Context, collectionID string, fileIDs []string) (*model.Collection, error) {
	c, err := s.Get(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	files, err := s.repo.GetFilesByIDs(ctx, fileIDs)
	if err != nil {
		return nil, fmt.Errorf("getting files: %w", err)
	}
	if len(files) != len(slices.Compact(slices.Sorted(slices.Values(fileIDs)))) {
		return nil, fmt.Errorf("%w: some files do not exist", ErrNotFound)
	}

	now := s.clock.Now()
	for _, f := range files {
		if f.OwnerID != s.identity.UserID && f.Visibility != model.VisibilityShared {
			return nil, fmt.Errorf("%w: file %s", ErrNotFound, f.ID)
		}
		if !slices.Contains(c.FileIDs, f.ID) {
			c.FileIDs = append(c.FileIDs, f.ID)
		}
		if f.OwnerID != s.identity.UserID || slices.Contains(f.CollectionIDs, c.ID) {
			continue
		}
		f.CollectionIDs = append(f.CollectionIDs, c.ID)
		f.UpdatedAt = now
		if err := s.repo.UpdateFile(ctx, f); err != nil {
			return nil, fmt.Errorf("updating file: %w", err)
		}
	}

	c.UpdatedAt = now
	if err := s.repo.UpdateCollection(ctx, c); err != nil {
		return nil, fmt.Errorf("updating collection: %w", err)
	}
	s.logger.Info("files added to collection", "collection_id", c.ID, "count", len(files))
	return c, nil
}

// Files returns the member files of a collection that still exist.
func (s *Collections) Files(ctx context.Context, collectionID string) ([]*model.File, error) {
	c, err := s.Get(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	files, err := s.repo.GetFilesByIDs(ctx, c.FileIDs)
	if err != nil {
		return nil, fmt.Errorf("getting files: %w", err)
	}
	return files, nil
}

// Delete deletes a collection. Member files are kept; only their reference to
// the collection is removed.
func (s *Collections) Delete(ctx context.Context, collectionID string) error {
	c, err := s.Get(ctx, collectionID)
	if err != nil {
		return err
	}
	files, err := s.repo.GetFilesByIDs(ctx, c.FileIDs)
	if err != nil {
		return fmt.Errorf("getting files: %w", err)
	}

	now := s.clock.Now()
	for _, f := range files {
		i := slices.Index(f.CollectionIDs, c.ID)
		if i < 0 {
			continue
		}
		f.CollectionIDs = slices.Delete(f.CollectionIDs, i, i+1)
		f.UpdatedAt = now
		if err := s.repo.UpdateFile(ctx, f); err != nil {
			return fmt.Errorf("updating file: %w", err)
		}
	}

	if err := s.repo.DeleteCollection(ctx, c.ID); err != nil {
		return fmt.Errorf("deleting collection: %w", err)
	}
	s.logger.Info("collection deleted", "collection_id", c.ID)
	return nil
}
