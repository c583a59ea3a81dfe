package av

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"academic-vault/internal/model"
)

// UpdateFile persists an edited file with an optimistic update:
//
//  1. the edit is applied to the in-memory listing and open file,
//  2. the record is written through the repository,
//  3. if the write fails, the in-memory copy is rolled back to the last known
//     good snapshot and the listing is refetched.
//
// Edits that break a record invariant fail with ErrValidation before step 1.
func (c *Controller) UpdateFile(ctx context.Context, file *model.File) error {
	if file == nil {
		return fmt.Errorf("%w: file is required", ErrValidation)
	}
	next := file.Clone()
	next.Title = normalizeTitle(next.Title)
	next.Tags = NormalizeTags(next.Tags)

	snapshot, err := c.snapshot(ctx, next.ID)
	if err != nil {
		return err
	}
	if !c.canModify(snapshot.OwnerID) {
		return fmt.Errorf("%w: file %s belongs to another user", ErrPermission, next.ID)
	}
	if err := validateUpdate(snapshot, next); err != nil {
		return err
	}
	next.OwnerID = snapshot.OwnerID
	next.CreatedAt = snapshot.CreatedAt
	next.UpdatedAt = c.clock.Now()

	c.applyLocal(next)

	if err := c.repo.UpdateFile(ctx, next); err != nil {
		c.logger.Error("failed to update file, rolling back", "file_id", next.ID, "error", err)
		c.applyLocal(snapshot)
		return errors.Join(fmt.Errorf("updating file: %w", err), c.Refresh(ctx))
	}
	c.logger.Debug("file updated", "file_id", next.ID)
	return nil
}

// snapshot returns a copy of the canonical in-memory file, or the stored
// record when the file is not loaded.
func (c *Controller) snapshot(ctx context.Context, id string) (*model.File, error) {
	c.mu.Lock()
	if f := c.lookupLocked(id); f != nil {
		snap := f.Clone()
		c.mu.Unlock()
		return snap, nil
	}
	c.mu.Unlock()

	f, err := c.repo.GetFile(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting file: %w", err)
	}
	if f == nil {
		return nil, fmt.Errorf("%w: file %s", ErrNotFound, id)
	}
	return f, nil
}

// lookupLocked must be called with c.mu held.
func (c *Controller) lookupLocked(id string) *model.File {
	if i := c.fileIndex(id); i >= 0 {
		return c.files[i]
	}
	if c.open != nil && c.open.ID == id {
		return c.open
	}
	return nil
}

// applyLocal overwrites the canonical in-memory copy of f in place, so the
// listing and the open file observe the same value.
func (c *Controller) applyLocal(f *model.File) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur := c.lookupLocked(f.ID); cur != nil {
		*cur = *f.Clone()
	}
}

func validateUpdate(prev, next *model.File) error {
	if next.Title == "" {
		return fmt.Errorf("%w: file title is required", ErrValidation)
	}
	if next.Progress < 0 || next.Progress > 100 {
		return fmt.Errorf("%w: progress %d out of range", ErrValidation, next.Progress)
	}
	if (next.Progress == 100) != (next.Status == model.StatusReady) {
		return fmt.Errorf("%w: progress 100 and status ready must go together (status %s, progress %d)", ErrValidation, next.Status, next.Progress)
	}
	if prev.Visibility == model.VisibilityShared && next.Visibility != model.VisibilityShared {
		return fmt.Errorf("%w: shared files cannot be made private", ErrValidation)
	}
	if next.Visibility != model.VisibilityPrivate && next.Visibility != model.VisibilityShared {
		return fmt.Errorf("%w: unknown visibility %q", ErrValidation, next.Visibility)
	}
	if !model.SameFolder(prev.FolderID, next.FolderID) {
		return fmt.Errorf("%w: files cannot be moved between folders", ErrValidation)
	}
	return nil
}

// NormalizeTags trims tags and drops empty and repeated ones, keeping the
// first occurrence order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

func normalizeTitle(title string) string {
	return strings.TrimSpace(title)
}

// Open loads a file into the detail view. A file of the current listing is
// opened on the listing's copy.
func (c *Controller) Open(ctx context.Context, id string) (*model.File, error) {
	c.mu.Lock()
	if i := c.fileIndex(id); i >= 0 {
		c.open = c.files[i]
		f := c.open.Clone()
		c.mu.Unlock()
		return f, nil
	}
	c.mu.Unlock()

	f, err := c.repo.GetFile(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting file: %w", err)
	}
	if f == nil {
		return nil, fmt.Errorf("%w: file %s", ErrNotFound, id)
	}
	if f.Visibility != model.VisibilityShared && !c.canModify(f.OwnerID) {
		return nil, fmt.Errorf("%w: file %s", ErrNotFound, id)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = f
	return f.Clone(), nil
}

// OpenFile returns a copy of the open file, or nil.
func (c *Controller) OpenFile() *model.File {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open.Clone()
}

// CloseFile clears the detail view.
func (c *Controller) CloseFile() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = nil
}
