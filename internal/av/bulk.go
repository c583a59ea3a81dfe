package av

import (
	"context"
	"fmt"
	"slices"

	"academic-vault/internal/model"
)

// BulkDelete deletes the selected items of the current listing. ids that are
// not in the listing are ignored.
//
// Files are deleted by removing their stored objects first and then their
// records. Folders are deleted by removing the stored objects of every file
// in their subtrees and then the folder records, which cascade to
// subfolders and file records. A failure removing objects aborts before the
// corresponding records are touched. The listing is refreshed and the
// selection cleared in every case.
func (c *Controller) BulkDelete(ctx context.Context, ids []string) error {
	fileIDs, folderIDs, err := c.partition(ids)
	if err != nil {
		return c.settle(ctx, err)
	}

	if len(fileIDs) > 0 {
		if err := c.deleteFiles(ctx, fileIDs); err != nil {
			return c.settle(ctx, err)
		}
	}
	if len(folderIDs) > 0 {
		if err := c.deleteFolders(ctx, folderIDs); err != nil {
			return c.settle(ctx, err)
		}
	}
	c.logger.Info("items deleted", "files", len(fileIDs), "folders", len(folderIDs))
	return c.settle(ctx, nil)
}

// partition splits ids into files and folders of the current listing.
// It fails with ErrPermission before any mutation if an item belongs to
// another user.
func (c *Controller) partition(ids []string) (fileIDs, folderIDs []string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range ids {
		if i := c.fileIndex(id); i >= 0 {
			if !c.canModify(c.files[i].OwnerID) {
				return nil, nil, fmt.Errorf("%w: file %s belongs to another user", ErrPermission, id)
			}
			fileIDs = append(fileIDs, id)
			continue
		}
		if i := c.folderIndex(id); i >= 0 {
			if !c.canModify(c.folders[i].OwnerID) {
				return nil, nil, fmt.Errorf("%w: folder %s belongs to another user", ErrPermission, id)
			}
			folderIDs = append(folderIDs, id)
		}
	}
	return fileIDs, folderIDs, nil
}

func (c *Controller) deleteFiles(ctx context.Context, ids []string) error {
	files, err := c.repo.GetFilesByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("getting files: %w", err)
	}
	if err := c.deleteObjects(ctx, files); err != nil {
		return err
	}
	if err := c.repo.DeleteFiles(ctx, ids); err != nil {
		c.logger.Error("failed to delete file records", "count", len(ids), "error", err)
		return fmt.Errorf("deleting files: %w", err)
	}
	return nil
}

func (c *Controller) deleteFolders(ctx context.Context, ids []string) error {
	var all []*model.Folder
	for _, owner := range c.folderOwners(ids) {
		folders, err := c.repo.ListAllFolders(ctx, owner)
		if err != nil {
			return fmt.Errorf("listing folders: %w", err)
		}
		all = append(all, folders...)
	}
	subtree := Descendants(all, ids)

	files, err := c.repo.ListFilesInFolders(ctx, subtree)
	if err != nil {
		return fmt.Errorf("listing files in folders: %w", err)
	}
	if err := c.deleteObjects(ctx, files); err != nil {
		return err
	}
	if err := c.repo.DeleteFolders(ctx, ids); err != nil {
		c.logger.Error("failed to delete folder records", "count", len(ids), "error", err)
		return fmt.Errorf("deleting folders: %w", err)
	}
	return nil
}

// folderOwners returns the distinct owners of the listed folders in ids.
func (c *Controller) folderOwners(ids []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var owners []string
	for _, id := range ids {
		if i := c.folderIndex(id); i >= 0 && !slices.Contains(owners, c.folders[i].OwnerID) {
			owners = append(owners, c.folders[i].OwnerID)
		}
	}
	return owners
}

func (c *Controller) deleteObjects(ctx context.Context, files []*model.File) error {
	var keys []string
	for _, f := range files {
		if key := f.StoragePath(); key != "" {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.store.Delete(ctx, keys...); err != nil {
		c.logger.Error("failed to delete stored objects", "count", len(keys), "error", err)
		return fmt.Errorf("deleting stored objects: %w", err)
	}
	return nil
}

// BulkPublish makes the selected files of the current listing visible in the
// shared vault. Folders in ids are ignored; if no file remains the call fails
// with ErrNothingToPublish and nothing is refetched. Publishing cannot be
// undone.
func (c *Controller) BulkPublish(ctx context.Context, ids []string) error {
	if c.identity.Role() == model.RoleGuest {
		return fmt.Errorf("%w: guests cannot publish files", ErrPermission)
	}

	fileIDs, _, err := c.partition(ids)
	if err != nil {
		return c.settle(ctx, err)
	}
	if len(fileIDs) == 0 {
		return ErrNothingToPublish
	}

	if err := c.repo.PublishFiles(ctx, fileIDs, c.clock.Now()); err != nil {
		c.logger.Error("failed to publish files", "count", len(fileIDs), "error", err)
		return c.settle(ctx, fmt.Errorf("publishing files: %w", err))
	}
	c.logger.Info("files published", "count", len(fileIDs))
	return c.settle(ctx, nil)
}
