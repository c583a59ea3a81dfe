package av

import (
	"context"
	"fmt"

	"academic-vault/internal/model"
)

// ResolveAncestorPath returns the folders from the top-level ancestor down to
// folderID, inclusive. A nil folderID (the vault root) yields an empty path.
//
// The repository's single ancestry query is tried first. If it fails for any
// reason the path is rebuilt by walking parent links through the owner's
// folder set; the failure is only logged.
func (c *Controller) ResolveAncestorPath(ctx context.Context, folderID *string) ([]*model.Folder, error) {
	if folderID == nil {
		return nil, nil
	}

	chain, err := c.repo.FolderAncestry(ctx, *folderID)
	if err == nil {
		return chain, nil
	}
	c.logger.Warn("ancestry query failed, walking parent links", "folder_id", *folderID, "error", err)

	chain, err = c.walkAncestorPath(ctx, *folderID)
	if err != nil {
		return nil, fmt.Errorf("resolving ancestor path: %w", err)
	}
	return chain, nil
}

func (c *Controller) walkAncestorPath(ctx context.Context, folderID string) ([]*model.Folder, error) {
	folder, err := c.repo.GetFolder(ctx, folderID)
	if err != nil {
		return nil, fmt.Errorf("getting folder: %w", err)
	}
	if folder == nil {
		return nil, nil
	}

	all, err := c.repo.ListAllFolders(ctx, folder.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("listing folders: %w", err)
	}
	return WalkAncestry(all, folderID), nil
}

// WalkAncestry rebuilds the root-first ancestor chain of id, inclusive, from a
// flat folder set. The walk stops at a missing parent or at a parent cycle.
func WalkAncestry(folders []*model.Folder, id string) []*model.Folder {
	byID := make(map[string]*model.Folder, len(folders))
	for _, f := range folders {
		byID[f.ID] = f
	}

	var chain []*model.Folder
	seen := make(map[string]bool)
	cur, ok := byID[id]
	for ok && !seen[cur.ID] {
		seen[cur.ID] = true
		chain = append(chain, cur)
		if cur.ParentID == nil {
			break
		}
		cur, ok = byID[*cur.ParentID]
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// Descendants returns the ids of roots and every folder below them in the flat
// folder set. Cycles are tolerated.
func Descendants(folders []*model.Folder, roots []string) []string {
	children := make(map[string][]string)
	for _, f := range folders {
		if f.ParentID != nil {
			children[*f.ParentID] = append(children[*f.ParentID], f.ID)
		}
	}

	seen := make(map[string]bool)
	var out []string
	queue := append([]string(nil), roots...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
		queue = append(queue, children[id]...)
	}
	return out
}
