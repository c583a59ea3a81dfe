package av

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"academic-vault/internal/model"
)

// Listing is one level of the vault tree.
type Listing struct {
	Folders []*model.Folder
	Files   []*model.File
}

// View is a snapshot of a session's view-state. All records are copies.
type View struct {
	FolderID  *string
	Path      []*model.Folder
	Folders   []*model.Folder
	Files     []*model.File
	Selection []string
	Open      *model.File
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithScope selects which tree the controller navigates. The default is the
// caller's private vault; model.VisibilityShared navigates the shared vault.
func WithScope(scope model.Visibility) ControllerOption {
	return func(c *Controller) {
		c.scope = scope
	}
}

// Controller owns the view-state of one session: the current folder, its
// listing and ancestor path, the selection and the open file. Gateway calls
// never run while the state lock is held.
type Controller struct {
	repo     Repository
	store    ObjectStore
	identity *Identity
	logger   Logger
	clock    Clock
	idgen    IDGenerator
	scope    model.Visibility

	mu         sync.Mutex
	current    *string
	generation uint64
	folders    []*model.Folder
	files      []*model.File
	path       []*model.Folder
	selected   map[string]struct{}
	open       *model.File
	inflight   int
}

// NewController creates a Controller for one session. identity must not be
// nil. A nil logger, clock or id generator is replaced with its default.
func NewController(repo Repository, store ObjectStore, identity *Identity, logger Logger, clock Clock, idgen IDGenerator, opts ...ControllerOption) *Controller {
	if logger == nil {
		logger = NewNopLogger()
	}
	if clock == nil {
		clock = RealClock{}
	}
	if idgen == nil {
		idgen = UUIDGenerator{}
	}
	c := &Controller{
		repo:     repo,
		store:    store,
		identity: identity,
		logger:   logger,
		clock:    clock,
		idgen:    idgen,
		scope:    model.VisibilityPrivate,
		selected: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Identity returns the session's identity.
func (c *Controller) Identity() *Identity {
	return c.identity
}

// Scope returns the visibility tree the controller navigates.
func (c *Controller) Scope() model.Visibility {
	return c.scope
}

// Navigate makes folderID the current folder, clears the selection and loads
// its listing and ancestor path. Results of an older navigation that arrive
// after a newer one are discarded.
func (c *Controller) Navigate(ctx context.Context, folderID *string) error {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.current = cloneID(folderID)
	clear(c.selected)
	c.mu.Unlock()

	return c.load(ctx, gen, folderID)
}

// Refresh reloads the listing and ancestor path of the current folder.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	folderID := cloneID(c.current)
	c.mu.Unlock()

	return c.load(ctx, gen, folderID)
}

func (c *Controller) load(ctx context.Context, gen uint64, folderID *string) error {
	listing, err := c.children(ctx, folderID)
	if err != nil {
		return c.dropListing(gen, folderID, err)
	}
	path, err := c.ResolveAncestorPath(ctx, folderID)
	if err != nil {
		return c.dropListing(gen, folderID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isLatestLocked(gen, folderID) {
		c.logger.Debug("discarding stale listing", "folder_id", model.FolderKey(folderID), "current", model.FolderKey(c.current))
		return nil
	}
	c.folders = listing.Folders
	c.files = listing.Files
	c.path = path

	// Keep the open file and the listing on one canonical copy.
	if c.open != nil {
		if i := c.fileIndex(c.open.ID); i >= 0 {
			c.open = c.files[i]
		}
	}
	return nil
}

// dropListing empties the listing and path after a failed fetch for the
// current folder, so the previous folder's items can neither be shown nor
// acted on under the new one.
func (c *Controller) dropListing(gen uint64, folderID *string, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isLatestLocked(gen, folderID) {
		c.folders, c.files, c.path = nil, nil, nil
		clear(c.selected)
		c.logger.Warn("listing unavailable", "folder_id", model.FolderKey(folderID), "error", err)
	}
	return err
}

func (c *Controller) isLatestLocked(gen uint64, folderID *string) bool {
	return gen == c.generation && model.SameFolder(folderID, c.current)
}

func (c *Controller) children(ctx context.Context, folderID *string) (*Listing, error) {
	if c.scope == model.VisibilityShared {
		return c.ListSharedChildren(ctx, folderID)
	}
	return c.ListChildren(ctx, folderID)
}

// ListChildren returns the caller's private folders and files directly inside
// folderID: folders by title ascending, files newest first.
func (c *Controller) ListChildren(ctx context.Context, folderID *string) (*Listing, error) {
	return c.list(ctx, ListFilter{
		FolderID:   folderID,
		Visibility: model.VisibilityPrivate,
		OwnerID:    c.identity.UserID,
	})
}

// ListSharedChildren returns the shared folders and files of every owner
// directly inside folderID.
func (c *Controller) ListSharedChildren(ctx context.Context, folderID *string) (*Listing, error) {
	return c.list(ctx, ListFilter{
		FolderID:   folderID,
		Visibility: model.VisibilityShared,
	})
}

func (c *Controller) list(ctx context.Context, filter ListFilter) (*Listing, error) {
	folders, err := c.repo.ListFolders(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing folders: %w", err)
	}
	files, err := c.repo.ListFiles(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	return &Listing{Folders: folders, Files: files}, nil
}

// View returns a copy of the current view-state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		FolderID:  cloneID(c.current),
		Selection: c.selectionLocked(),
		Open:      c.open.Clone(),
	}
	for _, f := range c.path {
		v.Path = append(v.Path, f.Clone())
	}
	for _, f := range c.folders {
		v.Folders = append(v.Folders, f.Clone())
	}
	for _, f := range c.files {
		v.Files = append(v.Files, f.Clone())
	}
	return v
}

// CurrentFolder returns the id of the current folder, nil at the vault root.
func (c *Controller) CurrentFolder() *string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneID(c.current)
}

// CreateFolder creates a folder under parentID. The folder inherits the
// parent's visibility (private at the root) and its path is the parent's path
// followed by the parent id.
func (c *Controller) CreateFolder(ctx context.Context, title string, parentID *string) (*model.Folder, error) {
	title = normalizeTitle(title)
	if title == "" {
		return nil, fmt.Errorf("%w: folder title is required", ErrValidation)
	}

	visibility := model.VisibilityPrivate
	path := []string{}
	if parentID != nil {
		parent, err := c.repo.GetFolder(ctx, *parentID)
		if err != nil {
			return nil, fmt.Errorf("getting parent folder: %w", err)
		}
		if parent == nil {
			return nil, fmt.Errorf("%w: parent folder %s", ErrNotFound, *parentID)
		}
		visibility = parent.Visibility
		path = append(slices.Clone(parent.Path), parent.ID)
	}

	now := c.clock.Now()
	folder := &model.Folder{
		ID:         c.idgen.New(),
		OwnerID:    c.identity.UserID,
		Title:      title,
		ParentID:   cloneID(parentID),
		Visibility: visibility,
		Path:       path,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := c.repo.CreateFolder(ctx, folder); err != nil {
		c.logger.Error("failed to create folder", "title", title, "error", err)
		return nil, fmt.Errorf("creating folder: %w", err)
	}
	c.logger.Info("folder created", "folder_id", folder.ID, "title", title)

	if model.SameFolder(parentID, c.CurrentFolder()) {
		if err := c.Refresh(ctx); err != nil {
			return folder, err
		}
	}
	return folder, nil
}

// ToggleSelection adds id to the selection, or removes it if already selected.
func (c *Controller) ToggleSelection(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.selected[id]; ok {
		delete(c.selected, id)
		return
	}
	c.selected[id] = struct{}{}
}

// ClearSelection empties the selection.
func (c *Controller) ClearSelection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.selected)
}

// Selection returns the selected ids in sorted order.
func (c *Controller) Selection() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectionLocked()
}

func (c *Controller) selectionLocked() []string {
	ids := make([]string, 0, len(c.selected))
	for id := range c.selected {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// settle finishes a bulk action: the listing is refetched and the selection
// cleared whether or not the action succeeded.
func (c *Controller) settle(ctx context.Context, err error) error {
	c.ClearSelection()
	return errors.Join(err, c.Refresh(ctx))
}

// fileIndex must be called with c.mu held.
func (c *Controller) fileIndex(id string) int {
	return slices.IndexFunc(c.files, func(f *model.File) bool { return f.ID == id })
}

// folderIndex must be called with c.mu held.
func (c *Controller) folderIndex(id string) int {
	return slices.IndexFunc(c.folders, func(f *model.Folder) bool { return f.ID == id })
}

// canModify reports whether the session may change a record owned by ownerID.
func (c *Controller) canModify(ownerID string) bool {
	return c.identity.IsAdmin() || (c.identity != nil && ownerID == c.identity.UserID)
}

func cloneID(id *string) *string {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
