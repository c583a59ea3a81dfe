package database

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"academic-vault/internal/av"
	"academic-vault/internal/model"
)

// MemoryDatabase is an in-memory Store. Records are copied on the way in and
// out, so callers never share state with the database. Safe for concurrent use.
type MemoryDatabase struct {
	mu          sync.RWMutex
	folders     map[string]*model.Folder
	files       map[string]*model.File
	collections map[string]*model.Collection
	profiles    map[string]*model.UserProfile
	accounts    map[string]*model.Account

	noAncestry bool
}

// NewMemoryDatabase creates an empty in-memory database.
func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{
		folders:     make(map[string]*model.Folder),
		files:       make(map[string]*model.File),
		collections: make(map[string]*model.Collection),
		profiles:    make(map[string]*model.UserProfile),
		accounts:    make(map[string]*model.Account),
	}
}

// DisableAncestryQuery makes FolderAncestry fail with av.ErrAncestryUnavailable,
// like a backend without the ancestry procedure.
func (m *MemoryDatabase) DisableAncestryQuery() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.noAncestry = true
}

// Folder operations

func (m *MemoryDatabase) ListFolders(_ context.Context, filter av.ListFilter) ([]*model.Folder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.Folder
	for _, f := range m.folders {
		if model.SameFolder(f.ParentID, filter.FolderID) && f.Visibility == filter.Visibility &&
			(filter.OwnerID == "" || f.OwnerID == filter.OwnerID) {
			out = append(out, f.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *model.Folder) int {
		return cmp.Or(strings.Compare(a.Title, b.Title), strings.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (m *MemoryDatabase) ListAllFolders(_ context.Context, ownerID string) ([]*model.Folder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.Folder
	for _, f := range m.folders {
		if ownerID == "" || f.OwnerID == ownerID {
			out = append(out, f.Clone())
		}
	}
	return out, nil
}

func (m *MemoryDatabase) GetFolder(_ context.Context, id string) (*model.Folder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.folders[id].Clone(), nil
}

func (m *MemoryDatabase) FolderAncestry(_ context.Context, id string) ([]*model.Folder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.noAncestry {
		return nil, av.ErrAncestryUnavailable
	}

	var chain []*model.Folder
	for cur := m.folders[id]; cur != nil; {
		if len(chain) > maxAncestryDepth {
			return nil, fmt.Errorf("%w: parent links of folder %s form a cycle", av.ErrAncestryUnavailable, id)
		}
		chain = append(chain, cur.Clone())
		if cur.ParentID == nil {
			break
		}
		cur = m.folders[*cur.ParentID]
	}
	slices.Reverse(chain)
	return chain, nil
}

func (m *MemoryDatabase) CreateFolder(_ context.Context, folder *model.Folder) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.folders[folder.ID]; ok {
		return fmt.Errorf("creating folder: duplicate id %s", folder.ID)
	}
	if folder.ParentID != nil && m.folders[*folder.ParentID] == nil {
		return fmt.Errorf("creating folder: parent %s does not exist", *folder.ParentID)
	}
	m.folders[folder.ID] = folder.Clone()
	return nil
}

// DeleteFolders removes the folders, their descendants and the files they contain.
func (m *MemoryDatabase) DeleteFolders(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := make([]*model.Folder, 0, len(m.folders))
	for _, f := range m.folders {
		all = append(all, f)
	}
	for _, id := range av.Descendants(all, ids) {
		delete(m.folders, id)
		for fileID, f := range m.files {
			if f.FolderID != nil && *f.FolderID == id {
				delete(m.files, fileID)
			}
		}
	}
	return nil
}

// File operations

func (m *MemoryDatabase) ListFiles(_ context.Context, filter av.ListFilter) ([]*model.File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.File
	for _, f := range m.files {
		if model.SameFolder(f.FolderID, filter.FolderID) && f.Visibility == filter.Visibility &&
			(filter.OwnerID == "" || f.OwnerID == filter.OwnerID) {
			out = append(out, f.Clone())
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *MemoryDatabase) ListAllFiles(_ context.Context) ([]*model.File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*model.File, 0, len(m.files))
	for _, f := range m.files {
		out = append(out, f.Clone())
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *MemoryDatabase) ListFilesInFolders(_ context.Context, folderIDs []string) ([]*model.File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.File
	for _, f := range m.files {
		if f.FolderID != nil && slices.Contains(folderIDs, *f.FolderID) {
			out = append(out, f.Clone())
		}
	}
	return out, nil
}

func (m *MemoryDatabase) GetFile(_ context.Context, id string) (*model.File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.files[id].Clone(), nil
}

func (m *MemoryDatabase) GetFilesByIDs(_ context.Context, ids []string) ([]*model.File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.File
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if f, ok := m.files[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, f.Clone())
		}
	}
	return out, nil
}

func (m *MemoryDatabase) CreateFile(_ context.Context, file *model.File) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.files[file.ID]; ok {
		return fmt.Errorf("creating file: duplicate id %s", file.ID)
	}
	if file.FolderID != nil && m.folders[*file.FolderID] == nil {
		return fmt.Errorf("creating file: folder %s does not exist", *file.FolderID)
	}
	m.files[file.ID] = file.Clone()
	return nil
}

func (m *MemoryDatabase) UpdateFile(_ context.Context, file *model.File) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.files[file.ID]
	if !ok {
		return fmt.Errorf("%w: file %s", av.ErrNotFound, file.ID)
	}
	next := file.Clone()
	next.OwnerID = cur.OwnerID
	m.files[file.ID] = next
	return nil
}

func (m *MemoryDatabase) PublishFiles(_ context.Context, ids []string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		if f, ok := m.files[id]; ok {
			f.Visibility = model.VisibilityShared
			f.UpdatedAt = at
		}
	}
	return nil
}

func (m *MemoryDatabase) DeleteFiles(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		delete(m.files, id)
	}
	return nil
}

// Collection operations

func (m *MemoryDatabase) ListCollections(_ context.Context, ownerID string) ([]*model.Collection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.Collection
	for _, c := range m.collections {
		if ownerID == "" || c.OwnerID == ownerID {
			out = append(out, c.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *model.Collection) int {
		return cmp.Or(strings.Compare(a.Title, b.Title), strings.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (m *MemoryDatabase) GetCollection(_ context.Context, id string) (*model.Collection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collections[id].Clone(), nil
}

func (m *MemoryDatabase) CreateCollection(_ context.Context, c *model.Collection) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.collections[c.ID]; ok {
		return fmt.Errorf("creating collection: duplicate id %s", c.ID)
	}
	m.collections[c.ID] = c.Clone()
	return nil
}

func (m *MemoryDatabase) UpdateCollection(_ context.Context, c *model.Collection) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.collections[c.ID]
	if !ok {
		return fmt.Errorf("%w: collection %s", av.ErrNotFound, c.ID)
	}
	cur.Title = c.Title
	cur.Visibility = c.Visibility
	cur.FileIDs = slices.Clone(c.FileIDs)
	cur.UpdatedAt = c.UpdatedAt
	return nil
}

func (m *MemoryDatabase) DeleteCollection(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections, id)
	return nil
}

// Profile operations

func (m *MemoryDatabase) GetProfile(_ context.Context, id string) (*model.UserProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryDatabase) CreateProfile(_ context.Context, p *model.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.profiles[p.ID]; ok {
		return fmt.Errorf("creating profile: duplicate id %s", p.ID)
	}
	cp := *p
	m.profiles[p.ID] = &cp
	return nil
}

func (m *MemoryDatabase) UpdateProfile(_ context.Context, p *model.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.profiles[p.ID]; !ok {
		return fmt.Errorf("%w: profile %s", av.ErrNotFound, p.ID)
	}
	cp := *p
	m.profiles[p.ID] = &cp
	return nil
}

// Account operations

func (m *MemoryDatabase) CreateAccount(_ context.Context, a *model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.accounts {
		if strings.EqualFold(existing.Email, a.Email) {
			return fmt.Errorf("creating account: email %s already registered", a.Email)
		}
	}
	m.accounts[a.ID] = cloneAccount(a)
	return nil
}

func (m *MemoryDatabase) GetAccount(_ context.Context, id string) (*model.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, nil
	}
	return cloneAccount(a), nil
}

func (m *MemoryDatabase) GetAccountByEmail(_ context.Context, email string) (*model.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.accounts {
		if strings.EqualFold(a.Email, email) {
			return cloneAccount(a), nil
		}
	}
	return nil, nil
}

func (m *MemoryDatabase) MarkEmailVerified(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[id]
	if !ok {
		return fmt.Errorf("%w: account %s", av.ErrNotFound, id)
	}
	if a.EmailVerifiedAt == nil {
		a.EmailVerifiedAt = &at
	}
	return nil
}

func (m *MemoryDatabase) Migrate() error         { return nil }
func (m *MemoryDatabase) CheckMigrations() error { return nil }
func (m *MemoryDatabase) Close() error           { return nil }

func sortNewestFirst(files []*model.File) {
	slices.SortFunc(files, func(a, b *model.File) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), strings.Compare(a.ID, b.ID))
	})
}

func cloneAccount(a *model.Account) *model.Account {
	cp := *a
	if a.EmailVerifiedAt != nil {
		t := *a.EmailVerifiedAt
		cp.EmailVerifiedAt = &t
	}
	return &cp
}

var _ Store = (*MemoryDatabase)(nil)
