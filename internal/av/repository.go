package av

import (
	"context"
	"time"

	"academic-vault/internal/model"
)

// ListFilter scopes a listing of files or folders to one level of the tree.
type ListFilter struct {
	// FolderID is the containing folder for files, or the parent for folders.
	// nil selects the vault root.
	FolderID *string

	// Visibility restricts the listing to private or shared items.
	Visibility model.Visibility

	// OwnerID restricts the listing to one owner. Empty matches every owner.
	OwnerID string
}

// Repository is the record side of the remote data gateway.
// Lookups of a single record return (nil, nil) when the record does not exist.
type Repository interface {
	// Folder operations

	// ListFolders returns the direct children of filter.FolderID ordered by title ascending.
	ListFolders(ctx context.Context, filter ListFilter) ([]*model.Folder, error)

	// ListAllFolders returns every folder of an owner, unordered. Empty ownerID lists all.
	ListAllFolders(ctx context.Context, ownerID string) ([]*model.Folder, error)

	// GetFolder returns a folder by id.
	GetFolder(ctx context.Context, id string) (*model.Folder, error)

	// FolderAncestry returns the chain from the top-level ancestor down to the
	// folder itself, inclusive. Returns ErrAncestryUnavailable when the backend
	// cannot answer the query.
	FolderAncestry(ctx context.Context, id string) ([]*model.Folder, error)

	// CreateFolder inserts a new folder.
	CreateFolder(ctx context.Context, folder *model.Folder) error

	// DeleteFolders deletes folders together with their descendant folders and
	// the file records they contain. Object-storage blobs are not touched.
	DeleteFolders(ctx context.Context, ids []string) error

	// File operations

	// ListFiles returns files directly inside filter.FolderID, newest first.
	ListFiles(ctx context.Context, filter ListFilter) ([]*model.File, error)

	// ListAllFiles returns every file of every owner, newest first.
	ListAllFiles(ctx context.Context) ([]*model.File, error)

	// ListFilesInFolders returns all files whose folder is one of folderIDs.
	ListFilesInFolders(ctx context.Context, folderIDs []string) ([]*model.File, error)

	// GetFile returns a file by id.
	GetFile(ctx context.Context, id string) (*model.File, error)

	// GetFilesByIDs returns the files that exist among ids, in no particular order.
	GetFilesByIDs(ctx context.Context, ids []string) ([]*model.File, error)

	// CreateFile inserts a new file record.
	CreateFile(ctx context.Context, file *model.File) error

	// UpdateFile replaces the mutable fields of a file record.
	UpdateFile(ctx context.Context, file *model.File) error

	// PublishFiles marks files as shared and sets their updated_at.
	PublishFiles(ctx context.Context, ids []string, at time.Time) error

	// DeleteFiles deletes file records. Object-storage blobs are not touched.
	DeleteFiles(ctx context.Context, ids []string) error

	// Collection operations

	// ListCollections returns an owner's collections ordered by title. Empty ownerID lists all.
	ListCollections(ctx context.Context, ownerID string) ([]*model.Collection, error)

	// GetCollection returns a collection by id.
	GetCollection(ctx context.Context, id string) (*model.Collection, error)

	// CreateCollection inserts a new collection.
	CreateCollection(ctx context.Context, collection *model.Collection) error

	// UpdateCollection replaces title, visibility and file ids of a collection.
	UpdateCollection(ctx context.Context, collection *model.Collection) error

	// DeleteCollection deletes a collection record. Member files are not touched.
	DeleteCollection(ctx context.Context, id string) error

	// Profile operations

	// GetProfile returns a user profile by id.
	GetProfile(ctx context.Context, id string) (*model.UserProfile, error)

	// CreateProfile inserts a new profile.
	CreateProfile(ctx context.Context, profile *model.UserProfile) error

	// UpdateProfile replaces display name, role and settings of a profile.
	UpdateProfile(ctx context.Context, profile *model.UserProfile) error

	// Close releases the underlying connection.
	Close() error
}
