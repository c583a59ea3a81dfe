package av

import (
	"context"
	"io"
	"path"
	"strings"
)

// ObjectStore is the blob side of the remote data gateway.
// All operations stream through io.Reader/io.Writer so large uploads are not
// buffered in memory.
type ObjectStore interface {
	// Put stores size bytes read from r under key.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// Get writes the object stored under key to w.
	Get(ctx context.Context, key string, w io.Writer) error

	// Delete removes the objects stored under keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// ValidateSetup verifies that the store is reachable and writable.
	ValidateSetup(ctx context.Context) error
}

// StorageKey returns the owner-scoped object key for an uploaded file:
// <ownerID>/<fileID>/<base name>.
func StorageKey(ownerID, fileID, name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == ".." {
		base = "file"
	}
	return ownerID + "/" + fileID + "/" + base
}
