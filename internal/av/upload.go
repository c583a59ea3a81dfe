package av

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"academic-vault/internal/model"
)

// MaxUploadSize is the largest accepted upload.
const MaxUploadSize int64 = 200 * 1024 * 1024

// fileTypesByExt maps accepted extensions to file types. .jpeg and .md are
// stored as jpg and txt.
var fileTypesByExt = map[string]model.FileType{
	".pdf":  model.FileTypePDF,
	".docx": model.FileTypeDOCX,
	".pptx": model.FileTypePPTX,
	".txt":  model.FileTypeTXT,
	".md":   model.FileTypeTXT,
	".png":  model.FileTypePNG,
	".jpg":  model.FileTypeJPG,
	".jpeg": model.FileTypeJPG,
	".mp3":  model.FileTypeMP3,
	".wav":  model.FileTypeWAV,
	".m4a":  model.FileTypeM4A,
	".mp4":  model.FileTypeMP4,
	".mov":  model.FileTypeMOV,
}

// DetectFileType returns the file type for name's extension, case-insensitively.
func DetectFileType(name string) (model.FileType, bool) {
	t, ok := fileTypesByExt[strings.ToLower(filepath.Ext(name))]
	return t, ok
}

// RawFile is an upload candidate.
type RawFile struct {
	Name        string
	Size        int64
	ContentType string

	// Open returns the content. It is called at most once, and only for
	// candidates that pass validation.
	Open func() (io.ReadCloser, error)
}

// UploadResult reports the outcome of one upload batch.
type UploadResult struct {
	Uploaded []*model.File
	Rejected []string

	// Warning is a single user-facing message covering every rejected file.
	Warning string
}

// Upload validates a batch of candidates and uploads the accepted ones
// concurrently into folderID. Rejected candidates have no side effects.
//
// Each accepted file is stored under <owner>/<file id>/<name> and then
// recorded as ready and private; if the record insert fails the stored object
// is removed again. When the last of the concurrently running batches
// settles, the listing is refreshed once.
func (c *Controller) Upload(ctx context.Context, files []RawFile, folderID *string) (*UploadResult, error) {
	if err := c.identity.CanUpload(); err != nil {
		return nil, err
	}

	type candidate struct {
		raw      RawFile
		fileType model.FileType
	}
	var accepted []candidate
	result := &UploadResult{}
	for _, raw := range files {
		fileType, ok := DetectFileType(raw.Name)
		if !ok || raw.Size < 0 || raw.Size > MaxUploadSize || raw.Open == nil {
			result.Rejected = append(result.Rejected, raw.Name)
			continue
		}
		accepted = append(accepted, candidate{raw: raw, fileType: fileType})
	}
	if n := len(result.Rejected); n > 0 {
		result.Warning = fmt.Sprintf("%d file(s) were rejected. Please ensure they are under 200MB and of a supported type.", n)
		c.logger.Warn("upload candidates rejected", "count", n, "names", result.Rejected)
	}
	if len(accepted) == 0 {
		return result, nil
	}

	c.beginBatch()

	uploaded := make([]*model.File, len(accepted))
	errs := make([]error, len(accepted))
	var wg sync.WaitGroup
	for i, cand := range accepted {
		wg.Add(1)
		go func() {
			defer wg.Done()
			uploaded[i], errs[i] = c.uploadOne(ctx, cand.raw, cand.fileType, folderID)
		}()
	}
	wg.Wait()

	for _, f := range uploaded {
		if f != nil {
			result.Uploaded = append(result.Uploaded, f)
		}
	}
	c.logger.Info("upload batch settled", "uploaded", len(result.Uploaded), "failed", len(accepted)-len(result.Uploaded))

	errs = append(errs, c.endBatch(ctx))
	return result, errors.Join(errs...)
}

func (c *Controller) uploadOne(ctx context.Context, raw RawFile, fileType model.FileType, folderID *string) (*model.File, error) {
	id := c.idgen.New()
	key := StorageKey(c.identity.UserID, id, raw.Name)

	content, err := raw.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", raw.Name, err)
	}
	defer content.Close()

	body := &declaredSizeReader{r: content, name: raw.Name, size: raw.Size, left: raw.Size}
	if err := c.store.Put(ctx, key, body, raw.Size, raw.ContentType); err != nil {
		c.logger.Error("failed to store object", "name", raw.Name, "key", key, "error", err)
		return nil, fmt.Errorf("uploading %s: %w", raw.Name, err)
	}

	now := c.clock.Now()
	file := &model.File{
		ID:            id,
		OwnerID:       c.identity.UserID,
		FolderID:      cloneID(folderID),
		Title:         raw.Name,
		Type:          fileType,
		Size:          raw.Size,
		Status:        model.StatusReady,
		Progress:      100,
		Visibility:    model.VisibilityPrivate,
		CollectionIDs: []string{},
		Tags:          []string{},
		CreatedAt:     now,
		UpdatedAt:     now,
		Meta:          &model.FileMeta{StoragePath: key},
	}
	if err := c.repo.CreateFile(ctx, file); err != nil {
		c.logger.Error("failed to record upload, removing object", "name", raw.Name, "key", key, "error", err)
		if delErr := c.store.Delete(ctx, key); delErr != nil {
			c.logger.Warn("failed to remove orphaned object", "key", key, "error", delErr)
		}
		return nil, fmt.Errorf("saving %s: %w", raw.Name, err)
	}
	c.logger.Debug("file uploaded", "file_id", id, "key", key, "size", raw.Size)
	return file, nil
}

// declaredSizeReader passes through exactly size bytes and fails the read
// when the content turns out longer or shorter than declared. The upload
// ceiling is checked against the declared size, so no store ever receives
// more than MaxUploadSize bytes.
type declaredSizeReader struct {
	r    io.Reader
	name string
	size int64
	left int64
}

func (d *declaredSizeReader) Read(p []byte) (int, error) {
	if d.left <= 0 {
		var extra [1]byte
		if n, err := io.ReadFull(d.r, extra[:]); n > 0 {
			return 0, fmt.Errorf("%w: %s is larger than its declared %d bytes", ErrValidation, d.name, d.size)
		} else if err != io.EOF {
			return 0, err
		}
		return 0, io.EOF
	}
	if int64(len(p)) > d.left {
		p = p[:d.left]
	}
	n, err := d.r.Read(p)
	d.left -= int64(n)
	if err == io.EOF && d.left > 0 {
		return n, fmt.Errorf("%w: %s is shorter than its declared %d bytes", ErrValidation, d.name, d.size)
	}
	return n, err
}

func (c *Controller) beginBatch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight++
}

// endBatch refreshes the listing if no other batch is still running.
func (c *Controller) endBatch(ctx context.Context) error {
	c.mu.Lock()
	c.inflight--
	last := c.inflight == 0
	c.mu.Unlock()

	if !last {
		return nil
	}
	return c.Refresh(ctx)
}
