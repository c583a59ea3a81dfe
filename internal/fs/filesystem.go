package fs

import (
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"

	"academic-vault/internal/av"
)

// IgnoreFileName is the per-directory ignore file honoured when collecting a directory.
const IgnoreFileName = ".avignore"

// OSFilesystemManager is the real filesystem implementation of av.FilesystemManager.
type OSFilesystemManager struct {
	ignorePatterns []string
}

// NewOSFilesystemManager creates a filesystem manager that skips files matching
// ignorePatterns in addition to each directory's .avignore.
func NewOSFilesystemManager(ignorePatterns []string) *OSFilesystemManager {
	return &OSFilesystemManager{ignorePatterns: ignorePatterns}
}

// Collect resolves rawPath into upload candidates.
func (m *OSFilesystemManager) Collect(rawPath string, recursive bool) ([]av.RawFile, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := os.Lstat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}
	if err := checkMode(absPath, info.Mode()); err != nil {
		return nil, err
	}

	if !info.IsDir() {
		return []av.RawFile{candidate(absPath, info)}, nil
	}
	return m.collectDir(absPath, recursive)
}

func (m *OSFilesystemManager) collectDir(root string, recursive bool) ([]av.RawFile, error) {
	local, err := ParseIgnoreFile(filepath.Join(root, IgnoreFileName))
	if err != nil {
		return nil, err
	}
	patterns := append(append(append([]string{}, defaultIgnorePatterns...), m.ignorePatterns...), local...)
	matcher := NewIgnoreMatcher(patterns)

	var files []av.RawFile
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && (!recursive || matcher.Match(rel, true)) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || matcher.Match(rel, false) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", p, err)
		}
		files = append(files, candidate(p, info))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}
	return files, nil
}

func candidate(path string, info fs.FileInfo) av.RawFile {
	return av.RawFile{
		Name:        filepath.Base(path),
		Size:        info.Size(),
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

// checkMode rejects file types that cannot be uploaded.
func checkMode(path string, mode fs.FileMode) error {
	switch {
	case mode&os.ModeSymlink != 0:
		return fmt.Errorf("symlinks not supported: %s", path)
	case mode&os.ModeDevice != 0:
		return fmt.Errorf("device files not supported: %s", path)
	case mode&os.ModeNamedPipe != 0:
		return fmt.Errorf("named pipes not supported: %s", path)
	case mode&os.ModeSocket != 0:
		return fmt.Errorf("sockets not supported: %s", path)
	}
	return nil
}

// Compile-time check that OSFilesystemManager implements av.FilesystemManager interface
var _ av.FilesystemManager = (*OSFilesystemManager)(nil)
