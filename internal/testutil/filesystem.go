package testutil

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"

	"academic-vault/internal/av"
)

// MockFilesystemManager is an in-memory filesystem for testing.
// Paths are slash-separated and absolute.
type MockFilesystemManager struct {
	mu    sync.Mutex
	files map[string][]byte
	dirs  map[string]bool
}

var _ av.FilesystemManager = (*MockFilesystemManager)(nil)

// NewMockFilesystemManager creates a new mock filesystem.
func NewMockFilesystemManager() *MockFilesystemManager {
	return &MockFilesystemManager{
		files: make(map[string][]byte),
		dirs:  map[string]bool{"/": true},
	}
}

// AddFile adds a file, creating its parent directories.
func (m *MockFilesystemManager) AddFile(p string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = path.Clean(p)
	m.files[p] = content
	for d := path.Dir(p); ; d = path.Dir(d) {
		m.dirs[d] = true
		if d == "/" || d == "." {
			break
		}
	}
}

// AddDirectory adds an empty directory.
func (m *MockFilesystemManager) AddDirectory(p string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirs[path.Clean(p)] = true
}

// Collect returns the file at rawPath, or the files below the directory at
// rawPath sorted by path.
func (m *MockFilesystemManager) Collect(rawPath string, recursive bool) ([]av.RawFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := path.Clean(rawPath)
	if content, ok := m.files[p]; ok {
		return []av.RawFile{rawFile(p, content)}, nil
	}
	if !m.dirs[p] {
		return nil, fmt.Errorf("path does not exist: %s", rawPath)
	}

	prefix := strings.TrimSuffix(p, "/") + "/"
	var paths []string
	for fp := range m.files {
		if !strings.HasPrefix(fp, prefix) {
			continue
		}
		if !recursive && strings.Contains(fp[len(prefix):], "/") {
			continue
		}
		paths = append(paths, fp)
	}
	sort.Strings(paths)

	out := make([]av.RawFile, 0, len(paths))
	for _, fp := range paths {
		out = append(out, rawFile(fp, m.files[fp]))
	}
	return out, nil
}

// RawFile builds an upload candidate backed by content.
func RawFile(name string, content []byte) av.RawFile {
	return rawFile(name, content)
}

// SizedRawFile builds an upload candidate that reports size without holding
// that many bytes. Opening it yields size zero bytes.
func SizedRawFile(name string, size int64) av.RawFile {
	return av.RawFile{
		Name: path.Base(name),
		Size: size,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(io.LimitReader(zeroReader{}, size)), nil
		},
	}
}

func rawFile(p string, content []byte) av.RawFile {
	data := append([]byte(nil), content...)
	return av.RawFile{
		Name: path.Base(p),
		Size: int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}
