package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"academic-vault/internal/av"
)

// EncryptedStore wraps an ObjectStore so blobs are encrypted at rest.
// Writes only need the public key. Reads require Unlock first.
type EncryptedStore struct {
	inner     av.ObjectStore
	encryptor av.Encryptor
	tempDir   string

	mu  sync.RWMutex
	dec av.DecryptionContext
}

var _ av.ObjectStore = (*EncryptedStore)(nil)

// NewEncryptedStore wraps inner with enc. Ciphertext is staged in tempDir
// ("" means the OS default) so its size is known before upload.
func NewEncryptedStore(inner av.ObjectStore, enc av.Encryptor, tempDir string) *EncryptedStore {
	return &EncryptedStore{inner: inner, encryptor: enc, tempDir: tempDir}
}

// Unlock opens the private key for the rest of the session.
func (s *EncryptedStore) Unlock(passphrase string) error {
	dec, err := s.encryptor.Unlock(passphrase)
	if err != nil {
		return fmt.Errorf("unlocking object store: %w", err)
	}
	s.mu.Lock()
	s.dec = dec
	s.mu.Unlock()
	return nil
}

// Locked reports whether reads are currently refused.
func (s *EncryptedStore) Locked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dec == nil
}

// Put encrypts size bytes from r and stores the ciphertext under key.
func (s *EncryptedStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	tmp, err := os.CreateTemp(s.tempDir, "av-enc-*")
	if err != nil {
		return fmt.Errorf("creating encryption buffer: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	cr := &countingReader{r: r}
	if err := s.encryptor.Encrypt(cr, tmp); err != nil {
		return fmt.Errorf("encrypting %s: %w", key, err)
	}
	if cr.n != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, cr.n)
	}

	info, err := tmp.Stat()
	if err != nil {
		return fmt.Errorf("stat encryption buffer: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewinding encryption buffer: %w", err)
	}
	return s.inner.Put(ctx, key, tmp, info.Size(), "application/octet-stream")
}

// Get decrypts the object stored under key into w.
func (s *EncryptedStore) Get(ctx context.Context, key string, w io.Writer) error {
	s.mu.RLock()
	dec := s.dec
	s.mu.RUnlock()
	if dec == nil {
		return av.ErrLocked
	}

	pr, pw := io.Pipe()
	getErr := make(chan error, 1)
	go func() {
		err := s.inner.Get(ctx, key, pw)
		pw.CloseWithError(err)
		getErr <- err
	}()

	err := dec.Decrypt(pr, w)
	pr.CloseWithError(err)
	gerr := <-getErr
	if err != nil {
		if errors.Is(gerr, av.ErrNotFound) {
			return gerr
		}
		return fmt.Errorf("decrypting %s: %w", key, err)
	}
	return gerr
}

// Delete removes the ciphertext objects.
func (s *EncryptedStore) Delete(ctx context.Context, keys ...string) error {
	return s.inner.Delete(ctx, keys...)
}

// ValidateSetup checks the encryptor keys and the wrapped store.
func (s *EncryptedStore) ValidateSetup(ctx context.Context) error {
	if !s.encryptor.IsConfigured() {
		return fmt.Errorf("encryption keys not configured: run `av config init`")
	}
	return s.inner.ValidateSetup(ctx)
}
