package encryption

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"academic-vault/internal/av"
)

// testMagic marks blobs written by TestEncryptor.
const testMagic = "AVTEST1\n"

// TestEncryptor is a reversible stand-in for AgeEncryptor in tests and the
// "test" encryption type. Output is testMagic followed by the plaintext, so
// sealed blobs are deterministic and visibly distinct from what was uploaded.
// Unlock only checks the passphrase once Setup has recorded one.
type TestEncryptor struct {
	mu         sync.Mutex
	passphrase *string
}

var _ av.Encryptor = (*TestEncryptor)(nil)

func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.passphrase = &passphrase
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := io.Copy(w, io.MultiReader(bytes.NewReader([]byte(testMagic)), r)); err != nil {
		return fmt.Errorf("sealing test blob: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Unlock(passphrase string) (av.DecryptionContext, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.passphrase != nil && *e.passphrase != passphrase {
		return nil, fmt.Errorf("unsealing test key: %w", av.ErrBadPassphrase)
	}
	return &TestDecryptionContext{}, nil
}

// IsConfigured is always true; there are no keys to create.
func (e *TestEncryptor) IsConfigured() bool { return true }

// TestDecryptionContext opens blobs sealed by TestEncryptor.
type TestDecryptionContext struct{}

var _ av.DecryptionContext = (*TestDecryptionContext)(nil)

var errNotTestBlob = errors.New("blob was not sealed by the test encryptor")

func (c *TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(testMagic))
	if err != nil || string(head) != testMagic {
		return errNotTestBlob
	}
	if _, err := br.Discard(len(testMagic)); err != nil {
		return fmt.Errorf("opening test blob: %w", err)
	}
	if _, err := io.Copy(w, br); err != nil {
		return fmt.Errorf("opening test blob: %w", err)
	}
	return nil
}
