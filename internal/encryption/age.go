package encryption

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"filippo.io/age"

	"academic-vault/internal/av"
	"academic-vault/internal/config"
)

// AgeEncryptor seals vault blobs with filippo.io/age. Each vault owns one
// X25519 key pair: the recipient (public key) is kept in plaintext so uploads
// never need the passphrase, and the identity (private key) is itself an age
// file sealed to the passphrase with scrypt.
type AgeEncryptor struct {
	recipientPath string
	identityPath  string

	// workFactor overrides the scrypt work factor for the sealed identity.
	// Zero keeps age's default.
	workFactor int

	mu        sync.Mutex
	recipient age.Recipient
}

var _ av.Encryptor = (*AgeEncryptor)(nil)

func NewAgeEncryptor(cfg config.EncryptionConfig) *AgeEncryptor {
	return &AgeEncryptor{
		recipientPath: cfg.PublicKeyPath,
		identityPath:  cfg.PrivateKeyPath,
	}
}

// Setup creates the vault key pair. It refuses to replace existing keys,
// since blobs already in the store would become unreadable.
func (e *AgeEncryptor) Setup(passphrase string) error {
	if strings.TrimSpace(passphrase) == "" {
		return fmt.Errorf("%w: passphrase must not be empty", av.ErrValidation)
	}
	if e.IsConfigured() {
		return fmt.Errorf("vault keys already exist at %s", filepath.Dir(e.identityPath))
	}

	id, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("generating vault key: %w", err)
	}

	seal, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("creating passphrase recipient: %w", err)
	}
	if e.workFactor > 0 {
		seal.SetWorkFactor(e.workFactor)
	}

	// Identity first: a recipient without its identity would let uploads
	// succeed into blobs nobody can open.
	err = writeKeyFile(e.identityPath, 0600, func(w io.Writer) error {
		sw, err := age.Encrypt(w, seal)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(sw, id.String()+"\n"); err != nil {
			return err
		}
		return sw.Close()
	})
	if err != nil {
		return fmt.Errorf("writing sealed vault key: %w", err)
	}

	err = writeKeyFile(e.recipientPath, 0644, func(w io.Writer) error {
		_, err := io.WriteString(w, id.Recipient().String()+"\n")
		return err
	})
	if err != nil {
		return fmt.Errorf("writing vault recipient: %w", err)
	}

	e.mu.Lock()
	e.recipient = id.Recipient()
	e.mu.Unlock()
	return nil
}

// Encrypt seals r to the vault recipient.
func (e *AgeEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	recipient, err := e.vaultRecipient()
	if err != nil {
		return err
	}

	ew, err := age.Encrypt(w, recipient)
	if err != nil {
		return fmt.Errorf("starting encryption: %w", err)
	}
	if _, err := io.Copy(ew, r); err != nil {
		return fmt.Errorf("encrypting blob: %w", err)
	}
	if err := ew.Close(); err != nil {
		return fmt.Errorf("finalizing encryption: %w", err)
	}
	return nil
}

// Unlock opens the sealed identity. A wrong passphrase yields av.ErrBadPassphrase.
func (e *AgeEncryptor) Unlock(passphrase string) (av.DecryptionContext, error) {
	f, err := os.Open(e.identityPath)
	if err != nil {
		return nil, fmt.Errorf("opening sealed vault key: %w", err)
	}
	defer f.Close()

	scrypt, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating passphrase identity: %w", err)
	}

	r, err := age.Decrypt(f, scrypt)
	if err != nil {
		var noMatch *age.NoIdentityMatchError
		if errors.As(err, &noMatch) {
			return nil, fmt.Errorf("unsealing vault key: %w", av.ErrBadPassphrase)
		}
		return nil, fmt.Errorf("unsealing vault key: %w", err)
	}

	ids, err := age.ParseIdentities(r)
	if err != nil {
		return nil, fmt.Errorf("parsing vault key: %w", err)
	}
	return &AgeDecryptionContext{identities: ids}, nil
}

// IsConfigured reports whether both key files are present.
func (e *AgeEncryptor) IsConfigured() bool {
	for _, p := range []string{e.recipientPath, e.identityPath} {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

func (e *AgeEncryptor) vaultRecipient() (age.Recipient, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.recipient != nil {
		return e.recipient, nil
	}

	f, err := os.Open(e.recipientPath)
	if err != nil {
		return nil, fmt.Errorf("vault encryption is not set up (run 'av config encryption'): %w", err)
	}
	defer f.Close()

	rs, err := age.ParseRecipients(f)
	if err != nil {
		return nil, fmt.Errorf("parsing vault recipient: %w", err)
	}
	e.recipient = rs[0]
	return e.recipient, nil
}

// writeKeyFile writes a key through a temp file in the target directory so a
// failed Setup never leaves a truncated key behind.
func writeKeyFile(path string, perm os.FileMode, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".key-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// AgeDecryptionContext holds the unsealed vault identity for one session.
type AgeDecryptionContext struct {
	identities []age.Identity
}

var _ av.DecryptionContext = (*AgeDecryptionContext)(nil)

func (c *AgeDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	dr, err := age.Decrypt(r, c.identities...)
	if err != nil {
		return fmt.Errorf("opening blob: %w", err)
	}
	if _, err := io.Copy(w, dr); err != nil {
		return fmt.Errorf("decrypting blob: %w", err)
	}
	return nil
}
