package av

import (
	"io"
	"time"

	"github.com/google/uuid"
)

// Logger is the slog-style sink the vault reports to. args alternate keys
// and values.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NopLogger drops everything.
type NopLogger struct{}

func NewNopLogger() *NopLogger { return &NopLogger{} }

func (*NopLogger) Debug(string, ...any) {}
func (*NopLogger) Info(string, ...any)  {}
func (*NopLogger) Warn(string, ...any)  {}
func (*NopLogger) Error(string, ...any) {}

// Clock stamps created, updated and published times.
type Clock interface {
	Now() time.Time
}

// RealClock is the wall clock in UTC.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }

// IDGenerator mints folder, file and collection ids.
type IDGenerator interface {
	New() string
}

// UUIDGenerator mints random v4 UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.NewString() }

// Encryptor seals blobs before they reach the object store. Sealing needs
// only the public half of the vault key. Reading blobs back needs the
// passphrase, which Unlock trades for a DecryptionContext.
type Encryptor interface {
	// Setup creates the vault key pair, sealing the private half with passphrase.
	Setup(passphrase string) error

	Encrypt(r io.Reader, w io.Writer) error

	// Unlock returns ErrBadPassphrase when passphrase does not open the key.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether Setup has run.
	IsConfigured() bool
}

// DecryptionContext holds the unlocked key in memory for one session.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
