package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotSignedIn is returned when a command needs a session and none is stored.
var ErrNotSignedIn = errors.New("not signed in (run 'av auth login' or 'av auth guest')")

func (a *AVApp) sessionPath() string {
	return filepath.Join(a.cfg.BaseDir, "session")
}

// saveToken writes the session token readable only by the current user.
// The file is replaced atomically so a crash never leaves half a token.
func (a *AVApp) saveToken(token string) error {
	path := a.sessionPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".session-*")
	if err != nil {
		return fmt.Errorf("creating session file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("setting session file mode: %w", err)
	}
	if _, err := tmp.WriteString(token + "\n"); err != nil {
		tmp.Close()
		return fmt.Errorf("writing session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing session file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("storing session file: %w", err)
	}
	return nil
}

func (a *AVApp) loadToken() (string, error) {
	data, err := os.ReadFile(a.sessionPath())
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrNotSignedIn
	}
	if err != nil {
		return "", fmt.Errorf("reading session file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNotSignedIn
	}
	return token, nil
}

func (a *AVApp) clearToken() error {
	if err := os.Remove(a.sessionPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing session file: %w", err)
	}
	return nil
}
