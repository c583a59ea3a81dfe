package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"academic-vault/internal/app"

	"golang.org/x/term"
)

// EnvPassphrase lets scripts unlock encrypted files without a prompt.
const EnvPassphrase = "AV_PASSPHRASE"

var stdinReader = bufio.NewReader(os.Stdin)

// promptSecret reads a secret without echo when stdin is a terminal, or one
// line from stdin otherwise.
func promptSecret(label string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", label)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", strings.ToLower(label), err)
		}
		return string(b), nil
	}
	line, err := stdinReader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// promptNewSecret asks twice and requires both answers to match.
func promptNewSecret(label string) (string, error) {
	first, err := promptSecret(label)
	if err != nil {
		return "", err
	}
	if first == "" {
		return "", fmt.Errorf("%s must not be empty", strings.ToLower(label))
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return first, nil
	}
	second, err := promptSecret("Confirm " + strings.ToLower(label))
	if err != nil {
		return "", err
	}
	if first != second {
		return "", fmt.Errorf("%ss do not match", strings.ToLower(label))
	}
	return first, nil
}

// unlock opens encrypted storage before commands that read file contents.
func unlock(a *app.AVApp) error {
	if !a.Locked() {
		return nil
	}
	passphrase := os.Getenv(EnvPassphrase)
	if passphrase == "" {
		var err error
		if passphrase, err = promptSecret("Passphrase"); err != nil {
			return err
		}
	}
	return a.Unlock(passphrase)
}

func readAll(r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return string(b), nil
}
