package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths are the locations av uses when the config does not say otherwise.
type Paths struct {
	ConfigFile string
	BaseDir    string
}

// LogDir is where av.log is written.
func (p Paths) LogDir() string { return filepath.Join(p.BaseDir, "log") }

// DotEnvFiles are loaded at startup, working directory first. Variables
// already in the environment win.
func (p Paths) DotEnvFiles() []string {
	return []string{".env", filepath.Join(p.BaseDir, ".env")}
}

// DefaultPaths resolves, in order of preference:
//   - config file: $AV_CONFIG_PATH, $XDG_CONFIG_HOME/av.toml, ~/.config/av.toml
//   - base dir:    $AV_HOME, $XDG_DATA_HOME/av, ~/.local/share/av
func DefaultPaths() (Paths, error) {
	var p Paths
	var err error
	if p.ConfigFile, err = resolve("AV_CONFIG_PATH", "XDG_CONFIG_HOME", "av.toml", ".config"); err != nil {
		return Paths{}, err
	}
	if p.BaseDir, err = resolve("AV_HOME", "XDG_DATA_HOME", "av", ".local", "share"); err != nil {
		return Paths{}, err
	}
	return p, nil
}

func resolve(override, xdg, name string, homeRel ...string) (string, error) {
	if v := os.Getenv(override); v != "" {
		return v, nil
	}
	if v := os.Getenv(xdg); v != "" {
		return filepath.Join(v, name), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(append(append([]string{home}, homeRel...), name)...), nil
}
