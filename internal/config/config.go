package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Environment variables holding secrets. Secrets are never written to the
// config file.
const (
	EnvJWTSecret        = "AV_JWT_SECRET"
	EnvAIAPIKey         = "AV_AI_API_KEY"
	EnvStorageAccessKey = "AV_STORAGE_ACCESS_KEY"
	EnvStorageSecretKey = "AV_STORAGE_SECRET_KEY"
	EnvSessionPassword  = "AV_REDIS_PASSWORD"
)

// Config represents the main configuration for av.
type Config struct {
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Database   DatabaseConfig   `toml:"database"`
	Storage    StorageConfig    `toml:"storage"`
	Encryption EncryptionConfig `toml:"encryption"`
	Auth       AuthConfig       `toml:"auth"`
	AI         AIConfig         `toml:"ai"`
	StatusFeed StatusFeedConfig `toml:"status_feed"`
	Filesystem FilesystemConfig `toml:"filesystem"`
}

// DatabaseConfig represents configuration for the records database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// StorageConfig represents configuration for the object store holding file blobs.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type StorageConfig struct {
	Type string `toml:"type"` // "memory", "filesystem", "s3" or "minio"

	// Filesystem-specific fields (only used when Type == "filesystem")
	Root string `toml:"root,omitempty"`

	// Bucket fields (used when Type == "s3" or "minio")
	Bucket    string `toml:"bucket,omitempty"`
	Prefix    string `toml:"prefix,omitempty"`
	Region    string `toml:"region,omitempty"`
	Endpoint  string `toml:"endpoint,omitempty"`
	UseSSL    bool   `toml:"use_ssl,omitempty"`
	PathStyle bool   `toml:"path_style,omitempty"`

	// Encrypt wraps the store so blobs are encrypted at rest with the
	// configured encryptor.
	Encrypt bool `toml:"encrypt,omitempty"`

	AccessKey string `toml:"-"`
	SecretKey string `toml:"-"`
}

// EncryptionConfig holds paths to the age key pair used for encryption.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default), "test" or "none"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`

	// ScryptWorkFactor is the log2 scrypt cost sealing the private key.
	// Zero uses age's default.
	ScryptWorkFactor int `toml:"scrypt_work_factor,omitempty"`
}

// AuthConfig holds identity settings.
type AuthConfig struct {
	Sessions SessionsConfig `toml:"sessions"`

	JWTSecret string `toml:"-"`
}

// SessionsConfig selects where sign-in sessions are kept.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type SessionsConfig struct {
	Type string `toml:"type"`          // "jwt" (stateless), "memory" or "redis"
	TTL  string `toml:"ttl,omitempty"` // Go duration, defaults to 24h

	// Redis-specific fields (only used when Type == "redis")
	Addr string `toml:"addr,omitempty"`
	DB   int    `toml:"db,omitempty"`

	Password string `toml:"-"`
}

// SessionTTL parses TTL, falling back to DefaultSessionTTL when unset.
func (c SessionsConfig) SessionTTL() (time.Duration, error) {
	if c.TTL == "" {
		return DefaultSessionTTL, nil
	}
	d, err := time.ParseDuration(c.TTL)
	if err != nil {
		return 0, fmt.Errorf("parsing session ttl: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("session ttl must be positive, got %s", c.TTL)
	}
	return d, nil
}

// DefaultSessionTTL is the session lifetime when none is configured.
const DefaultSessionTTL = 24 * time.Hour

// AIConfig configures the OpenAI-compatible chat completions endpoint.
type AIConfig struct {
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
	Timeout string `toml:"timeout,omitempty"` // Go duration, defaults to 60s

	APIKey string `toml:"-"`
}

// RequestTimeout parses Timeout, falling back to 60s when unset.
func (c AIConfig) RequestTimeout() (time.Duration, error) {
	if c.Timeout == "" {
		return 60 * time.Second, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("parsing ai timeout: %w", err)
	}
	return d, nil
}

// StatusFeedConfig selects the source of file lifecycle events.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type StatusFeedConfig struct {
	Type string `toml:"type"` // "simulated" (default) or "amqp"

	// AMQP-specific fields (only used when Type == "amqp")
	URL      string `toml:"url,omitempty"`
	Exchange string `toml:"exchange,omitempty"` // topic exchange, routing key = file id
}

// FilesystemConfig holds filesystem-related settings.
type FilesystemConfig struct {
	Ignore []string `toml:"ignore"`
}

// NewConfig creates a new Config rooted at baseDir with default settings.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir:  baseDir,
		LogDir:   filepath.Join(baseDir, "log"),
		Database: DatabaseConfig{Type: "sqlite", DataDir: filepath.Join(baseDir, "db")},
		Storage:  StorageConfig{Type: "filesystem", Root: filepath.Join(baseDir, "objects")},
		Encryption: EncryptionConfig{
			Type:           "none",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "av.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "av.key"),
		},
		Auth: AuthConfig{Sessions: SessionsConfig{Type: "jwt", TTL: DefaultSessionTTL.String()}},
		AI: AIConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
			Timeout: "60s",
		},
		StatusFeed: StatusFeedConfig{Type: "simulated"},
	}
}

// ApplyEnv copies secrets from the environment into cfg.
func ApplyEnv(cfg *Config) {
	cfg.Auth.JWTSecret = os.Getenv(EnvJWTSecret)
	cfg.Auth.Sessions.Password = os.Getenv(EnvSessionPassword)
	cfg.AI.APIKey = os.Getenv(EnvAIAPIKey)
	cfg.Storage.AccessKey = os.Getenv(EnvStorageAccessKey)
	cfg.Storage.SecretKey = os.Getenv(EnvStorageSecretKey)
}

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are skipped; variables already set win.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path and applies
// secrets from the environment.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	ApplyEnv(cfg)
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
