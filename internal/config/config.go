package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for hawk.
type Config struct {
	NodeID     string           `toml:"node_id"`
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir" env:"HAWK_LOG_DIR"`
	LogLevel   string           `toml:"log_level" env:"HAWK_LOG_LEVEL"` // "debug", "info", "warn" or "error"
	Storage    StorageConfig    `toml:"storage"`
	Cache      CacheConfig      `toml:"cache"`
	Vault      VaultConfig      `toml:"vault"`
	Encryption EncryptionConfig `toml:"encryption"`
}

// StorageConfig selects the physical storage.
// This uses a tagged union pattern - the Type field determines how Path is interpreted.
type StorageConfig struct {
	Type string `toml:"type" env:"HAWK_STORAGE_TYPE"` // "json" or "sqlite"
	Path string `toml:"path" env:"HAWK_STORAGE_PATH"` // document file for json, database file for sqlite (":memory:" allowed)
}

// CacheConfig controls the in-memory cache in front of the physical storage.
type CacheConfig struct {
	Enabled       bool     `toml:"enabled" env:"HAWK_CACHE_ENABLED"`
	Lifetime      Duration `toml:"lifetime" env:"HAWK_CACHE_LIFETIME"`
	SweepInterval Duration `toml:"sweep_interval"`
}

// EncryptionConfig holds paths to the age key pair used for snapshot encryption.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// VaultConfig represents configuration for the snapshot vault.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "memory", "s3", or "filesystem"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket string `toml:"s3_bucket,omitempty"`
	S3Prefix string `toml:"s3_prefix,omitempty"`
	S3Region string `toml:"s3_region,omitempty"`
	// S3Endpoint points at an S3 compatible service; empty means AWS.
	S3Endpoint string `toml:"s3_endpoint,omitempty"`
	// Static credentials. When empty the default AWS credential chain is used.
	S3AccessKeyID     string `toml:"-" env:"HAWK_S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `toml:"-" env:"HAWK_S3_SECRET_ACCESS_KEY"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

const (
	DefaultCacheLifetime      = 15 * time.Minute
	DefaultCacheSweepInterval = 50 * time.Millisecond
)

// NewConfig creates a new Config with the provided values and default paths.
func NewConfig(nodeID, baseDir string) *Config {
	return &Config{
		NodeID:   nodeID,
		BaseDir:  baseDir,
		LogDir:   filepath.Join(baseDir, "log"),
		LogLevel: "info",
		Storage: StorageConfig{
			Type: "json",
			Path: filepath.Join(baseDir, "data", "hawk.json"),
		},
		Cache: CacheConfig{
			Enabled:       true,
			Lifetime:      Duration(DefaultCacheLifetime),
			SweepInterval: Duration(DefaultCacheSweepInterval),
		},
		Vault: VaultConfig{
			Type:        "filesystem",
			Name:        "local",
			FSVaultRoot: filepath.Join(baseDir, "vault"),
		},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "hawk.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "hawk.key"),
		},
	}
}

// Validate reports every setting that cannot be used.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Type {
	case "json", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unknown storage type: %q", c.Storage.Type))
	}
	if c.Storage.Path == "" {
		errs = append(errs, errors.New("storage path must be set"))
	}
	if c.Cache.Enabled {
		if c.Cache.Lifetime <= 0 {
			errs = append(errs, fmt.Errorf("cache lifetime must be positive, got %s", c.Cache.Lifetime))
		}
		if c.Cache.SweepInterval <= 0 {
			errs = append(errs, fmt.Errorf("cache sweep_interval must be positive, got %s", c.Cache.SweepInterval))
		}
	}
	switch c.Vault.Type {
	case "memory":
	case "filesystem":
		if c.Vault.FSVaultRoot == "" {
			errs = append(errs, errors.New("filesystem vault requires fs_vault_root"))
		}
	case "s3":
		if c.Vault.S3Bucket == "" {
			errs = append(errs, errors.New("s3 vault requires s3_bucket"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown vault type: %q", c.Vault.Type))
	}
	switch c.Encryption.Type {
	case "", "age", "test":
	default:
		errs = append(errs, fmt.Errorf("unknown encryption type: %q", c.Encryption.Type))
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level: %q", c.LogLevel))
	}
	return errors.Join(errs...)
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

// ReadFromFile reads a Config from the specified file path and applies the
// environment overrides.
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
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
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
