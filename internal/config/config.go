// Package config provides configuration loading and structs for bookrec.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables that override file settings.
const (
	EnvRedisAddr     = "BOOKREC_REDIS_ADDR"
	EnvRedisPassword = "BOOKREC_REDIS_PASSWORD"
	EnvStoreBackend  = "BOOKREC_STORE_BACKEND"
	EnvDataPath      = "BOOKREC_DATA_PATH"
)

// Config holds all configuration for the application.
type Config struct {
	Debug    bool           `yaml:"debug"`
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Data     DataConfig     `yaml:"data"`
	Encoding EncodingConfig `yaml:"encoding"`
	Index    IndexConfig    `yaml:"index"`
	Query    QueryConfig    `yaml:"query"`
	Watch    WatchConfig    `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StoreConfig selects and tunes the key-value store connection.
type StoreConfig struct {
	Backend     string        `yaml:"backend"` // redis, sqlite or memory
	Addr        string        `yaml:"addr"`
	DB          int           `yaml:"db"`
	Password    string        `yaml:"password"`
	SQLitePath  string        `yaml:"sqlite_path"`
	KeyPrefix   string        `yaml:"key_prefix"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	OpTimeout   time.Duration `yaml:"op_timeout"`
	MaxRetries  *int          `yaml:"max_retries"` // unset = 3, 0 = no retries
	MinBackoff  time.Duration `yaml:"min_backoff"`
	MaxBackoff  time.Duration `yaml:"max_backoff"`
}

// Retries returns the retry count for store commands. Unset means
// DefaultMaxRetries and negative values mean none.
func (c StoreConfig) Retries() int {
	if c.MaxRetries == nil {
		return DefaultMaxRetries
	}
	if *c.MaxRetries < 0 {
		return 0
	}
	return *c.MaxRetries
}

// DataConfig holds input paths.
type DataConfig struct {
	Path             string `yaml:"path"`
	KeywordIndexPath string `yaml:"keyword_index_path"`
}

// EncodingConfig selects the feature encoder.
type EncodingConfig struct {
	Kind       string `yaml:"kind"` // hashing, precomputed or onnx
	Dimensions int    `yaml:"dimensions"`
	ModelPath  string `yaml:"model_path"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
}

// IndexConfig tunes the index builder.
type IndexConfig struct {
	Name         string  `yaml:"name"`
	Workers      int     `yaml:"workers"`
	WritesPerSec float64 `yaml:"writes_per_sec"` // 0 = unlimited
}

// QueryConfig tunes the query engine.
type QueryConfig struct {
	DefaultK int     `yaml:"default_k"`
	MaxK     int     `yaml:"max_k"`
	Radius   float64 `yaml:"radius"`
	Workers  int     `yaml:"workers"`
}

// WatchConfig controls rebuilding when the data path changes (serve mode only).
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// Load reads and parses the config file at path, expands paths, applies defaults
// and then environment overrides. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Data.Path = expandPath(cfg.Data.Path, configDir)
	cfg.Data.KeywordIndexPath = expandPath(cfg.Data.KeywordIndexPath, configDir)
	cfg.Store.SQLitePath = expandPath(cfg.Store.SQLitePath, configDir)
	if cfg.Encoding.ModelPath != "" {
		cfg.Encoding.ModelPath = expandPath(cfg.Encoding.ModelPath, configDir)
	}

	ApplyEnv(&cfg)
	return &cfg, nil
}

// LoadOrDefault loads path, or returns defaults plus environment overrides when
// the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	cfg = &Config{}
	ApplyDefaults(cfg)
	ApplyEnv(cfg)
	return cfg, nil
}

// ApplyEnv overrides store and data settings from the environment.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv(EnvRedisAddr); v != "" {
		cfg.Store.Addr = v
	}
	if v := os.Getenv(EnvRedisPassword); v != "" {
		cfg.Store.Password = v
	}
	if v := os.Getenv(EnvStoreBackend); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv(EnvDataPath); v != "" {
		cfg.Data.Path = v
	}
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
