package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
store:
  backend: sqlite
  sqlite_path: "./kv.db"
  op_timeout: 750ms
data:
  path: "./books.json"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Store.Backend != "sqlite" {
		t.Errorf("backend = %s", cfg.Store.Backend)
	}
	if cfg.Store.OpTimeout != 750*time.Millisecond {
		t.Errorf("op_timeout = %v", cfg.Store.OpTimeout)
	}
	if want := filepath.Join(dir, "kv.db"); cfg.Store.SQLitePath != want {
		t.Errorf("sqlite_path = %s, want %s", cfg.Store.SQLitePath, want)
	}
	if want := filepath.Join(dir, "books.json"); cfg.Data.Path != want {
		t.Errorf("data path = %s, want %s", cfg.Data.Path, want)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_envOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("store:\n  addr: \"10.0.0.1:6379\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvRedisAddr, "redis.local:6380")
	t.Setenv(EnvStoreBackend, "memory")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Store.Addr != "redis.local:6380" {
		t.Errorf("addr = %s", cfg.Store.Addr)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("backend = %s", cfg.Store.Backend)
	}
}

func TestLoadOrDefault_missingFile(t *testing.T) {
	t.Setenv(EnvRedisAddr, "")
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Store.Addr != DefaultRedisAddr {
		t.Errorf("addr = %s, want %s", cfg.Store.Addr, DefaultRedisAddr)
	}
}

func TestLoadOrDefault_parseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server: [unterminated"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadOrDefault(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Store.Backend != "redis" || cfg.Store.Addr != DefaultRedisAddr {
		t.Errorf("store defaults: %+v", cfg.Store)
	}
	if cfg.Encoding.Kind != "hashing" || cfg.Encoding.Dimensions != 384 {
		t.Errorf("encoding defaults: %+v", cfg.Encoding)
	}
	if cfg.Query.DefaultK != 5 || cfg.Query.MaxK != 100 {
		t.Errorf("query defaults: %+v", cfg.Query)
	}
	if cfg.Index.Name != "books" || cfg.Index.Workers != 8 {
		t.Errorf("index defaults: %+v", cfg.Index)
	}
	if cfg.Store.Retries() != DefaultMaxRetries {
		t.Errorf("max_retries = %d", cfg.Store.Retries())
	}
}

func TestLoad_maxRetries(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want int
	}{
		{"unset", "store:\n  backend: memory\n", DefaultMaxRetries},
		{"zero disables retries", "store:\n  max_retries: 0\n", 0},
		{"negative clamps to zero", "store:\n  max_retries: -1\n", 0},
		{"explicit", "store:\n  max_retries: 7\n", 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0600); err != nil {
				t.Fatal(err)
			}
			cfg, err := Load(path)
			if err != nil {
				t.Fatal(err)
			}
			if got := cfg.Store.Retries(); got != tt.want {
				t.Errorf("retries = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := &Config{
		Server: ServerConfig{Host: "localhost", Port: 9090},
		Store:  StoreConfig{Backend: "memory"},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
}
