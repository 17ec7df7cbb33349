package config

import "time"

// DefaultRedisAddr is used when neither the config nor BOOKREC_REDIS_ADDR set one.
const DefaultRedisAddr = "127.0.0.1:6379"

// DefaultMaxRetries applies when store.max_retries is not set.
const DefaultMaxRetries = 3

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "redis"
	}
	if cfg.Store.Addr == "" {
		cfg.Store.Addr = DefaultRedisAddr
	}
	if cfg.Store.SQLitePath == "" {
		cfg.Store.SQLitePath = "./data/bookrec.db"
	}
	if cfg.Store.DialTimeout == 0 {
		cfg.Store.DialTimeout = 5 * time.Second
	}
	if cfg.Store.OpTimeout == 0 {
		cfg.Store.OpTimeout = 3 * time.Second
	}
	if cfg.Store.MaxRetries == nil {
		retries := DefaultMaxRetries
		cfg.Store.MaxRetries = &retries
	} else if *cfg.Store.MaxRetries < 0 {
		retries := 0
		cfg.Store.MaxRetries = &retries
	}
	if cfg.Store.MinBackoff == 0 {
		cfg.Store.MinBackoff = 100 * time.Millisecond
	}
	if cfg.Store.MaxBackoff == 0 {
		cfg.Store.MaxBackoff = 2 * time.Second
	}
	if cfg.Data.Path == "" {
		cfg.Data.Path = "./data/books"
	}
	if cfg.Data.KeywordIndexPath == "" {
		cfg.Data.KeywordIndexPath = "./data/indices/books.bleve"
	}
	if cfg.Encoding.Kind == "" {
		cfg.Encoding.Kind = "hashing"
	}
	if cfg.Encoding.Dimensions == 0 {
		cfg.Encoding.Dimensions = 384
	}
	if cfg.Encoding.MaxTokens == 0 {
		cfg.Encoding.MaxTokens = 256
	}
	if cfg.Encoding.CacheSize == 0 {
		cfg.Encoding.CacheSize = 10000
	}
	if cfg.Index.Name == "" {
		cfg.Index.Name = "books"
	}
	if cfg.Index.Workers == 0 {
		cfg.Index.Workers = 8
	}
	if cfg.Query.DefaultK == 0 {
		cfg.Query.DefaultK = 5
	}
	if cfg.Query.MaxK == 0 {
		cfg.Query.MaxK = 100
	}
	if cfg.Query.Radius == 0 {
		cfg.Query.Radius = 0.5
	}
	if cfg.Query.Workers == 0 {
		cfg.Query.Workers = 4
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 400 * time.Millisecond
	}
}
