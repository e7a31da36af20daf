package runtime

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/roach88/tessera/internal/store"
)

// Config carries the process-scoped runtime settings.
type Config struct {
	Store    StoreConfig
	Resolver ResolverConfig
	Journal  JournalConfig
}

// StoreConfig configures the object store.
type StoreConfig struct {
	// Shards is the lock shard count, a power of two in [1, 256].
	Shards int

	// MaxSlots bounds live distinct slots. 0 means unlimited.
	MaxSlots int64

	// MaxValueBytes bounds one representation's canonical size.
	// 0 means unlimited.
	MaxValueBytes int64

	// Retention controls eviction of unreferenced slots.
	Retention store.RetentionPolicy
}

// ResolverConfig configures call dispatch.
type ResolverConfig struct {
	// WaitForRegistration makes calls wait for missing registrations by
	// default, bounded by the call context's deadline.
	WaitForRegistration bool

	// CallTimeout caps calls whose context carries no deadline.
	// 0 means no cap.
	CallTimeout time.Duration
}

// JournalConfig configures object persistence.
type JournalConfig struct {
	// Enabled attaches a journal to the store.
	Enabled bool

	// Path is the SQLite database path.
	Path string
}

// DefaultConfig returns the built-in defaults: 16 shards, no limits,
// retain-forever, no waiting, no journal.
func DefaultConfig() Config {
	return Config{
		Store: StoreConfig{
			Shards:    store.DefaultShards,
			Retention: store.RetainForever,
		},
		Journal: JournalConfig{
			Path: "tessera.db",
		},
	}
}

// Validate checks settings that would otherwise fail deep inside
// construction. Shard validation stays with the store, which owns the
// constraint.
func (c Config) Validate() error {
	if _, err := store.ParseRetentionPolicy(string(c.Store.Retention)); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Resolver.CallTimeout < 0 {
		return fmt.Errorf("config: call timeout must be >= 0, got %s", c.Resolver.CallTimeout)
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		return fmt.Errorf("config: journal enabled without a path")
	}
	return nil
}

// fileConfig is the config.toml key mapping.
type fileConfig struct {
	Store struct {
		Shards        int    `toml:"shards"`
		MaxSlots      int64  `toml:"max_slots"`
		MaxValueBytes int64  `toml:"max_value_bytes"`
		Retention     string `toml:"retention"`
	} `toml:"store"`
	Resolver struct {
		WaitForRegistration bool  `toml:"wait_for_registration"`
		CallTimeoutMs       int64 `toml:"call_timeout_ms"`
	} `toml:"resolver"`
	Journal struct {
		Enabled bool   `toml:"enabled"`
		Path    string `toml:"path"`
	} `toml:"journal"`
}

// LoadConfig reads a TOML config file over the defaults. Keys absent
// from the file keep their default; keys present override it, so an
// explicit zero is distinguishable from an omitted key.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("store", "shards") {
		cfg.Store.Shards = raw.Store.Shards
	}
	if meta.IsDefined("store", "max_slots") {
		cfg.Store.MaxSlots = raw.Store.MaxSlots
	}
	if meta.IsDefined("store", "max_value_bytes") {
		cfg.Store.MaxValueBytes = raw.Store.MaxValueBytes
	}
	if meta.IsDefined("store", "retention") {
		cfg.Store.Retention = store.RetentionPolicy(raw.Store.Retention)
	}
	if meta.IsDefined("resolver", "wait_for_registration") {
		cfg.Resolver.WaitForRegistration = raw.Resolver.WaitForRegistration
	}
	if meta.IsDefined("resolver", "call_timeout_ms") {
		cfg.Resolver.CallTimeout = time.Duration(raw.Resolver.CallTimeoutMs) * time.Millisecond
	}
	if meta.IsDefined("journal", "enabled") {
		cfg.Journal.Enabled = raw.Journal.Enabled
	}
	if meta.IsDefined("journal", "path") {
		cfg.Journal.Path = raw.Journal.Path
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
