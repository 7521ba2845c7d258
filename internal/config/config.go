// Package config loads dirdex's configuration by layering defaults, a YAML
// config file, and environment variables through viper, then handing
// callers a plain struct with no further dependency on viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the config filename looked for in the indexed root
// and in the current working directory.
const DefaultConfigFile = "dirdex.yaml"

// Config holds every tunable the pipeline and its front-ends need.
type Config struct {
	// Root is the directory tree to index.
	Root string `mapstructure:"root" yaml:"root,omitempty"`
	// Mode is "word" or "trigram" (spec §4 Tokenization).
	Mode string `mapstructure:"mode" yaml:"mode,omitempty"`
	// EnableWatcher turns live filesystem notifications on or off; false
	// runs a one-shot walk only (spec §4.1 Watcher-off mode).
	EnableWatcher bool `mapstructure:"enable_watcher" yaml:"enable_watcher,omitempty"`
	// IgnorePatterns are gitignore-style patterns excluded from both the
	// initial walk and live notifications.
	IgnorePatterns []string `mapstructure:"ignore_patterns" yaml:"ignore_patterns,omitempty"`
	// Workers is the Indexer pool's worker count (spec §4.2).
	Workers int `mapstructure:"workers" yaml:"workers,omitempty"`
	// MaxFileSize is the per-file cap in bytes (spec §4.2/§6).
	MaxFileSize int64 `mapstructure:"max_file_size" yaml:"max_file_size,omitempty"`
	// MaxWalkRetries bounds the initial walk's retry loop (spec §4.1).
	MaxWalkRetries int `mapstructure:"max_walk_retries" yaml:"max_walk_retries,omitempty"`

	// HTTP configures the optional HTTP front-end.
	HTTP ServerConfig `mapstructure:"http" yaml:"http,omitempty"`
	// MCP configures the optional MCP front-end.
	MCP ServerConfig `mapstructure:"mcp" yaml:"mcp,omitempty"`

	// enableLogging is toggled at runtime by the interactive shell's
	// enable-logging command and its blank-line counterpart; it is a
	// pointer so every component sharing this Config observes one flag.
	enableLogging *atomic.Bool
}

// ServerConfig holds one front-end's bind address and on/off switch.
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled,omitempty"`
	Host    string `mapstructure:"host" yaml:"host,omitempty"`
	Port    int    `mapstructure:"port" yaml:"port,omitempty"`
}

// DefaultConfig returns the spec-recommended defaults for root.
func DefaultConfig(root string) *Config {
	c := &Config{
		Root:           root,
		Mode:           "word",
		EnableWatcher:  true,
		Workers:        4,
		MaxFileSize:    10 * 1024 * 1024,
		MaxWalkRetries: 10,
		IgnorePatterns: []string{
			".git/**",
			"node_modules/**",
			"vendor/**",
		},
		HTTP: ServerConfig{Host: "localhost", Port: 8089},
		MCP:  ServerConfig{Host: "localhost", Port: 8090},
	}
	c.enableLogging = &atomic.Bool{}
	c.enableLogging.Store(true)
	return c
}

// Load layers DefaultConfig(root) under dirdex.yaml (searched in root and
// the current directory) and DIRDEX_-prefixed environment variables.
func Load(root string) (*Config, error) {
	cfg := DefaultConfig(root)

	v := viper.New()
	v.SetConfigName("dirdex")
	v.SetConfigType("yaml")
	v.AddConfigPath(root)
	v.AddConfigPath(".")

	v.SetEnvPrefix("DIRDEX")
	v.AutomaticEnv()
	_ = v.BindEnv("mode", "DIRDEX_MODE")
	_ = v.BindEnv("enable_watcher", "DIRDEX_ENABLE_WATCHER")
	_ = v.BindEnv("workers", "DIRDEX_WORKERS")
	_ = v.BindEnv("http.port", "DIRDEX_HTTP_PORT")
	_ = v.BindEnv("mcp.port", "DIRDEX_MCP_PORT")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.enableLogging = &atomic.Bool{}
	cfg.enableLogging.Store(true)
	return cfg, nil
}

// WriteDefaultConfig writes a starter dirdex.yaml into root, unless one is
// already there.
func WriteDefaultConfig(root string) error {
	path := filepath.Join(root, DefaultConfigFile)
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	cfg := DefaultConfig(root)
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// EnableLogging reports whether component logging is currently on.
func (c *Config) EnableLogging() bool {
	if c.enableLogging == nil {
		return true
	}
	return c.enableLogging.Load()
}

// LoggingFlag exposes the underlying flag for components (like the watch
// package) that want a live *bool rather than a snapshot.
func (c *Config) LoggingFlag() *atomic.Bool {
	if c.enableLogging == nil {
		c.enableLogging = &atomic.Bool{}
		c.enableLogging.Store(true)
	}
	return c.enableLogging
}

// SetLogging toggles logging at runtime (the interactive shell's
// enable-logging command and its blank-line counterpart).
func (c *Config) SetLogging(on bool) {
	c.LoggingFlag().Store(on)
}
