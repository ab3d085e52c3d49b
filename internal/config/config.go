// ABOUTME: Configuration management with storage backend and feed source selection
// ABOUTME: JSON file under XDG config, environment overrides, and factories for store and source

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/harper/feedsync/internal/charm"
	"github.com/harper/feedsync/internal/fetch"
	"github.com/harper/feedsync/internal/source"
	"github.com/harper/feedsync/internal/storage"
)

// Backend names.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
	BackendCharm  = "charm"
)

// Source kinds.
const (
	SourceHTTP = "http"
	SourceFile = "file"
)

// ErrNoSource is returned by OpenSource when neither a URL nor a path is set.
var ErrNoSource = errors.New("no feed source configured (run 'feedsync setup' or set FEEDSYNC_SOURCE_URL)")

// Config stores feedsync configuration. Every field can be overridden by the
// FEEDSYNC_* environment variable named in its tag.
type Config struct {
	// Backend selects the cache: "sqlite" (default), "memory", or "charm".
	Backend string `json:"backend,omitempty" env:"FEEDSYNC_BACKEND"`

	// DataDir is the root directory for data storage. SQLite puts feedsync.db
	// here. Supports ~ expansion. Defaults to ~/.local/share/feedsync.
	DataDir string `json:"data_dir,omitempty" env:"FEEDSYNC_DATA_DIR"`

	// SourceKind is "http" or "file". Empty infers it from SourceURL/SourcePath.
	SourceKind string `json:"source_kind,omitempty" env:"FEEDSYNC_SOURCE_KIND"`
	SourceURL  string `json:"source_url,omitempty" env:"FEEDSYNC_SOURCE_URL"`
	SourcePath string `json:"source_path,omitempty" env:"FEEDSYNC_SOURCE_PATH"`

	UserAgent string `json:"user_agent,omitempty" env:"FEEDSYNC_USER_AGENT"`

	// RefreshTimeout bounds one refresh operation, as a Go duration string.
	RefreshTimeout string `json:"refresh_timeout,omitempty" env:"FEEDSYNC_REFRESH_TIMEOUT"`

	// HTTPAddr is the listen address for 'feedsync serve'.
	HTTPAddr string `json:"http_addr,omitempty" env:"FEEDSYNC_HTTP_ADDR"`

	// CharmLocalOnly turns off the push to the Charm server after each write.
	// 'feedsync cloud push' syncs on demand.
	CharmLocalOnly bool `json:"charm_local_only,omitempty" env:"FEEDSYNC_CHARM_LOCAL_ONLY"`
}

// GetBackend returns the configured backend, defaulting to "sqlite".
func (c *Config) GetBackend() string {
	if c.Backend == "" {
		return BackendSQLite
	}
	return c.Backend
}

// GetDataDir returns the configured data directory with ~ expanded,
// defaulting to the standard XDG data directory.
func (c *Config) GetDataDir() string {
	if c.DataDir == "" {
		return DefaultDataDir()
	}
	return ExpandPath(c.DataDir)
}

// GetSourceKind returns the explicit source kind or infers one.
func (c *Config) GetSourceKind() string {
	if c.SourceKind != "" {
		return c.SourceKind
	}
	if c.SourceURL != "" {
		return SourceHTTP
	}
	if c.SourcePath != "" {
		return SourceFile
	}
	return ""
}

// GetRefreshTimeout parses RefreshTimeout, falling back to the default.
func (c *Config) GetRefreshTimeout() (time.Duration, error) {
	if c.RefreshTimeout == "" {
		return DefaultRefreshTimeout, nil
	}
	d, err := time.ParseDuration(c.RefreshTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid refresh_timeout %q: %w", c.RefreshTimeout, err)
	}
	return d, nil
}

// GetHTTPAddr returns the listen address for the HTTP API.
func (c *Config) GetHTTPAddr() string {
	if c.HTTPAddr == "" {
		return DefaultHTTPAddr
	}
	return c.HTTPAddr
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// OpenStore creates the LocalStore for the configured backend.
func (c *Config) OpenStore() (storage.LocalStore, error) {
	backend := c.GetBackend()
	dataDir := c.GetDataDir()

	switch backend {
	case BackendSQLite:
		if err := os.MkdirAll(dataDir, DefaultDirPerms); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		return storage.NewSQLiteStore(filepath.Join(dataDir, DBFilename))
	case BackendMemory:
		return storage.NewMemoryStore(), nil
	case BackendCharm:
		client, err := c.OpenCharmClient()
		if err != nil {
			return nil, err
		}
		return charm.NewStore(client)
	default:
		return nil, fmt.Errorf("unknown backend: %q", backend)
	}
}

// OpenCharmClient creates the Charm KV client used by the charm backend.
func (c *Config) OpenCharmClient() (*charm.Client, error) {
	client, err := charm.NewClient()
	if err != nil {
		return nil, fmt.Errorf("charm client: %w", err)
	}
	client.SetAutoSync(!c.CharmLocalOnly)
	return client, nil
}

// OpenSource creates the remote feed source.
func (c *Config) OpenSource() (source.Source, error) {
	switch kind := c.GetSourceKind(); kind {
	case SourceHTTP:
		if c.SourceURL == "" {
			return nil, fmt.Errorf("source_kind %q needs source_url", kind)
		}
		return source.NewHTTPSource(c.SourceURL, fetch.New(DefaultHTTPTimeout, c.UserAgent)), nil
	case SourceFile:
		if c.SourcePath == "" {
			return nil, fmt.Errorf("source_kind %q needs source_path", kind)
		}
		return source.NewFileSource(ExpandPath(c.SourcePath)), nil
	case "":
		return nil, ErrNoSource
	default:
		return nil, fmt.Errorf("unknown source kind: %q", kind)
	}
}

// ApplyEnv overrides fields from FEEDSYNC_* environment variables.
// Unset variables leave the current values alone.
func (c *Config) ApplyEnv() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// GetConfigPath returns the config file path.
func GetConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "feedsync", "config.json")
}

// Load reads config from the default path.
func Load() (*Config, error) {
	return LoadFrom(GetConfigPath())
}

// LoadFrom reads config from path, writing a default one on first run, then
// applies environment overrides.
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		cfg = defaultFirstRunConfig()
		if saveErr := cfg.SaveTo(path); saveErr != nil {
			fmt.Fprintf(os.Stderr, "warning: could not save default config: %v\n", saveErr)
		}
	case err != nil:
		return nil, err
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes config to the default path.
func (c *Config) Save() error {
	return c.SaveTo(GetConfigPath())
}

// SaveTo writes config atomically: a temp file in the same directory is
// renamed over path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DefaultDirPerms); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.json")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp config: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// DefaultDataDir returns the standard XDG data directory for feedsync.
func DefaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "feedsync")
}

// defaultFirstRunConfig returns the config written on first run.
func defaultFirstRunConfig() *Config {
	return &Config{Backend: BackendSQLite, RefreshTimeout: DefaultRefreshTimeout.String()}
}
