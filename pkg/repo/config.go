package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/odvcencio/geogot/pkg/logging"
)

// FastForward selects how merges treat fast-forwardable histories.
type FastForward string

const (
	FastForwardAllow FastForward = "allow"
	FastForwardOnly  FastForward = "only"
	FastForwardNever FastForward = "never"
)

const (
	BackendFiles = "files"
	BackendBolt  = "bolt"
)

// Config is the repository's config.toml.
type Config struct {
	User    UserConfig    `toml:"user"`
	Core    CoreConfig    `toml:"core"`
	Storage StorageConfig `toml:"storage"`
	Merge   MergeConfig   `toml:"merge"`
}

type UserConfig struct {
	Name  string `toml:"name"`
	Email string `toml:"email"`
}

type CoreConfig struct {
	LogLevel      string `toml:"log_level"`
	DefaultBranch string `toml:"default_branch"`
}

type StorageConfig struct {
	Backend   string `toml:"backend"`
	CacheSize int    `toml:"cache_size"`
}

type MergeConfig struct {
	FastForward FastForward `toml:"fast_forward"`
}

// DefaultConfig returns the settings a new repository starts with.
func DefaultConfig() *Config {
	return &Config{
		Core:    CoreConfig{LogLevel: logging.LevelNone, DefaultBranch: "main"},
		Storage: StorageConfig{Backend: BackendFiles},
		Merge:   MergeConfig{FastForward: FastForwardAllow},
	}
}

// Validate fills defaults and rejects unknown enum values.
func (c *Config) Validate() error {
	def := DefaultConfig()
	if c.Core.DefaultBranch == "" {
		c.Core.DefaultBranch = def.Core.DefaultBranch
	}
	if c.Core.LogLevel == "" {
		c.Core.LogLevel = def.Core.LogLevel
	} else if _, err := logging.New(c.Core.LogLevel); err != nil {
		return fmt.Errorf("config: core.log_level: %w", err)
	}
	switch c.Storage.Backend {
	case "":
		c.Storage.Backend = def.Storage.Backend
	case BackendFiles, BackendBolt:
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
	switch c.Merge.FastForward {
	case "":
		c.Merge.FastForward = def.Merge.FastForward
	case FastForwardAllow, FastForwardOnly, FastForwardNever:
	default:
		return fmt.Errorf("config: unknown merge.fast_forward %q", c.Merge.FastForward)
	}
	return nil
}

// ReadConfig reads a config.toml. A missing file yields the defaults.
func ReadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WriteConfig atomically writes cfg to path.
func WriteConfig(path string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return writeTOML(path, cfg)
}

func writeTOML(path string, v any) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("write %s: tmpfile: %w", filepath.Base(path), err)
	}
	tmpName := tmp.Name()

	if err := toml.NewEncoder(tmp).Encode(v); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: encode: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: close: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: rename: %w", filepath.Base(path), err)
	}
	return nil
}

// SaveConfig persists the repository's current config. In-memory
// repositories keep it in memory only.
func (r *Repo) SaveConfig() error {
	if r.Dir == "" {
		return r.Config.Validate()
	}
	return WriteConfig(filepath.Join(r.Dir, configFile), r.Config)
}
