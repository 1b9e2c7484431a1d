package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/odvcencio/geogot/pkg/logging"
	"github.com/odvcencio/geogot/pkg/object"
	"github.com/odvcencio/geogot/pkg/refs"
	"github.com/odvcencio/geogot/pkg/storage/bolt"
)

const (
	DirName    = ".geogot"
	configFile = "config.toml"
	stateFile  = "OPERATION.toml"
	boltFile   = "geogot.db"
)

// Init creates a repository under path/.geogot and opens it. A nil cfg
// uses DefaultConfig. Init fails if a repository already exists there.
func Init(path string, cfg *Config, opts ...Option) (*Repo, error) {
	dir := filepath.Join(path, DirName)
	if _, err := os.Stat(dir); err == nil {
		return nil, fmt.Errorf("init: repository already exists at %s", dir)
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("init: mkdir %s: %w", dir, err)
	}
	if err := WriteConfig(filepath.Join(dir, configFile), cfg); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	r, err := Open(path, opts...)
	if err != nil {
		return nil, err
	}
	if err := r.Refs.SetSymbolic(refs.Head, refs.HeadsPrefix+cfg.Core.DefaultBranch); err != nil {
		r.Close()
		return nil, fmt.Errorf("init: write HEAD: %w", err)
	}
	r.logger.Info("initialized repository", zap.String("dir", r.Dir), zap.String("backend", cfg.Storage.Backend))
	return r, nil
}

// Open opens the repository under path/.geogot.
func Open(path string, opts ...Option) (*Repo, error) {
	dir := filepath.Join(path, DirName)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("open %s: %w", path, ErrNotInitialized)
	}
	cfg, err := ReadConfig(filepath.Join(dir, configFile))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	storeOpts := []object.StoreOption{}
	if cfg.Storage.CacheSize > 0 {
		storeOpts = append(storeOpts, object.WithCacheSize(cfg.Storage.CacheSize))
	}

	var (
		objects *object.Store
		rs      refs.Store
		db      *bolt.DB
	)
	switch cfg.Storage.Backend {
	case BackendBolt:
		db, err = bolt.Open(filepath.Join(dir, boltFile))
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		objects = object.NewStore(db.Objects(), storeOpts...)
		rs = db.Refs()
	default:
		objects = object.NewStore(object.NewFileBackend(filepath.Join(dir, "objects")), storeOpts...)
		fs, err := refs.NewFileStore(dir)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		rs = fs
	}

	r := newRepo(objects, rs, NewFileStateStore(filepath.Join(dir, stateFile)), cfg, opts)
	r.Dir = dir
	if db != nil {
		r.closers = append(r.closers, db)
	}
	if r.logger == nil {
		logger, err := logging.New(cfg.Core.LogLevel)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		r.logger = logger
	}
	return r, nil
}

// NewInMemory returns a repository backed entirely by memory.
func NewInMemory(cfg *Config, opts ...Option) (*Repo, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := newRepo(object.NewMemoryStore(), refs.NewMemoryStore(), NewMemoryStateStore(), cfg, opts)
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if err := r.Refs.SetSymbolic(refs.Head, refs.HeadsPrefix+cfg.Core.DefaultBranch); err != nil {
		return nil, err
	}
	return r, nil
}

// FindRoot walks up from start to the directory holding .geogot.
func FindRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for {
		if info, err := os.Stat(filepath.Join(dir, DirName)); err == nil && info.IsDir() {
			return dir, nil
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%s: %w", start, ErrNotInitialized)
		}
		dir = parent
	}
}
