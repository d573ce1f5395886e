package backend

import (
	"context"
	"errors"
	"fmt"

	"usaha/internal/localstore"
	"usaha/internal/log"
	"usaha/internal/memstore"
	"usaha/internal/storage"
)

var (
	_ Remote = (*storage.DocumentStore)(nil)
	_ Remote = (*memstore.Store)(nil)
)

// Factory builds backends from configuration.
type Factory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) *Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &Factory{logger: logger.WithComponent(log.ComponentStorage)}
}

// Create opens the remote backend and, when configured, the guest one.
func (f *Factory) Create(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		res *Result
		err error
	)
	switch cfg.Type {
	case SQLiteBackend:
		res, err = f.createSQLite(ctx, cfg)
	case MemoryBackend:
		res, err = f.createMemory(cfg)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	if cfg.LocalDataDir == "" {
		f.logger.Info("Guest mode disabled")
		return res, nil
	}
	local, err := localstore.Open(cfg.LocalDataDir)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("open guest storage: %w", err), res.Close())
	}
	res.Local = local
	f.logger.Info("Initialized guest storage", "data_directory", cfg.LocalDataDir)
	return res, nil
}

func (f *Factory) createSQLite(ctx context.Context, cfg Config) (*Result, error) {
	ds, err := storage.Open(ctx, cfg.SQLiteDBPath, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
	}
	f.logger.Info("Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)
	return &Result{
		Remote:  ds,
		Ready:   ds.Ping,
		Cleanup: ds.Close,
	}, nil
}

func (f *Factory) createMemory(cfg Config) (*Result, error) {
	ms, err := memstore.NewFromFile(cfg.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load seed file: %w", err)
	}
	f.logger.Info("Initialized memory backend", "seed_file", cfg.SeedFile)
	return &Result{Remote: ms}, nil
}
