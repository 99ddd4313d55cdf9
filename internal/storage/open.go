package storage

import (
	"context"
	"fmt"

	"github.com/user/book-archiver/internal/config"
	"github.com/user/book-archiver/internal/repository"
)

// Open connects to the backend selected by cfg.StorageBackend and verifies it
// is reachable.
func Open(ctx context.Context, cfg *config.Config) (repository.KeyValueRepository, error) {
	var repo repository.KeyValueRepository

	switch cfg.StorageBackend {
	case config.BackendSQLite:
		s, err := NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		repo = s
	case config.BackendRedis:
		repo = NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	case config.BackendPostgres:
		s, err := NewPostgresStore(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, err
		}
		repo = s
	case config.BackendMemory:
		repo = NewMemoryStore()
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.StorageBackend)
	}

	if err := repo.Ping(ctx); err != nil {
		repo.Close()
		return nil, fmt.Errorf("storage: %s unreachable: %w", cfg.StorageBackend, err)
	}
	return repo, nil
}
