// Package storage provides the persistent key-value backends shared by the
// query cache and the favorites store.
package storage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/recipebox/backend/internal/domain"
)

// Supported storage types
const (
	TypeMemory = "memory"
	TypeFile   = "file"
	TypeSQLite = "sqlite"
	TypeRedis  = "redis"
)

// Config selects and configures a backend
type Config struct {
	Type     string
	Path     string
	RedisURL string
	// Prefix namespaces redis keys
	Prefix string
}

// New opens the backend named by cfg.Type.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (domain.KeyValueStore, error) {
	switch cfg.Type {
	case TypeMemory:
		logger.Warn().Msg("using in-memory storage; favorites and cache will not survive a restart")
		return NewMemoryStore(), nil
	case TypeFile, "":
		path := cfg.Path
		if path == "" {
			path = ".data/recipebox.json"
		}
		logger.Info().Str("path", path).Msg("using file storage")
		return NewFileStore(path), nil
	case TypeSQLite:
		path := cfg.Path
		if path == "" {
			path = ".data/recipebox.db"
		}
		store, err := NewSQLiteStore(path)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("path", path).Msg("using sqlite storage")
		return store, nil
	case TypeRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("%w: redis storage requires a URL", domain.ErrInvalidRequest)
		}
		store, err := NewRedisStoreFromURL(ctx, cfg.RedisURL, cfg.Prefix)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("prefix", cfg.Prefix).Msg("using redis storage")
		return store, nil
	default:
		return nil, fmt.Errorf("%w: unknown storage type %q", domain.ErrInvalidRequest, cfg.Type)
	}
}
