// Package persist opens the backend that editor documents are saved to.
//
// Every backend implements domain.ConfigStore: documents cross the boundary
// as serialized JSON and a missing document is reported as
// domain.ErrNotFound. Writes replace the whole document, last writer wins.
package persist

import (
	"context"
	"fmt"

	"pageeditor/internal/domain"
	"pageeditor/internal/secret"
	"pageeditor/internal/storage"
)

// Backend is an open persistence backend.
type Backend interface {
	domain.ConfigStore
	Close() error
}

// Open creates the backend described by cfg. The password for networked
// backends is read from secrets (may be nil).
func Open(ctx context.Context, cfg domain.BackendConfig, secrets secret.SecretStore) (Backend, error) {
	password, err := lookupPassword(cfg, secrets)
	if err != nil {
		return nil, err
	}

	switch cfg.Driver {
	case domain.BackendSQLite, "":
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite backend: no database path")
		}
		db, err := storage.New(cfg.Path)
		if err != nil {
			return nil, err
		}
		return &sqliteBackend{ConfigStore: storage.NewConfigStore(db), db: db}, nil
	case domain.BackendPostgres:
		return newSQLStore("postgres", buildPostgresDSN(cfg, password), postgresDialect)
	case domain.BackendMySQL:
		return newSQLStore("mysql", buildMySQLDSN(cfg, password), mysqlDialect)
	case domain.BackendMongoDB:
		return newMongoStore(ctx, cfg, password)
	case domain.BackendFile:
		return NewFileStore(cfg.Dir)
	case domain.BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported backend driver: %s", cfg.Driver)
	}
}

func lookupPassword(cfg domain.BackendConfig, secrets secret.SecretStore) (string, error) {
	switch cfg.Driver {
	case domain.BackendPostgres, domain.BackendMySQL, domain.BackendMongoDB:
	default:
		return "", nil
	}
	if secrets == nil {
		return "", nil
	}
	pw, err := secrets.Get(cfg.SecretKey())
	if err != nil {
		return "", fmt.Errorf("read backend password: %w", err)
	}
	return string(pw), nil
}

// Shared wraps an already open SQLite database as a backend. Closing the
// backend leaves db open for its owner.
func Shared(db *storage.DB) Backend {
	return &sqliteBackend{ConfigStore: storage.NewConfigStore(db)}
}

// sqliteBackend is the local default: the SQLite config store, which also
// keeps revisions.
type sqliteBackend struct {
	*storage.ConfigStore
	db *storage.DB // nil when shared
}

func (b *sqliteBackend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}
