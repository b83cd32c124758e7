package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"pageeditor/internal/domain"
)

// MaxRevisions is how many revisions are kept per document key.
const MaxRevisions = 40

// ConfigStore implements domain.ConfigStore and domain.RevisionStore using
// SQLite. Every save also records a revision.
type ConfigStore struct {
	db           *DB
	maxRevisions int
}

// NewConfigStore creates a ConfigStore.
func NewConfigStore(db *DB) *ConfigStore {
	return &ConfigStore{db: db, maxRevisions: MaxRevisions}
}

// LoadConfig returns the stored document for key.
func (s *ConfigStore) LoadConfig(ctx context.Context, key string) ([]byte, error) {
	var doc string
	err := s.db.Conn().QueryRowContext(ctx,
		`SELECT config_json FROM editor_configs WHERE key = ?`, key,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", key, err)
	}
	return []byte(doc), nil
}

// SaveConfig replaces the document for key and records a revision.
func (s *ConfigStore) SaveConfig(ctx context.Context, key string, doc []byte) error {
	return s.save(ctx, key, doc, "save")
}

// SaveLabelled is SaveConfig with a revision label.
func (s *ConfigStore) SaveLabelled(ctx context.Context, key string, doc []byte, label string) error {
	return s.save(ctx, key, doc, label)
}

func (s *ConfigStore) save(ctx context.Context, key string, doc []byte, label string) error {
	now := time.Now()
	revID, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("revision id: %w", err)
	}

	tx, err := s.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save %s: %w", key, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO editor_configs (key, config_json, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET config_json = excluded.config_json, updated_at = excluded.updated_at`,
		key, string(doc), now, now,
	)
	if err != nil {
		return fmt.Errorf("save config %s: %w", key, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO config_revisions (id, key, label, config_json, created_at) VALUES (?, ?, ?, ?, ?)`,
		revID.String(), key, label, string(doc), now,
	)
	if err != nil {
		return fmt.Errorf("insert revision %s: %w", key, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save %s: %w", key, err)
	}

	s.pruneIfNeeded(ctx, key)
	return nil
}

// DeleteConfig removes a document and its revisions.
func (s *ConfigStore) DeleteConfig(ctx context.Context, key string) error {
	_, _ = s.db.Conn().ExecContext(ctx, `DELETE FROM config_revisions WHERE key = ?`, key)
	_, err := s.db.Conn().ExecContext(ctx, `DELETE FROM editor_configs WHERE key = ?`, key)
	return err
}

// Keys lists every stored document key.
func (s *ConfigStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `SELECT key FROM editor_configs ORDER BY key ASC`)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// ListRevisions returns the revisions of key, newest first.
func (s *ConfigStore) ListRevisions(ctx context.Context, key string) ([]domain.Revision, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		`SELECT id, key, label, length(config_json), created_at
		 FROM config_revisions WHERE key = ? ORDER BY created_at DESC, id DESC`, key,
	)
	if err != nil {
		return nil, fmt.Errorf("list revisions %s: %w", key, err)
	}
	defer rows.Close()

	var revs []domain.Revision
	for rows.Next() {
		var r domain.Revision
		if err := rows.Scan(&r.ID, &r.Key, &r.Label, &r.Size, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		revs = append(revs, r)
	}
	return revs, rows.Err()
}

// GetRevision returns the document stored by a revision.
func (s *ConfigStore) GetRevision(ctx context.Context, id string) ([]byte, error) {
	var doc string
	err := s.db.Conn().QueryRowContext(ctx,
		`SELECT config_json FROM config_revisions WHERE id = ?`, id,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get revision %s: %w", id, err)
	}
	return []byte(doc), nil
}

// pruneIfNeeded drops the oldest revisions of key beyond maxRevisions.
func (s *ConfigStore) pruneIfNeeded(ctx context.Context, key string) {
	var count int
	s.db.Conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM config_revisions WHERE key = ?`, key).Scan(&count)
	if count <= s.maxRevisions {
		return
	}

	_, err := s.db.Conn().ExecContext(ctx,
		`DELETE FROM config_revisions WHERE key = ? AND id NOT IN (
			SELECT id FROM config_revisions WHERE key = ?
			ORDER BY created_at DESC, id DESC LIMIT ?
		)`, key, key, s.maxRevisions,
	)
	if err != nil {
		log.Printf("[STORAGE] prune revisions %s: %v", key, err)
	}
}
