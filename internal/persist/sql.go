package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"pageeditor/internal/domain"
)

// dialect holds the statements that differ between SQL servers.
type dialect struct {
	createTable string
	load        string
	upsert      string // args: key, document, updated_at
}

var postgresDialect = dialect{
	createTable: `CREATE TABLE IF NOT EXISTS editor_configs (
		config_key TEXT PRIMARY KEY,
		config_json TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	load: `SELECT config_json FROM editor_configs WHERE config_key = $1`,
	upsert: `INSERT INTO editor_configs (config_key, config_json, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (config_key) DO UPDATE SET config_json = EXCLUDED.config_json, updated_at = EXCLUDED.updated_at`,
}

var mysqlDialect = dialect{
	createTable: `CREATE TABLE IF NOT EXISTS editor_configs (
		config_key VARCHAR(255) NOT NULL PRIMARY KEY,
		config_json LONGTEXT NOT NULL,
		updated_at DATETIME(6) NOT NULL
	) CHARACTER SET utf8mb4`,
	load: `SELECT config_json FROM editor_configs WHERE config_key = ?`,
	upsert: `INSERT INTO editor_configs (config_key, config_json, updated_at) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE config_json = VALUES(config_json), updated_at = VALUES(updated_at)`,
}

// buildPostgresDSN constructs a Postgres connection string from a BackendConfig.
func buildPostgresDSN(cfg domain.BackendConfig, password string) string {
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		pqValue(cfg.Host), port, pqValue(cfg.Username), pqValue(password), pqValue(cfg.Database), pqValue(sslMode),
	)
}

// pqValue quotes a keyword/value connection parameter when it is empty or
// contains whitespace, quotes or backslashes.
func pqValue(v string) string {
	if v != "" && !strings.ContainsAny(v, " \t\n\r'\\") {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

// buildMySQLDSN constructs a MySQL DSN from a BackendConfig.
func buildMySQLDSN(cfg domain.BackendConfig, password string) string {
	port := cfg.Port
	if port == 0 {
		port = 3306
	}
	// Format: user:password@tcp(host:port)/dbname?parseTime=true
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		cfg.Username, password, cfg.Host, port, cfg.Database,
	)
	if cfg.SSLMode == "require" {
		dsn += "&tls=true"
	}
	return dsn
}

// sqlStore implements domain.ConfigStore on a Postgres or MySQL server.
type sqlStore struct {
	driverName string
	db         *sql.DB
	dialect    dialect

	mu      sync.Mutex
	created bool
}

// newSQLStore opens a pool for driverName. The table is created on first use.
func newSQLStore(driverName, dsn string, d dialect) (*sqlStore, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}
	// Sensible pool settings for a desktop app
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(10 * time.Minute)

	return &sqlStore{driverName: driverName, db: db, dialect: d}, nil
}

func (s *sqlStore) ensureTable(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.created {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := s.db.ExecContext(ctx, s.dialect.createTable); err != nil {
		return fmt.Errorf("%s: create editor_configs: %w", s.driverName, err)
	}
	s.created = true
	return nil
}

func (s *sqlStore) LoadConfig(ctx context.Context, key string) ([]byte, error) {
	if err := s.ensureTable(ctx); err != nil {
		return nil, err
	}
	var doc string
	err := s.db.QueryRowContext(ctx, s.dialect.load, key).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: load %s: %w", s.driverName, key, err)
	}
	return []byte(doc), nil
}

func (s *sqlStore) SaveConfig(ctx context.Context, key string, doc []byte) error {
	if err := s.ensureTable(ctx); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if _, err := s.db.ExecContext(ctx, s.dialect.upsert, key, string(doc), time.Now().UTC()); err != nil {
		return fmt.Errorf("%s: save %s: %w", s.driverName, key, err)
	}
	return nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
