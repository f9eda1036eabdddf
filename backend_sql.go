package tiercache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/golang/glog"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

var (
	ErrSQLConfig = errors.New("tiercache: sql driver requires driver name and dsn")

	sqlIdentRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)
	openSQL    = sql.Open
)

// sqlDialect holds the statements that differ between engines. Templates take
// the table name; placeholders are already rendered.
type sqlDialect struct {
	name   string
	schema string
	get    string
	upsert string
	delete string
	expire string
}

var (
	postgresDialect = sqlDialect{
		name:   "postgres",
		schema: `CREATE TABLE IF NOT EXISTS %s (cache_key TEXT PRIMARY KEY, body BYTEA NOT NULL, expires_at BIGINT NOT NULL)`,
		get:    `SELECT body, expires_at FROM %s WHERE cache_key = $1`,
		upsert: `INSERT INTO %s (cache_key, body, expires_at) VALUES ($1, $2, $3) ON CONFLICT (cache_key) DO UPDATE SET body = EXCLUDED.body, expires_at = EXCLUDED.expires_at`,
		delete: `DELETE FROM %s WHERE cache_key = $1`,
		expire: `DELETE FROM %s WHERE cache_key = $1 AND expires_at <= $2`,
	}
	mysqlDialect = sqlDialect{
		name:   "mysql",
		schema: `CREATE TABLE IF NOT EXISTS %s (cache_key VARBINARY(255) PRIMARY KEY, body LONGBLOB NOT NULL, expires_at BIGINT NOT NULL) ENGINE=InnoDB`,
		get:    `SELECT body, expires_at FROM %s WHERE cache_key = ?`,
		upsert: `INSERT INTO %s (cache_key, body, expires_at) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE body = VALUES(body), expires_at = VALUES(expires_at)`,
		delete: `DELETE FROM %s WHERE cache_key = ?`,
		expire: `DELETE FROM %s WHERE cache_key = ? AND expires_at <= ?`,
	}
	sqliteDialect = sqlDialect{
		name:   "sqlite",
		schema: `CREATE TABLE IF NOT EXISTS %s (cache_key TEXT PRIMARY KEY, body BLOB NOT NULL, expires_at INTEGER NOT NULL)`,
		get:    `SELECT body, expires_at FROM %s WHERE cache_key = ?`,
		upsert: `INSERT INTO %s (cache_key, body, expires_at) VALUES (?, ?, ?) ON CONFLICT(cache_key) DO UPDATE SET body = excluded.body, expires_at = excluded.expires_at`,
		delete: `DELETE FROM %s WHERE cache_key = ?`,
		expire: `DELETE FROM %s WHERE cache_key = ? AND expires_at <= ?`,
	}
)

func dialectFor(driverName string) (sqlDialect, error) {
	switch driverName {
	case "pgx", "postgres":
		return postgresDialect, nil
	case "mysql":
		return mysqlDialect, nil
	case "sqlite", "sqlite3":
		return sqliteDialect, nil
	}
	return sqlDialect{}, fmt.Errorf("%w: unsupported driver %q", ErrSQLConfig, driverName)
}

type sqlBackend struct {
	db         *sql.DB
	table      string
	dialect    sqlDialect
	prefix     string
	defaultTTL time.Duration

	getStmt    *sql.Stmt
	upsertStmt *sql.Stmt
	deleteStmt *sql.Stmt
	expireStmt *sql.Stmt
}

func newSQLBackend(ctx context.Context, cfg BackendConfig) (Backend, error) {
	if cfg.SQLDriverName == "" || cfg.SQLDSN == "" {
		return nil, ErrSQLConfig
	}
	if _, err := dialectFor(cfg.SQLDriverName); err != nil {
		return nil, err
	}
	db, err := openSQL(cfg.SQLDriverName, cfg.SQLDSN)
	if err != nil {
		return nil, err
	}
	backend, err := newSQLBackendWithDB(ctx, db, cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return backend, nil
}

func newSQLBackendWithDB(ctx context.Context, db *sql.DB, cfg BackendConfig) (*sqlBackend, error) {
	dialect, err := dialectFor(cfg.SQLDriverName)
	if err != nil {
		return nil, err
	}
	table := cfg.SQLTable
	if table == "" {
		table = defaultSQLTable
	}
	if err := validateSQLTableName(table); err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	b := &sqlBackend{
		db:         db,
		table:      table,
		dialect:    dialect,
		prefix:     cfg.Prefix,
		defaultTTL: cfg.DefaultTTL,
	}
	if b.defaultTTL <= 0 {
		b.defaultTTL = defaultBackendTTL
	}
	if _, err := db.ExecContext(ctx, b.stmt(dialect.schema)); err != nil {
		return nil, fmt.Errorf("ensure sql schema: %w", err)
	}
	for _, p := range []struct {
		dst   **sql.Stmt
		query string
	}{
		{&b.getStmt, dialect.get},
		{&b.upsertStmt, dialect.upsert},
		{&b.deleteStmt, dialect.delete},
		{&b.expireStmt, dialect.expire},
	} {
		stmt, err := db.PrepareContext(ctx, b.stmt(p.query))
		if err != nil {
			return nil, fmt.Errorf("prepare %q: %w", p.query, err)
		}
		*p.dst = stmt
	}
	return b, nil
}

func (b *sqlBackend) Driver() Driver { return DriverSQL }

func (b *sqlBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		body      []byte
		expiresAt int64
	)
	err := b.getStmt.QueryRowContext(ctx, b.cacheKey(key)).Scan(&body, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	now := time.Now().UnixMilli()
	if now >= expiresAt {
		// Guarded on expiry so a concurrent fresh write survives.
		if _, err := b.expireStmt.ExecContext(ctx, b.cacheKey(key), now); err != nil {
			glog.Warningf("tiercache: expire sql row %q: %v", key, err)
		}
		return nil, false, nil
	}
	if body == nil {
		body = []byte{}
	}
	return body, true, nil
}

func (b *sqlBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = b.defaultTTL
	}
	if value == nil {
		value = []byte{}
	}
	_, err := b.upsertStmt.ExecContext(ctx, b.cacheKey(key), value, time.Now().Add(ttl).UnixMilli())
	return err
}

func (b *sqlBackend) Delete(ctx context.Context, key string) error {
	_, err := b.deleteStmt.ExecContext(ctx, b.cacheKey(key))
	return err
}

func (b *sqlBackend) cacheKey(key string) string {
	if b.prefix == "" {
		return key
	}
	return b.prefix + ":" + key
}

func (b *sqlBackend) stmt(tmpl string) string {
	return fmt.Sprintf(tmpl, b.table)
}

// validateSQLTableName accepts a plain or schema-qualified identifier; the
// name is interpolated into statements and cannot be a bind parameter.
func validateSQLTableName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("tiercache: sql table name is required")
	}
	if !sqlIdentRE.MatchString(name) {
		return fmt.Errorf("tiercache: invalid sql table name %q", name)
	}
	return nil
}
