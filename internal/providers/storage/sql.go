package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const sqlTableName = "storage"

type sqlOpenFunc func(driverName, dsn string) (*sql.DB, error)

// dialect captures the few differences between the SQL engines we speak.
type dialect struct {
	name   string
	driver string
	// placeholder returns the bind marker for the n-th (1-based) argument.
	placeholder func(n int) string
}

var (
	sqliteDialect = dialect{
		name:        "sqlite",
		driver:      "sqlite",
		placeholder: func(int) string { return "?" },
	}
	postgresDialect = dialect{
		name:        "postgres",
		driver:      "postgres",
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	}
)

// SQL is the document-database backend: one row per key holding the JSON
// document and the time it was written.
type SQL struct {
	dsn       string
	dialect   dialect
	tableName string
	timeout   time.Duration
	openDB    sqlOpenFunc

	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

// NewSQLite opens an embedded database file. query is passed through to the
// driver, e.g. "_pragma=busy_timeout(5000)".
func NewSQLite(path, query string, opts Options) (*SQL, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, ErrInvalidInput
	}
	if query == "" {
		query = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	b := newSQL("file:"+path+"?"+query, sqliteDialect, opts)
	if _, err := b.ensureReady(); err != nil {
		return nil, err
	}
	return b, nil
}

// NewPostgres connects to a Postgres server. The schema is created lazily on
// first use so the process can start while the server is down.
func NewPostgres(dsn string, opts Options) (*SQL, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, ErrInvalidInput
	}
	return newSQL(dsn, postgresDialect, opts), nil
}

func newSQL(dsn string, d dialect, opts Options) *SQL {
	return &SQL{
		dsn:       dsn,
		dialect:   d,
		tableName: sqlTableName,
		timeout:   opts.opTimeout(),
		openDB:    sql.Open,
	}
}

func (b *SQL) Name() string { return b.dialect.name }

func (b *SQL) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	db, err := b.ensureReady()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT "data" FROM %s WHERE "key" = %s`,
		quoteIdentifier(b.tableName), b.dialect.placeholder(1))
	var payload string
	err = db.QueryRowContext(ctx, query, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(payload), nil
}

func (b *SQL) Set(ctx context.Context, key string, value []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	db, err := b.ensureReady()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	p := b.dialect.placeholder
	query := fmt.Sprintf(`
		INSERT INTO %s ("key", "data", "timestamp")
		VALUES (%s, %s, %s)
		ON CONFLICT ("key")
		DO UPDATE SET "data" = excluded."data", "timestamp" = excluded."timestamp"`,
		quoteIdentifier(b.tableName), p(1), p(2), p(3))
	_, err = db.ExecContext(ctx, query, key, string(value), time.Now().UnixMilli())
	return err
}

func (b *SQL) Delete(ctx context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	db, err := b.ensureReady()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	query := fmt.Sprintf(`DELETE FROM %s WHERE "key" = %s`,
		quoteIdentifier(b.tableName), b.dialect.placeholder(1))
	_, err = db.ExecContext(ctx, query, key)
	return err
}

func (b *SQL) Clear(ctx context.Context) error {
	db, err := b.ensureReady()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	_, err = db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, quoteIdentifier(b.tableName)))
	return err
}

// Timestamp returns when key was last written.
func (b *SQL) Timestamp(ctx context.Context, key string) (time.Time, error) {
	db, err := b.ensureReady()
	if err != nil {
		return time.Time{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT "timestamp" FROM %s WHERE "key" = %s`,
		quoteIdentifier(b.tableName), b.dialect.placeholder(1))
	var ms int64
	err = db.QueryRowContext(ctx, query, key).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}

func (b *SQL) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

// ensureReady opens the database and creates the table on first use. A
// failed attempt is retried on the next call.
func (b *SQL) ensureReady() (*sql.DB, error) {
	b.mu.RLock()
	db, closed := b.db, b.closed
	b.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	if db != nil {
		return db, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	if b.db != nil {
		return b.db, nil
	}

	db, err := b.openDB(b.dialect.driver, b.dsn)
	if err != nil {
		return nil, err
	}
	if b.dialect.name == sqliteDialect.name {
		db.SetMaxOpenConns(1)
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			"key" TEXT PRIMARY KEY,
			"data" TEXT NOT NULL,
			"timestamp" BIGINT NOT NULL
		)`, quoteIdentifier(b.tableName))
	if _, err := db.ExecContext(ctx, query); err != nil {
		_ = db.Close()
		return nil, err
	}
	b.db = db
	return db, nil
}

func quoteIdentifier(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return `""`
	}
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}
