package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	// dirPermissions is the permission mode for the database directory.
	dirPermissions = 0750

	// filePermissions is the permission mode for the database file.
	filePermissions = 0600

	// msPerSecond converts seconds to milliseconds.
	msPerSecond = 1000

	// connectionTimeout is the timeout for verifying database connectivity.
	connectionTimeout = 5 * time.Second
)

// catalogQuery checks the engine's own catalog for a table. Select and
// delete use this round trip rather than the in-memory registry so they
// notice tables dropped out-of-band.
const catalogQuery = "SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?"

// Logger defines the logging interface for the store.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ShutdownRegistrar accepts teardown jobs to run once during graceful
// termination. A job reports whether it completed cleanly.
type ShutdownRegistrar interface {
	Register(label string, job func() bool)
}

// Config contains the settings for one logical database.
type Config struct {
	// Name is the logical database name; the file is <Dir>/<Name>.db.
	Name string

	// Dir is the directory holding the database file. Created if absent.
	Dir string

	// WALMode enables Write-Ahead Logging for better concurrent access.
	WALMode bool

	// BusyTimeout is the maximum time to wait for a database lock (seconds).
	BusyTimeout int

	// MaxStatements bounds the resident prepared-statement cache.
	// Zero means DefaultMaxStatements.
	MaxStatements int
}

// Summary reports the outcome of a mutating row operation.
type Summary struct {
	// RowsAffected is the number of rows the statement changed.
	RowsAffected int64

	// LastInsertID is the rowid generated by the most recent insert.
	// Zero for update and delete.
	LastInsertID int64
}

// Store is the database facade: it owns the single connection, the table
// schema registry, and the prepared-statement cache. All SQL assembly and
// caching happens behind the row and schema operations; callers never touch
// SQL text.
//
// Concurrency: the engine serializes statements on the one connection, and
// the registry and cache carry their own locks, so a Store is safe for
// concurrent use. There is no added queueing or cancellation beyond what
// context deadlines give database/sql.
type Store struct {
	db    *sql.DB
	name  string
	path  string
	id    string
	log   Logger
	cache *statementCache

	mu      sync.RWMutex
	schemas map[string]Schema

	closeOnce sync.Once
	closeErr  error
}

// Open creates the facade for one logical database.
//
// It performs the following setup:
//  1. Creates the database directory if it doesn't exist
//  2. Opens the database file with foreign-key enforcement on
//  3. Configures WAL mode and busy timeout per cfg
//  4. Restricts the pool to the single connection and verifies it
//  5. Registers a close job with the shutdown registrar
//
// reg and log may be nil; a nil registrar skips lifecycle registration and a
// nil logger silences the store.
func Open(ctx context.Context, cfg Config, reg ShutdownRegistrar, log Logger) (*Store, error) {
	if log == nil {
		log = noopLogger{}
	}
	if !identWord(cfg.Name) {
		return nil, validationf("unsafe database name %q", cfg.Name)
	}

	if err := os.MkdirAll(cfg.Dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	path := filepath.Join(cfg.Dir, cfg.Name+".db")

	// Connection string pragmas, see github.com/mattn/go-sqlite3#connection-string
	connStr := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on",
		path,
		cfg.BusyTimeout*msPerSecond,
	)
	if cfg.WALMode {
		connStr += "&_journal_mode=WAL&_synchronous=NORMAL"
	}

	sqlDB, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection: SQLite has a single writer, and the statement cache
	// and BEGIN/COMMIT pairs must all land on the same handle.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	// Never recycle or expire the connection: the pool hands it back between
	// calls even while a BEGIN is pending, so dropping it would silently
	// abandon the open transaction and orphan every cached statement.
	sqlDB.SetConnMaxLifetime(0)
	sqlDB.SetConnMaxIdleTime(0)

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}

	// Ignore error - file might not exist yet on first run
	_ = os.Chmod(path, filePermissions) //nolint:errcheck // Intentional: first run creates file later

	s := &Store{
		db:      sqlDB,
		name:    cfg.Name,
		path:    path,
		id:      "db-" + uuid.NewString()[:8],
		log:     log,
		cache:   newStatementCache(cfg.MaxStatements),
		schemas: make(map[string]Schema),
	}

	if reg != nil {
		reg.Register("store:"+cfg.Name, func() bool {
			if err := s.Close(); err != nil {
				s.log.Error("closing store", "db", s.name, "error", err)
				return false
			}
			return true
		})
	}

	s.log.Info("store opened", "db", s.name, "id", s.id, "path", path)
	return s, nil
}

// PrepareTable creates the table if it does not exist and records its schema
// in the registry. Idempotent: re-invoking on an existing table is a no-op
// at the engine level and refreshes the registry entry.
func (s *Store) PrepareTable(ctx context.Context, table string, schema Schema) error {
	sqlText, err := buildCreateTable(table, schema)
	if err != nil {
		s.log.Error("prepare table failed", "db", s.name, "table", table, "error", err)
		return err
	}
	if _, err := s.execute(ctx, "create table", table, sqlText, nil); err != nil {
		s.log.Error("prepare table failed", "db", s.name, "table", table, "error", err)
		return err
	}

	s.mu.Lock()
	s.schemas[table] = schema
	s.mu.Unlock()

	s.log.Debug("table ready", "db", s.name, "table", table)
	return nil
}

// DeleteTable drops the table if it exists and removes its registry entry.
func (s *Store) DeleteTable(ctx context.Context, table string) error {
	sqlText, err := buildDropTable(table)
	if err != nil {
		s.log.Error("delete table failed", "db", s.name, "table", table, "error", err)
		return err
	}
	if _, err := s.execute(ctx, "drop table", table, sqlText, nil); err != nil {
		s.log.Error("delete table failed", "db", s.name, "table", table, "error", err)
		return err
	}

	s.mu.Lock()
	delete(s.schemas, table)
	s.mu.Unlock()

	s.log.Debug("table dropped", "db", s.name, "table", table)
	return nil
}

// TableExists asks the engine catalog whether the table currently exists.
// This is a real round trip, not a registry lookup.
func (s *Store) TableExists(ctx context.Context, table string) (bool, error) {
	if err := checkIdentifier("table", table); err != nil {
		return false, err
	}
	stmt, err := s.getOrPrepare(ctx, "table exists", table, catalogQuery)
	if err != nil {
		return false, err
	}

	var name string
	err = stmt.QueryRowContext(ctx, table).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, engineErr("table exists", table, err)
	}
	return true, nil
}

// Select returns rows matching the condition chain. Empty columns selects
// every column; limit/offset of zero or less mean unbounded. The table must
// exist in the engine catalog.
func (s *Store) Select(ctx context.Context, table string, columns []string, conds []Condition, limit, offset int) ([]Row, error) {
	if err := s.requireInCatalog(ctx, "select", table); err != nil {
		s.log.Error("select failed", "db", s.name, "table", table, "error", err)
		return nil, err
	}

	sqlText, args, err := buildSelect(table, columns, conds, limit, offset)
	if err != nil {
		s.log.Error("select failed", "db", s.name, "table", table, "error", err)
		return nil, err
	}

	stmt, err := s.getOrPrepare(ctx, "select", table, sqlText)
	if err != nil {
		s.log.Error("select failed", "db", s.name, "table", table, "error", err)
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		err = engineErr("select", table, err)
		s.log.Error("select failed", "db", s.name, "table", table, "error", err)
		return nil, err
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	out, err := scanRows(rows)
	if err != nil {
		err = engineErr("select", table, err)
		s.log.Error("select failed", "db", s.name, "table", table, "error", err)
		return nil, err
	}

	s.log.Debug("select", "db", s.name, "table", table, "rows", len(out))
	return out, nil
}

// Insert adds one or more rows. All rows must share the first row's column
// set; policy selects the conflict handling, nil meaning the engine default
// (ABORT). The table must be registered via PrepareTable — the registry can
// drift from engine state if the table was dropped through another channel,
// an accepted inconsistency window.
func (s *Store) Insert(ctx context.Context, table string, rows []Row, policy *ConflictPolicy) (Summary, error) {
	if err := s.requireRegistered("insert", table); err != nil {
		s.log.Error("insert failed", "db", s.name, "table", table, "error", err)
		return Summary{}, err
	}

	sqlText, args, err := buildInsert(table, rows, policy)
	if err != nil {
		s.log.Error("insert failed", "db", s.name, "table", table, "error", err)
		return Summary{}, err
	}

	res, err := s.execute(ctx, "insert", table, sqlText, args)
	if err != nil {
		s.log.Error("insert failed", "db", s.name, "table", table, "error", err)
		return Summary{}, err
	}

	sum := summarize(res, true)
	s.log.Debug("insert", "db", s.name, "table", table, "rows", sum.RowsAffected)
	return sum, nil
}

// Update sets row's columns on every row matching the condition chain.
// Like Insert, it consults only the in-memory registry.
func (s *Store) Update(ctx context.Context, table string, row Row, conds []Condition) (Summary, error) {
	if err := s.requireRegistered("update", table); err != nil {
		s.log.Error("update failed", "db", s.name, "table", table, "error", err)
		return Summary{}, err
	}

	sqlText, args, err := buildUpdate(table, row, conds)
	if err != nil {
		s.log.Error("update failed", "db", s.name, "table", table, "error", err)
		return Summary{}, err
	}

	res, err := s.execute(ctx, "update", table, sqlText, args)
	if err != nil {
		s.log.Error("update failed", "db", s.name, "table", table, "error", err)
		return Summary{}, err
	}

	sum := summarize(res, false)
	s.log.Debug("update", "db", s.name, "table", table, "rows", sum.RowsAffected)
	return sum, nil
}

// Delete removes every row matching the condition chain. An empty chain
// deletes all rows. The table must exist in the engine catalog.
func (s *Store) Delete(ctx context.Context, table string, conds []Condition) (Summary, error) {
	if err := s.requireInCatalog(ctx, "delete", table); err != nil {
		s.log.Error("delete failed", "db", s.name, "table", table, "error", err)
		return Summary{}, err
	}

	sqlText, args, err := buildDelete(table, conds)
	if err != nil {
		s.log.Error("delete failed", "db", s.name, "table", table, "error", err)
		return Summary{}, err
	}

	res, err := s.execute(ctx, "delete", table, sqlText, args)
	if err != nil {
		s.log.Error("delete failed", "db", s.name, "table", table, "error", err)
		return Summary{}, err
	}

	sum := summarize(res, false)
	s.log.Debug("delete", "db", s.name, "table", table, "rows", sum.RowsAffected)
	return sum, nil
}

// Begin opens a transaction by sending BEGIN straight to the engine. No
// nesting is tracked here: a second Begin inside an open transaction fails
// with whatever the engine raises. Callers own the begin/commit or
// begin/rollback pairing.
func (s *Store) Begin(ctx context.Context) error {
	return s.txExec(ctx, "begin", "BEGIN")
}

// Commit commits the open transaction.
func (s *Store) Commit(ctx context.Context) error {
	return s.txExec(ctx, "commit", "COMMIT")
}

// Rollback abandons the open transaction.
func (s *Store) Rollback(ctx context.Context) error {
	return s.txExec(ctx, "rollback", "ROLLBACK")
}

// txExec sends a bare transaction-control statement to the engine. These
// bypass the statement cache: they take no parameters and caching them would
// complicate eviction while a transaction is open.
func (s *Store) txExec(ctx context.Context, op, sqlText string) error {
	if _, err := s.db.ExecContext(ctx, sqlText); err != nil {
		if isTxStateMessage(err.Error()) {
			err = fmt.Errorf("%w: %v", ErrTxState, err)
		}
		err = engineErr(op, "", err)
		s.log.Error("transaction control failed", "db", s.name, "op", op, "error", err)
		return err
	}
	s.log.Debug("transaction control", "db", s.name, "op", op)
	return nil
}

// HealthCheck verifies the connection with a trivial query.
func (s *Store) HealthCheck(ctx context.Context) error {
	var result int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("store health check failed: %w", err)
	}
	return nil
}

// Close evicts the statement cache and closes the connection. Safe to call
// more than once; the work runs exactly once and later calls return the
// first outcome. The shutdown coordinator invokes this during graceful
// termination.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.cache.evictAll()
		if err := s.db.Close(); err != nil {
			s.closeErr = fmt.Errorf("closing database: %w", err)
			return
		}
		s.log.Info("store closed", "db", s.name, "id", s.id)
	})
	return s.closeErr
}

// Path returns the filesystem path of the database file.
func (s *Store) Path() string {
	return s.path
}

// Name returns the logical database name.
func (s *Store) Name() string {
	return s.name
}

// Stats describes the store's connection and cache state.
type Stats struct {
	DB               sql.DBStats
	CachedStatements int
}

// Stats returns connection pool and statement cache statistics.
func (s *Store) Stats() Stats {
	return Stats{
		DB:               s.db.Stats(),
		CachedStatements: s.cache.size(),
	}
}

// getOrPrepare returns the cached statement for sqlText, preparing and
// caching it on a miss.
func (s *Store) getOrPrepare(ctx context.Context, op, table, sqlText string) (*sql.Stmt, error) {
	if stmt := s.cache.get(sqlText); stmt != nil {
		return stmt, nil
	}

	stmt, err := s.db.PrepareContext(ctx, sqlText)
	if err != nil {
		return nil, engineErr(op, table, err)
	}
	// The cache arbitrates concurrent misses on the same text and hands
	// back the one resident statement.
	return s.cache.put(sqlText, stmt), nil
}

// execute runs a statement through the cache and returns the engine result.
func (s *Store) execute(ctx context.Context, op, table, sqlText string, args []any) (sql.Result, error) {
	stmt, err := s.getOrPrepare(ctx, op, table, sqlText)
	if err != nil {
		return nil, err
	}
	res, err := stmt.ExecContext(ctx, args...)
	if err != nil {
		return nil, engineErr(op, table, err)
	}
	return res, nil
}

// requireRegistered fails with a SchemaError when the table was never
// prepared through this store.
func (s *Store) requireRegistered(op, table string) error {
	s.mu.RLock()
	_, ok := s.schemas[table]
	s.mu.RUnlock()
	if !ok {
		return &SchemaError{Op: op, Table: table}
	}
	return nil
}

// requireInCatalog fails with a SchemaError when the engine catalog has no
// such table.
func (s *Store) requireInCatalog(ctx context.Context, op, table string) error {
	ok, err := s.TableExists(ctx, table)
	if err != nil {
		return err
	}
	if !ok {
		return &SchemaError{Op: op, Table: table}
	}
	return nil
}

// summarize extracts the row-count summary from an engine result.
func summarize(res sql.Result, withInsertID bool) Summary {
	var sum Summary
	// The SQLite driver supports both; errors here would mean a driver bug.
	sum.RowsAffected, _ = res.RowsAffected() //nolint:errcheck // Always available on sqlite3
	if withInsertID {
		sum.LastInsertID, _ = res.LastInsertId() //nolint:errcheck // Always available on sqlite3
	}
	return sum
}

// scanRows reads every result row into the generic Row form. BLOB/TEXT
// values arrive as []byte from the driver and are normalised to string.
func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := []Row{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(Row, len(cols))
		for i, name := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[name] = string(b)
			} else {
				row[name] = vals[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
