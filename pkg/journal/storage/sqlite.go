package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"mercator-hq/turnstile/pkg/config"
	"mercator-hq/turnstile/pkg/journal"
)

// SQLite driver names registered with database/sql.
const (
	// DriverModernc is the pure Go driver from modernc.org/sqlite.
	DriverModernc = "sqlite"

	// DriverMattn is the cgo driver from github.com/mattn/go-sqlite3.
	DriverMattn = "sqlite3"
)

// SQLiteConfig contains configuration for the SQLite storage backend.
type SQLiteConfig struct {
	// Driver is DriverModernc or DriverMattn.
	// Default: DriverModernc
	Driver string

	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 4
	MaxOpenConns int

	// WALMode enables Write-Ahead Logging.
	WALMode bool

	// BusyTimeout is how long a connection waits on a locked database.
	// Default: 5 seconds
	BusyTimeout time.Duration

	// Logger is the component logger. Default: slog.Default().
	Logger *slog.Logger
}

// SQLiteConfigFrom converts the journal's sqlite section.
func SQLiteConfigFrom(cfg *config.SQLiteConfig) *SQLiteConfig {
	return &SQLiteConfig{
		Driver:       cfg.Driver,
		Path:         cfg.Path,
		MaxOpenConns: cfg.MaxOpenConns,
		WALMode:      cfg.WALMode,
		BusyTimeout:  cfg.BusyTimeout,
	}
}

// SQLiteStorage implements journal.Storage on a SQLite database.
type SQLiteStorage struct {
	db     *sql.DB
	config SQLiteConfig
	logger *slog.Logger
}

var _ journal.Storage = (*SQLiteStorage)(nil)

// NewSQLiteStorage opens (creating if needed) the database at cfg.Path and
// applies the schema.
func NewSQLiteStorage(cfg *SQLiteConfig) (*SQLiteStorage, error) {
	if cfg == nil || cfg.Path == "" {
		return nil, journal.NewStorageError("sqlite", "open", fmt.Errorf("database path is required"))
	}
	c := *cfg
	if c.Driver == "" {
		c.Driver = DriverModernc
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = config.DefaultJournalMaxOpenConns
	}
	if c.BusyTimeout <= 0 {
		c.BusyTimeout = config.DefaultJournalBusyTimeout
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "journal.storage.sqlite")

	dsn, err := buildDSN(&c)
	if err != nil {
		return nil, journal.NewStorageError("sqlite", "open", err)
	}

	if dir := filepath.Dir(c.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, journal.NewStorageError("sqlite", "open", err)
		}
	}

	db, err := sql.Open(c.Driver, dsn)
	if err != nil {
		return nil, journal.NewStorageError("sqlite", "open", err)
	}
	db.SetMaxOpenConns(c.MaxOpenConns)
	db.SetMaxIdleConns(c.MaxOpenConns)

	s := &SQLiteStorage{
		db:     db,
		config: c,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite journal storage initialized",
		"driver", c.Driver,
		"path", c.Path,
		"wal_mode", c.WALMode,
		"max_open_conns", c.MaxOpenConns,
	)

	return s, nil
}

// buildDSN encodes the pragmas in the connection string so every pooled
// connection gets them. The two drivers spell them differently.
func buildDSN(c *SQLiteConfig) (string, error) {
	ms := c.BusyTimeout.Milliseconds()
	params := url.Values{}

	switch c.Driver {
	case DriverModernc:
		params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", ms))
		if c.WALMode {
			params.Add("_pragma", "journal_mode(WAL)")
		}
	case DriverMattn:
		params.Set("_busy_timeout", fmt.Sprintf("%d", ms))
		if c.WALMode {
			params.Set("_journal_mode", "WAL")
		}
	default:
		return "", fmt.Errorf("unsupported sqlite driver %q (must be: %s, %s)", c.Driver, DriverModernc, DriverMattn)
	}

	return "file:" + c.Path + "?" + params.Encode(), nil
}

// initialize creates the schema and verifies its version.
func (s *SQLiteStorage) initialize() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return journal.NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion, time.Now().UnixNano()); err != nil {
		return journal.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	if err := s.db.QueryRow(GetSchemaVersion).Scan(&version); err != nil {
		return journal.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return journal.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	s.logger.Debug("schema version verified", "version", version)
	return nil
}

// Store inserts record.
func (s *SQLiteStorage) Store(ctx context.Context, record *journal.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO decisions (id, timestamp, request_id, limiter, strategy, identity, allowed)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.Timestamp.UnixNano(),
		record.RequestID,
		record.Limiter,
		record.Strategy,
		record.Identity,
		boolToInt(record.Allowed),
	)
	if err != nil {
		return journal.NewStorageError("sqlite", "store", err)
	}
	return nil
}

// Query returns records matching query.
func (s *SQLiteStorage) Query(ctx context.Context, query *journal.Query) ([]*journal.Record, error) {
	if query == nil {
		query = &journal.Query{}
	}

	where, args := buildWhereClause(query)

	sqlQuery := "SELECT id, timestamp, request_id, limiter, strategy, identity, allowed FROM decisions"
	if where != "" {
		sqlQuery += " WHERE " + where
	}

	order := "DESC"
	if query.Order == journal.OrderAsc {
		order = "ASC"
	}
	sqlQuery += fmt.Sprintf(" ORDER BY timestamp %s, id %s LIMIT ? OFFSET ?", order, order)
	args = append(args, query.EffectiveLimit(), query.Offset)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, journal.NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	records := []*journal.Record{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, journal.NewStorageError("sqlite", "scan", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, journal.NewStorageError("sqlite", "query", err)
	}

	return records, nil
}

// Count returns the number of records matching the query's filters.
func (s *SQLiteStorage) Count(ctx context.Context, query *journal.Query) (int64, error) {
	if query == nil {
		query = &journal.Query{}
	}

	where, args := buildWhereClause(query)
	sqlQuery := "SELECT COUNT(*) FROM decisions"
	if where != "" {
		sqlQuery += " WHERE " + where
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, sqlQuery, args...).Scan(&count); err != nil {
		return 0, journal.NewStorageError("sqlite", "count", err)
	}
	return count, nil
}

// DeleteBefore removes records older than cutoff.
func (s *SQLiteStorage) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM decisions WHERE timestamp < ?", cutoff.UnixNano())
	if err != nil {
		return 0, journal.NewStorageError("sqlite", "delete", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, journal.NewStorageError("sqlite", "delete", err)
	}
	return n, nil
}

// Ping checks that the database answers.
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return journal.NewStorageError("sqlite", "ping", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	if err := s.db.Close(); err != nil {
		return journal.NewStorageError("sqlite", "close", err)
	}
	s.logger.Info("SQLite journal storage closed")
	return nil
}

// buildWhereClause returns the WHERE conditions (without the keyword)
// and their arguments.
func buildWhereClause(query *journal.Query) (string, []any) {
	var conditions []string
	var args []any

	if query.Since != nil {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, query.Since.UnixNano())
	}
	if query.Until != nil {
		conditions = append(conditions, "timestamp < ?")
		args = append(args, query.Until.UnixNano())
	}
	if query.Limiter != "" {
		conditions = append(conditions, "limiter = ?")
		args = append(args, query.Limiter)
	}
	if query.Identity != "" {
		conditions = append(conditions, "identity = ?")
		args = append(args, query.Identity)
	}
	if query.Allowed != nil {
		conditions = append(conditions, "allowed = ?")
		args = append(args, boolToInt(*query.Allowed))
	}

	return strings.Join(conditions, " AND "), args
}

func scanRecord(rows *sql.Rows) (*journal.Record, error) {
	var r journal.Record
	var ts int64
	var allowed int

	if err := rows.Scan(&r.ID, &ts, &r.RequestID, &r.Limiter, &r.Strategy, &r.Identity, &allowed); err != nil {
		return nil, err
	}
	r.Timestamp = time.Unix(0, ts).UTC()
	r.Allowed = allowed != 0
	return &r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
