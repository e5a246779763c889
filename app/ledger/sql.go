package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const entriesTable = "delivered_entries"

// SQLLedger stores fingerprints in the delivered_entries table of SQLite or
// Postgres. The primary key makes concurrent inserts of one fingerprint safe.
type SQLLedger struct {
	db      *sql.DB
	dialect string
	builder sq.StatementBuilderType
}

// OpenSQLite opens (creating if needed) a SQLite database file.
func OpenSQLite(path string) (*SQLLedger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	return NewSQLLedger(db, BackendSQLite), nil
}

func OpenPostgres(databaseURL string) (*SQLLedger, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return NewSQLLedger(db, BackendPostgres), nil
}

func NewSQLLedger(db *sql.DB, dialect string) *SQLLedger {
	builder := sq.StatementBuilder.PlaceholderFormat(sq.Question)
	if dialect == BackendPostgres {
		builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}

	return &SQLLedger{
		db:      db,
		dialect: dialect,
		builder: builder,
	}
}

// Load verifies the connection and applies pending schema migrations.
func (l *SQLLedger) Load(ctx context.Context) error {
	if err := l.db.PingContext(ctx); err != nil {
		return &StorageError{Op: "load", Err: fmt.Errorf("failed to connect to %s: %w", l.dialect, err)}
	}

	version, dirty, err := runMigrations(l.db, l.dialect)
	if err != nil {
		return &StorageError{Op: "load", Err: err}
	}

	count, err := l.Len(ctx)
	if err != nil {
		return err
	}

	slog.Info("Ledger database ready", "dialect", l.dialect, "schema_version", version, "dirty", dirty, "entries", count)
	return nil
}

func (l *SQLLedger) Contains(ctx context.Context, fingerprint string) (bool, error) {
	query, args, err := l.builder.
		Select("1").
		From(entriesTable).
		Where(sq.Eq{"fingerprint": fingerprint}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, &StorageError{Op: "contains", Err: err}
	}

	var found int
	err = l.db.QueryRowContext(ctx, query, args...).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, &StorageError{Op: "contains", Err: fmt.Errorf("failed to query fingerprint: %w", err)}
	}
	return true, nil
}

func (l *SQLLedger) Record(ctx context.Context, fingerprint string) error {
	query, args, err := l.builder.
		Insert(entriesTable).
		Columns("fingerprint", "recorded_at").
		Values(fingerprint, time.Now().UTC()).
		Suffix("ON CONFLICT (fingerprint) DO NOTHING").
		ToSql()
	if err != nil {
		return &StorageError{Op: "record", Err: err}
	}

	result, err := l.db.ExecContext(ctx, query, args...)
	if err != nil {
		return &StorageError{Op: "record", Err: fmt.Errorf("failed to insert fingerprint: %w", err)}
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return &StorageError{Op: "record", Err: fmt.Errorf("failed to read affected rows: %w", err)}
	}
	if affected == 0 {
		return ErrAlreadyRecorded
	}
	return nil
}

func (l *SQLLedger) Len(ctx context.Context) (int, error) {
	query, args, err := l.builder.Select("COUNT(*)").From(entriesTable).ToSql()
	if err != nil {
		return 0, &StorageError{Op: "len", Err: err}
	}

	var count int
	if err := l.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, &StorageError{Op: "len", Err: fmt.Errorf("failed to count fingerprints: %w", err)}
	}
	return count, nil
}

func (l *SQLLedger) Close() error {
	return l.db.Close()
}
