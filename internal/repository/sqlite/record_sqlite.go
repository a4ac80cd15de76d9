package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"quarklog/internal/database/migration"
	"quarklog/internal/model"
	"quarklog/internal/repository"
)

// Backend is the name reported in storage errors.
const Backend = "sqlite"

// RecordSQLite is a SQLite implementation of repository.RecordStore.
// It owns one *sql.DB and acquires a dedicated connection for the duration of each
// operation. It uses parameterized queries and contains no business logic.
type RecordSQLite struct {
	db       *sql.DB
	path     string
	readOnly bool
	clock    repository.Clock
	logger   *zap.Logger
	closed   atomic.Bool
}

// Option configures a RecordSQLite.
type Option func(*RecordSQLite)

// WithClock overrides the clock used to stamp new records.
func WithClock(c repository.Clock) Option {
	return func(r *RecordSQLite) { r.clock = c }
}

// WithLogger sets the logger used for migrations.
func WithLogger(l *zap.Logger) Option {
	return func(r *RecordSQLite) { r.logger = l }
}

// WithPath records the database file path for diagnostics.
func WithPath(p string) Option {
	return func(r *RecordSQLite) { r.path = p }
}

// WithReadOnly makes Initialize verify the schema instead of creating it.
func WithReadOnly(ro bool) Option {
	return func(r *RecordSQLite) { r.readOnly = ro }
}

// NewRecordSQLite creates a new RecordSQLite on an open database handle.
func NewRecordSQLite(db *sql.DB, opts ...Option) *RecordSQLite {
	r := &RecordSQLite{
		db:     db,
		clock:  repository.SystemClock,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ repository.RecordStore = (*RecordSQLite)(nil)

func (r *RecordSQLite) fail(op repository.Op, err error) error {
	return repository.NewStorageError(op, Backend, r.path, err)
}

// conn acquires a connection scoped to one operation; callers must Close it.
func (r *RecordSQLite) conn(ctx context.Context) (*sql.Conn, error) {
	if r.closed.Load() {
		return nil, repository.ErrClosed
	}
	c, err := r.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return c, nil
}

// Initialize creates the schema if absent. In read-only mode it only checks that the
// schema is present.
func (r *RecordSQLite) Initialize(ctx context.Context) error {
	c, err := r.conn(ctx)
	if err != nil {
		return r.fail(repository.OpInitialize, err)
	}
	defer c.Close()

	if r.readOnly {
		exists, err := migration.SchemaExists(ctx, c)
		if err != nil {
			return r.fail(repository.OpInitialize, err)
		}
		if !exists {
			return r.fail(repository.OpInitialize, fmt.Errorf("table %s missing: %w", migration.SentinelTable, repository.ErrReadOnly))
		}
		return nil
	}

	return r.fail(repository.OpInitialize, migration.EnsureMigrated(ctx, c, r.logger, r.path))
}

// Insert appends a record stamped with the store clock and returns its id.
func (r *RecordSQLite) Insert(ctx context.Context, text string) (model.RecordID, error) {
	c, err := r.conn(ctx)
	if err != nil {
		return 0, r.fail(repository.OpInsert, err)
	}
	defer c.Close()

	const q = `INSERT INTO records (text, created_at) VALUES (?, ?)`
	res, err := c.ExecContext(ctx, q, text, model.FormatTimestamp(r.clock()))
	if err != nil {
		return 0, r.fail(repository.OpInsert, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, r.fail(repository.OpInsert, fmt.Errorf("last insert id: %w", err))
	}
	return model.RecordID(id), nil
}

// ListAll returns every record ordered by id. Any scan or decode failure discards
// the rows read so far.
func (r *RecordSQLite) ListAll(ctx context.Context) ([]model.Record, error) {
	c, err := r.conn(ctx)
	if err != nil {
		return nil, r.fail(repository.OpList, err)
	}
	defer c.Close()

	const q = `
		SELECT id, text, created_at
		FROM records
		ORDER BY id
	`
	rows, err := c.QueryContext(ctx, q)
	if err != nil {
		return nil, r.fail(repository.OpList, err)
	}
	defer rows.Close()

	items := make([]model.Record, 0)
	for rows.Next() {
		var (
			rec       model.Record
			createdAt string
		)
		if err := rows.Scan(&rec.ID, &rec.Text, &createdAt); err != nil {
			return nil, r.fail(repository.OpList, err)
		}
		if rec.CreatedAt, err = model.ParseTimestamp(createdAt); err != nil {
			return nil, r.fail(repository.OpList, fmt.Errorf("record %d: %w", rec.ID, err))
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, r.fail(repository.OpList, err)
	}
	return items, nil
}

// Close closes the database handle. Closing twice is a no-op.
func (r *RecordSQLite) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := r.db.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		return r.fail(repository.OpClose, err)
	}
	return nil
}
