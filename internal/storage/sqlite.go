// ABOUTME: SQLite LocalStore implementation using modernc.org/sqlite (pure Go)
// ABOUTME: Full replace runs in one transaction; schema is managed by embedded golang-migrate migrations

package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/harper/feedsync/internal/models"
	"github.com/harper/feedsync/internal/observe"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const recordColumns = "id, title, link, thumbnail_url, summary, author, published_at, premium, seen"

// SQLiteStore implements LocalStore using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	writeMu sync.Mutex
	changes *observe.Broadcaster[[]models.FeedRecord]
	closed  bool
}

// NewSQLiteStore opens (or creates) the database at dbPath, applies
// migrations, and seeds the change stream with the current contents.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	store := &SQLiteStore{db: db}

	initial, err := store.ListAll(context.Background())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load initial records: %w", err)
	}
	store.changes = observe.NewBroadcasterWith(initial)

	return store, nil
}

// runMigrations applies all pending migrations and returns the schema version.
func runMigrations(db *sql.DB) (uint, error) {
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return 0, fmt.Errorf("create sqlite migrate driver: %w", err)
	}

	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return 0, fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("run migrations: %w", err)
	}

	version, _, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("get migration version: %w", err)
	}
	return version, nil
}

// ReplaceAll deletes every row and inserts records inside a single transaction,
// then publishes the new contents.
func (s *SQLiteStore) ReplaceAll(ctx context.Context, records []models.FeedRecord) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closed {
		return ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM feed_records`); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO feed_records (id, position, title, link, thumbnail_url, summary, author, published_at, premium, seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		_, err := stmt.ExecContext(ctx,
			r.ID, i, r.Title, r.Link, r.ThumbnailURL, r.Summary, r.Author,
			nullTime(r.PublishedAt), boolToInt(r.Premium), boolToInt(r.Seen),
		)
		if err != nil {
			return fmt.Errorf("insert record %q: %w", r.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO replace_log (record_count, replaced_at) VALUES (?, ?)`,
		len(records), time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("record replace: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	s.changes.Publish(models.Clone(records))
	return nil
}

// ObserveAll subscribes to store contents.
func (s *SQLiteStore) ObserveAll(_ context.Context) (*observe.Subscription[[]models.FeedRecord], error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	return s.changes.Subscribe(), nil
}

// ListAll returns all records in the order they were written.
func (s *SQLiteStore) ListAll(ctx context.Context) ([]models.FeedRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM feed_records ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := []models.FeedRecord{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// Get returns a record by exact ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (models.FeedRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM feed_records WHERE id = ?`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.FeedRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, err
}

// Count returns the number of stored records.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM feed_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// LastReplaced returns when the cache was last replaced and how many records
// were written. ok is false if the cache has never been replaced.
func (s *SQLiteStore) LastReplaced(ctx context.Context) (at time.Time, count int, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT replaced_at, record_count FROM replace_log ORDER BY id DESC LIMIT 1`)
	if err := row.Scan(&at, &count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, 0, false, nil
		}
		return time.Time{}, 0, false, fmt.Errorf("query replace log: %w", err)
	}
	return at, count, true, nil
}

// Close closes the database and all change subscriptions.
func (s *SQLiteStore) Close() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.changes.Close()
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (models.FeedRecord, error) {
	var (
		r         models.FeedRecord
		published sql.NullTime
		premium   int
		seen      int
	)
	if err := row.Scan(&r.ID, &r.Title, &r.Link, &r.ThumbnailURL, &r.Summary, &r.Author, &published, &premium, &seen); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scan record: %w", err)
	}
	if published.Valid {
		t := published.Time
		r.PublishedAt = &t
	}
	r.Premium = premium != 0
	r.Seen = seen != 0
	return r, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
