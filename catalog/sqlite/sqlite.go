// Package sqlite implements catalog.Store on a SQLite database using the
// pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/signalsfoundry/orbit-tracer/catalog"
	"github.com/signalsfoundry/orbit-tracer/model"

	_ "modernc.org/sqlite"
)

// Store persists orbital elements in a single table. Only the primary
// elements are stored; derived fields are recomputed on read.
type Store struct {
	db    *sql.DB
	sizes catalog.SizeRecorder
}

// Option customises a Store.
type Option func(*Store)

// WithSizeRecorder reports the catalog size after every change.
func WithSizeRecorder(r catalog.SizeRecorder) Option {
	return func(s *Store) { s.sizes = r }
}

// New opens (creating if needed) the database at dsn. ":memory:" gives a
// private in-memory database.
func New(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("sqlite catalog: empty dsn")
	}
	source := dsn
	if dsn != ":memory:" && !strings.Contains(dsn, "?") {
		source = dsn + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", source)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to ":memory:" is a fresh database, and SQLite
	// serialises writers anyway.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	if s.sizes != nil {
		if n, err := s.Count(ctx); err == nil {
			s.sizes.SetCatalogSize(n)
		}
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS elements (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		eccentricity REAL NOT NULL,
		semi_major_axis REAL NOT NULL,
		inclination REAL NOT NULL,
		raan REAL NOT NULL,
		arg_perigee REAL NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_elements_name ON elements(name);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Put inserts elements in one transaction.
func (s *Store) Put(ctx context.Context, elements ...model.OrbitalElement) ([]catalog.Entry, error) {
	for i, el := range elements {
		if !el.Valid() {
			return nil, fmt.Errorf("put element %d (%q): %w", i, el.Name(), model.ErrDegenerateOrbit)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO elements (name, eccentricity, semi_major_axis, inclination, raan, arg_perigee)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	entries := make([]catalog.Entry, 0, len(elements))
	for _, el := range elements {
		res, err := stmt.ExecContext(ctx, el.Name(), el.Eccentricity(), el.SemiMajorAxis(), el.Inclination(), el.RAAN(), el.ArgPerigee())
		if err != nil {
			return nil, fmt.Errorf("failed to insert %q: %w", el.Name(), err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("failed to read id for %q: %w", el.Name(), err)
		}
		entries = append(entries, catalog.Entry{ID: id, Element: el})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	s.reportSize(ctx)
	return entries, nil
}

const selectColumns = `SELECT id, name, eccentricity, semi_major_axis, inclination, raan, arg_perigee FROM elements`

// Get returns the entry with the given ID.
func (s *Store) Get(ctx context.Context, id int64) (catalog.Entry, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Entry{}, fmt.Errorf("element %d: %w", id, catalog.ErrNotFound)
	}
	return e, err
}

// FindByName returns all entries carrying name, ordered by ID.
func (s *Store) FindByName(ctx context.Context, name string) ([]catalog.Entry, error) {
	return s.query(ctx, selectColumns+` WHERE name = ? ORDER BY id`, name)
}

// List returns every entry ordered by ID.
func (s *Store) List(ctx context.Context) ([]catalog.Entry, error) {
	return s.query(ctx, selectColumns+` ORDER BY id`)
}

// Delete removes the entry with the given ID.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM elements WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete element %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete element %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("element %d: %w", id, catalog.ErrNotFound)
	}
	s.reportSize(ctx)
	return nil
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM elements`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count elements: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]catalog.Entry, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query elements: %w", err)
	}
	defer rows.Close()

	var entries []catalog.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating elements: %w", err)
	}
	return entries, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (catalog.Entry, error) {
	var (
		id  int64
		rec model.ElementRecord
	)
	err := sc.Scan(&id, &rec.Name, &rec.Eccentricity, &rec.SemiMajorAxis, &rec.Inclination, &rec.RAAN, &rec.ArgPerigee)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.Entry{}, err
		}
		return catalog.Entry{}, fmt.Errorf("failed to scan element: %w", err)
	}
	el, err := model.FromRecord(rec)
	if err != nil {
		return catalog.Entry{}, fmt.Errorf("stored element %d: %w", id, err)
	}
	return catalog.Entry{ID: id, Element: el}, nil
}

func (s *Store) reportSize(ctx context.Context) {
	if s.sizes == nil {
		return
	}
	if n, err := s.Count(ctx); err == nil {
		s.sizes.SetCatalogSize(n)
	}
}

var _ catalog.Store = (*Store)(nil)
