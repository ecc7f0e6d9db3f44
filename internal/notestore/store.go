// Package notestore reads clinical notes from a SQLite table and persists
// normalized results next to them.
//
// The default layout matches MIMIC-III: notes live in noteevents(row_id,
// text) and results go to normalized_notes keyed by the same row_id.
package notestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	notesotel "github.com/dativo-io/notescrub/internal/otel"
)

var tracer = notesotel.Tracer("github.com/dativo-io/notescrub/internal/notestore")

// ErrInvalidIdentifier is returned for table or column names that are not
// plain SQL identifiers. Names are interpolated into queries, so anything
// else is rejected.
var ErrInvalidIdentifier = errors.New("invalid SQL identifier")

var identifierRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Note is one input record.
type Note struct {
	ID   string
	Text string
}

// Result is one normalized note.
type Result struct {
	ID          string
	Text        string
	Markers     int
	Unresolved  int
	RunID       string
	ProcessedAt time.Time
}

// Layout names the tables and columns the store uses.
type Layout struct {
	NotesTable  string
	IDColumn    string
	TextColumn  string
	OutputTable string
}

// DefaultLayout is the MIMIC-III layout.
var DefaultLayout = Layout{
	NotesTable:  "noteevents",
	IDColumn:    "row_id",
	TextColumn:  "text",
	OutputTable: "normalized_notes",
}

func (l Layout) validate() error {
	for _, name := range []string{l.NotesTable, l.IDColumn, l.TextColumn, l.OutputTable} {
		if !identifierRE.MatchString(name) {
			return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
		}
	}
	return nil
}

// Store reads notes and writes results in one SQLite database.
type Store struct {
	db       *sql.DB
	layout   Layout
	pageSize int
}

// Open opens (or creates) the database at path and ensures the output table exists.
// The notes table is not created; it is owned by whoever loaded the corpus.
func Open(path string, layout Layout, pageSize int) (*Store, error) {
	if err := layout.validate(); err != nil {
		return nil, err
	}
	if pageSize <= 0 {
		pageSize = 500
	}

	// WAL lets the reader page through notes while results are written.
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening notes database: %w", err)
	}

	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %[1]s (
		%[2]s TEXT PRIMARY KEY,
		text TEXT NOT NULL,
		markers INTEGER NOT NULL,
		unresolved INTEGER NOT NULL,
		run_id TEXT NOT NULL,
		processed_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_%[1]s_run ON %[1]s(run_id);
	`, layout.OutputTable, layout.IDColumn)

	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating output schema: %w", err)
	}

	return &Store{db: db, layout: layout, pageSize: pageSize}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle, mainly for loading fixtures.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Notes calls fn for every note in id order. Notes are read a page at a
// time and the cursor is closed before fn runs, so fn may write results.
// Rows with a NULL id cannot be keyed and are skipped.
func (s *Store) Notes(ctx context.Context, fn func(Note) error) error {
	ctx, span := tracer.Start(ctx, "notestore.notes")
	defer span.End()

	firstPage := fmt.Sprintf(`SELECT %[1]s, %[2]s FROM %[3]s WHERE %[1]s IS NOT NULL ORDER BY %[1]s LIMIT ?`,
		s.layout.IDColumn, s.layout.TextColumn, s.layout.NotesTable)
	nextPage := fmt.Sprintf(`SELECT %[1]s, %[2]s FROM %[3]s WHERE %[1]s IS NOT NULL AND %[1]s > ? ORDER BY %[1]s LIMIT ?`,
		s.layout.IDColumn, s.layout.TextColumn, s.layout.NotesTable)

	var (
		lastKey interface{}
		started bool
	)
	total := 0
	for {
		var (
			rows *sql.Rows
			err  error
		)
		if !started {
			rows, err = s.db.QueryContext(ctx, firstPage, s.pageSize)
		} else {
			rows, err = s.db.QueryContext(ctx, nextPage, lastKey, s.pageSize)
		}
		if err != nil {
			return fmt.Errorf("querying notes: %w", err)
		}
		started = true

		page, key, err := scanPage(rows)
		if err != nil {
			return err
		}
		for _, n := range page {
			if err := fn(n); err != nil {
				return err
			}
		}
		total += len(page)
		if len(page) < s.pageSize {
			break
		}
		lastKey = key
	}

	span.SetAttributes(attribute.Int("notes.read", total))
	return nil
}

func scanPage(rows *sql.Rows) ([]Note, interface{}, error) {
	defer rows.Close()

	var (
		page    []Note
		lastKey interface{}
	)
	for rows.Next() {
		var (
			key  interface{}
			text sql.NullString
		)
		if err := rows.Scan(&key, &text); err != nil {
			return nil, nil, fmt.Errorf("scanning note: %w", err)
		}
		if b, ok := key.([]byte); ok {
			// Blobs sort after every text value; compare as text.
			key = string(b)
		}
		page = append(page, Note{ID: keyString(key), Text: text.String})
		lastKey = key
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterating notes: %w", err)
	}
	return page, lastKey, nil
}

func keyString(key interface{}) string {
	switch v := key.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Probe checks that the notes table and its id and text columns exist.
func (s *Store) Probe(ctx context.Context) error {
	q := fmt.Sprintf(`SELECT %s, %s FROM %s LIMIT 0`, s.layout.IDColumn, s.layout.TextColumn, s.layout.NotesTable)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return fmt.Errorf("probing %s: %w", s.layout.NotesTable, err)
	}
	return rows.Close()
}

// Count returns the number of notes in the notes table.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	q := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.layout.NotesTable)
	if err := s.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting notes: %w", err)
	}
	return n, nil
}

// Save upserts a result keyed by note id.
func (s *Store) Save(ctx context.Context, r Result) error {
	ctx, span := tracer.Start(ctx, "notestore.save",
		trace.WithAttributes(attribute.String("note.id", r.ID)))
	defer span.End()

	if r.ProcessedAt.IsZero() {
		r.ProcessedAt = time.Now().UTC()
	}
	q := fmt.Sprintf(`INSERT INTO %[1]s (%[2]s, text, markers, unresolved, run_id, processed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(%[2]s) DO UPDATE SET
			text = excluded.text,
			markers = excluded.markers,
			unresolved = excluded.unresolved,
			run_id = excluded.run_id,
			processed_at = excluded.processed_at`,
		s.layout.OutputTable, s.layout.IDColumn)

	if _, err := s.db.ExecContext(ctx, q, r.ID, r.Text, r.Markers, r.Unresolved, r.RunID, r.ProcessedAt); err != nil {
		return fmt.Errorf("saving result for note %s: %w", r.ID, err)
	}
	return nil
}

// Get returns the stored result for id.
func (s *Store) Get(ctx context.Context, id string) (*Result, error) {
	q := fmt.Sprintf(`SELECT %[2]s, text, markers, unresolved, run_id, processed_at FROM %[1]s WHERE %[2]s = ?`,
		s.layout.OutputTable, s.layout.IDColumn)

	var r Result
	err := s.db.QueryRowContext(ctx, q, id).Scan(&r.ID, &r.Text, &r.Markers, &r.Unresolved, &r.RunID, &r.ProcessedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("result %s: %w", id, err)
		}
		return nil, fmt.Errorf("loading result %s: %w", id, err)
	}
	return &r, nil
}
