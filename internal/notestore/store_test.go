package notestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, pageSize int) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "notes.db"), DefaultLayout, pageSize)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	_, err = store.DB().Exec(`CREATE TABLE noteevents (row_id INTEGER PRIMARY KEY, text TEXT)`)
	require.NoError(t, err)
	return store
}

func insertNotes(t *testing.T, s *Store, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		_, err := s.DB().Exec(`INSERT INTO noteevents (row_id, text) VALUES (?, ?)`,
			i, fmt.Sprintf("note %d seen at [**Hospital1**]", i))
		require.NoError(t, err)
	}
}

func TestNotesPaginates(t *testing.T) {
	s := newTestStore(t, 3)
	insertNotes(t, s, 7)

	var ids []string
	err := s.Notes(context.Background(), func(n Note) error {
		ids = append(ids, n.ID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3", "4", "5", "6", "7"}, ids)

	count, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}

func TestNotesExactPageMultiple(t *testing.T) {
	s := newTestStore(t, 2)
	insertNotes(t, s, 4)

	seen := 0
	require.NoError(t, s.Notes(context.Background(), func(Note) error {
		seen++
		return nil
	}))
	assert.Equal(t, 4, seen)
}

func TestNotesNullText(t *testing.T) {
	s := newTestStore(t, 10)
	_, err := s.DB().Exec(`INSERT INTO noteevents (row_id, text) VALUES (1, NULL)`)
	require.NoError(t, err)

	var got []Note
	require.NoError(t, s.Notes(context.Background(), func(n Note) error {
		got = append(got, n)
		return nil
	}))
	require.Len(t, got, 1)
	assert.Equal(t, Note{ID: "1", Text: ""}, got[0])
}

func TestNotesSkipsNullIDs(t *testing.T) {
	layout := Layout{NotesTable: "discharge", IDColumn: "note_id", TextColumn: "body", OutputTable: "clean"}
	s, err := Open(filepath.Join(t.TempDir(), "x.db"), layout, 2)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.DB().Exec(`CREATE TABLE discharge (note_id TEXT, body TEXT)`)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = s.DB().Exec(`INSERT INTO discharge VALUES (NULL, 'orphan')`)
		require.NoError(t, err)
	}
	for _, id := range []string{"c", "a", "b"} {
		_, err = s.DB().Exec(`INSERT INTO discharge VALUES (?, 'note')`, id)
		require.NoError(t, err)
	}

	var ids []string
	err = s.Notes(context.Background(), func(n Note) error {
		if len(ids) > 10 {
			return errors.New("paging did not terminate")
		}
		ids = append(ids, n.ID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestNotesCallbackErrorStops(t *testing.T) {
	s := newTestStore(t, 2)
	insertNotes(t, s, 5)

	stop := errors.New("stop")
	seen := 0
	err := s.Notes(context.Background(), func(Note) error {
		seen++
		if seen == 3 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 3, seen)
}

func TestNotesWriteDuringRead(t *testing.T) {
	s := newTestStore(t, 2)
	insertNotes(t, s, 5)
	ctx := context.Background()

	err := s.Notes(ctx, func(n Note) error {
		return s.Save(ctx, Result{ID: n.ID, Text: "t_hospital", Markers: 1, RunID: "run-1"})
	})
	require.NoError(t, err)

	r, err := s.Get(ctx, "5")
	require.NoError(t, err)
	assert.Equal(t, "t_hospital", r.Text)
	assert.Equal(t, "run-1", r.RunID)
	assert.False(t, r.ProcessedAt.IsZero())
}

func TestSaveUpserts(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, Result{ID: "42", Text: "first", Markers: 2, Unresolved: 1, RunID: "a"}))
	require.NoError(t, s.Save(ctx, Result{ID: "42", Text: "second", Markers: 2, RunID: "b"}))

	r, err := s.Get(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "second", r.Text)
	assert.Equal(t, 0, r.Unresolved)
	assert.Equal(t, "b", r.RunID)
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t, 10)
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestOpenRejectsBadIdentifiers(t *testing.T) {
	layout := DefaultLayout
	layout.NotesTable = "noteevents; DROP TABLE x"
	_, err := Open(filepath.Join(t.TempDir(), "x.db"), layout, 10)
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
}

func TestCustomLayout(t *testing.T) {
	layout := Layout{NotesTable: "discharge", IDColumn: "note_id", TextColumn: "body", OutputTable: "clean"}
	s, err := Open(filepath.Join(t.TempDir(), "x.db"), layout, 10)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.DB().Exec(`CREATE TABLE discharge (note_id TEXT PRIMARY KEY, body TEXT)`)
	require.NoError(t, err)
	_, err = s.DB().Exec(`INSERT INTO discharge VALUES ('a-1', 'Pt stable')`)
	require.NoError(t, err)

	var got []Note
	require.NoError(t, s.Notes(context.Background(), func(n Note) error {
		got = append(got, n)
		return nil
	}))
	assert.Equal(t, []Note{{ID: "a-1", Text: "Pt stable"}}, got)

	require.NoError(t, s.Save(context.Background(), Result{ID: "a-1", Text: "patient stable", RunID: "r"}))
	r, err := s.Get(context.Background(), "a-1")
	require.NoError(t, err)
	assert.Equal(t, "patient stable", r.Text)
}

func TestProbe(t *testing.T) {
	s := newTestStore(t, 10)
	require.NoError(t, s.Probe(context.Background()))

	layout := DefaultLayout
	layout.TextColumn = "body"
	other, err := Open(filepath.Join(t.TempDir(), "x.db"), layout, 10)
	require.NoError(t, err)
	defer other.Close()
	_, err = other.DB().Exec(`CREATE TABLE noteevents (row_id INTEGER PRIMARY KEY, text TEXT)`)
	require.NoError(t, err)
	assert.Error(t, other.Probe(context.Background()), "missing text column")
}
