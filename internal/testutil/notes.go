package testutil

import (
	"path/filepath"
	"testing"

	"github.com/dativo-io/notescrub/internal/notestore"
)

// NewTestNoteStore creates a note store in a temp dir with a MIMIC-style
// noteevents table holding texts (row ids from 1) and registers t.Cleanup to
// close it.
func NewTestNoteStore(t *testing.T, texts ...string) *notestore.Store {
	t.Helper()
	store, err := notestore.Open(NotesDBPath(t, texts...), notestore.DefaultLayout, 100)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// NotesDBPath writes a SQLite database with a noteevents table holding texts
// and returns its path. The database is closed on return.
func NotesDBPath(t *testing.T, texts ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "notes.db")
	store, err := notestore.Open(path, notestore.DefaultLayout, 100)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if _, err := store.DB().Exec(`CREATE TABLE noteevents (row_id INTEGER PRIMARY KEY, text TEXT)`); err != nil {
		t.Fatal(err)
	}
	for i, text := range texts {
		if _, err := store.DB().Exec(`INSERT INTO noteevents (row_id, text) VALUES (?, ?)`, i+1, text); err != nil {
			t.Fatal(err)
		}
	}
	return path
}
