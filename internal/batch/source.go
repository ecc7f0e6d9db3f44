package batch

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dativo-io/notescrub/internal/notestore"
)

// Note is one unit of work.
type Note struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Output is a normalized note ready for a Sink.
type Output struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	Markers    int    `json:"markers"`
	Unresolved int    `json:"unresolved"`
	RunID      string `json:"run_id,omitempty"`
}

// ErrSkipNote wraps the reason a Source could not read a record. The run
// counts it as a failure and carries on.
var ErrSkipNote = errors.New("unreadable note")

// Source yields notes in order. Bad records go to skip; an error from emit
// must be returned as is.
type Source interface {
	Each(ctx context.Context, emit func(Note) error, skip func(id string, err error)) error
}

// Sink persists normalized notes. Write is only ever called from one goroutine.
type Sink interface {
	Write(ctx context.Context, out Output) error
	Close() error
}

// DirSource reads every *.txt file in a directory; the note id is the file
// name without extension.
type DirSource struct {
	Dir string
}

// Each implements Source.
func (s DirSource) Each(ctx context.Context, emit func(Note) error, skip func(string, error)) error {
	paths, err := filepath.Glob(filepath.Join(s.Dir, "*.txt"))
	if err != nil {
		return fmt.Errorf("listing %s: %w", s.Dir, err)
	}
	sort.Strings(paths)

	for _, p := range paths {
		id := strings.TrimSuffix(filepath.Base(p), ".txt")
		data, err := os.ReadFile(p)
		if err != nil {
			skip(id, fmt.Errorf("%w: %v", ErrSkipNote, err))
			continue
		}
		if err := emit(Note{ID: id, Text: string(data)}); err != nil {
			return err
		}
	}
	return nil
}

// DirSink writes <id>.txt files into a directory.
type DirSink struct {
	Dir string
}

// NewDirSink creates dir if needed.
func NewDirSink(dir string) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}
	return &DirSink{Dir: dir}, nil
}

// Write implements Sink.
func (s *DirSink) Write(_ context.Context, out Output) error {
	name := filepath.Base(out.ID)
	if name == "." || name == string(filepath.Separator) || name != out.ID {
		return fmt.Errorf("note id %q is not a valid file name", out.ID)
	}
	if err := os.WriteFile(filepath.Join(s.Dir, name+".txt"), []byte(out.Text), 0o644); err != nil {
		return fmt.Errorf("writing note %s: %w", out.ID, err)
	}
	return nil
}

// Close implements Sink.
func (s *DirSink) Close() error { return nil }

// maxLine bounds a single JSONL record.
const maxLine = 16 * 1024 * 1024

// JSONLSource reads {"id","text"} objects, one per line. Blank lines are
// ignored; a line without an id gets its line number.
type JSONLSource struct {
	R io.Reader
}

// Each implements Source.
func (s JSONLSource) Each(ctx context.Context, emit func(Note) error, skip func(string, error)) error {
	scanner := bufio.NewScanner(s.R)
	scanner.Buffer(nil, maxLine)

	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var n Note
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			skip(fmt.Sprintf("line:%d", line), fmt.Errorf("%w: %v", ErrSkipNote, err))
			continue
		}
		if n.ID == "" {
			n.ID = fmt.Sprintf("%d", line)
		}
		if err := emit(n); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading JSONL input: %w", err)
	}
	return nil
}

// JSONLSink writes one JSON object per output.
type JSONLSink struct {
	mu  sync.Mutex
	w   *bufio.Writer
	enc *json.Encoder
	c   io.Closer
}

// NewJSONLSink wraps w. If w is an io.Closer it is closed by Close.
func NewJSONLSink(w io.Writer) *JSONLSink {
	bw := bufio.NewWriter(w)
	s := &JSONLSink{w: bw, enc: json.NewEncoder(bw)}
	s.enc.SetEscapeHTML(false)
	if c, ok := w.(io.Closer); ok && w != os.Stdout {
		s.c = c
	}
	return s
}

// Write implements Sink.
func (s *JSONLSink) Write(_ context.Context, out Output) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(out); err != nil {
		return fmt.Errorf("encoding note %s: %w", out.ID, err)
	}
	return nil
}

// Close flushes buffered output.
func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.w.Flush()
	if s.c != nil {
		err = errors.Join(err, s.c.Close())
	}
	return err
}

// StoreSource reads notes from a notestore.Store.
type StoreSource struct {
	Store *notestore.Store
}

// Each implements Source.
func (s StoreSource) Each(ctx context.Context, emit func(Note) error, _ func(string, error)) error {
	return s.Store.Notes(ctx, func(n notestore.Note) error {
		return emit(Note{ID: n.ID, Text: n.Text})
	})
}

// StoreSink writes results to the store's output table.
type StoreSink struct {
	Store *notestore.Store
}

// Write implements Sink.
func (s StoreSink) Write(ctx context.Context, out Output) error {
	return s.Store.Save(ctx, notestore.Result{
		ID:         out.ID,
		Text:       out.Text,
		Markers:    out.Markers,
		Unresolved: out.Unresolved,
		RunID:      out.RunID,
	})
}

// Close is a no-op; the caller owns the store.
func (s StoreSink) Close() error { return nil }
