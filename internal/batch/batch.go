// Package batch runs the note pipeline over a corpus.
//
// One goroutine reads the Source, a fixed pool normalizes notes and a single
// writer drains results into the Sink, so sinks never see concurrent writes.
package batch

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	notesotel "github.com/dativo-io/notescrub/internal/otel"
	"github.com/dativo-io/notescrub/internal/scrub"
)

var (
	tracer = notesotel.Tracer("github.com/dativo-io/notescrub/internal/batch")
	meter  = otel.Meter("github.com/dativo-io/notescrub/internal/batch")
)

var notesFailed metric.Int64Counter

func init() {
	var err error
	notesFailed, err = meter.Int64Counter("batch.notes.failed",
		metric.WithDescription("Notes skipped because they could not be read"))
	if err != nil {
		notesFailed, _ = meter.Int64Counter("batch.notes.failed.fallback")
	}
}

// Processor normalizes a single note. *scrub.Pipeline implements it.
type Processor interface {
	ProcessContext(ctx context.Context, text string) (string, scrub.Summary)
}

// Options configures a run.
type Options struct {
	Workers int    // defaults to GOMAXPROCS
	RunID   string // defaults to a new UUID
}

// Failure records a note that was skipped.
type Failure struct {
	ID  string `json:"id"`
	Err string `json:"error"`
}

// Report summarizes a run.
type Report struct {
	RunID      string         `json:"run_id"`
	Notes      int            `json:"notes"`
	Markers    int            `json:"markers"`
	Removed    int            `json:"removed"`
	Unresolved int            `json:"unresolved"`
	Tokens     map[string]int `json:"tokens"`
	Failures   []Failure      `json:"failures,omitempty"`
	Duration   time.Duration  `json:"duration"`
}

// Run normalizes every note from src into sink. A read failure on a single
// note is recorded and skipped; a sink error or context cancellation aborts
// the run. The sink is not closed.
func Run(ctx context.Context, src Source, sink Sink, p Processor, opts Options) (*Report, error) {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.RunID == "" {
		opts.RunID = uuid.New().String()
	}

	ctx, span := tracer.Start(ctx, "batch.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("batch.run_id", opts.RunID),
		attribute.Int("batch.workers", opts.Workers),
	)

	start := time.Now()
	rep := &Report{RunID: opts.RunID, Tokens: make(map[string]int)}

	log.Info().
		Str("run_id", opts.RunID).
		Int("workers", opts.Workers).
		Func(notesotel.LogTraceFields(ctx)).
		Msg("batch started")

	notes := make(chan Note, opts.Workers*2)
	type result struct {
		out Output
		sum scrub.Summary
	}
	results := make(chan result, opts.Workers*2)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(notes)
		skip := func(id string, err error) {
			rep.Failures = append(rep.Failures, Failure{ID: id, Err: err.Error()})
			notesFailed.Add(gctx, 1)
			log.Warn().Str("run_id", opts.RunID).Str("note_id", id).Err(err).Msg("skipping note")
		}
		return src.Each(gctx, func(n Note) error {
			select {
			case notes <- n:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		}, skip)
	})

	var workers sync.WaitGroup
	for i := 0; i < opts.Workers; i++ {
		workers.Add(1)
		g.Go(func() error {
			defer workers.Done()
			for n := range notes {
				text, sum := p.ProcessContext(gctx, n.Text)
				r := result{
					out: Output{
						ID:         n.ID,
						Text:       text,
						Markers:    sum.Markers,
						Unresolved: sum.Unresolved,
						RunID:      opts.RunID,
					},
					sum: sum,
				}
				select {
				case results <- r:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		workers.Wait()
		close(results)
	}()

	g.Go(func() error {
		for r := range results {
			if err := sink.Write(gctx, r.out); err != nil {
				return err
			}
			rep.Notes++
			rep.Markers += r.sum.Markers
			rep.Removed += r.sum.Removed
			rep.Unresolved += r.sum.Unresolved
			for tok, n := range r.sum.Resolved {
				rep.Tokens[tok] += n
			}
		}
		return nil
	})

	err := g.Wait()
	rep.Duration = time.Since(start)

	span.SetAttributes(
		attribute.Int("batch.notes", rep.Notes),
		attribute.Int("batch.failures", len(rep.Failures)),
	)

	if err != nil {
		log.Error().
			Str("run_id", opts.RunID).
			Int("notes", rep.Notes).
			Err(err).
			Func(notesotel.LogTraceFields(ctx)).
			Msg("batch aborted")
		return rep, fmt.Errorf("batch run %s: %w", opts.RunID, err)
	}

	log.Info().
		Str("run_id", opts.RunID).
		Int("notes", rep.Notes).
		Int("markers", rep.Markers).
		Int("unresolved", rep.Unresolved).
		Int("failures", len(rep.Failures)).
		Dur("duration", rep.Duration).
		Func(notesotel.LogTraceFields(ctx)).
		Msg("batch finished")
	return rep, nil
}
