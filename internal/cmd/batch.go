package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dativo-io/notescrub/internal/batch"
	"github.com/dativo-io/notescrub/internal/config"
	"github.com/dativo-io/notescrub/internal/notestore"
	"github.com/dativo-io/notescrub/internal/trigger"
)

var (
	batchDB       bool
	batchDBPath   string
	batchInDir    string
	batchOutDir   string
	batchJSONL    string
	batchOut      string
	batchWorkers  int
	batchRunID    string
	batchReport   bool
	batchSchedule string
	batchTimeout  time.Duration
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Normalize a corpus of notes",
	Long: `Normalizes every note from one source:

  --db                 the notes table of the SQLite database (db_path),
                       results go to the output table
  --in-dir DIR         *.txt files, results go to --out-dir
  --jsonl FILE         JSON Lines {"id","text"} ("-" for stdin),
                       results go to --out (default stdout)

With --schedule the run repeats on a cron schedule until interrupted;
results of each run are upserted, so rows added between runs are picked up.`,
	RunE: runBatch,
}

func init() {
	f := batchCmd.Flags()
	f.BoolVar(&batchDB, "db", false, "read notes from the SQLite notes table")
	f.StringVar(&batchDBPath, "db-path", "", "SQLite database (overrides db_path)")
	f.StringVar(&batchInDir, "in-dir", "", "directory of .txt notes")
	f.StringVar(&batchOutDir, "out-dir", "", "output directory for --in-dir")
	f.StringVar(&batchJSONL, "jsonl", "", "JSON Lines input file, - for stdin")
	f.StringVar(&batchOut, "out", "-", "JSON Lines output file for --jsonl, - for stdout")
	f.IntVar(&batchWorkers, "workers", 0, "worker goroutines (overrides workers; 0 = GOMAXPROCS)")
	f.StringVar(&batchRunID, "run-id", "", "run id recorded with results (default: random UUID)")
	f.BoolVar(&batchReport, "report", false, "print the run report as JSON to stdout")
	f.StringVar(&batchSchedule, "schedule", "", `re-run on a cron schedule until interrupted (e.g. "0 2 * * *", "@every 15m")`)
	f.DurationVar(&batchTimeout, "schedule-timeout", 0, "abort a scheduled run after this long (0 = no limit)")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sources := 0
	for _, set := range []bool{batchDB, batchInDir != "", batchJSONL != ""} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		return errors.New("exactly one of --db, --in-dir or --jsonl is required")
	}
	if batchInDir != "" && batchOutDir == "" {
		return errors.New("--in-dir requires --out-dir")
	}
	if batchReport && batchJSONL != "" && batchOut == "-" {
		return errors.New("--report cannot share stdout with --jsonl output; set --out")
	}
	if batchSchedule != "" && batchJSONL != "" {
		return errors.New("--schedule needs a re-readable source (--db or --in-dir)")
	}
	if batchTimeout < 0 {
		return errors.New("--schedule-timeout must not be negative")
	}
	if batchTimeout > 0 && batchSchedule == "" {
		return errors.New("--schedule-timeout requires --schedule")
	}
	if batchSchedule != "" && batchReport {
		return errors.New("--report cannot be combined with --schedule; each run logs its report")
	}
	if batchSchedule != "" && batchRunID != "" {
		return errors.New("--run-id cannot be combined with --schedule; each run gets its own id")
	}

	cfg, p, err := loadPipeline()
	if err != nil {
		return err
	}
	workers := cfg.Workers
	if batchWorkers > 0 {
		workers = batchWorkers
	}

	runOnce := func(ctx context.Context) (*batch.Report, error) {
		ctx, span := tracer.Start(ctx, "batch")
		defer span.End()

		src, sink, closeIO, err := openBatchIO(cmd, cfg)
		if err != nil {
			return nil, err
		}
		defer closeIO()

		rep, runErr := batch.Run(ctx, src, sink, p, batch.Options{Workers: workers, RunID: batchRunID})
		if err := sink.Close(); err != nil && runErr == nil {
			runErr = fmt.Errorf("closing output: %w", err)
		}
		if runErr != nil {
			return nil, runErr
		}
		log.Info().
			Str("run_id", rep.RunID).
			Str("tokens", formatTokenCounts(rep.Tokens)).
			Dur("duration", rep.Duration).
			Msg("batch report")
		return rep, nil
	}

	if batchSchedule != "" {
		sched := trigger.NewScheduler(batchTimeout)
		err := sched.Add(ctx, "batch", batchSchedule, func(ctx context.Context) error {
			_, err := runOnce(ctx)
			return err
		})
		if err != nil {
			return err
		}
		sched.Run(ctx)
		return nil
	}

	rep, err := runOnce(ctx)
	if err != nil {
		return err
	}
	if batchReport {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	return nil
}

// openBatchIO builds the source and sink selected by flags. closeIO releases
// what the sink does not own.
func openBatchIO(cmd *cobra.Command, cfg *config.Config) (batch.Source, batch.Sink, func(), error) {
	closeIO := func() {}
	switch {
	case batchDB:
		path := cfg.ResolvedDBPath()
		if batchDBPath != "" {
			path = batchDBPath
		}
		store, err := notestore.Open(path, notestore.Layout{
			NotesTable:  cfg.NotesTable,
			IDColumn:    cfg.IDColumn,
			TextColumn:  cfg.TextColumn,
			OutputTable: cfg.OutputTable,
		}, cfg.PageSize)
		if err != nil {
			return nil, nil, nil, err
		}
		return batch.StoreSource{Store: store}, batch.StoreSink{Store: store}, func() { store.Close() }, nil

	case batchInDir != "":
		ds, err := batch.NewDirSink(batchOutDir)
		if err != nil {
			return nil, nil, nil, err
		}
		return batch.DirSource{Dir: batchInDir}, ds, closeIO, nil

	default:
		var in io.Reader = cmd.InOrStdin()
		if batchJSONL != "-" {
			fh, err := os.Open(batchJSONL)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("opening %s: %w", batchJSONL, err)
			}
			closeIO = func() { fh.Close() }
			in = fh
		}
		var w io.Writer = cmd.OutOrStdout()
		if batchOut != "-" {
			fh, err := os.Create(batchOut)
			if err != nil {
				closeIO()
				return nil, nil, nil, fmt.Errorf("creating %s: %w", batchOut, err)
			}
			w = fh
		}
		return batch.JSONLSource{R: in}, batch.NewJSONLSink(w), closeIO, nil
	}
}
