// Package doctor provides preflight checks for notescrub configuration, rule
// files and the notes database. Used by `notescrub doctor`.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dativo-io/notescrub/internal/classifier"
	"github.com/dativo-io/notescrub/internal/config"
	"github.com/dativo-io/notescrub/internal/notestore"
)

// CheckResult is a single doctor check outcome.
type CheckResult struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Status   string `json:"status"` // pass, warn, fail
	Message  string `json:"message"`
	Fix      string `json:"fix,omitempty"`
}

// Summary tallies pass/warn/fail counts.
type Summary struct {
	Pass int `json:"pass"`
	Warn int `json:"warn"`
	Fail int `json:"fail"`
}

// Report is the complete doctor output.
type Report struct {
	Status  string        `json:"status"` // worst of all checks
	Checks  []CheckResult `json:"checks"`
	Summary Summary       `json:"summary"`
}

// Options controls which check categories to run.
type Options struct {
	SkipDatabase bool // batch input comes from files, not SQLite
}

// Run executes all checks against cfg and returns a report.
func Run(ctx context.Context, cfg *config.Config, opts Options) *Report {
	report := &Report{}

	report.Checks = append(report.Checks, checkDataDir(cfg))
	report.Checks = append(report.Checks, checkRules(cfg)...)
	if !opts.SkipDatabase {
		report.Checks = append(report.Checks, checkDatabase(ctx, cfg)...)
	}
	report.tally()
	return report
}

func (r *Report) tally() {
	r.Summary = Summary{}
	for _, c := range r.Checks {
		switch c.Status {
		case "pass":
			r.Summary.Pass++
		case "warn":
			r.Summary.Warn++
		case "fail":
			r.Summary.Fail++
		}
	}

	r.Status = "pass"
	if r.Summary.Warn > 0 {
		r.Status = "warn"
	}
	if r.Summary.Fail > 0 {
		r.Status = "fail"
	}
}

func checkDataDir(cfg *config.Config) CheckResult {
	if err := cfg.EnsureDataDir(); err != nil {
		return CheckResult{
			Name: "data_dir_writable", Category: "config", Status: "fail",
			Message: fmt.Sprintf("%s: %v", cfg.DataDir, err),
			Fix:     "Ensure directory exists and is writable, or set NOTESCRUB_DATA_DIR",
		}
	}
	testFile := filepath.Join(cfg.DataDir, ".doctor-write-test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return CheckResult{
			Name: "data_dir_writable", Category: "config", Status: "fail",
			Message: fmt.Sprintf("%s not writable: %v", cfg.DataDir, err),
		}
	}
	_ = os.Remove(testFile)
	return CheckResult{
		Name: "data_dir_writable", Category: "config", Status: "pass",
		Message: fmt.Sprintf("%s (writable)", cfg.DataDir),
	}
}

func checkRules(cfg *config.Config) []CheckResult {
	path := cfg.ResolvedRulesFile()
	rf, err := classifier.LoadRuleFile(path)
	if err != nil {
		return []CheckResult{{
			Name: "rules_file", Category: "rules", Status: "fail",
			Message: err.Error(),
			Fix:     fmt.Sprintf("Run 'notescrub rules validate %s'", path),
		}}
	}

	var results []CheckResult
	if rf == nil {
		results = append(results, CheckResult{
			Name: "rules_file", Category: "rules", Status: "pass",
			Message: fmt.Sprintf("%s not present, built-in rules only", path),
		})
	} else {
		results = append(results, CheckResult{
			Name: "rules_file", Category: "rules", Status: "pass",
			Message: fmt.Sprintf("%s (%d categories)", path, len(rf.Categories)),
		})
	}

	rs, err := classifier.NewRuleset(classifier.WithRuleFile(path))
	if err != nil {
		return append(results, CheckResult{
			Name: "rules_compile", Category: "rules", Status: "fail",
			Message: err.Error(),
		})
	}
	passes := make([]string, 0, len(rs.Classifiers()))
	for _, c := range rs.Classifiers() {
		passes = append(passes, c.Category)
	}
	return append(results, CheckResult{
		Name: "rules_compile", Category: "rules", Status: "pass",
		Message: strings.Join(passes, " → "),
	})
}

func checkDatabase(ctx context.Context, cfg *config.Config) []CheckResult {
	path := cfg.ResolvedDBPath()
	fi, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return []CheckResult{{
			Name: "notes_db", Category: "database", Status: "warn",
			Message: fmt.Sprintf("%s does not exist", path),
			Fix:     "Set db_path to a SQLite database holding the notes table, or use batch --in-dir/--jsonl",
		}}
	}
	if err != nil {
		return []CheckResult{{
			Name: "notes_db", Category: "database", Status: "fail",
			Message: fmt.Sprintf("%s: %v", path, err),
		}}
	}

	store, err := notestore.Open(path, notestore.Layout{
		NotesTable:  cfg.NotesTable,
		IDColumn:    cfg.IDColumn,
		TextColumn:  cfg.TextColumn,
		OutputTable: cfg.OutputTable,
	}, cfg.PageSize)
	if err != nil {
		return []CheckResult{{
			Name: "notes_db", Category: "database", Status: "fail",
			Message: fmt.Sprintf("%s: %v", path, err),
		}}
	}
	defer store.Close()

	results := []CheckResult{{
		Name: "notes_db", Category: "database", Status: "pass",
		Message: fmt.Sprintf("%s (%.1f MB)", path, float64(fi.Size())/(1024*1024)),
	}}

	count, err := store.Count(ctx)
	if err == nil {
		err = store.Probe(ctx)
	}
	if err != nil {
		return append(results, CheckResult{
			Name: "notes_table", Category: "database", Status: "fail",
			Message: fmt.Sprintf("%s: %v", cfg.NotesTable, err),
			Fix:     "Check notes_table, id_column and text_column",
		})
	}
	status := "pass"
	if count == 0 {
		status = "warn"
	}
	return append(results, CheckResult{
		Name: "notes_table", Category: "database", Status: status,
		Message: fmt.Sprintf("%d notes in %s", count, cfg.NotesTable),
	})
}
