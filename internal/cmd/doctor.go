package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dativo-io/notescrub/internal/config"
	"github.com/dativo-io/notescrub/internal/doctor"
)

var (
	doctorFormat string
	doctorSkipDB bool
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run preflight checks (data dir, rules, notes database)",
	Long:  "Verifies the data directory is writable, the rule file is valid and compiles, and the notes database has the configured table and columns.",
	RunE:  runDoctor,
}

func init() {
	doctorCmd.Flags().StringVar(&doctorFormat, "format", "text", "Output format: text or json")
	doctorCmd.Flags().BoolVar(&doctorSkipDB, "skip-db", false, "Skip database checks")
	rootCmd.AddCommand(doctorCmd)
}

var statusGlyph = map[string]string{
	"pass": "✓",
	"warn": "⚠",
	"fail": "✗",
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()
	ctx, span := tracer.Start(ctx, "doctor")
	defer span.End()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	report := doctor.Run(ctx, cfg, doctor.Options{SkipDatabase: doctorSkipDB})

	out := cmd.OutOrStdout()
	switch doctorFormat {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	case "text", "":
		for _, c := range report.Checks {
			fmt.Fprintf(out, "%s %s: %s\n", statusGlyph[c.Status], c.Name, c.Message)
			if c.Fix != "" && c.Status != "pass" {
				fmt.Fprintf(out, "    fix: %s\n", c.Fix)
			}
		}
		fmt.Fprintf(out, "\n%d passed, %d warnings, %d failed\n",
			report.Summary.Pass, report.Summary.Warn, report.Summary.Fail)
	default:
		return fmt.Errorf("unknown format %q (want text or json)", doctorFormat)
	}

	if report.Status == "fail" {
		return fmt.Errorf("preflight checks failed")
	}
	return nil
}
