package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dativo-io/notescrub/internal/otel"
)

var processCmd = &cobra.Command{
	Use:   "process [FILE...]",
	Short: "Normalize notes from files or stdin and print them",
	Long: `Normalizes each FILE (or stdin when no file, or "-", is given) and writes
the result to stdout. Files are printed in argument order.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, span := tracer.Start(cmd.Context(), "process")
		defer span.End()

		_, p, err := loadPipeline()
		if err != nil {
			return err
		}
		if len(args) == 0 {
			args = []string{"-"}
		}

		out := cmd.OutOrStdout()
		for _, name := range args {
			text, err := readNote(cmd, name)
			if err != nil {
				return err
			}
			normalized, sum := p.ProcessContext(ctx, text)
			if _, err := io.WriteString(out, normalized); err != nil {
				return fmt.Errorf("writing output: %w", err)
			}
			log.Debug().
				Str("file", name).
				Int("markers", sum.Markers).
				Int("removed", sum.Removed).
				Int("unresolved", sum.Unresolved).
				Func(otel.LogTraceFields(ctx)).
				Msg("note processed")
		}
		return nil
	},
}

func readNote(cmd *cobra.Command, name string) (string, error) {
	if name == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", name, err)
	}
	return string(data), nil
}

func init() {
	rootCmd.AddCommand(processCmd)
}
