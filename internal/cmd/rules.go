package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dativo-io/notescrub/internal/classifier"
)

var rulesFormat string

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and validate redaction rules",
}

var rulesShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective rules in pass order",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, span := tracer.Start(cmd.Context(), "rules.show")
		defer span.End()

		_, p, err := loadPipeline()
		if err != nil {
			return err
		}
		rf := p.Rules().RuleFile()

		out := cmd.OutOrStdout()
		switch rulesFormat {
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(rf)
		case "yaml", "":
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(rf); err != nil {
				return fmt.Errorf("encoding rules: %w", err)
			}
			return enc.Close()
		default:
			return fmt.Errorf("unknown format %q (want yaml or json)", rulesFormat)
		}
	},
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate FILE",
	Short: "Validate a rule file against the schema and compile it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, span := tracer.Start(cmd.Context(), "rules.validate")
		defer span.End()

		file := args[0]
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("reading %s: %w", file, err)
		}
		if err := classifier.ValidateRuleFile(data); err != nil {
			log.Error().Err(err).Str("file", file).Msg("rule file validation failed")
			fmt.Fprintf(cmd.ErrOrStderr(), "✗ Validation failed: %s\n", file)
			return fmt.Errorf("validation failed: %w", err)
		}
		rs, err := classifier.NewRuleset(classifier.WithRuleFile(file))
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "✗ Compilation failed: %s\n", file)
			return fmt.Errorf("compiling rules: %w", err)
		}

		rf, err := classifier.ParseRuleFile(data)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ Rule file valid: %s\n", file)
		fmt.Fprintf(out, "  Categories in file: %d\n", len(rf.Categories))
		fmt.Fprintf(out, "  Effective passes:  ")
		for i, c := range rs.Classifiers() {
			if i > 0 {
				fmt.Fprint(out, " → ")
			}
			fmt.Fprint(out, c.Category)
		}
		fmt.Fprintln(out)
		return nil
	},
}

func init() {
	rulesShowCmd.Flags().StringVar(&rulesFormat, "format", "yaml", "output format (yaml, json)")
	rulesCmd.AddCommand(rulesShowCmd, rulesValidateCmd)
	rootCmd.AddCommand(rulesCmd)
}
