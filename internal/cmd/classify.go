package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dativo-io/notescrub/internal/marker"
)

var classifyCmd = &cobra.Command{
	Use:   "classify MARKER...",
	Short: "Show how redaction markers are resolved",
	Long: `Runs each MARKER through the resolver passes and prints the deciding
category and output token. A bare description such as "Hospital1" is
wrapped as [**Hospital1**].`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, span := tracer.Start(cmd.Context(), "classify")
		defer span.End()

		_, p, err := loadPipeline()
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "MARKER\tCATEGORY\tOUTPUT")
		for _, arg := range args {
			text := arg
			if marker.Count(text) == 0 {
				text = "[**" + arg + "**]"
			}
			out, decisions := p.Explain(text)
			if len(decisions) == 0 {
				fmt.Fprintf(tw, "%s\t-\t%s\n", text, describeOutput(out))
				continue
			}
			for _, d := range decisions {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Marker, d.Category, describeOutput(d.Output))
			}
		}
		return tw.Flush()
	},
}

func describeOutput(s string) string {
	switch {
	case s == "":
		return "(removed)"
	case marker.Count(s) > 0:
		return "(unresolved)"
	default:
		return strings.TrimSpace(s)
	}
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}
