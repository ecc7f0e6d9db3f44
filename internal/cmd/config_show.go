package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dativo-io/notescrub/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage notescrub configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, span := tracer.Start(cmd.Context(), "config.show")
		defer span.End()

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := make([]string, len(cfg.APIKeys))
		for i, k := range cfg.APIKeys {
			keys[i] = maskKey(k)
		}
		source := viper.ConfigFileUsed()
		if source == "" {
			source = "(none)"
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		rows := [][2]string{
			{"config file", source},
			{config.KeyDataDir, cfg.DataDir},
			{config.KeyRulesFile, cfg.ResolvedRulesFile()},
			{config.KeyWorkers, fmt.Sprint(cfg.Workers)},
			{config.KeyDBPath, cfg.ResolvedDBPath()},
			{config.KeyNotesTable, cfg.NotesTable},
			{config.KeyIDColumn, cfg.IDColumn},
			{config.KeyTextColumn, cfg.TextColumn},
			{config.KeyOutputTable, cfg.OutputTable},
			{config.KeyPageSize, fmt.Sprint(cfg.PageSize)},
			{config.KeyServeAddr, cfg.ServeAddr},
			{config.KeyRateLimitRPM, fmt.Sprint(cfg.RateLimitRPM)},
			{config.KeyGlobalRPM, fmt.Sprint(cfg.GlobalRPM)},
			{config.KeyAPIKeys, strings.Join(keys, ",")},
			{config.KeyMaxNoteKB, fmt.Sprint(cfg.MaxNoteKB)},
			{config.KeyTrustProxy, fmt.Sprint(cfg.TrustProxy)},
		}
		for _, r := range rows {
			fmt.Fprintf(tw, "%s\t%s\n", r[0], r[1])
		}
		return tw.Flush()
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
