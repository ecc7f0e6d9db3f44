package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dativo-io/notescrub/internal/classifier"
	"github.com/dativo-io/notescrub/internal/config"
	"github.com/dativo-io/notescrub/internal/otel"
	"github.com/dativo-io/notescrub/internal/scrub"
)

// resolvedVersion returns Version unless it is "dev" and Go build info
// contains a real module version (e.g. from go install ...@v0.3.0).
func resolvedVersion() string {
	if Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return Version
}

var tracer = otel.Tracer("github.com/dativo-io/notescrub/internal/cmd")

var (
	// otelShutdown holds the OTel shutdown function, called from Execute()
	otelShutdown func(context.Context) error

	// Version info injected via ldflags at build time
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	// Global flags
	cfgFile            string
	verbose            bool
	logLevel           string
	logFormat          string
	otelFlag           bool
	rulesFlag          string
	enabledCategories  []string
	disabledCategories []string
)

var rootCmd = &cobra.Command{
	Use:   "notescrub",
	Short: "Normalize de-identified clinical notes",
	Long: `notescrub prepares de-identified clinical notes (MIMIC-III style) for NLP.

It rewrites redaction markers such as [**Hospital1**] or [**2151-7-16**]
into canonical tokens (t_hospital, t_fulldate), drops empty markers, and
normalizes ages, "pt" and clock times.`,
	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()

		// OpenTelemetry when --otel, -v, or NOTESCRUB_OTEL_ENABLED=true
		otelEnabled := otelFlag || verbose || os.Getenv("NOTESCRUB_OTEL_ENABLED") == "true"
		shutdown, err := otel.Setup("notescrub", resolvedVersion(), otelEnabled, cmd.ErrOrStderr())
		if err != nil {
			return fmt.Errorf("initializing OpenTelemetry: %w", err)
		}
		otelShutdown = shutdown
		return nil
	},
}

func setupLogging() {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Logs go to stderr; stdout carries normalized notes.
	if logFormat == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			With().
			Timestamp().
			Logger()
	}

	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./notescrub.config.yaml or ~/.notescrub/notescrub.config.yaml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVar(&logFormat, "log-format", "console", "log format (console, json)")
	pf.BoolVar(&otelFlag, "otel", false, "enable OpenTelemetry (traces and metrics to stdout)")
	pf.StringVar(&rulesFlag, "rules", "", "redaction rule file (overrides rules_file)")
	pf.StringSliceVar(&enabledCategories, "enable-category", nil, "run only these resolver categories")
	pf.StringSliceVar(&disabledCategories, "disable-category", nil, "skip these resolver categories")

	_ = viper.BindPFlag("verbose", pf.Lookup("verbose"))
	_ = viper.BindPFlag("otel", pf.Lookup("otel"))
	_ = viper.BindPFlag("log_level", pf.Lookup("log-level"))
	_ = viper.BindPFlag("log_format", pf.Lookup("log-format"))
	_ = viper.BindPFlag(config.KeyRulesFile, pf.Lookup("rules"))
}

func initConfig() {
	// A .env file in the working directory is optional.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home + "/.notescrub")
		}
		viper.AddConfigPath(".")
		viper.SetConfigName("notescrub.config")
		viper.SetConfigType("yaml")
	}

	config.SetDefaults()

	// Read config (ignore errors - file may not exist)
	_ = viper.ReadInConfig()
}

// loadPipeline loads configuration and builds the note pipeline from the
// configured rule file and category flags.
func loadPipeline() (*config.Config, *scrub.Pipeline, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	p, err := scrub.New(
		classifier.WithRuleFile(cfg.ResolvedRulesFile()),
		classifier.WithEnabledCategories(enabledCategories),
		classifier.WithDisabledCategories(disabledCategories),
	)
	if err != nil {
		return nil, nil, err
	}
	log.Debug().
		Str("rules_file", cfg.ResolvedRulesFile()).
		Strs("categories", p.Categories()).
		Msg("pipeline ready")
	return cfg, p, nil
}

// Execute runs the root command and flushes OTel on exit
func Execute() error {
	err := rootCmd.Execute()
	if otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = otelShutdown(ctx)
	}
	return err
}
