// Package config holds operator-level configuration for notescrub.
//
// Values come from env vars (NOTESCRUB_*), an optional config file
// (notescrub.config.yaml) and defaults, merged by Viper. The note
// normalization itself takes no configuration beyond the rule file; the
// remaining keys drive the batch driver and the HTTP service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/spf13/viper"
)

// Viper keys. Each maps to an env var with the NOTESCRUB_ prefix
// (e.g. "db_path" → NOTESCRUB_DB_PATH) and to a YAML field in
// notescrub.config.yaml.
const (
	KeyDataDir      = "data_dir"
	KeyRulesFile    = "rules_file"
	KeyWorkers      = "workers"
	KeyDBPath       = "db_path"
	KeyNotesTable   = "notes_table"
	KeyIDColumn     = "id_column"
	KeyTextColumn   = "text_column"
	KeyOutputTable  = "output_table"
	KeyPageSize     = "page_size"
	KeyServeAddr    = "serve_addr"
	KeyRateLimitRPM = "rate_limit_rpm"
	KeyGlobalRPM    = "rate_limit_global_rpm"
	KeyAPIKeys      = "api_keys"
	KeyMaxNoteKB    = "max_note_kb"
	KeyTrustProxy   = "trust_proxy"
)

// Defaults follow the MIMIC-III NOTEEVENTS layout.
const (
	DefaultNotesTable   = "noteevents"
	DefaultIDColumn     = "row_id"
	DefaultTextColumn   = "text"
	DefaultOutputTable  = "normalized_notes"
	DefaultPageSize     = 500
	DefaultServeAddr    = "127.0.0.1:8087"
	DefaultRateLimitRPM = 600
	DefaultGlobalRPM    = 6000
	DefaultMaxNoteKB    = 512
)

var identifierRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config holds resolved operator configuration.
type Config struct {
	DataDir      string // base directory (~/.notescrub)
	RulesFile    string // optional redaction rule overrides
	Workers      int    // batch worker goroutines
	DBPath       string // SQLite database holding notes
	NotesTable   string
	IDColumn     string
	TextColumn   string
	OutputTable  string
	PageSize     int
	ServeAddr    string
	RateLimitRPM int      // per client
	GlobalRPM    int      // across all clients
	APIKeys      []string // empty leaves the service open
	MaxNoteKB    int
	TrustProxy   bool // key clients on X-Forwarded-For / X-Real-IP
}

// DefaultRulesPath is where a rule file is looked up when rules_file is unset.
func (c *Config) DefaultRulesPath() string {
	return filepath.Join(c.DataDir, "rules.yaml")
}

// ResolvedRulesFile returns RulesFile, or DefaultRulesPath when unset.
// The file is optional either way.
func (c *Config) ResolvedRulesFile() string {
	if c.RulesFile != "" {
		return c.RulesFile
	}
	return c.DefaultRulesPath()
}

// ResolvedDBPath returns DBPath, or notes.db under DataDir when unset.
func (c *Config) ResolvedDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return filepath.Join(c.DataDir, "notes.db")
}

// MaxNoteBytes is the request body cap for the HTTP service.
func (c *Config) MaxNoteBytes() int64 {
	return int64(c.MaxNoteKB) * 1024
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0o700)
}

func init() {
	SetDefaults()
}

// SetDefaults registers env binding and defaults on the global Viper.
func SetDefaults() {
	viper.SetEnvPrefix("NOTESCRUB")
	viper.AutomaticEnv()
	viper.SetDefault(KeyWorkers, 0)
	viper.SetDefault(KeyNotesTable, DefaultNotesTable)
	viper.SetDefault(KeyIDColumn, DefaultIDColumn)
	viper.SetDefault(KeyTextColumn, DefaultTextColumn)
	viper.SetDefault(KeyOutputTable, DefaultOutputTable)
	viper.SetDefault(KeyPageSize, DefaultPageSize)
	viper.SetDefault(KeyServeAddr, DefaultServeAddr)
	viper.SetDefault(KeyRateLimitRPM, DefaultRateLimitRPM)
	viper.SetDefault(KeyGlobalRPM, DefaultGlobalRPM)
	viper.SetDefault(KeyMaxNoteKB, DefaultMaxNoteKB)
}

// Load reads configuration from Viper and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{
		DataDir:      resolveDataDir(),
		RulesFile:    viper.GetString(KeyRulesFile),
		Workers:      viper.GetInt(KeyWorkers),
		DBPath:       viper.GetString(KeyDBPath),
		NotesTable:   viper.GetString(KeyNotesTable),
		IDColumn:     viper.GetString(KeyIDColumn),
		TextColumn:   viper.GetString(KeyTextColumn),
		OutputTable:  viper.GetString(KeyOutputTable),
		PageSize:     viper.GetInt(KeyPageSize),
		ServeAddr:    viper.GetString(KeyServeAddr),
		RateLimitRPM: viper.GetInt(KeyRateLimitRPM),
		GlobalRPM:    viper.GetInt(KeyGlobalRPM),
		APIKeys:      viper.GetStringSlice(KeyAPIKeys),
		MaxNoteKB:    viper.GetInt(KeyMaxNoteKB),
		TrustProxy:   viper.GetBool(KeyTrustProxy),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func resolveDataDir() string {
	if dir := viper.GetString(KeyDataDir); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".notescrub"
	}
	return filepath.Join(home, ".notescrub")
}

func (c *Config) validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page_size must be positive")
	}
	if c.RateLimitRPM <= 0 {
		return fmt.Errorf("rate_limit_rpm must be positive")
	}
	if c.GlobalRPM < c.RateLimitRPM {
		return fmt.Errorf("rate_limit_global_rpm must be at least rate_limit_rpm")
	}
	if c.MaxNoteKB <= 0 {
		return fmt.Errorf("max_note_kb must be positive")
	}
	for key, name := range map[string]string{
		KeyNotesTable:  c.NotesTable,
		KeyIDColumn:    c.IDColumn,
		KeyTextColumn:  c.TextColumn,
		KeyOutputTable: c.OutputTable,
	} {
		if !identifierRE.MatchString(name) {
			return fmt.Errorf("%s %q is not a valid SQL identifier", key, name)
		}
	}
	return nil
}
