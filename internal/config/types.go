package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config represents the complete gitshelf configuration.
type Config struct {
	Service    ServiceConfig    `yaml:"service"`
	API        APIConfig        `yaml:"api"`
	Workspaces WorkspacesConfig `yaml:"workspaces"`
	Scratch    ScratchConfig    `yaml:"scratch"`
	Query      QueryConfig      `yaml:"query"`
	Journal    JournalConfig    `yaml:"journal"`

	// SourcePath is the file the configuration was loaded from, empty for
	// built-in defaults.
	SourcePath string `yaml:"-"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// APIConfig defines HTTP API server settings.
type APIConfig struct {
	Listen               string        `yaml:"listen"`
	MaxConcurrentQueries int           `yaml:"max_concurrent_queries"`
	QueryTimeout         time.Duration `yaml:"query_timeout"`
}

// WorkspacesConfig locates the repositories that can be queried.
type WorkspacesConfig struct {
	// Root holds one repository per workspace name.
	Root      string `yaml:"root"`
	GitBinary string `yaml:"git_binary,omitempty"`
	// TrustAll reads repositories owned by other users (safe.directory=*).
	TrustAll bool `yaml:"trust_all,omitempty"`
}

// ScratchConfig defines where checkouts are materialized.
type ScratchConfig struct {
	Root          string        `yaml:"root"`
	MaxAge        time.Duration `yaml:"max_age"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// QueryConfig tunes query evaluation.
type QueryConfig struct {
	MaxFileBytes int64  `yaml:"max_file_bytes"`
	LatestAlias  string `yaml:"latest_alias"`
	MaxDiffLines int    `yaml:"max_diff_lines"`
}

// JournalConfig defines the query journal database.
type JournalConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Path      string        `yaml:"path"`
	Retention time.Duration `yaml:"retention"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "gitshelf",
			LogLevel:  "info",
			LogFormat: "json",
		},
		API: APIConfig{
			Listen:               "127.0.0.1:3030",
			MaxConcurrentQueries: 16,
			QueryTimeout:         60 * time.Second,
		},
		Workspaces: WorkspacesConfig{
			Root: "./workspaces",
		},
		Scratch: ScratchConfig{
			Root:          filepath.Join(os.TempDir(), "gitshelf-scratch"),
			MaxAge:        time.Hour,
			SweepInterval: 10 * time.Minute,
		},
		Query: QueryConfig{
			MaxFileBytes: 16 << 20,
			LatestAlias:  "latest",
			MaxDiffLines: 5000,
		},
		Journal: JournalConfig{
			Enabled:   true,
			Path:      "./data/journal.db",
			Retention: 7 * 24 * time.Hour,
		},
	}
}
