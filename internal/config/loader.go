package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads configuration from a file, or from config.yaml inside a
// directory. Values not present in the file keep their defaults. Relative
// paths are resolved against the directory holding the file.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return nil, fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal([]byte(interpolateEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	cfg.SourcePath = absPath

	resolveRelativePaths(cfg, filepath.Dir(absPath))

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DiscoverConfigDir finds the config location by checking standard places.
// Priority order: $GITSHELF_CONFIG_DIR, ~/.config/gitshelf, /etc/gitshelf,
// ./config.yaml.
func DiscoverConfigDir() (string, error) {
	if dir := os.Getenv("GITSHELF_CONFIG_DIR"); dir != "" {
		if _, err := os.Stat(dir); err == nil {
			return dir, nil
		}
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		userConfigDir := filepath.Join(homeDir, ".config", "gitshelf")
		if _, err := os.Stat(filepath.Join(userConfigDir, "config.yaml")); err == nil {
			return userConfigDir, nil
		}
	}

	systemConfigDir := "/etc/gitshelf"
	if _, err := os.Stat(filepath.Join(systemConfigDir, "config.yaml")); err == nil {
		return systemConfigDir, nil
	}

	localConfigPath := "./config.yaml"
	if _, err := os.Stat(localConfigPath); err == nil {
		return localConfigPath, nil
	}

	return "", fmt.Errorf("no config found (checked: $GITSHELF_CONFIG_DIR, ~/.config/gitshelf, /etc/gitshelf, ./config.yaml)")
}

func resolveRelativePaths(cfg *Config, baseDir string) {
	for _, p := range []*string{&cfg.Workspaces.Root, &cfg.Scratch.Root, &cfg.Journal.Path} {
		if *p == "" || filepath.IsAbs(*p) || envVarPattern.MatchString(*p) {
			continue
		}
		*p = filepath.Join(baseDir, *p)
	}
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is and rejected by Validate.
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

// Validate performs basic validation on the configuration.
func Validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(cfg.Service.LogLevel)] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}
	if f := cfg.Service.LogFormat; f != "json" && f != "text" {
		return fmt.Errorf("service.log_format must be json or text (got %q)", f)
	}

	if cfg.API.Listen == "" {
		return fmt.Errorf("api.listen is required")
	}
	if cfg.API.MaxConcurrentQueries <= 0 {
		return fmt.Errorf("api.max_concurrent_queries must be positive")
	}
	if cfg.API.QueryTimeout < 0 {
		return fmt.Errorf("api.query_timeout must not be negative")
	}

	paths := map[string]string{
		"workspaces.root": cfg.Workspaces.Root,
		"scratch.root":    cfg.Scratch.Root,
	}
	if cfg.Journal.Enabled {
		paths["journal.path"] = cfg.Journal.Path
	}
	for field, value := range paths {
		if value == "" {
			return fmt.Errorf("%s is required", field)
		}
		if matches := envVarPattern.FindStringSubmatch(value); len(matches) > 1 {
			return fmt.Errorf("%s: environment variable ${%s} is not set", field, matches[1])
		}
	}

	if cfg.Scratch.MaxAge <= 0 {
		return fmt.Errorf("scratch.max_age must be positive")
	}
	if cfg.Scratch.SweepInterval <= 0 {
		return fmt.Errorf("scratch.sweep_interval must be positive")
	}
	// The sweeper judges scratch directories by age alone, so every query
	// must finish before its directory can look abandoned.
	if cfg.API.QueryTimeout == 0 || cfg.API.QueryTimeout >= cfg.Scratch.MaxAge {
		return fmt.Errorf("api.query_timeout must be positive and below scratch.max_age (%s), got %s",
			cfg.Scratch.MaxAge, cfg.API.QueryTimeout)
	}

	if cfg.Query.MaxFileBytes < 0 {
		return fmt.Errorf("query.max_file_bytes must not be negative")
	}
	if cfg.Query.MaxDiffLines < 0 {
		return fmt.Errorf("query.max_diff_lines must not be negative")
	}
	alias := cfg.Query.LatestAlias
	if alias == "" || strings.TrimSpace(alias) != alias || strings.ContainsAny(alias, " \t/") {
		return fmt.Errorf("query.latest_alias must be a single token (got %q)", alias)
	}

	if cfg.Journal.Retention < 0 {
		return fmt.Errorf("journal.retention must not be negative")
	}
	return nil
}
