package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/gitshelf/internal/api"
	"github.com/mattjoyce/gitshelf/internal/config"
	"github.com/mattjoyce/gitshelf/internal/doctor"
	"github.com/mattjoyce/gitshelf/internal/engine"
	"github.com/mattjoyce/gitshelf/internal/git"
	"github.com/mattjoyce/gitshelf/internal/journal"
	"github.com/mattjoyce/gitshelf/internal/lock"
	"github.com/mattjoyce/gitshelf/internal/log"
	"github.com/mattjoyce/gitshelf/internal/render"
	"github.com/mattjoyce/gitshelf/internal/scheduler"
	"github.com/mattjoyce/gitshelf/internal/scratch"
	"github.com/mattjoyce/gitshelf/internal/storage"
	"github.com/mattjoyce/gitshelf/internal/tui/watch"
	"github.com/mattjoyce/gitshelf/internal/workspace"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	switch cmd {
	// --- NOUNS ---
	case "config":
		return runConfigNoun(args)
	case "scratch":
		return runScratchNoun(args)

	// --- VERBS ---
	case "serve":
		return runServe(args)
	case "query":
		return runQuery(args)
	case "diff":
		return runDiff(args)
	case "watch":
		return runWatch(args)
	case "doctor":
		return runConfigCheck(args)
	case "version", "--version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

func printUsage() {
	fmt.Print(`gitshelf - Read-only query service for git-backed workspaces

Usage:
  gitshelf <command> [flags]

Service:
  serve              Start the HTTP query service in foreground
  watch              Live dashboard of a running service

Queries:
  query <name>       Query a workspace at a revision and path
  diff <name>        Diff one file between two revisions

Config Commands:
  config check       Validate configuration and host environment
  config get <path>  Print one configuration value (e.g. api.listen)

Scratch Commands:
  scratch sweep      Remove abandoned scratch directories

General:
  version            Show version information
  help               Show this help message

Most commands accept --config PATH (file or directory).
`)
}

// loadConfig loads an explicit path, falls back to discovery and finally
// to built-in defaults.
func loadConfig(path string) (*config.Config, string, error) {
	if path == "" {
		discovered, err := config.DiscoverConfigDir()
		if err != nil {
			return config.Defaults(), "", nil
		}
		path = discovered
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

func gitOpener(cfg *config.Config) engine.GitOpener {
	return engine.GitOpener{
		Root: workspace.Root(cfg.Workspaces.Root),
		Options: git.Options{
			Binary:   cfg.Workspaces.GitBinary,
			TrustAll: cfg.Workspaces.TrustAll,
		},
	}
}

func newEngine(cfg *config.Config, mgr *scratch.Manager) *engine.Engine {
	return engine.New(gitOpener(cfg), mgr, engine.Config{
		LatestAlias:  cfg.Query.LatestAlias,
		MaxFileBytes: cfg.Query.MaxFileBytes,
	}, log.WithComponent("engine"))
}

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	listen := fs.String("listen", "", "Override api.listen")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, source, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if *listen != "" {
		cfg.API.Listen = *listen
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")

	fingerprint, err := config.Fingerprint(cfg)
	if err != nil {
		logger.Warn("config fingerprint unavailable", "error", err)
	}
	logger.Info("gitshelf starting",
		"version", version,
		"config", source,
		"config_blake3", fingerprint,
		"workspaces_root", cfg.Workspaces.Root,
	)

	if err := storage.ValidateLockDir(cfg.Scratch.Root); err != nil {
		logger.Error("scratch root is not usable", "path", cfg.Scratch.Root, "error", err)
		return 1
	}
	scratchLock, err := lock.AcquireDir(cfg.Scratch.Root)
	if err != nil {
		logger.Error("failed to lock scratch root (another instance may be running)", "path", cfg.Scratch.Root, "error", err)
		return 1
	}
	defer scratchLock.Release()

	mgr, err := scratch.NewManager(cfg.Scratch.Root)
	if err != nil {
		logger.Error("failed to initialize scratch manager", "path", cfg.Scratch.Root, "error", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		pruner scheduler.JournalPruner
		qj     api.QueryJournal
	)
	if cfg.Journal.Enabled {
		db, err := storage.OpenSQLite(ctx, cfg.Journal.Path)
		if err != nil {
			logger.Error("failed to open journal", "path", cfg.Journal.Path, "error", err)
			return 1
		}
		defer db.Close()
		j := journal.New(db)
		pruner = j
		qj = j
		logger.Info("journal opened", "path", cfg.Journal.Path)
	}

	sched := scheduler.New(scheduler.Config{
		Interval:         cfg.Scratch.SweepInterval,
		ScratchMaxAge:    cfg.Scratch.MaxAge,
		JournalRetention: cfg.Journal.Retention,
	}, mgr, pruner, log.WithComponent("scheduler"))
	if err := sched.Start(ctx); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		return 1
	}
	defer sched.Stop()

	server := api.New(api.Config{
		Listen:               cfg.API.Listen,
		MaxConcurrentQueries: cfg.API.MaxConcurrentQueries,
		QueryTimeout:         cfg.API.QueryTimeout,
		MaxDiffLines:         cfg.Query.MaxDiffLines,
	}, newEngine(cfg, mgr), qj, log.WithComponent("api"))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	serverDone := make(chan error, 1)
	go func() { serverDone <- server.Start(ctx) }()

	logger.Info("gitshelf running (press Ctrl+C to stop)", "listen", cfg.API.Listen)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
		// In-flight queries release their scratch directories before
		// Start returns.
		if err := <-serverDone; err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("api shutdown failed", "error", err)
			return 1
		}
	case err := <-serverDone:
		logger.Error("component failed", "error", fmt.Errorf("api: %w", err))
		cancel()
		return 1
	}

	logger.Info("gitshelf stopped")
	return 0
}

func runQuery(args []string) int {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	rev := fs.String("version", "", "Revision to query (default: latest)")
	path := fs.String("path", "", "Path inside the workspace (default: root)")
	raw := fs.Bool("raw", false, "Write file contents to stdout without decoration")

	flags, positionals := splitFlagsAndPositionals(args, map[string]bool{"config": true, "version": true, "path": true})
	if err := fs.Parse(flags); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if len(positionals) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: gitshelf query <name> [--version REV] [--path PATH] [--raw]")
		return 1
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)

	mgr, err := scratch.NewManager(cfg.Scratch.Root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Scratch error: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.API.QueryTimeout)
	defer cancel()

	res, err := newEngine(cfg, mgr).Query(ctx, engine.Request{
		Workspace: positionals[0],
		Revision:  *rev,
		Path:      *path,
	})
	if err != nil {
		_ = render.New(os.Stderr).Error(err)
		return 1
	}

	if *raw && res.IsFile() {
		if _, err := os.Stdout.Write(res.Contents); err != nil {
			fmt.Fprintf(os.Stderr, "Write error: %v\n", err)
			return 1
		}
		return 0
	}
	if err := render.New(os.Stdout).Result(res); err != nil {
		fmt.Fprintf(os.Stderr, "Write error: %v\n", err)
		return 1
	}
	return 0
}

func runDiff(args []string) int {
	fs := flag.NewFlagSet("diff", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	from := fs.String("from", "", "Base revision (required)")
	to := fs.String("to", "", "Target revision (default: latest)")
	path := fs.String("path", "", "File to compare (required)")

	flags, positionals := splitFlagsAndPositionals(args, map[string]bool{"config": true, "from": true, "to": true, "path": true})
	if err := fs.Parse(flags); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if len(positionals) != 1 || *from == "" || *path == "" {
		fmt.Fprintln(os.Stderr, "Usage: gitshelf diff <name> --from REV [--to REV] --path FILE")
		return 1
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)

	mgr, err := scratch.NewManager(cfg.Scratch.Root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Scratch error: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.API.QueryTimeout)
	defer cancel()

	res, err := newEngine(cfg, mgr).Diff(ctx, engine.DiffRequest{
		Workspace: positionals[0],
		From:      *from,
		To:        *to,
		Path:      *path,
		MaxLines:  cfg.Query.MaxDiffLines,
	})
	if err != nil {
		_ = render.New(os.Stderr).Error(err)
		return 1
	}
	if err := render.New(os.Stdout).Diff(res); err != nil {
		fmt.Fprintf(os.Stderr, "Write error: %v\n", err)
		return 1
	}
	return 0
}

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	apiURL := fs.String("api-url", "http://127.0.0.1:3030", "gitshelf API URL")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	p := tea.NewProgram(watch.New(strings.TrimRight(*apiURL, "/")), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return 1
	}
	return 0
}

// --- config ---

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigNounHelp(os.Stderr)
		return 1
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "check":
		return runConfigCheck(actionArgs)
	case "get":
		return runConfigGet(actionArgs)
	case "help":
		printConfigNounHelp(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

func printConfigNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: gitshelf config <check|get> [flags]")
	fmt.Fprintln(w, "  check [--config PATH] [--json]   Validate configuration and environment")
	fmt.Fprintln(w, "  get <path> [--config PATH]       Print a value, e.g. scratch.max_age")
}

func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output result as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		if *jsonOut {
			data, _ := json.MarshalIndent(doctor.Result{
				Errors: []doctor.Issue{{Category: "config", Message: err.Error()}},
			}, "", "  ")
			fmt.Println(string(data))
		} else {
			fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		}
		return 1
	}

	result := doctor.New(cfg).Validate()
	if *jsonOut {
		out, err := doctor.FormatJSON(result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render JSON: %v\n", err)
			return 1
		}
		fmt.Println(out)
	} else {
		fmt.Print(doctor.FormatHuman(result))
	}

	if !result.Valid {
		return 1
	}
	return 0
}

func runConfigGet(args []string) int {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")

	flags, positionals := splitFlagsAndPositionals(args, map[string]bool{"config": true})
	if err := fs.Parse(flags); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if len(positionals) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: gitshelf config get <path> [--config PATH]")
		return 1
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}

	val, err := cfg.GetPath(positionals[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	switch v := val.(type) {
	case map[string]any, []any:
		out, err := yaml.Marshal(v)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Marshal error: %v\n", err)
			return 1
		}
		fmt.Print(string(out))
	default:
		fmt.Println(v)
	}
	return 0
}

// --- scratch ---

func runScratchNoun(args []string) int {
	if len(args) < 1 || args[0] == "help" {
		fmt.Println("Usage: gitshelf scratch sweep [--config PATH] [--older-than DURATION]")
		if len(args) < 1 {
			return 1
		}
		return 0
	}

	switch args[0] {
	case "sweep":
		return runScratchSweep(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown scratch action: %s\n", args[0])
		return 1
	}
}

func runScratchSweep(args []string) int {
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	olderThan := fs.Duration("older-than", 0, "Age cutoff (default: scratch.max_age)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}
	cutoff := cfg.Scratch.MaxAge
	if *olderThan > 0 {
		cutoff = *olderThan
	}

	if err := storage.ValidateLockDir(cfg.Scratch.Root); err != nil {
		fmt.Fprintf(os.Stderr, "Scratch root error: %v\n", err)
		return 1
	}
	scratchLock, err := lock.AcquireDir(cfg.Scratch.Root)
	if err != nil {
		if errors.Is(err, lock.ErrHeld) {
			fmt.Fprintf(os.Stderr, "Scratch root is owned by a running server: %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "Lock error: %v\n", err)
		}
		return 1
	}
	defer scratchLock.Release()

	mgr, err := scratch.NewManager(cfg.Scratch.Root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Scratch error: %v\n", err)
		return 1
	}
	report, err := mgr.Cleanup(context.Background(), cutoff)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Sweep failed: %v\n", err)
		return 1
	}
	fmt.Printf("removed %d scratch directories older than %s\n", report.DeletedDirs, cutoff)
	return 0
}

// splitFlagsAndPositionals separates positional arguments from flags so that
// positionals may appear before flags.
func splitFlagsAndPositionals(args []string, takesValue map[string]bool) ([]string, []string) {
	var flags, positionals []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			positionals = append(positionals, arg)
			continue
		}
		flags = append(flags, arg)
		name := strings.TrimLeft(arg, "-")
		if strings.Contains(name, "=") {
			continue
		}
		if takesValue[name] && i+1 < len(args) {
			i++
			flags = append(flags, args[i])
		}
	}
	return flags, positionals
}

// --- version ---

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: gitshelf version [--json]")
		return 1
	}

	info := currentVersionInfo()

	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("gitshelf %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}
	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	resolvedCommit := strings.TrimSpace(gitCommit)
	if resolvedCommit == "" || resolvedCommit == "unknown" {
		resolvedCommit = strings.TrimSpace(readBuildSetting("vcs.revision"))
	}
	if resolvedCommit != "" {
		info.Commit = shortenCommit(resolvedCommit)
	}

	resolvedBuildTime := strings.TrimSpace(buildDate)
	if resolvedBuildTime == "" || resolvedBuildTime == "unknown" {
		resolvedBuildTime = strings.TrimSpace(readBuildSetting("vcs.time"))
	}
	if t, ok := normalizeBuildTimeUTC(resolvedBuildTime); ok {
		info.BuildTime = t
	}
	return info
}

func shortenCommit(commit string) string {
	if len(commit) <= 12 {
		return commit
	}
	return commit[:12]
}

func normalizeBuildTimeUTC(raw string) (string, bool) {
	if raw == "" || raw == "unknown" {
		return "", false
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return "", false
	}
	return t.UTC().Format(time.RFC3339), true
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}
