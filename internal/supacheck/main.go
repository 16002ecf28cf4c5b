package supacheck

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

const (
	modeCheck = "check"
	modeSet   = "set"
	modeShow  = "show"
)

const (
	envURL     = "SUPABASE_URL"
	envKey     = "SUPABASE_KEY"
	envAnonKey = "SUPABASE_ANON_KEY"
	envDBURL   = "SUPABASE_DB_URL"
)

// Config holds the resolved options for one invocation.
type Config struct {
	Mode string

	Backend string
	URL     string
	Key     string
	DBURL   string

	Table   string
	Columns string
	Limit   int
	Timeout time.Duration
	Output  string

	Strict  bool
	Verbose bool
	Trace   bool

	SettingsFile string

	SetTarget  string
	SetValue   string
	SetBackend string
}

func Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return run(ctx, os.Args[1:], os.Getenv, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, getenv func(string) string, stdout, stderr io.Writer) error {
	cfg, err := parseConfig(args, getenv, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	switch cfg.Mode {
	case modeSet:
		return runSet(cfg, stdout)
	case modeShow:
		return runShow(cfg, stdout)
	case modeCheck:
		return runCheck(ctx, cfg, stdout, stderr)
	default:
		return fmt.Errorf("unsupported mode %q", cfg.Mode)
	}
}

func runCheck(ctx context.Context, cfg Config, stdout, stderr io.Writer) error {
	logger := newLogger(stderr, cfg.Verbose)

	if cfg.Trace {
		shutdown, err := setupTracing(stderr)
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Warn("shutdown tracing", slog.Any("error", err))
			}
		}()
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	target := Target{Table: cfg.Table, Columns: cfg.Columns, Limit: cfg.Limit}
	logger.Debug("running connectivity check",
		slog.String("backend", cfg.Backend),
		slog.String("table", target.Table),
		slog.Int("limit", target.Limit),
	)

	outcome := Check(ctx, connectorFor(cfg), target)

	logger.Debug("connectivity check finished",
		slog.String("outcome", outcome.Kind.String()),
		slog.Int("rows", len(outcome.Response.Rows)),
		slog.Duration("duration", outcome.Duration),
	)

	if err := Report(stdout, stderr, outcome, cfg.Output); err != nil {
		return err
	}

	if code := ExitCode(outcome, cfg.Strict); code != 0 {
		return ExitError{Code: code, Kind: outcome.Kind}
	}
	return nil
}

func connectorFor(cfg Config) Connector {
	return func(ctx context.Context) (Selector, error) {
		if cfg.Backend == "rest" {
			return NewRESTClient(cfg.URL, cfg.Key)
		}
		return NewSQLClient(ctx, cfg.Backend, cfg.DBURL)
	}
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	if !verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func parseConfig(args []string, getenv func(string) string, stderr io.Writer) (Config, error) {
	if len(args) > 0 {
		switch args[0] {
		case modeSet:
			return parseSetConfig(args[1:], stderr)
		case modeShow:
			return parseShowConfig(args[1:], stderr)
		case modeCheck:
			args = args[1:]
		}
	}
	return parseCheckConfig(args, getenv, stderr)
}

// parseCheckConfig resolves flags > environment > settings file. Missing
// credentials are not an error here; the client decides what to do with them.
func parseCheckConfig(args []string, getenv func(string) string, stderr io.Writer) (Config, error) {
	cfg := Config{
		Mode:         modeCheck,
		Table:        "users",
		Columns:      "*",
		Limit:        1,
		Output:       "json",
		SettingsFile: defaultSettingsFile(),
	}

	cfg.URL = strings.TrimSpace(getenv(envURL))
	cfg.Key = strings.TrimSpace(getenv(envKey))
	if cfg.Key == "" {
		cfg.Key = strings.TrimSpace(getenv(envAnonKey))
	}
	cfg.DBURL = strings.TrimSpace(getenv(envDBURL))

	if settingsFile, ok := scanStringFlag(args, "settings-file"); ok && settingsFile != "" {
		cfg.SettingsFile = settingsFile
	}

	settings, err := loadSettings(cfg.SettingsFile)
	if err != nil {
		return cfg, err
	}
	applySettingsDefaults(&cfg, settings)

	fs := flag.NewFlagSet("supacheck", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&cfg.Backend, "backend", cfg.Backend, "Backend: rest, postgres, mysql, sqlite (detected from --db-url when omitted)")
	fs.StringVar(&cfg.URL, "url", cfg.URL, "Supabase project URL (env "+envURL+")")
	fs.StringVar(&cfg.Key, "key", cfg.Key, "Supabase API key (env "+envKey+")")
	fs.StringVar(&cfg.DBURL, "db-url", cfg.DBURL, "Database URL or sqlite path for SQL backends (env "+envDBURL+")")
	fs.StringVar(&cfg.Table, "table", cfg.Table, "Table to read")
	fs.StringVar(&cfg.Columns, "columns", cfg.Columns, "Comma-separated columns to select")
	fs.IntVar(&cfg.Limit, "limit", cfg.Limit, "Maximum rows to fetch")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Abort the check after this long (0 disables)")
	fs.StringVar(&cfg.Output, "output", cfg.Output, "Output format: json or table")
	fs.BoolVar(&cfg.Strict, "strict", cfg.Strict, "Exit non-zero when the check fails")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "Print debug logs to stderr")
	fs.BoolVar(&cfg.Trace, "trace", cfg.Trace, "Print the check's trace span to stderr")
	fs.StringVar(&cfg.SettingsFile, "settings-file", cfg.SettingsFile, "Path to defaults settings JSON file")

	fs.Usage = func() {
		out := fs.Output()
		fmt.Fprintf(out, "supacheck: Supabase connectivity check\n\n")
		fmt.Fprintf(out, "Usage:\n")
		fmt.Fprintf(out, "  %s=... %s=... supacheck [options]\n", envURL, envKey)
		fmt.Fprintf(out, "  supacheck --backend postgres --db-url <url> [options]\n")
		fmt.Fprintf(out, "  supacheck set <url|key|db> ...\n")
		fmt.Fprintf(out, "  supacheck show\n\n")
		fmt.Fprintf(out, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if fs.NArg() > 0 {
		return cfg, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	cfg.URL = strings.TrimSpace(cfg.URL)
	cfg.Key = strings.TrimSpace(cfg.Key)
	cfg.DBURL = strings.TrimSpace(cfg.DBURL)

	dbURLFlag := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "db-url" {
			dbURLFlag = true
		}
	})

	switch {
	case strings.TrimSpace(cfg.Backend) != "":
		backend, err := normalizeBackendInput(cfg.Backend)
		if err != nil {
			return cfg, err
		}
		cfg.Backend = backend
	case cfg.DBURL != "" && (dbURLFlag || cfg.URL == ""):
		backend, err := detectBackendFromLocation(cfg.DBURL)
		if err != nil {
			return cfg, err
		}
		cfg.Backend = backend
	default:
		cfg.Backend = "rest"
	}

	cfg.Table = strings.TrimSpace(cfg.Table)
	if cfg.Table == "" {
		return cfg, errors.New("--table cannot be empty")
	}
	cfg.Columns = strings.TrimSpace(cfg.Columns)
	if cfg.Columns == "" {
		cfg.Columns = "*"
	}

	cfg.Output = strings.ToLower(strings.TrimSpace(cfg.Output))
	if cfg.Output != "table" && cfg.Output != "json" {
		return cfg, fmt.Errorf("unsupported --output %q (expected json|table)", cfg.Output)
	}
	if cfg.Limit <= 0 {
		return cfg, errors.New("--limit must be > 0")
	}
	if cfg.Timeout < 0 {
		return cfg, errors.New("--timeout must be >= 0")
	}

	return cfg, nil
}

func parseSetConfig(args []string, stderr io.Writer) (Config, error) {
	cfg := Config{
		Mode:         modeSet,
		SettingsFile: defaultSettingsFile(),
	}

	fs := flag.NewFlagSet("supacheck set", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.SettingsFile, "settings-file", cfg.SettingsFile, "Path to defaults settings JSON file")

	fs.Usage = func() {
		out := fs.Output()
		fmt.Fprintf(out, "Usage:\n")
		fmt.Fprintf(out, "  supacheck set [--settings-file <path>] url <supabase-url>\n")
		fmt.Fprintf(out, "  supacheck set [--settings-file <path>] key <api-key>\n")
		fmt.Fprintf(out, "  supacheck set [--settings-file <path>] db <db-url-or-path>\n")
		fmt.Fprintf(out, "  supacheck set [--settings-file <path>] db <postgres|mysql|sqlite> <db-url-or-path>\n\n")
		fmt.Fprintf(out, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	parts := fs.Args()
	if len(parts) < 2 {
		return cfg, errors.New("invalid set command; run `supacheck set -h` for usage")
	}

	switch target := strings.ToLower(strings.TrimSpace(parts[0])); target {
	case "url", "key":
		if len(parts) != 2 {
			return cfg, fmt.Errorf("usage: supacheck set %s <value>", target)
		}
		cfg.SetTarget = target
		cfg.SetValue = strings.TrimSpace(parts[1])
		if cfg.SetValue == "" {
			return cfg, fmt.Errorf("%s cannot be empty", target)
		}
	case "db":
		cfg.SetTarget = "db"
		switch len(parts) {
		case 2:
			cfg.SetValue = strings.TrimSpace(parts[1])
			detected, err := detectBackendFromLocation(cfg.SetValue)
			if err != nil {
				return cfg, err
			}
			cfg.SetBackend = detected
		case 3:
			backend, err := normalizeBackendInput(parts[1])
			if err != nil {
				return cfg, err
			}
			if backend == "rest" {
				return cfg, errors.New("use `supacheck set url` for the rest backend")
			}
			cfg.SetBackend = backend
			cfg.SetValue = strings.TrimSpace(parts[2])
		default:
			return cfg, errors.New("usage: supacheck set db [<postgres|mysql|sqlite>] <db-url-or-path>")
		}
		if cfg.SetValue == "" {
			return cfg, errors.New("db url/path cannot be empty")
		}
	default:
		return cfg, fmt.Errorf("unsupported set target %q (expected url, key or db)", parts[0])
	}

	return cfg, nil
}

func parseShowConfig(args []string, stderr io.Writer) (Config, error) {
	cfg := Config{
		Mode:         modeShow,
		SettingsFile: defaultSettingsFile(),
	}

	fs := flag.NewFlagSet("supacheck show", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.SettingsFile, "settings-file", cfg.SettingsFile, "Path to defaults settings JSON file")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if fs.NArg() > 0 {
		return cfg, errors.New("usage: supacheck show [--settings-file <path>]")
	}
	return cfg, nil
}

func scanStringFlag(args []string, name string) (string, bool) {
	for i := 0; i < len(args); i++ {
		a := args[i]
		for _, prefix := range []string{"--" + name, "-" + name} {
			if strings.HasPrefix(a, prefix+"=") {
				return strings.TrimSpace(strings.TrimPrefix(a, prefix+"=")), true
			}
			if a == prefix {
				if i+1 >= len(args) {
					return "", true
				}
				return strings.TrimSpace(args[i+1]), true
			}
		}
	}
	return "", false
}

func defaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		return ".supacheck"
	}
	return filepath.Join(home, ".supacheck")
}

func defaultSettingsFile() string {
	return filepath.Join(defaultConfigDir(), "settings.json")
}

func normalizeBackendInput(v string) (string, error) {
	t := strings.ToLower(strings.TrimSpace(v))
	switch t {
	case "rest", "postgres", "mysql", "sqlite":
		return t, nil
	case "supabase", "postgrest":
		return "rest", nil
	case "postgresql", "pg":
		return "postgres", nil
	case "sqlite3":
		return "sqlite", nil
	default:
		return "", fmt.Errorf("unsupported --backend %q (expected rest|postgres|mysql|sqlite)", v)
	}
}

func detectBackendFromLocation(v string) (string, error) {
	raw := strings.TrimSpace(v)
	if raw == "" {
		return "", errors.New("db url/path cannot be empty")
	}

	lower := strings.ToLower(raw)

	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return "postgres", nil
	}
	if strings.HasPrefix(lower, "file:") {
		return "sqlite", nil
	}
	if strings.Contains(lower, "@tcp(") || strings.Contains(lower, "@unix(") {
		return "mysql", nil
	}
	if lower == ":memory:" || strings.HasSuffix(lower, ".db") || strings.HasSuffix(lower, ".sqlite") || strings.HasSuffix(lower, ".sqlite3") {
		return "sqlite", nil
	}
	if strings.HasPrefix(raw, "./") || strings.HasPrefix(raw, "../") || strings.HasPrefix(raw, "/") {
		return "sqlite", nil
	}
	if strings.Contains(lower, "host=") && strings.Contains(lower, "user=") {
		return "postgres", nil
	}

	if parsed, err := url.Parse(raw); err == nil {
		switch strings.ToLower(parsed.Scheme) {
		case "postgres", "postgresql":
			return "postgres", nil
		case "http", "https":
			return "", fmt.Errorf("%q looks like a project URL; use --url with the rest backend", v)
		}
	}

	return "", fmt.Errorf("unable to detect backend from %q; pass --backend <postgres|mysql|sqlite>", v)
}
