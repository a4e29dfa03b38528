package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/TD-AI-Lab/FAQ-Analyzer/internal/api"
	"github.com/TD-AI-Lab/FAQ-Analyzer/internal/cache"
	"github.com/TD-AI-Lab/FAQ-Analyzer/internal/logs"
	"github.com/TD-AI-Lab/FAQ-Analyzer/internal/store"
	"github.com/TD-AI-Lab/FAQ-Analyzer/internal/util"
)

const Version = "0.3.0"

// Environment fallbacks for --dsn and --redis, also read from .env.
const (
	envDSN   = "DATABASE_URL"
	envRedis = "FAQSCORER_REDIS"
)

var (
	backendURLFlag string
	secretsFlag    string
	configFlag     string
	logLevelFlag   string
	logFileFlag    string
	dsnFlag        string
	redisFlag      string
	noHistoryFlag  bool
)

// app is the runtime assembled before any subcommand runs.
type app struct {
	cfg     util.Config
	backend util.Resolved
	log     *logrus.Logger
	ring    *logs.Ring
	closers []func() error
}

var rt = &app{}

var rootCmd = &cobra.Command{
	Use:   "faqscorer",
	Short: "FAQ Scorer - terminal and web front-end for the FAQ scoring backend",
	Long: `faqscorer talks to a FAQ Scorer backend over HTTP. It shows the scored
help center pages, runs the scrape, clean and analyze pipeline steps and
exports the filtered list.

The backend URL is read from --backend-url, then BACKEND_BASE_URL in
.streamlit/secrets.toml, the environment or .env, and defaults to
http://localhost:8000.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runUI,
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	defer rt.close()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentPreRunE = setup

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&backendURLFlag, "backend-url", "", "Backend base URL (overrides secrets, env and .env)")
	pf.StringVar(&secretsFlag, "secrets", "", "Secrets TOML file holding "+util.EnvBackendURL)
	pf.StringVar(&configFlag, "config", "", "Settings file (default "+util.DefaultSettingsFile+" when present)")
	pf.StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&logFileFlag, "log-file", "", "Log file used by the terminal UI")
	pf.StringVar(&dsnFlag, "dsn", "", "History database: postgres:// URL or SQLite path (env "+envDSN+")")
	pf.StringVar(&redisFlag, "redis", "", "Redis address for a shared response cache (env "+envRedis+")")
	pf.BoolVar(&noHistoryFlag, "no-history", false, "Disable the local history database")

	rootCmd.AddCommand(uiCmd, webCmd, healthCmd, listCmd, exportCmd, historyCmd, configCmd, migrateCmd, versionCmd)
	for _, c := range actionCmds() {
		rootCmd.AddCommand(c)
	}
}

// usesTerminal reports whether cmd takes over the terminal, in which case
// logs go to a file.
func usesTerminal(cmd *cobra.Command) bool {
	return !cmd.HasParent() || cmd == uiCmd
}

// flagOrEnv returns the flag value when it was set on the command line, else
// the environment variable key.
func flagOrEnv(cmd *cobra.Command, name, value, key string) string {
	if cmd.Flags().Changed(name) {
		return value
	}
	return os.Getenv(key)
}

func setup(cmd *cobra.Command, _ []string) error {
	// the environment as it was before .env, so the backend URL source stays exact
	env := environ()
	// .env never overrides variables that are already set
	_ = godotenv.Load()

	cfg, err := util.LoadSettings(util.Defaults(), configFlag)
	if err != nil {
		return err
	}

	opts := logs.Options{Level: cfg.LogLevel}
	if logLevelFlag != "" {
		opts.Level = logLevelFlag
		cfg.LogLevel = logLevelFlag
	}
	if logFileFlag != "" {
		cfg.LogFile = logFileFlag
	}
	if usesTerminal(cmd) {
		opts.File = cfg.LogFile
	} else {
		opts.Output = cmd.ErrOrStderr()
	}
	log, ring, closeLog, err := logs.Setup(opts)
	if err != nil {
		return err
	}
	rt.log, rt.ring = log, ring
	rt.closers = append(rt.closers, closeLog)

	resolveOpts := util.ResolveOptions{
		Flag:         backendURLFlag,
		SecretsPaths: util.DefaultSecretsPaths(os.Getenv),
		Getenv:       func(key string) string { return env[key] },
		Warn:         func(format string, args ...any) { log.Warnf(format, args...) },
	}
	if secretsFlag != "" {
		resolveOpts.SecretsPaths = []string{secretsFlag}
	}
	resolved, err := util.ResolveBackendURL(resolveOpts)
	if err != nil {
		return err
	}

	cfg.BackendURL, cfg.BackendSource = resolved.URL, resolved.Source
	if dsn := flagOrEnv(cmd, "dsn", dsnFlag, envDSN); dsn != "" {
		cfg.HistoryDSN = dsn
	}
	if addr := flagOrEnv(cmd, "redis", redisFlag, envRedis); addr != "" {
		cfg.RedisAddr = addr
	}
	if noHistoryFlag {
		cfg.HistoryEnabled = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	rt.cfg, rt.backend = cfg, resolved
	log.WithFields(logrus.Fields{"backend": resolved.URL, "source": resolved.Source, "command": cmd.Name()}).Debug("configuration resolved")
	return nil
}

func environ() map[string]string {
	out := map[string]string{}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			out[k] = v
		}
	}
	return out
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && a.log != nil {
			a.log.WithError(err).Warn("close failed")
		}
	}
	a.closers = nil
}

func (a *app) client(baseURL string) *api.Client {
	return api.NewClient(baseURL,
		api.WithTimeout(a.cfg.Timeout),
		api.WithLogger(a.log),
		api.WithUserAgent("faqscorer/"+Version),
	)
}

func (a *app) cache(ctx context.Context) (*cache.Cache, error) {
	c, closer, err := cache.Open(ctx, cache.Options{TTL: a.cfg.CacheTTL, Size: a.cfg.CacheSize, RedisAddr: a.cfg.RedisAddr}, a.log)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	a.closers = append(a.closers, closer)
	return c, nil
}

// history opens the history store. Failures are logged and disable history
// rather than failing the command.
func (a *app) history(ctx context.Context) *store.History {
	if !a.cfg.HistoryEnabled {
		return nil
	}
	h, err := a.openHistory(ctx)
	if err != nil {
		a.log.WithError(err).Warn("history disabled")
		return nil
	}
	return h
}

func (a *app) openHistory(ctx context.Context) (*store.History, error) {
	db, err := store.OpenMigrated(ctx, a.cfg.HistoryDSN)
	if err != nil {
		return nil, err
	}
	h := store.NewHistory(db, a.log)
	a.closers = append(a.closers, h.Close)
	return h, nil
}
