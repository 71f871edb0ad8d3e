// Package cli implements automationctl, a command-line front end to the
// automation catalog. It drives core.Service in-process against the backend,
// the same way the web server does.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/JonMunkholm/automationdb/internal/backend"
	"github.com/JonMunkholm/automationdb/internal/config"
	"github.com/JonMunkholm/automationdb/internal/core"
	"github.com/JonMunkholm/automationdb/internal/logging"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// App holds the state shared by every command of one invocation.
type App struct {
	in     io.Reader
	out    io.Writer
	err    io.Writer
	reader *bufio.Reader

	// flags
	profilePath string
	backendURL  string
	token       string
	logLevel    string
	yes         bool

	cfg     *config.Config
	profile Profile
	logger  *slog.Logger

	backend  core.RecordBackend
	history  core.RunStore
	service  *core.Service
	pool     *pgxpool.Pool
	terminal func() bool
}

// Option customizes an App. Tests use these to avoid the network and the TTY.
type Option func(*App)

// WithStreams replaces stdin, stdout and stderr.
func WithStreams(in io.Reader, out, errOut io.Writer) Option {
	return func(a *App) {
		a.in = in
		a.out = out
		a.err = errOut
	}
}

// WithBackend uses rb instead of an HTTP client built from the configuration.
func WithBackend(rb core.RecordBackend) Option {
	return func(a *App) { a.backend = rb }
}

// WithHistory uses store instead of the configured run history.
func WithHistory(store core.RunStore) Option {
	return func(a *App) { a.history = store }
}

// WithTerminal overrides TTY detection for prompts and the progress view.
func WithTerminal(isTerminal bool) Option {
	return func(a *App) { a.terminal = func() bool { return isTerminal } }
}

// NewApp creates an App writing to the process streams.
func NewApp(opts ...Option) *App {
	a := &App{
		in:  os.Stdin,
		out: os.Stdout,
		err: os.Stderr,
	}
	a.terminal = func() bool {
		f, ok := a.in.(*os.File)
		return ok && term.IsTerminal(int(f.Fd()))
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewRootCmd builds the command tree for a.
func NewRootCmd(a *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "automationctl",
		Short: "Manage the automation catalog from the command line",
		Long: `automationctl lists, imports, syncs and exports automation records.

Connection settings come from the environment (.env is read if present),
then the profile file, then flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig()
		},
	}

	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.err)

	flags := root.PersistentFlags()
	flags.StringVar(&a.profilePath, "config", DefaultProfilePath(), "profile file")
	flags.StringVar(&a.backendURL, "backend-url", "", "backend root URL (overrides BACKEND_URL and the profile)")
	flags.StringVar(&a.token, "token", "", "backend API token")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.BoolVarP(&a.yes, "yes", "y", false, "answer yes to confirmation prompts")

	root.AddCommand(
		newListCmd(a),
		newShowCmd(a),
		newSearchCmd(a),
		newDeleteCmd(a),
		newImportCmd(a),
		newSyncCmd(a),
		newExportCmd(a),
		newTemplateCmd(a),
		newHistoryCmd(a),
		newConfigureCmd(a),
	)
	return root
}

// Execute runs automationctl and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := NewApp()
	err := NewRootCmd(a).ExecuteContext(ctx)
	a.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", describeError(err))
		os.Exit(1)
	}
}

// outputIsTerminal reports whether stdout can draw the progress view.
func (a *App) outputIsTerminal() bool {
	f, ok := a.out.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// loadConfig loads .env, the environment and the profile, then applies flags.
func (a *App) loadConfig() error {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	profile, err := LoadProfile(a.profilePath)
	if err != nil {
		return err
	}
	a.profile = profile

	if profile.BackendURL != "" {
		cfg.Backend.URL = profile.BackendURL
	}
	if profile.Token != "" {
		cfg.Backend.APIToken = profile.Token
	}
	if profile.Timeout > 0 {
		cfg.Backend.Timeout = profile.Timeout
	}
	if profile.LogLevel != "" {
		cfg.Logging.Level = profile.LogLevel
	}

	if a.backendURL != "" {
		cfg.Backend.URL = a.backendURL
	}
	if a.token != "" {
		cfg.Backend.APIToken = a.token
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}

	a.cfg = cfg
	a.logger = logging.New(a.err, cfg.Logging.Level, cfg.Logging.Format)
	return nil
}

// Service builds the core service on first use so commands that never
// talk to the backend stay offline.
func (a *App) Service(ctx context.Context) (*core.Service, error) {
	if a.service != nil {
		return a.service, nil
	}

	if a.backend == nil {
		a.backend = backend.New(a.cfg.Backend.URL,
			backend.WithTimeout(a.cfg.Backend.Timeout),
			backend.WithToken(a.cfg.Backend.APIToken),
			backend.WithLogger(a.logger),
		)
	}

	if a.history == nil && a.cfg.Database.HistoryEnabled() {
		pool, err := pgxpool.New(ctx, a.cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("connect history database: %w", err)
		}
		a.pool = pool
		a.history = core.NewPgRunStore(pool)
	}

	a.service = core.NewService(a.backend, a.history, a.logger, core.Options{
		MaxConcurrentRuns: a.cfg.Import.MaxConcurrent,
		MaxWaitTime:       a.cfg.Import.MaxWaitTime,
		SyncTimeout:       a.cfg.Import.Timeout,
		SessionTTL:        a.cfg.Import.SessionTTL,
		RejectDuplicates:  a.cfg.Import.RejectDuplicates,
	})
	return a.service, nil
}

// Close releases the history database connection, if any.
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

// describeError formats err for the terminal with its support code and,
// when there is one, the suggested action.
func describeError(err error) string {
	msg := core.MapError(err)
	line := fmt.Sprintf("%s (%s)", err, msg.Code)
	if msg.Action != "" {
		line += "\n" + msg.Action
	}
	return line
}
