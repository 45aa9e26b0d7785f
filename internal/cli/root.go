// Package cli implements the command-line interface for lexmerge.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/kilupskalvis/lexmerge/internal/audit"
	"github.com/kilupskalvis/lexmerge/internal/config"
	"github.com/kilupskalvis/lexmerge/internal/core"
	"github.com/kilupskalvis/lexmerge/internal/docstore"
	"github.com/kilupskalvis/lexmerge/internal/models"
	"github.com/kilupskalvis/lexmerge/internal/store"
	"github.com/kilupskalvis/lexmerge/internal/weaviate"
	"github.com/spf13/cobra"
)

// cmdContext holds common resources for CLI commands
type cmdContext struct {
	Config  *config.Config
	Store   *store.Store
	Entries docstore.Store
	Engine  *core.Engine
	Logger  *slog.Logger
	closers []io.Closer
}

// Close releases resources held by cmdContext
func (c *cmdContext) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i].Close()
	}
	c.closers = nil
}

var (
	logLevelFlag  string
	logFormatFlag string
)

// initContext loads the repository above the working directory and wires
// the engine to the configured entry backend.
func initContext() *cmdContext {
	dir, err := os.Getwd()
	if err != nil {
		exitError("%v", err)
	}
	cfg, err := config.Load(dir)
	if err != nil {
		exitError("%v", err)
	}
	if logLevelFlag != "" {
		cfg.LogLevel = logLevelFlag
	}
	if logFormatFlag != "" {
		cfg.LogFormat = logFormatFlag
	}

	c, err := openRepository(context.Background(), cfg, os.Stderr)
	if err != nil {
		exitError("%v", err)
	}
	return c
}

// openRepository opens the operation store and the entry backend named by
// cfg and builds an engine over them.
func openRepository(ctx context.Context, cfg *config.Config, logOut io.Writer) (*cmdContext, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logOut)
	c := &cmdContext{Config: cfg, Logger: logger}

	st, err := store.New(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	c.Store = st
	c.closers = append(c.closers, st)

	if err := st.RunMigrations(); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	entries, err := openEntries(ctx, cfg, st, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Entries = entries
	if closer, ok := entries.(io.Closer); ok && entries != docstore.Store(st) {
		c.closers = append(c.closers, closer)
	}

	recorders := audit.MultiRecorder{audit.NewLogRecorder(logger)}
	if webhook := audit.NewWebhookRecorder(&audit.WebhookConfig{URLs: cfg.WebhookURLs}, logger); webhook != nil {
		recorders = append(recorders, webhook)
	}

	c.Engine = core.NewEngine(entries, st,
		core.WithLogger(logger),
		core.WithRecorder(recorders),
	)
	return c, nil
}

// openEntries returns the entry store for cfg.Backend. The bolt backend
// shares the operation store so commits are a single transaction.
func openEntries(ctx context.Context, cfg *config.Config, st *store.Store, logger *slog.Logger) (docstore.Store, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		sq, err := docstore.NewSQLiteStore(cfg.EntriesSQLitePath())
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite entries: %w", err)
		}
		return sq, nil

	case config.BackendWeaviate:
		client, err := weaviate.NewClient(cfg.WeaviateURL)
		if err != nil {
			return nil, err
		}
		if err := client.Ping(ctx); err != nil {
			return nil, err
		}
		if version, err := client.Negotiate(ctx); err != nil {
			logger.Warn("could not detect Weaviate version", "error", err)
		} else if !version.SupportsFeature("cursor_pagination") {
			logger.Warn("server < 1.18, using offset pagination", "version", version.Version)
		}
		es := weaviate.NewEntryStore(client, cfg.WeaviateClass)
		if err := es.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return es, nil

	default:
		return st, nil
	}
}

// newLogger builds the slog logger for the given level and format.
func newLogger(level, format string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelWarn
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

var rootCmd = &cobra.Command{
	Use:   "lexmerge",
	Short: "Merge and split dictionary entries",
	Long: `lexmerge restructures dictionary entries: split senses into a new entry,
merge two entries, or merge senses inside one entry. Every operation is
all-or-nothing and every moved sense is recorded in a provenance ledger.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", "", "Log format (text, json)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(entryCmd)
	rootCmd.AddCommand(splitCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(mergeSensesCmd)
	rootCmd.AddCommand(opsCmd)
	rootCmd.AddCommand(transfersCmd)
}

// actorOr returns flagValue when set, else the configured actor.
func (c *cmdContext) actorOr(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return c.Config.Actor
}

// exitError prints an error and exits
func exitError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

// exitOperationError reports a failed operation together with its ID and
// the kind of failure.
func exitOperationError(op *models.Operation, err error) {
	if op == nil {
		exitError("%v", err)
	}
	exitError("operation %s failed (%s): %v", op.ShortID(), models.KindOf(err), err)
}

// shortID returns first 8 characters of an ID
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
