package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/golfkpi/internal/archive"
	"github.com/roach88/golfkpi/internal/config"
	"github.com/roach88/golfkpi/internal/idgen"
	"github.com/roach88/golfkpi/internal/ingest"
	"github.com/roach88/golfkpi/internal/lifecycle"
	"github.com/roach88/golfkpi/internal/metrics"
	"github.com/roach88/golfkpi/internal/store"
)

// app is the composition root of one command invocation.
type app struct {
	cfg      *config.Config
	out      *OutputFormatter
	logger   *slog.Logger
	metrics  *metrics.Metrics
	store    *store.Store
	rounds   *lifecycle.Service
	analyzer *ingest.Analyzer
}

// openApp loads configuration, opens the store and wires the services.
// Setup failures are reported through the formatter and returned as
// command errors.
func openApp(opts *RootOptions, cmd *cobra.Command) (*app, error) {
	out := newFormatter(opts, cmd)

	cfg, err := config.Load(opts.EnvFile)
	if err != nil {
		return nil, out.Fail("failed to load configuration", commandError("configuration", err))
	}
	if opts.Database != "" {
		cfg.DBDSN = opts.Database
	}
	if opts.Driver != "" {
		cfg.DBDriver = opts.Driver
	}

	logger := newLogger(cmd, cfg.LogLevel, opts.Verbose)
	m := metrics.New()

	st, err := store.Open(cfg.DBDSN,
		store.WithDriver(cfg.DBDriver),
		store.WithBusyTimeout(cfg.BusyTimeoutMS),
		store.WithLogger(logger),
		store.WithMetrics(m))
	if err != nil {
		return nil, out.Fail("failed to open database", commandError(cfg.DBDSN, err))
	}
	logger.Debug("database ready", "driver", cfg.DBDriver, "dsn", cfg.DBDSN)

	ids := idgen.UUIDv7{}
	return &app{
		cfg:     cfg,
		out:     out,
		logger:  logger,
		metrics: m,
		store:   st,
		rounds:  lifecycle.New(st, ids, lifecycle.WithLogger(logger)),
		analyzer: ingest.NewAnalyzer(st, ids,
			ingest.WithThresholds(cfg.Thresholds),
			ingest.WithLogger(logger),
			ingest.WithMetrics(m)),
	}, nil
}

// Close releases the store.
func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error("error closing database", "error", err)
	}
}

// openArchive builds the configured archive backend.
func (a *app) openArchive(ctx context.Context) (archive.Archive, error) {
	switch a.cfg.Archive {
	case archive.DriverFilesystem:
		return archive.NewFS(a.cfg.ArchiveDir)
	case archive.DriverS3:
		return archive.NewS3(ctx, a.cfg.S3)
	case "":
		return nil, fmt.Errorf("no archive configured: set %s to fs or s3", config.EnvArchive)
	default:
		return nil, fmt.Errorf("unsupported archive %q", a.cfg.Archive)
	}
}

// newLogger writes structured logs to stderr: debug with --verbose,
// otherwise the configured level.
func newLogger(cmd *cobra.Command, level string, verbose bool) *slog.Logger {
	lvl := slog.LevelInfo
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	if verbose {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: lvl}))
}
