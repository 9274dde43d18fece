package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/golfkpi/internal/api"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
	Seed bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only HTTP API",
		Long: `Serve templates, snapshots, sessions, rounds, scorecards, club statistics
and Prometheus metrics over HTTP until interrupted.

Example:
  golfkpi serve --addr :8080 --seed`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides GOLFKPI_HTTP_ADDR)")
	cmd.Flags().BoolVar(&opts.Seed, "seed", false, "seed from GOLFKPI_SEED_DIR before serving")
	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	a, err := openApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if opts.Seed {
		if a.cfg.SeedDir == "" {
			return a.out.Fail("no seed directory", commandError("seed",
				fmt.Errorf("--seed needs GOLFKPI_SEED_DIR")))
		}
		if _, err := runSeed(a, cmd, a.cfg.SeedDir); err != nil {
			return err
		}
	}

	addr := a.cfg.HTTPAddr
	if opts.Addr != "" {
		addr = opts.Addr
	}
	srv := api.New(a.store, a.rounds,
		api.WithLogger(a.logger),
		api.WithMetrics(a.metrics),
		api.WithThresholds(a.cfg.Thresholds))

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.ListenAndServe(ctx, addr); err != nil {
		return a.out.Fail("http server error", commandError(addr, err))
	}
	return nil
}
