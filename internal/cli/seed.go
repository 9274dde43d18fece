package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/golfkpi/internal/config"
	"github.com/roach88/golfkpi/internal/seed"
)

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed [dir]",
		Short: "Store reference templates and snapshots from a seed directory",
		Long: `Load the artifacts of a seed directory (manifest.yaml listing JSON files,
and/or CUE files with "template" and "snapshot" fields) and store them.
Seeding is idempotent. The directory defaults to ` + config.EnvSeedDir + `.

Example:
  golfkpi seed ./seed`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			dir := a.cfg.SeedDir
			if len(args) == 1 {
				dir = args[0]
			}
			if dir == "" {
				return a.out.Fail("no seed directory", commandError("seed",
					fmt.Errorf("pass a directory or set %s", config.EnvSeedDir)))
			}

			seeded, err := runSeed(a, cmd, dir)
			if err != nil {
				return err
			}
			var b strings.Builder
			for _, s := range seeded {
				state := "present"
				if s.Inserted {
					state = "stored"
				}
				fmt.Fprintf(&b, "%-8s %s %s  %s\n", state, s.Kind, s.Hash, s.Source)
			}
			return a.out.Result(seeded, strings.TrimSuffix(b.String(), "\n"))
		},
	}
}

// runSeed loads and stores a seed directory, reporting failures.
func runSeed(a *app, cmd *cobra.Command, dir string) ([]seed.Seeded, error) {
	artifacts, err := seed.LoadDir(dir)
	if err != nil {
		return nil, a.out.Fail("failed to load seed directory", commandError(dir, err))
	}
	a.out.VerboseLog("Loaded %d artifact(s) from %s", len(artifacts), dir)

	seeded, err := seed.Bootstrap(cmd.Context(), a.store, artifacts, a.logger)
	if err != nil {
		return nil, a.out.Fail("seed failed", err)
	}
	return seeded, nil
}
