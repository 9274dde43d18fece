package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/golfkpi/internal/store"
)

// NewProjectionCommand creates the projection command group.
func NewProjectionCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projection",
		Short: "Rebuild and read derived club statistics",
		Long: `Projections are disposable: they are rebuilt from stored sub-sessions
and can be cleared at any time without losing a fact.`,
	}

	run := func(name string, fn func(a *app, cmd *cobra.Command) ([]store.ClubStat, error)) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := fn(a, cmd)
			if err != nil {
				return a.out.Fail(name+" failed", err)
			}
			if stats == nil {
				stats = []store.ClubStat{}
			}
			return a.out.Result(stats, formatClubStats(stats))
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "refresh",
		Short:         "Rebuild club statistics from sub-sessions",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: run("projection refresh", func(a *app, cmd *cobra.Command) ([]store.ClubStat, error) {
			return a.store.RefreshProjections(cmd.Context(), a.cfg.Thresholds)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "show",
		Short:         "Print club statistics as last refreshed",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: run("projection show", func(a *app, cmd *cobra.Command) ([]store.ClubStat, error) {
			return a.store.ClubStats(cmd.Context(), a.cfg.Thresholds)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "clear",
		Short:         "Delete all club statistics",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: run("projection clear", func(a *app, cmd *cobra.Command) ([]store.ClubStat, error) {
			return nil, a.store.ClearProjections(cmd.Context())
		}),
	})
	return cmd
}

func formatClubStats(stats []store.ClubStat) string {
	if len(stats) == 0 {
		return "no club statistics"
	}
	var b strings.Builder
	for _, st := range stats {
		pct := "n/a"
		if st.APercentage != nil {
			pct = fmt.Sprintf("%.2f%%", *st.APercentage)
		}
		fmt.Fprintf(&b, "%-8s [%s] %d session(s) %d shot(s) A%%=%s (%s)\n",
			st.Club, shortHash(st.TemplateHash), st.Sessions, st.ShotCount, pct, st.Validity)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
