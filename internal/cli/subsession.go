package cli

import (
	"github.com/spf13/cobra"
)

// NewSubSessionCommand creates the subsession command group.
func NewSubSessionCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subsession",
		Short: "Inspect and derive club sub-sessions",
	}
	cmd.AddCommand(&cobra.Command{
		Use:           "show <session-id> <club> <template-hash>",
		Short:         "Show the sub-session of one club under one template",
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ss, err := a.store.FetchSubSession(cmd.Context(), args[0], args[1], args[2])
			if err != nil {
				return a.out.Fail("sub-session lookup failed", err)
			}
			return a.out.Result(ss, formatSubSession(*ss))
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "analyze <session-id> <template-hash>",
		Short: "Classify a stored session's shots under another template",
		Long: `Derive a new sub-session from a session's stored shots for the template's
club. Each (session, club, template) is analyzed at most once; re-analysis
under the same template is rejected.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ss, err := a.analyzer.AnalyzeSession(cmd.Context(), args[0], args[1])
			if err != nil {
				return a.out.Fail("analysis failed", err)
			}
			return a.out.Result(ss, formatSubSession(*ss))
		},
	})
	return cmd
}
