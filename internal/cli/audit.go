package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/golfkpi/internal/archive"
)

// AuditResult is the output of the audit command.
type AuditResult struct {
	Findings []archive.Finding `json:"findings"`
}

// NewAuditCommand creates the audit command.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	var withArchive bool
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Recompute artifact hashes and report mismatches",
		Long: `Re-canonicalize and re-hash every stored template and course snapshot and
compare with its stored identity. With --archive, also verify every object
in the configured archive. Audits report; they never repair.

Exits 1 when any finding is reported.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()

			auditor := archive.NewAuditor(archive.WithLogger(a.logger), archive.WithMetrics(a.metrics))
			findings, err := auditor.AuditStore(ctx, a.store)
			if err != nil {
				return a.out.Fail("store audit failed", err)
			}
			if withArchive {
				arc, err := a.openArchive(ctx)
				if err != nil {
					return a.out.Fail("failed to open archive", commandError("archive", err))
				}
				more, err := auditor.AuditArchive(ctx, arc)
				if err != nil {
					return a.out.Fail("archive audit failed", err)
				}
				findings = append(findings, more...)
			}

			if len(findings) == 0 {
				return a.out.Result(AuditResult{Findings: []archive.Finding{}}, "no findings")
			}

			var b strings.Builder
			for _, f := range findings {
				fmt.Fprintf(&b, "%s %s %s: %s\n", f.Source, f.Kind, f.Key, f.Detail)
			}
			if a.out.Format == "json" {
				_ = a.out.Error(ErrCodeHashMismatch, fmt.Sprintf("%d integrity finding(s)", len(findings)), findings)
			} else {
				fmt.Fprint(a.out.Writer, b.String())
			}
			return NewExitError(ExitFailure, fmt.Sprintf("%d integrity finding(s)", len(findings)))
		},
	}
	cmd.Flags().BoolVar(&withArchive, "archive", false, "also audit the configured archive")
	return cmd
}
