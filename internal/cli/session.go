package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/golfkpi/internal/ingest"
	"github.com/roach88/golfkpi/internal/store"
)

// SessionIngestOptions holds flags for session ingest.
type SessionIngestOptions struct {
	*RootOptions
	Session   ingest.SessionInput
	Templates map[string]string
}

// NewSessionCommand creates the session command group.
func NewSessionCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Ingest and inspect practice sessions",
	}
	cmd.AddCommand(newSessionIngestCommand(rootOpts))
	cmd.AddCommand(newSessionShowCommand(rootOpts))
	return cmd
}

func newSessionIngestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SessionIngestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ingest <shots.json|->",
		Short: "Store a session's shots and classify each club",
		Long: `Ingest a practice session from a JSON array of parsed shot records:

  [{"club": "7i", "ball_speed": 119.2, "smash_factor": 1.34, "spin_rate": 6800}, ...]

Rows with no usable metric are rejected and reported; the rest are stored.
Every club with an assigned template gets one club sub-session.

Example:
  golfkpi session ingest shots.json --date 2026-01-15 --source trackman \
    --template 7i=0a9af2d8e305b8c6e7f7bcdc29e7f205de0d1d93d8cb3d615a652c8f12a251b0`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionIngest(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Session.ID, "id", "", "session ID (generated when empty)")
	cmd.Flags().StringVar(&opts.Session.Date, "date", "", "session date YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&opts.Session.Source, "source", "", "data source, e.g. trackman (required)")
	cmd.Flags().StringVar(&opts.Session.DeviceType, "device", "", "launch monitor model")
	cmd.Flags().StringVar(&opts.Session.Location, "location", "", "practice location")
	cmd.Flags().StringToStringVar(&opts.Templates, "template", nil, "club=template-hash assignment (repeatable)")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("source")

	return cmd
}

func runSessionIngest(opts *SessionIngestOptions, path string, cmd *cobra.Command) error {
	a, err := openApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	raw, err := readInput(cmd, path)
	if err != nil {
		return a.out.Fail("failed to read shots", commandError(path, err))
	}
	var records []ingest.ShotRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return a.out.Fail("failed to parse shots", commandError(path, err))
	}
	a.out.VerboseLog("Read %d shot record(s) from %s", len(records), path)

	report, err := a.analyzer.Ingest(cmd.Context(), opts.Session, records, opts.Templates)
	if err != nil {
		return a.out.Fail("ingest failed", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "session %s: %d shot(s) stored, %d rejected\n", report.SessionID, report.Accepted, report.Rejected)
	for _, r := range report.Rejections {
		fmt.Fprintf(&b, "  row %d (%s): %s\n", r.Row, r.Club, r.Reason)
	}
	for _, ss := range report.SubSessions {
		b.WriteString("  " + formatSubSession(ss) + "\n")
	}
	for _, club := range report.Unanalyzed {
		fmt.Fprintf(&b, "  %s: no template assigned\n", club)
	}
	return a.out.Result(report, strings.TrimSuffix(b.String(), "\n"))
}

// SessionShowResult is the output of session show.
type SessionShowResult struct {
	*store.Session
	Shots       []store.ShotRow    `json:"shots"`
	SubSessions []store.SubSession `json:"subsessions"`
}

func newSessionShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <session-id>",
		Short:         "Show a session, its shots and its sub-sessions",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()

			sess, err := a.store.FetchSession(ctx, args[0])
			if err != nil {
				return a.out.Fail("session lookup failed", err)
			}
			shots, err := a.store.SessionShots(ctx, sess.ID)
			if err != nil {
				return a.out.Fail("shot lookup failed", err)
			}
			subs, err := a.store.ListSubSessions(ctx, sess.ID)
			if err != nil {
				return a.out.Fail("sub-session lookup failed", err)
			}

			var b strings.Builder
			fmt.Fprintf(&b, "session %s on %s (%s), %d shot(s)\n", sess.ID, sess.Date, sess.Source, len(shots))
			for _, ss := range subs {
				b.WriteString("  " + formatSubSession(ss) + "\n")
			}
			return a.out.Result(SessionShowResult{Session: sess, Shots: shots, SubSessions: subs},
				strings.TrimSuffix(b.String(), "\n"))
		},
	}
}

// formatSubSession renders one sub-session on a line.
func formatSubSession(ss store.SubSession) string {
	pct := "n/a"
	if ss.APercentage != nil {
		pct = fmt.Sprintf("%.2f%%", *ss.APercentage)
	}
	return fmt.Sprintf("%s [%s]: %d shots A=%d B=%d C=%d A%%=%s (%s)",
		ss.Club, shortHash(ss.TemplateHash), ss.ShotCount, ss.ACount, ss.BCount, ss.CCount, pct, ss.Validity)
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
