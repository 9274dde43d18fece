package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// SnapshotResult is the output of the snapshot commands.
type SnapshotResult struct {
	Hash       string `json:"snapshot_hash"`
	CourseName string `json:"course_name"`
	TeeSet     string `json:"tee_set"`
	HoleCount  int    `json:"hole_count"`
	Par        int    `json:"par"`
	Inserted   *bool  `json:"inserted,omitempty"`
	Canonical  string `json:"canonical,omitempty"`
}

// NewSnapshotCommand creates the snapshot command group.
func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Store and inspect frozen course snapshots",
	}
	cmd.AddCommand(&cobra.Command{
		Use:           "add <file|->",
		Short:         "Store a course snapshot by content hash",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			raw, err := readInput(cmd, args[0])
			if err != nil {
				return a.out.Fail("failed to read snapshot", commandError(args[0], err))
			}
			ss, inserted, err := a.store.InsertSnapshot(cmd.Context(), raw)
			if err != nil {
				return a.out.Fail("snapshot rejected", err)
			}
			cs := ss.Snapshot
			res := SnapshotResult{Hash: ss.Hash, CourseName: cs.CourseName, TeeSet: cs.TeeSet,
				HoleCount: cs.HoleCount, Par: cs.Par(), Inserted: &inserted}
			verb := "stored"
			if !inserted {
				verb = "already stored"
			}
			return a.out.Result(res, fmt.Sprintf("%s snapshot %s (%s, %s tees, par %d)",
				verb, res.Hash, res.CourseName, res.TeeSet, res.Par))
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "show <snapshot-hash>",
		Short:         "Print a stored course snapshot",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ss, err := a.store.FetchSnapshot(cmd.Context(), args[0])
			if err != nil {
				return a.out.Fail("snapshot lookup failed", err)
			}
			cs := ss.Snapshot
			res := SnapshotResult{Hash: ss.Hash, CourseName: cs.CourseName, TeeSet: cs.TeeSet,
				HoleCount: cs.HoleCount, Par: cs.Par(), Canonical: string(ss.Canonical)}
			return a.out.Result(res, res.Canonical)
		},
	})
	return cmd
}
