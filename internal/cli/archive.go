package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/golfkpi/internal/archive"
)

// TransferResult summarizes an export or restore.
type TransferResult struct {
	Driver    archive.Driver     `json:"driver"`
	Created   int                `json:"created"`
	Existing  int                `json:"existing"`
	Transfers []archive.Transfer `json:"transfers"`
}

func newTransferResult(d archive.Driver, ts []archive.Transfer) TransferResult {
	res := TransferResult{Driver: d, Transfers: ts}
	if res.Transfers == nil {
		res.Transfers = []archive.Transfer{}
	}
	for _, t := range ts {
		if t.Created {
			res.Created++
		} else {
			res.Existing++
		}
	}
	return res
}

// NewArchiveCommand creates the archive command group.
func NewArchiveCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Mirror templates and snapshots to blob storage",
		Long: `Copy canonical artifact bytes to the archive configured by GOLFKPI_ARCHIVE
(fs or s3), or restore them into an empty database. Archived objects are
never overwritten.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "export",
		Short:         "Copy every stored artifact to the archive",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			arc, err := a.openArchive(cmd.Context())
			if err != nil {
				return a.out.Fail("failed to open archive", commandError("archive", err))
			}
			ts, err := archive.Export(cmd.Context(), a.store, arc, a.logger)
			if err != nil {
				return a.out.Fail("export failed", err)
			}
			res := newTransferResult(arc.Driver(), ts)
			return a.out.Result(res, fmt.Sprintf("exported to %s: %d new, %d already archived", res.Driver, res.Created, res.Existing))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "restore",
		Short:         "Insert every archived artifact into the database",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			arc, err := a.openArchive(cmd.Context())
			if err != nil {
				return a.out.Fail("failed to open archive", commandError("archive", err))
			}
			ts, err := archive.Restore(cmd.Context(), arc, a.store, a.logger)
			if err != nil {
				return a.out.Fail("restore failed", err)
			}
			res := newTransferResult(arc.Driver(), ts)
			return a.out.Result(res, fmt.Sprintf("restored from %s: %d new, %d already stored", res.Driver, res.Created, res.Existing))
		},
	})
	return cmd
}
