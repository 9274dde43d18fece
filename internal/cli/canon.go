package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/golfkpi/internal/canon"
)

// CanonResult is the output of the canon command.
type CanonResult struct {
	Hash      string `json:"hash"`
	Canonical string `json:"canonical"`
}

// NewCanonCommand creates the canon command.
func NewCanonCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "canon <file|->",
		Short: "Print the canonical form and hash of a JSON document",
		Long: `Canonicalize a JSON document (RFC 8785) and print its canonical bytes and
SHA-256 identity. Reads standard input when the argument is "-".

Example:
  golfkpi canon templates/7i.json
  cat snapshot.json | golfkpi canon - --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCanon(rootOpts, args[0], cmd)
		},
	}
}

func runCanon(opts *RootOptions, path string, cmd *cobra.Command) error {
	out := newFormatter(opts, cmd)

	raw, err := readInput(cmd, path)
	if err != nil {
		return out.Fail("failed to read input", commandError(path, err))
	}
	canonical, err := canon.Canonicalize(raw)
	if err != nil {
		return out.Fail("failed to canonicalize", err)
	}

	res := CanonResult{Hash: canon.Hash(canonical), Canonical: string(canonical)}
	return out.Result(res, fmt.Sprintf("%s\n%s", res.Canonical, res.Hash))
}

// readInput reads a file, or standard input for "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}
