// Command golfkpi is the command-line front end of the golf analytics
// governance kernel.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/golfkpi/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) || exitErr.Code == cli.ExitCommandError {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
