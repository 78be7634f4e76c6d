// engagectl prints dashboard views and reports from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/engagestack/engagement-intel/cmd/engagectl/cmd"
	"github.com/engagestack/engagement-intel/internal/utils"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(utils.ExitCode(err))
	}
}
