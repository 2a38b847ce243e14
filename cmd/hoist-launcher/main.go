// Command hoist-launcher is copied out of the working directory and started
// by 'hoist launch'. It waits for the application to exit, applies the
// newest installed update and starts the application again.
package main

import (
	"os"

	"github.com/adamancini/hoist/internal/cmd"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := cmd.ExecuteLauncher(version, commit, date); err != nil {
		os.Exit(1)
	}
}
