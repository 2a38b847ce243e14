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
	// fang has already printed the error.
	if err := cmd.Execute(version, commit, date); err != nil {
		os.Exit(1)
	}
}
