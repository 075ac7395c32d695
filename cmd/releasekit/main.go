// Package main is the entry point for the releasekit CLI.
//
// It delegates all functionality to the internal/cli package. Build-time
// variables (version, commit, date) are injected via ldflags and default
// to "dev", "none" and "unknown" in development builds.
package main

import (
	"github.com/shinji-kodama/releasekit/internal/cli"
)

// version, commit, and date are set at build time via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.Version = version
	cli.Commit = commit
	cli.Date = date

	rootCmd := cli.NewRootCommand()
	cli.Execute(rootCmd)
}
