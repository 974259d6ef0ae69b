// Package main is the entry point for the livepatch-ops CLI.
//
// The binary drives the livepatch on-prem operational workflow: building
// and pushing the container images, packing and deploying the operator
// charm, running the lint/test pipeline, and the post-deploy database and
// token operations. All functionality lives in the internal/cli package.
package main

import (
	"github.com/canonical/livepatch-ops/internal/cli"
)

// version, commit, and date are set at build time via ldflags. During
// development they default to "dev", "none", and "unknown".
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
