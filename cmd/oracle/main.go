// Package main is the entry point for the Mirror Dissonance governance
// Oracle.
package main

import (
	"fmt"
	"os"

	"github.com/phasemirror/dissonance-oracle/cmd/oracle/cmd"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
)

func main() {
	cmd.SetVersion(buildVersion, buildCommit)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
