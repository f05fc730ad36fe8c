package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// buildVersion is overridden at build time via
// -ldflags "-X main.buildVersion=v1.2.3".
var buildVersion = "dev"

// Version returns the current version string.
func Version() string {
	return buildVersion
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("swarmctl version %s\n", Version())
	},
}
