package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is overridden at build time via -ldflags.
var version = "unknown"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("%s version: %s\n", app, version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
