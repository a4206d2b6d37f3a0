package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Version, Commit, and Date can be overridden at build time with
	// -ldflags "-X .../cmd.Version=...".
	Version = "0.1.0-dev"
	Commit  string
	Date    string
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("screenstub %s\n", Version)
		fmt.Printf("commit: %s\n", Commit)
		fmt.Printf("built: %s\n", Date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
