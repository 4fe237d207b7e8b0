package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	ShutterVersion, ShutterCommit, ShutterDate string
)

var versionCommand = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Display version, commit hash, build date, and other build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Shutter version: %s\n", ShutterVersion)
		fmt.Printf("Commit: %s\n", ShutterCommit)
		fmt.Printf("Built: %s\n", ShutterDate)
	},
}

func init() {
	rootCommand.AddCommand(versionCommand)
}
