package cli

import (
	"fmt"
	"time"

	"github.com/aravindh-murugesan/aws-shutter-go/internal/workflow"
	"github.com/spf13/cobra"
)

var runCommand = &cobra.Command{
	Use:     "run",
	GroupID: "shutter",
	Short:   "Execute one snapshot lifecycle pass",
	Long:    `Scans every configured region for instances carrying the Shutter-Enable tag, resolves each instance's effective policy, evaluates its schedule against the current time and, when due, creates a snapshot, prunes local history beyond the retention window and replicates offsite if configured.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(headerStyle.Render("Shutter - Snapshot Pass"))

		return workflow.RunPass(
			configPath,
			timeout,
			logLevel,
			time.Time{},
		)
	},
}

func init() {
	rootCommand.AddCommand(runCommand)
}
