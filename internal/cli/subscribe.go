package cli

import (
	"fmt"
	"strconv"

	"github.com/aravindh-murugesan/aws-shutter-go/internal/workflow"
	"github.com/spf13/cobra"
)

// Flags for the subscribe command
var (
	subRegion          string
	subInstance        string
	subEnabled         bool
	subFrequency       string
	subHour            int
	subDayOfWeek       int
	subDayOfMonth      int
	subHistorySize     int
	subDeleteOld       bool
	subRootDevice      string
	subOffsiteEnabled  bool
	subOffsiteRegion   string
	subOffsiteHistory  int
	subOffsiteEncrypt  bool
	subOffsiteKMSKeyID string
)

var subscribeCommand = &cobra.Command{
	Use:     "subscribe",
	Short:   "Configure snapshot policy overrides on an instance",
	GroupID: "shutter",
	Long:    `Writes Shutter-* tags onto the target instance, opting it into management and overriding the configured defaults. Only the flags you set become tags; unset fields keep inheriting from global and region defaults. The instance may be addressed by id or by its Name tag.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(headerStyle.Render("Shutter - Instance Subscription"))

		tags := map[string]string{
			"Shutter-Enable": strconv.FormatBool(subEnabled),
		}
		setIfChanged := func(flag, tag, value string) {
			if cmd.Flags().Changed(flag) {
				tags[tag] = value
			}
		}
		setIfChanged("frequency", "Shutter-Frequency", subFrequency)
		setIfChanged("hour", "Shutter-Hour", strconv.Itoa(subHour))
		setIfChanged("day-of-week", "Shutter-DayOfWeek", strconv.Itoa(subDayOfWeek))
		setIfChanged("day-of-month", "Shutter-DayOfMonth", strconv.Itoa(subDayOfMonth))
		setIfChanged("history-size", "Shutter-HistorySize", strconv.Itoa(subHistorySize))
		setIfChanged("delete-old", "Shutter-DeleteOldSnapshots", strconv.FormatBool(subDeleteOld))
		setIfChanged("root-device", "Shutter-RootDevice", subRootDevice)
		setIfChanged("offsite-enabled", "Shutter-OffsiteEnabled", strconv.FormatBool(subOffsiteEnabled))
		setIfChanged("offsite-region", "Shutter-OffsiteRegion", subOffsiteRegion)
		setIfChanged("offsite-history-size", "Shutter-OffsiteHistorySize", strconv.Itoa(subOffsiteHistory))
		setIfChanged("offsite-encrypt", "Shutter-OffsiteEncrypt", strconv.FormatBool(subOffsiteEncrypt))
		setIfChanged("offsite-kms-key-id", "Shutter-OffsiteKmsKeyId", subOffsiteKMSKeyID)

		return workflow.SubscribeInstance(configPath, logLevel, subRegion, subInstance, tags)
	},
}

func init() {
	subscribeCommand.Flags().StringVar(&subRegion, "region", "", "Region of the instance (defaults to DefaultAWSRegion)")
	subscribeCommand.Flags().StringVar(&subInstance, "instance", "", "Instance id or Name tag value (required)")
	subscribeCommand.Flags().BoolVar(&subEnabled, "enabled", true, "Enable or disable management of this instance")
	subscribeCommand.Flags().StringVar(&subFrequency, "frequency", "", "Snapshot frequency (daily, weekly, monthly)")
	subscribeCommand.Flags().IntVar(&subHour, "hour", 0, "Hour of day for the snapshot trigger (0-23)")
	subscribeCommand.Flags().IntVar(&subDayOfWeek, "day-of-week", 0, "Day of week for weekly frequency (0=Sunday .. 6=Saturday)")
	subscribeCommand.Flags().IntVar(&subDayOfMonth, "day-of-month", 1, "Day of month for monthly frequency (1-28)")
	subscribeCommand.Flags().IntVar(&subHistorySize, "history-size", 0, "Snapshots to retain (0 = unlimited)")
	subscribeCommand.Flags().BoolVar(&subDeleteOld, "delete-old", false, "Actually delete snapshots beyond the retention window")
	subscribeCommand.Flags().StringVar(&subRootDevice, "root-device", "", "Device name to snapshot instead of the root device")
	subscribeCommand.Flags().BoolVar(&subOffsiteEnabled, "offsite-enabled", false, "Enable offsite replication")
	subscribeCommand.Flags().StringVar(&subOffsiteRegion, "offsite-region", "", "Destination region for offsite copies")
	subscribeCommand.Flags().IntVar(&subOffsiteHistory, "offsite-history-size", 0, "Offsite snapshots to retain (0 = unlimited)")
	subscribeCommand.Flags().BoolVar(&subOffsiteEncrypt, "offsite-encrypt", false, "Encrypt offsite copies")
	subscribeCommand.Flags().StringVar(&subOffsiteKMSKeyID, "offsite-kms-key-id", "", "Raw KMS key id for encrypted copies (aliases are rejected)")

	_ = subscribeCommand.MarkFlagRequired("instance")

	rootCommand.AddCommand(subscribeCommand)
}
