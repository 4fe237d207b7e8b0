package workflow

import (
	"fmt"
	"time"

	"github.com/aravindh-murugesan/aws-shutter-go/internal/cloud"
	"github.com/aravindh-murugesan/aws-shutter-go/internal/policy"
)

// Tags stamped onto every snapshot the engine creates. They let a later
// pass select exactly the shutter-managed snapshots for one instance and
// never touch unrelated snapshots in either region.
const (
	ManagedTag        = "shutter:managed"
	SourceInstanceTag = "shutter:source-instance"
	SourceVolumeTag   = "shutter:source-volume"
	SourceSnapshotTag = "shutter:source-snapshot"
	FrequencyTag      = "shutter:frequency"
	RunIDTag          = "shutter:run-id"
)

// managedInstanceFilter selects instances that carry the enable tag at all;
// the resolver decides whether its value actually opts the instance in.
func managedInstanceFilter() cloud.TagFilter {
	return cloud.TagFilter{policy.EnableTag: ""}
}

// managedSnapshotFilter selects the shutter-managed snapshots belonging to
// one source instance.
func managedSnapshotFilter(instanceID string) cloud.TagFilter {
	return cloud.TagFilter{
		ManagedTag:        "true",
		SourceInstanceTag: instanceID,
	}
}

// snapshotTags builds the tag set for a locally created snapshot.
func snapshotTags(inst cloud.InstanceDescriptor, volumeID string, freq policy.Frequency, runID string, now time.Time) map[string]string {
	return map[string]string{
		"Name":            generateSnapshotName(inst, freq, now),
		ManagedTag:        "true",
		SourceInstanceTag: inst.ID,
		SourceVolumeTag:   volumeID,
		FrequencyTag:      string(freq),
		RunIDTag:          runID,
	}
}

// offsiteTags builds the tag set for a cross-region copy, additionally
// recording which local snapshot it was copied from.
func offsiteTags(inst cloud.InstanceDescriptor, source cloud.SnapshotRecord, freq policy.Frequency, runID string) map[string]string {
	tags := snapshotTags(inst, source.SourceVolumeID, freq, runID, source.CreatedAt)
	tags[SourceSnapshotTag] = source.ID
	return tags
}

func generateSnapshotName(inst cloud.InstanceDescriptor, freq policy.Frequency, now time.Time) string {
	name := inst.Name
	if name == "" {
		name = inst.ID
	}
	return fmt.Sprintf("shutter-%s-%s-%s", name, freq, now.UTC().Format("2006-01-02-150405"))
}
