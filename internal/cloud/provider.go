package cloud

import (
	"context"
	"time"
)

// InstanceDescriptor is a read-only view of a virtual machine instance as
// reported by the cloud provider at the start of a pass.
type InstanceDescriptor struct {
	ID           string
	Region       string
	Name         string
	RootDeviceID string

	// DeviceVolumes maps attached device names to their backing volume
	// ids, for policies that target a device other than the root.
	DeviceVolumes map[string]string

	Tags map[string]string
}

// SnapshotRecord describes an existing block-storage snapshot.
// CreatedAt is the ordering key used by retention planning.
type SnapshotRecord struct {
	ID             string
	SourceVolumeID string
	Region         string
	CreatedAt      time.Time
	Tags           map[string]string
}

// TagFilter selects resources carrying all of the given tag values.
// An empty value matches any resource that has the key at all.
type TagFilter map[string]string

// Provider defines the contract that every storage backend (AWS EC2,
// oVirt, etc.) must implement. It decouples the policy/retention engine
// from the specific provider SDK.
//
// All mutating operations are expected to apply the implementation's own
// retry policy before returning; a returned error means retries are
// exhausted and the caller should abandon the remaining steps for the
// affected instance.
type Provider interface {
	// ListInstances returns the instances in region matching the tag filter.
	ListInstances(ctx context.Context, region string, filter TagFilter) ([]InstanceDescriptor, error)

	// ListSnapshots returns the snapshots in region matching the tag filter.
	ListSnapshots(ctx context.Context, region string, filter TagFilter) ([]SnapshotRecord, error)

	// CreateSnapshot snapshots the given volume and applies tags atomically
	// at creation time.
	CreateSnapshot(ctx context.Context, region string, volumeID string, tags map[string]string) (SnapshotRecord, error)

	// DeleteSnapshot permanently removes a snapshot.
	DeleteSnapshot(ctx context.Context, region string, snapshotID string) error

	// CopySnapshot replicates a snapshot into destRegion. A non-empty
	// kmsKeyID requests an encrypted copy under that key. Tags are applied
	// to the remote copy.
	CopySnapshot(ctx context.Context, srcRegion string, snapshotID string, destRegion string, kmsKeyID string, tags map[string]string) (SnapshotRecord, error)

	// TagResource merges tags onto an existing instance or snapshot.
	TagResource(ctx context.Context, region string, resourceID string, tags map[string]string) error
}
