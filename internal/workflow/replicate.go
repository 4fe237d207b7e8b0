package workflow

import (
	"context"
	"log/slog"

	"github.com/aravindh-murugesan/aws-shutter-go/internal/cloud"
	"github.com/aravindh-murugesan/aws-shutter-go/internal/metrics"
	"github.com/aravindh-murugesan/aws-shutter-go/internal/policy"
)

// ReplicationOutcome records what the offsite step achieved. A partially
// failed replication still reports whatever progress was made: a copy that
// succeeded before a pruning failure stays reported as copied.
type ReplicationOutcome struct {
	CopiedID string
	Deleted  []string
	Planned  []string
}

// replicateSnapshot copies a freshly created snapshot into the offsite
// region and enforces the offsite retention window there. The destination
// snapshot set is selected by the same source-instance tag the local
// retention uses; offsite retention is the same planner run against a
// disjoint snapshot set, never special-cased logic.
//
// Offsite work is additive: an error here never rolls back the local
// snapshot or local retention.
func replicateSnapshot(ctx context.Context, provider cloud.Provider, inst cloud.InstanceDescriptor, source cloud.SnapshotRecord, off *policy.OffsitePolicy, deleteEnabled bool, runID string, logger *slog.Logger) (ReplicationOutcome, error) {
	outcome := ReplicationOutcome{}

	kmsKeyID := ""
	if off.Encrypt {
		kmsKeyID = off.KMSKeyID
	}

	logger.Info("Replicating snapshot offsite",
		"snapshot_id", source.ID,
		"destination_region", off.Region,
		"encrypted", off.Encrypt)

	copied, err := provider.CopySnapshot(ctx, source.Region, source.ID, off.Region, kmsKeyID, offsiteTags(inst, source, off.Frequency, runID))
	if err != nil {
		return outcome, err
	}
	outcome.CopiedID = copied.ID
	metrics.SnapshotsCopied.WithLabelValues(off.Region).Inc()
	logger.Info("Offsite copy created", "snapshot_id", copied.ID, "region", off.Region)

	remote, err := provider.ListSnapshots(ctx, off.Region, managedSnapshotFilter(inst.ID))
	if err != nil {
		return outcome, err
	}

	plan := policy.Plan(remote, off.HistorySize, deleteEnabled)
	outcome.Deleted, outcome.Planned, err = applyRetention(ctx, provider, off.Region, plan, logger)
	return outcome, err
}
