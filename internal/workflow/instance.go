package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aravindh-murugesan/aws-shutter-go/internal/cloud"
	"github.com/aravindh-murugesan/aws-shutter-go/internal/metrics"
	"github.com/aravindh-murugesan/aws-shutter-go/internal/policy"
)

// processInstance applies the full pipeline to a single instance:
// resolve policy → evaluate schedule → create if due → refresh listing →
// local retention → offsite replication → offsite retention.
//
// Failures are scoped to the step that produced them: a provider failure
// abandons the instance's remaining steps; an offsite validation failure
// skips the offsite step only. Everything lands in the returned report.
func processInstance(ctx context.Context, provider cloud.Provider, cfg PassConfig, inst cloud.InstanceDescriptor, now time.Time, runID string, logger *slog.Logger) InstanceReport {
	report := InstanceReport{InstanceID: inst.ID, Region: inst.Region}

	// A. Resolve the effective policy.
	pol, err := policy.Resolve(cfg.Global, cfg.regionDefaults(inst.Region), inst)
	if err != nil {
		if errors.Is(err, policy.ErrNotManaged) {
			// The discovery filter matches on tag presence; an instance can
			// still opt out via the tag value.
			logger.Debug("Instance is not opted in; skipping")
			report.Skipped = "not managed"
			return report
		}
		logger.Error("Policy resolution failed", "error", err)
		report.Skipped = "configuration error"
		report.addError(err)
		return report
	}

	logger.Debug("Effective policy resolved",
		"frequency", pol.Frequency,
		"hour", pol.Hour,
		"history_size", pol.HistorySize,
		"delete_old", pol.DeleteOldSnapshots,
		"offsite", pol.Offsite != nil)

	// B. Evaluate the schedule.
	report.Decision = policy.IsDue(pol, now)
	if !report.Decision.Due {
		logger.Info("Snapshot creation skipped", "reason", report.Decision.Reason)
		return report
	}

	// C. Create the snapshot.
	volumeID, err := resolveVolume(inst, pol)
	if err != nil {
		logger.Error("Volume resolution failed", "error", err)
		report.addError(err)
		return report
	}

	logger.Info("Snapshot window active; initiating creation", "volume_id", volumeID, "reason", report.Decision.Reason)
	created, err := provider.CreateSnapshot(ctx, inst.Region, volumeID, snapshotTags(inst, volumeID, pol.Frequency, runID, now))
	if err != nil {
		logger.Error("Snapshot creation failed", "error", err)
		report.addError(err)
		return report
	}
	report.CreatedSnapshotID = created.ID
	metrics.SnapshotsCreated.WithLabelValues(inst.Region).Inc()
	logger.Info("Snapshot resource successfully created", "snapshot_id", created.ID)

	// D. Local retention over the refreshed listing.
	existing, err := provider.ListSnapshots(ctx, inst.Region, managedSnapshotFilter(inst.ID))
	if err != nil {
		logger.Error("Snapshot listing failed; abandoning retention and offsite steps", "error", err)
		report.addError(err)
		return report
	}

	plan := policy.Plan(existing, pol.HistorySize, pol.DeleteOldSnapshots)
	var retentionErr error
	report.DeletedLocal, report.PlannedDelete, retentionErr = applyRetention(ctx, provider, inst.Region, plan, logger)
	if retentionErr != nil {
		report.addError(retentionErr)
	}

	// E. Offsite replication, best-effort and additive.
	if pol.Offsite == nil {
		return report
	}
	if err := policy.ValidateOffsite(pol.Offsite); err != nil {
		logger.Warn("Offsite step skipped", "error", err)
		report.addError(err)
		return report
	}

	outcome, err := replicateSnapshot(ctx, provider, inst, created, pol.Offsite, pol.DeleteOldSnapshots, runID, logger)
	if err != nil {
		logger.Error("Offsite replication failed", "error", err)
		report.addError(err)
	}
	report.CopiedSnapshotID = outcome.CopiedID
	report.DeletedOffsite = outcome.Deleted
	report.PlannedDelete = append(report.PlannedDelete, outcome.Planned...)

	return report
}

// resolveVolume picks the volume to snapshot. A policy RootDevice override
// selects a specific attached device; otherwise the instance's reported
// root volume is used.
func resolveVolume(inst cloud.InstanceDescriptor, pol policy.EffectivePolicy) (string, error) {
	if pol.RootDevice != "" {
		if vol, ok := inst.DeviceVolumes[pol.RootDevice]; ok {
			return vol, nil
		}
		return "", fmt.Errorf("configured root device '%s' is not attached to instance %s", pol.RootDevice, inst.ID)
	}
	if inst.RootDeviceID == "" {
		return "", fmt.Errorf("instance %s has no root volume", inst.ID)
	}
	return inst.RootDeviceID, nil
}

// applyRetention executes a retention plan in one region. Deletions run
// oldest-first and stop on the first failure so a partial outcome never
// skips over an older snapshot. When deletion is disabled the plan is
// reported as a dry run.
func applyRetention(ctx context.Context, provider cloud.Provider, region string, plan policy.RetentionPlan, logger *slog.Logger) (deleted, planned []string, err error) {
	if len(plan.Delete) == 0 {
		return nil, nil, nil
	}

	if !plan.DeleteEnabled {
		for _, snap := range plan.Delete {
			planned = append(planned, snap.ID)
		}
		logger.Info("Retention dry run: deletion disabled by policy",
			"region", region,
			"excess_count", len(planned),
			"snapshot_ids", planned)
		return nil, planned, nil
	}

	for _, snap := range plan.Delete {
		if err := provider.DeleteSnapshot(ctx, region, snap.ID); err != nil {
			logger.Error("Snapshot deletion failed; stopping retention early",
				"region", region, "snapshot_id", snap.ID, "error", err)
			return deleted, nil, err
		}
		deleted = append(deleted, snap.ID)
		metrics.SnapshotsDeleted.WithLabelValues(region).Inc()
		logger.Info("Snapshot deleted by retention", "region", region, "snapshot_id", snap.ID)
	}
	return deleted, nil, nil
}
