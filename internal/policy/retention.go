package policy

import (
	"slices"
	"strings"

	"github.com/aravindh-murugesan/aws-shutter-go/internal/cloud"
)

// RetentionPlan partitions an existing snapshot set into the records to
// keep and the records to delete. Keep and Delete never overlap and
// together cover the input exactly.
//
// Delete is ordered oldest-first so that a caller can stop early on a
// partial failure and lose as little history as possible.
type RetentionPlan struct {
	Keep   []cloud.SnapshotRecord
	Delete []cloud.SnapshotRecord

	// DeleteEnabled mirrors the policy's DeleteOldSnapshots flag. When
	// false, Delete is still computed for dry-run reporting but the caller
	// must not issue deletion requests.
	DeleteEnabled bool
}

// Plan orders existing snapshots newest-first and keeps the first
// historySize records. A historySize of 0 means unlimited: everything is
// kept. Ties in CreatedAt are broken by record id ascending so repeated
// runs on the same input produce the same plan.
func Plan(existing []cloud.SnapshotRecord, historySize int, deleteEnabled bool) RetentionPlan {
	sorted := make([]cloud.SnapshotRecord, len(existing))
	copy(sorted, existing)

	slices.SortFunc(sorted, func(a, b cloud.SnapshotRecord) int {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return b.CreatedAt.Compare(a.CreatedAt) // newest first
		}
		return strings.Compare(a.ID, b.ID)
	})

	plan := RetentionPlan{DeleteEnabled: deleteEnabled}

	if historySize == 0 || historySize >= len(sorted) {
		plan.Keep = sorted
		return plan
	}

	plan.Keep = sorted[:historySize]

	excess := sorted[historySize:]
	plan.Delete = make([]cloud.SnapshotRecord, len(excess))
	copy(plan.Delete, excess)
	slices.SortFunc(plan.Delete, func(a, b cloud.SnapshotRecord) int {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Compare(b.CreatedAt) // oldest first
		}
		return strings.Compare(a.ID, b.ID)
	})

	return plan
}
