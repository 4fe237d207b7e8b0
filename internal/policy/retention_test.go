package policy

import (
	"testing"
	"time"

	"github.com/aravindh-murugesan/aws-shutter-go/internal/cloud"
)

func snapAt(id string, created time.Time) cloud.SnapshotRecord {
	return cloud.SnapshotRecord{ID: id, CreatedAt: created}
}

func snapSeries(n int) []cloud.SnapshotRecord {
	base := time.Date(2026, 8, 1, 3, 0, 0, 0, time.UTC)
	out := make([]cloud.SnapshotRecord, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, snapAt(
			// snap-0 is the oldest.
			"snap-"+string(rune('0'+i)),
			base.Add(time.Duration(i)*24*time.Hour),
		))
	}
	return out
}

func ids(records []cloud.SnapshotRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestPlan_Partition(t *testing.T) {
	tests := []struct {
		name        string
		count       int
		historySize int
		wantKeep    int
		wantDelete  int
	}{
		{"Nine keep seven", 9, 7, 7, 2},
		{"Exactly at limit", 7, 7, 7, 0},
		{"Under limit", 3, 7, 3, 0},
		{"Unlimited history", 9, 0, 9, 0},
		{"Keep one", 5, 1, 1, 4},
		{"Empty input", 0, 7, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := Plan(snapSeries(tt.count), tt.historySize, true)

			if len(plan.Keep) != tt.wantKeep {
				t.Errorf("len(Keep) = %d, want %d", len(plan.Keep), tt.wantKeep)
			}
			if len(plan.Delete) != tt.wantDelete {
				t.Errorf("len(Delete) = %d, want %d", len(plan.Delete), tt.wantDelete)
			}
			if len(plan.Keep)+len(plan.Delete) != tt.count {
				t.Errorf("partition covers %d records, want %d", len(plan.Keep)+len(plan.Delete), tt.count)
			}
		})
	}
}

func TestPlan_DeletesOldestFirst(t *testing.T) {
	plan := Plan(snapSeries(9), 7, true)

	// snap-0 and snap-1 are the two oldest and must go, oldest first.
	if !equalIDs(ids(plan.Delete), []string{"snap-0", "snap-1"}) {
		t.Errorf("Delete = %v, want [snap-0 snap-1]", ids(plan.Delete))
	}
	if ids(plan.Keep)[0] != "snap-8" {
		t.Errorf("Keep[0] = %s, want snap-8 (newest retained first)", ids(plan.Keep)[0])
	}
}

func TestPlan_TieBreakByID(t *testing.T) {
	created := time.Date(2026, 8, 15, 3, 0, 0, 0, time.UTC)
	input := []cloud.SnapshotRecord{
		snapAt("snap-c", created),
		snapAt("snap-a", created),
		snapAt("snap-b", created),
	}

	first := Plan(input, 2, true)
	second := Plan(input, 2, true)

	// Identical timestamps fall back to id order, so repeated planning is
	// deterministic.
	if !equalIDs(ids(first.Keep), ids(second.Keep)) || !equalIDs(ids(first.Delete), ids(second.Delete)) {
		t.Fatal("Plan() is not deterministic on identical timestamps")
	}
	if !equalIDs(ids(first.Keep), []string{"snap-a", "snap-b"}) {
		t.Errorf("Keep = %v, want [snap-a snap-b]", ids(first.Keep))
	}
	if !equalIDs(ids(first.Delete), []string{"snap-c"}) {
		t.Errorf("Delete = %v, want [snap-c]", ids(first.Delete))
	}
}

func TestPlan_DryRunStillComputed(t *testing.T) {
	plan := Plan(snapSeries(9), 7, false)

	if plan.DeleteEnabled {
		t.Error("DeleteEnabled = true, want false")
	}
	if len(plan.Delete) != 2 {
		t.Errorf("len(Delete) = %d, want 2 even when deletion is disabled", len(plan.Delete))
	}
}

func TestPlan_DoesNotMutateInput(t *testing.T) {
	input := []cloud.SnapshotRecord{
		snapAt("snap-1", time.Date(2026, 8, 1, 3, 0, 0, 0, time.UTC)),
		snapAt("snap-2", time.Date(2026, 8, 2, 3, 0, 0, 0, time.UTC)),
	}

	Plan(input, 1, true)

	if input[0].ID != "snap-1" || input[1].ID != "snap-2" {
		t.Errorf("input reordered: %v", ids(input))
	}
}
