package workflow

import (
	"time"

	"github.com/aravindh-murugesan/aws-shutter-go/internal/policy"
)

// PassReport is the full outcome of one orchestration pass. Every managed
// instance that was seen appears in PerInstance, success or failure; there
// is no silent skip.
type PassReport struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration

	// Errors holds pass-scoped failures (e.g. a region whose instance
	// listing failed). Instance-scoped failures live on the instance report.
	Errors []string

	PerInstance []InstanceReport
}

// InstanceReport is the per-instance slice of a pass report.
type InstanceReport struct {
	InstanceID string
	Region     string

	// Skipped carries the reason when the instance produced no snapshot
	// work at all (configuration error or explicit opt-out).
	Skipped string

	Decision policy.ScheduleDecision

	CreatedSnapshotID string
	CopiedSnapshotID  string
	DeletedLocal      []string
	DeletedOffsite    []string

	// PlannedDelete lists what retention would remove while
	// DeleteOldSnapshots is off (dry-run observability).
	PlannedDelete []string

	Errors []string
}

// Failed reports whether any step of this instance's pipeline errored.
func (r *InstanceReport) Failed() bool {
	return len(r.Errors) > 0
}

func (r *InstanceReport) addError(err error) {
	r.Errors = append(r.Errors, err.Error())
}

// Summary condenses a pass for logging.
func (p *PassReport) Summary() (processed, created, deleted, failed int) {
	for i := range p.PerInstance {
		r := &p.PerInstance[i]
		processed++
		if r.CreatedSnapshotID != "" {
			created++
		}
		deleted += len(r.DeletedLocal) + len(r.DeletedOffsite)
		if r.Failed() {
			failed++
		}
	}
	return processed, created, deleted, failed
}
