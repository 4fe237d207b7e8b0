package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aravindh-murugesan/aws-shutter-go/internal/cloud"
	"github.com/aravindh-murugesan/aws-shutter-go/internal/metrics"
	"github.com/aravindh-murugesan/aws-shutter-go/internal/notifications"
	"github.com/aravindh-murugesan/aws-shutter-go/internal/policy"
	"github.com/google/uuid"
)

// PassConfig describes one orchestration pass: which regions to scan and
// the layered policy defaults to resolve against.
type PassConfig struct {
	Regions []string

	// Global is the lowest-precedence policy layer.
	Global policy.Defaults

	// RegionDefaults overlays Global per region, keyed by region name.
	RegionDefaults map[string]policy.Defaults
}

func (c *PassConfig) regionDefaults(region string) *policy.Defaults {
	if c.RegionDefaults == nil {
		return nil
	}
	if d, ok := c.RegionDefaults[region]; ok {
		return &d
	}
	return nil
}

// Options tunes one pass. The zero value runs sequentially at the current
// time with a fresh run id.
type Options struct {
	// Parallelism bounds the number of instances processed concurrently.
	// Values below 1 mean sequential. This is a tuning knob only: the
	// engine produces identical decisions at any degree of parallelism.
	Parallelism int

	// Now is the evaluation time; zero means time.Now().UTC(). Injected
	// for deterministic testing.
	Now time.Time

	// RunID tags every snapshot created during the pass; generated when
	// empty.
	RunID string

	// Webhook, when set, receives an alert for every instance whose
	// pipeline reported errors.
	Webhook *notifications.Webhook
}

// RunSnapshotPass executes one full pass: for every configured region, list
// the managed instances, resolve each instance's effective policy, evaluate
// its schedule and, on a positive decision, create a snapshot, enforce
// local retention and replicate offsite when configured.
//
// Instances are independent: any failure is recorded in the report and the
// pass continues. The returned error covers only total inability to run.
func RunSnapshotPass(ctx context.Context, provider cloud.Provider, cfg PassConfig, logger *slog.Logger, opts Options) (*PassReport, error) {
	if len(cfg.Regions) == 0 {
		return nil, fmt.Errorf("no regions configured")
	}

	start := time.Now()
	now := opts.Now
	if now.IsZero() {
		now = start.UTC()
	}
	runID := opts.RunID
	if runID == "" {
		runID = fmt.Sprintf("run-%s", uuid.New().String())
	}

	logger = logger.With("run_id", runID)
	logger.Info("Initializing snapshot lifecycle pass", "regions", cfg.Regions, "evaluation_time", now)

	report := &PassReport{RunID: runID, StartedAt: now}
	metrics.PassesTotal.Inc()

	// Discover managed instances region by region. A region whose listing
	// fails is reported at pass scope and skipped; the rest of the fleet
	// still gets its pass.
	type unit struct {
		inst   cloud.InstanceDescriptor
		region string
	}
	var units []unit

	for _, region := range cfg.Regions {
		if ctx.Err() != nil {
			logger.Warn("Pass halted during discovery", "error", ctx.Err())
			return report, ctx.Err()
		}

		instances, err := provider.ListInstances(ctx, region, managedInstanceFilter())
		if err != nil {
			logger.Error("Instance discovery failed", "region", region, "error", err)
			report.Errors = append(report.Errors, fmt.Sprintf("region %s: %v", region, err))
			continue
		}
		logger.Debug("Managed instance discovery completed", "region", region, "instance_count", len(instances))
		for _, inst := range instances {
			units = append(units, unit{inst: inst, region: region})
		}
	}

	// Bounded fan-out. No two workers ever touch the same instance, so the
	// only shared state is the report slice behind its mutex.
	parallelism := opts.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}

	var (
		wg  sync.WaitGroup
		sem = make(chan struct{}, parallelism)
		mu  sync.Mutex
	)

	for _, u := range units {
		wg.Add(1)
		sem <- struct{}{}
		go func(u unit) {
			defer wg.Done()
			defer func() { <-sem }()

			instLogger := logger.With("instance_id", u.inst.ID, "region", u.region)
			r := processInstance(ctx, provider, cfg, u.inst, now, runID, instLogger)

			if r.Failed() {
				metrics.InstanceErrors.WithLabelValues(u.region).Inc()
			}

			mu.Lock()
			report.PerInstance = append(report.PerInstance, r)
			mu.Unlock()
		}(u)
	}
	wg.Wait()

	report.Duration = time.Since(start)

	processed, created, deleted, failed := report.Summary()
	logger.Info("Snapshot pass execution summary",
		"instances_processed", processed,
		"snapshots_created", created,
		"snapshots_deleted", deleted,
		"instances_failed", failed)

	notifyFailures(report, opts.Webhook, logger)

	return report, nil
}

// notifyFailures pushes a webhook alert per failed instance. Alerting is
// best-effort; a webhook failure is logged, never propagated.
func notifyFailures(report *PassReport, webhook *notifications.Webhook, logger *slog.Logger) {
	if webhook == nil || webhook.URL == "" {
		return
	}
	for i := range report.PerInstance {
		r := &report.PerInstance[i]
		if !r.Failed() {
			continue
		}
		err := webhook.Notify(notifications.InstancePassFailure{
			Service:    "shutter",
			RunID:      report.RunID,
			InstanceID: r.InstanceID,
			Region:     r.Region,
			SnapshotID: r.CreatedSnapshotID,
			Errors:     r.Errors,
		})
		if err != nil {
			logger.Warn("Failure notification could not be delivered", "instance_id", r.InstanceID, "error", err)
		}
	}
}
