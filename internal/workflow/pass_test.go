package workflow

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aravindh-murugesan/aws-shutter-go/internal/cloud"
	"github.com/aravindh-murugesan/aws-shutter-go/internal/policy"
)

// fakeProvider is an in-memory Provider with per-region instance and
// snapshot stores. It records every mutating call so tests can assert on
// exactly what a pass did.
type fakeProvider struct {
	mu sync.Mutex

	instances map[string][]cloud.InstanceDescriptor
	snapshots map[string][]cloud.SnapshotRecord

	nextID    int
	createdAt time.Time

	createCalls int
	deleteCalls int
	copyCalls   int
	deletedIDs  []string
	copyKMSKeys []string

	listInstancesErr map[string]error
	createErrFor     map[string]error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		instances: map[string][]cloud.InstanceDescriptor{},
		snapshots: map[string][]cloud.SnapshotRecord{},
		createdAt: time.Date(2026, 8, 31, 3, 0, 0, 0, time.UTC),
	}
}

func (f *fakeProvider) addInstance(inst cloud.InstanceDescriptor) {
	f.instances[inst.Region] = append(f.instances[inst.Region], inst)
}

func (f *fakeProvider) seedSnapshot(region, instanceID string, created time.Time) cloud.SnapshotRecord {
	f.nextID++
	rec := cloud.SnapshotRecord{
		ID:        fmt.Sprintf("snap-%04d", f.nextID),
		Region:    region,
		CreatedAt: created,
		Tags: map[string]string{
			ManagedTag:        "true",
			SourceInstanceTag: instanceID,
		},
	}
	f.snapshots[region] = append(f.snapshots[region], rec)
	return rec
}

func matchesFilter(tags map[string]string, filter cloud.TagFilter) bool {
	for k, want := range filter {
		got, ok := tags[k]
		if !ok {
			return false
		}
		if want != "" && got != want {
			return false
		}
	}
	return true
}

func (f *fakeProvider) ListInstances(_ context.Context, region string, filter cloud.TagFilter) ([]cloud.InstanceDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.listInstancesErr[region]; err != nil {
		return nil, err
	}
	var out []cloud.InstanceDescriptor
	for _, inst := range f.instances[region] {
		if matchesFilter(inst.Tags, filter) {
			out = append(out, inst)
		}
	}
	return out, nil
}

func (f *fakeProvider) ListSnapshots(_ context.Context, region string, filter cloud.TagFilter) ([]cloud.SnapshotRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []cloud.SnapshotRecord
	for _, snap := range f.snapshots[region] {
		if matchesFilter(snap.Tags, filter) {
			out = append(out, snap)
		}
	}
	return out, nil
}

func (f *fakeProvider) CreateSnapshot(_ context.Context, region string, volumeID string, tags map[string]string) (cloud.SnapshotRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.createCalls++
	if err := f.createErrFor[volumeID]; err != nil {
		return cloud.SnapshotRecord{}, err
	}

	f.nextID++
	f.createdAt = f.createdAt.Add(time.Minute)
	rec := cloud.SnapshotRecord{
		ID:             fmt.Sprintf("snap-%04d", f.nextID),
		SourceVolumeID: volumeID,
		Region:         region,
		CreatedAt:      f.createdAt,
		Tags:           tags,
	}
	f.snapshots[region] = append(f.snapshots[region], rec)
	return rec, nil
}

func (f *fakeProvider) DeleteSnapshot(_ context.Context, region string, snapshotID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deleteCalls++
	f.deletedIDs = append(f.deletedIDs, snapshotID)
	kept := f.snapshots[region][:0]
	for _, snap := range f.snapshots[region] {
		if snap.ID != snapshotID {
			kept = append(kept, snap)
		}
	}
	f.snapshots[region] = kept
	return nil
}

func (f *fakeProvider) CopySnapshot(_ context.Context, srcRegion string, snapshotID string, destRegion string, kmsKeyID string, tags map[string]string) (cloud.SnapshotRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.copyCalls++
	f.copyKMSKeys = append(f.copyKMSKeys, kmsKeyID)

	f.nextID++
	f.createdAt = f.createdAt.Add(time.Minute)
	rec := cloud.SnapshotRecord{
		ID:        fmt.Sprintf("snap-%04d", f.nextID),
		Region:    destRegion,
		CreatedAt: f.createdAt,
		Tags:      tags,
	}
	f.snapshots[destRegion] = append(f.snapshots[destRegion], rec)
	return rec, nil
}

func (f *fakeProvider) TagResource(_ context.Context, region string, resourceID string, tags map[string]string) error {
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testInstance(id, region string, extraTags map[string]string) cloud.InstanceDescriptor {
	tags := map[string]string{"Shutter-Enable": "true", "Name": "web-" + id}
	for k, v := range extraTags {
		tags[k] = v
	}
	return cloud.InstanceDescriptor{
		ID:           id,
		Region:       region,
		Name:         "web-" + id,
		RootDeviceID: "vol-" + id,
		Tags:         tags,
	}
}

func dailyConfig(regions ...string) PassConfig {
	freq := policy.FrequencyDaily
	hour := 3
	history := 7
	deleteOld := true
	return PassConfig{
		Regions: regions,
		Global: policy.Defaults{
			Frequency:          &freq,
			Hour:               &hour,
			HistorySize:        &history,
			DeleteOldSnapshots: &deleteOld,
		},
	}
}

// evalTime falls inside the daily hour-3 window of dailyConfig.
var evalTime = time.Date(2026, 8, 31, 3, 10, 0, 0, time.UTC)

func findInstanceReport(t *testing.T, report *PassReport, instanceID string) *InstanceReport {
	t.Helper()
	for i := range report.PerInstance {
		if report.PerInstance[i].InstanceID == instanceID {
			return &report.PerInstance[i]
		}
	}
	t.Fatalf("no report for instance %s", instanceID)
	return nil
}

func TestRunSnapshotPass_CreateAndPrune(t *testing.T) {
	provider := newFakeProvider()
	provider.addInstance(testInstance("i-web1", "us-east-1", nil))

	// Eight pre-existing snapshots; the new one makes nine against a
	// history size of seven.
	base := time.Date(2026, 8, 20, 3, 0, 0, 0, time.UTC)
	var oldest, secondOldest string
	for i := 0; i < 8; i++ {
		rec := provider.seedSnapshot("us-east-1", "i-web1", base.Add(time.Duration(i)*24*time.Hour))
		switch i {
		case 0:
			oldest = rec.ID
		case 1:
			secondOldest = rec.ID
		}
	}

	report, err := RunSnapshotPass(context.Background(), provider, dailyConfig("us-east-1"), testLogger(), Options{Now: evalTime, RunID: "run-test"})
	if err != nil {
		t.Fatalf("RunSnapshotPass() error: %v", err)
	}

	r := findInstanceReport(t, report, "i-web1")
	if r.Failed() {
		t.Fatalf("instance failed: %v", r.Errors)
	}
	if !r.Decision.Due {
		t.Fatalf("Decision not due: %s", r.Decision.Reason)
	}
	if r.CreatedSnapshotID == "" {
		t.Error("CreatedSnapshotID empty, want a new snapshot")
	}
	if provider.createCalls != 1 {
		t.Errorf("createCalls = %d, want 1", provider.createCalls)
	}
	if len(r.DeletedLocal) != 2 {
		t.Fatalf("DeletedLocal = %v, want 2 ids", r.DeletedLocal)
	}
	if r.DeletedLocal[0] != oldest || r.DeletedLocal[1] != secondOldest {
		t.Errorf("DeletedLocal = %v, want [%s %s] oldest first", r.DeletedLocal, oldest, secondOldest)
	}
	if remaining := len(provider.snapshots["us-east-1"]); remaining != 7 {
		t.Errorf("%d snapshots remain, want 7", remaining)
	}

	// Duration is wall time, not distance from the injected evaluation time.
	if report.Duration < 0 || report.Duration > time.Minute {
		t.Errorf("Duration = %v, want a small wall-clock elapsed time", report.Duration)
	}

	// Created snapshot carries the lifecycle tags.
	created := provider.snapshots["us-east-1"][len(provider.snapshots["us-east-1"])-1]
	if created.Tags[ManagedTag] != "true" {
		t.Errorf("created snapshot missing %s tag", ManagedTag)
	}
	if created.Tags[SourceInstanceTag] != "i-web1" {
		t.Errorf("%s = %q, want i-web1", SourceInstanceTag, created.Tags[SourceInstanceTag])
	}
	if created.Tags[RunIDTag] != "run-test" {
		t.Errorf("%s = %q, want run-test", RunIDTag, created.Tags[RunIDTag])
	}
	if !strings.HasPrefix(created.Tags["Name"], "shutter-web-i-web1-daily-") {
		t.Errorf("Name tag = %q", created.Tags["Name"])
	}
}

func TestRunSnapshotPass_DryRunNeverDeletes(t *testing.T) {
	provider := newFakeProvider()
	provider.addInstance(testInstance("i-web1", "us-east-1", map[string]string{
		"Shutter-DeleteOldSnapshots": "no",
	}))

	base := time.Date(2026, 8, 20, 3, 0, 0, 0, time.UTC)
	for i := 0; i < 8; i++ {
		provider.seedSnapshot("us-east-1", "i-web1", base.Add(time.Duration(i)*24*time.Hour))
	}

	report, err := RunSnapshotPass(context.Background(), provider, dailyConfig("us-east-1"), testLogger(), Options{Now: evalTime})
	if err != nil {
		t.Fatalf("RunSnapshotPass() error: %v", err)
	}

	r := findInstanceReport(t, report, "i-web1")
	if provider.deleteCalls != 0 {
		t.Errorf("deleteCalls = %d, want 0 in dry run", provider.deleteCalls)
	}
	if len(r.DeletedLocal) != 0 {
		t.Errorf("DeletedLocal = %v, want empty", r.DeletedLocal)
	}
	if len(r.PlannedDelete) != 2 {
		t.Errorf("PlannedDelete = %v, want the 2 excess ids", r.PlannedDelete)
	}
	if r.CreatedSnapshotID == "" {
		t.Error("dry run must still create the due snapshot")
	}
}

func TestRunSnapshotPass_ConfigErrorSkipsInstance(t *testing.T) {
	provider := newFakeProvider()
	provider.addInstance(testInstance("i-bad", "us-east-1", map[string]string{
		"Shutter-HistorySize": "abc",
	}))
	provider.seedSnapshot("us-east-1", "i-bad", time.Date(2026, 8, 20, 3, 0, 0, 0, time.UTC))

	report, err := RunSnapshotPass(context.Background(), provider, dailyConfig("us-east-1"), testLogger(), Options{Now: evalTime})
	if err != nil {
		t.Fatalf("RunSnapshotPass() error: %v", err)
	}

	r := findInstanceReport(t, report, "i-bad")
	if r.Skipped != "configuration error" {
		t.Errorf("Skipped = %q, want configuration error", r.Skipped)
	}
	if !r.Failed() {
		t.Error("a configuration error must be reported, not silently defaulted")
	}
	if provider.createCalls != 0 || provider.deleteCalls != 0 || provider.copyCalls != 0 {
		t.Errorf("mutating calls issued for misconfigured instance: create=%d delete=%d copy=%d",
			provider.createCalls, provider.deleteCalls, provider.copyCalls)
	}
}

func TestRunSnapshotPass_OptOutAndNotDue(t *testing.T) {
	provider := newFakeProvider()
	provider.addInstance(testInstance("i-off", "us-east-1", map[string]string{
		"Shutter-Enable": "false",
	}))
	provider.addInstance(testInstance("i-later", "us-east-1", map[string]string{
		"Shutter-Hour": "22",
	}))

	report, err := RunSnapshotPass(context.Background(), provider, dailyConfig("us-east-1"), testLogger(), Options{Now: evalTime})
	if err != nil {
		t.Fatalf("RunSnapshotPass() error: %v", err)
	}

	if r := findInstanceReport(t, report, "i-off"); r.Skipped != "not managed" {
		t.Errorf("i-off Skipped = %q, want not managed", r.Skipped)
	}
	r := findInstanceReport(t, report, "i-later")
	if r.Skipped != "" || r.Decision.Due {
		t.Errorf("i-later should be evaluated and found not due, got skipped=%q due=%v", r.Skipped, r.Decision.Due)
	}
	if provider.createCalls != 0 {
		t.Errorf("createCalls = %d, want 0", provider.createCalls)
	}
}

func TestRunSnapshotPass_OffsiteReplication(t *testing.T) {
	provider := newFakeProvider()
	provider.addInstance(testInstance("i-web1", "us-east-1", map[string]string{
		"Shutter-OffsiteEnabled":     "yes",
		"Shutter-OffsiteRegion":      "eu-west-1",
		"Shutter-OffsiteHistorySize": "2",
		"Shutter-OffsiteEncrypt":     "yes",
		"Shutter-OffsiteKmsKeyId":    "1234abcd-12ab-34cd-56ef-1234567890ab",
	}))

	// Two remote copies already exist; the new copy makes three against an
	// offsite history of two.
	base := time.Date(2026, 8, 29, 3, 0, 0, 0, time.UTC)
	remoteOldest := provider.seedSnapshot("eu-west-1", "i-web1", base)
	provider.seedSnapshot("eu-west-1", "i-web1", base.Add(24*time.Hour))

	report, err := RunSnapshotPass(context.Background(), provider, dailyConfig("us-east-1"), testLogger(), Options{Now: evalTime})
	if err != nil {
		t.Fatalf("RunSnapshotPass() error: %v", err)
	}

	r := findInstanceReport(t, report, "i-web1")
	if r.Failed() {
		t.Fatalf("instance failed: %v", r.Errors)
	}
	if provider.copyCalls != 1 {
		t.Fatalf("copyCalls = %d, want 1", provider.copyCalls)
	}
	if provider.copyKMSKeys[0] != "1234abcd-12ab-34cd-56ef-1234567890ab" {
		t.Errorf("copy used kms key %q", provider.copyKMSKeys[0])
	}
	if r.CopiedSnapshotID == "" {
		t.Error("CopiedSnapshotID empty, want the remote copy id")
	}
	if len(r.DeletedOffsite) != 1 || r.DeletedOffsite[0] != remoteOldest.ID {
		t.Errorf("DeletedOffsite = %v, want [%s]", r.DeletedOffsite, remoteOldest.ID)
	}
	if remaining := len(provider.snapshots["eu-west-1"]); remaining != 2 {
		t.Errorf("%d remote snapshots remain, want 2", remaining)
	}

	// The copy records its local source snapshot.
	var copied *cloud.SnapshotRecord
	for i := range provider.snapshots["eu-west-1"] {
		if provider.snapshots["eu-west-1"][i].ID == r.CopiedSnapshotID {
			copied = &provider.snapshots["eu-west-1"][i]
		}
	}
	if copied == nil {
		t.Fatal("copied snapshot not found in destination region")
	}
	if copied.Tags[SourceSnapshotTag] != r.CreatedSnapshotID {
		t.Errorf("%s = %q, want %q", SourceSnapshotTag, copied.Tags[SourceSnapshotTag], r.CreatedSnapshotID)
	}
}

func TestRunSnapshotPass_OffsiteValidationLeavesLocalIntact(t *testing.T) {
	provider := newFakeProvider()
	provider.addInstance(testInstance("i-web1", "us-east-1", map[string]string{
		"Shutter-OffsiteEnabled": "yes",
		"Shutter-OffsiteRegion":  "eu-west-1",
		"Shutter-OffsiteEncrypt": "yes", // no key configured
	}))

	report, err := RunSnapshotPass(context.Background(), provider, dailyConfig("us-east-1"), testLogger(), Options{Now: evalTime})
	if err != nil {
		t.Fatalf("RunSnapshotPass() error: %v", err)
	}

	r := findInstanceReport(t, report, "i-web1")
	if r.CreatedSnapshotID == "" {
		t.Error("local snapshot must be created despite the offsite misconfiguration")
	}
	if provider.copyCalls != 0 {
		t.Errorf("copyCalls = %d, want 0", provider.copyCalls)
	}
	if !r.Failed() {
		t.Error("offsite validation failure must be reported")
	}
}

func TestRunSnapshotPass_InstanceFailureIsolation(t *testing.T) {
	provider := newFakeProvider()
	provider.addInstance(testInstance("i-broken", "us-east-1", nil))
	provider.addInstance(testInstance("i-healthy", "us-east-1", nil))
	provider.createErrFor = map[string]error{
		"vol-i-broken": fmt.Errorf("CreateSnapshot: rate exceeded"),
	}

	report, err := RunSnapshotPass(context.Background(), provider, dailyConfig("us-east-1"), testLogger(), Options{Now: evalTime, Parallelism: 4})
	if err != nil {
		t.Fatalf("RunSnapshotPass() error: %v", err)
	}

	if r := findInstanceReport(t, report, "i-broken"); !r.Failed() {
		t.Error("i-broken should report its creation failure")
	}
	if r := findInstanceReport(t, report, "i-healthy"); r.Failed() || r.CreatedSnapshotID == "" {
		t.Errorf("i-healthy must complete despite sibling failure: errors=%v created=%q", r.Errors, r.CreatedSnapshotID)
	}
}

func TestRunSnapshotPass_RegionDiscoveryFailure(t *testing.T) {
	provider := newFakeProvider()
	provider.addInstance(testInstance("i-web1", "us-east-1", nil))
	provider.listInstancesErr = map[string]error{
		"eu-central-1": fmt.Errorf("DescribeInstances: unauthorized"),
	}

	report, err := RunSnapshotPass(context.Background(), provider, dailyConfig("eu-central-1", "us-east-1"), testLogger(), Options{Now: evalTime})
	if err != nil {
		t.Fatalf("RunSnapshotPass() error: %v", err)
	}

	if len(report.Errors) != 1 || !strings.Contains(report.Errors[0], "eu-central-1") {
		t.Errorf("pass errors = %v, want one eu-central-1 discovery failure", report.Errors)
	}
	if r := findInstanceReport(t, report, "i-web1"); r.CreatedSnapshotID == "" {
		t.Error("healthy region must still be processed")
	}
}

func TestRunSnapshotPass_NoRegions(t *testing.T) {
	_, err := RunSnapshotPass(context.Background(), newFakeProvider(), PassConfig{}, testLogger(), Options{})
	if err == nil {
		t.Fatal("RunSnapshotPass() with no regions must fail")
	}
}

func TestRunSnapshotPass_RegionDefaultsOverride(t *testing.T) {
	provider := newFakeProvider()
	provider.addInstance(testInstance("i-web1", "us-east-1", nil))

	hour := 9
	cfg := dailyConfig("us-east-1")
	cfg.RegionDefaults = map[string]policy.Defaults{
		"us-east-1": {Hour: &hour},
	}

	// Global hour is 3; the region layer moves it to 9, so 03:10 is not due.
	report, err := RunSnapshotPass(context.Background(), provider, cfg, testLogger(), Options{Now: evalTime})
	if err != nil {
		t.Fatalf("RunSnapshotPass() error: %v", err)
	}

	if r := findInstanceReport(t, report, "i-web1"); r.Decision.Due {
		t.Errorf("region override ignored: %s", r.Decision.Reason)
	}
	if provider.createCalls != 0 {
		t.Errorf("createCalls = %d, want 0", provider.createCalls)
	}
}
