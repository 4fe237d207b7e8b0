package policy

import (
	"fmt"
	"strings"
	"time"
)

// Frequency selects the schedule cadence of a policy. It decides which of
// the day selectors (DayOfWeek / DayOfMonth) is meaningful.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// ParseFrequency converts a configuration string into a Frequency.
// Matching is case-insensitive.
func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily":
		return FrequencyDaily, nil
	case "weekly":
		return FrequencyWeekly, nil
	case "monthly":
		return FrequencyMonthly, nil
	default:
		return "", fmt.Errorf("invalid frequency '%s'; must be daily, weekly or monthly", s)
	}
}

// EffectivePolicy is the fully-merged, instance-specific snapshot policy
// after applying global defaults, region defaults and instance tag
// overrides.
//
// Exactly one of DayOfWeek / DayOfMonth is meaningful, selected by
// Frequency. HistorySize of 0 means unlimited: never prune.
type EffectivePolicy struct {
	Frequency          Frequency
	Hour               int          // 0-23
	DayOfWeek          time.Weekday // weekly only
	DayOfMonth         int          // monthly only, 1-28
	HistorySize        int          // 0 = unlimited
	DeleteOldSnapshots bool
	RootDevice         string
	Offsite            *OffsitePolicy
}

// OffsitePolicy configures cross-region replication of freshly created
// snapshots, with its own retention window in the destination region.
//
// KMSKeyID is required iff Encrypt is set. It must be a raw key identifier;
// key aliases are rejected by ValidateOffsite so that a copy never silently
// binds to whatever the alias happens to point at.
type OffsitePolicy struct {
	Enabled     bool
	Region      string
	Frequency   Frequency
	HistorySize int
	Encrypt     bool
	KMSKeyID    string
}

// ScheduleDecision is the output of evaluating a policy schedule against a
// point in time. It carries a human-readable reason for reporting.
type ScheduleDecision struct {
	Due    bool
	Reason string
}

// Defaults is one partial policy layer. Nil fields are inherited from the
// layer below; each layer only sets the fields it defines.
type Defaults struct {
	Frequency          *Frequency `json:"frequency"`
	Hour               *int       `json:"hour"`
	DayOfWeek          *int       `json:"dayofweek"`
	DayOfMonth         *int       `json:"dayofmonth"`
	HistorySize        *int       `json:"historysize"`
	DeleteOldSnapshots *bool      `json:"deleteoldsnapshots"`
	RootDevice         *string    `json:"rootdevice"`

	Offsite OffsiteDefaults `json:"offsite"`
}

// OffsiteDefaults is the offsite portion of a partial policy layer.
type OffsiteDefaults struct {
	Enabled     *bool      `json:"enabled"`
	Region      *string    `json:"region"`
	Frequency   *Frequency `json:"frequency"`
	HistorySize *int       `json:"historysize"`
	Encrypt     *bool      `json:"encrypt"`
	KMSKeyID    *string    `json:"kmskeyid"`
}

// merge applies the non-nil fields of layer on top of d.
func (d *Defaults) merge(layer Defaults) {
	if layer.Frequency != nil {
		d.Frequency = layer.Frequency
	}
	if layer.Hour != nil {
		d.Hour = layer.Hour
	}
	if layer.DayOfWeek != nil {
		d.DayOfWeek = layer.DayOfWeek
	}
	if layer.DayOfMonth != nil {
		d.DayOfMonth = layer.DayOfMonth
	}
	if layer.HistorySize != nil {
		d.HistorySize = layer.HistorySize
	}
	if layer.DeleteOldSnapshots != nil {
		d.DeleteOldSnapshots = layer.DeleteOldSnapshots
	}
	if layer.RootDevice != nil {
		d.RootDevice = layer.RootDevice
	}
	if layer.Offsite.Enabled != nil {
		d.Offsite.Enabled = layer.Offsite.Enabled
	}
	if layer.Offsite.Region != nil {
		d.Offsite.Region = layer.Offsite.Region
	}
	if layer.Offsite.Frequency != nil {
		d.Offsite.Frequency = layer.Offsite.Frequency
	}
	if layer.Offsite.HistorySize != nil {
		d.Offsite.HistorySize = layer.Offsite.HistorySize
	}
	if layer.Offsite.Encrypt != nil {
		d.Offsite.Encrypt = layer.Offsite.Encrypt
	}
	if layer.Offsite.KMSKeyID != nil {
		d.Offsite.KMSKeyID = layer.Offsite.KMSKeyID
	}
}
