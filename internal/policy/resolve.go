package policy

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/aravindh-murugesan/aws-shutter-go/internal/cloud"
	"github.com/go-viper/mapstructure/v2"
)

// Instance tag naming convention. These names are the externally visible
// contract with operators and must not change.
const (
	// TagPrefix namespaces every policy override tag.
	TagPrefix = "Shutter-"

	// EnableTag opts an instance into management. Only instances carrying
	// it with a value of true/yes (case-insensitive) are touched at all.
	EnableTag = "Shutter-Enable"
)

// tagOverrides is the typed override table for Shutter-* instance tags.
// Tag field names are matched case-insensitively against the json tags;
// offsite fields are namespaced as Shutter-Offsite<Field>.
type tagOverrides struct {
	Frequency          *Frequency `json:"frequency"`
	Hour               *int       `json:"hour"`
	DayOfWeek          *int       `json:"dayofweek"`
	DayOfMonth         *int       `json:"dayofmonth"`
	HistorySize        *int       `json:"historysize"`
	DeleteOldSnapshots *bool      `json:"deleteoldsnapshots"`
	RootDevice         *string    `json:"rootdevice"`
	OffsiteEnabled     *bool      `json:"offsiteenabled"`
	OffsiteRegion      *string    `json:"offsiteregion"`
	OffsiteFrequency   *Frequency `json:"offsitefrequency"`
	OffsiteHistorySize *int       `json:"offsitehistorysize"`
	OffsiteEncrypt     *bool      `json:"offsiteencrypt"`
	OffsiteKMSKeyID    *string    `json:"offsitekmskeyid"`
}

// knownOverrideFields is the set of recognized tag field names (lowercase,
// prefix stripped). Anything else under the Shutter- prefix is rejected
// rather than ignored, so a misspelled override can never silently revert
// to defaults.
var knownOverrideFields = map[string]struct{}{
	"frequency":          {},
	"hour":               {},
	"dayofweek":          {},
	"dayofmonth":         {},
	"historysize":        {},
	"deleteoldsnapshots": {},
	"rootdevice":         {},
	"offsiteenabled":     {},
	"offsiteregion":      {},
	"offsitefrequency":   {},
	"offsitehistorysize": {},
	"offsiteencrypt":     {},
	"offsitekmskeyid":    {},
}

// Resolve merges global defaults, optional region defaults and per-instance
// tag overrides into one EffectivePolicy, highest precedence last.
//
// It returns ErrNotManaged when the instance carries no affirmative enable
// tag, and a *ConfigError when an override is unparseable or the merged
// policy is incomplete. In both error cases the caller skips the instance.
func Resolve(global Defaults, region *Defaults, inst cloud.InstanceDescriptor) (EffectivePolicy, error) {
	if !isManaged(inst.Tags) {
		return EffectivePolicy{}, ErrNotManaged
	}

	merged := Defaults{}
	merged.merge(global)
	if region != nil {
		merged.merge(*region)
	}

	overrides, err := decodeTagOverrides(inst.Tags)
	if err != nil {
		return EffectivePolicy{}, err
	}
	merged.merge(overrides.layer())

	return finalize(merged)
}

// isManaged reports whether the instance opted in via the enable tag.
// Any value other than true/yes (case-insensitive) means unmanaged; that is
// how an operator disables an instance without removing its overrides.
func isManaged(tags map[string]string) bool {
	for k, v := range tags {
		if !strings.EqualFold(k, EnableTag) {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes":
			return true
		}
		return false
	}
	return false
}

// decodeTagOverrides parses every Shutter-* tag into the typed override
// table. Tags are decoded one at a time so that a failure names the exact
// tag and value the operator set.
func decodeTagOverrides(tags map[string]string) (*tagOverrides, error) {
	var result tagOverrides

	for k, v := range tags {
		if len(k) < len(TagPrefix) || !strings.EqualFold(k[:len(TagPrefix)], TagPrefix) {
			continue
		}
		field := strings.ToLower(k[len(TagPrefix):])
		if field == "enable" {
			continue // handled by isManaged
		}
		if _, ok := knownOverrideFields[field]; !ok {
			return nil, &ConfigError{Tag: k, Value: v, Reason: "unrecognized policy override"}
		}
		if err := decodeOverrideField(field, v, &result); err != nil {
			return nil, &ConfigError{Tag: k, Value: v, Reason: err.Error()}
		}
	}

	return &result, nil
}

// DecodeHook composes the hooks needed to decode configuration strings
// into policy types: the Frequency enum and the true/yes boolean contract.
// Shared with the file-config loader so tags and config files accept the
// same spellings.
func DecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		stringToFrequencyHook,
		stringToBoolHook,
	)
}

// decodeOverrideField decodes a single tag value into the override table
// using weak typing so strings become ints/bools/enums.
func decodeOverrideField(field, value string, result *tagOverrides) error {
	config := &mapstructure.DecoderConfig{
		Result:           result,
		WeaklyTypedInput: true,
		TagName:          "json",
		DecodeHook:       DecodeHook(),
	}

	decoder, err := mapstructure.NewDecoder(config)
	if err != nil {
		return err
	}

	return decoder.Decode(map[string]string{field: value})
}

// stringToFrequencyHook converts configuration strings into the Frequency
// enum, rejecting anything but daily/weekly/monthly.
func stringToFrequencyHook(f reflect.Type, t reflect.Type, data any) (any, error) {
	if f.Kind() != reflect.String || t != reflect.TypeOf(Frequency("")) {
		return data, nil
	}
	return ParseFrequency(data.(string))
}

// stringToBoolHook accepts true/yes and false/no, case-insensitively.
// strconv's ParseBool is too narrow for the documented tag contract.
func stringToBoolHook(f reflect.Type, t reflect.Type, data any) (any, error) {
	if f.Kind() != reflect.String || t.Kind() != reflect.Bool {
		return data, nil
	}
	switch strings.ToLower(strings.TrimSpace(data.(string))) {
	case "true", "yes":
		return true, nil
	case "false", "no":
		return false, nil
	default:
		return nil, fmt.Errorf("invalid boolean '%s'; must be true/yes or false/no", data.(string))
	}
}

// layer converts the flat tag override table into a Defaults layer.
func (o *tagOverrides) layer() Defaults {
	return Defaults{
		Frequency:          o.Frequency,
		Hour:               o.Hour,
		DayOfWeek:          o.DayOfWeek,
		DayOfMonth:         o.DayOfMonth,
		HistorySize:        o.HistorySize,
		DeleteOldSnapshots: o.DeleteOldSnapshots,
		RootDevice:         o.RootDevice,
		Offsite: OffsiteDefaults{
			Enabled:     o.OffsiteEnabled,
			Region:      o.OffsiteRegion,
			Frequency:   o.OffsiteFrequency,
			HistorySize: o.OffsiteHistorySize,
			Encrypt:     o.OffsiteEncrypt,
			KMSKeyID:    o.OffsiteKMSKeyID,
		},
	}
}

// finalize checks that every required field was set by at least one layer,
// validates ranges and produces the immutable EffectivePolicy.
//
// DayOfMonth is clamped to 28 so every month has the configured day; the
// 29th-31st are intentionally unreachable. This mirrors what the tag
// documentation tells operators and must be preserved.
func finalize(d Defaults) (EffectivePolicy, error) {
	if d.Frequency == nil {
		return EffectivePolicy{}, &ConfigError{Tag: "frequency", Reason: "not set by any configuration layer"}
	}
	if d.Hour == nil {
		return EffectivePolicy{}, &ConfigError{Tag: "hour", Reason: "not set by any configuration layer"}
	}
	if *d.Hour < 0 || *d.Hour > 23 {
		return EffectivePolicy{}, &ConfigError{Tag: "hour", Value: fmt.Sprint(*d.Hour), Reason: "must be between 0 and 23"}
	}
	if d.HistorySize == nil {
		return EffectivePolicy{}, &ConfigError{Tag: "historysize", Reason: "not set by any configuration layer"}
	}
	if *d.HistorySize < 0 {
		return EffectivePolicy{}, &ConfigError{Tag: "historysize", Value: fmt.Sprint(*d.HistorySize), Reason: "must not be negative"}
	}

	p := EffectivePolicy{
		Frequency:   *d.Frequency,
		Hour:        *d.Hour,
		HistorySize: *d.HistorySize,
	}

	switch p.Frequency {
	case FrequencyWeekly:
		if d.DayOfWeek == nil {
			return EffectivePolicy{}, &ConfigError{Tag: "dayofweek", Reason: "required for weekly frequency"}
		}
		if *d.DayOfWeek < 0 || *d.DayOfWeek > 6 {
			return EffectivePolicy{}, &ConfigError{Tag: "dayofweek", Value: fmt.Sprint(*d.DayOfWeek), Reason: "must be between 0 (Sunday) and 6 (Saturday)"}
		}
		p.DayOfWeek = time.Weekday(*d.DayOfWeek)
	case FrequencyMonthly:
		if d.DayOfMonth == nil {
			return EffectivePolicy{}, &ConfigError{Tag: "dayofmonth", Reason: "required for monthly frequency"}
		}
		day := *d.DayOfMonth
		if day < 1 {
			day = 1
		}
		if day > 28 {
			day = 28
		}
		p.DayOfMonth = day
	}

	if d.DeleteOldSnapshots != nil {
		p.DeleteOldSnapshots = *d.DeleteOldSnapshots
	}
	if d.RootDevice != nil {
		p.RootDevice = *d.RootDevice
	}

	if d.Offsite.Enabled != nil && *d.Offsite.Enabled {
		off := &OffsitePolicy{
			Enabled:     true,
			Frequency:   p.Frequency,
			HistorySize: p.HistorySize,
		}
		if d.Offsite.Region != nil {
			off.Region = *d.Offsite.Region
		}
		if d.Offsite.Frequency != nil {
			off.Frequency = *d.Offsite.Frequency
		}
		if d.Offsite.HistorySize != nil {
			off.HistorySize = *d.Offsite.HistorySize
		}
		if d.Offsite.Encrypt != nil {
			off.Encrypt = *d.Offsite.Encrypt
		}
		if d.Offsite.KMSKeyID != nil {
			off.KMSKeyID = *d.Offsite.KMSKeyID
		}
		p.Offsite = off
	}

	return p, nil
}
