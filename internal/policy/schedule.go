package policy

import (
	"fmt"
	"time"
)

// IsDue decides whether a snapshot is due for the policy at the given time.
//
// The function is pure: the same (policy, now) pair always yields the same
// decision. Evaluation is at run granularity; the caller is expected to run
// at least once per hour. Running less often can skip a day, which is
// accepted drift, not a fault.
func IsDue(p EffectivePolicy, now time.Time) ScheduleDecision {
	switch p.Frequency {
	case FrequencyDaily:
		if now.Hour() != p.Hour {
			return notDue("current hour %d does not match scheduled hour %d", now.Hour(), p.Hour)
		}
		return due("daily schedule matched at hour %d", p.Hour)

	case FrequencyWeekly:
		if now.Weekday() != p.DayOfWeek {
			return notDue("current weekday %s does not match scheduled %s", now.Weekday(), p.DayOfWeek)
		}
		if now.Hour() != p.Hour {
			return notDue("current hour %d does not match scheduled hour %d", now.Hour(), p.Hour)
		}
		return due("weekly schedule matched on %s at hour %d", p.DayOfWeek, p.Hour)

	case FrequencyMonthly:
		// DayOfMonth never exceeds 28, so every month has the target day.
		if now.Day() != p.DayOfMonth {
			return notDue("current day %d does not match scheduled day %d", now.Day(), p.DayOfMonth)
		}
		if now.Hour() != p.Hour {
			return notDue("current hour %d does not match scheduled hour %d", now.Hour(), p.Hour)
		}
		return due("monthly schedule matched on day %d at hour %d", p.DayOfMonth, p.Hour)

	default:
		return notDue("unknown frequency '%s'", p.Frequency)
	}
}

func due(format string, args ...any) ScheduleDecision {
	return ScheduleDecision{Due: true, Reason: fmt.Sprintf(format, args...)}
}

func notDue(format string, args ...any) ScheduleDecision {
	return ScheduleDecision{Due: false, Reason: fmt.Sprintf(format, args...)}
}
