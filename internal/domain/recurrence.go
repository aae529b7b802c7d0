package domain

import (
	"errors"
	"time"
)

type RecurrencePattern string

const (
	RecurrencePatternDaily     RecurrencePattern = "daily"
	RecurrencePatternWeekly    RecurrencePattern = "weekly"
	RecurrencePatternBiweekly  RecurrencePattern = "biweekly"
	RecurrencePatternMonthly   RecurrencePattern = "monthly"
	RecurrencePatternQuarterly RecurrencePattern = "quarterly"
	RecurrencePatternYearly    RecurrencePattern = "yearly"
)

type RecurrenceEndType string

const (
	RecurrenceEndNever      RecurrenceEndType = "never"
	RecurrenceEndAfterCount RecurrenceEndType = "after_count"
	RecurrenceEndOnDate     RecurrenceEndType = "on_date"
)

// MaxOccurrences caps expansion even for open-ended rules.
const MaxOccurrences = 1000

// RecurrenceRule describes how a base interval repeats. It is an immutable
// value created per recurring-booking request.
type RecurrenceRule struct {
	Pattern    RecurrencePattern
	Interval   int
	EndType    RecurrenceEndType
	EndCount   int
	EndDate    time.Time
	DaysOfWeek []time.Weekday
	DayOfMonth int
}

func (r RecurrenceRule) Validate(now time.Time) error {
	switch r.Pattern {
	case RecurrencePatternDaily, RecurrencePatternWeekly, RecurrencePatternBiweekly,
		RecurrencePatternMonthly, RecurrencePatternQuarterly, RecurrencePatternYearly:
	default:
		return errors.New("unsupported recurrence pattern")
	}
	if r.Interval < 1 {
		return errors.New("interval must be at least 1")
	}
	switch r.EndType {
	case RecurrenceEndNever:
	case RecurrenceEndAfterCount:
		if r.EndCount < 1 {
			return errors.New("end count must be at least 1")
		}
	case RecurrenceEndOnDate:
		if r.EndDate.IsZero() || !r.EndDate.After(now) {
			return errors.New("end date must be in the future")
		}
	default:
		return errors.New("unsupported recurrence end type")
	}
	for _, wd := range r.DaysOfWeek {
		if wd < time.Sunday || wd > time.Saturday {
			return errors.New("invalid weekday")
		}
	}
	if r.DayOfMonth != 0 && (r.DayOfMonth < 1 || r.DayOfMonth > 31) {
		return errors.New("invalid day of month")
	}
	return nil
}

// ExpandRecurrence expands the rule into concrete intervals, preserving the
// base interval's time-of-day and duration. The first occurrence is the base
// interval itself. The expansion is pure and restartable.
func ExpandRecurrence(base TimeInterval, rule RecurrenceRule, now time.Time) ([]TimeInterval, error) {
	if err := rule.Validate(now); err != nil {
		return nil, err
	}
	if !base.Start.Before(base.End) {
		return nil, errors.New("interval start must be before end")
	}

	duration := base.Duration()
	anchorDay := base.Start.Day()
	current := base.Start

	out := make([]TimeInterval, 0, 8)
	for {
		if rule.EndType == RecurrenceEndAfterCount && len(out) >= rule.EndCount {
			break
		}
		if rule.EndType == RecurrenceEndOnDate && !current.Before(rule.EndDate) {
			break
		}
		if len(out) >= MaxOccurrences {
			break
		}

		out = append(out, TimeInterval{Start: current, End: current.Add(duration)})

		next, ok := nextOccurrence(current, rule, anchorDay)
		if !ok {
			break
		}
		current = next
	}

	return out, nil
}

func nextOccurrence(current time.Time, rule RecurrenceRule, anchorDay int) (time.Time, bool) {
	switch rule.Pattern {
	case RecurrencePatternDaily:
		return current.AddDate(0, 0, rule.Interval), true

	case RecurrencePatternWeekly:
		if len(rule.DaysOfWeek) == 0 {
			return current.AddDate(0, 0, 7*rule.Interval), true
		}
		// Walk forward a day at a time until a matching weekday, bounded to
		// one full interval of weeks.
		next := current
		for i := 0; i < 7*rule.Interval; i++ {
			next = next.AddDate(0, 0, 1)
			if weekdayIn(next.Weekday(), rule.DaysOfWeek) {
				return next, true
			}
		}
		return time.Time{}, false

	case RecurrencePatternBiweekly:
		return current.AddDate(0, 0, 14*rule.Interval), true

	case RecurrencePatternMonthly:
		return addMonthsClamped(current, rule.Interval, monthlyDay(rule, anchorDay)), true

	case RecurrencePatternQuarterly:
		return addMonthsClamped(current, 3*rule.Interval, monthlyDay(rule, anchorDay)), true

	case RecurrencePatternYearly:
		year := current.Year() + rule.Interval
		day := clampDay(anchorDay, year, current.Month())
		return time.Date(year, current.Month(), day,
			current.Hour(), current.Minute(), current.Second(), current.Nanosecond(),
			current.Location()), true
	}

	return time.Time{}, false
}

func monthlyDay(rule RecurrenceRule, anchorDay int) int {
	if rule.DayOfMonth != 0 {
		return rule.DayOfMonth
	}
	return anchorDay
}

// addMonthsClamped advances to the target month and sets the day, clamping a
// day absent from that month to its last valid day.
func addMonthsClamped(current time.Time, months, day int) time.Time {
	first := time.Date(current.Year(), current.Month(), 1,
		current.Hour(), current.Minute(), current.Second(), current.Nanosecond(),
		current.Location())
	target := first.AddDate(0, months, 0)
	return time.Date(target.Year(), target.Month(), clampDay(day, target.Year(), target.Month()),
		current.Hour(), current.Minute(), current.Second(), current.Nanosecond(),
		current.Location())
}

func clampDay(day int, year int, month time.Month) int {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		return last
	}
	return day
}

func weekdayIn(wd time.Weekday, set []time.Weekday) bool {
	for _, d := range set {
		if d == wd {
			return true
		}
	}
	return false
}
