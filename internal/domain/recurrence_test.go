package domain

import (
	"testing"
	"time"
)

func mustInterval(t *testing.T, start, end string) TimeInterval {
	t.Helper()
	s, err := time.Parse(time.RFC3339, start)
	if err != nil {
		t.Fatalf("parse start: %v", err)
	}
	e, err := time.Parse(time.RFC3339, end)
	if err != nil {
		t.Fatalf("parse end: %v", err)
	}
	return TimeInterval{Start: s, End: e}
}

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse time: %v", err)
	}
	return ts
}

func TestRecurrenceRuleValidate(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		rule    RecurrenceRule
		wantErr string
	}{
		{
			name: "valid daily",
			rule: RecurrenceRule{Pattern: RecurrencePatternDaily, Interval: 1, EndType: RecurrenceEndAfterCount, EndCount: 3},
		},
		{
			name:    "unknown pattern",
			rule:    RecurrenceRule{Pattern: "hourly", Interval: 1, EndType: RecurrenceEndNever},
			wantErr: "unsupported recurrence pattern",
		},
		{
			name:    "zero interval",
			rule:    RecurrenceRule{Pattern: RecurrencePatternDaily, Interval: 0, EndType: RecurrenceEndNever},
			wantErr: "interval must be at least 1",
		},
		{
			name:    "count end without count",
			rule:    RecurrenceRule{Pattern: RecurrencePatternWeekly, Interval: 1, EndType: RecurrenceEndAfterCount},
			wantErr: "end count must be at least 1",
		},
		{
			name:    "date end in the past",
			rule:    RecurrenceRule{Pattern: RecurrencePatternDaily, Interval: 1, EndType: RecurrenceEndOnDate, EndDate: now.AddDate(0, 0, -1)},
			wantErr: "end date must be in the future",
		},
		{
			name:    "unknown end type",
			rule:    RecurrenceRule{Pattern: RecurrencePatternDaily, Interval: 1, EndType: "whenever"},
			wantErr: "unsupported recurrence end type",
		},
		{
			name:    "invalid weekday",
			rule:    RecurrenceRule{Pattern: RecurrencePatternWeekly, Interval: 1, EndType: RecurrenceEndNever, DaysOfWeek: []time.Weekday{time.Weekday(9)}},
			wantErr: "invalid weekday",
		},
		{
			name:    "day of month out of range",
			rule:    RecurrenceRule{Pattern: RecurrencePatternMonthly, Interval: 1, EndType: RecurrenceEndNever, DayOfMonth: 32},
			wantErr: "invalid day of month",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.rule.Validate(now)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate error: %v", err)
				}
				return
			}
			if err == nil || err.Error() != tc.wantErr {
				t.Fatalf("Validate error = %v, want %q", err, tc.wantErr)
			}
		})
	}
}

func TestExpandRecurrenceDaily(t *testing.T) {
	now := mustTime(t, "2025-01-01T00:00:00Z")
	base := mustInterval(t, "2025-03-10T09:00:00Z", "2025-03-10T09:30:00Z")

	got, err := ExpandRecurrence(base, RecurrenceRule{
		Pattern:  RecurrencePatternDaily,
		Interval: 1,
		EndType:  RecurrenceEndAfterCount,
		EndCount: 5,
	}, now)
	if err != nil {
		t.Fatalf("ExpandRecurrence error: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("len = %d, want 5", len(got))
	}
	if !got[0].Start.Equal(base.Start) {
		t.Fatalf("first occurrence = %v, want base start %v", got[0].Start, base.Start)
	}
	for i := 1; i < len(got); i++ {
		if wantStart := got[i-1].Start.AddDate(0, 0, 1); !got[i].Start.Equal(wantStart) {
			t.Fatalf("occurrence %d start = %v, want %v", i, got[i].Start, wantStart)
		}
		if got[i].Duration() != 30*time.Minute {
			t.Fatalf("occurrence %d duration = %v, want 30m", i, got[i].Duration())
		}
	}
}

func TestExpandRecurrenceWeeklyWithDays(t *testing.T) {
	now := mustTime(t, "2025-01-01T00:00:00Z")
	// Monday anchor, expanding onto Mon/Wed/Fri.
	base := mustInterval(t, "2025-01-06T09:00:00Z", "2025-01-06T09:30:00Z")

	got, err := ExpandRecurrence(base, RecurrenceRule{
		Pattern:    RecurrencePatternWeekly,
		Interval:   1,
		EndType:    RecurrenceEndAfterCount,
		EndCount:   6,
		DaysOfWeek: []time.Weekday{time.Monday, time.Wednesday, time.Friday},
	}, now)
	if err != nil {
		t.Fatalf("ExpandRecurrence error: %v", err)
	}

	wantDays := []int{6, 8, 10, 13, 15, 17}
	if len(got) != len(wantDays) {
		t.Fatalf("len = %d, want %d", len(got), len(wantDays))
	}
	for i, day := range wantDays {
		want := time.Date(2025, 1, day, 9, 0, 0, 0, time.UTC)
		if !got[i].Start.Equal(want) {
			t.Fatalf("occurrence %d = %v, want %v", i, got[i].Start, want)
		}
	}
}

func TestExpandRecurrenceMonthlyClampsShortMonths(t *testing.T) {
	now := mustTime(t, "2025-01-01T00:00:00Z")
	base := mustInterval(t, "2025-01-31T10:00:00Z", "2025-01-31T10:30:00Z")

	got, err := ExpandRecurrence(base, RecurrenceRule{
		Pattern:  RecurrencePatternMonthly,
		Interval: 1,
		EndType:  RecurrenceEndAfterCount,
		EndCount: 4,
	}, now)
	if err != nil {
		t.Fatalf("ExpandRecurrence error: %v", err)
	}

	want := []time.Time{
		time.Date(2025, 1, 31, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 2, 28, 10, 0, 0, 0, time.UTC),
		// The anchor day survives the clamp: March has a 31st again.
		time.Date(2025, 3, 31, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 4, 30, 10, 0, 0, 0, time.UTC),
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Start.Equal(want[i]) {
			t.Fatalf("occurrence %d = %v, want %v", i, got[i].Start, want[i])
		}
	}
}

func TestExpandRecurrenceMonthlyExplicitDayOfMonth(t *testing.T) {
	now := mustTime(t, "2025-01-01T00:00:00Z")
	base := mustInterval(t, "2025-01-10T14:00:00Z", "2025-01-10T15:00:00Z")

	got, err := ExpandRecurrence(base, RecurrenceRule{
		Pattern:    RecurrencePatternMonthly,
		Interval:   1,
		EndType:    RecurrenceEndAfterCount,
		EndCount:   3,
		DayOfMonth: 15,
	}, now)
	if err != nil {
		t.Fatalf("ExpandRecurrence error: %v", err)
	}

	want := []time.Time{
		time.Date(2025, 1, 10, 14, 0, 0, 0, time.UTC),
		time.Date(2025, 2, 15, 14, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 15, 14, 0, 0, 0, time.UTC),
	}
	for i := range want {
		if !got[i].Start.Equal(want[i]) {
			t.Fatalf("occurrence %d = %v, want %v", i, got[i].Start, want[i])
		}
	}
}

func TestExpandRecurrenceYearlyLeapDay(t *testing.T) {
	now := mustTime(t, "2024-01-01T00:00:00Z")
	base := mustInterval(t, "2024-02-29T08:00:00Z", "2024-02-29T08:30:00Z")

	got, err := ExpandRecurrence(base, RecurrenceRule{
		Pattern:  RecurrencePatternYearly,
		Interval: 1,
		EndType:  RecurrenceEndAfterCount,
		EndCount: 5,
	}, now)
	if err != nil {
		t.Fatalf("ExpandRecurrence error: %v", err)
	}

	want := []time.Time{
		time.Date(2024, 2, 29, 8, 0, 0, 0, time.UTC),
		time.Date(2025, 2, 28, 8, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 28, 8, 0, 0, 0, time.UTC),
		time.Date(2027, 2, 28, 8, 0, 0, 0, time.UTC),
		// Leap year again, so the anchor day comes back.
		time.Date(2028, 2, 29, 8, 0, 0, 0, time.UTC),
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Start.Equal(want[i]) {
			t.Fatalf("occurrence %d = %v, want %v", i, got[i].Start, want[i])
		}
	}
}

func TestExpandRecurrenceQuarterly(t *testing.T) {
	now := mustTime(t, "2025-01-01T00:00:00Z")
	base := mustInterval(t, "2025-01-31T11:00:00Z", "2025-01-31T11:30:00Z")

	got, err := ExpandRecurrence(base, RecurrenceRule{
		Pattern:  RecurrencePatternQuarterly,
		Interval: 1,
		EndType:  RecurrenceEndAfterCount,
		EndCount: 4,
	}, now)
	if err != nil {
		t.Fatalf("ExpandRecurrence error: %v", err)
	}

	want := []time.Time{
		time.Date(2025, 1, 31, 11, 0, 0, 0, time.UTC),
		time.Date(2025, 4, 30, 11, 0, 0, 0, time.UTC),
		time.Date(2025, 7, 31, 11, 0, 0, 0, time.UTC),
		time.Date(2025, 10, 31, 11, 0, 0, 0, time.UTC),
	}
	for i := range want {
		if !got[i].Start.Equal(want[i]) {
			t.Fatalf("occurrence %d = %v, want %v", i, got[i].Start, want[i])
		}
	}
}

func TestExpandRecurrenceBiweekly(t *testing.T) {
	now := mustTime(t, "2025-01-01T00:00:00Z")
	base := mustInterval(t, "2025-02-03T09:00:00Z", "2025-02-03T09:45:00Z")

	got, err := ExpandRecurrence(base, RecurrenceRule{
		Pattern:  RecurrencePatternBiweekly,
		Interval: 1,
		EndType:  RecurrenceEndAfterCount,
		EndCount: 3,
	}, now)
	if err != nil {
		t.Fatalf("ExpandRecurrence error: %v", err)
	}

	for i := 1; i < len(got); i++ {
		if wantStart := got[i-1].Start.AddDate(0, 0, 14); !got[i].Start.Equal(wantStart) {
			t.Fatalf("occurrence %d start = %v, want %v", i, got[i].Start, wantStart)
		}
	}
}

func TestExpandRecurrenceEndOnDate(t *testing.T) {
	now := mustTime(t, "2025-01-01T00:00:00Z")
	base := mustInterval(t, "2025-05-01T09:00:00Z", "2025-05-01T09:30:00Z")

	got, err := ExpandRecurrence(base, RecurrenceRule{
		Pattern:  RecurrencePatternDaily,
		Interval: 1,
		EndType:  RecurrenceEndOnDate,
		EndDate:  mustTime(t, "2025-05-04T00:00:00Z"),
	}, now)
	if err != nil {
		t.Fatalf("ExpandRecurrence error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	last := got[len(got)-1].Start
	if want := mustTime(t, "2025-05-03T09:00:00Z"); !last.Equal(want) {
		t.Fatalf("last occurrence = %v, want %v", last, want)
	}
}

func TestExpandRecurrenceNeverCapped(t *testing.T) {
	now := mustTime(t, "2025-01-01T00:00:00Z")
	base := mustInterval(t, "2025-02-03T09:00:00Z", "2025-02-03T09:30:00Z")

	got, err := ExpandRecurrence(base, RecurrenceRule{
		Pattern:  RecurrencePatternDaily,
		Interval: 1,
		EndType:  RecurrenceEndNever,
	}, now)
	if err != nil {
		t.Fatalf("ExpandRecurrence error: %v", err)
	}
	if len(got) != MaxOccurrences {
		t.Fatalf("len = %d, want cap %d", len(got), MaxOccurrences)
	}
}

func TestExpandRecurrenceInvalidBase(t *testing.T) {
	now := mustTime(t, "2025-01-01T00:00:00Z")
	base := TimeInterval{
		Start: mustTime(t, "2025-05-01T10:00:00Z"),
		End:   mustTime(t, "2025-05-01T09:00:00Z"),
	}

	_, err := ExpandRecurrence(base, RecurrenceRule{
		Pattern:  RecurrencePatternDaily,
		Interval: 1,
		EndType:  RecurrenceEndNever,
	}, now)
	if err == nil {
		t.Fatal("expected error for inverted base interval")
	}
}
