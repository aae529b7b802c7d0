package domain

import (
	"time"

	"github.com/google/uuid"
)

type ConflictType string

const (
	ConflictTypeTimeOverlap          ConflictType = "time_overlap"
	ConflictTypeDoctorUnavailable    ConflictType = "doctor_unavailable"
	ConflictTypePatientDoubleBooking ConflictType = "patient_double_booking"
	ConflictTypeRuleViolation        ConflictType = "rule_violation"
)

type ConflictSeverity string

const (
	SeverityLow      ConflictSeverity = "low"
	SeverityMedium   ConflictSeverity = "medium"
	SeverityHigh     ConflictSeverity = "high"
	SeverityCritical ConflictSeverity = "critical"
)

func (s ConflictSeverity) rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// ConflictRef identifies the already-booked appointment a conflict points at.
type ConflictRef struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	StartTime time.Time
	EndTime   time.Time
}

// Conflict is a structured reason a proposed interval cannot be booked as-is.
// Conflicts are ordinary return values, never errors: they are an expected
// outcome the caller resolves by picking another time or joining a waitlist.
type Conflict struct {
	Type                   ConflictType
	Severity               ConflictSeverity
	Message                string
	ConflictingAppointment *ConflictRef
}

// MaxSeverity returns the highest severity present, or SeverityLow for an
// empty set.
func MaxSeverity(conflicts []Conflict) ConflictSeverity {
	out := SeverityLow
	for _, c := range conflicts {
		if c.Severity.rank() > out.rank() {
			out = c.Severity
		}
	}
	return out
}

type ResolutionStrategy string

const (
	StrategyReject             ResolutionStrategy = "reject"
	StrategySuggestAlternative ResolutionStrategy = "suggest_alternative"
	StrategyAutoResolve        ResolutionStrategy = "auto_resolve"
	StrategyManualReview       ResolutionStrategy = "manual_review"
	StrategyWaitlist           ResolutionStrategy = "waitlist"
)

type ConflictAnalysis struct {
	Severity   ConflictSeverity
	Resolvable bool
}

type SuggestionKind string

const (
	SuggestionAlternativeTime SuggestionKind = "alternative_time"
	SuggestionJoinWaitlist    SuggestionKind = "waitlist"
)

// Suggestion is a scored candidate slot. Waitlist suggestions carry no
// interval.
type Suggestion struct {
	Kind     SuggestionKind
	Interval TimeInterval
	Score    float64
	Reason   string
}

type ResolutionOutcome struct {
	Resolved    bool
	Strategy    ResolutionStrategy
	Conflicts   []Conflict
	Suggestions []Suggestion
	Message     string
}
