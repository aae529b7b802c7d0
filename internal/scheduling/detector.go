package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mediplan/backend/internal/domain"
	"mediplan/backend/internal/store"
)

// Policy holds the fixed scheduling rules conflict detection checks against.
// It is loaded once at process start and shared by reference; per-doctor
// availability records are outside this subsystem.
type Policy struct {
	WorkingHoursStart  int // hour of day, inclusive
	WorkingHoursEnd    int // hour of day, appointments must end by it
	LunchStart         int
	LunchEnd           int
	MaxDuration        time.Duration
	SuggestionStep     time.Duration
	MaxSuggestions     int
	CandidateMultiple  int
	SuggestionMaxScore float64
}

func DefaultPolicy() Policy {
	return Policy{
		WorkingHoursStart:  8,
		WorkingHoursEnd:    18,
		LunchStart:         12,
		LunchEnd:           13,
		MaxDuration:        8 * time.Hour,
		SuggestionStep:     30 * time.Minute,
		MaxSuggestions:     5,
		CandidateMultiple:  3,
		SuggestionMaxScore: 100,
	}
}

type DetectOptions struct {
	// PatientID enables the double-booking check when non-nil.
	PatientID uuid.UUID
	// ExcludeAppointmentID removes that appointment from overlap checks,
	// used when re-validating an appointment against itself.
	ExcludeAppointmentID uuid.UUID
}

// Detector evaluates a proposed interval against a snapshot of Scheduled
// appointments and the fixed policy. It never mutates state and never
// short-circuits: all checks run and every conflict is returned.
type Detector struct {
	store  store.ScheduleReader
	policy Policy
	now    func() time.Time
}

func NewDetector(s store.ScheduleReader, policy Policy) *Detector {
	return &Detector{store: s, policy: policy, now: func() time.Time { return time.Now().UTC() }}
}

func (d *Detector) Detect(ctx context.Context, doctorID uuid.UUID, interval domain.TimeInterval, opts DetectOptions) ([]domain.Conflict, error) {
	return d.DetectIn(ctx, d.store, doctorID, interval, opts)
}

// DetectIn runs detection against an explicit snapshot, typically the
// transaction a booking commit holds, so the race guard sees writes made
// since the original check.
func (d *Detector) DetectIn(ctx context.Context, snap store.ScheduleReader, doctorID uuid.UUID, interval domain.TimeInterval, opts DetectOptions) ([]domain.Conflict, error) {
	conflicts := make([]domain.Conflict, 0, 4)

	overlapping, err := snap.QueryOverlapping(ctx, doctorID, interval, opts.ExcludeAppointmentID)
	if err != nil {
		return nil, err
	}
	for _, a := range overlapping {
		conflicts = append(conflicts, domain.Conflict{
			Type:                   domain.ConflictTypeTimeOverlap,
			Severity:               domain.SeverityHigh,
			Message:                fmt.Sprintf("time overlaps with existing appointment %s", a.ID),
			ConflictingAppointment: conflictRef(a),
		})
	}

	conflicts = append(conflicts, d.availabilityConflicts(interval)...)

	if opts.PatientID != uuid.Nil {
		patientAppts, err := snap.QueryByPatient(ctx, opts.PatientID, interval, opts.ExcludeAppointmentID)
		if err != nil {
			return nil, err
		}
		for _, a := range patientAppts {
			conflicts = append(conflicts, domain.Conflict{
				Type:                   domain.ConflictTypePatientDoubleBooking,
				Severity:               domain.SeverityHigh,
				Message:                fmt.Sprintf("patient has overlapping appointment %s", a.ID),
				ConflictingAppointment: conflictRef(a),
			})
		}
	}

	conflicts = append(conflicts, d.ruleConflicts(interval)...)

	return conflicts, nil
}

func (d *Detector) availabilityConflicts(interval domain.TimeInterval) []domain.Conflict {
	var out []domain.Conflict

	if !d.withinWorkingHours(interval) {
		out = append(out, domain.Conflict{
			Type:     domain.ConflictTypeDoctorUnavailable,
			Severity: domain.SeverityMedium,
			Message: fmt.Sprintf("appointment time is outside working hours (%02d:00-%02d:00)",
				d.policy.WorkingHoursStart, d.policy.WorkingHoursEnd),
		})
	}
	if d.duringLunch(interval) {
		out = append(out, domain.Conflict{
			Type:     domain.ConflictTypeDoctorUnavailable,
			Severity: domain.SeverityMedium,
			Message: fmt.Sprintf("appointment time conflicts with lunch break (%02d:00-%02d:00)",
				d.policy.LunchStart, d.policy.LunchEnd),
		})
	}

	return out
}

func (d *Detector) ruleConflicts(interval domain.TimeInterval) []domain.Conflict {
	var out []domain.Conflict

	if interval.Duration() > d.policy.MaxDuration {
		out = append(out, domain.Conflict{
			Type:     domain.ConflictTypeRuleViolation,
			Severity: domain.SeverityMedium,
			Message:  fmt.Sprintf("appointment duration exceeds maximum of %s", d.policy.MaxDuration),
		})
	}
	if interval.Start.Before(d.now()) {
		out = append(out, domain.Conflict{
			Type:     domain.ConflictTypeRuleViolation,
			Severity: domain.SeverityHigh,
			Message:  "cannot schedule appointments in the past",
		})
	}

	return out
}

func (d *Detector) withinWorkingHours(interval domain.TimeInterval) bool {
	startMin, endMin := minutesOfDay(interval)
	return startMin >= d.policy.WorkingHoursStart*60 && endMin <= d.policy.WorkingHoursEnd*60
}

func (d *Detector) duringLunch(interval domain.TimeInterval) bool {
	startMin, endMin := minutesOfDay(interval)
	// Half-open on both sides: ending at lunch start or starting at lunch
	// end is fine.
	return startMin < d.policy.LunchEnd*60 && endMin > d.policy.LunchStart*60
}

// minutesOfDay projects the interval onto the start day's clock. An end on a
// later day keeps accumulating, so a slot crossing midnight always falls
// outside working hours.
func minutesOfDay(interval domain.TimeInterval) (startMin, endMin int) {
	startMin = interval.Start.Hour()*60 + interval.Start.Minute()
	endMin = startMin + int(interval.Duration()/time.Minute)
	return startMin, endMin
}

func conflictRef(a domain.Appointment) *domain.ConflictRef {
	return &domain.ConflictRef{
		ID:        a.ID,
		DoctorID:  a.DoctorID,
		PatientID: a.PatientID,
		StartTime: a.StartTime,
		EndTime:   a.EndTime,
	}
}
