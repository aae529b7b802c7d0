package scheduling

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mediplan/backend/internal/domain"
	"mediplan/backend/internal/notify"
	"mediplan/backend/internal/store"
)

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

// Service is the scheduling-conflict engine's operation surface. It accepts
// and returns plain values; conflicts come back as values, never as errors.
type Service struct {
	appts    store.AppointmentStore
	detector *Detector
	resolver *Resolver
	matcher  *Matcher
	policy   Policy
	now      func() time.Time
}

func NewService(appts store.AppointmentStore, waitlist store.WaitlistRepository, notifier notify.Notifier, policy Policy, log *slog.Logger) *Service {
	detector := NewDetector(appts, policy)
	return &Service{
		appts:    appts,
		detector: detector,
		resolver: NewResolver(detector, policy),
		matcher:  NewMatcher(waitlist, appts, detector, notifier, log),
		policy:   policy,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) DetectConflicts(ctx context.Context, doctorID uuid.UUID, interval domain.TimeInterval, opts DetectOptions) ([]domain.Conflict, error) {
	if err := validateProposal(doctorID, interval); err != nil {
		return nil, err
	}
	return s.detector.Detect(ctx, doctorID, interval.UTC(), opts)
}

func (s *Service) ResolveConflicts(ctx context.Context, conflicts []domain.Conflict, doctorID, patientID uuid.UUID, preferred domain.TimeInterval) (domain.ResolutionOutcome, error) {
	if err := validateProposal(doctorID, preferred); err != nil {
		return domain.ResolutionOutcome{}, err
	}
	return s.resolver.Resolve(ctx, conflicts, doctorID, patientID, preferred.UTC())
}

func (s *Service) SuggestAlternativeTimes(ctx context.Context, doctorID uuid.UUID, preferred domain.TimeInterval, maxSuggestions int) ([]domain.Suggestion, error) {
	if err := validateProposal(doctorID, preferred); err != nil {
		return nil, err
	}
	return s.resolver.SuggestAlternativeTimes(ctx, doctorID, preferred.UTC(), maxSuggestions)
}

type BookInput struct {
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	Interval  domain.TimeInterval
	Notes     string
}

// Book runs detection and the appointment write inside the store's
// per-doctor critical section, so of N concurrent identical attempts exactly
// one commits. Conflicts abort the write and come back as values.
func (s *Service) Book(ctx context.Context, in BookInput) (domain.Appointment, []domain.Conflict, error) {
	if err := validateProposal(in.DoctorID, in.Interval); err != nil {
		return domain.Appointment{}, nil, err
	}
	if in.PatientID == uuid.Nil {
		return domain.Appointment{}, nil, validationError("patient_id is required")
	}
	interval := in.Interval.UTC()

	var (
		appt      domain.Appointment
		conflicts []domain.Conflict
	)
	err := s.appts.InDoctorSchedule(ctx, in.DoctorID, func(ctx context.Context, tx store.ScheduleTx) error {
		cs, err := s.detector.DetectIn(ctx, tx, in.DoctorID, interval, DetectOptions{PatientID: in.PatientID})
		if err != nil {
			return err
		}
		if len(cs) > 0 {
			conflicts = cs
			return nil
		}

		created, err := tx.CreateAppointment(ctx, domain.Appointment{
			DoctorID:  in.DoctorID,
			PatientID: in.PatientID,
			StartTime: interval.Start,
			EndTime:   interval.End,
			Status:    domain.AppointmentStatusScheduled,
			Notes:     in.Notes,
		})
		if err != nil {
			return err
		}
		appt = created
		return nil
	})
	if err != nil {
		return domain.Appointment{}, nil, err
	}
	if len(conflicts) > 0 {
		return domain.Appointment{}, conflicts, nil
	}
	return appt, nil, nil
}

// Reschedule moves a Scheduled appointment, re-validating the new interval
// with the appointment excluded from overlap checks so it never conflicts
// with itself.
func (s *Service) Reschedule(ctx context.Context, appointmentID uuid.UUID, newInterval domain.TimeInterval) (domain.Appointment, []domain.Conflict, error) {
	if appointmentID == uuid.Nil {
		return domain.Appointment{}, nil, validationError("appointment_id is required")
	}
	if !newInterval.Start.Before(newInterval.End) {
		return domain.Appointment{}, nil, validationError("end_time must be after start_time")
	}
	interval := newInterval.UTC()

	appt, err := s.appts.GetAppointment(ctx, appointmentID)
	if err != nil {
		return domain.Appointment{}, nil, err
	}
	if appt.Status != domain.AppointmentStatusScheduled {
		return domain.Appointment{}, nil, validationError("only scheduled appointments can be rescheduled")
	}

	var conflicts []domain.Conflict
	err = s.appts.InDoctorSchedule(ctx, appt.DoctorID, func(ctx context.Context, tx store.ScheduleTx) error {
		cs, err := s.detector.DetectIn(ctx, tx, appt.DoctorID, interval, DetectOptions{
			PatientID:            appt.PatientID,
			ExcludeAppointmentID: appt.ID,
		})
		if err != nil {
			return err
		}
		if len(cs) > 0 {
			conflicts = cs
			return nil
		}
		if err := tx.UpdateAppointmentInterval(ctx, appt.ID, interval); err != nil {
			return err
		}
		appt.SetInterval(interval)
		return nil
	})
	if err != nil {
		return domain.Appointment{}, nil, err
	}
	if len(conflicts) > 0 {
		return domain.Appointment{}, conflicts, nil
	}
	return appt, nil, nil
}

// OccurrenceConflict reports one occurrence of a recurring series that could
// not be booked.
type OccurrenceConflict struct {
	Interval  domain.TimeInterval
	Conflicts []domain.Conflict
}

type RecurringResult struct {
	Booked  []domain.Appointment
	Skipped []OccurrenceConflict
}

// CreateRecurringAppointments expands the rule and books every occurrence,
// collecting per-occurrence conflicts instead of aborting the series. Hard
// store failures still abort.
func (s *Service) CreateRecurringAppointments(ctx context.Context, in BookInput, rule domain.RecurrenceRule) (RecurringResult, error) {
	if err := validateProposal(in.DoctorID, in.Interval); err != nil {
		return RecurringResult{}, err
	}
	if in.PatientID == uuid.Nil {
		return RecurringResult{}, validationError("patient_id is required")
	}

	occurrences, err := domain.ExpandRecurrence(in.Interval.UTC(), rule, s.now())
	if err != nil {
		return RecurringResult{}, validationError(err.Error())
	}

	result := RecurringResult{Booked: make([]domain.Appointment, 0, len(occurrences))}
	for _, occ := range occurrences {
		appt, conflicts, err := s.Book(ctx, BookInput{
			DoctorID:  in.DoctorID,
			PatientID: in.PatientID,
			Interval:  occ,
			Notes:     in.Notes,
		})
		if err != nil {
			return result, err
		}
		if len(conflicts) > 0 {
			result.Skipped = append(result.Skipped, OccurrenceConflict{Interval: occ, Conflicts: conflicts})
			continue
		}
		result.Booked = append(result.Booked, appt)
	}

	return result, nil
}

// CancelAppointment marks the appointment cancelled and hands the freed
// interval to the waitlist matcher.
func (s *Service) CancelAppointment(ctx context.Context, appointmentID uuid.UUID, notificationWindow time.Duration) ([]domain.WaitlistEntry, error) {
	if appointmentID == uuid.Nil {
		return nil, validationError("appointment_id is required")
	}

	appt, err := s.appts.GetAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.Status != domain.AppointmentStatusScheduled {
		return nil, validationError("only scheduled appointments can be cancelled")
	}

	err = s.appts.InDoctorSchedule(ctx, appt.DoctorID, func(ctx context.Context, tx store.ScheduleTx) error {
		return tx.UpdateAppointmentStatus(ctx, appt.ID, domain.AppointmentStatusCancelled)
	})
	if err != nil {
		return nil, err
	}

	return s.matcher.OnSlotFreed(ctx, appt.DoctorID, appt.Interval(), notificationWindow)
}

func (s *Service) AddToWaitlist(ctx context.Context, in AddWaitlistInput) (domain.WaitlistEntry, error) {
	if in.PatientID == uuid.Nil {
		return domain.WaitlistEntry{}, validationError("patient_id is required")
	}
	if err := validateProposal(in.DoctorID, in.PreferredInterval); err != nil {
		return domain.WaitlistEntry{}, err
	}
	if in.ExpiresIn <= 0 {
		return domain.WaitlistEntry{}, validationError("expires_in must be positive")
	}
	in.PreferredInterval = in.PreferredInterval.UTC()
	return s.matcher.Add(ctx, in)
}

func (s *Service) BookFromWaitlist(ctx context.Context, entryID uuid.UUID, actual domain.TimeInterval, actor uuid.UUID) (domain.Appointment, []domain.Conflict, error) {
	if entryID == uuid.Nil {
		return domain.Appointment{}, nil, validationError("entry_id is required")
	}
	if !actual.Start.Before(actual.End) {
		return domain.Appointment{}, nil, validationError("end_time must be after start_time")
	}
	return s.matcher.Book(ctx, entryID, actual.UTC(), actor)
}

func (s *Service) RemoveFromWaitlist(ctx context.Context, entryID uuid.UUID, reason string) error {
	if entryID == uuid.Nil {
		return validationError("entry_id is required")
	}
	return s.matcher.Remove(ctx, entryID, reason)
}

func (s *Service) ExpireWaitlistEntries(ctx context.Context, now time.Time) (int, error) {
	return s.matcher.ExpireSweep(ctx, now)
}

func (s *Service) Waitlist() *Matcher {
	return s.matcher
}

func validateProposal(doctorID uuid.UUID, interval domain.TimeInterval) error {
	if doctorID == uuid.Nil {
		return validationError("doctor_id is required")
	}
	if interval.Start.IsZero() || interval.End.IsZero() {
		return validationError("interval is required")
	}
	if !interval.Start.Before(interval.End) {
		return validationError("end_time must be after start_time")
	}
	return nil
}
