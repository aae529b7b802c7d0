package scheduling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mediplan/backend/internal/domain"
	"mediplan/backend/internal/notify"
	"mediplan/backend/internal/store"
)

// duplicateWindow is how close two preferred starts may be before a second
// entry for the same patient and doctor counts as a duplicate.
const duplicateWindow = time.Hour

// Matcher maintains waitlist entries per doctor and matches them against
// freed slots in strict FIFO order of creation.
type Matcher struct {
	repo     store.WaitlistRepository
	appts    store.AppointmentStore
	detector *Detector
	notifier notify.Notifier
	log      *slog.Logger
	now      func() time.Time
}

func NewMatcher(repo store.WaitlistRepository, appts store.AppointmentStore, detector *Detector, notifier notify.Notifier, log *slog.Logger) *Matcher {
	return &Matcher{
		repo:     repo,
		appts:    appts,
		detector: detector,
		notifier: notifier,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type AddWaitlistInput struct {
	PatientID         uuid.UUID
	DoctorID          uuid.UUID
	PreferredInterval domain.TimeInterval
	ExpiresIn         time.Duration
	Notes             string
}

// Add creates an Active entry. A patient already holding an Active or
// Notified entry for the same doctor with a preferred start within one hour
// is rejected with store.ErrDuplicateEntry.
func (m *Matcher) Add(ctx context.Context, in AddWaitlistInput) (domain.WaitlistEntry, error) {
	existing, err := m.repo.ListByPatient(ctx, in.PatientID,
		domain.WaitlistStatusActive, domain.WaitlistStatusNotified)
	if err != nil {
		return domain.WaitlistEntry{}, err
	}
	for _, e := range existing {
		if e.DoctorID != in.DoctorID {
			continue
		}
		gap := e.PreferredStart.Sub(in.PreferredInterval.Start)
		if gap < 0 {
			gap = -gap
		}
		if gap < duplicateWindow {
			return domain.WaitlistEntry{}, store.ErrDuplicateEntry
		}
	}

	now := m.now()
	entry := domain.WaitlistEntry{
		PatientID:      in.PatientID,
		DoctorID:       in.DoctorID,
		PreferredStart: in.PreferredInterval.Start,
		PreferredEnd:   in.PreferredInterval.End,
		Status:         domain.WaitlistStatusActive,
		CreatedAt:      now,
		ExpiresAt:      now.Add(in.ExpiresIn),
		Notes:          in.Notes,
	}
	return m.repo.AddEntry(ctx, entry)
}

// OnSlotFreed notifies, in creation order, every Active entry for the doctor
// whose preferred window overlaps the freed interval. Each transition to
// Notified commits before its notification dispatches, so a retry after a
// crash cannot notify the same entry twice; an entry that lost the
// compare-and-swap to a concurrent transition is skipped.
func (m *Matcher) OnSlotFreed(ctx context.Context, doctorID uuid.UUID, freed domain.TimeInterval, notificationWindow time.Duration) ([]domain.WaitlistEntry, error) {
	entries, err := m.repo.ListByDoctor(ctx, doctorID, domain.WaitlistStatusActive)
	if err != nil {
		return nil, err
	}

	now := m.now()
	deadline := now.Add(notificationWindow)

	notified := make([]domain.WaitlistEntry, 0, len(entries))
	for _, e := range entries {
		if !e.PreferredInterval().Overlaps(freed) {
			continue
		}

		notifiedAt := now
		e.Status = domain.WaitlistStatusNotified
		e.NotifiedAt = &notifiedAt
		e.ExpiresAt = deadline

		updated, err := m.repo.UpdateEntry(ctx, e, domain.WaitlistStatusActive)
		if errors.Is(err, store.ErrStaleEntry) || errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return notified, err
		}
		notified = append(notified, updated)

		// Dispatch only after the transition is committed, outside any lock.
		if err := m.notifier.NotifyWaitlist(ctx, updated); err != nil {
			m.log.Warn("waitlist notification failed",
				slog.String("entry_id", updated.ID.String()),
				slog.Any("err", err))
		}
	}

	return notified, nil
}

// Book creates an appointment for a Notified entry. Conflict detection is
// re-run against the actual interval inside the booking transaction as a
// race guard; conflicts are returned as values and leave the entry Notified.
func (m *Matcher) Book(ctx context.Context, entryID uuid.UUID, actual domain.TimeInterval, actor uuid.UUID) (domain.Appointment, []domain.Conflict, error) {
	entry, err := m.repo.GetEntry(ctx, entryID)
	if err != nil {
		return domain.Appointment{}, nil, err
	}
	if entry.Status != domain.WaitlistStatusNotified {
		return domain.Appointment{}, nil, store.ErrEntryNotNotified
	}
	if m.now().After(entry.ExpiresAt) {
		entry.Status = domain.WaitlistStatusExpired
		if _, err := m.repo.UpdateEntry(ctx, entry, domain.WaitlistStatusNotified); err != nil &&
			!errors.Is(err, store.ErrStaleEntry) {
			m.log.Warn("expiring overdue waitlist entry failed",
				slog.String("entry_id", entry.ID.String()), slog.Any("err", err))
		}
		return domain.Appointment{}, nil, store.ErrEntryExpired
	}

	var (
		appt      domain.Appointment
		conflicts []domain.Conflict
	)
	err = m.appts.InDoctorSchedule(ctx, entry.DoctorID, func(ctx context.Context, tx store.ScheduleTx) error {
		cs, err := m.detector.DetectIn(ctx, tx, entry.DoctorID, actual, DetectOptions{PatientID: entry.PatientID})
		if err != nil {
			return err
		}
		if len(cs) > 0 {
			conflicts = cs
			return nil
		}

		created, err := tx.CreateAppointment(ctx, domain.Appointment{
			DoctorID:  entry.DoctorID,
			PatientID: entry.PatientID,
			StartTime: actual.Start,
			EndTime:   actual.End,
			Status:    domain.AppointmentStatusScheduled,
			Notes:     waitlistBookingNotes(entry),
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

	entry.Status = domain.WaitlistStatusBooked
	if _, err := m.repo.UpdateEntry(ctx, entry, domain.WaitlistStatusNotified); err != nil {
		// The appointment exists; a stale entry here will fall to the sweep.
		m.log.Warn("marking waitlist entry booked failed",
			slog.String("entry_id", entry.ID.String()),
			slog.String("appointment_id", appt.ID.String()),
			slog.Any("err", err))
	}

	m.log.Info("booked from waitlist",
		slog.String("entry_id", entry.ID.String()),
		slog.String("appointment_id", appt.ID.String()),
		slog.String("actor", actor.String()))
	return appt, nil, nil
}

// Remove cancels an entry at the patient's or staff's request. Terminal
// entries are left untouched.
func (m *Matcher) Remove(ctx context.Context, entryID uuid.UUID, reason string) error {
	entry, err := m.repo.GetEntry(ctx, entryID)
	if err != nil {
		return err
	}
	if entry.Status.Terminal() {
		return store.ErrStaleEntry
	}
	prev := entry.Status
	entry.Status = domain.WaitlistStatusCancelled
	if reason != "" {
		entry.Notes = appendNote(entry.Notes, "cancelled: "+reason)
	}
	_, err = m.repo.UpdateEntry(ctx, entry, prev)
	return err
}

// ExpireSweep transitions Active and Notified entries past their expires_at
// to Expired. It is idempotent and re-checks status via compare-and-swap, so
// an entry booked or cancelled concurrently is never downgraded.
func (m *Matcher) ExpireSweep(ctx context.Context, now time.Time) (int, error) {
	entries, err := m.repo.ListExpirable(ctx, now)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, e := range entries {
		prev := e.Status
		if prev != domain.WaitlistStatusActive && prev != domain.WaitlistStatusNotified {
			continue
		}
		e.Status = domain.WaitlistStatusExpired
		if _, err := m.repo.UpdateEntry(ctx, e, prev); err != nil {
			if errors.Is(err, store.ErrStaleEntry) || errors.Is(err, store.ErrNotFound) {
				continue
			}
			return expired, err
		}
		expired++
	}

	return expired, nil
}

func (m *Matcher) ListForDoctor(ctx context.Context, doctorID uuid.UUID, statuses ...domain.WaitlistStatus) ([]domain.WaitlistEntry, error) {
	return m.repo.ListByDoctor(ctx, doctorID, statuses...)
}

func (m *Matcher) ListForPatient(ctx context.Context, patientID uuid.UUID, statuses ...domain.WaitlistStatus) ([]domain.WaitlistEntry, error) {
	return m.repo.ListByPatient(ctx, patientID, statuses...)
}

// Stats counts a doctor's entries per status.
func (m *Matcher) Stats(ctx context.Context, doctorID uuid.UUID) (map[domain.WaitlistStatus]int, error) {
	entries, err := m.repo.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	stats := make(map[domain.WaitlistStatus]int, 5)
	for _, e := range entries {
		stats[e.Status]++
	}
	return stats, nil
}

func waitlistBookingNotes(entry domain.WaitlistEntry) string {
	if entry.Notes == "" {
		return "booked from waitlist"
	}
	return fmt.Sprintf("booked from waitlist. original notes: %s", entry.Notes)
}

func appendNote(notes, line string) string {
	if notes == "" {
		return line
	}
	return notes + "\n" + line
}
