// Package memory provides mutex-guarded store implementations used in tests
// and for single-process runs without Postgres.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"mediplan/backend/internal/domain"
	"mediplan/backend/internal/store"
)

type AppointmentStore struct {
	mu    sync.RWMutex
	appts map[uuid.UUID]domain.Appointment

	lockMu      sync.Mutex
	doctorLocks map[uuid.UUID]*sync.Mutex
}

func NewAppointmentStore() *AppointmentStore {
	return &AppointmentStore{
		appts:       make(map[uuid.UUID]domain.Appointment),
		doctorLocks: make(map[uuid.UUID]*sync.Mutex),
	}
}

var _ store.AppointmentStore = (*AppointmentStore)(nil)

func (s *AppointmentStore) GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	appt, ok := s.appts[id]
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	return appt, nil
}

func (s *AppointmentStore) QueryOverlapping(ctx context.Context, doctorID uuid.UUID, interval domain.TimeInterval, excludeID uuid.UUID) ([]domain.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Appointment
	for _, a := range s.appts {
		if a.DoctorID != doctorID || a.Status != domain.AppointmentStatusScheduled {
			continue
		}
		if excludeID != uuid.Nil && a.ID == excludeID {
			continue
		}
		if a.Interval().Overlaps(interval) {
			out = append(out, a)
		}
	}
	sortByStart(out)
	return out, nil
}

func (s *AppointmentStore) QueryByPatient(ctx context.Context, patientID uuid.UUID, interval domain.TimeInterval, excludeID uuid.UUID) ([]domain.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Appointment
	for _, a := range s.appts {
		if a.PatientID != patientID || a.Status != domain.AppointmentStatusScheduled {
			continue
		}
		if excludeID != uuid.Nil && a.ID == excludeID {
			continue
		}
		if a.Interval().Overlaps(interval) {
			out = append(out, a)
		}
	}
	sortByStart(out)
	return out, nil
}

func (s *AppointmentStore) CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if appt.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.Appointment{}, err
		}
		appt.ID = id
	}
	now := time.Now().UTC()
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = now
	}
	appt.UpdatedAt = now

	s.appts[appt.ID] = appt
	return appt, nil
}

func (s *AppointmentStore) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, status domain.AppointmentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	appt, ok := s.appts[id]
	if !ok {
		return store.ErrNotFound
	}
	appt.Status = status
	appt.UpdatedAt = time.Now().UTC()
	s.appts[id] = appt
	return nil
}

func (s *AppointmentStore) UpdateAppointmentInterval(ctx context.Context, id uuid.UUID, interval domain.TimeInterval) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	appt, ok := s.appts[id]
	if !ok {
		return store.ErrNotFound
	}
	appt.SetInterval(interval)
	appt.UpdatedAt = time.Now().UTC()
	s.appts[id] = appt
	return nil
}

// InDoctorSchedule serializes the callback per doctor, the in-memory
// analogue of the advisory-lock transaction the Postgres store takes.
func (s *AppointmentStore) InDoctorSchedule(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context, tx store.ScheduleTx) error) error {
	lock := s.doctorLock(doctorID)
	lock.Lock()
	defer lock.Unlock()
	return fn(ctx, s)
}

func (s *AppointmentStore) doctorLock(doctorID uuid.UUID) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.doctorLocks[doctorID]
	if !ok {
		lock = &sync.Mutex{}
		s.doctorLocks[doctorID] = lock
	}
	return lock
}

func sortByStart(appts []domain.Appointment) {
	sort.Slice(appts, func(i, j int) bool {
		return appts[i].StartTime.Before(appts[j].StartTime)
	})
}

type waitlistRecord struct {
	entry domain.WaitlistEntry
	seq   uint64
}

type WaitlistRepository struct {
	mu      sync.Mutex
	entries map[uuid.UUID]waitlistRecord
	nextSeq uint64
}

func NewWaitlistRepository() *WaitlistRepository {
	return &WaitlistRepository{entries: make(map[uuid.UUID]waitlistRecord)}
}

var _ store.WaitlistRepository = (*WaitlistRepository)(nil)

func (r *WaitlistRepository) AddEntry(ctx context.Context, entry domain.WaitlistEntry) (domain.WaitlistEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.WaitlistEntry{}, err
		}
		entry.ID = id
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	r.nextSeq++
	r.entries[entry.ID] = waitlistRecord{entry: entry, seq: r.nextSeq}
	return entry, nil
}

func (r *WaitlistRepository) GetEntry(ctx context.Context, id uuid.UUID) (domain.WaitlistEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.entries[id]
	if !ok {
		return domain.WaitlistEntry{}, store.ErrNotFound
	}
	return rec.entry, nil
}

func (r *WaitlistRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID, statuses ...domain.WaitlistStatus) ([]domain.WaitlistEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var recs []waitlistRecord
	for _, rec := range r.entries {
		if rec.entry.DoctorID == doctorID && statusMatches(rec.entry.Status, statuses) {
			recs = append(recs, rec)
		}
	}
	return sortFIFO(recs), nil
}

func (r *WaitlistRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, statuses ...domain.WaitlistStatus) ([]domain.WaitlistEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var recs []waitlistRecord
	for _, rec := range r.entries {
		if rec.entry.PatientID == patientID && statusMatches(rec.entry.Status, statuses) {
			recs = append(recs, rec)
		}
	}
	return sortFIFO(recs), nil
}

func (r *WaitlistRepository) UpdateEntry(ctx context.Context, entry domain.WaitlistEntry, expect domain.WaitlistStatus) (domain.WaitlistEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.entries[entry.ID]
	if !ok {
		return domain.WaitlistEntry{}, store.ErrNotFound
	}
	if rec.entry.Status != expect {
		return domain.WaitlistEntry{}, store.ErrStaleEntry
	}
	rec.entry = entry
	r.entries[entry.ID] = rec
	return entry, nil
}

func (r *WaitlistRepository) ListExpirable(ctx context.Context, cutoff time.Time) ([]domain.WaitlistEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var recs []waitlistRecord
	for _, rec := range r.entries {
		switch rec.entry.Status {
		case domain.WaitlistStatusActive, domain.WaitlistStatusNotified:
			if !rec.entry.ExpiresAt.After(cutoff) {
				recs = append(recs, rec)
			}
		}
	}
	return sortFIFO(recs), nil
}

func statusMatches(status domain.WaitlistStatus, statuses []domain.WaitlistStatus) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

// sortFIFO orders by created_at ascending, falling back to insertion order
// for entries created in the same instant.
func sortFIFO(recs []waitlistRecord) []domain.WaitlistEntry {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].entry.CreatedAt.Equal(recs[j].entry.CreatedAt) {
			return recs[i].entry.CreatedAt.Before(recs[j].entry.CreatedAt)
		}
		return recs[i].seq < recs[j].seq
	})
	out := make([]domain.WaitlistEntry, len(recs))
	for i, rec := range recs {
		out[i] = rec.entry
	}
	return out
}
