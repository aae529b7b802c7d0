package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"mediplan/backend/internal/domain"
)

// WaitlistRepository is the durable store for waitlist entries. List results
// are ordered by created_at ascending, the FIFO order the matcher relies on.
type WaitlistRepository interface {
	AddEntry(ctx context.Context, entry domain.WaitlistEntry) (domain.WaitlistEntry, error)
	GetEntry(ctx context.Context, id uuid.UUID) (domain.WaitlistEntry, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, statuses ...domain.WaitlistStatus) ([]domain.WaitlistEntry, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, statuses ...domain.WaitlistStatus) ([]domain.WaitlistEntry, error)
	// UpdateEntry commits the entry only if its stored status still equals
	// expect; a lost race yields ErrStaleEntry. This is what keeps the
	// expiry sweep from downgrading an entry booked or cancelled
	// concurrently.
	UpdateEntry(ctx context.Context, entry domain.WaitlistEntry, expect domain.WaitlistStatus) (domain.WaitlistEntry, error)
	// ListExpirable returns Active and Notified entries whose expires_at is
	// at or before cutoff.
	ListExpirable(ctx context.Context, cutoff time.Time) ([]domain.WaitlistEntry, error)
}
