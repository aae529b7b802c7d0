package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type WaitlistStatus string

const (
	WaitlistStatusActive    WaitlistStatus = "active"
	WaitlistStatusNotified  WaitlistStatus = "notified"
	WaitlistStatusBooked    WaitlistStatus = "booked"
	WaitlistStatusExpired   WaitlistStatus = "expired"
	WaitlistStatusCancelled WaitlistStatus = "cancelled"
)

func (s WaitlistStatus) Terminal() bool {
	switch s {
	case WaitlistStatusBooked, WaitlistStatusExpired, WaitlistStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo encodes the legal entry lifecycle:
// Active -> Notified -> (Booked | Expired), Active -> (Cancelled | Expired),
// Notified -> Cancelled.
func (s WaitlistStatus) CanTransitionTo(t WaitlistStatus) bool {
	switch s {
	case WaitlistStatusActive:
		return t == WaitlistStatusNotified || t == WaitlistStatusCancelled || t == WaitlistStatusExpired
	case WaitlistStatusNotified:
		return t == WaitlistStatusBooked || t == WaitlistStatusExpired || t == WaitlistStatusCancelled
	}
	return false
}

// WaitlistEntry is a patient's standing request to be offered a doctor/time
// window if it becomes free.
type WaitlistEntry struct {
	bun.BaseModel `bun:"table:waitlist_entries"`

	ID             uuid.UUID      `bun:"id,pk,type:uuid"`
	PatientID      uuid.UUID      `bun:"patient_id,notnull,type:uuid"`
	DoctorID       uuid.UUID      `bun:"doctor_id,notnull,type:uuid"`
	PreferredStart time.Time      `bun:"preferred_start,notnull"`
	PreferredEnd   time.Time      `bun:"preferred_end,notnull"`
	Status         WaitlistStatus `bun:"status,notnull"`
	CreatedAt      time.Time      `bun:"created_at,notnull"`
	NotifiedAt     *time.Time     `bun:"notified_at"`
	ExpiresAt      time.Time      `bun:"expires_at,notnull"`
	Notes          string         `bun:"notes"`
}

func (e WaitlistEntry) PreferredInterval() TimeInterval {
	return TimeInterval{Start: e.PreferredStart, End: e.PreferredEnd}
}

func (e *WaitlistEntry) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok {
		if e.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			e.ID = id
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now().UTC()
		}
	}
	return nil
}
