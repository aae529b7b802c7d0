package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusNoShow    AppointmentStatus = "no_show"
)

// Terminal reports whether no further status change is allowed.
func (s AppointmentStatus) Terminal() bool {
	switch s {
	case AppointmentStatusCancelled, AppointmentStatusCompleted, AppointmentStatusNoShow:
		return true
	}
	return false
}

type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	ID        uuid.UUID         `bun:"id,pk,type:uuid"`
	DoctorID  uuid.UUID         `bun:"doctor_id,notnull,type:uuid"`
	PatientID uuid.UUID         `bun:"patient_id,notnull,type:uuid"`
	StartTime time.Time         `bun:"start_time,notnull"`
	EndTime   time.Time         `bun:"end_time,notnull"`
	Status    AppointmentStatus `bun:"status,notnull"`
	Notes     string            `bun:"notes"`
	CreatedAt time.Time         `bun:"created_at,notnull"`
	UpdatedAt time.Time         `bun:"updated_at,notnull"`
}

func (a Appointment) Interval() TimeInterval {
	return TimeInterval{Start: a.StartTime, End: a.EndTime}
}

func (a *Appointment) SetInterval(i TimeInterval) {
	a.StartTime = i.Start
	a.EndTime = i.End
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			a.ID = id
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}
