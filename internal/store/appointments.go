package store

import (
	"context"

	"github.com/google/uuid"

	"mediplan/backend/internal/domain"
)

// ScheduleReader is the snapshot-query surface conflict detection runs over.
// excludeID removes one appointment from consideration; uuid.Nil excludes
// nothing.
type ScheduleReader interface {
	GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	// QueryOverlapping returns Scheduled appointments for the doctor whose
	// half-open interval overlaps the given one.
	QueryOverlapping(ctx context.Context, doctorID uuid.UUID, interval domain.TimeInterval, excludeID uuid.UUID) ([]domain.Appointment, error)
	// QueryByPatient returns the patient's Scheduled appointments, with any
	// doctor, overlapping the given interval.
	QueryByPatient(ctx context.Context, patientID uuid.UUID, interval domain.TimeInterval, excludeID uuid.UUID) ([]domain.Appointment, error)
}

type ScheduleTx interface {
	ScheduleReader
	CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, status domain.AppointmentStatus) error
	UpdateAppointmentInterval(ctx context.Context, id uuid.UUID, interval domain.TimeInterval) error
}

// AppointmentStore provides both direct snapshot access and a per-doctor
// critical section. Detection and the subsequent write of a booking must run
// inside InDoctorSchedule so that concurrent attempts for the same doctor
// serialize.
type AppointmentStore interface {
	ScheduleTx
	InDoctorSchedule(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context, tx ScheduleTx) error) error
}
