package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"mediplan/backend/internal/domain"
	"mediplan/backend/internal/store"
)

// AppointmentRepo implements store.AppointmentStore over Postgres. Booking
// commits serialize per doctor with an advisory transaction lock; an
// exclusion constraint on (doctor_id, tstzrange) backstops the engine's
// overlap invariant.
type AppointmentRepo struct {
	db *bun.DB
}

func NewAppointmentRepo(db *bun.DB) *AppointmentRepo {
	return &AppointmentRepo{db: db}
}

var _ store.AppointmentStore = (*AppointmentRepo)(nil)

type scheduleTx struct {
	tx bun.Tx
}

func (r *AppointmentRepo) GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	return getAppointment(ctx, r.db, id)
}

func (r *AppointmentRepo) QueryOverlapping(ctx context.Context, doctorID uuid.UUID, interval domain.TimeInterval, excludeID uuid.UUID) ([]domain.Appointment, error) {
	return queryOverlapping(ctx, r.db, doctorID, interval, excludeID)
}

func (r *AppointmentRepo) QueryByPatient(ctx context.Context, patientID uuid.UUID, interval domain.TimeInterval, excludeID uuid.UUID) ([]domain.Appointment, error) {
	return queryByPatient(ctx, r.db, patientID, interval, excludeID)
}

func (r *AppointmentRepo) CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	return createAppointment(ctx, r.db, appt)
}

func (r *AppointmentRepo) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, status domain.AppointmentStatus) error {
	return updateAppointmentStatus(ctx, r.db, id, status)
}

func (r *AppointmentRepo) UpdateAppointmentInterval(ctx context.Context, id uuid.UUID, interval domain.TimeInterval) error {
	return updateAppointmentInterval(ctx, r.db, id, interval)
}

func (r *AppointmentRepo) InDoctorSchedule(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context, tx store.ScheduleTx) error) error {
	return r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := lockDoctorSchedule(ctx, tx, doctorID); err != nil {
			return err
		}
		return fn(ctx, scheduleTx{tx: tx})
	})
}

func lockDoctorSchedule(ctx context.Context, tx bun.Tx, doctorID uuid.UUID) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", doctorID.String()).Exec(ctx)
	return err
}

func (t scheduleTx) GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	return getAppointment(ctx, t.tx, id)
}

func (t scheduleTx) QueryOverlapping(ctx context.Context, doctorID uuid.UUID, interval domain.TimeInterval, excludeID uuid.UUID) ([]domain.Appointment, error) {
	return queryOverlapping(ctx, t.tx, doctorID, interval, excludeID)
}

func (t scheduleTx) QueryByPatient(ctx context.Context, patientID uuid.UUID, interval domain.TimeInterval, excludeID uuid.UUID) ([]domain.Appointment, error) {
	return queryByPatient(ctx, t.tx, patientID, interval, excludeID)
}

func (t scheduleTx) CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	return createAppointment(ctx, t.tx, appt)
}

func (t scheduleTx) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, status domain.AppointmentStatus) error {
	return updateAppointmentStatus(ctx, t.tx, id, status)
}

func (t scheduleTx) UpdateAppointmentInterval(ctx context.Context, id uuid.UUID, interval domain.TimeInterval) error {
	return updateAppointmentInterval(ctx, t.tx, id, interval)
}

func getAppointment(ctx context.Context, db bun.IDB, id uuid.UUID) (domain.Appointment, error) {
	var appt domain.Appointment
	err := db.NewSelect().
		Model(&appt).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Appointment{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Appointment{}, err
	}
	return appt, nil
}

func queryOverlapping(ctx context.Context, db bun.IDB, doctorID uuid.UUID, interval domain.TimeInterval, excludeID uuid.UUID) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	q := db.NewSelect().
		Model(&rows).
		Where("doctor_id = ?", doctorID).
		Where("status = ?", domain.AppointmentStatusScheduled).
		Where("start_time < ?", interval.End).
		Where("end_time > ?", interval.Start)
	if excludeID != uuid.Nil {
		q = q.Where("id != ?", excludeID)
	}
	if err := q.OrderExpr("start_time ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

func queryByPatient(ctx context.Context, db bun.IDB, patientID uuid.UUID, interval domain.TimeInterval, excludeID uuid.UUID) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	q := db.NewSelect().
		Model(&rows).
		Where("patient_id = ?", patientID).
		Where("status = ?", domain.AppointmentStatusScheduled).
		Where("start_time < ?", interval.End).
		Where("end_time > ?", interval.Start)
	if excludeID != uuid.Nil {
		q = q.Where("id != ?", excludeID)
	}
	if err := q.OrderExpr("start_time ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

func createAppointment(ctx context.Context, db bun.IDB, appt domain.Appointment) (domain.Appointment, error) {
	m := appt
	_, err := db.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) &&
			pgErr.Code == "23P01" && pgErr.ConstraintName == "appointments_doctor_no_overlap" {
			return domain.Appointment{}, store.ErrConflict
		}
		return domain.Appointment{}, err
	}
	return m, nil
}

func updateAppointmentStatus(ctx context.Context, db bun.IDB, id uuid.UUID, status domain.AppointmentStatus) error {
	res, err := db.NewUpdate().
		Model((*domain.Appointment)(nil)).
		Set("status = ?", status).
		Set("updated_at = now()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func updateAppointmentInterval(ctx context.Context, db bun.IDB, id uuid.UUID, interval domain.TimeInterval) error {
	res, err := db.NewUpdate().
		Model((*domain.Appointment)(nil)).
		Set("start_time = ?", interval.Start).
		Set("end_time = ?", interval.End).
		Set("updated_at = now()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
