package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"mediplan/backend/internal/domain"
	"mediplan/backend/internal/store"
)

type WaitlistRepo struct {
	db *bun.DB
}

func NewWaitlistRepo(db *bun.DB) *WaitlistRepo {
	return &WaitlistRepo{db: db}
}

var _ store.WaitlistRepository = (*WaitlistRepo)(nil)

func (r *WaitlistRepo) AddEntry(ctx context.Context, entry domain.WaitlistEntry) (domain.WaitlistEntry, error) {
	m := entry
	if _, err := r.db.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.WaitlistEntry{}, err
	}
	return m, nil
}

func (r *WaitlistRepo) GetEntry(ctx context.Context, id uuid.UUID) (domain.WaitlistEntry, error) {
	var entry domain.WaitlistEntry
	err := r.db.NewSelect().
		Model(&entry).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.WaitlistEntry{}, store.ErrNotFound
	}
	if err != nil {
		return domain.WaitlistEntry{}, err
	}
	return entry, nil
}

func (r *WaitlistRepo) ListByDoctor(ctx context.Context, doctorID uuid.UUID, statuses ...domain.WaitlistStatus) ([]domain.WaitlistEntry, error) {
	var rows []domain.WaitlistEntry
	q := r.db.NewSelect().
		Model(&rows).
		Where("doctor_id = ?", doctorID)
	if len(statuses) > 0 {
		q = q.Where("status IN (?)", bun.In(statuses))
	}
	// created_at then id: id is a UUIDv7, so ties on created_at still list
	// in insertion order.
	if err := q.OrderExpr("created_at ASC, id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *WaitlistRepo) ListByPatient(ctx context.Context, patientID uuid.UUID, statuses ...domain.WaitlistStatus) ([]domain.WaitlistEntry, error) {
	var rows []domain.WaitlistEntry
	q := r.db.NewSelect().
		Model(&rows).
		Where("patient_id = ?", patientID)
	if len(statuses) > 0 {
		q = q.Where("status IN (?)", bun.In(statuses))
	}
	if err := q.OrderExpr("created_at ASC, id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateEntry is a compare-and-swap on status: the row is written only if it
// still holds the expected status.
func (r *WaitlistRepo) UpdateEntry(ctx context.Context, entry domain.WaitlistEntry, expect domain.WaitlistStatus) (domain.WaitlistEntry, error) {
	res, err := r.db.NewUpdate().
		Model(&entry).
		WherePK().
		Where("status = ?", expect).
		Exec(ctx)
	if err != nil {
		return domain.WaitlistEntry{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.WaitlistEntry{}, err
	}
	if affected == 0 {
		if _, err := r.GetEntry(ctx, entry.ID); errors.Is(err, store.ErrNotFound) {
			return domain.WaitlistEntry{}, store.ErrNotFound
		}
		return domain.WaitlistEntry{}, store.ErrStaleEntry
	}
	return entry, nil
}

func (r *WaitlistRepo) ListExpirable(ctx context.Context, cutoff time.Time) ([]domain.WaitlistEntry, error) {
	var rows []domain.WaitlistEntry
	err := r.db.NewSelect().
		Model(&rows).
		Where("status IN (?)", bun.In([]domain.WaitlistStatus{
			domain.WaitlistStatusActive,
			domain.WaitlistStatusNotified,
		})).
		Where("expires_at <= ?", cutoff).
		OrderExpr("created_at ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
