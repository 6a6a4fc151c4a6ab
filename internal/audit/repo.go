package audit

import (
	"context"

	"github.com/delgadoservices/fieldstock-backend/pkg/db/models"
	"github.com/delgadoservices/fieldstock-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists reservation audit entries. Entries are append-only: no
// update or delete surface exists.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateAll(ctx context.Context, entries []models.ReservationAuditEntry) error
	ListByReservation(ctx context.Context, reservationID uuid.UUID, params pagination.Params) ([]models.ReservationAuditEntry, error)
	ListByJob(ctx context.Context, jobID uuid.UUID, params pagination.Params) ([]models.ReservationAuditEntry, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an audit repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateAll(ctx context.Context, entries []models.ReservationAuditEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&entries).Error
}

func (r *repository) ListByReservation(ctx context.Context, reservationID uuid.UUID, params pagination.Params) ([]models.ReservationAuditEntry, error) {
	return r.list(ctx, "reservation_id = ?", reservationID, params)
}

func (r *repository) ListByJob(ctx context.Context, jobID uuid.UUID, params pagination.Params) ([]models.ReservationAuditEntry, error) {
	return r.list(ctx, "job_id = ?", jobID, params)
}

func (r *repository) list(ctx context.Context, cond string, id uuid.UUID, params pagination.Params) ([]models.ReservationAuditEntry, error) {
	q := r.db.WithContext(ctx).
		Where(cond, id).
		Order("created_at ASC, id ASC").
		Limit(pagination.LimitWithBuffer(params.Limit))

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		q = q.Where(
			"(created_at > ?) OR (created_at = ? AND id > ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var entries []models.ReservationAuditEntry
	if err := q.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
