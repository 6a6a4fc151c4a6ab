package reservations

import (
	"context"

	"github.com/delgadoservices/fieldstock-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository manages persistence for material reservations. Rows are never
// deleted; cancellation is modeled as a full return.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, reservation *models.MaterialReservation) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.MaterialReservation, error)
	GetByJobAndItem(ctx context.Context, jobID, itemID uuid.UUID) (*models.MaterialReservation, error)
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.MaterialReservation, error)
	Save(ctx context.Context, reservation *models.MaterialReservation) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a reservation repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, reservation *models.MaterialReservation) error {
	return r.db.WithContext(ctx).Create(reservation).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.MaterialReservation, error) {
	var reservation models.MaterialReservation
	if err := r.db.WithContext(ctx).First(&reservation, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (r *repository) GetByJobAndItem(ctx context.Context, jobID, itemID uuid.UUID) (*models.MaterialReservation, error) {
	var reservation models.MaterialReservation
	if err := r.db.WithContext(ctx).
		First(&reservation, "job_id = ? AND item_id = ?", jobID, itemID).Error; err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (r *repository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.MaterialReservation, error) {
	var reservations []models.MaterialReservation
	if err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("created_at ASC").
		Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}

func (r *repository) Save(ctx context.Context, reservation *models.MaterialReservation) error {
	return r.db.WithContext(ctx).Save(reservation).Error
}
