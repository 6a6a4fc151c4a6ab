package labor

import (
	"context"

	"github.com/delgadoservices/fieldstock-backend/pkg/db/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Totals aggregates the external time-tracking feed for one job.
type Totals struct {
	Hours decimal.Decimal
	Cost  decimal.Decimal
}

// Repository reads the labor feed. The feed is opaque to this service and is
// never mutated here.
type Repository interface {
	SumByJob(ctx context.Context, jobID uuid.UUID) (Totals, error)
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.LaborEntry, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a labor repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) SumByJob(ctx context.Context, jobID uuid.UUID) (Totals, error) {
	var row struct {
		Hours decimal.Decimal
		Cost  decimal.Decimal
	}
	err := r.db.WithContext(ctx).
		Model(&models.LaborEntry{}).
		Select("COALESCE(SUM(hours), 0) AS hours, COALESCE(SUM(cost), 0) AS cost").
		Where("job_id = ?", jobID).
		Scan(&row).Error
	if err != nil {
		return Totals{}, err
	}
	return Totals{Hours: row.Hours, Cost: row.Cost}, nil
}

func (r *repository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.LaborEntry, error) {
	var entries []models.LaborEntry
	if err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("work_date ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
