package variance

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/delgadoservices/fieldstock-backend/internal/jobs"
	"github.com/delgadoservices/fieldstock-backend/internal/labor"
	"github.com/delgadoservices/fieldstock-backend/internal/reservations"
	"github.com/delgadoservices/fieldstock-backend/pkg/db/models"
	"github.com/delgadoservices/fieldstock-backend/pkg/enums"
)

type stubJobs struct {
	job *models.Job
}

func (s *stubJobs) WithTx(tx *gorm.DB) jobs.Repository { return s }

func (s *stubJobs) Create(ctx context.Context, job *models.Job) error { return nil }

func (s *stubJobs) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	if s.job == nil || s.job.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *s.job
	return &clone, nil
}

type stubLabor struct {
	totals labor.Totals
}

func (s *stubLabor) SumByJob(ctx context.Context, jobID uuid.UUID) (labor.Totals, error) {
	return s.totals, nil
}

func (s *stubLabor) ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.LaborEntry, error) {
	return nil, nil
}

type stubReservations struct {
	lines []models.MaterialReservation
}

func (s *stubReservations) WithTx(tx *gorm.DB) reservations.Repository { return s }

func (s *stubReservations) Create(ctx context.Context, reservation *models.MaterialReservation) error {
	return nil
}

func (s *stubReservations) GetByID(ctx context.Context, id uuid.UUID) (*models.MaterialReservation, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubReservations) GetByJobAndItem(ctx context.Context, jobID, itemID uuid.UUID) (*models.MaterialReservation, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubReservations) ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.MaterialReservation, error) {
	return s.lines, nil
}

func (s *stubReservations) Save(ctx context.Context, reservation *models.MaterialReservation) error {
	return nil
}

func newVarianceService(t *testing.T, job *models.Job, totals labor.Totals, lines []models.MaterialReservation) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Jobs:         &stubJobs{job: job},
		Reservations: &stubReservations{lines: lines},
		Labor:        &stubLabor{totals: totals},
	})
	require.NoError(t, err)
	return svc
}

func TestComputeVarianceQuotedJob(t *testing.T) {
	jobID := uuid.New()
	job := &models.Job{
		ID:                 jobID,
		Code:               "J-1042",
		BillingType:        enums.JobBillingTypeFixed,
		QuotedHours:        decimal.NewFromInt(40),
		QuotedLaborCost:    decimal.NewFromInt(2000),
		QuotedMaterialCost: decimal.NewFromInt(400),
		QuotedTotal:        decimal.NewFromInt(2400),
	}
	lines := []models.MaterialReservation{
		{
			JobID:          jobID,
			QuantityNeeded: 100,
			QuantityUsed:   110,
			UnitCost:       decimal.NewFromInt(4),
			UnitPrice:      decimal.NewFromInt(10),
			LineCost:       decimal.NewFromInt(440),
			LineTotal:      decimal.NewFromInt(1100),
			Status:         enums.ReservationStatusBilled,
		},
	}
	svc := newVarianceService(t, job, labor.Totals{
		Hours: decimal.NewFromInt(44),
		Cost:  decimal.NewFromInt(2200),
	}, lines)

	rollup, err := svc.ComputeVariance(context.Background(), jobID)
	require.NoError(t, err)

	assert.Equal(t, ProjectionSourceQuoted, rollup.ProjectionSource)
	assert.True(t, rollup.Hours.Variance.Equal(decimal.NewFromInt(4)), "hours variance %s", rollup.Hours.Variance)
	assert.True(t, rollup.Hours.VariancePercent.Equal(decimal.NewFromInt(10)), "hours pct %s", rollup.Hours.VariancePercent)
	assert.True(t, rollup.MaterialCost.Variance.Equal(decimal.NewFromInt(40)), "material variance %s", rollup.MaterialCost.Variance)
	assert.True(t, rollup.MaterialCost.VariancePercent.Equal(decimal.NewFromInt(10)), "material pct %s", rollup.MaterialCost.VariancePercent)
	assert.True(t, rollup.Total.Actual.Equal(decimal.NewFromInt(2640)), "total actual %s", rollup.Total.Actual)
	assert.True(t, rollup.Total.VariancePercent.Equal(decimal.NewFromInt(10)), "total pct %s", rollup.Total.VariancePercent)
}

func TestComputeVarianceUnquotedMaterials(t *testing.T) {
	jobID := uuid.New()
	job := &models.Job{
		ID:          jobID,
		Code:        "J-2001",
		BillingType: enums.JobBillingTypeTimeAndMaterials,
	}
	lines := []models.MaterialReservation{
		{
			JobID:     jobID,
			UnitCost:  decimal.NewFromInt(5),
			UnitPrice: decimal.NewFromInt(12),
			LineCost:  decimal.NewFromInt(500),
			LineTotal: decimal.NewFromInt(1200),
			Status:    enums.ReservationStatusUsed,
		},
	}
	svc := newVarianceService(t, job, labor.Totals{}, lines)

	rollup, err := svc.ComputeVariance(context.Background(), jobID)
	require.NoError(t, err)

	// No quoted figure: the projection comes from the reservation plan and a
	// zero denominator reports zero percent, never an error.
	assert.Equal(t, ProjectionSourceReservations, rollup.ProjectionSource)
	assert.True(t, rollup.MaterialCost.Variance.Equal(decimal.NewFromInt(500)), "material variance %s", rollup.MaterialCost.Variance)
	assert.True(t, rollup.MaterialCost.VariancePercent.IsZero(), "material pct %s", rollup.MaterialCost.VariancePercent)
	assert.True(t, rollup.LaborCost.VariancePercent.IsZero())
}

func TestComputeVarianceSkipsUnusedLines(t *testing.T) {
	jobID := uuid.New()
	job := &models.Job{
		ID:                 jobID,
		Code:               "J-3003",
		QuotedMaterialCost: decimal.NewFromInt(100),
	}
	lines := []models.MaterialReservation{
		{JobID: jobID, QuantityNeeded: 10, UnitCost: decimal.NewFromInt(4), Status: enums.ReservationStatusAllocated, LineCost: decimal.Zero},
		{JobID: jobID, QuantityNeeded: 10, UnitCost: decimal.NewFromInt(4), Status: enums.ReservationStatusReturned, LineCost: decimal.Zero},
	}
	svc := newVarianceService(t, job, labor.Totals{}, lines)

	rollup, err := svc.ComputeVariance(context.Background(), jobID)
	require.NoError(t, err)

	assert.True(t, rollup.MaterialCost.Actual.IsZero(), "actual %s", rollup.MaterialCost.Actual)
	assert.True(t, rollup.MaterialCost.Variance.Equal(decimal.NewFromInt(-100)))
}

func TestComputeVarianceJobNotFound(t *testing.T) {
	svc := newVarianceService(t, nil, labor.Totals{}, nil)
	_, err := svc.ComputeVariance(context.Background(), uuid.New())
	require.Error(t, err)
}
