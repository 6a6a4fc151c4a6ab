package variance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/delgadoservices/fieldstock-backend/internal/jobs"
	"github.com/delgadoservices/fieldstock-backend/internal/labor"
	"github.com/delgadoservices/fieldstock-backend/internal/reservations"
	"github.com/delgadoservices/fieldstock-backend/pkg/db/models"
	"github.com/delgadoservices/fieldstock-backend/pkg/enums"
	pkgerrors "github.com/delgadoservices/fieldstock-backend/pkg/errors"
	"github.com/delgadoservices/fieldstock-backend/pkg/logger"
)

// Projection sources reported on the rollup.
const (
	ProjectionSourceQuoted       = "quoted"
	ProjectionSourceReservations = "reservations"
)

var hundred = decimal.NewFromInt(100)

// Figure compares one projected value against its actual.
type Figure struct {
	Projected       decimal.Decimal `json:"projected"`
	Actual          decimal.Decimal `json:"actual"`
	Variance        decimal.Decimal `json:"variance"`
	VariancePercent decimal.Decimal `json:"variance_percent"`
}

// Rollup is the per-job cost variance report. It is computed on demand and
// never persisted.
type Rollup struct {
	JobID            uuid.UUID            `json:"job_id"`
	JobCode          string               `json:"job_code"`
	BillingType      enums.JobBillingType `json:"billing_type"`
	ProjectionSource string               `json:"projection_source"`
	Hours            Figure               `json:"hours"`
	LaborCost        Figure               `json:"labor_cost"`
	MaterialCost     Figure               `json:"material_cost"`
	MaterialRevenue  Figure               `json:"material_revenue"`
	Total            Figure               `json:"total"`
	GeneratedAt      time.Time            `json:"generated_at"`
}

// Service computes cost variance rollups.
type Service interface {
	ComputeVariance(ctx context.Context, jobID uuid.UUID) (*Rollup, error)
}

type service struct {
	jobsRepo jobs.Repository
	resRepo  reservations.Repository
	labor    labor.Repository
	logg     *logger.Logger
}

// ServiceParams wires the variance service dependencies.
type ServiceParams struct {
	Jobs         jobs.Repository
	Reservations reservations.Repository
	Labor        labor.Repository
	Logger       *logger.Logger
}

// NewService wires a variance service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Jobs == nil {
		return nil, fmt.Errorf("jobs repository required")
	}
	if params.Reservations == nil {
		return nil, fmt.Errorf("reservation repository required")
	}
	if params.Labor == nil {
		return nil, fmt.Errorf("labor repository required")
	}
	return &service{
		jobsRepo: params.Jobs,
		resRepo:  params.Reservations,
		labor:    params.Labor,
		logg:     params.Logger,
	}, nil
}

func (s *service) ComputeVariance(ctx context.Context, jobID uuid.UUID) (*Rollup, error) {
	if jobID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "job id is required")
	}
	job, err := s.jobsRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "job not found")
	}
	laborTotals, err := s.labor.SumByJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("summing labor feed: %w", err)
	}
	lines, err := s.resRepo.ListByJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("listing reservations: %w", err)
	}

	material := sumMaterials(lines)

	// An unquoted material figure means a time-and-materials job; project
	// from the reservation plan instead.
	materialCostProjected := job.QuotedMaterialCost
	source := ProjectionSourceQuoted
	if materialCostProjected.IsZero() {
		materialCostProjected = material.plannedCost
		source = ProjectionSourceReservations
	}

	totalProjected := job.QuotedTotal
	if totalProjected.IsZero() {
		totalProjected = job.QuotedLaborCost.Add(materialCostProjected)
	}

	return &Rollup{
		JobID:            job.ID,
		JobCode:          job.Code,
		BillingType:      job.BillingType,
		ProjectionSource: source,
		Hours:            figure(job.QuotedHours, laborTotals.Hours),
		LaborCost:        figure(job.QuotedLaborCost, laborTotals.Cost),
		MaterialCost:     figure(materialCostProjected, material.actualCost),
		MaterialRevenue:  figure(material.plannedRevenue, material.actualRevenue),
		Total:            figure(totalProjected, laborTotals.Cost.Add(material.actualCost)),
		GeneratedAt:      time.Now().UTC(),
	}, nil
}

type materialTotals struct {
	plannedCost    decimal.Decimal
	plannedRevenue decimal.Decimal
	actualCost     decimal.Decimal
	actualRevenue  decimal.Decimal
}

// sumMaterials folds the reservation lines into planned and actual money.
// Actuals only count lines whose material really left for a job.
func sumMaterials(lines []models.MaterialReservation) materialTotals {
	var totals materialTotals
	for _, line := range lines {
		needed := decimal.NewFromInt(int64(line.QuantityNeeded))
		totals.plannedCost = totals.plannedCost.Add(line.UnitCost.Mul(needed))
		totals.plannedRevenue = totals.plannedRevenue.Add(line.UnitPrice.Mul(needed))

		switch line.Status {
		case enums.ReservationStatusUsed, enums.ReservationStatusBilled:
			totals.actualCost = totals.actualCost.Add(line.LineCost)
			totals.actualRevenue = totals.actualRevenue.Add(line.LineTotal)
		}
	}
	return totals
}

// figure computes absolute and percent variance. A zero projection yields a
// zero percent by definition, never a division error.
func figure(projected, actual decimal.Decimal) Figure {
	diff := actual.Sub(projected)
	percent := decimal.Zero
	if !projected.IsZero() {
		percent = diff.Div(projected).Mul(hundred).Round(2)
	}
	return Figure{
		Projected:       projected,
		Actual:          actual,
		Variance:        diff,
		VariancePercent: percent,
	}
}
