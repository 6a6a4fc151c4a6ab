package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/delgadoservices/fieldstock-backend/pkg/enums"
)

// Job carries the quoted figures the variance rollup compares against.
// Job management owns the full record; this service reads it.
type Job struct {
	ID                 uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	Code               string               `gorm:"column:code;not null;uniqueIndex"`
	BillingType        enums.JobBillingType `gorm:"column:billing_type;not null;default:'fixed'"`
	QuotedHours        decimal.Decimal      `gorm:"column:quoted_hours;type:numeric(10,2);not null;default:0"`
	QuotedLaborCost    decimal.Decimal      `gorm:"column:quoted_labor_cost;type:numeric(12,2);not null;default:0"`
	QuotedMaterialCost decimal.Decimal      `gorm:"column:quoted_material_cost;type:numeric(12,2);not null;default:0"`
	QuotedTotal        decimal.Decimal      `gorm:"column:quoted_total;type:numeric(12,2);not null;default:0"`
	CreatedAt          time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
