package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LaborEntry is one row of the external time-tracking feed. This service only
// sums the feed per job and never mutates it.
type LaborEntry struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	JobID     uuid.UUID       `gorm:"column:job_id;type:uuid;not null;index"`
	Hours     decimal.Decimal `gorm:"column:hours;type:numeric(10,2);not null;default:0"`
	Cost      decimal.Decimal `gorm:"column:cost;type:numeric(12,2);not null;default:0"`
	WorkDate  time.Time       `gorm:"column:work_date;not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}
