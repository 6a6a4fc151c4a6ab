package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/delgadoservices/fieldstock-backend/pkg/enums"
)

// MaterialReservation is a claim against warehouse stock for one job and one
// item. Rows are never deleted; a cancelled reservation is fully returned
// with nothing used.
type MaterialReservation struct {
	ID     uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	JobID  uuid.UUID `gorm:"column:job_id;type:uuid;not null;uniqueIndex:uq_material_reservations_job_item"`
	ItemID uuid.UUID `gorm:"column:item_id;type:uuid;not null;uniqueIndex:uq_material_reservations_job_item"`

	QuantityNeeded    int `gorm:"column:quantity_needed;not null;default:0"`
	QuantityAllocated int `gorm:"column:quantity_allocated;not null;default:0"`
	QuantityLoaded    int `gorm:"column:quantity_loaded;not null;default:0"`
	QuantityUsed      int `gorm:"column:quantity_used;not null;default:0"`
	QuantityReturned  int `gorm:"column:quantity_returned;not null;default:0"`

	// UnitCost and UnitPrice are frozen at first allocation so later catalog
	// changes never alter historical job costing.
	UnitCost  decimal.Decimal `gorm:"column:unit_cost;type:numeric(12,2);not null;default:0"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null;default:0"`
	LineCost  decimal.Decimal `gorm:"column:line_cost;type:numeric(12,2);not null;default:0"`
	LineTotal decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null;default:0"`

	Status          enums.ReservationStatus `gorm:"column:status;not null;default:'planned'"`
	StockStatus     enums.StockStatus       `gorm:"column:stock_status;not null;default:'in_stock'"`
	NeedsPurchase   bool                    `gorm:"column:needs_purchase;not null;default:false"`
	PurchaseOrderID *uuid.UUID              `gorm:"column:purchase_order_id;type:uuid"`
	ExpectedArrival *time.Time              `gorm:"column:expected_arrival"`
	Notes           *string                 `gorm:"column:notes"`

	AllocatedAt *time.Time `gorm:"column:allocated_at"`
	UsedAt      *time.Time `gorm:"column:used_at"`
	BilledAt    *time.Time `gorm:"column:billed_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// OutstandingAllocation is the quantity this reservation still holds against
// the item's ledger while in a ledger-counted status.
func (m MaterialReservation) OutstandingAllocation() int {
	if !m.Status.CountsAgainstLedger() {
		return 0
	}
	return m.QuantityAllocated - m.QuantityReturned
}

// Unconsumed is the quantity eligible for return.
func (m MaterialReservation) Unconsumed() int {
	return m.QuantityAllocated - m.QuantityUsed - m.QuantityReturned
}
