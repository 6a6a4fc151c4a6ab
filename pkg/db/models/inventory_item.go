package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InventoryItem owns the on-hand and allocated counts for one stocked item.
// QtyAllocated is derived from reservations and only ever written by the
// ledger recompute; available quantity is never stored.
type InventoryItem struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	SKU            string          `gorm:"column:sku;not null;uniqueIndex"`
	Name           string          `gorm:"column:name;not null"`
	Qty            int             `gorm:"column:qty;not null;default:0"`
	QtyAllocated   int             `gorm:"column:qty_allocated;not null;default:0"`
	UnitCost       decimal.Decimal `gorm:"column:unit_cost;type:numeric(12,2);not null;default:0"`
	UnitPrice      decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null;default:0"`
	MinStock       int             `gorm:"column:min_stock;not null;default:0"`
	NeedsAttention bool            `gorm:"column:needs_attention;not null;default:false"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// QtyAvailable derives the sellable quantity. It may go negative when an
// operator force-allocates past on-hand stock for an urgent job.
func (i InventoryItem) QtyAvailable() int {
	return i.Qty - i.QtyAllocated
}
