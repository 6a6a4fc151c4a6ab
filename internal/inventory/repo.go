package inventory

import (
	"context"

	"github.com/delgadoservices/fieldstock-backend/pkg/db/models"
	"github.com/delgadoservices/fieldstock-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository manages persistence for inventory items and stock transactions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, item *models.InventoryItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error)
	SumOutstanding(ctx context.Context, itemID uuid.UUID) (int, error)
	UpdateAllocated(ctx context.Context, itemID uuid.UUID, qtyAllocated int, needsAttention bool) error
	AdjustQty(ctx context.Context, itemID uuid.UUID, delta int) error
	CreateStockTransaction(ctx context.Context, txn *models.StockTransaction) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an inventory repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, item *models.InventoryItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error) {
	var item models.InventoryItem
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// GetForUpdate row-locks the item so concurrent transitions on the same item
// serialize. SQLite (tests) has no row locks; writes there serialize on the
// database file.
func (r *repository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error) {
	q := r.db.WithContext(ctx)
	if q.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var item models.InventoryItem
	if err := q.First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// SumOutstanding computes the reservation-side allocation figure directly:
// Σ(quantity_allocated - quantity_returned) over ledger-counted statuses.
func (r *repository) SumOutstanding(ctx context.Context, itemID uuid.UUID) (int, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.MaterialReservation{}).
		Select("COALESCE(SUM(quantity_allocated - quantity_returned), 0)").
		Where("item_id = ? AND status IN ?", itemID, []enums.ReservationStatus{
			enums.ReservationStatusAllocated,
			enums.ReservationStatusLoaded,
			enums.ReservationStatusUsed,
		}).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return int(total), nil
}

func (r *repository) UpdateAllocated(ctx context.Context, itemID uuid.UUID, qtyAllocated int, needsAttention bool) error {
	return r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("id = ?", itemID).
		Updates(map[string]any{
			"qty_allocated":   qtyAllocated,
			"needs_attention": needsAttention,
		}).Error
}

func (r *repository) AdjustQty(ctx context.Context, itemID uuid.UUID, delta int) error {
	return r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("id = ?", itemID).
		Update("qty", gorm.Expr("qty + ?", delta)).Error
}

func (r *repository) CreateStockTransaction(ctx context.Context, txn *models.StockTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}
