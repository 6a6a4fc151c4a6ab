package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/delgadoservices/fieldstock-backend/pkg/db/models"
	"github.com/delgadoservices/fieldstock-backend/pkg/enums"
	pkgerrors "github.com/delgadoservices/fieldstock-backend/pkg/errors"
	"github.com/delgadoservices/fieldstock-backend/pkg/logger"
	"github.com/delgadoservices/fieldstock-backend/pkg/metrics"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service owns the derived allocated/available quantities. Every reservation
// mutation calls AdjustAllocated inside its own transaction so availability
// is never observably stale.
type Service interface {
	AdjustAllocated(ctx context.Context, tx *gorm.DB, itemID uuid.UUID) (*models.InventoryItem, error)
	AdjustOnHand(ctx context.Context, input AdjustOnHandInput) (*models.InventoryItem, error)
	Availability(ctx context.Context, itemID uuid.UUID) (*Availability, error)
	CheckInvariant(ctx context.Context, itemID uuid.UUID) error
}

type service struct {
	repo    Repository
	tx      txRunner
	logg    *logger.Logger
	metrics *metrics.LedgerMetrics
}

// ServiceParams wires the inventory service dependencies.
type ServiceParams struct {
	Repo    Repository
	Tx      txRunner
	Logger  *logger.Logger
	Metrics *metrics.LedgerMetrics
}

// AdjustOnHandInput records a change to physical stock.
type AdjustOnHandInput struct {
	ItemID      uuid.UUID
	Delta       int
	Reason      string
	ActorUserID uuid.UUID
}

// Availability is the read-only ledger view exposed per item.
type Availability struct {
	ItemID         uuid.UUID `json:"item_id"`
	SKU            string    `json:"sku"`
	Qty            int       `json:"qty"`
	QtyAllocated   int       `json:"qty_allocated"`
	QtyAvailable   int       `json:"qty_available"`
	MinStock       int       `json:"min_stock"`
	NeedsAttention bool      `json:"needs_attention"`
}

// NewService wires an inventory service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		logg:    params.Logger,
		metrics: params.Metrics,
	}, nil
}

// AdjustAllocated recomputes qty_allocated from the reservation rows. It must
// run inside the same transaction as the reservation mutation that touched
// the item; the item row is locked first. A negative available quantity is
// flagged for replenishment attention, never rejected.
func (s *service) AdjustAllocated(ctx context.Context, tx *gorm.DB, itemID uuid.UUID) (*models.InventoryItem, error) {
	started := time.Now()
	repo := s.repo.WithTx(tx)

	item, err := repo.GetForUpdate(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("locking item %s: %w", itemID, err)
	}

	outstanding, err := repo.SumOutstanding(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("summing reservations for item %s: %w", itemID, err)
	}

	available := item.Qty - outstanding
	needsAttention := available < item.MinStock

	if err := repo.UpdateAllocated(ctx, itemID, outstanding, needsAttention); err != nil {
		return nil, fmt.Errorf("writing allocated qty for item %s: %w", itemID, err)
	}

	item.QtyAllocated = outstanding
	item.NeedsAttention = needsAttention

	s.metrics.ObserveRecompute("adjust_allocated", time.Since(started))
	if available < 0 && s.logg != nil {
		s.logg.Warn(s.logg.WithItemID(ctx, itemID.String()), "available quantity negative after recompute")
	}
	return item, nil
}

func (s *service) AdjustOnHand(ctx context.Context, input AdjustOnHandInput) (*models.InventoryItem, error) {
	if input.ItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}
	if input.Delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delta must be non-zero")
	}
	reason, err := enums.ParseStockTransactionReason(input.Reason)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reason")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id is required")
	}

	var updated *models.InventoryItem
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		item, err := repo.GetForUpdate(ctx, input.ItemID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "item not found")
		}
		if item.Qty+input.Delta < 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "on-hand quantity cannot go negative").
				WithDetails(map[string]any{"qty": item.Qty, "delta": input.Delta})
		}

		if err := repo.AdjustQty(ctx, input.ItemID, input.Delta); err != nil {
			return fmt.Errorf("adjusting on-hand qty: %w", err)
		}
		if err := repo.CreateStockTransaction(ctx, &models.StockTransaction{
			ItemID:      input.ItemID,
			Delta:       input.Delta,
			Reason:      reason,
			ActorUserID: input.ActorUserID,
		}); err != nil {
			return fmt.Errorf("recording stock transaction: %w", err)
		}

		refreshed, err := s.AdjustAllocated(ctx, tx, input.ItemID)
		if err != nil {
			return err
		}
		updated = refreshed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Availability(ctx context.Context, itemID uuid.UUID) (*Availability, error) {
	if itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}
	item, err := s.repo.GetByID(ctx, itemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "item not found")
	}
	return &Availability{
		ItemID:         item.ID,
		SKU:            item.SKU,
		Qty:            item.Qty,
		QtyAllocated:   item.QtyAllocated,
		QtyAvailable:   item.QtyAvailable(),
		MinStock:       item.MinStock,
		NeedsAttention: item.NeedsAttention,
	}, nil
}

// CheckInvariant compares the stored allocated quantity against a direct sum
// over reservations. A mismatch is a bug, not user error; it is surfaced to
// operators and counted, never shown on mutation paths.
func (s *service) CheckInvariant(ctx context.Context, itemID uuid.UUID) error {
	item, err := s.repo.GetByID(ctx, itemID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "item not found")
	}
	outstanding, err := s.repo.SumOutstanding(ctx, itemID)
	if err != nil {
		return fmt.Errorf("summing reservations: %w", err)
	}
	if item.QtyAllocated == outstanding {
		return nil
	}

	s.metrics.IncInvariantViolation(item.SKU)
	violation := pkgerrors.New(pkgerrors.CodeInvariantViolation, "stored allocation disagrees with reservation sum").
		WithDetails(map[string]any{
			"item_id":         item.ID,
			"stored":          item.QtyAllocated,
			"reservation_sum": outstanding,
		})
	if s.logg != nil {
		s.logg.Error(s.logg.WithItemID(ctx, itemID.String()), "ledger invariant violation", violation)
	}
	return violation
}
