package reservations

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/delgadoservices/fieldstock-backend/internal/audit"
	"github.com/delgadoservices/fieldstock-backend/internal/inventory"
	"github.com/delgadoservices/fieldstock-backend/internal/jobs"
	"github.com/delgadoservices/fieldstock-backend/pkg/db"
	"github.com/delgadoservices/fieldstock-backend/pkg/db/models"
	"github.com/delgadoservices/fieldstock-backend/pkg/enums"
	pkgerrors "github.com/delgadoservices/fieldstock-backend/pkg/errors"
	"github.com/delgadoservices/fieldstock-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service drives the reservation lifecycle. Every mutation runs in one
// transaction that locks the item row, applies the change, recomputes the
// item's allocated quantity, and appends audit entries for each changed
// field.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.MaterialReservation, error)
	Get(ctx context.Context, id uuid.UUID) (*models.MaterialReservation, error)
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.MaterialReservation, error)
	Update(ctx context.Context, input UpdateInput) (*models.MaterialReservation, error)
	Allocate(ctx context.Context, input AllocateInput) (*models.MaterialReservation, error)
	Load(ctx context.Context, input LoadInput) (*models.MaterialReservation, error)
	RecordUsage(ctx context.Context, input UsageInput) (*models.MaterialReservation, error)
	Return(ctx context.Context, input ReturnInput) (*models.MaterialReservation, error)
	Bill(ctx context.Context, input BillInput) (*models.MaterialReservation, error)
	Override(ctx context.Context, input OverrideInput) (*models.MaterialReservation, error)
}

type service struct {
	repo     Repository
	items    inventory.Repository
	ledger   inventory.Service
	jobsRepo jobs.Repository
	recorder audit.Recorder
	tx       txRunner
	logg     *logger.Logger
}

// ServiceParams wires the reservation service dependencies.
type ServiceParams struct {
	Repo     Repository
	Items    inventory.Repository
	Ledger   inventory.Service
	Jobs     jobs.Repository
	Recorder audit.Recorder
	Tx       txRunner
	Logger   *logger.Logger
}

// CreateInput opens a planned reservation for one job and item.
type CreateInput struct {
	JobID          uuid.UUID
	ItemID         uuid.UUID
	QuantityNeeded int
	Notes          *string
	ActorUserID    uuid.UUID
}

// UpdateInput patches reservation fields directly. Counter edits still pass
// the consumption check and status edits the transition table; billed rows
// reject everything here and require Override.
type UpdateInput struct {
	ReservationID    uuid.UUID
	QuantityNeeded   *int
	QuantityLoaded   *int
	QuantityUsed     *int
	QuantityReturned *int
	Status           *enums.ReservationStatus
	Notes            *string
	PurchaseOrderID  *uuid.UUID
	ExpectedArrival  *time.Time
	ActorUserID      uuid.UUID
}

// AllocateInput claims stock for a reservation. Requested is the absolute
// quantity to hold; when it exceeds availability the grant is clamped unless
// Force is set.
type AllocateInput struct {
	ReservationID   uuid.UUID
	Requested       int
	Force           bool
	PurchaseOrderID *uuid.UUID
	ExpectedArrival *time.Time
	ActorUserID     uuid.UUID
}

// LoadInput marks allocated stock as loaded on a truck.
type LoadInput struct {
	ReservationID uuid.UUID
	Quantity      int
	ActorUserID   uuid.UUID
}

// UsageInput records material consumed on site. Quantity adds to any usage
// already recorded.
type UsageInput struct {
	ReservationID uuid.UUID
	Quantity      int
	ActorUserID   uuid.UUID
}

// ReturnInput sends unconsumed material back to the warehouse. A planned
// reservation returns with zero quantity, which cancels it.
type ReturnInput struct {
	ReservationID uuid.UUID
	Quantity      int
	ActorUserID   uuid.UUID
}

// BillInput closes a reservation into the billed state.
type BillInput struct {
	ReservationID uuid.UUID
	ActorUserID   uuid.UUID
}

// OverrideInput corrects counters on a billed reservation. These are the only
// writes permitted after billing and every change is audited as an override.
type OverrideInput struct {
	ReservationID    uuid.UUID
	QuantityUsed     *int
	QuantityReturned *int
	Notes            *string
	ActorUserID      uuid.UUID
}

var allowedTransitions = map[enums.ReservationStatus][]enums.ReservationStatus{
	enums.ReservationStatusPlanned:   {enums.ReservationStatusAllocated, enums.ReservationStatusReturned},
	enums.ReservationStatusAllocated: {enums.ReservationStatusLoaded, enums.ReservationStatusReturned},
	enums.ReservationStatusLoaded:    {enums.ReservationStatusUsed, enums.ReservationStatusReturned},
	enums.ReservationStatusUsed:      {enums.ReservationStatusReturned, enums.ReservationStatusBilled},
	enums.ReservationStatusReturned:  {enums.ReservationStatusBilled},
	enums.ReservationStatusBilled:    {},
}

func canTransition(from, to enums.ReservationStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// NewService wires a reservation service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("reservation repository required")
	}
	if params.Items == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	if params.Jobs == nil {
		return nil, fmt.Errorf("jobs repository required")
	}
	if params.Recorder == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:     params.Repo,
		items:    params.Items,
		ledger:   params.Ledger,
		jobsRepo: params.Jobs,
		recorder: params.Recorder,
		tx:       params.Tx,
		logg:     params.Logger,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.MaterialReservation, error) {
	if input.JobID == uuid.Nil || input.ItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "job id and item id are required")
	}
	if input.QuantityNeeded <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity needed must be positive")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id is required")
	}

	if _, err := s.jobsRepo.GetByID(ctx, input.JobID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "job not found")
	}

	var created *models.MaterialReservation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		items := s.items.WithTx(tx)
		item, err := items.GetByID(ctx, input.ItemID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "item not found")
		}

		reservation := &models.MaterialReservation{
			ID:             uuid.New(),
			JobID:          input.JobID,
			ItemID:         input.ItemID,
			QuantityNeeded: input.QuantityNeeded,
			UnitCost:       item.UnitCost,
			UnitPrice:      item.UnitPrice,
			Status:         enums.ReservationStatusPlanned,
			StockStatus:    stockStatusFor(item.QtyAvailable(), input.QuantityNeeded),
			NeedsPurchase:  item.QtyAvailable() < input.QuantityNeeded,
			Notes:          input.Notes,
		}
		if err := s.repo.WithTx(tx).Create(ctx, reservation); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "reservation already exists for this job and item")
			}
			return fmt.Errorf("creating reservation: %w", err)
		}
		if err := s.recorder.RecordCreate(ctx, tx, reservation, input.ActorUserID); err != nil {
			return fmt.Errorf("recording create audit: %w", err)
		}
		created = reservation
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.MaterialReservation, error) {
	reservation, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "reservation not found")
	}
	return reservation, nil
}

func (s *service) ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.MaterialReservation, error) {
	if jobID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "job id is required")
	}
	return s.repo.ListByJob(ctx, jobID)
}

func (s *service) Allocate(ctx context.Context, input AllocateInput) (*models.MaterialReservation, error) {
	if input.Requested <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "requested quantity must be positive")
	}
	return s.mutate(ctx, input.ReservationID, input.ActorUserID, enums.AuditChangeTypeUpdate,
		func(ctx context.Context, tx *gorm.DB, reservation *models.MaterialReservation, item *models.InventoryItem) error {
			if reservation.Status != enums.ReservationStatusPlanned && reservation.Status != enums.ReservationStatusAllocated {
				return transitionError(reservation.Status, enums.ReservationStatusAllocated)
			}

			// The reservation's own outstanding hold does not compete with it
			// when the allocation is adjusted.
			available := item.QtyAvailable() + reservation.OutstandingAllocation()
			granted := input.Requested
			if !input.Force && granted > available {
				granted = available
				if granted < 0 {
					granted = 0
				}
			}

			if reservation.AllocatedAt == nil {
				reservation.UnitCost = item.UnitCost
				reservation.UnitPrice = item.UnitPrice
				now := time.Now().UTC()
				reservation.AllocatedAt = &now
			}

			reservation.QuantityAllocated = granted
			reservation.Status = enums.ReservationStatusAllocated
			reservation.StockStatus = stockStatusFor(granted, reservation.QuantityNeeded)
			reservation.NeedsPurchase = granted < reservation.QuantityNeeded
			if input.PurchaseOrderID != nil {
				reservation.PurchaseOrderID = input.PurchaseOrderID
			}
			if input.ExpectedArrival != nil {
				reservation.ExpectedArrival = input.ExpectedArrival
			}

			if granted < input.Requested && s.logg != nil {
				s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
					"reservation_id": reservation.ID.String(),
					"requested":      input.Requested,
					"granted":        granted,
				}), "allocation clamped to availability")
			}
			return nil
		})
}

func (s *service) Load(ctx context.Context, input LoadInput) (*models.MaterialReservation, error) {
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	return s.mutate(ctx, input.ReservationID, input.ActorUserID, enums.AuditChangeTypeUpdate,
		func(ctx context.Context, tx *gorm.DB, reservation *models.MaterialReservation, item *models.InventoryItem) error {
			if reservation.Status != enums.ReservationStatusAllocated && reservation.Status != enums.ReservationStatusLoaded {
				return transitionError(reservation.Status, enums.ReservationStatusLoaded)
			}
			// quantity_loaded is a staging counter, not a consumption counter.
			// Crews load past the hold all the time; consumption is bounded at
			// usage recording instead.
			if input.Quantity > reservation.QuantityAllocated-reservation.QuantityReturned && s.logg != nil {
				s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
					"reservation_id": reservation.ID.String(),
					"quantity":       input.Quantity,
					"allocated":      reservation.QuantityAllocated,
					"returned":       reservation.QuantityReturned,
				}), "loaded quantity exceeds outstanding allocation")
			}
			reservation.QuantityLoaded = input.Quantity
			reservation.Status = enums.ReservationStatusLoaded
			return nil
		})
}

func (s *service) RecordUsage(ctx context.Context, input UsageInput) (*models.MaterialReservation, error) {
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	return s.mutate(ctx, input.ReservationID, input.ActorUserID, enums.AuditChangeTypeUpdate,
		func(ctx context.Context, tx *gorm.DB, reservation *models.MaterialReservation, item *models.InventoryItem) error {
			if reservation.Status != enums.ReservationStatusLoaded && reservation.Status != enums.ReservationStatusUsed {
				return transitionError(reservation.Status, enums.ReservationStatusUsed)
			}
			newUsed := reservation.QuantityUsed + input.Quantity
			if err := checkConsumption(newUsed, reservation.QuantityReturned, reservation.QuantityAllocated); err != nil {
				return err
			}

			reservation.QuantityUsed = newUsed
			reservation.Status = enums.ReservationStatusUsed
			if reservation.UsedAt == nil {
				now := time.Now().UTC()
				reservation.UsedAt = &now
			}
			applyLineAmounts(reservation)
			return nil
		})
}

func (s *service) Return(ctx context.Context, input ReturnInput) (*models.MaterialReservation, error) {
	return s.mutate(ctx, input.ReservationID, input.ActorUserID, enums.AuditChangeTypeUpdate,
		func(ctx context.Context, tx *gorm.DB, reservation *models.MaterialReservation, item *models.InventoryItem) error {
			// A planned reservation holds no stock; returning it is a cancel.
			if reservation.Status == enums.ReservationStatusPlanned {
				reservation.Status = enums.ReservationStatusReturned
				reservation.NeedsPurchase = false
				return nil
			}
			if !canTransition(reservation.Status, enums.ReservationStatusReturned) {
				return transitionError(reservation.Status, enums.ReservationStatusReturned)
			}
			if input.Quantity <= 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
			}
			if input.Quantity > reservation.Unconsumed() {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot return more than the unconsumed quantity").
					WithDetails(map[string]any{
						"quantity":   input.Quantity,
						"unconsumed": reservation.Unconsumed(),
					})
			}

			reservation.QuantityReturned += input.Quantity
			// The row only leaves its working status once nothing was used and
			// nothing is left to return. A partial return from used stays used
			// so the remaining hold keeps counting against the item.
			if reservation.QuantityUsed == 0 && reservation.Unconsumed() == 0 {
				reservation.Status = enums.ReservationStatusReturned
			}
			return nil
		})
}

func (s *service) Bill(ctx context.Context, input BillInput) (*models.MaterialReservation, error) {
	return s.mutate(ctx, input.ReservationID, input.ActorUserID, enums.AuditChangeTypeUpdate,
		func(ctx context.Context, tx *gorm.DB, reservation *models.MaterialReservation, item *models.InventoryItem) error {
			if !canTransition(reservation.Status, enums.ReservationStatusBilled) {
				return transitionError(reservation.Status, enums.ReservationStatusBilled)
			}

			// Billing retires the hold, so the consumed units leave physical
			// stock here. Without this, availability would bounce back up by
			// the used quantity the moment the row stops counting.
			if reservation.QuantityUsed > 0 {
				items := s.items.WithTx(tx)
				if err := items.AdjustQty(ctx, reservation.ItemID, -reservation.QuantityUsed); err != nil {
					return fmt.Errorf("consuming stock for billed reservation: %w", err)
				}
				if err := items.CreateStockTransaction(ctx, &models.StockTransaction{
					ItemID:      reservation.ItemID,
					Delta:       -reservation.QuantityUsed,
					Reason:      enums.StockTransactionReasonConsumption,
					ActorUserID: input.ActorUserID,
				}); err != nil {
					return fmt.Errorf("recording consumption: %w", err)
				}
			}

			applyLineAmounts(reservation)
			reservation.Status = enums.ReservationStatusBilled
			now := time.Now().UTC()
			reservation.BilledAt = &now
			return nil
		})
}

func (s *service) Override(ctx context.Context, input OverrideInput) (*models.MaterialReservation, error) {
	if input.QuantityUsed == nil && input.QuantityReturned == nil && input.Notes == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "override requires at least one field")
	}
	return s.mutate(ctx, input.ReservationID, input.ActorUserID, enums.AuditChangeTypeOverride,
		func(ctx context.Context, tx *gorm.DB, reservation *models.MaterialReservation, item *models.InventoryItem) error {
			if reservation.Status != enums.ReservationStatusBilled {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "override applies only to billed reservations").
					WithDetails(map[string]any{"status": reservation.Status.String()})
			}

			used := reservation.QuantityUsed
			returned := reservation.QuantityReturned
			if input.QuantityUsed != nil {
				used = *input.QuantityUsed
			}
			if input.QuantityReturned != nil {
				returned = *input.QuantityReturned
			}
			if used < 0 || returned < 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "quantities cannot be negative")
			}
			if err := checkConsumption(used, returned, reservation.QuantityAllocated); err != nil {
				return err
			}

			if used != reservation.QuantityUsed {
				items := s.items.WithTx(tx)
				delta := reservation.QuantityUsed - used
				if err := items.AdjustQty(ctx, reservation.ItemID, delta); err != nil {
					return fmt.Errorf("correcting consumed stock: %w", err)
				}
				if err := items.CreateStockTransaction(ctx, &models.StockTransaction{
					ItemID:      reservation.ItemID,
					Delta:       delta,
					Reason:      enums.StockTransactionReasonManualAdjust,
					ActorUserID: input.ActorUserID,
				}); err != nil {
					return fmt.Errorf("recording correction: %w", err)
				}
			}

			reservation.QuantityUsed = used
			reservation.QuantityReturned = returned
			if input.Notes != nil {
				reservation.Notes = input.Notes
			}
			applyLineAmounts(reservation)
			return nil
		})
}

func (s *service) Update(ctx context.Context, input UpdateInput) (*models.MaterialReservation, error) {
	return s.mutate(ctx, input.ReservationID, input.ActorUserID, enums.AuditChangeTypeUpdate,
		func(ctx context.Context, tx *gorm.DB, reservation *models.MaterialReservation, item *models.InventoryItem) error {
			if reservation.Status == enums.ReservationStatusBilled {
				return pkgerrors.New(pkgerrors.CodeBilledImmutable, "billed reservations require an override")
			}

			if input.QuantityNeeded != nil {
				if *input.QuantityNeeded <= 0 {
					return pkgerrors.New(pkgerrors.CodeValidation, "quantity needed must be positive")
				}
				reservation.QuantityNeeded = *input.QuantityNeeded
				reservation.NeedsPurchase = reservation.QuantityAllocated < reservation.QuantityNeeded
			}
			if input.QuantityLoaded != nil {
				reservation.QuantityLoaded = *input.QuantityLoaded
			}
			used := reservation.QuantityUsed
			returned := reservation.QuantityReturned
			if input.QuantityUsed != nil {
				used = *input.QuantityUsed
			}
			if input.QuantityReturned != nil {
				returned = *input.QuantityReturned
			}
			if used < 0 || returned < 0 || (input.QuantityLoaded != nil && *input.QuantityLoaded < 0) {
				return pkgerrors.New(pkgerrors.CodeValidation, "quantities cannot be negative")
			}
			if err := checkConsumption(used, returned, reservation.QuantityAllocated); err != nil {
				return err
			}
			reservation.QuantityUsed = used
			reservation.QuantityReturned = returned

			if input.Status != nil && *input.Status != reservation.Status {
				// Billing carries stock side effects, so it only happens
				// through Bill.
				if *input.Status == enums.ReservationStatusBilled {
					return pkgerrors.New(pkgerrors.CodeStateConflict, "billing is a dedicated operation")
				}
				if !canTransition(reservation.Status, *input.Status) {
					return transitionError(reservation.Status, *input.Status)
				}
				reservation.Status = *input.Status
			}
			if input.Notes != nil {
				reservation.Notes = input.Notes
			}
			if input.PurchaseOrderID != nil {
				reservation.PurchaseOrderID = input.PurchaseOrderID
			}
			if input.ExpectedArrival != nil {
				reservation.ExpectedArrival = input.ExpectedArrival
			}
			if reservation.QuantityUsed > 0 {
				applyLineAmounts(reservation)
			}
			return nil
		})
}

// mutate is the shared transaction shape for every reservation write: lock
// the item, apply the change, persist, recompute the ledger, audit the diff.
func (s *service) mutate(
	ctx context.Context,
	reservationID uuid.UUID,
	actor uuid.UUID,
	changeType enums.AuditChangeType,
	apply func(ctx context.Context, tx *gorm.DB, reservation *models.MaterialReservation, item *models.InventoryItem) error,
) (*models.MaterialReservation, error) {
	if reservationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation id is required")
	}
	if actor == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id is required")
	}

	var result *models.MaterialReservation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		reservation, err := repo.GetByID(ctx, reservationID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "reservation not found")
		}
		before := *reservation

		item, err := s.items.WithTx(tx).GetForUpdate(ctx, reservation.ItemID)
		if err != nil {
			return fmt.Errorf("locking item %s: %w", reservation.ItemID, err)
		}

		if err := apply(ctx, tx, reservation, item); err != nil {
			return err
		}

		if err := repo.Save(ctx, reservation); err != nil {
			return fmt.Errorf("saving reservation: %w", err)
		}
		if _, err := s.ledger.AdjustAllocated(ctx, tx, reservation.ItemID); err != nil {
			return err
		}
		if err := s.recorder.RecordChanges(ctx, tx, &before, reservation, changeType, actor); err != nil {
			return fmt.Errorf("recording audit: %w", err)
		}
		result = reservation
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func checkConsumption(used, returned, allocated int) error {
	if used+returned > allocated {
		return pkgerrors.New(pkgerrors.CodeOverConsumption, "used plus returned cannot exceed the allocated quantity").
			WithDetails(map[string]any{
				"quantity_used":      used,
				"quantity_returned":  returned,
				"quantity_allocated": allocated,
			})
	}
	return nil
}

func applyLineAmounts(reservation *models.MaterialReservation) {
	used := decimal.NewFromInt(int64(reservation.QuantityUsed))
	reservation.LineCost = reservation.UnitCost.Mul(used)
	reservation.LineTotal = reservation.UnitPrice.Mul(used)
}

func stockStatusFor(available, needed int) enums.StockStatus {
	switch {
	case available >= needed:
		return enums.StockStatusInStock
	case available > 0:
		return enums.StockStatusPartial
	default:
		return enums.StockStatusOutOfStock
	}
}

func transitionError(from, to enums.ReservationStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict,
		fmt.Sprintf("cannot move a %s reservation to %s", from, to)).
		WithDetails(map[string]any{"from": from.String(), "to": to.String()})
}
