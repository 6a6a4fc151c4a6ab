package audit

import (
	"context"
	"fmt"
	"strconv"

	"github.com/delgadoservices/fieldstock-backend/pkg/db/models"
	"github.com/delgadoservices/fieldstock-backend/pkg/enums"
	"github.com/delgadoservices/fieldstock-backend/pkg/metrics"
	"github.com/delgadoservices/fieldstock-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Tracked field names as they appear in audit rows.
const (
	FieldStatus            = "status"
	FieldQuantityNeeded    = "quantity_needed"
	FieldQuantityAllocated = "quantity_allocated"
	FieldQuantityLoaded    = "quantity_loaded"
	FieldQuantityUsed      = "quantity_used"
	FieldQuantityReturned  = "quantity_returned"
	FieldUnitCost          = "unit_cost"
	FieldUnitPrice         = "unit_price"
	FieldLineCost          = "line_cost"
	FieldLineTotal         = "line_total"
	FieldNeedsPurchase     = "needs_purchase"
	FieldStockStatus       = "stock_status"
	FieldPurchaseOrderID   = "purchase_order_id"
)

// Recorder diffs reservation row states and appends one audit entry per
// changed tracked field. It never validates or rejects the change it
// describes; the append shares the caller's transaction so the entry is
// durable exactly when the fact is.
type Recorder interface {
	RecordCreate(ctx context.Context, tx *gorm.DB, created *models.MaterialReservation, actor uuid.UUID) error
	RecordChanges(ctx context.Context, tx *gorm.DB, before, after *models.MaterialReservation, changeType enums.AuditChangeType, actor uuid.UUID) error
	ListByReservation(ctx context.Context, reservationID uuid.UUID, params pagination.Params) ([]models.ReservationAuditEntry, error)
	ListByJob(ctx context.Context, jobID uuid.UUID, params pagination.Params) ([]models.ReservationAuditEntry, error)
}

type recorder struct {
	repo    Repository
	metrics *metrics.LedgerMetrics
}

// NewRecorder wires an audit recorder with the provided repository.
func NewRecorder(repo Repository, ledgerMetrics *metrics.LedgerMetrics) (Recorder, error) {
	if repo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	return &recorder{repo: repo, metrics: ledgerMetrics}, nil
}

func (r *recorder) RecordCreate(ctx context.Context, tx *gorm.DB, created *models.MaterialReservation, actor uuid.UUID) error {
	entries := []models.ReservationAuditEntry{
		r.entry(created, enums.AuditChangeTypeCreate, FieldStatus, nil, strPtr(created.Status.String()), actor),
		r.entry(created, enums.AuditChangeTypeCreate, FieldQuantityNeeded, nil, strPtr(strconv.Itoa(created.QuantityNeeded)), actor),
	}
	if err := r.repo.WithTx(tx).CreateAll(ctx, entries); err != nil {
		return fmt.Errorf("appending audit entries: %w", err)
	}
	r.metrics.IncAuditEntry(enums.AuditChangeTypeCreate.String())
	return nil
}

func (r *recorder) RecordChanges(ctx context.Context, tx *gorm.DB, before, after *models.MaterialReservation, changeType enums.AuditChangeType, actor uuid.UUID) error {
	entries := diff(before, after, changeType, actor)
	if len(entries) == 0 {
		return nil
	}
	if err := r.repo.WithTx(tx).CreateAll(ctx, entries); err != nil {
		return fmt.Errorf("appending audit entries: %w", err)
	}
	for range entries {
		r.metrics.IncAuditEntry(changeType.String())
	}
	return nil
}

func (r *recorder) ListByReservation(ctx context.Context, reservationID uuid.UUID, params pagination.Params) ([]models.ReservationAuditEntry, error) {
	return r.repo.ListByReservation(ctx, reservationID, params)
}

func (r *recorder) ListByJob(ctx context.Context, jobID uuid.UUID, params pagination.Params) ([]models.ReservationAuditEntry, error) {
	return r.repo.ListByJob(ctx, jobID, params)
}

func (r *recorder) entry(res *models.MaterialReservation, changeType enums.AuditChangeType, field string, oldValue, newValue *string, actor uuid.UUID) models.ReservationAuditEntry {
	return models.ReservationAuditEntry{
		ReservationID: res.ID,
		JobID:         res.JobID,
		ItemID:        res.ItemID,
		ChangeType:    changeType,
		Field:         field,
		OldValue:      oldValue,
		NewValue:      newValue,
		ActorUserID:   actor,
	}
}

// diff serializes every tracked field that changed between the two row
// states. Status changes are classified separately so trails read naturally.
func diff(before, after *models.MaterialReservation, changeType enums.AuditChangeType, actor uuid.UUID) []models.ReservationAuditEntry {
	var entries []models.ReservationAuditEntry

	add := func(field, oldVal, newVal string, ct enums.AuditChangeType) {
		entries = append(entries, models.ReservationAuditEntry{
			ReservationID: after.ID,
			JobID:         after.JobID,
			ItemID:        after.ItemID,
			ChangeType:    ct,
			Field:         field,
			OldValue:      strPtr(oldVal),
			NewValue:      strPtr(newVal),
			ActorUserID:   actor,
		})
	}

	if before.Status != after.Status {
		statusChange := enums.AuditChangeTypeStatusChange
		if changeType == enums.AuditChangeTypeOverride {
			statusChange = enums.AuditChangeTypeOverride
		}
		add(FieldStatus, before.Status.String(), after.Status.String(), statusChange)
	}

	intFields := []struct {
		name          string
		before, after int
	}{
		{FieldQuantityNeeded, before.QuantityNeeded, after.QuantityNeeded},
		{FieldQuantityAllocated, before.QuantityAllocated, after.QuantityAllocated},
		{FieldQuantityLoaded, before.QuantityLoaded, after.QuantityLoaded},
		{FieldQuantityUsed, before.QuantityUsed, after.QuantityUsed},
		{FieldQuantityReturned, before.QuantityReturned, after.QuantityReturned},
	}
	for _, f := range intFields {
		if f.before != f.after {
			add(f.name, strconv.Itoa(f.before), strconv.Itoa(f.after), changeType)
		}
	}

	decimalFields := []struct {
		name          string
		before, after string
	}{
		{FieldUnitCost, before.UnitCost.String(), after.UnitCost.String()},
		{FieldUnitPrice, before.UnitPrice.String(), after.UnitPrice.String()},
		{FieldLineCost, before.LineCost.String(), after.LineCost.String()},
		{FieldLineTotal, before.LineTotal.String(), after.LineTotal.String()},
	}
	for _, f := range decimalFields {
		if f.before != f.after {
			add(f.name, f.before, f.after, changeType)
		}
	}

	if before.NeedsPurchase != after.NeedsPurchase {
		add(FieldNeedsPurchase, strconv.FormatBool(before.NeedsPurchase), strconv.FormatBool(after.NeedsPurchase), changeType)
	}
	if before.StockStatus != after.StockStatus {
		add(FieldStockStatus, before.StockStatus.String(), after.StockStatus.String(), changeType)
	}
	if uuidPtrString(before.PurchaseOrderID) != uuidPtrString(after.PurchaseOrderID) {
		add(FieldPurchaseOrderID, uuidPtrString(before.PurchaseOrderID), uuidPtrString(after.PurchaseOrderID), changeType)
	}

	return entries
}

func strPtr(value string) *string {
	return &value
}

func uuidPtrString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
