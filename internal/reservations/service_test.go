package reservations

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/delgadoservices/fieldstock-backend/internal/audit"
	"github.com/delgadoservices/fieldstock-backend/internal/inventory"
	"github.com/delgadoservices/fieldstock-backend/internal/jobs"
	"github.com/delgadoservices/fieldstock-backend/pkg/db/models"
	"github.com/delgadoservices/fieldstock-backend/pkg/enums"
	pkgerrors "github.com/delgadoservices/fieldstock-backend/pkg/errors"
	"github.com/delgadoservices/fieldstock-backend/pkg/pagination"
)

type fakeTx struct{}

func (fakeTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeReservationRepo struct {
	rows map[uuid.UUID]*models.MaterialReservation
}

func newFakeReservationRepo() *fakeReservationRepo {
	return &fakeReservationRepo{rows: make(map[uuid.UUID]*models.MaterialReservation)}
}

func (r *fakeReservationRepo) WithTx(tx *gorm.DB) Repository { return r }

func (r *fakeReservationRepo) Create(ctx context.Context, reservation *models.MaterialReservation) error {
	for _, existing := range r.rows {
		if existing.JobID == reservation.JobID && existing.ItemID == reservation.ItemID {
			return &pgconn.PgError{Code: "23505", ConstraintName: "uq_material_reservations_job_item"}
		}
	}
	clone := *reservation
	r.rows[reservation.ID] = &clone
	return nil
}

func (r *fakeReservationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.MaterialReservation, error) {
	row, ok := r.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *row
	return &clone, nil
}

func (r *fakeReservationRepo) GetByJobAndItem(ctx context.Context, jobID, itemID uuid.UUID) (*models.MaterialReservation, error) {
	for _, row := range r.rows {
		if row.JobID == jobID && row.ItemID == itemID {
			clone := *row
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeReservationRepo) ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.MaterialReservation, error) {
	var out []models.MaterialReservation
	for _, row := range r.rows {
		if row.JobID == jobID {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (r *fakeReservationRepo) Save(ctx context.Context, reservation *models.MaterialReservation) error {
	clone := *reservation
	r.rows[reservation.ID] = &clone
	return nil
}

type fakeInventoryRepo struct {
	items        map[uuid.UUID]*models.InventoryItem
	reservations *fakeReservationRepo
	transactions []models.StockTransaction
}

func (r *fakeInventoryRepo) WithTx(tx *gorm.DB) inventory.Repository { return r }

func (r *fakeInventoryRepo) Create(ctx context.Context, item *models.InventoryItem) error {
	clone := *item
	r.items[item.ID] = &clone
	return nil
}

func (r *fakeInventoryRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error) {
	item, ok := r.items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *item
	return &clone, nil
}

func (r *fakeInventoryRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeInventoryRepo) SumOutstanding(ctx context.Context, itemID uuid.UUID) (int, error) {
	total := 0
	for _, row := range r.reservations.rows {
		if row.ItemID == itemID {
			total += row.OutstandingAllocation()
		}
	}
	return total, nil
}

func (r *fakeInventoryRepo) UpdateAllocated(ctx context.Context, itemID uuid.UUID, qtyAllocated int, needsAttention bool) error {
	item, ok := r.items[itemID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	item.QtyAllocated = qtyAllocated
	item.NeedsAttention = needsAttention
	return nil
}

func (r *fakeInventoryRepo) AdjustQty(ctx context.Context, itemID uuid.UUID, delta int) error {
	item, ok := r.items[itemID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	item.Qty += delta
	return nil
}

func (r *fakeInventoryRepo) CreateStockTransaction(ctx context.Context, txn *models.StockTransaction) error {
	r.transactions = append(r.transactions, *txn)
	return nil
}

type fakeAuditRepo struct {
	entries []models.ReservationAuditEntry
}

func (r *fakeAuditRepo) WithTx(tx *gorm.DB) audit.Repository { return r }

func (r *fakeAuditRepo) CreateAll(ctx context.Context, entries []models.ReservationAuditEntry) error {
	r.entries = append(r.entries, entries...)
	return nil
}

func (r *fakeAuditRepo) ListByReservation(ctx context.Context, reservationID uuid.UUID, params pagination.Params) ([]models.ReservationAuditEntry, error) {
	var out []models.ReservationAuditEntry
	for _, entry := range r.entries {
		if entry.ReservationID == reservationID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (r *fakeAuditRepo) ListByJob(ctx context.Context, jobID uuid.UUID, params pagination.Params) ([]models.ReservationAuditEntry, error) {
	var out []models.ReservationAuditEntry
	for _, entry := range r.entries {
		if entry.JobID == jobID {
			out = append(out, entry)
		}
	}
	return out, nil
}

type fakeJobsRepo struct {
	rows map[uuid.UUID]*models.Job
}

func (r *fakeJobsRepo) WithTx(tx *gorm.DB) jobs.Repository { return r }

func (r *fakeJobsRepo) Create(ctx context.Context, job *models.Job) error {
	clone := *job
	r.rows[job.ID] = &clone
	return nil
}

func (r *fakeJobsRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	job, ok := r.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *job
	return &clone, nil
}

type fixture struct {
	svc       Service
	resRepo   *fakeReservationRepo
	invRepo   *fakeInventoryRepo
	auditRepo *fakeAuditRepo
	jobsRepo  *fakeJobsRepo
	jobID     uuid.UUID
	itemID    uuid.UUID
	actor     uuid.UUID
}

func newFixture(t *testing.T, qty int) *fixture {
	t.Helper()

	resRepo := newFakeReservationRepo()
	invRepo := &fakeInventoryRepo{
		items:        make(map[uuid.UUID]*models.InventoryItem),
		reservations: resRepo,
	}
	auditRepo := &fakeAuditRepo{}
	jobsRepo := &fakeJobsRepo{rows: make(map[uuid.UUID]*models.Job)}

	itemID := uuid.New()
	invRepo.items[itemID] = &models.InventoryItem{
		ID:        itemID,
		SKU:       "PVC-0075",
		Name:      "3/4in PVC pipe",
		Qty:       qty,
		UnitCost:  decimal.NewFromInt(4),
		UnitPrice: decimal.NewFromInt(10),
	}

	jobID := uuid.New()
	jobsRepo.rows[jobID] = &models.Job{ID: jobID, BillingType: enums.JobBillingTypeFixed}

	ledger, err := inventory.NewService(inventory.ServiceParams{Repo: invRepo, Tx: fakeTx{}})
	if err != nil {
		t.Fatalf("inventory service: %v", err)
	}
	recorder, err := audit.NewRecorder(auditRepo, nil)
	if err != nil {
		t.Fatalf("audit recorder: %v", err)
	}
	svc, err := NewService(ServiceParams{
		Repo:     resRepo,
		Items:    invRepo,
		Ledger:   ledger,
		Jobs:     jobsRepo,
		Recorder: recorder,
		Tx:       fakeTx{},
	})
	if err != nil {
		t.Fatalf("reservation service: %v", err)
	}

	return &fixture{
		svc:       svc,
		resRepo:   resRepo,
		invRepo:   invRepo,
		auditRepo: auditRepo,
		jobsRepo:  jobsRepo,
		jobID:     jobID,
		itemID:    itemID,
		actor:     uuid.New(),
	}
}

func (f *fixture) item(t *testing.T) *models.InventoryItem {
	t.Helper()
	item, ok := f.invRepo.items[f.itemID]
	if !ok {
		t.Fatalf("item %s missing", f.itemID)
	}
	return item
}

func TestReservationLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 50)

	first, err := f.svc.Create(ctx, CreateInput{
		JobID:          f.jobID,
		ItemID:         f.itemID,
		QuantityNeeded: 20,
		ActorUserID:    f.actor,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.Status != enums.ReservationStatusPlanned {
		t.Fatalf("status = %s, want planned", first.Status)
	}
	if first.NeedsPurchase {
		t.Fatal("needs_purchase should be false with stock on hand")
	}

	first, err = f.svc.Allocate(ctx, AllocateInput{ReservationID: first.ID, Requested: 20, ActorUserID: f.actor})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if first.QuantityAllocated != 20 || first.Status != enums.ReservationStatusAllocated {
		t.Fatalf("allocated = %d status = %s", first.QuantityAllocated, first.Status)
	}
	if first.AllocatedAt == nil {
		t.Fatal("allocated_at not set")
	}
	if item := f.item(t); item.QtyAllocated != 20 || item.QtyAvailable() != 30 {
		t.Fatalf("ledger = %d/%d, want 20 allocated 30 available", item.QtyAllocated, item.QtyAvailable())
	}

	// A second job wants 40 with only 30 left: the grant clamps instead of
	// rejecting, and the shortfall is flagged for purchasing.
	secondJob := uuid.New()
	f.jobsRepo.rows[secondJob] = &models.Job{ID: secondJob, BillingType: enums.JobBillingTypeFixed}
	second, err := f.svc.Create(ctx, CreateInput{
		JobID:          secondJob,
		ItemID:         f.itemID,
		QuantityNeeded: 40,
		ActorUserID:    f.actor,
	})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	second, err = f.svc.Allocate(ctx, AllocateInput{ReservationID: second.ID, Requested: 40, ActorUserID: f.actor})
	if err != nil {
		t.Fatalf("allocate second: %v", err)
	}
	if second.QuantityAllocated != 30 {
		t.Fatalf("clamped allocation = %d, want 30", second.QuantityAllocated)
	}
	if second.StockStatus != enums.StockStatusPartial || !second.NeedsPurchase {
		t.Fatalf("stock_status = %s needs_purchase = %v", second.StockStatus, second.NeedsPurchase)
	}
	if item := f.item(t); item.QtyAllocated != 50 || item.QtyAvailable() != 0 {
		t.Fatalf("ledger = %d/%d, want 50 allocated 0 available", item.QtyAllocated, item.QtyAvailable())
	}

	if _, err := f.svc.Load(ctx, LoadInput{ReservationID: first.ID, Quantity: 20, ActorUserID: f.actor}); err != nil {
		t.Fatalf("load: %v", err)
	}

	// Usage beyond the allocation is a hard stop, unlike the allocation clamp.
	_, err = f.svc.RecordUsage(ctx, UsageInput{ReservationID: first.ID, Quantity: 25, ActorUserID: f.actor})
	if !pkgerrors.IsCode(err, pkgerrors.CodeOverConsumption) {
		t.Fatalf("overconsumption err = %v", err)
	}
	unchanged, _ := f.resRepo.GetByID(ctx, first.ID)
	if unchanged.QuantityUsed != 0 || unchanged.Status != enums.ReservationStatusLoaded {
		t.Fatalf("state mutated by rejected usage: used=%d status=%s", unchanged.QuantityUsed, unchanged.Status)
	}

	first, err = f.svc.RecordUsage(ctx, UsageInput{ReservationID: first.ID, Quantity: 15, ActorUserID: f.actor})
	if err != nil {
		t.Fatalf("use: %v", err)
	}
	if !first.LineCost.Equal(decimal.NewFromInt(60)) || !first.LineTotal.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("line amounts = %s/%s, want 60/150", first.LineCost, first.LineTotal)
	}

	// Returning the unconsumed remainder releases its hold but the row stays
	// used because material was consumed.
	first, err = f.svc.Return(ctx, ReturnInput{ReservationID: first.ID, Quantity: 5, ActorUserID: f.actor})
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if first.Status != enums.ReservationStatusUsed || first.QuantityReturned != 5 {
		t.Fatalf("status = %s returned = %d", first.Status, first.QuantityReturned)
	}
	if item := f.item(t); item.QtyAllocated != 45 {
		t.Fatalf("ledger after return = %d, want 45", item.QtyAllocated)
	}

	first, err = f.svc.Bill(ctx, BillInput{ReservationID: first.ID, ActorUserID: f.actor})
	if err != nil {
		t.Fatalf("bill: %v", err)
	}
	if first.Status != enums.ReservationStatusBilled || first.BilledAt == nil {
		t.Fatalf("status = %s billed_at = %v", first.Status, first.BilledAt)
	}
	item := f.item(t)
	if item.Qty != 35 {
		t.Fatalf("on-hand after billing = %d, want 35", item.Qty)
	}
	if item.QtyAllocated != 30 {
		t.Fatalf("ledger after billing = %d, want 30 (second reservation only)", item.QtyAllocated)
	}
	var consumed *models.StockTransaction
	for i := range f.invRepo.transactions {
		if f.invRepo.transactions[i].Reason == enums.StockTransactionReasonConsumption {
			consumed = &f.invRepo.transactions[i]
		}
	}
	if consumed == nil || consumed.Delta != -15 {
		t.Fatalf("consumption transaction = %+v", consumed)
	}

	// Post-billing edits go through Override only.
	_, err = f.svc.Update(ctx, UpdateInput{ReservationID: first.ID, Notes: strPtr("late edit"), ActorUserID: f.actor})
	if !pkgerrors.IsCode(err, pkgerrors.CodeBilledImmutable) {
		t.Fatalf("billed update err = %v", err)
	}

	corrected := 14
	first, err = f.svc.Override(ctx, OverrideInput{ReservationID: first.ID, QuantityUsed: &corrected, ActorUserID: f.actor})
	if err != nil {
		t.Fatalf("override: %v", err)
	}
	if first.QuantityUsed != 14 || !first.LineCost.Equal(decimal.NewFromInt(56)) {
		t.Fatalf("override used = %d line_cost = %s", first.QuantityUsed, first.LineCost)
	}
	if item := f.item(t); item.Qty != 36 {
		t.Fatalf("on-hand after override = %d, want 36", item.Qty)
	}

	overrides := 0
	for _, entry := range f.auditRepo.entries {
		if entry.ReservationID == first.ID && entry.ChangeType == enums.AuditChangeTypeOverride {
			overrides++
		}
	}
	if overrides == 0 {
		t.Fatal("override left no audit trail")
	}
}

func TestAllocateFreezesUnitPricing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 100)

	res, err := f.svc.Create(ctx, CreateInput{JobID: f.jobID, ItemID: f.itemID, QuantityNeeded: 10, ActorUserID: f.actor})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	f.item(t).UnitCost = decimal.NewFromInt(5)
	res, err = f.svc.Allocate(ctx, AllocateInput{ReservationID: res.ID, Requested: 10, ActorUserID: f.actor})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if !res.UnitCost.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("unit_cost = %s, want allocation-time 5", res.UnitCost)
	}

	// Catalog changes after the first allocation never reprice the line.
	f.item(t).UnitCost = decimal.NewFromInt(9)
	res, err = f.svc.Allocate(ctx, AllocateInput{ReservationID: res.ID, Requested: 10, ActorUserID: f.actor})
	if err != nil {
		t.Fatalf("reallocate: %v", err)
	}
	if !res.UnitCost.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("unit_cost changed to %s after reallocation", res.UnitCost)
	}
}

func TestFullReturnReleasesHold(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 30)

	res, _ := f.svc.Create(ctx, CreateInput{JobID: f.jobID, ItemID: f.itemID, QuantityNeeded: 10, ActorUserID: f.actor})
	res, err := f.svc.Allocate(ctx, AllocateInput{ReservationID: res.ID, Requested: 10, ActorUserID: f.actor})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	res, err = f.svc.Return(ctx, ReturnInput{ReservationID: res.ID, Quantity: 10, ActorUserID: f.actor})
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if res.Status != enums.ReservationStatusReturned {
		t.Fatalf("status = %s, want returned", res.Status)
	}
	if item := f.item(t); item.QtyAllocated != 0 || item.Qty != 30 {
		t.Fatalf("ledger = %d allocated %d on hand, want 0/30", item.QtyAllocated, item.Qty)
	}
}

func TestLoadBeyondAllocation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 30)

	res, _ := f.svc.Create(ctx, CreateInput{JobID: f.jobID, ItemID: f.itemID, QuantityNeeded: 20, ActorUserID: f.actor})
	res, err := f.svc.Allocate(ctx, AllocateInput{ReservationID: res.ID, Requested: 20, ActorUserID: f.actor})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	// Loading is staging, not consumption. Crews overload the truck; the
	// hard ceiling applies when usage is recorded.
	res, err = f.svc.Load(ctx, LoadInput{ReservationID: res.ID, Quantity: 25, ActorUserID: f.actor})
	if err != nil {
		t.Fatalf("load past allocation: %v", err)
	}
	if res.QuantityLoaded != 25 || res.Status != enums.ReservationStatusLoaded {
		t.Fatalf("loaded = %d status = %s, want 25 loaded", res.QuantityLoaded, res.Status)
	}

	_, err = f.svc.RecordUsage(ctx, UsageInput{ReservationID: res.ID, Quantity: 25, ActorUserID: f.actor})
	if !pkgerrors.IsCode(err, pkgerrors.CodeOverConsumption) {
		t.Fatalf("usage past allocation err = %v", err)
	}
}

func TestCancelPlannedReservation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 30)

	res, _ := f.svc.Create(ctx, CreateInput{JobID: f.jobID, ItemID: f.itemID, QuantityNeeded: 10, ActorUserID: f.actor})
	res, err := f.svc.Return(ctx, ReturnInput{ReservationID: res.ID, ActorUserID: f.actor})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if res.Status != enums.ReservationStatusReturned {
		t.Fatalf("status = %s, want returned", res.Status)
	}
}

func TestForceAllocatePastAvailability(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 5)

	res, _ := f.svc.Create(ctx, CreateInput{JobID: f.jobID, ItemID: f.itemID, QuantityNeeded: 10, ActorUserID: f.actor})
	res, err := f.svc.Allocate(ctx, AllocateInput{ReservationID: res.ID, Requested: 10, Force: true, ActorUserID: f.actor})
	if err != nil {
		t.Fatalf("force allocate: %v", err)
	}
	if res.QuantityAllocated != 10 {
		t.Fatalf("allocated = %d, want full 10", res.QuantityAllocated)
	}
	item := f.item(t)
	if item.QtyAvailable() != -5 {
		t.Fatalf("available = %d, want -5", item.QtyAvailable())
	}
	if !item.NeedsAttention {
		t.Fatal("negative availability must flag attention")
	}
}

func TestCreateDuplicateJobItem(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 30)

	if _, err := f.svc.Create(ctx, CreateInput{JobID: f.jobID, ItemID: f.itemID, QuantityNeeded: 5, ActorUserID: f.actor}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := f.svc.Create(ctx, CreateInput{JobID: f.jobID, ItemID: f.itemID, QuantityNeeded: 5, ActorUserID: f.actor})
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("duplicate err = %v", err)
	}
}

func TestUsageAuditedOncePerField(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 30)

	res, _ := f.svc.Create(ctx, CreateInput{JobID: f.jobID, ItemID: f.itemID, QuantityNeeded: 10, ActorUserID: f.actor})
	res, _ = f.svc.Allocate(ctx, AllocateInput{ReservationID: res.ID, Requested: 10, ActorUserID: f.actor})
	res, _ = f.svc.Load(ctx, LoadInput{ReservationID: res.ID, Quantity: 10, ActorUserID: f.actor})
	if _, err := f.svc.RecordUsage(ctx, UsageInput{ReservationID: res.ID, Quantity: 4, ActorUserID: f.actor}); err != nil {
		t.Fatalf("use: %v", err)
	}

	usedEntries := 0
	for _, entry := range f.auditRepo.entries {
		if entry.ReservationID == res.ID && entry.Field == audit.FieldQuantityUsed {
			usedEntries++
		}
	}
	if usedEntries != 1 {
		t.Fatalf("quantity_used audit entries = %d, want exactly 1", usedEntries)
	}
}

func strPtr(value string) *string {
	return &value
}
