package fulfillment_test

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/application/fulfillment"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/application/reservation"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain/entity"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain/event"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain/repository"
	"github.com/Mdhelaluddin3391/quickdash-sub000/pkg/logger"
)

// memDB es una base en memoria con semántica transaccional (snapshot + rollback)
// que respalda todos los repositorios del orquestador en los tests.
type memDB struct {
	mu        sync.Mutex
	stock     map[string]*entity.StockRecord    // wh|sku
	bins      map[string]*entity.BinStockRecord // bin|sku
	binWH     map[string]string                 // binID → warehouseID
	movements []*entity.MovementLogEntry
	picking   map[string]*entity.PickingTask
	packing   map[string]*entity.PackingTask
	dispatch  map[string]*entity.DispatchRecord // por packingTaskID
}

func newMemDB() *memDB {
	return &memDB{
		stock:    make(map[string]*entity.StockRecord),
		bins:     make(map[string]*entity.BinStockRecord),
		binWH:    make(map[string]string),
		picking:  make(map[string]*entity.PickingTask),
		packing:  make(map[string]*entity.PackingTask),
		dispatch: make(map[string]*entity.DispatchRecord),
	}
}

func skKey(warehouseID, skuID string) string { return warehouseID + "|" + skuID }
func binKey(binID, skuID string) string      { return binID + "|" + skuID }

func (db *memDB) seedStock(warehouseID, skuID string, qty, reserved int64) {
	db.stock[skKey(warehouseID, skuID)] = &entity.StockRecord{
		WarehouseID: warehouseID, SKUID: skuID, Quantity: qty, ReservedQuantity: reserved,
	}
}

func (db *memDB) seedBin(binID, warehouseID, skuID string, qty int64) {
	db.binWH[binID] = warehouseID
	db.bins[binKey(binID, skuID)] = &entity.BinStockRecord{
		BinID: binID, SKUID: skuID, Quantity: qty,
	}
}

func (db *memDB) getStock(warehouseID, skuID string) *entity.StockRecord {
	if r, ok := db.stock[skKey(warehouseID, skuID)]; ok {
		cp := *r
		return &cp
	}
	return &entity.StockRecord{WarehouseID: warehouseID, SKUID: skuID}
}

func (db *memDB) getBin(binID, skuID string) *entity.BinStockRecord {
	if r, ok := db.bins[binKey(binID, skuID)]; ok {
		cp := *r
		return &cp
	}
	return &entity.BinStockRecord{BinID: binID, SKUID: skuID}
}

func clonePickingTask(t *entity.PickingTask) *entity.PickingTask {
	cp := *t
	cp.Items = make([]*entity.PickItem, len(t.Items))
	for i, it := range t.Items {
		itCp := *it
		cp.Items[i] = &itCp
	}
	return &cp
}

func (db *memDB) taskByOrder(orderID string) *entity.PickingTask {
	for _, t := range db.picking {
		if t.OrderID == orderID {
			return clonePickingTask(t)
		}
	}
	return nil
}

func (db *memDB) packingByPicking(pickingTaskID string) *entity.PackingTask {
	for _, p := range db.packing {
		if p.PickingTaskID == pickingTaskID {
			cp := *p
			return &cp
		}
	}
	return nil
}

func (db *memDB) movementsByType(movementType string) []*entity.MovementLogEntry {
	var out []*entity.MovementLogEntry
	for _, m := range db.movements {
		if m.MovementType == movementType {
			out = append(out, m)
		}
	}
	return out
}

type dbSnapshot struct {
	stock    map[string]*entity.StockRecord
	bins     map[string]*entity.BinStockRecord
	movLen   int
	picking  map[string]*entity.PickingTask
	packing  map[string]*entity.PackingTask
	dispatch map[string]*entity.DispatchRecord
}

func (db *memDB) snapshot() dbSnapshot {
	s := dbSnapshot{
		stock:    make(map[string]*entity.StockRecord, len(db.stock)),
		bins:     make(map[string]*entity.BinStockRecord, len(db.bins)),
		movLen:   len(db.movements),
		picking:  make(map[string]*entity.PickingTask, len(db.picking)),
		packing:  make(map[string]*entity.PackingTask, len(db.packing)),
		dispatch: make(map[string]*entity.DispatchRecord, len(db.dispatch)),
	}
	for k, v := range db.stock {
		cp := *v
		s.stock[k] = &cp
	}
	for k, v := range db.bins {
		cp := *v
		s.bins[k] = &cp
	}
	for k, v := range db.picking {
		s.picking[k] = clonePickingTask(v)
	}
	for k, v := range db.packing {
		cp := *v
		s.packing[k] = &cp
	}
	for k, v := range db.dispatch {
		cp := *v
		s.dispatch[k] = &cp
	}
	return s
}

func (db *memDB) restore(s dbSnapshot) {
	db.stock = s.stock
	db.bins = s.bins
	db.movements = db.movements[:s.movLen]
	db.picking = s.picking
	db.packing = s.packing
	db.dispatch = s.dispatch
}

// ── Repositorios sobre memDB ─────────────────────────────────────────────────

type stockRepo struct{ db *memDB }

func (r stockRepo) Get(_ context.Context, warehouseID, skuID string) (*entity.StockRecord, error) {
	return r.db.getStock(warehouseID, skuID), nil
}

func (r stockRepo) GetForUpdate(_ context.Context, warehouseID, skuID string) (*entity.StockRecord, error) {
	return r.db.getStock(warehouseID, skuID), nil
}

func (r stockRepo) Upsert(_ context.Context, record *entity.StockRecord) error {
	cp := *record
	r.db.stock[skKey(record.WarehouseID, record.SKUID)] = &cp
	return nil
}

func (r stockRepo) ListLedgerSKUs(_ context.Context, warehouseID, afterSKU string, limit int) ([]string, error) {
	seen := make(map[string]bool)
	for _, s := range r.db.stock {
		if s.WarehouseID == warehouseID {
			seen[s.SKUID] = true
		}
	}
	for _, b := range r.db.bins {
		if r.db.binWH[b.BinID] == warehouseID {
			seen[b.SKUID] = true
		}
	}
	var skus []string
	for sku := range seen {
		if sku > afterSKU {
			skus = append(skus, sku)
		}
	}
	sort.Strings(skus)
	if len(skus) > limit {
		skus = skus[:limit]
	}
	return skus, nil
}

type binRepo struct{ db *memDB }

func (r binRepo) Get(_ context.Context, binID, skuID string) (*entity.BinStockRecord, error) {
	return r.db.getBin(binID, skuID), nil
}

func (r binRepo) GetForUpdate(_ context.Context, binID, skuID string) (*entity.BinStockRecord, error) {
	return r.db.getBin(binID, skuID), nil
}

func (r binRepo) ListForAllocationForUpdate(_ context.Context, warehouseID, skuID string) ([]*entity.BinStockRecord, error) {
	var out []*entity.BinStockRecord
	for _, b := range r.db.bins {
		if r.db.binWH[b.BinID] == warehouseID && b.SKUID == skuID && b.Available() > 0 {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BinID < out[j].BinID })
	return out, nil
}

func (r binRepo) Upsert(_ context.Context, record *entity.BinStockRecord) error {
	cp := *record
	r.db.bins[binKey(record.BinID, record.SKUID)] = &cp
	return nil
}

func (r binRepo) SumBySKU(_ context.Context, warehouseID, skuID string) (int64, int64, error) {
	var qty, reserved int64
	for _, b := range r.db.bins {
		if r.db.binWH[b.BinID] == warehouseID && b.SKUID == skuID {
			qty += b.Quantity
			reserved += b.ReservedQuantity
		}
	}
	return qty, reserved, nil
}

type movRepo struct{ db *memDB }

func (r movRepo) Append(_ context.Context, entry *entity.MovementLogEntry) error {
	cp := *entry
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	r.db.movements = append(r.db.movements, &cp)
	return nil
}

func (r movRepo) ExistsByReference(_ context.Context, reference, movementType string) (bool, error) {
	for _, m := range r.db.movements {
		if m.Reference == reference && m.MovementType == movementType &&
			strings.HasPrefix(m.LedgerRef, "stock:") {
			return true, nil
		}
	}
	return false, nil
}

func (r movRepo) ListByLedgerRef(_ context.Context, ledgerRef string, _, _ int) ([]*entity.MovementLogEntry, error) {
	var out []*entity.MovementLogEntry
	for _, m := range r.db.movements {
		if m.LedgerRef == ledgerRef {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r movRepo) ListByReference(_ context.Context, reference string) ([]*entity.MovementLogEntry, error) {
	var out []*entity.MovementLogEntry
	for _, m := range r.db.movements {
		if m.Reference == reference {
			out = append(out, m)
		}
	}
	return out, nil
}

type pickingRepo struct{ db *memDB }

func (r pickingRepo) Create(_ context.Context, task *entity.PickingTask) error {
	for _, t := range r.db.picking {
		if t.OrderID == task.OrderID {
			return fmt.Errorf("picking para orden %s: %w", task.OrderID, domain.ErrDuplicate)
		}
	}
	r.db.picking[task.ID] = clonePickingTask(task)
	return nil
}

func (r pickingRepo) GetByID(_ context.Context, id string) (*entity.PickingTask, error) {
	if t, ok := r.db.picking[id]; ok {
		return clonePickingTask(t), nil
	}
	return nil, nil
}

func (r pickingRepo) GetByIDForUpdate(ctx context.Context, id string) (*entity.PickingTask, error) {
	return r.GetByID(ctx, id)
}

func (r pickingRepo) GetByOrderID(_ context.Context, orderID string) (*entity.PickingTask, error) {
	return r.db.taskByOrder(orderID), nil
}

func (r pickingRepo) UpdateStatus(_ context.Context, task *entity.PickingTask) error {
	stored, ok := r.db.picking[task.ID]
	if !ok {
		return nil
	}
	stored.Status = task.Status
	stored.Picker = task.Picker
	stored.StartedAt = task.StartedAt
	stored.CompletedAt = task.CompletedAt
	return nil
}

func (r pickingRepo) UpdateItem(_ context.Context, item *entity.PickItem) error {
	for _, t := range r.db.picking {
		for _, it := range t.Items {
			if it.ID == item.ID {
				it.PickedQty = item.PickedQty
				it.IsPicked = item.IsPicked
				return nil
			}
		}
	}
	return nil
}

type packingRepo struct{ db *memDB }

func (r packingRepo) Create(_ context.Context, task *entity.PackingTask) error {
	cp := *task
	r.db.packing[task.ID] = &cp
	return nil
}

func (r packingRepo) GetByID(_ context.Context, id string) (*entity.PackingTask, error) {
	if p, ok := r.db.packing[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (r packingRepo) GetByIDForUpdate(ctx context.Context, id string) (*entity.PackingTask, error) {
	return r.GetByID(ctx, id)
}

func (r packingRepo) Update(_ context.Context, task *entity.PackingTask) error {
	cp := *task
	r.db.packing[task.ID] = &cp
	return nil
}

type dispatchRepo struct{ db *memDB }

func (r dispatchRepo) Create(_ context.Context, record *entity.DispatchRecord) error {
	cp := *record
	r.db.dispatch[record.PackingTaskID] = &cp
	return nil
}

func (r dispatchRepo) GetByPackingTaskID(_ context.Context, packingTaskID string) (*entity.DispatchRecord, error) {
	if d, ok := r.db.dispatch[packingTaskID]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, nil
}

// ── TxRunner sobre memDB ─────────────────────────────────────────────────────

type memTxRunner struct{ db *memDB }

func (r memTxRunner) run(fn func() error) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	snap := r.db.snapshot()
	if err := fn(); err != nil {
		r.db.restore(snap)
		return err
	}
	return nil
}

func (r memTxRunner) Run(_ context.Context, fn func(repository.StockRepository, repository.MovementLogRepository) error) error {
	return r.run(func() error { return fn(stockRepo{r.db}, movRepo{r.db}) })
}

func (r memTxRunner) RunFulfillment(_ context.Context, fn func(
	repository.BinStockRepository,
	repository.PickingTaskRepository,
	repository.PackingTaskRepository,
	repository.DispatchRepository,
	repository.StockRepository,
	repository.MovementLogRepository,
) error) error {
	return r.run(func() error {
		return fn(binRepo{r.db}, pickingRepo{r.db}, packingRepo{r.db}, dispatchRepo{r.db}, stockRepo{r.db}, movRepo{r.db})
	})
}

func (r memTxRunner) RunLedgers(_ context.Context, fn func(
	repository.StockRepository,
	repository.BinStockRepository,
	repository.MovementLogRepository,
) error) error {
	return r.run(func() error { return fn(stockRepo{r.db}, binRepo{r.db}, movRepo{r.db}) })
}

// capturePub acumula lo publicado tras los commits.
type capturePub struct {
	mu        sync.Mutex
	inventory []event.InventoryChanged
	ready     []event.FulfillmentReady
}

func (p *capturePub) PublishInventoryChanged(_ context.Context, evt event.InventoryChanged) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inventory = append(p.inventory, evt)
	return nil
}

func (p *capturePub) PublishFulfillmentReady(_ context.Context, evt event.FulfillmentReady) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ready = append(p.ready, evt)
	return nil
}

// harness arma el orquestador completo sobre memDB, con el coordinador de
// reservas real detrás.
type harness struct {
	db   *memDB
	orch *fulfillment.Orchestrator
	pub  *capturePub
}

func newHarness(t *testing.T, policy fulfillment.AllocationPolicy) *harness {
	t.Helper()
	db := newMemDB()
	pub := &capturePub{}
	tx := memTxRunner{db}
	coord := reservation.NewCoordinator(tx, pub, logger.Nop())
	orch := fulfillment.NewOrchestrator(tx, pickingRepo{db}, coord, policy, pub, logger.Nop())
	return &harness{db: db, orch: orch, pub: pub}
}

func (h *harness) confirmOrder(t *testing.T, orderID, warehouseID string, items ...event.OrderItem) *entity.PickingTask {
	t.Helper()
	err := h.orch.HandleOrderConfirmed(context.Background(), event.OrderConfirmed{
		OrderID: orderID, WarehouseID: warehouseID, Items: items,
	})
	if err != nil {
		t.Fatalf("confirmar orden %s: %v", orderID, err)
	}
	task := h.db.taskByOrder(orderID)
	if task == nil {
		t.Fatalf("orden %s sin tarea de picking", orderID)
	}
	return task
}

// scanAll escanea todos los items pendientes de la tarea con su cantidad asignada.
func (h *harness) scanAll(t *testing.T, taskID, actor string) {
	t.Helper()
	task := h.db.picking[taskID]
	items := clonePickingTask(task).Items
	for _, it := range items {
		if it.IsPicked {
			continue
		}
		if err := h.orch.ScanPick(context.Background(), taskID, it.ID, it.QtyToPick, actor); err != nil {
			t.Fatalf("escanear item %s: %v", it.ID, err)
		}
	}
}
