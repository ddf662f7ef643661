package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/application/reservation"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain/entity"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain/event"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain/repository"
	"github.com/Mdhelaluddin3391/quickdash-sub000/pkg/logger"
)

const pickupOTPDigits = 6

// Orchestrator ejecuta la máquina de estados picking → packing → dispatch.
// Asigna bins, registra escaneos y dispara la deducción física al completar empaque.
type Orchestrator struct {
	tx          TxRunner
	pickingRepo repository.PickingTaskRepository // lectura fuera de transacción
	reserver    reservation.Reserver
	policy      AllocationPolicy
	events      EventPublisher
	log         *logger.Logger
}

// NewOrchestrator construye el orquestador. policy nil usa SmallestBinFirst;
// events puede ser nil (sin publicación).
func NewOrchestrator(
	tx TxRunner,
	pickingRepo repository.PickingTaskRepository,
	reserver reservation.Reserver,
	policy AllocationPolicy,
	events EventPublisher,
	log *logger.Logger,
) *Orchestrator {
	if policy == nil {
		policy = SmallestBinFirst()
	}
	return &Orchestrator{
		tx:          tx,
		pickingRepo: pickingRepo,
		reserver:    reserver,
		policy:      policy,
		events:      events,
		log:         log,
	}
}

// HandleOrderConfirmed procesa el evento entrante de orden confirmada:
// reserva el stock lógico y genera la tarea de picking. La entrega del evento
// es at-least-once; una redelivery se absorbe por la tarea ya existente.
func (o *Orchestrator) HandleOrderConfirmed(ctx context.Context, evt event.OrderConfirmed) error {
	existing, err := o.pickingRepo.GetByOrderID(ctx, evt.OrderID)
	if err != nil {
		return err
	}
	if existing != nil {
		o.log.Debug().Str("order_id", evt.OrderID).Msg("orden ya procesada, redelivery absorbida")
		return nil
	}

	items := make([]reservation.ItemRequest, 0, len(evt.Items))
	for _, it := range evt.Items {
		items = append(items, reservation.ItemRequest{SKUID: it.SKUID, Quantity: it.Quantity})
	}
	if err := o.reserver.ReserveStock(ctx, evt.WarehouseID, items, evt.OrderID); err != nil {
		return fmt.Errorf("reservar orden %s: %w", evt.OrderID, err)
	}
	_, err = o.GeneratePickingTask(ctx, evt.OrderID, evt.WarehouseID, items)
	return err
}

// GeneratePickingTask crea la tarea de picking de la orden asignando bins.
// Idempotente por order_id: si la tarea ya existe se devuelve sin asignar de nuevo.
// Por cada SKU bloquea los bins candidatos (orden de bin_id), los recorre según la
// política de asignación y reserva de inmediato cada cantidad tomada en el bin para
// que una asignación concurrente no reclame las mismas unidades físicas.
// Si la asignación queda corta se registra el déficit y la orden sigue (short-pick).
func (o *Orchestrator) GeneratePickingTask(ctx context.Context, orderID, warehouseID string, items []reservation.ItemRequest) (*entity.PickingTask, error) {
	if orderID == "" || warehouseID == "" || len(items) == 0 {
		return nil, domain.ErrInvalidInput
	}
	sorted := make([]reservation.ItemRequest, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].SKUID < sorted[j].SKUID })

	var task *entity.PickingTask
	err := o.tx.RunFulfillment(ctx, func(
		binRepo repository.BinStockRepository,
		pickingRepo repository.PickingTaskRepository,
		_ repository.PackingTaskRepository,
		_ repository.DispatchRepository,
		stockRepo repository.StockRepository,
		movRepo repository.MovementLogRepository,
	) error {
		existing, err := pickingRepo.GetByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		if existing != nil {
			task = existing
			return nil
		}

		now := time.Now()
		task = &entity.PickingTask{
			ID:          uuid.New().String(),
			OrderID:     orderID,
			WarehouseID: warehouseID,
			Status:      entity.PickingStatusPending,
			CreatedAt:   now,
		}

		var shortfalls []reservation.ItemRequest
		for _, it := range sorted {
			if it.SKUID == "" || it.Quantity <= 0 {
				return domain.ErrInvalidInput
			}
			bins, err := binRepo.ListForAllocationForUpdate(ctx, warehouseID, it.SKUID)
			if err != nil {
				return err
			}
			remaining := it.Quantity
			for _, bin := range o.policy.Order(bins) {
				if remaining == 0 {
					break
				}
				take := bin.Available()
				if take <= 0 {
					continue
				}
				if take > remaining {
					take = remaining
				}
				bin.ReservedQuantity += take
				bin.UpdatedAt = now
				if err := bin.Validate(); err != nil {
					return err
				}
				if err := binRepo.Upsert(ctx, bin); err != nil {
					return err
				}
				if err := movRepo.Append(ctx, &entity.MovementLogEntry{
					LedgerRef:    bin.LedgerRef(),
					SKUID:        it.SKUID,
					Delta:        0,
					MovementType: entity.MovementTypeRESERVE,
					Reference:    orderID,
					BalanceAfter: bin.Quantity,
					CreatedAt:    now,
				}); err != nil {
					return err
				}
				task.Items = append(task.Items, &entity.PickItem{
					ID:        uuid.New().String(),
					TaskID:    task.ID,
					SKUID:     it.SKUID,
					BinID:     bin.BinID,
					QtyToPick: take,
				})
				remaining -= take
			}
			if remaining > 0 {
				// No se rechaza: los conteos físicos pueden estar desactualizados
				// al confirmar la orden; operaciones resuelve manualmente.
				o.log.Warn().
					Str("order_id", orderID).
					Str("warehouse_id", warehouseID).
					Str("sku_id", it.SKUID).
					Int64("deficit", remaining).
					Msg("asignación corta: bins sin unidades suficientes")
				shortfalls = append(shortfalls, reservation.ItemRequest{SKUID: it.SKUID, Quantity: remaining})
			}
		}

		// Liberar la reserva lógica del déficit mantiene reservado == asignado
		if len(shortfalls) > 0 {
			if _, err := reservation.ReleaseInTx(ctx, stockRepo, movRepo, warehouseID, shortfalls, orderID); err != nil {
				return err
			}
		}
		return pickingRepo.Create(ctx, task)
	})
	if err != nil {
		// Carrera entre dos workers con la misma orden: el índice único decide,
		// el perdedor devuelve la tarea que ya quedó persistida.
		if errors.Is(err, domain.ErrDuplicate) {
			return o.pickingRepo.GetByOrderID(ctx, orderID)
		}
		return nil, err
	}
	return task, nil
}

// ScanPick registra el escaneo de un item. Rechaza doble escaneo y cantidades
// distintas a lo asignado (un faltante va por SkipPickItem, nunca por un
// mismatch silencioso). Re-verifica la cantidad del bin bajo lock y decrementa
// quantity y reserved del bin de forma atómica. El último item resuelto
// completa la tarea y crea la tarea de empaque en la misma transacción.
func (o *Orchestrator) ScanPick(ctx context.Context, taskID, pickItemID string, qtyScanned int64, actor string) error {
	if taskID == "" || pickItemID == "" || qtyScanned <= 0 {
		return domain.ErrInvalidInput
	}
	return o.tx.RunFulfillment(ctx, func(
		binRepo repository.BinStockRepository,
		pickingRepo repository.PickingTaskRepository,
		packingRepo repository.PackingTaskRepository,
		_ repository.DispatchRepository,
		_ repository.StockRepository,
		movRepo repository.MovementLogRepository,
	) error {
		task, item, err := o.lockTaskItem(ctx, pickingRepo, taskID, pickItemID)
		if err != nil {
			return err
		}
		if qtyScanned != item.QtyToPick {
			return fmt.Errorf("item %s: escaneado %d != asignado %d: %w",
				pickItemID, qtyScanned, item.QtyToPick, domain.ErrInvalidInput)
		}

		now := time.Now()
		// La realidad física pudo cambiar desde la asignación: re-verificar bajo lock
		bin, err := binRepo.GetForUpdate(ctx, item.BinID, item.SKUID)
		if err != nil {
			return err
		}
		if bin.Quantity < qtyScanned {
			return fmt.Errorf("bin %s: cantidad física %d < escaneado %d: %w",
				item.BinID, bin.Quantity, qtyScanned, domain.ErrInsufficientStock)
		}
		bin.Quantity -= qtyScanned
		bin.ReservedQuantity -= qtyScanned
		bin.UpdatedAt = now
		if err := bin.Validate(); err != nil {
			return err
		}
		if err := binRepo.Upsert(ctx, bin); err != nil {
			return err
		}
		if err := movRepo.Append(ctx, &entity.MovementLogEntry{
			LedgerRef:    bin.LedgerRef(),
			SKUID:        item.SKUID,
			Delta:        -qtyScanned,
			MovementType: entity.MovementTypeOUTBOUND,
			Reference:    task.OrderID,
			BalanceAfter: bin.Quantity,
			Actor:        actor,
			CreatedAt:    now,
		}); err != nil {
			return err
		}

		item.IsPicked = true
		item.PickedQty = qtyScanned
		if err := pickingRepo.UpdateItem(ctx, item); err != nil {
			return err
		}
		return o.advanceTask(ctx, pickingRepo, packingRepo, task, actor, now)
	})
}

// SkipPickItem es la ruta explícita de faltante: marca el item como resuelto con
// cantidad recogida cero y libera la reserva del bin. La orden continúa como
// short-pick; el remanente lógico se libera al completar empaque.
func (o *Orchestrator) SkipPickItem(ctx context.Context, taskID, pickItemID, actor string) error {
	if taskID == "" || pickItemID == "" {
		return domain.ErrInvalidInput
	}
	return o.tx.RunFulfillment(ctx, func(
		binRepo repository.BinStockRepository,
		pickingRepo repository.PickingTaskRepository,
		packingRepo repository.PackingTaskRepository,
		_ repository.DispatchRepository,
		_ repository.StockRepository,
		movRepo repository.MovementLogRepository,
	) error {
		task, item, err := o.lockTaskItem(ctx, pickingRepo, taskID, pickItemID)
		if err != nil {
			return err
		}

		now := time.Now()
		bin, err := binRepo.GetForUpdate(ctx, item.BinID, item.SKUID)
		if err != nil {
			return err
		}
		release := item.QtyToPick
		if release > bin.ReservedQuantity {
			release = bin.ReservedQuantity
		}
		if release > 0 {
			bin.ReservedQuantity -= release
			bin.UpdatedAt = now
			if err := bin.Validate(); err != nil {
				return err
			}
			if err := binRepo.Upsert(ctx, bin); err != nil {
				return err
			}
			if err := movRepo.Append(ctx, &entity.MovementLogEntry{
				LedgerRef:    bin.LedgerRef(),
				SKUID:        item.SKUID,
				Delta:        0,
				MovementType: entity.MovementTypeRELEASE,
				Reference:    task.OrderID,
				BalanceAfter: bin.Quantity,
				Actor:        actor,
				CreatedAt:    now,
			}); err != nil {
				return err
			}
		}

		o.log.Warn().
			Str("order_id", task.OrderID).
			Str("sku_id", item.SKUID).
			Str("bin_id", item.BinID).
			Int64("qty_to_pick", item.QtyToPick).
			Msg("item saltado por faltante físico")

		item.IsPicked = true
		item.PickedQty = 0
		if err := pickingRepo.UpdateItem(ctx, item); err != nil {
			return err
		}
		return o.advanceTask(ctx, pickingRepo, packingRepo, task, actor, now)
	})
}

// CompletePacking cierra la tarea de empaque, genera el registro de despacho con
// un OTP de recogida recién generado y ejecuta la deducción física con las
// cantidades efectivamente recogidas, todo en una transacción. Tras el commit
// emite fulfillment_ready; el orquestador no sabe nada de riders.
func (o *Orchestrator) CompletePacking(ctx context.Context, packingTaskID, packer string) (*entity.DispatchRecord, error) {
	if packingTaskID == "" {
		return nil, domain.ErrInvalidInput
	}

	var dispatch *entity.DispatchRecord
	var invEvents []event.InventoryChanged
	var ready event.FulfillmentReady
	err := o.tx.RunFulfillment(ctx, func(
		_ repository.BinStockRepository,
		pickingRepo repository.PickingTaskRepository,
		packingRepo repository.PackingTaskRepository,
		dispatchRepo repository.DispatchRepository,
		stockRepo repository.StockRepository,
		movRepo repository.MovementLogRepository,
	) error {
		packing, err := packingRepo.GetByIDForUpdate(ctx, packingTaskID)
		if err != nil {
			return err
		}
		if packing == nil {
			return fmt.Errorf("empaque %s: %w", packingTaskID, domain.ErrNotFound)
		}
		if packing.Status == entity.PackingStatusCompleted {
			return fmt.Errorf("empaque %s ya completado: %w", packingTaskID, domain.ErrStateConflict)
		}
		picking, err := pickingRepo.GetByID(ctx, packing.PickingTaskID)
		if err != nil {
			return err
		}
		if picking == nil || picking.Status != entity.PickingStatusCompleted {
			return fmt.Errorf("empaque %s: picking no completado: %w", packingTaskID, domain.ErrStateConflict)
		}

		now := time.Now()
		packing.Status = entity.PackingStatusCompleted
		packing.Packer = packer
		packing.CompletedAt = &now
		if err := packingRepo.Update(ctx, packing); err != nil {
			return err
		}

		otp, err := GeneratePickupOTP(pickupOTPDigits)
		if err != nil {
			return err
		}
		dispatch = &entity.DispatchRecord{
			ID:            uuid.New().String(),
			PackingTaskID: packing.ID,
			OrderID:       picking.OrderID,
			WarehouseID:   picking.WarehouseID,
			Status:        entity.DispatchStatusReady,
			PickupOTP:     otp,
			CreatedAt:     now,
		}
		if err := dispatchRepo.Create(ctx, dispatch); err != nil {
			return err
		}

		// Deducción física con lo efectivamente recogido (puede ser menos que lo reservado)
		picked := picking.PickedBySKU()
		if len(picked) > 0 {
			evts, err := reservation.DeductInTx(ctx, stockRepo, movRepo,
				picking.WarehouseID, sortedItems(picked), picking.OrderID, packer)
			if err != nil {
				return err
			}
			invEvents = append(invEvents, evts...)
		}

		// Liberar el remanente reservado no recogido (short-pick)
		shorts := make(map[string]int64)
		for sku, req := range picking.RequestedBySKU() {
			if short := req - picked[sku]; short > 0 {
				shorts[sku] = short
			}
		}
		if len(shorts) > 0 {
			evts, err := reservation.ReleaseInTx(ctx, stockRepo, movRepo,
				picking.WarehouseID, sortedItems(shorts), picking.OrderID)
			if err != nil {
				return err
			}
			invEvents = append(invEvents, evts...)
		}

		ready = event.FulfillmentReady{
			DispatchID:  dispatch.ID,
			OrderID:     picking.OrderID,
			WarehouseID: picking.WarehouseID,
			PickupOTP:   otp,
			OccurredAt:  now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if o.events != nil {
		if err := o.events.PublishFulfillmentReady(ctx, ready); err != nil {
			o.log.Warn().Err(err).Str("dispatch_id", dispatch.ID).Msg("no se pudo publicar fulfillment_ready")
		}
		for _, evt := range invEvents {
			if err := o.events.PublishInventoryChanged(ctx, evt); err != nil {
				o.log.Warn().Err(err).Str("sku_id", evt.SKUID).Msg("no se pudo publicar inventory_changed")
			}
		}
	}
	return dispatch, nil
}

// CancelPicking cancela una tarea PENDING o IN_PROGRESS: libera las reservas de
// bin de los items no recogidos y la reserva lógica correspondiente. Los items
// ya recogidos se deducen (salieron físicamente del bin); su reposición va por
// el flujo de ajuste manual.
func (o *Orchestrator) CancelPicking(ctx context.Context, taskID, actor string) error {
	if taskID == "" {
		return domain.ErrInvalidInput
	}

	var invEvents []event.InventoryChanged
	err := o.tx.RunFulfillment(ctx, func(
		binRepo repository.BinStockRepository,
		pickingRepo repository.PickingTaskRepository,
		_ repository.PackingTaskRepository,
		_ repository.DispatchRepository,
		stockRepo repository.StockRepository,
		movRepo repository.MovementLogRepository,
	) error {
		task, err := pickingRepo.GetByIDForUpdate(ctx, taskID)
		if err != nil {
			return err
		}
		if task == nil {
			return fmt.Errorf("picking %s: %w", taskID, domain.ErrNotFound)
		}
		if task.Status != entity.PickingStatusPending && task.Status != entity.PickingStatusInProgress {
			return fmt.Errorf("picking %s en estado %s: %w", taskID, task.Status, domain.ErrStateConflict)
		}

		now := time.Now()
		unpicked := make([]*entity.PickItem, 0, len(task.Items))
		pickedSums := make(map[string]int64)
		releaseSums := make(map[string]int64)
		for _, it := range task.Items {
			if it.IsPicked {
				if it.PickedQty > 0 {
					pickedSums[it.SKUID] += it.PickedQty
				}
				continue
			}
			unpicked = append(unpicked, it)
			releaseSums[it.SKUID] += it.QtyToPick
		}
		// Locks de bin en orden de bin_id, igual que la asignación
		sort.Slice(unpicked, func(i, j int) bool { return unpicked[i].BinID < unpicked[j].BinID })
		for _, it := range unpicked {
			bin, err := binRepo.GetForUpdate(ctx, it.BinID, it.SKUID)
			if err != nil {
				return err
			}
			release := it.QtyToPick
			if release > bin.ReservedQuantity {
				release = bin.ReservedQuantity
			}
			if release == 0 {
				continue
			}
			bin.ReservedQuantity -= release
			bin.UpdatedAt = now
			if err := bin.Validate(); err != nil {
				return err
			}
			if err := binRepo.Upsert(ctx, bin); err != nil {
				return err
			}
			if err := movRepo.Append(ctx, &entity.MovementLogEntry{
				LedgerRef:    bin.LedgerRef(),
				SKUID:        it.SKUID,
				Delta:        0,
				MovementType: entity.MovementTypeRELEASE,
				Reference:    task.OrderID,
				BalanceAfter: bin.Quantity,
				Actor:        actor,
				CreatedAt:    now,
			}); err != nil {
				return err
			}
		}

		if len(pickedSums) > 0 {
			evts, err := reservation.DeductInTx(ctx, stockRepo, movRepo,
				task.WarehouseID, sortedItems(pickedSums), task.OrderID, actor)
			if err != nil {
				return err
			}
			invEvents = append(invEvents, evts...)
		}
		if len(releaseSums) > 0 {
			evts, err := reservation.ReleaseInTx(ctx, stockRepo, movRepo,
				task.WarehouseID, sortedItems(releaseSums), task.OrderID)
			if err != nil {
				return err
			}
			invEvents = append(invEvents, evts...)
		}

		task.Status = entity.PickingStatusCancelled
		return pickingRepo.UpdateStatus(ctx, task)
	})
	if err != nil {
		return err
	}

	if o.events != nil {
		for _, evt := range invEvents {
			if err := o.events.PublishInventoryChanged(ctx, evt); err != nil {
				o.log.Warn().Err(err).Str("sku_id", evt.SKUID).Msg("no se pudo publicar inventory_changed")
			}
		}
	}
	return nil
}

// lockTaskItem bloquea la tarea (serializa escaneos concurrentes), valida su
// estado y localiza el item; doble escaneo es un error, no un no-op.
func (o *Orchestrator) lockTaskItem(
	ctx context.Context,
	pickingRepo repository.PickingTaskRepository,
	taskID, pickItemID string,
) (*entity.PickingTask, *entity.PickItem, error) {
	task, err := pickingRepo.GetByIDForUpdate(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}
	if task == nil {
		return nil, nil, fmt.Errorf("picking %s: %w", taskID, domain.ErrNotFound)
	}
	if task.Status != entity.PickingStatusPending && task.Status != entity.PickingStatusInProgress {
		return nil, nil, fmt.Errorf("picking %s en estado %s: %w", taskID, task.Status, domain.ErrStateConflict)
	}
	for _, it := range task.Items {
		if it.ID != pickItemID {
			continue
		}
		if it.IsPicked {
			return nil, nil, fmt.Errorf("item %s ya resuelto: %w", pickItemID, domain.ErrStateConflict)
		}
		return task, it, nil
	}
	return nil, nil, fmt.Errorf("item %s: %w", pickItemID, domain.ErrNotFound)
}

// advanceTask aplica las transiciones implícitas: PENDING→IN_PROGRESS con el
// primer escaneo y →COMPLETED (más creación atómica del PackingTask) cuando
// todos los items quedan resueltos.
func (o *Orchestrator) advanceTask(
	ctx context.Context,
	pickingRepo repository.PickingTaskRepository,
	packingRepo repository.PackingTaskRepository,
	task *entity.PickingTask,
	actor string,
	now time.Time,
) error {
	if task.Status == entity.PickingStatusPending {
		task.Status = entity.PickingStatusInProgress
		task.StartedAt = &now
		task.Picker = actor
	}
	if task.AllResolved() {
		task.Status = entity.PickingStatusCompleted
		task.CompletedAt = &now
		if err := pickingRepo.UpdateStatus(ctx, task); err != nil {
			return err
		}
		return packingRepo.Create(ctx, &entity.PackingTask{
			ID:            uuid.New().String(),
			PickingTaskID: task.ID,
			Status:        entity.PackingStatusPending,
			CreatedAt:     now,
		})
	}
	return pickingRepo.UpdateStatus(ctx, task)
}

// sortedItems convierte un mapa SKU→cantidad en items ordenados por SKU
// ascendente (orden de adquisición de locks).
func sortedItems(sums map[string]int64) []reservation.ItemRequest {
	items := make([]reservation.ItemRequest, 0, len(sums))
	for sku, qty := range sums {
		items = append(items, reservation.ItemRequest{SKUID: sku, Quantity: qty})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].SKUID < items[j].SKUID })
	return items
}
