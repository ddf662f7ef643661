package reservation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain/entity"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain/event"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain/repository"
	"github.com/Mdhelaluddin3391/quickdash-sub000/pkg/logger"
)

// Coordinator es el coordinador de reservas sobre el ledger lógico.
// Toda mutación ocurre bajo bloqueo de fila (SELECT FOR UPDATE) dentro de una
// transacción; las filas se piden siempre en orden ascendente de SKU, de modo
// que dos llamadas concurrentes con SKUs solapados nunca forman ciclos de espera.
type Coordinator struct {
	tx     TxRunner
	events EventPublisher
	log    *logger.Logger
}

var _ Reserver = (*Coordinator)(nil)

// NewCoordinator construye el coordinador. events puede ser nil (sin publicación).
func NewCoordinator(tx TxRunner, events EventPublisher, log *logger.Logger) *Coordinator {
	return &Coordinator{tx: tx, events: events, log: log}
}

// ReserveStock incrementa reserved_quantity para cada SKU pedido, todo o nada.
// Si algún SKU no tiene disponibilidad suficiente, la transacción completa se
// aborta con ErrInsufficientStock nombrando el SKU; nunca persiste una reserva parcial.
// Idempotente por reference: una redelivery con la misma referencia no reserva dos veces.
func (c *Coordinator) ReserveStock(ctx context.Context, warehouseID string, items []ItemRequest, reference string) error {
	norm, err := normalizeItems(warehouseID, items)
	if err != nil {
		return err
	}

	var events []event.InventoryChanged
	err = c.tx.Run(ctx, func(stockRepo repository.StockRepository, movRepo repository.MovementLogRepository) error {
		// Locks primero: la verificación de idempotencia solo es concluyente con
		// las filas bloqueadas. Antes del lock, una redelivery concurrente aún no
		// confirmada sería invisible y ambas transacciones aplicarían la reserva.
		records, err := lockItems(ctx, stockRepo, warehouseID, norm)
		if err != nil {
			return err
		}
		if reference != "" {
			done, err := movRepo.ExistsByReference(ctx, reference, entity.MovementTypeRESERVE)
			if err != nil {
				return err
			}
			if done {
				c.log.Debug().Str("reference", reference).Msg("reserva ya aplicada, redelivery absorbida")
				return nil
			}
		}
		events, err = reserveLocked(ctx, stockRepo, movRepo, warehouseID, records, norm, reference)
		return err
	})
	if err != nil {
		return err
	}
	c.publish(ctx, events)
	return nil
}

// ReleaseStock decrementa reserved_quantity (simétrico a ReserveStock), usado en cancelaciones.
// Las cantidades se recortan contra lo efectivamente reservado para no caer en negativo.
func (c *Coordinator) ReleaseStock(ctx context.Context, warehouseID string, items []ItemRequest, reference string) error {
	norm, err := normalizeItems(warehouseID, items)
	if err != nil {
		return err
	}

	var events []event.InventoryChanged
	err = c.tx.Run(ctx, func(stockRepo repository.StockRepository, movRepo repository.MovementLogRepository) error {
		events, err = ReleaseInTx(ctx, stockRepo, movRepo, warehouseID, norm, reference)
		return err
	})
	if err != nil {
		return err
	}
	c.publish(ctx, events)
	return nil
}

// ConfirmDeduction decrementa quantity Y reserved_quantity por la cantidad
// efectivamente recogida: es el momento en que el stock físico sale del ledger lógico.
// Idempotente por reference (un reintento no deduce dos veces).
func (c *Coordinator) ConfirmDeduction(ctx context.Context, warehouseID string, items []ItemRequest, reference, actor string) error {
	norm, err := normalizeItems(warehouseID, items)
	if err != nil {
		return err
	}

	var events []event.InventoryChanged
	err = c.tx.Run(ctx, func(stockRepo repository.StockRepository, movRepo repository.MovementLogRepository) error {
		// Mismo orden que en ReserveStock: locks y después la verificación.
		records, err := lockItems(ctx, stockRepo, warehouseID, norm)
		if err != nil {
			return err
		}
		if reference != "" {
			done, err := movRepo.ExistsByReference(ctx, reference, entity.MovementTypeOUTBOUND)
			if err != nil {
				return err
			}
			if done {
				c.log.Debug().Str("reference", reference).Msg("deducción ya aplicada, reintento absorbido")
				return nil
			}
		}
		events, err = deductLocked(ctx, stockRepo, movRepo, warehouseID, records, norm, reference, actor)
		return err
	})
	if err != nil {
		return err
	}
	c.publish(ctx, events)
	return nil
}

func (c *Coordinator) publish(ctx context.Context, events []event.InventoryChanged) {
	if c.events == nil {
		return
	}
	for _, evt := range events {
		if err := c.events.PublishInventoryChanged(ctx, evt); err != nil {
			c.log.Warn().Err(err).
				Str("sku_id", evt.SKUID).
				Str("change_type", evt.ChangeType).
				Msg("no se pudo publicar inventory_changed")
		}
	}
}

// lockItems bloquea la fila de cada SKU (SELECT FOR UPDATE) y devuelve los
// registros en el mismo orden que items. Asume items normalizados (ordenados
// por SKU ascendente, sin duplicados): ese es el orden de adquisición de locks.
func lockItems(
	ctx context.Context,
	stockRepo repository.StockRepository,
	warehouseID string,
	items []ItemRequest,
) ([]*entity.StockRecord, error) {
	records := make([]*entity.StockRecord, 0, len(items))
	for _, it := range items {
		stock, err := stockRepo.GetForUpdate(ctx, warehouseID, it.SKUID)
		if err != nil {
			return nil, err
		}
		records = append(records, stock)
	}
	return records, nil
}

// ReserveInTx aplica la reserva usando los repositorios del caller (misma transacción).
// Asume items normalizados (ordenados por SKU ascendente, sin duplicados).
func ReserveInTx(
	ctx context.Context,
	stockRepo repository.StockRepository,
	movRepo repository.MovementLogRepository,
	warehouseID string,
	items []ItemRequest,
	reference string,
) ([]event.InventoryChanged, error) {
	records, err := lockItems(ctx, stockRepo, warehouseID, items)
	if err != nil {
		return nil, err
	}
	return reserveLocked(ctx, stockRepo, movRepo, warehouseID, records, items, reference)
}

func reserveLocked(
	ctx context.Context,
	stockRepo repository.StockRepository,
	movRepo repository.MovementLogRepository,
	warehouseID string,
	records []*entity.StockRecord,
	items []ItemRequest,
	reference string,
) ([]event.InventoryChanged, error) {
	now := time.Now()
	events := make([]event.InventoryChanged, 0, len(items))
	for i, it := range items {
		stock := records[i]
		if stock.Available() < it.Quantity {
			return nil, fmt.Errorf("sku %s: disponible %d < solicitado %d: %w",
				it.SKUID, stock.Available(), it.Quantity, domain.ErrInsufficientStock)
		}
		stock.ReservedQuantity += it.Quantity
		stock.UpdatedAt = now
		if err := stock.Validate(); err != nil {
			return nil, err
		}
		if err := stockRepo.Upsert(ctx, stock); err != nil {
			return nil, err
		}
		if err := movRepo.Append(ctx, &entity.MovementLogEntry{
			LedgerRef:    stock.LedgerRef(),
			SKUID:        it.SKUID,
			Delta:        0, // la reserva no mueve cantidad física
			MovementType: entity.MovementTypeRESERVE,
			Reference:    reference,
			BalanceAfter: stock.Quantity,
			CreatedAt:    now,
		}); err != nil {
			return nil, err
		}
		events = append(events, event.InventoryChanged{
			SKUID:          it.SKUID,
			WarehouseID:    warehouseID,
			DeltaAvailable: -it.Quantity,
			DeltaReserved:  it.Quantity,
			Reference:      reference,
			ChangeType:     entity.MovementTypeRESERVE,
			OccurredAt:     now,
		})
	}
	return events, nil
}

// ReleaseInTx libera reservas usando los repositorios del caller (misma transacción).
// Recorta cada cantidad contra lo reservado; liberar más de lo reservado no es un error.
func ReleaseInTx(
	ctx context.Context,
	stockRepo repository.StockRepository,
	movRepo repository.MovementLogRepository,
	warehouseID string,
	items []ItemRequest,
	reference string,
) ([]event.InventoryChanged, error) {
	now := time.Now()
	events := make([]event.InventoryChanged, 0, len(items))
	for _, it := range items {
		stock, err := stockRepo.GetForUpdate(ctx, warehouseID, it.SKUID)
		if err != nil {
			return nil, err
		}
		release := it.Quantity
		if release > stock.ReservedQuantity {
			release = stock.ReservedQuantity
		}
		if release == 0 {
			continue
		}
		stock.ReservedQuantity -= release
		stock.UpdatedAt = now
		if err := stock.Validate(); err != nil {
			return nil, err
		}
		if err := stockRepo.Upsert(ctx, stock); err != nil {
			return nil, err
		}
		if err := movRepo.Append(ctx, &entity.MovementLogEntry{
			LedgerRef:    stock.LedgerRef(),
			SKUID:        it.SKUID,
			Delta:        0,
			MovementType: entity.MovementTypeRELEASE,
			Reference:    reference,
			BalanceAfter: stock.Quantity,
			CreatedAt:    now,
		}); err != nil {
			return nil, err
		}
		events = append(events, event.InventoryChanged{
			SKUID:          it.SKUID,
			WarehouseID:    warehouseID,
			DeltaAvailable: release,
			DeltaReserved:  -release,
			Reference:      reference,
			ChangeType:     entity.MovementTypeRELEASE,
			OccurredAt:     now,
		})
	}
	return events, nil
}

// DeductInTx ejecuta la deducción física usando los repositorios del caller
// (misma transacción; el orquestador la invoca al completar empaque).
func DeductInTx(
	ctx context.Context,
	stockRepo repository.StockRepository,
	movRepo repository.MovementLogRepository,
	warehouseID string,
	items []ItemRequest,
	reference, actor string,
) ([]event.InventoryChanged, error) {
	records, err := lockItems(ctx, stockRepo, warehouseID, items)
	if err != nil {
		return nil, err
	}
	return deductLocked(ctx, stockRepo, movRepo, warehouseID, records, items, reference, actor)
}

func deductLocked(
	ctx context.Context,
	stockRepo repository.StockRepository,
	movRepo repository.MovementLogRepository,
	warehouseID string,
	records []*entity.StockRecord,
	items []ItemRequest,
	reference, actor string,
) ([]event.InventoryChanged, error) {
	now := time.Now()
	events := make([]event.InventoryChanged, 0, len(items))
	for i, it := range items {
		stock := records[i]
		if stock.Quantity < it.Quantity {
			return nil, fmt.Errorf("sku %s: cantidad %d < deducción %d: %w",
				it.SKUID, stock.Quantity, it.Quantity, domain.ErrInsufficientStock)
		}
		if stock.ReservedQuantity < it.Quantity {
			return nil, fmt.Errorf("sku %s: reservado %d < deducción %d: %w",
				it.SKUID, stock.ReservedQuantity, it.Quantity, domain.ErrStateConflict)
		}
		stock.Quantity -= it.Quantity
		stock.ReservedQuantity -= it.Quantity
		stock.UpdatedAt = now
		if err := stock.Validate(); err != nil {
			return nil, err
		}
		if err := stockRepo.Upsert(ctx, stock); err != nil {
			return nil, err
		}
		if err := movRepo.Append(ctx, &entity.MovementLogEntry{
			LedgerRef:    stock.LedgerRef(),
			SKUID:        it.SKUID,
			Delta:        -it.Quantity,
			MovementType: entity.MovementTypeOUTBOUND,
			Reference:    reference,
			BalanceAfter: stock.Quantity,
			Actor:        actor,
			CreatedAt:    now,
		}); err != nil {
			return nil, err
		}
		// quantity y reserved bajan por igual: la disponibilidad no cambia
		events = append(events, event.InventoryChanged{
			SKUID:          it.SKUID,
			WarehouseID:    warehouseID,
			DeltaAvailable: 0,
			DeltaReserved:  -it.Quantity,
			Reference:      reference,
			ChangeType:     entity.MovementTypeOUTBOUND,
			OccurredAt:     now,
		})
	}
	return events, nil
}

// normalizeItems valida la petición, funde duplicados de SKU y ordena ascendente.
// El orden ascendente de SKU es el orden de adquisición de locks: único mecanismo
// contra deadlocks entre llamadas concurrentes con SKUs solapados.
func normalizeItems(warehouseID string, items []ItemRequest) ([]ItemRequest, error) {
	if warehouseID == "" || len(items) == 0 {
		return nil, domain.ErrInvalidInput
	}
	merged := make(map[string]int64, len(items))
	for _, it := range items {
		if it.SKUID == "" || it.Quantity <= 0 {
			return nil, domain.ErrInvalidInput
		}
		merged[it.SKUID] += it.Quantity
	}
	norm := make([]ItemRequest, 0, len(merged))
	for sku, qty := range merged {
		norm = append(norm, ItemRequest{SKUID: sku, Quantity: qty})
	}
	sort.Slice(norm, func(i, j int) bool { return norm[i].SKUID < norm[j].SKUID })
	return norm, nil
}
