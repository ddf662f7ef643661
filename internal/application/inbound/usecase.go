// Package inbound registra llegadas de mercancía y ajustes manuales sobre los
// dos ledgers (bin y agregado) en una sola transacción.
package inbound

import (
	"context"
	"fmt"
	"time"

	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain/entity"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain/event"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain/repository"
	"github.com/Mdhelaluddin3391/quickdash-sub000/pkg/logger"
)

// TxRunner ejecuta una función dentro de una transacción con los repositorios
// de ambos ledgers y del movement log atados a esa tx.
type TxRunner interface {
	RunLedgers(ctx context.Context, fn func(
		stockRepo repository.StockRepository,
		binRepo repository.BinStockRepository,
		movRepo repository.MovementLogRepository,
	) error) error
}

// EventPublisher publica inventory_changed tras el commit.
type EventPublisher interface {
	PublishInventoryChanged(ctx context.Context, evt event.InventoryChanged) error
}

// UseCase registra entradas y ajustes de stock.
type UseCase struct {
	tx     TxRunner
	events EventPublisher
	log    *logger.Logger
}

// NewUseCase construye el caso de uso. events puede ser nil.
func NewUseCase(tx TxRunner, events EventPublisher, log *logger.Logger) *UseCase {
	return &UseCase{tx: tx, events: events, log: log}
}

// ReceiveStock registra la llegada de qty unidades de un SKU a un bin: crea las
// filas de ambos ledgers en la primera llegada e incrementa bin y agregado en la
// misma transacción, con un movimiento INBOUND por ledger.
// Idempotente por reference (un GRN reintentado no suma dos veces).
func (u *UseCase) ReceiveStock(ctx context.Context, warehouseID, binID, skuID string, qty int64, reference, actor string) error {
	if warehouseID == "" || binID == "" || skuID == "" || qty <= 0 {
		return domain.ErrInvalidInput
	}

	var evt *event.InventoryChanged
	err := u.tx.RunLedgers(ctx, func(
		stockRepo repository.StockRepository,
		binRepo repository.BinStockRepository,
		movRepo repository.MovementLogRepository,
	) error {
		now := time.Now()

		// El lock del bin va primero: la verificación de idempotencia solo es
		// concluyente cuando un reintento concurrente del mismo GRN ya no puede
		// estar en vuelo sobre esta fila.
		bin, err := binRepo.GetForUpdate(ctx, binID, skuID)
		if err != nil {
			return err
		}
		if reference != "" {
			done, err := movRepo.ExistsByReference(ctx, reference, entity.MovementTypeINBOUND)
			if err != nil {
				return err
			}
			if done {
				u.log.Debug().Str("reference", reference).Msg("entrada ya registrada, reintento absorbido")
				return nil
			}
		}
		bin.Quantity += qty
		bin.UpdatedAt = now
		if err := bin.Validate(); err != nil {
			return err
		}
		if err := binRepo.Upsert(ctx, bin); err != nil {
			return err
		}
		if err := movRepo.Append(ctx, &entity.MovementLogEntry{
			LedgerRef:    bin.LedgerRef(),
			SKUID:        skuID,
			Delta:        qty,
			MovementType: entity.MovementTypeINBOUND,
			Reference:    reference,
			BalanceAfter: bin.Quantity,
			Actor:        actor,
			CreatedAt:    now,
		}); err != nil {
			return err
		}

		stock, err := stockRepo.GetForUpdate(ctx, warehouseID, skuID)
		if err != nil {
			return err
		}
		stock.Quantity += qty
		stock.UpdatedAt = now
		if err := stock.Validate(); err != nil {
			return err
		}
		if err := stockRepo.Upsert(ctx, stock); err != nil {
			return err
		}
		if err := movRepo.Append(ctx, &entity.MovementLogEntry{
			LedgerRef:    stock.LedgerRef(),
			SKUID:        skuID,
			Delta:        qty,
			MovementType: entity.MovementTypeINBOUND,
			Reference:    reference,
			BalanceAfter: stock.Quantity,
			Actor:        actor,
			CreatedAt:    now,
		}); err != nil {
			return err
		}

		evt = &event.InventoryChanged{
			SKUID:          skuID,
			WarehouseID:    warehouseID,
			DeltaAvailable: qty,
			DeltaReserved:  0,
			Reference:      reference,
			ChangeType:     entity.MovementTypeINBOUND,
			OccurredAt:     now,
		}
		return nil
	})
	if err != nil {
		return err
	}
	u.publish(ctx, evt)
	return nil
}

// AdjustBinStock aplica una corrección manual (conteo cíclico, merma) sobre un
// bin y propaga el delta al agregado en la misma transacción, con movimientos
// ADJUST en ambos ledgers. Un delta que viole la invariante se rechaza completo.
func (u *UseCase) AdjustBinStock(ctx context.Context, warehouseID, binID, skuID string, delta int64, reference, actor string) error {
	if warehouseID == "" || binID == "" || skuID == "" || delta == 0 {
		return domain.ErrInvalidInput
	}

	var evt *event.InventoryChanged
	err := u.tx.RunLedgers(ctx, func(
		stockRepo repository.StockRepository,
		binRepo repository.BinStockRepository,
		movRepo repository.MovementLogRepository,
	) error {
		now := time.Now()

		bin, err := binRepo.GetForUpdate(ctx, binID, skuID)
		if err != nil {
			return err
		}
		bin.Quantity += delta
		bin.UpdatedAt = now
		if err := bin.Validate(); err != nil {
			return fmt.Errorf("ajuste rechazado: %w", err)
		}
		if err := binRepo.Upsert(ctx, bin); err != nil {
			return err
		}
		if err := movRepo.Append(ctx, &entity.MovementLogEntry{
			LedgerRef:    bin.LedgerRef(),
			SKUID:        skuID,
			Delta:        delta,
			MovementType: entity.MovementTypeADJUST,
			Reference:    reference,
			BalanceAfter: bin.Quantity,
			Actor:        actor,
			CreatedAt:    now,
		}); err != nil {
			return err
		}

		stock, err := stockRepo.GetForUpdate(ctx, warehouseID, skuID)
		if err != nil {
			return err
		}
		stock.Quantity += delta
		stock.UpdatedAt = now
		if err := stock.Validate(); err != nil {
			return fmt.Errorf("ajuste rechazado: %w", err)
		}
		if err := stockRepo.Upsert(ctx, stock); err != nil {
			return err
		}
		if err := movRepo.Append(ctx, &entity.MovementLogEntry{
			LedgerRef:    stock.LedgerRef(),
			SKUID:        skuID,
			Delta:        delta,
			MovementType: entity.MovementTypeADJUST,
			Reference:    reference,
			BalanceAfter: stock.Quantity,
			Actor:        actor,
			CreatedAt:    now,
		}); err != nil {
			return err
		}

		evt = &event.InventoryChanged{
			SKUID:          skuID,
			WarehouseID:    warehouseID,
			DeltaAvailable: delta,
			DeltaReserved:  0,
			Reference:      reference,
			ChangeType:     entity.MovementTypeADJUST,
			OccurredAt:     now,
		}
		return nil
	})
	if err != nil {
		return err
	}
	u.publish(ctx, evt)
	return nil
}

func (u *UseCase) publish(ctx context.Context, evt *event.InventoryChanged) {
	if u.events == nil || evt == nil {
		return
	}
	if err := u.events.PublishInventoryChanged(ctx, *evt); err != nil {
		u.log.Warn().Err(err).Str("sku_id", evt.SKUID).Msg("no se pudo publicar inventory_changed")
	}
}
