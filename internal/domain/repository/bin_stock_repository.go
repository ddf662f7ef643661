package repository

import (
	"context"

	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain/entity"
)

// BinStockRepository define el puerto para el ledger físico por bin+SKU.
type BinStockRepository interface {
	Get(ctx context.Context, binID, skuID string) (*entity.BinStockRecord, error)
	// GetForUpdate bloquea la fila para update (SELECT FOR UPDATE).
	GetForUpdate(ctx context.Context, binID, skuID string) (*entity.BinStockRecord, error)
	// ListForAllocationForUpdate bloquea y devuelve los bins de la bodega con
	// disponibilidad para el SKU, ordenados por bin_id ascendente (orden de lock
	// determinista). La política de asignación reordena después en memoria.
	ListForAllocationForUpdate(ctx context.Context, warehouseID, skuID string) ([]*entity.BinStockRecord, error)
	Upsert(ctx context.Context, record *entity.BinStockRecord) error
	// SumBySKU suma quantity y reserved de todos los bins de la bodega para el SKU.
	// Es la verdad física que usa la reconciliación.
	SumBySKU(ctx context.Context, warehouseID, skuID string) (quantity, reserved int64, err error)
}
