package repository

import (
	"context"

	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain/entity"
)

// StockRepository define el puerto para el ledger lógico por bodega+SKU.
// Usado dentro de transacciones para garantizar consistencia.
type StockRepository interface {
	Get(ctx context.Context, warehouseID, skuID string) (*entity.StockRecord, error)
	// GetForUpdate bloquea la fila para update (SELECT FOR UPDATE).
	// Los callers deben pedir filas en orden ascendente de SKU: es el único
	// mecanismo contra deadlocks del sistema.
	GetForUpdate(ctx context.Context, warehouseID, skuID string) (*entity.StockRecord, error)
	Upsert(ctx context.Context, record *entity.StockRecord) error
	// ListLedgerSKUs pagina los SKUs presentes en cualquiera de los dos ledgers
	// de la bodega (unión), en orden ascendente a partir de afterSKU.
	ListLedgerSKUs(ctx context.Context, warehouseID, afterSKU string, limit int) ([]string, error)
}
