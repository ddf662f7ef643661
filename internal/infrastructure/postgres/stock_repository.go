package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain/entity"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain/repository"
)

var _ repository.StockRepository = (*StockRepo)(nil)

// StockRepo implementación del ledger lógico sobre PostgreSQL (usable con pool o tx).
type StockRepo struct {
	q Querier
}

// NewStockRepository construye el adaptador. Pasar pool o tx (Querier).
func NewStockRepository(q Querier) *StockRepo {
	return &StockRepo{q: q}
}

// Get obtiene el registro de stock de un SKU en una bodega.
// Si no existe devuelve un registro en cero (se materializa con la primera entrada).
func (r *StockRepo) Get(ctx context.Context, warehouseID, skuID string) (*entity.StockRecord, error) {
	query := `
		SELECT warehouse_id, sku_id, quantity, reserved_quantity, updated_at
		FROM stock_records WHERE warehouse_id = $1 AND sku_id = $2`
	var s entity.StockRecord
	err := r.q.QueryRow(ctx, query, warehouseID, skuID).Scan(
		&s.WarehouseID, &s.SKUID, &s.Quantity, &s.ReservedQuantity, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &entity.StockRecord{WarehouseID: warehouseID, SKUID: skuID}, nil
		}
		return nil, fmt.Errorf("get stock record: %w", err)
	}
	return &s, nil
}

// GetForUpdate obtiene el registro y bloquea la fila (SELECT FOR UPDATE).
// Materializa la fila en cero si no existe: FOR UPDATE sobre una fila ausente
// no bloquea nada y dos primeras llegadas concurrentes se pisarían la una a la otra.
func (r *StockRepo) GetForUpdate(ctx context.Context, warehouseID, skuID string) (*entity.StockRecord, error) {
	insert := `
		INSERT INTO stock_records (warehouse_id, sku_id)
		VALUES ($1, $2)
		ON CONFLICT (warehouse_id, sku_id) DO NOTHING`
	if _, err := r.q.Exec(ctx, insert, warehouseID, skuID); err != nil {
		return nil, fmt.Errorf("materialize stock record: %w", err)
	}
	query := `
		SELECT warehouse_id, sku_id, quantity, reserved_quantity, updated_at
		FROM stock_records WHERE warehouse_id = $1 AND sku_id = $2
		FOR UPDATE`
	var s entity.StockRecord
	err := r.q.QueryRow(ctx, query, warehouseID, skuID).Scan(
		&s.WarehouseID, &s.SKUID, &s.Quantity, &s.ReservedQuantity, &s.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get stock record for update: %w", err)
	}
	return &s, nil
}

// Upsert inserta o actualiza los contadores del registro.
func (r *StockRepo) Upsert(ctx context.Context, record *entity.StockRecord) error {
	query := `
		INSERT INTO stock_records (warehouse_id, sku_id, quantity, reserved_quantity, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (warehouse_id, sku_id)
		DO UPDATE SET quantity = EXCLUDED.quantity, reserved_quantity = EXCLUDED.reserved_quantity, updated_at = now()`
	_, err := r.q.Exec(ctx, query, record.WarehouseID, record.SKUID, record.Quantity, record.ReservedQuantity)
	if err != nil {
		return fmt.Errorf("upsert stock record: %w", err)
	}
	return nil
}

// ListLedgerSKUs pagina la unión de SKUs presentes en cualquiera de los dos
// ledgers de la bodega, en orden ascendente a partir de afterSKU.
func (r *StockRepo) ListLedgerSKUs(ctx context.Context, warehouseID, afterSKU string, limit int) ([]string, error) {
	query := `
		SELECT sku_id FROM (
			SELECT sku_id FROM stock_records WHERE warehouse_id = $1
			UNION
			SELECT bs.sku_id
			FROM bin_stock_records bs
			JOIN bins b ON b.id = bs.bin_id
			WHERE b.warehouse_id = $1
		) skus
		WHERE sku_id > $2
		ORDER BY sku_id
		LIMIT $3`
	rows, err := r.q.Query(ctx, query, warehouseID, afterSKU, limit)
	if err != nil {
		return nil, fmt.Errorf("list ledger skus: %w", err)
	}
	defer rows.Close()
	var skus []string
	for rows.Next() {
		var sku string
		if err := rows.Scan(&sku); err != nil {
			return nil, fmt.Errorf("scan sku: %w", err)
		}
		skus = append(skus, sku)
	}
	return skus, rows.Err()
}
