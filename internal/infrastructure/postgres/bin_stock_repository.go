package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain/entity"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain/repository"
)

var _ repository.BinStockRepository = (*BinStockRepo)(nil)

// BinStockRepo implementación del ledger físico sobre PostgreSQL (usable con pool o tx).
type BinStockRepo struct {
	q Querier
}

// NewBinStockRepository construye el adaptador. Pasar pool o tx (Querier).
func NewBinStockRepository(q Querier) *BinStockRepo {
	return &BinStockRepo{q: q}
}

// Get obtiene el stock físico de un SKU en un bin.
// Si no existe devuelve un registro en cero.
func (r *BinStockRepo) Get(ctx context.Context, binID, skuID string) (*entity.BinStockRecord, error) {
	query := `
		SELECT bin_id, sku_id, quantity, reserved_quantity, updated_at
		FROM bin_stock_records WHERE bin_id = $1 AND sku_id = $2`
	var b entity.BinStockRecord
	err := r.q.QueryRow(ctx, query, binID, skuID).Scan(
		&b.BinID, &b.SKUID, &b.Quantity, &b.ReservedQuantity, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &entity.BinStockRecord{BinID: binID, SKUID: skuID}, nil
		}
		return nil, fmt.Errorf("get bin stock: %w", err)
	}
	return &b, nil
}

// GetForUpdate obtiene el registro y bloquea la fila (SELECT FOR UPDATE).
// Materializa la fila en cero si no existe, igual que el ledger agregado: sin
// fila no hay lock y dos primeras llegadas concurrentes perderían unidades.
// El FK a bins sigue rechazando recepciones hacia un bin desconocido.
func (r *BinStockRepo) GetForUpdate(ctx context.Context, binID, skuID string) (*entity.BinStockRecord, error) {
	insert := `
		INSERT INTO bin_stock_records (bin_id, sku_id)
		VALUES ($1, $2)
		ON CONFLICT (bin_id, sku_id) DO NOTHING`
	if _, err := r.q.Exec(ctx, insert, binID, skuID); err != nil {
		return nil, fmt.Errorf("materialize bin stock: %w", err)
	}
	query := `
		SELECT bin_id, sku_id, quantity, reserved_quantity, updated_at
		FROM bin_stock_records WHERE bin_id = $1 AND sku_id = $2
		FOR UPDATE`
	var b entity.BinStockRecord
	err := r.q.QueryRow(ctx, query, binID, skuID).Scan(
		&b.BinID, &b.SKUID, &b.Quantity, &b.ReservedQuantity, &b.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get bin stock for update: %w", err)
	}
	return &b, nil
}

// ListForAllocationForUpdate bloquea y devuelve los bins de la bodega con
// disponibilidad para el SKU. El ORDER BY bin_id fija el orden de adquisición
// de locks; la política de asignación reordena después en memoria.
func (r *BinStockRepo) ListForAllocationForUpdate(ctx context.Context, warehouseID, skuID string) ([]*entity.BinStockRecord, error) {
	query := `
		SELECT bs.bin_id, bs.sku_id, bs.quantity, bs.reserved_quantity, bs.updated_at
		FROM bin_stock_records bs
		JOIN bins b ON b.id = bs.bin_id
		WHERE b.warehouse_id = $1 AND bs.sku_id = $2 AND bs.quantity - bs.reserved_quantity > 0
		ORDER BY bs.bin_id
		FOR UPDATE OF bs`
	rows, err := r.q.Query(ctx, query, warehouseID, skuID)
	if err != nil {
		return nil, fmt.Errorf("list bins for allocation: %w", err)
	}
	defer rows.Close()
	var bins []*entity.BinStockRecord
	for rows.Next() {
		var b entity.BinStockRecord
		if err := rows.Scan(&b.BinID, &b.SKUID, &b.Quantity, &b.ReservedQuantity, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan bin stock: %w", err)
		}
		bins = append(bins, &b)
	}
	return bins, rows.Err()
}

// Upsert inserta o actualiza los contadores del registro.
func (r *BinStockRepo) Upsert(ctx context.Context, record *entity.BinStockRecord) error {
	query := `
		INSERT INTO bin_stock_records (bin_id, sku_id, quantity, reserved_quantity, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (bin_id, sku_id)
		DO UPDATE SET quantity = EXCLUDED.quantity, reserved_quantity = EXCLUDED.reserved_quantity, updated_at = now()`
	_, err := r.q.Exec(ctx, query, record.BinID, record.SKUID, record.Quantity, record.ReservedQuantity)
	if err != nil {
		return fmt.Errorf("upsert bin stock: %w", err)
	}
	return nil
}

// SumBySKU suma quantity y reserved de todos los bins de la bodega para el SKU.
func (r *BinStockRepo) SumBySKU(ctx context.Context, warehouseID, skuID string) (int64, int64, error) {
	query := `
		SELECT COALESCE(SUM(bs.quantity), 0), COALESCE(SUM(bs.reserved_quantity), 0)
		FROM bin_stock_records bs
		JOIN bins b ON b.id = bs.bin_id
		WHERE b.warehouse_id = $1 AND bs.sku_id = $2`
	var quantity, reserved int64
	if err := r.q.QueryRow(ctx, query, warehouseID, skuID).Scan(&quantity, &reserved); err != nil {
		return 0, 0, fmt.Errorf("sum bin stock: %w", err)
	}
	return quantity, reserved, nil
}
