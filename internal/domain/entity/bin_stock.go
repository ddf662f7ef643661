package entity

import (
	"fmt"
	"time"

	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain"
)

// BinStockRecord representa el stock físico de un SKU en un bin (ubicación mínima de almacenamiento).
// La suma de bins de una bodega es la verdad física contra la que se reconcilia el ledger lógico.
type BinStockRecord struct {
	BinID            string
	SKUID            string
	Quantity         int64
	ReservedQuantity int64
	UpdatedAt        time.Time
}

// Available devuelve las unidades físicas no reclamadas por ninguna asignación de picking.
func (b *BinStockRecord) Available() int64 {
	return b.Quantity - b.ReservedQuantity
}

// Validate verifica la invariante 0 <= reserved <= quantity antes de cada commit.
func (b *BinStockRecord) Validate() error {
	if b.Quantity < 0 {
		return fmt.Errorf("bin %s/%s: cantidad negativa (%d): %w",
			b.BinID, b.SKUID, b.Quantity, domain.ErrInvariantViolated)
	}
	if b.ReservedQuantity < 0 || b.ReservedQuantity > b.Quantity {
		return fmt.Errorf("bin %s/%s: reservado %d fuera de rango [0, %d]: %w",
			b.BinID, b.SKUID, b.ReservedQuantity, b.Quantity, domain.ErrInvariantViolated)
	}
	return nil
}

// LedgerRef identifica la fila del ledger físico en el movement log.
func (b *BinStockRecord) LedgerRef() string {
	return BinLedgerRef(b.BinID, b.SKUID)
}

// BinLedgerRef construye la referencia de ledger para una fila bin+SKU.
func BinLedgerRef(binID, skuID string) string {
	return fmt.Sprintf("bin:%s:%s", binID, skuID)
}

// Bin es la ubicación física mínima dentro de una bodega.
type Bin struct {
	ID          string
	WarehouseID string
	Code        string
	CreatedAt   time.Time
}
