package entity

import (
	"fmt"
	"time"

	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain"
)

// StockRecord representa el stock lógico agregado de un SKU en una bodega.
// Es la fuente autoritativa para reservas y deducciones; nunca se borra, solo se pone en cero.
type StockRecord struct {
	WarehouseID      string
	SKUID            string
	Quantity         int64
	ReservedQuantity int64
	UpdatedAt        time.Time
}

// Available devuelve la cantidad disponible (quantity - reserved).
// Es una vista derivada de solo lectura, nunca un destino de escritura.
func (s *StockRecord) Available() int64 {
	return s.Quantity - s.ReservedQuantity
}

// Validate verifica la invariante 0 <= reserved <= quantity antes de cada commit.
func (s *StockRecord) Validate() error {
	if s.Quantity < 0 {
		return fmt.Errorf("stock %s/%s: cantidad negativa (%d): %w",
			s.WarehouseID, s.SKUID, s.Quantity, domain.ErrInvariantViolated)
	}
	if s.ReservedQuantity < 0 || s.ReservedQuantity > s.Quantity {
		return fmt.Errorf("stock %s/%s: reservado %d fuera de rango [0, %d]: %w",
			s.WarehouseID, s.SKUID, s.ReservedQuantity, s.Quantity, domain.ErrInvariantViolated)
	}
	return nil
}

// LedgerRef identifica la fila del ledger lógico en el movement log.
func (s *StockRecord) LedgerRef() string {
	return StockLedgerRef(s.WarehouseID, s.SKUID)
}

// StockLedgerRef construye la referencia de ledger para una fila bodega+SKU.
func StockLedgerRef(warehouseID, skuID string) string {
	return fmt.Sprintf("stock:%s:%s", warehouseID, skuID)
}
