package http

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/application/dto"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain/entity"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain/repository"
)

// StockHandler expone lecturas del ledger lógico y del log de movimientos.
type StockHandler struct {
	stockRepo repository.StockRepository
	movRepo   repository.MovementLogRepository
}

// NewStockHandler construye el handler.
func NewStockHandler(stockRepo repository.StockRepository, movRepo repository.MovementLogRepository) *StockHandler {
	return &StockHandler{stockRepo: stockRepo, movRepo: movRepo}
}

// GetStock devuelve los contadores y la disponibilidad de un SKU en una bodega.
func (h *StockHandler) GetStock(c *fiber.Ctx) error {
	warehouseID := c.Params("warehouseID")
	skuID := c.Params("skuID")
	record, err := h.stockRepo.Get(c.Context(), warehouseID, skuID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"warehouse_id":      record.WarehouseID,
		"sku_id":            record.SKUID,
		"quantity":          record.Quantity,
		"reserved_quantity": record.ReservedQuantity,
		"available":         record.Available(),
	})
}

// ListMovementsByLedger devuelve el historial de una fila de ledger, paginado.
func (h *StockHandler) ListMovementsByLedger(c *fiber.Ctx) error {
	ledgerRef := entity.StockLedgerRef(c.Params("warehouseID"), c.Params("skuID"))
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	movements, err := h.movRepo.ListByLedgerRef(c.Context(), ledgerRef, limit, offset)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"total":     len(movements),
		"movements": toMovementDTOs(movements),
	})
}

// ListMovementsByReference devuelve los movimientos de una referencia
// (una orden, una entrada, una corrida de reconciliación).
func (h *StockHandler) ListMovementsByReference(c *fiber.Ctx) error {
	movements, err := h.movRepo.ListByReference(c.Context(), c.Params("reference"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"total":     len(movements),
		"movements": toMovementDTOs(movements),
	})
}

func toMovementDTOs(movements []*entity.MovementLogEntry) []dto.MovementDTO {
	out := make([]dto.MovementDTO, 0, len(movements))
	for _, m := range movements {
		out = append(out, dto.MovementDTO{
			ID:           m.ID,
			LedgerRef:    m.LedgerRef,
			SKUID:        m.SKUID,
			Delta:        m.Delta,
			MovementType: m.MovementType,
			Reference:    m.Reference,
			BalanceAfter: m.BalanceAfter,
			Actor:        m.Actor,
			CreatedAt:    m.CreatedAt.Format(time.RFC3339),
		})
	}
	return out
}
