package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/application/reconciliation"
)

// ReconciliationHandler dispara corridas de reconciliación bajo demanda.
type ReconciliationHandler struct {
	svc *reconciliation.Service
}

// NewReconciliationHandler construye el handler.
func NewReconciliationHandler(svc *reconciliation.Service) *ReconciliationHandler {
	return &ReconciliationHandler{svc: svc}
}

// Run reconcilia una bodega completa y devuelve el reporte.
func (h *ReconciliationHandler) Run(c *fiber.Ctx) error {
	report, err := h.svc.ReconcileWarehouse(c.Context(), c.Params("warehouseID"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"warehouse_id": report.WarehouseID,
		"skus_checked": report.SKUsChecked,
		"corrections":  report.Corrections,
		"total_drift":  report.TotalDrift,
		"started_at":   report.StartedAt,
		"finished_at":  report.FinishedAt,
	})
}
