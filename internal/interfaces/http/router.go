package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/application/fulfillment"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/application/inbound"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/application/reconciliation"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain/repository"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Orchestrator *fulfillment.Orchestrator
	InboundUC    *inbound.UseCase
	ReconSvc     *reconciliation.Service
	PickingRepo  repository.PickingTaskRepository
	StockRepo    repository.StockRepository
	MovementRepo repository.MovementLogRepository
}

// Router registra las rutas de la API de bodega.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Picking y empaque (app de bodega)
	picking := api.Group("/picking-tasks")
	fulfillmentHandler := NewFulfillmentHandler(deps.Orchestrator, deps.PickingRepo)
	picking.Get("/:id", fulfillmentHandler.GetPickingTask)
	picking.Post("/:id/scans", fulfillmentHandler.ScanPick)
	picking.Post("/:id/skips", fulfillmentHandler.SkipPickItem)
	picking.Post("/:id/cancel", fulfillmentHandler.CancelPicking)
	api.Get("/orders/:orderID/picking-task", fulfillmentHandler.GetPickingTaskByOrder)
	api.Post("/packing-tasks/:id/complete", fulfillmentHandler.CompletePacking)

	// Entradas y ajustes
	inboundGroup := api.Group("/inbound")
	inboundHandler := NewInboundHandler(deps.InboundUC)
	inboundGroup.Post("/receipts", inboundHandler.ReceiveStock)
	inboundGroup.Post("/adjustments", inboundHandler.AdjustStock)

	// Lecturas de stock y movimientos
	stockHandler := NewStockHandler(deps.StockRepo, deps.MovementRepo)
	api.Get("/stock/:warehouseID/:skuID", stockHandler.GetStock)
	api.Get("/stock/:warehouseID/:skuID/movements", stockHandler.ListMovementsByLedger)
	api.Get("/movements/:reference", stockHandler.ListMovementsByReference)

	// Reconciliación bajo demanda
	reconHandler := NewReconciliationHandler(deps.ReconSvc)
	api.Post("/reconciliation/:warehouseID/run", reconHandler.Run)
}
