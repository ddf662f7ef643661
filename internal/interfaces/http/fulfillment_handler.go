package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/application/dto"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/application/fulfillment"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain/entity"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain/repository"
)

// FulfillmentHandler maneja las peticiones de la app de bodega:
// consulta de tareas, escaneos, empaque y cancelaciones.
type FulfillmentHandler struct {
	orchestrator *fulfillment.Orchestrator
	pickingRepo  repository.PickingTaskRepository
}

// NewFulfillmentHandler construye el handler.
func NewFulfillmentHandler(orchestrator *fulfillment.Orchestrator, pickingRepo repository.PickingTaskRepository) *FulfillmentHandler {
	return &FulfillmentHandler{orchestrator: orchestrator, pickingRepo: pickingRepo}
}

// GetPickingTask devuelve la tarea de picking con sus items.
func (h *FulfillmentHandler) GetPickingTask(c *fiber.Ctx) error {
	task, err := h.pickingRepo.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	if task == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "tarea no encontrada"})
	}
	return c.JSON(toPickingTaskDTO(task))
}

// GetPickingTaskByOrder devuelve la tarea de picking de una orden.
func (h *FulfillmentHandler) GetPickingTaskByOrder(c *fiber.Ctx) error {
	task, err := h.pickingRepo.GetByOrderID(c.Context(), c.Params("orderID"))
	if err != nil {
		return writeError(c, err)
	}
	if task == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "tarea no encontrada"})
	}
	return c.JSON(toPickingTaskDTO(task))
}

// ScanPick registra el escaneo de un item de la tarea.
func (h *FulfillmentHandler) ScanPick(c *fiber.Ctx) error {
	var in dto.ScanPickRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	err := h.orchestrator.ScanPick(c.Context(), c.Params("id"), in.PickItemID, in.Quantity, in.Actor)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"message": "escaneo registrado"})
}

// SkipPickItem marca un item como no recogible y libera su reserva.
func (h *FulfillmentHandler) SkipPickItem(c *fiber.Ctx) error {
	var in dto.SkipPickItemRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	err := h.orchestrator.SkipPickItem(c.Context(), c.Params("id"), in.PickItemID, in.Actor)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"message": "item omitido"})
}

// CancelPicking cancela la tarea y revierte reservas.
func (h *FulfillmentHandler) CancelPicking(c *fiber.Ctx) error {
	var in dto.CancelPickingRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if err := h.orchestrator.CancelPicking(c.Context(), c.Params("id"), in.Actor); err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"message": "tarea cancelada"})
}

// CompletePacking cierra el empaque, deduce el stock y devuelve el despacho con su OTP.
func (h *FulfillmentHandler) CompletePacking(c *fiber.Ctx) error {
	var in dto.CompletePackingRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	dispatch, err := h.orchestrator.CompletePacking(c.Context(), c.Params("id"), in.Packer)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.DispatchDTO{
		ID:          dispatch.ID,
		OrderID:     dispatch.OrderID,
		WarehouseID: dispatch.WarehouseID,
		Status:      dispatch.Status,
		PickupOTP:   dispatch.PickupOTP,
	})
}

func toPickingTaskDTO(task *entity.PickingTask) dto.PickingTaskDTO {
	items := make([]dto.PickItemDTO, 0, len(task.Items))
	for _, it := range task.Items {
		items = append(items, dto.PickItemDTO{
			ID:        it.ID,
			SKUID:     it.SKUID,
			BinID:     it.BinID,
			QtyToPick: it.QtyToPick,
			PickedQty: it.PickedQty,
			IsPicked:  it.IsPicked,
		})
	}
	return dto.PickingTaskDTO{
		ID:          task.ID,
		OrderID:     task.OrderID,
		WarehouseID: task.WarehouseID,
		Status:      task.Status,
		Picker:      task.Picker,
		Items:       items,
	}
}
