package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/application/dto"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/application/inbound"
)

// InboundHandler maneja entradas de mercancía y ajustes manuales.
type InboundHandler struct {
	uc *inbound.UseCase
}

// NewInboundHandler construye el handler.
func NewInboundHandler(uc *inbound.UseCase) *InboundHandler {
	return &InboundHandler{uc: uc}
}

// ReceiveStock registra una entrada de mercancía a un bin.
func (h *InboundHandler) ReceiveStock(c *fiber.Ctx) error {
	var in dto.ReceiveStockRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	err := h.uc.ReceiveStock(c.Context(), in.WarehouseID, in.BinID, in.SKUID, in.Quantity, in.Reference, in.Actor)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "entrada registrada"})
}

// AdjustStock registra un ajuste manual sobre un bin (conteo, merma, daño).
func (h *InboundHandler) AdjustStock(c *fiber.Ctx) error {
	var in dto.AdjustStockRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	err := h.uc.AdjustBinStock(c.Context(), in.WarehouseID, in.BinID, in.SKUID, in.Delta, in.Reference, in.Actor)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "ajuste registrado"})
}
