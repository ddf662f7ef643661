// Package dto define los contratos de entrada/salida de la capa HTTP.
package dto

// ErrorResponse respuesta de error estándar de la API.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ReceiveStockRequest entrada de mercancía a un bin.
type ReceiveStockRequest struct {
	WarehouseID string `json:"warehouse_id"`
	BinID       string `json:"bin_id"`
	SKUID       string `json:"sku_id"`
	Quantity    int64  `json:"quantity"`
	Reference   string `json:"reference"`
	Actor       string `json:"actor"`
}

// AdjustStockRequest ajuste manual (conteo cíclico, merma, daño).
type AdjustStockRequest struct {
	WarehouseID string `json:"warehouse_id"`
	BinID       string `json:"bin_id"`
	SKUID       string `json:"sku_id"`
	Delta       int64  `json:"delta"`
	Reference   string `json:"reference"`
	Actor       string `json:"actor"`
}

// ScanPickRequest confirmación de escaneo de un item de picking.
type ScanPickRequest struct {
	PickItemID string `json:"pick_item_id"`
	Quantity   int64  `json:"quantity"`
	Actor      string `json:"actor"`
}

// SkipPickItemRequest marca un item como no recogible (bin vacío, producto dañado).
type SkipPickItemRequest struct {
	PickItemID string `json:"pick_item_id"`
	Actor      string `json:"actor"`
}

// CompletePackingRequest cierre de la tarea de empaque.
type CompletePackingRequest struct {
	Packer string `json:"packer"`
}

// CancelPickingRequest cancelación de una tarea de picking.
type CancelPickingRequest struct {
	Actor string `json:"actor"`
}

// PickItemDTO vista de un item de picking.
type PickItemDTO struct {
	ID        string `json:"id"`
	SKUID     string `json:"sku_id"`
	BinID     string `json:"bin_id"`
	QtyToPick int64  `json:"qty_to_pick"`
	PickedQty int64  `json:"picked_qty"`
	IsPicked  bool   `json:"is_picked"`
}

// PickingTaskDTO vista de una tarea de picking con sus items.
type PickingTaskDTO struct {
	ID          string        `json:"id"`
	OrderID     string        `json:"order_id"`
	WarehouseID string        `json:"warehouse_id"`
	Status      string        `json:"status"`
	Picker      string        `json:"picker,omitempty"`
	Items       []PickItemDTO `json:"items"`
}

// DispatchDTO vista del registro de despacho entregado al completar empaque.
type DispatchDTO struct {
	ID          string `json:"id"`
	OrderID     string `json:"order_id"`
	WarehouseID string `json:"warehouse_id"`
	Status      string `json:"status"`
	PickupOTP   string `json:"pickup_otp"`
}

// MovementDTO vista de una entrada del log de movimientos.
type MovementDTO struct {
	ID           string `json:"id"`
	LedgerRef    string `json:"ledger_ref"`
	SKUID        string `json:"sku_id"`
	Delta        int64  `json:"delta"`
	MovementType string `json:"movement_type"`
	Reference    string `json:"reference"`
	BalanceAfter int64  `json:"balance_after"`
	Actor        string `json:"actor,omitempty"`
	CreatedAt    string `json:"created_at"`
}
