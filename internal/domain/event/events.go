// Package event define los contratos de eventos que cruzan la frontera del core.
// Los eventos salientes se publican únicamente después del commit de la transacción
// que los origina, nunca en rollback.
package event

import "time"

// OrderConfirmed es el evento entrante que dispara reserva + generación de picking.
// Su entrega es at-least-once: el consumidor debe absorber redeliveries.
type OrderConfirmed struct {
	OrderID     string      `json:"order_id"`
	WarehouseID string      `json:"warehouse_id"`
	Items       []OrderItem `json:"items"`
}

// OrderItem es una línea de la orden confirmada.
type OrderItem struct {
	SKUID    string `json:"sku_id"`
	Quantity int64  `json:"quantity"`
}

// InventoryChanged notifica a analítica/notificaciones un cambio en el ledger lógico.
type InventoryChanged struct {
	SKUID          string    `json:"sku_id"`
	WarehouseID    string    `json:"warehouse_id"`
	DeltaAvailable int64     `json:"delta_available"`
	DeltaReserved  int64     `json:"delta_reserved"`
	Reference      string    `json:"reference"`
	ChangeType     string    `json:"change_type"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// FulfillmentReady notifica al colaborador de delivery que hay un paquete listo para asignar rider.
type FulfillmentReady struct {
	DispatchID  string    `json:"dispatch_id"`
	OrderID     string    `json:"order_id"`
	WarehouseID string    `json:"warehouse_id"`
	PickupOTP   string    `json:"pickup_otp"`
	OccurredAt  time.Time `json:"occurred_at"`
}
