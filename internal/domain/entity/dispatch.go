package entity

import "time"

// Estados de un registro de despacho.
const (
	DispatchStatusReady    = "READY"
	DispatchStatusAssigned = "ASSIGNED"
)

// DispatchRecord marca el paquete listo para entrega, 1:1 con su tarea de empaque.
// El OTP de recogida desacopla "entrega probada en bodega" de la identidad del rider:
// la asignación de rider es responsabilidad del colaborador externo de delivery.
type DispatchRecord struct {
	ID            string
	PackingTaskID string
	OrderID       string
	WarehouseID   string
	Status        string
	PickupOTP     string
	RiderRef      string
	CreatedAt     time.Time
}
