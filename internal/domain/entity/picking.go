package entity

import "time"

// Estados de una tarea de picking.
const (
	PickingStatusPending    = "PENDING"
	PickingStatusInProgress = "IN_PROGRESS"
	PickingStatusCompleted  = "COMPLETED"
	PickingStatusCancelled  = "CANCELLED"
)

// PickingTask agrupa los items a recoger para una orden confirmada.
// Pasa a IN_PROGRESS implícitamente con el primer escaneo y a COMPLETED
// cuando todos los items quedan resueltos (recogidos o saltados por faltante).
type PickingTask struct {
	ID          string
	OrderID     string
	WarehouseID string
	Status      string
	Picker      string
	StartedAt   *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	Items       []*PickItem
}

// PickItem es una línea de picking: qué SKU recoger, de qué bin y cuánto.
type PickItem struct {
	ID        string
	TaskID    string
	SKUID     string
	BinID     string
	QtyToPick int64
	PickedQty int64
	IsPicked  bool
}

// AllResolved indica si todos los items fueron escaneados o saltados.
func (t *PickingTask) AllResolved() bool {
	for _, it := range t.Items {
		if !it.IsPicked {
			return false
		}
	}
	return len(t.Items) > 0
}

// PickedBySKU agrega las cantidades efectivamente recogidas por SKU.
// Es la entrada para la deducción física: puede ser menor a lo reservado (short-pick).
func (t *PickingTask) PickedBySKU() map[string]int64 {
	picked := make(map[string]int64)
	for _, it := range t.Items {
		if it.PickedQty > 0 {
			picked[it.SKUID] += it.PickedQty
		}
	}
	return picked
}

// RequestedBySKU agrega las cantidades asignadas por SKU (lo comprometido al generar la tarea).
func (t *PickingTask) RequestedBySKU() map[string]int64 {
	requested := make(map[string]int64)
	for _, it := range t.Items {
		requested[it.SKUID] += it.QtyToPick
	}
	return requested
}
