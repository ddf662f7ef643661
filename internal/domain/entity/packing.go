package entity

import "time"

// Estados de una tarea de empaque.
const (
	PackingStatusPending   = "PENDING"
	PackingStatusCompleted = "COMPLETED"
)

// PackingTask es la etapa de empaque, 1:1 con su tarea de picking.
// Se crea PENDING en la misma transacción que completa el picking.
type PackingTask struct {
	ID            string
	PickingTaskID string
	Status        string
	Packer        string
	CompletedAt   *time.Time
	CreatedAt     time.Time
}
