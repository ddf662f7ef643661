package repository

import (
	"context"

	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain/entity"
)

// PickingTaskRepository define el puerto de persistencia para tareas de picking y sus items.
type PickingTaskRepository interface {
	// Create inserta la tarea y sus items en una sola operación lógica.
	Create(ctx context.Context, task *entity.PickingTask) error
	GetByID(ctx context.Context, id string) (*entity.PickingTask, error)
	// GetByIDForUpdate bloquea la fila de la tarea para serializar escaneos concurrentes.
	GetByIDForUpdate(ctx context.Context, id string) (*entity.PickingTask, error)
	// GetByOrderID devuelve la tarea de la orden o nil; sostiene la idempotencia
	// de la generación de tareas.
	GetByOrderID(ctx context.Context, orderID string) (*entity.PickingTask, error)
	UpdateStatus(ctx context.Context, task *entity.PickingTask) error
	UpdateItem(ctx context.Context, item *entity.PickItem) error
}

// PackingTaskRepository define el puerto de persistencia para tareas de empaque.
type PackingTaskRepository interface {
	Create(ctx context.Context, task *entity.PackingTask) error
	GetByID(ctx context.Context, id string) (*entity.PackingTask, error)
	GetByIDForUpdate(ctx context.Context, id string) (*entity.PackingTask, error)
	Update(ctx context.Context, task *entity.PackingTask) error
}

// DispatchRepository define el puerto de persistencia para registros de despacho.
type DispatchRepository interface {
	Create(ctx context.Context, record *entity.DispatchRecord) error
	GetByPackingTaskID(ctx context.Context, packingTaskID string) (*entity.DispatchRecord, error)
}
