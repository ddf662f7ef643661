package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain/entity"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain/repository"
)

var _ repository.PackingTaskRepository = (*PackingTaskRepo)(nil)

// PackingTaskRepo implementación de tareas de empaque sobre PostgreSQL.
type PackingTaskRepo struct {
	q Querier
}

// NewPackingTaskRepository construye el adaptador. Pasar pool o tx (Querier).
func NewPackingTaskRepository(q Querier) *PackingTaskRepo {
	return &PackingTaskRepo{q: q}
}

// Create inserta la tarea de empaque (1:1 con su picking).
func (r *PackingTaskRepo) Create(ctx context.Context, task *entity.PackingTask) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	query := `
		INSERT INTO packing_tasks (id, picking_task_id, status, packer, completed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	packer := (*string)(nil)
	if task.Packer != "" {
		packer = &task.Packer
	}
	_, err := r.q.Exec(ctx, query,
		task.ID, task.PickingTaskID, task.Status, packer, task.CompletedAt, task.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create packing task: %w", err)
	}
	return nil
}

// GetByID obtiene la tarea o nil si no existe.
func (r *PackingTaskRepo) GetByID(ctx context.Context, id string) (*entity.PackingTask, error) {
	return r.getOne(ctx, id, false)
}

// GetByIDForUpdate obtiene la tarea bloqueando su fila: el guard de idempotencia
// de CompletePacking depende de este lock.
func (r *PackingTaskRepo) GetByIDForUpdate(ctx context.Context, id string) (*entity.PackingTask, error) {
	return r.getOne(ctx, id, true)
}

func (r *PackingTaskRepo) getOne(ctx context.Context, id string, forUpdate bool) (*entity.PackingTask, error) {
	query := `
		SELECT id, picking_task_id, status, packer, completed_at, created_at
		FROM packing_tasks WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}
	var t entity.PackingTask
	var packer *string
	err := r.q.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.PickingTaskID, &t.Status, &packer, &t.CompletedAt, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get packing task: %w", err)
	}
	if packer != nil {
		t.Packer = *packer
	}
	return &t, nil
}

// Update actualiza estado, packer y marca de completado.
func (r *PackingTaskRepo) Update(ctx context.Context, task *entity.PackingTask) error {
	query := `
		UPDATE packing_tasks SET status = $2, packer = $3, completed_at = $4 WHERE id = $1`
	packer := (*string)(nil)
	if task.Packer != "" {
		packer = &task.Packer
	}
	_, err := r.q.Exec(ctx, query, task.ID, task.Status, packer, task.CompletedAt)
	if err != nil {
		return fmt.Errorf("update packing task: %w", err)
	}
	return nil
}
