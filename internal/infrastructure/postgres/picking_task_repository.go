package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain/entity"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain/repository"
)

var _ repository.PickingTaskRepository = (*PickingTaskRepo)(nil)

// PickingTaskRepo implementación de tareas de picking sobre PostgreSQL.
type PickingTaskRepo struct {
	q Querier
}

// NewPickingTaskRepository construye el adaptador. Pasar pool o tx (Querier).
func NewPickingTaskRepository(q Querier) *PickingTaskRepo {
	return &PickingTaskRepo{q: q}
}

// Create inserta la tarea y sus items. El índice único sobre order_id convierte
// una carrera de doble generación en ErrDuplicate para el perdedor.
func (r *PickingTaskRepo) Create(ctx context.Context, task *entity.PickingTask) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	query := `
		INSERT INTO picking_tasks (id, order_id, warehouse_id, status, picker, started_at, completed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	picker := (*string)(nil)
	if task.Picker != "" {
		picker = &task.Picker
	}
	_, err := r.q.Exec(ctx, query,
		task.ID, task.OrderID, task.WarehouseID, task.Status,
		picker, task.StartedAt, task.CompletedAt, task.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("picking para orden %s: %w", task.OrderID, domain.ErrDuplicate)
		}
		return fmt.Errorf("create picking task: %w", err)
	}
	for _, item := range task.Items {
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		item.TaskID = task.ID
		itemQuery := `
			INSERT INTO pick_items (id, task_id, sku_id, bin_id, qty_to_pick, picked_qty, is_picked)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`
		_, err := r.q.Exec(ctx, itemQuery,
			item.ID, item.TaskID, item.SKUID, item.BinID, item.QtyToPick, item.PickedQty, item.IsPicked,
		)
		if err != nil {
			return fmt.Errorf("create pick item: %w", err)
		}
	}
	return nil
}

// GetByID obtiene la tarea con sus items, o nil si no existe.
func (r *PickingTaskRepo) GetByID(ctx context.Context, id string) (*entity.PickingTask, error) {
	return r.getOne(ctx, "id = $1", id, false)
}

// GetByIDForUpdate obtiene la tarea bloqueando su fila (SELECT FOR UPDATE):
// serializa escaneos concurrentes sobre la misma tarea.
func (r *PickingTaskRepo) GetByIDForUpdate(ctx context.Context, id string) (*entity.PickingTask, error) {
	return r.getOne(ctx, "id = $1", id, true)
}

// GetByOrderID obtiene la tarea de una orden, o nil si no existe.
func (r *PickingTaskRepo) GetByOrderID(ctx context.Context, orderID string) (*entity.PickingTask, error) {
	return r.getOne(ctx, "order_id = $1", orderID, false)
}

func (r *PickingTaskRepo) getOne(ctx context.Context, where, arg string, forUpdate bool) (*entity.PickingTask, error) {
	query := `
		SELECT id, order_id, warehouse_id, status, picker, started_at, completed_at, created_at
		FROM picking_tasks WHERE ` + where
	if forUpdate {
		query += " FOR UPDATE"
	}
	var t entity.PickingTask
	var picker *string
	err := r.q.QueryRow(ctx, query, arg).Scan(
		&t.ID, &t.OrderID, &t.WarehouseID, &t.Status,
		&picker, &t.StartedAt, &t.CompletedAt, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get picking task: %w", err)
	}
	if picker != nil {
		t.Picker = *picker
	}
	items, err := r.listItems(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	t.Items = items
	return &t, nil
}

func (r *PickingTaskRepo) listItems(ctx context.Context, taskID string) ([]*entity.PickItem, error) {
	query := `
		SELECT id, task_id, sku_id, bin_id, qty_to_pick, picked_qty, is_picked
		FROM pick_items WHERE task_id = $1
		ORDER BY sku_id, bin_id`
	rows, err := r.q.Query(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("list pick items: %w", err)
	}
	defer rows.Close()
	var items []*entity.PickItem
	for rows.Next() {
		var it entity.PickItem
		if err := rows.Scan(&it.ID, &it.TaskID, &it.SKUID, &it.BinID,
			&it.QtyToPick, &it.PickedQty, &it.IsPicked); err != nil {
			return nil, fmt.Errorf("scan pick item: %w", err)
		}
		items = append(items, &it)
	}
	return items, rows.Err()
}

// UpdateStatus actualiza estado, picker y marcas de tiempo de la tarea.
func (r *PickingTaskRepo) UpdateStatus(ctx context.Context, task *entity.PickingTask) error {
	query := `
		UPDATE picking_tasks
		SET status = $2, picker = $3, started_at = $4, completed_at = $5
		WHERE id = $1`
	picker := (*string)(nil)
	if task.Picker != "" {
		picker = &task.Picker
	}
	_, err := r.q.Exec(ctx, query, task.ID, task.Status, picker, task.StartedAt, task.CompletedAt)
	if err != nil {
		return fmt.Errorf("update picking task: %w", err)
	}
	return nil
}

// UpdateItem actualiza la cantidad recogida y la marca de resuelto de un item.
func (r *PickingTaskRepo) UpdateItem(ctx context.Context, item *entity.PickItem) error {
	query := `
		UPDATE pick_items SET picked_qty = $2, is_picked = $3 WHERE id = $1`
	_, err := r.q.Exec(ctx, query, item.ID, item.PickedQty, item.IsPicked)
	if err != nil {
		return fmt.Errorf("update pick item: %w", err)
	}
	return nil
}
