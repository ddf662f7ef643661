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

var _ repository.DispatchRepository = (*DispatchRepo)(nil)

// DispatchRepo implementación de registros de despacho sobre PostgreSQL.
type DispatchRepo struct {
	q Querier
}

// NewDispatchRepository construye el adaptador. Pasar pool o tx (Querier).
func NewDispatchRepository(q Querier) *DispatchRepo {
	return &DispatchRepo{q: q}
}

// Create inserta el registro de despacho con su OTP de recogida.
func (r *DispatchRepo) Create(ctx context.Context, record *entity.DispatchRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	query := `
		INSERT INTO dispatch_records (id, packing_task_id, order_id, warehouse_id, status, pickup_otp, rider_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	riderRef := (*string)(nil)
	if record.RiderRef != "" {
		riderRef = &record.RiderRef
	}
	_, err := r.q.Exec(ctx, query,
		record.ID, record.PackingTaskID, record.OrderID, record.WarehouseID,
		record.Status, record.PickupOTP, riderRef, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create dispatch record: %w", err)
	}
	return nil
}

// GetByPackingTaskID obtiene el despacho asociado a una tarea de empaque, o nil.
func (r *DispatchRepo) GetByPackingTaskID(ctx context.Context, packingTaskID string) (*entity.DispatchRecord, error) {
	query := `
		SELECT id, packing_task_id, order_id, warehouse_id, status, pickup_otp, rider_ref, created_at
		FROM dispatch_records WHERE packing_task_id = $1`
	var d entity.DispatchRecord
	var riderRef *string
	err := r.q.QueryRow(ctx, query, packingTaskID).Scan(
		&d.ID, &d.PackingTaskID, &d.OrderID, &d.WarehouseID,
		&d.Status, &d.PickupOTP, &riderRef, &d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get dispatch record: %w", err)
	}
	if riderRef != nil {
		d.RiderRef = *riderRef
	}
	return &d, nil
}
