package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain/entity"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain/repository"
)

var _ repository.MovementLogRepository = (*MovementLogRepo)(nil)

// MovementLogRepo implementación del log de movimientos sobre PostgreSQL.
// La tabla es append-only: no hay UPDATE ni DELETE en este adaptador.
type MovementLogRepo struct {
	q Querier
}

// NewMovementLogRepository construye el adaptador. Pasar pool o tx (Querier).
func NewMovementLogRepository(q Querier) *MovementLogRepo {
	return &MovementLogRepo{q: q}
}

// Append persiste un movimiento.
func (r *MovementLogRepo) Append(ctx context.Context, entry *entity.MovementLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	query := `
		INSERT INTO movement_log (id, ledger_ref, sku_id, delta, movement_type, reference, balance_after, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	actor := (*string)(nil)
	if entry.Actor != "" {
		actor = &entry.Actor
	}
	_, err := r.q.Exec(ctx, query,
		entry.ID, entry.LedgerRef, entry.SKUID, entry.Delta, entry.MovementType,
		entry.Reference, entry.BalanceAfter, actor, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append movement: %w", err)
	}
	return nil
}

// ExistsByReference indica si ya hay un movimiento del tipo dado con esa
// referencia en el ledger agregado. Los movimientos de bin comparten referencia
// (la orden) con los del agregado y no deben absorber sus verificaciones de
// idempotencia.
func (r *MovementLogRepo) ExistsByReference(ctx context.Context, reference, movementType string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM movement_log
			WHERE reference = $1 AND movement_type = $2 AND ledger_ref LIKE 'stock:%'
		)`
	var exists bool
	if err := r.q.QueryRow(ctx, query, reference, movementType).Scan(&exists); err != nil {
		return false, fmt.Errorf("exists by reference: %w", err)
	}
	return exists, nil
}

// ListByLedgerRef lista los movimientos de una fila de ledger, más recientes primero.
func (r *MovementLogRepo) ListByLedgerRef(ctx context.Context, ledgerRef string, limit, offset int) ([]*entity.MovementLogEntry, error) {
	query := `
		SELECT id, ledger_ref, sku_id, delta, movement_type, reference, balance_after, actor, created_at
		FROM movement_log WHERE ledger_ref = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.q.Query(ctx, query, ledgerRef, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list by ledger ref: %w", err)
	}
	defer rows.Close()
	return scanMovements(rows)
}

// ListByReference lista los movimientos asociados a una referencia (ej. una orden).
func (r *MovementLogRepo) ListByReference(ctx context.Context, reference string) ([]*entity.MovementLogEntry, error) {
	query := `
		SELECT id, ledger_ref, sku_id, delta, movement_type, reference, balance_after, actor, created_at
		FROM movement_log WHERE reference = $1
		ORDER BY created_at`
	rows, err := r.q.Query(ctx, query, reference)
	if err != nil {
		return nil, fmt.Errorf("list by reference: %w", err)
	}
	defer rows.Close()
	return scanMovements(rows)
}

func scanMovements(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]*entity.MovementLogEntry, error) {
	var list []*entity.MovementLogEntry
	for rows.Next() {
		var m entity.MovementLogEntry
		var actor *string
		if err := rows.Scan(&m.ID, &m.LedgerRef, &m.SKUID, &m.Delta, &m.MovementType,
			&m.Reference, &m.BalanceAfter, &actor, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		if actor != nil {
			m.Actor = *actor
		}
		list = append(list, &m)
	}
	return list, rows.Err()
}
