package repository

import (
	"context"

	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain/entity"
)

// MovementLogRepository define el puerto del log de movimientos (append-only).
type MovementLogRepository interface {
	Append(ctx context.Context, entry *entity.MovementLogEntry) error
	// ExistsByReference indica si ya hay un movimiento del tipo dado con esa
	// referencia en el ledger agregado (refs "stock:"). Es la llave de
	// idempotencia para entradas que pueden reintentarse; se limita al agregado
	// porque los movimientos de bin comparten la referencia de la orden.
	ExistsByReference(ctx context.Context, reference, movementType string) (bool, error)
	ListByLedgerRef(ctx context.Context, ledgerRef string, limit, offset int) ([]*entity.MovementLogEntry, error)
	ListByReference(ctx context.Context, reference string) ([]*entity.MovementLogEntry, error)
}
