package reservation

import (
	"context"

	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain/event"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción de BD, pasando repositorios atados a esa tx.
// Garantiza atomicidad para las operaciones de reserva/deducción.
type TxRunner interface {
	Run(ctx context.Context, fn func(
		stockRepo repository.StockRepository,
		movRepo repository.MovementLogRepository,
	) error) error
}

// EventPublisher publica eventos salientes. El coordinador solo lo invoca
// después del commit de la transacción que originó el cambio.
type EventPublisher interface {
	PublishInventoryChanged(ctx context.Context, evt event.InventoryChanged) error
}

// ItemRequest es una línea de una petición de reserva/liberación/deducción.
type ItemRequest struct {
	SKUID    string
	Quantity int64
}

// Reserver es el contrato del coordinador de reservas. FastPath lo decora.
type Reserver interface {
	ReserveStock(ctx context.Context, warehouseID string, items []ItemRequest, reference string) error
	ReleaseStock(ctx context.Context, warehouseID string, items []ItemRequest, reference string) error
	ConfirmDeduction(ctx context.Context, warehouseID string, items []ItemRequest, reference, actor string) error
}
