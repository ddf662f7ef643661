package fulfillment

import (
	"context"

	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain/event"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción de BD con todos los
// repositorios que necesita el orquestador de fulfillment atados a esa tx.
type TxRunner interface {
	RunFulfillment(ctx context.Context, fn func(
		binRepo repository.BinStockRepository,
		pickingRepo repository.PickingTaskRepository,
		packingRepo repository.PackingTaskRepository,
		dispatchRepo repository.DispatchRepository,
		stockRepo repository.StockRepository,
		movRepo repository.MovementLogRepository,
	) error) error
}

// EventPublisher publica los eventos salientes del orquestador,
// siempre después del commit.
type EventPublisher interface {
	PublishInventoryChanged(ctx context.Context, evt event.InventoryChanged) error
	PublishFulfillmentReady(ctx context.Context, evt event.FulfillmentReady) error
}
