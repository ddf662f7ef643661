package reservation

import (
	"context"
	"fmt"

	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain"
	"github.com/Mdhelaluddin3391/quickdash-sub000/pkg/logger"
)

// AvailabilityStore es el puerto del cache de disponibilidad por bodega+SKU.
// Nunca es autoritativo: la mutación real siempre ocurre bajo lock en la BD.
type AvailabilityStore interface {
	// Get devuelve (disponible, encontrado, error). Miss no es error.
	Get(ctx context.Context, warehouseID, skuID string) (int64, bool, error)
	Set(ctx context.Context, warehouseID, skuID string, available int64) error
	DecrementAvailable(ctx context.Context, warehouseID, skuID string, qty int64) error
	Invalidate(ctx context.Context, warehouseID, skuID string) error
}

// FastPath decora un Reserver con un chequeo optimista de disponibilidad:
// corta de entrada las peticiones obviamente sin stock antes de tocar el ledger.
// Ante cualquier error del cache sigue de largo (fail open) hacia la ruta transaccional.
type FastPath struct {
	inner Reserver
	store AvailabilityStore
	log   *logger.Logger
}

var _ Reserver = (*FastPath)(nil)

// NewFastPath construye el decorador.
func NewFastPath(inner Reserver, store AvailabilityStore, log *logger.Logger) *FastPath {
	return &FastPath{inner: inner, store: store, log: log}
}

// ReserveStock consulta el cache por SKU y rechaza temprano si la disponibilidad
// cacheada no alcanza; en miss o error delega siempre en la ruta autoritativa.
func (f *FastPath) ReserveStock(ctx context.Context, warehouseID string, items []ItemRequest, reference string) error {
	for _, it := range items {
		available, ok, err := f.store.Get(ctx, warehouseID, it.SKUID)
		if err != nil {
			// fail open: el cache caído no bloquea la operación
			f.log.Debug().Err(err).Str("sku_id", it.SKUID).Msg("cache de disponibilidad no disponible")
			break
		}
		if ok && available < it.Quantity {
			return fmt.Errorf("sku %s (fast path): disponible %d < solicitado %d: %w",
				it.SKUID, available, it.Quantity, domain.ErrInsufficientStock)
		}
	}

	if err := f.inner.ReserveStock(ctx, warehouseID, items, reference); err != nil {
		return err
	}
	for _, it := range items {
		if err := f.store.DecrementAvailable(ctx, warehouseID, it.SKUID, it.Quantity); err != nil {
			f.log.Debug().Err(err).Str("sku_id", it.SKUID).Msg("no se pudo decrementar el cache")
		}
	}
	return nil
}

// ReleaseStock delega e invalida las llaves tocadas (la próxima lectura repobla).
func (f *FastPath) ReleaseStock(ctx context.Context, warehouseID string, items []ItemRequest, reference string) error {
	if err := f.inner.ReleaseStock(ctx, warehouseID, items, reference); err != nil {
		return err
	}
	f.invalidate(ctx, warehouseID, items)
	return nil
}

// ConfirmDeduction delega; la deducción baja quantity y reserved por igual,
// así que la disponibilidad cacheada sigue siendo válida.
func (f *FastPath) ConfirmDeduction(ctx context.Context, warehouseID string, items []ItemRequest, reference, actor string) error {
	return f.inner.ConfirmDeduction(ctx, warehouseID, items, reference, actor)
}

func (f *FastPath) invalidate(ctx context.Context, warehouseID string, items []ItemRequest) {
	for _, it := range items {
		if err := f.store.Invalidate(ctx, warehouseID, it.SKUID); err != nil {
			f.log.Debug().Err(err).Str("sku_id", it.SKUID).Msg("no se pudo invalidar el cache")
		}
	}
}
