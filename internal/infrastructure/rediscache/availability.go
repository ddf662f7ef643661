// Package rediscache implementa el cache de disponibilidad sobre Redis.
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/application/reservation"
	"github.com/Mdhelaluddin3391/quickdash-sub000/pkg/config"
)

var _ reservation.AvailabilityStore = (*AvailabilityStore)(nil)

// AvailabilityStore guarda la disponibilidad por bodega+SKU con TTL.
// No es autoritativo: la verdad vive en el ledger.
type AvailabilityStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAvailabilityStore construye el store a partir de la configuración de Redis.
func NewAvailabilityStore(cfg config.RedisConfig) *AvailabilityStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &AvailabilityStore{client: client, ttl: cfg.TTL}
}

func key(warehouseID, skuID string) string {
	return fmt.Sprintf("stock:disponible:%s:%s", warehouseID, skuID)
}

// Get devuelve la disponibilidad cacheada. Miss no es error.
func (s *AvailabilityStore) Get(ctx context.Context, warehouseID, skuID string) (int64, bool, error) {
	val, err := s.client.Get(ctx, key(warehouseID, skuID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get disponibilidad: %w", err)
	}
	return val, true, nil
}

// Set fija la disponibilidad con el TTL configurado.
func (s *AvailabilityStore) Set(ctx context.Context, warehouseID, skuID string, available int64) error {
	if err := s.client.Set(ctx, key(warehouseID, skuID), available, s.ttl).Err(); err != nil {
		return fmt.Errorf("set disponibilidad: %w", err)
	}
	return nil
}

// DecrementAvailable descuenta qty de la llave. Si la llave no existe DECRBY la
// crearía en negativo, así que solo decrementa cuando ya hay valor cacheado.
func (s *AvailabilityStore) DecrementAvailable(ctx context.Context, warehouseID, skuID string, qty int64) error {
	k := key(warehouseID, skuID)
	exists, err := s.client.Exists(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("exists disponibilidad: %w", err)
	}
	if exists == 0 {
		return nil
	}
	if err := s.client.DecrBy(ctx, k, qty).Err(); err != nil {
		return fmt.Errorf("decrementar disponibilidad: %w", err)
	}
	return nil
}

// Invalidate borra la llave; la próxima lectura repobla desde el ledger.
func (s *AvailabilityStore) Invalidate(ctx context.Context, warehouseID, skuID string) error {
	if err := s.client.Del(ctx, key(warehouseID, skuID)).Err(); err != nil {
		return fmt.Errorf("invalidar disponibilidad: %w", err)
	}
	return nil
}

// Close cierra la conexión a Redis.
func (s *AvailabilityStore) Close() error {
	return s.client.Close()
}
