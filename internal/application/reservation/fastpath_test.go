package reservation_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/application/reservation"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain"
	"github.com/Mdhelaluddin3391/quickdash-sub000/pkg/logger"
)

type memAvailabilityStore struct {
	values     map[string]int64
	failing    bool
	decrements []int64
	deletes    []string
}

func availKey(warehouseID, skuID string) string { return warehouseID + "|" + skuID }

func (s *memAvailabilityStore) Get(_ context.Context, warehouseID, skuID string) (int64, bool, error) {
	if s.failing {
		return 0, false, errors.New("connection refused")
	}
	v, ok := s.values[availKey(warehouseID, skuID)]
	return v, ok, nil
}

func (s *memAvailabilityStore) Set(_ context.Context, warehouseID, skuID string, available int64) error {
	s.values[availKey(warehouseID, skuID)] = available
	return nil
}

func (s *memAvailabilityStore) DecrementAvailable(_ context.Context, warehouseID, skuID string, qty int64) error {
	if s.failing {
		return errors.New("connection refused")
	}
	s.decrements = append(s.decrements, qty)
	if _, ok := s.values[availKey(warehouseID, skuID)]; ok {
		s.values[availKey(warehouseID, skuID)] -= qty
	}
	return nil
}

func (s *memAvailabilityStore) Invalidate(_ context.Context, warehouseID, skuID string) error {
	s.deletes = append(s.deletes, availKey(warehouseID, skuID))
	delete(s.values, availKey(warehouseID, skuID))
	return nil
}

type stubReserver struct {
	reserveCalls int
	releaseCalls int
	deductCalls  int
	err          error
}

func (r *stubReserver) ReserveStock(context.Context, string, []reservation.ItemRequest, string) error {
	r.reserveCalls++
	return r.err
}

func (r *stubReserver) ReleaseStock(context.Context, string, []reservation.ItemRequest, string) error {
	r.releaseCalls++
	return r.err
}

func (r *stubReserver) ConfirmDeduction(context.Context, string, []reservation.ItemRequest, string, string) error {
	r.deductCalls++
	return r.err
}

func TestFastPath_CortaSinTocarElLedger(t *testing.T) {
	store := &memAvailabilityStore{values: map[string]int64{availKey("BOG-01", "SKU-X"): 10}}
	inner := &stubReserver{}
	fp := reservation.NewFastPath(inner, store, logger.Nop())

	err := fp.ReserveStock(context.Background(), "BOG-01",
		[]reservation.ItemRequest{{SKUID: "SKU-X", Quantity: 20}}, "ORD-1")
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Zero(t, inner.reserveCalls, "con el cache diciendo que no alcanza, la BD ni se toca")
}

func TestFastPath_MissDelegaEnRutaAutoritativa(t *testing.T) {
	store := &memAvailabilityStore{values: map[string]int64{}}
	inner := &stubReserver{}
	fp := reservation.NewFastPath(inner, store, logger.Nop())

	err := fp.ReserveStock(context.Background(), "BOG-01",
		[]reservation.ItemRequest{{SKUID: "SKU-X", Quantity: 20}}, "ORD-2")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.reserveCalls)
}

func TestFastPath_FailOpenConCacheCaido(t *testing.T) {
	store := &memAvailabilityStore{values: map[string]int64{}, failing: true}
	inner := &stubReserver{}
	fp := reservation.NewFastPath(inner, store, logger.Nop())

	err := fp.ReserveStock(context.Background(), "BOG-01",
		[]reservation.ItemRequest{{SKUID: "SKU-X", Quantity: 20}}, "ORD-3")
	require.NoError(t, err, "el cache caído nunca bloquea la operación")
	assert.Equal(t, 1, inner.reserveCalls)
}

func TestFastPath_DecrementaTrasReservaExitosa(t *testing.T) {
	store := &memAvailabilityStore{values: map[string]int64{availKey("BOG-01", "SKU-X"): 50}}
	inner := &stubReserver{}
	fp := reservation.NewFastPath(inner, store, logger.Nop())

	err := fp.ReserveStock(context.Background(), "BOG-01",
		[]reservation.ItemRequest{{SKUID: "SKU-X", Quantity: 20}}, "ORD-4")
	require.NoError(t, err)
	assert.Equal(t, int64(30), store.values[availKey("BOG-01", "SKU-X")])
}

func TestFastPath_ReservaFallidaNoTocaElCache(t *testing.T) {
	store := &memAvailabilityStore{values: map[string]int64{availKey("BOG-01", "SKU-X"): 50}}
	inner := &stubReserver{err: domain.ErrInsufficientStock}
	fp := reservation.NewFastPath(inner, store, logger.Nop())

	err := fp.ReserveStock(context.Background(), "BOG-01",
		[]reservation.ItemRequest{{SKUID: "SKU-X", Quantity: 20}}, "ORD-5")
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Empty(t, store.decrements)
	assert.Equal(t, int64(50), store.values[availKey("BOG-01", "SKU-X")])
}

func TestFastPath_ReleaseInvalidaLaLlave(t *testing.T) {
	store := &memAvailabilityStore{values: map[string]int64{availKey("BOG-01", "SKU-X"): 30}}
	inner := &stubReserver{}
	fp := reservation.NewFastPath(inner, store, logger.Nop())

	err := fp.ReleaseStock(context.Background(), "BOG-01",
		[]reservation.ItemRequest{{SKUID: "SKU-X", Quantity: 20}}, "ORD-6")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.releaseCalls)
	assert.NotContains(t, store.values, availKey("BOG-01", "SKU-X"),
		"tras liberar, la próxima lectura repobla desde el ledger")
}

func TestFastPath_DeduccionNoTocaElCache(t *testing.T) {
	store := &memAvailabilityStore{values: map[string]int64{availKey("BOG-01", "SKU-X"): 30}}
	inner := &stubReserver{}
	fp := reservation.NewFastPath(inner, store, logger.Nop())

	err := fp.ConfirmDeduction(context.Background(), "BOG-01",
		[]reservation.ItemRequest{{SKUID: "SKU-X", Quantity: 20}}, "ORD-7", "packer")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.deductCalls)
	assert.Equal(t, int64(30), store.values[availKey("BOG-01", "SKU-X")],
		"la deducción baja quantity y reserved por igual: la disponibilidad cacheada sigue válida")
}
