package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/application/fulfillment"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/application/inbound"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/application/reconciliation"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/application/reservation"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain/repository"
)

// Ensure TxRunner implementa los puertos transaccionales de cada caso de uso.
var _ reservation.TxRunner = (*TxRunner)(nil)
var _ fulfillment.TxRunner = (*TxRunner)(nil)
var _ reconciliation.TxRunner = (*TxRunner)(nil)
var _ inbound.TxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// Run inicia una transacción con los repos del ledger lógico y hace Commit o Rollback.
func (r *TxRunner) Run(ctx context.Context, fn func(
	stockRepo repository.StockRepository,
	movRepo repository.MovementLogRepository,
) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(NewStockRepository(tx), NewMovementLogRepository(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// RunFulfillment inicia una transacción con todos los repos que necesita el
// orquestador de picking/packing/dispatch.
func (r *TxRunner) RunFulfillment(ctx context.Context, fn func(
	binRepo repository.BinStockRepository,
	pickingRepo repository.PickingTaskRepository,
	packingRepo repository.PackingTaskRepository,
	dispatchRepo repository.DispatchRepository,
	stockRepo repository.StockRepository,
	movRepo repository.MovementLogRepository,
) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = fn(
		NewBinStockRepository(tx),
		NewPickingTaskRepository(tx),
		NewPackingTaskRepository(tx),
		NewDispatchRepository(tx),
		NewStockRepository(tx),
		NewMovementLogRepository(tx),
	)
	if err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// RunLedgers inicia una transacción con los repos de ambos ledgers
// (entradas, ajustes y reconciliación).
func (r *TxRunner) RunLedgers(ctx context.Context, fn func(
	stockRepo repository.StockRepository,
	binRepo repository.BinStockRepository,
	movRepo repository.MovementLogRepository,
) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(NewStockRepository(tx), NewBinStockRepository(tx), NewMovementLogRepository(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
