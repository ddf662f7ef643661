// Package reconciliation recalcula el ledger lógico desde la verdad física de
// los bins y corrige el drift. Corre por bodega en transacciones cortas por SKU:
// nunca una transacción larga sobre el catálogo completo.
package reconciliation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain/entity"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain/repository"
	"github.com/Mdhelaluddin3391/quickdash-sub000/pkg/logger"
)

// TxRunner ejecuta una función dentro de una transacción con los repositorios
// de ambos ledgers y del movement log atados a esa tx.
type TxRunner interface {
	RunLedgers(ctx context.Context, fn func(
		stockRepo repository.StockRepository,
		binRepo repository.BinStockRepository,
		movRepo repository.MovementLogRepository,
	) error) error
}

// Alerter recibe drifts que superan el umbral configurado. El transporte
// concreto (pager, canal de ops) es un colaborador externo.
type Alerter interface {
	DriftDetected(ctx context.Context, warehouseID, skuID string, delta int64)
}

// Report resume una corrida de reconciliación por bodega.
type Report struct {
	WarehouseID string
	SKUsChecked int
	Corrections int
	TotalDrift  int64 // suma de |delta| corregidos
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Service es el servicio de reconciliación.
type Service struct {
	tx        TxRunner
	stockRepo repository.StockRepository // lectura de páginas fuera de transacción
	alerter   Alerter
	log       *logger.Logger
	pageSize  int
	threshold int64
}

// NewService construye el servicio. alerter puede ser nil (solo log);
// pageSize <= 0 usa 200.
func NewService(tx TxRunner, stockRepo repository.StockRepository, alerter Alerter, log *logger.Logger, pageSize int, threshold int64) *Service {
	if pageSize <= 0 {
		pageSize = 200
	}
	return &Service{tx: tx, stockRepo: stockRepo, alerter: alerter, log: log, pageSize: pageSize, threshold: threshold}
}

// ReconcileWarehouse recorre en páginas acotadas los SKUs presentes en
// cualquiera de los dos ledgers de la bodega y corrige cada mismatch en una
// transacción corta propia. Un mismatch no es un error: se corrige, se loguea
// y se alerta solo si supera el umbral.
func (s *Service) ReconcileWarehouse(ctx context.Context, warehouseID string) (*Report, error) {
	if warehouseID == "" {
		return nil, domain.ErrInvalidInput
	}
	report := &Report{WarehouseID: warehouseID, StartedAt: time.Now()}

	after := ""
	for {
		skus, err := s.stockRepo.ListLedgerSKUs(ctx, warehouseID, after, s.pageSize)
		if err != nil {
			return nil, fmt.Errorf("paginar skus de %s: %w", warehouseID, err)
		}
		if len(skus) == 0 {
			break
		}
		for _, sku := range skus {
			corrected, delta, err := s.reconcileSKU(ctx, warehouseID, sku)
			if err != nil {
				return nil, err
			}
			report.SKUsChecked++
			if corrected {
				report.Corrections++
				report.TotalDrift += abs(delta)
				if s.alerter != nil && abs(delta) >= s.threshold {
					s.alerter.DriftDetected(ctx, warehouseID, sku, delta)
				}
			}
		}
		after = skus[len(skus)-1]
		if len(skus) < s.pageSize {
			break
		}
	}

	report.FinishedAt = time.Now()
	s.log.Info().
		Str("warehouse_id", warehouseID).
		Int("skus", report.SKUsChecked).
		Int("correcciones", report.Corrections).
		Int64("drift_total", report.TotalDrift).
		Msg("reconciliación terminada")
	return report, nil
}

// reconcileSKU compara la suma física de bins contra el agregado lógico y, si
// las cantidades difieren, sobreescribe la cantidad del agregado bajo lock: los
// bins son la verdad. El drift se define SOLO sobre quantity: reserved del
// agregado y reserved de los bins difieren legítimamente en vuelo (entre
// ReserveStock y la asignación de bins el agregado reserva y los bins aún no),
// así que la reserva lógica no se toca; solo se recorta si la nueva cantidad
// física queda por debajo de ella.
func (s *Service) reconcileSKU(ctx context.Context, warehouseID, skuID string) (corrected bool, delta int64, err error) {
	err = s.tx.RunLedgers(ctx, func(
		stockRepo repository.StockRepository,
		binRepo repository.BinStockRepository,
		movRepo repository.MovementLogRepository,
	) error {
		physicalQty, _, err := binRepo.SumBySKU(ctx, warehouseID, skuID)
		if err != nil {
			return err
		}
		stock, err := stockRepo.GetForUpdate(ctx, warehouseID, skuID)
		if err != nil {
			return err
		}
		if stock.Quantity == physicalQty {
			return nil
		}

		delta = physicalQty - stock.Quantity
		now := time.Now()
		s.log.Warn().
			Str("warehouse_id", warehouseID).
			Str("sku_id", skuID).
			Int64("logico", stock.Quantity).
			Int64("fisico", physicalQty).
			Int64("delta", delta).
			Msg("drift detectado, corrigiendo agregado")

		stock.Quantity = physicalQty
		if stock.ReservedQuantity > physicalQty {
			s.log.Warn().
				Str("warehouse_id", warehouseID).
				Str("sku_id", skuID).
				Int64("reservado", stock.ReservedQuantity).
				Int64("cantidad", physicalQty).
				Msg("reserva recortada a la cantidad física")
			stock.ReservedQuantity = physicalQty
		}
		stock.UpdatedAt = now
		if err := stock.Validate(); err != nil {
			return err
		}
		if err := stockRepo.Upsert(ctx, stock); err != nil {
			return err
		}
		corrected = true
		return movRepo.Append(ctx, &entity.MovementLogEntry{
			LedgerRef:    stock.LedgerRef(),
			SKUID:        skuID,
			Delta:        delta,
			MovementType: entity.MovementTypeRECONCILE,
			Reference:    "RECON-" + uuid.New().String(),
			BalanceAfter: stock.Quantity,
			Actor:        "system",
			CreatedAt:    now,
		})
	})
	return corrected, delta, err
}

// LogAlerter es el Alerter por defecto: solo escribe al log estructurado.
type LogAlerter struct {
	Log *logger.Logger
}

func (a *LogAlerter) DriftDetected(_ context.Context, warehouseID, skuID string, delta int64) {
	a.Log.Error().
		Str("warehouse_id", warehouseID).
		Str("sku_id", skuID).
		Int64("delta", delta).
		Msg("drift sobre el umbral de alerta")
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
