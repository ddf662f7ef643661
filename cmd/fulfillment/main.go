package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/application/fulfillment"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/application/inbound"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/application/reconciliation"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/application/reservation"
	infrakafka "github.com/Mdhelaluddin3391/quickdash-sub000/internal/infrastructure/kafka"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/infrastructure/postgres"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/infrastructure/rediscache"
	httpRouter "github.com/Mdhelaluddin3391/quickdash-sub000/internal/interfaces/http"
	"github.com/Mdhelaluddin3391/quickdash-sub000/pkg/config"
	"github.com/Mdhelaluddin3391/quickdash-sub000/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	txRunner := postgres.NewTxRunner(pool)
	stockRepo := postgres.NewStockRepository(pool)
	movementRepo := postgres.NewMovementLogRepository(pool)
	pickingRepo := postgres.NewPickingTaskRepository(pool)

	producer := infrakafka.NewProducer(cfg.Kafka, log)
	defer producer.Close()

	var reserver reservation.Reserver = reservation.NewCoordinator(txRunner, producer, log)
	if cfg.Redis.Addr != "" {
		store := rediscache.NewAvailabilityStore(cfg.Redis)
		defer store.Close()
		reserver = reservation.NewFastPath(reserver, store, log)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("fast path de disponibilidad habilitado")
	}

	orchestrator := fulfillment.NewOrchestrator(
		txRunner, pickingRepo, reserver, nil, producer, log,
	)
	inboundUC := inbound.NewUseCase(txRunner, producer, log)
	reconSvc := reconciliation.NewService(
		txRunner, stockRepo, &reconciliation.LogAlerter{Log: log},
		log, cfg.Recon.PageSize, cfg.Recon.AlertThreshold,
	)

	// Consumidor de órdenes confirmadas
	consumer := infrakafka.NewOrderConsumer(cfg.Kafka, orchestrator, log)
	defer consumer.Close()

	consumerDone := make(chan error, 1)
	go func() {
		consumerDone <- consumer.Run(ctx)
	}()

	// Reconciliación programada por bodega
	if len(cfg.Recon.Warehouses) > 0 {
		go runScheduledReconciliation(ctx, reconSvc, cfg.Recon, log)
	}

	// API HTTP de la app de bodega
	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		Orchestrator: orchestrator,
		InboundUC:    inboundUC,
		ReconSvc:     reconSvc,
		PickingRepo:  pickingRepo,
		StockRepo:    stockRepo,
		MovementRepo: movementRepo,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("señal de apagado recibida, cerrando...")
		cancel()
		<-consumerDone
	case err := <-consumerDone:
		if err != nil {
			log.Error().Err(err).Msg("consumidor finalizado con error")
		}
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}

func runScheduledReconciliation(ctx context.Context, svc *reconciliation.Service, cfg config.ReconConfig, log *logger.Logger) {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, wh := range cfg.Warehouses {
				report, err := svc.ReconcileWarehouse(ctx, wh)
				if err != nil {
					log.Error().Err(err).Str("warehouse_id", wh).Msg("reconciliación fallida")
					continue
				}
				log.Info().
					Str("warehouse_id", wh).
					Int("skus_checked", report.SKUsChecked).
					Int("corrections", report.Corrections).
					Int64("total_drift", report.TotalDrift).
					Msg("reconciliación completada")
			}
		}
	}
}
