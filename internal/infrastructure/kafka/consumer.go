package kafka

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/segmentio/kafka-go"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain/event"
	"github.com/Mdhelaluddin3391/quickdash-sub000/pkg/config"
	"github.com/Mdhelaluddin3391/quickdash-sub000/pkg/logger"
)

// OrderHandler procesa una orden confirmada. Debe ser idempotente:
// la entrega es at-least-once.
type OrderHandler interface {
	HandleOrderConfirmed(ctx context.Context, evt event.OrderConfirmed) error
}

// OrderConsumer consume órdenes confirmadas y las entrega al orquestador.
type OrderConsumer struct {
	reader  *kafka.Reader
	handler OrderHandler
	log     *logger.Logger
}

// NewOrderConsumer construye el consumidor del topic de órdenes confirmadas.
func NewOrderConsumer(cfg config.KafkaConfig, handler OrderHandler, log *logger.Logger) *OrderConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Brokers,
		GroupID: cfg.GroupID,
		Topic:   cfg.TopicOrderConfirmed,
	})
	return &OrderConsumer{reader: reader, handler: handler, log: log}
}

// Run consume en bucle hasta que el contexto se cancele.
// Los errores de negocio se registran y el offset se confirma igual
// (reentregar no los arregla); los transitorios dejan el mensaje sin
// confirmar para que se reintente.
func (c *OrderConsumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		var evt event.OrderConfirmed
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			c.log.Error().Err(err).
				Int64("offset", msg.Offset).
				Msg("orden confirmada con payload inválido, se descarta")
			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				return err
			}
			continue
		}

		if err := c.handler.HandleOrderConfirmed(ctx, evt); err != nil {
			if !isBusinessError(err) {
				c.log.Error().Err(err).
					Str("order_id", evt.OrderID).
					Msg("error transitorio procesando orden, se reintentará")
				continue
			}
			c.log.Warn().Err(err).
				Str("order_id", evt.OrderID).
				Msg("orden confirmada rechazada por regla de negocio")
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return err
		}
	}
}

func isBusinessError(err error) bool {
	return errors.Is(err, domain.ErrInvalidInput) ||
		errors.Is(err, domain.ErrInsufficientStock) ||
		errors.Is(err, domain.ErrStateConflict) ||
		errors.Is(err, domain.ErrNotFound)
}

// Close cierra el reader subyacente.
func (c *OrderConsumer) Close() error {
	return c.reader.Close()
}
