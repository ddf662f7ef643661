// Package kafka implementa los adaptadores de mensajería: el consumidor de
// órdenes confirmadas y el productor de eventos de inventario y fulfillment.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/application/fulfillment"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/application/reservation"
	"github.com/Mdhelaluddin3391/quickdash-sub000/internal/domain/event"
	"github.com/Mdhelaluddin3391/quickdash-sub000/pkg/config"
	"github.com/Mdhelaluddin3391/quickdash-sub000/pkg/logger"
)

var (
	_ reservation.EventPublisher = (*Producer)(nil)
	_ fulfillment.EventPublisher = (*Producer)(nil)
)

// Producer publica eventos salientes. Un solo writer compartido; el topic
// se fija por mensaje.
type Producer struct {
	writer                *kafka.Writer
	topicInventoryChanged string
	topicFulfillmentReady string
	log                   *logger.Logger
}

// NewProducer construye el productor a partir de la configuración de Kafka.
func NewProducer(cfg config.KafkaConfig, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	return &Producer{
		writer:                writer,
		topicInventoryChanged: cfg.TopicInventoryChanged,
		topicFulfillmentReady: cfg.TopicFulfillmentReady,
		log:                   log,
	}
}

// PublishInventoryChanged publica el cambio de inventario, particionado por SKU.
func (p *Producer) PublishInventoryChanged(ctx context.Context, evt event.InventoryChanged) error {
	return p.publish(ctx, p.topicInventoryChanged, evt.WarehouseID+":"+evt.SKUID, evt)
}

// PublishFulfillmentReady publica el paquete listo, particionado por orden.
func (p *Producer) PublishFulfillmentReady(ctx context.Context, evt event.FulfillmentReady) error {
	return p.publish(ctx, p.topicFulfillmentReady, evt.OrderID, evt)
}

func (p *Producer) publish(ctx context.Context, topic, key string, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal evento %s: %w", topic, err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("publicar en %s: %w", topic, err)
	}
	p.log.Debug().Str("topic", topic).Str("key", key).Msg("evento publicado")
	return nil
}

// Close cierra el writer subyacente.
func (p *Producer) Close() error {
	return p.writer.Close()
}
