// Package kafka publica los movimientos aplicados para consumidores externos (búsqueda, analítica).
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/jhoicas/marketplace-stock/internal/application/inventory"
	"github.com/jhoicas/marketplace-stock/internal/domain/entity"
	"github.com/jhoicas/marketplace-stock/pkg/logger"
)

// MessageWriter lo que el publisher necesita de *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher escribe cada AppliedEvent en el topic con el SKU como clave, así los
// movimientos de un SKU caen en la misma partición y conservan su orden.
type Publisher struct {
	writer MessageWriter
	log    *logger.Logger
}

var _ inventory.EventPublisher = (*Publisher)(nil)

// NewWriter configura un writer síncrono con balanceo por hash de la clave.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		Async:                  false,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
		BatchSize:              1,
		MaxAttempts:            3,
		WriteTimeout:           10 * time.Second,
	}
}

// NewPublisher construye el publisher sobre el writer dado.
func NewPublisher(writer MessageWriter, log *logger.Logger) *Publisher {
	return &Publisher{writer: writer, log: log.Component("kafka")}
}

// Publish serializa el evento a JSON y lo escribe.
func (p *Publisher) Publish(ctx context.Context, ev *entity.AppliedEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal stock event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(ev.SKU),
		Value: data,
		Time:  ev.AppliedAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte("stock." + string(ev.Type))},
			{Key: "movement-id", Value: []byte(ev.MovementID)},
			{Key: "seller-id", Value: []byte(ev.SellerID)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish stock event: %w", err)
	}
	p.log.Debug().Str("sku", ev.SKU).Str("movement_id", ev.MovementID).Msg("movimiento publicado")
	return nil
}

// Close cierra el writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
