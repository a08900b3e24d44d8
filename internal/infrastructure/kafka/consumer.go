package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/jhoicas/marketplace-stock/internal/domain"
	"github.com/jhoicas/marketplace-stock/internal/domain/entity"
	"github.com/jhoicas/marketplace-stock/pkg/logger"
)

// MessageReader lo que el consumidor necesita de *kafka.Reader.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// SKUChangeHandler recibe el SKU de cada movimiento aplicado.
type SKUChangeHandler interface {
	RefreshSKU(ctx context.Context, sku string) error
}

// Consumer sigue el topic de movimientos y avisa de cada SKU modificado, también los
// que aplicaron otras instancias.
type Consumer struct {
	reader  MessageReader
	log     *logger.Logger
	backoff time.Duration
}

// NewReader configura un reader con grupo propio. Arranca desde el último offset: el
// estado previo lo carga RebuildSummaries.
func NewReader(brokers []string, topic, groupID string, log *logger.Logger) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        time.Second,
		CommitInterval: time.Second,
		StartOffset:    kafka.LastOffset,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			log.Error().Msgf("kafka reader: "+msg, args...)
		}),
	})
}

// NewConsumer construye el consumidor sobre el reader dado.
func NewConsumer(reader MessageReader, log *logger.Logger) *Consumer {
	return &Consumer{reader: reader, log: log.Component("kafka-consumer"), backoff: time.Second}
}

// Run consume hasta que ctx se cancela. Un mensaje que no se puede procesar por un
// fallo transitorio no se confirma y se vuelve a intentar.
func (c *Consumer) Run(ctx context.Context, h SKUChangeHandler) error {
	c.log.Info().Msg("consumiendo movimientos aplicados")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Error().Err(err).Msg("leer mensaje")
			if !c.sleep(ctx) {
				return nil
			}
			continue
		}

		sku := skuOf(msg)
		if sku == "" {
			c.log.Warn().Int64("offset", msg.Offset).Int("partition", msg.Partition).Msg("mensaje sin SKU, descartado")
			c.commit(ctx, msg)
			continue
		}
		if err := h.RefreshSKU(ctx, sku); err != nil && !errors.Is(err, domain.ErrUnknownSKU) {
			c.log.Error().Err(err).Str("sku", sku).Int64("offset", msg.Offset).Msg("actualizar resumen")
			if !c.sleep(ctx) {
				return nil
			}
			continue
		}
		c.commit(ctx, msg)
	}
}

// skuOf toma el SKU de la clave y, si falta, del cuerpo.
func skuOf(msg kafka.Message) string {
	if len(msg.Key) > 0 {
		return string(msg.Key)
	}
	var ev entity.AppliedEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return ""
	}
	return ev.SKU
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
		c.log.Error().Err(err).Int64("offset", msg.Offset).Msg("confirmar mensaje")
	}
}

func (c *Consumer) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(c.backoff):
		return true
	}
}

// Close cierra el reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
