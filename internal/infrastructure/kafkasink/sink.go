package kafkasink

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/segmentio/kafka-go"
)

// DefaultTopic tópico de exportación de cambios de stock.
const DefaultTopic = "stock.changes"

// MessageWriter lo que el sink usa de *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewWriter writer con balanceo por hash de la key: todos los cambios de una posición
// caen en la misma partición y conservan su orden.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	if topic == "" {
		topic = DefaultTopic
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
}

// Sink exporta cada ChangeEvent como un mensaje JSON con key item_id/warehouse_id.
type Sink struct {
	writer MessageWriter
}

func NewSink(writer MessageWriter) *Sink {
	return &Sink{writer: writer}
}

// Deliver implementa notify.Sink.
func (s *Sink) Deliver(ctx context.Context, event entity.ChangeEvent) error {
	msg, err := toMessage(event)
	if err != nil {
		return err
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: escribir evento del movimiento %d: %w", event.CausingMovementID, err)
	}
	return nil
}

// Close cierra el writer subyacente.
func (s *Sink) Close() error {
	return s.writer.Close()
}

func toMessage(event entity.ChangeEvent) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("kafka: serializar evento: %w", err)
	}
	return kafka.Message{
		Key:   []byte(event.ItemID + "/" + event.WarehouseID),
		Value: value,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "movement-type", Value: []byte(event.MovementType)},
			{Key: "movement-id", Value: []byte(strconv.FormatInt(event.CausingMovementID, 10))},
		},
	}, nil
}
