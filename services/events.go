package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Shopify/sarama"
	"github.com/kendall-kelly/consulting-portal-api/models"
	"go.uber.org/zap"
)

// OrderEventMessage is the payload published for every appended timeline event
type OrderEventMessage struct {
	OrderID   string    `json:"order_id"`
	ClientID  string    `json:"client_id"`
	EventID   string    `json:"event_id"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	UpdatedBy string    `json:"updated_by"`
	Timestamp time.Time `json:"timestamp"`
	// OrderStatus is the order status after the event was applied
	OrderStatus models.OrderStatus `json:"order_status"`
}

// EventPublisher fans timeline events out to other systems. Publishing is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, order *models.Order, events []models.OrderEvent)
	Close() error
}

// NoopEventPublisher drops every event
type NoopEventPublisher struct{}

func (NoopEventPublisher) Publish(context.Context, *models.Order, []models.OrderEvent) {}

func (NoopEventPublisher) Close() error { return nil }

// KafkaEventPublisher writes timeline events to a Kafka topic keyed by order id.
// Publish only enqueues; delivery errors are drained to the logger in the background.
type KafkaEventPublisher struct {
	producer sarama.AsyncProducer
	topic    string
	logger   *zap.Logger
	drained  chan struct{}
}

// NewKafkaEventPublisher connects an asynchronous producer to brokers
func NewKafkaEventPublisher(brokers []string, topic string, logger *zap.Logger) (*KafkaEventPublisher, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Retry.Backoff = 250 * time.Millisecond
	config.Producer.Timeout = 5 * time.Second
	config.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return NewKafkaEventPublisherWithProducer(producer, topic, logger), nil
}

// NewKafkaEventPublisherWithProducer wraps an existing producer, which must report errors
func NewKafkaEventPublisherWithProducer(producer sarama.AsyncProducer, topic string, logger *zap.Logger) *KafkaEventPublisher {
	p := &KafkaEventPublisher{producer: producer, topic: topic, logger: logger, drained: make(chan struct{})}
	go p.drainErrors()
	return p
}

func (p *KafkaEventPublisher) drainErrors() {
	defer close(p.drained)
	for perr := range p.producer.Errors() {
		fields := []zap.Field{zap.String("topic", p.topic), zap.Error(perr.Err)}
		if perr.Msg != nil {
			if key, err := perr.Msg.Key.Encode(); err == nil {
				fields = append(fields, zap.String("order_id", string(key)))
			}
		}
		p.logger.Warn("Failed to publish order event", fields...)
	}
}

// Publish enqueues one message per event without waiting for the broker. The write has already
// committed, so a cancelled request does not drop events; a full producer queue does, with a warning.
func (p *KafkaEventPublisher) Publish(_ context.Context, order *models.Order, events []models.OrderEvent) {
	for _, event := range events {
		value, err := json.Marshal(OrderEventMessage{
			OrderID:     order.ID,
			ClientID:    order.ClientID,
			EventID:     event.ID,
			Status:      event.Status,
			Message:     event.Message,
			UpdatedBy:   event.UpdatedBy,
			Timestamp:   event.Timestamp,
			OrderStatus: order.Status,
		})
		if err != nil {
			p.logger.Error("Failed to encode order event", zap.String("order_id", order.ID), zap.Error(err))
			continue
		}
		msg := &sarama.ProducerMessage{
			Topic: p.topic,
			Key:   sarama.StringEncoder(order.ID),
			Value: sarama.ByteEncoder(value),
		}

		select {
		case p.producer.Input() <- msg:
		default:
			p.logger.Warn("Order event dropped, producer queue is full",
				zap.String("topic", p.topic), zap.String("order_id", order.ID), zap.String("event_id", event.ID))
		}
	}
}

// Close flushes buffered events and waits until every delivery error has been logged
func (p *KafkaEventPublisher) Close() error {
	p.producer.AsyncClose()
	<-p.drained
	return nil
}
