package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Importer/internal/domain"
)

// Message — сообщение о событии import.
type Message struct {
	ID        string           `json:"id"`
	Type      domain.EventType `json:"type"`
	Payload   any              `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
}

// Channel — часть AMQP канала, нужная для публикации.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// channelSource выдаёт канал для публикации.
type channelSource interface {
	WithChannel(fn func(ch *amqp.Channel) error) error
}

// Publisher публикует события import. Реализует wizard.Notifier.
type Publisher struct {
	conn   channelSource
	logger *slog.Logger
}

// NewPublisher создаёт Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, logger: logger}
}

// Publish публикует событие import.
func (p *Publisher) Publish(ctx context.Context, ev domain.ImportEvent) error {
	key, err := routingKey(ev.Type)
	if err != nil {
		return err
	}

	pub, msg, err := buildPublishing(ev)
	if err != nil {
		return err
	}

	return p.conn.WithChannel(func(ch *amqp.Channel) error {
		return p.publish(ctx, ch, key, pub, msg)
	})
}

func (p *Publisher) publish(ctx context.Context, ch Channel, key RoutingKey, pub amqp.Publishing, msg *Message) error {
	if err := ch.PublishWithContext(ctx, string(ExchangeImports), string(key), false, false, pub); err != nil {
		return fmt.Errorf("publish to %s/%s: %w", ExchangeImports, key, err)
	}

	p.logger.Debug("published message",
		"exchange", ExchangeImports,
		"routing_key", key,
		"message_id", msg.ID,
		"type", msg.Type,
	)
	return nil
}

// routingKey возвращает ключ маршрутизации для типа события.
func routingKey(t domain.EventType) (RoutingKey, error) {
	switch t {
	case domain.EventImportStarted:
		return RoutingKeyStarted, nil
	case domain.EventImportFinished:
		return RoutingKeyFinished, nil
	default:
		return "", fmt.Errorf("unknown event type %q", t)
	}
}

// buildPublishing формирует AMQP сообщение для события.
func buildPublishing(ev domain.ImportEvent) (amqp.Publishing, *Message, error) {
	ts := ev.OccurredAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	msg := &Message{
		ID:        uuid.NewString(),
		Type:      ev.Type,
		Payload:   ev,
		Timestamp: ts,
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return amqp.Publishing{}, nil, fmt.Errorf("marshal message: %w", err)
	}

	return amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     msg.ID,
		CorrelationId: ev.ImportID,
		Type:          string(ev.Type),
		Timestamp:     ts,
		Body:          body,
	}, msg, nil
}
