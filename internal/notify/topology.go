package notify

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — имя обменника.
type Exchange string

// Queue — имя очереди.
type Queue string

// RoutingKey — ключ маршрутизации.
type RoutingKey string

// ExchangeImports — topic exchange событий import.
const ExchangeImports Exchange = "importer.imports"

// Routing keys.
const (
	RoutingKeyStarted  RoutingKey = "started"
	RoutingKeyFinished RoutingKey = "finished"
)

// SetupTopology объявляет exchange событий. Если queue не пустая,
// объявляет durable очередь и привязывает её ко всем событиям.
func SetupTopology(conn *Connection, queue Queue) error {
	return conn.WithChannel(func(ch *amqp.Channel) error {
		err := ch.ExchangeDeclare(
			string(ExchangeImports), // name
			"topic",                 // type
			true,                    // durable
			false,                   // auto-deleted
			false,                   // internal
			false,                   // no-wait
			nil,                     // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ExchangeImports, err)
		}

		if queue == "" {
			return nil
		}

		if _, err := ch.QueueDeclare(string(queue), true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}
		if err := ch.QueueBind(string(queue), "#", string(ExchangeImports), false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", queue, ExchangeImports, err)
		}
		return nil
	})
}
