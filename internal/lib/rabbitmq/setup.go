package rabbitmq

import (
	"fmt"

	"github.com/streadway/amqp"
)

// Топология уведомлений.
const (
	ExchangeNotifications = "notifications"

	RoutingKeyPlan     = "plan"
	RoutingKeyUpcoming = "upcoming"

	QueuePlan     = "notifications.plan"
	QueueUpcoming = "notifications.upcoming"
)

// QueueConfig связывает очередь с ключом маршрутизации.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// NotificationQueues возвращает очереди, которые читает воркер уведомлений.
func NotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: QueuePlan, RoutingKey: RoutingKeyPlan},
		{QueueName: QueueUpcoming, RoutingKey: RoutingKeyUpcoming},
	}
}

// SetupChannel открывает канал, объявляет direct-exchange уведомлений
// и привязывает к нему переданные очереди.
func SetupChannel(conn *amqp.Connection, queues []QueueConfig) (*amqp.Channel, error) {
	const op = "rabbitmq.SetupChannel"

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = ch.Qos(10, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("%s: set qos: %w", op, err)
	}

	if err = ch.ExchangeDeclare(ExchangeNotifications, "direct", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, q := range queues {
		if _, err = ch.QueueDeclare(q.QueueName, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("%s: declare queue %s: %w", op, q.QueueName, err)
		}
		if err = ch.QueueBind(q.QueueName, q.RoutingKey, ExchangeNotifications, false, nil); err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("%s: bind queue %s with routing key %s: %w", op, q.QueueName, q.RoutingKey, err)
		}
	}

	return ch, nil
}
