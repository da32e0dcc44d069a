// Package rabbitmq содержит подключение к RabbitMQ, объявление топологии
// уведомлений Planzy, публикацию JSON-сообщений и конкурентного потребителя.
package rabbitmq

import (
	"context"
	"fmt"
	"time"

	"github.com/streadway/amqp"
)

// Connect подключается к брокеру, делая до retries попыток с паузой delay.
func Connect(ctx context.Context, connection string, retries int, delay time.Duration) (*amqp.Connection, error) {
	const op = "rabbitmq.Connect"
	var conn *amqp.Connection
	var err error

	for range max(retries, 1) {
		conn, err = amqp.Dial(connection)
		if err == nil {
			return conn, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("%s: %w", op, err)
}
