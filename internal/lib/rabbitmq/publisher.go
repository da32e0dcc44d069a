package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/streadway/amqp"
)

// PublishMessage публикует сообщение в формате JSON с постоянной доставкой.
func PublishMessage(ch *amqp.Channel, exchange string, routingKey string, message any) error {
	const op = "rabbitmq.PublishMessage"
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = ch.Publish(
		exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Publisher публикует события в exchange уведомлений через общий канал.
type Publisher struct {
	mu sync.Mutex
	ch *amqp.Channel
}

// NewPublisher создаёт Publisher поверх настроенного канала.
func NewPublisher(ch *amqp.Channel) *Publisher {
	return &Publisher{ch: ch}
}

// Publish отправляет сообщение с ключом маршрутизации routingKey.
func (p *Publisher) Publish(ctx context.Context, routingKey string, message any) error {
	const op = "rabbitmq.Publisher.Publish"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return PublishMessage(p.ch, ExchangeNotifications, routingKey, message)
}
