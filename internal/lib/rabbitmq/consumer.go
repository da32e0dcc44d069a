package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/planzy/internal/lib/sl"
)

// ConsumerMessage запускает потребителя очереди queueName. Сообщения
// обрабатываются параллельно, не более workers одновременно. При ошибке
// обработчика сообщение возвращается в очередь. Возвращённая функция wait
// блокируется до завершения чтения и всех начатых обработчиков.
func ConsumerMessage(ctx context.Context, log *slog.Logger, ch *amqp.Channel, queueName string, workers int,
	handler func(context.Context, []byte) error) (wait func(), err error) {
	const op = "rabbitmq.ConsumerMessage"
	delivery, err := ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log = log.With(slog.String("queue", queueName))
	sem := make(chan struct{}, max(workers, 1))
	var wg sync.WaitGroup
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case d, ok := <-delivery:
				if !ok {
					wg.Wait()
					return
				}
				sem <- struct{}{}
				wg.Add(1)
				go func(d amqp.Delivery) {
					defer wg.Done()
					defer func() { <-sem }()
					if err := handler(ctx, d.Body); err != nil {
						log.Error("failed to handle message", sl.Err(err))
						if nackErr := d.Nack(false, true); nackErr != nil {
							log.Error("failed to nack message", sl.Err(nackErr))
						}
						return
					}
					if ackErr := d.Ack(false); ackErr != nil {
						log.Error("failed to ack message", sl.Err(ackErr))
					}
				}(d)
			case <-ctx.Done():
				wg.Wait()
				return
			}
		}
	}()
	return func() { <-done }, nil
}
