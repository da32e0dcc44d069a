// Package worker запускает воркер уведомлений: он читает события из очередей
// RabbitMQ и сохраняет уведомления получателям.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/planzy/internal/config"
	"github.com/magabrotheeeer/planzy/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/planzy/internal/lib/sl"
	notificationservice "github.com/magabrotheeeer/planzy/internal/services/notification"
	"github.com/magabrotheeeer/planzy/internal/storage/repository"
)

// App представляет приложение воркера уведомлений.
type App struct {
	conn                *amqp.Connection
	ch                  *amqp.Channel
	db                  *repository.Storage
	notificationService *notificationservice.NotificationService
	workers             int
	logger              *slog.Logger
}

// New создает новый экземпляр воркера.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.worker.New"

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = repository.WaitReady(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.NotificationQueues())
	if err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &App{
		conn:                conn,
		ch:                  ch,
		db:                  db,
		notificationService: notificationservice.NewNotificationService(db, logger),
		workers:             cfg.Workers,
		logger:              logger,
	}, nil
}

// Run читает все очереди уведомлений до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	var waits []func()
	for _, q := range rabbitmq.NotificationQueues() {
		wait, err := rabbitmq.ConsumerMessage(ctx, a.logger, a.ch, q.QueueName, a.workers, a.notificationService.HandleEvent)
		if err != nil {
			a.logger.Error("failed to start consumer", slog.String("queue", q.QueueName), sl.Err(err))
			a.close()
			return err
		}
		a.logger.Info("consumer started", slog.String("queue", q.QueueName), slog.Int("workers", a.workers))
		waits = append(waits, wait)
	}

	<-ctx.Done()
	a.logger.Info("notification worker shutting down gracefully")
	for _, wait := range waits {
		wait()
	}
	a.close()
	return nil
}

func (a *App) close() {
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", sl.Err(err))
	}
}
