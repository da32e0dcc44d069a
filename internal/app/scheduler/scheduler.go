// Package scheduler запускает планировщик Planzy: понижение истёкших
// премиум-тарифов и напоминания о ближайших планах.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/planzy/internal/config"
	"github.com/magabrotheeeer/planzy/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/planzy/internal/lib/sl"
	schedulerservice "github.com/magabrotheeeer/planzy/internal/services/scheduler"
	"github.com/magabrotheeeer/planzy/internal/storage/repository"
)

// App представляет приложение планировщика.
type App struct {
	schedulerService *schedulerservice.SchedulerService
	conn             *amqp.Connection
	ch               *amqp.Channel
	db               *repository.Storage
	intervals        config.Scheduler
	logger           *slog.Logger
}

// New создает новый экземпляр приложения планировщика.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.scheduler.New"

	conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect RabbitMQ: %w", op, err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.NotificationQueues())
	if err != nil {
		closeResources(nil, conn, logger)
		return nil, fmt.Errorf("%s: failed to setup RabbitMQ channel: %w", op, err)
	}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("%s: failed to connect storage: %w", op, err)
	}
	if err = repository.WaitReady(ctx, db); err != nil {
		_ = db.Close()
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &App{
		schedulerService: schedulerservice.NewSchedulerService(db, rabbitmq.NewPublisher(ch), logger),
		conn:             conn,
		ch:               ch,
		db:               db,
		intervals:        cfg.Scheduler,
		logger:           logger,
	}, nil
}

func closeResources(ch *amqp.Channel, conn *amqp.Connection, logger *slog.Logger) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close connection", sl.Err(err))
		}
	}
}

// Run запускает периодические задачи и ждёт их завершения после отмены ctx.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("scheduler started",
		slog.Duration("premium_interval", a.intervals.PremiumInterval),
		slog.Duration("upcoming_interval", a.intervals.UpcomingInterval),
		slog.Duration("upcoming_window", a.intervals.UpcomingWindow),
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.schedulerService.DowngradeExpiredPremium(ctx, positive(a.intervals.PremiumInterval, time.Hour))
	}()
	go func() {
		defer wg.Done()
		a.schedulerService.NotifyUpcomingPlans(ctx, positive(a.intervals.UpcomingInterval, 12*time.Hour),
			positive(a.intervals.UpcomingWindow, 24*time.Hour))
	}()

	<-ctx.Done()
	wg.Wait()

	a.logger.Info("shutting down scheduler service")
	closeResources(a.ch, a.conn, a.logger)
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", sl.Err(err))
	}
	return nil
}

// positive возвращает d или fallback, если d не задан: time.NewTicker
// паникует на неположительном интервале.
func positive(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
