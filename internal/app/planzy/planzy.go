package planzy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/planzy/internal/cache"
	"github.com/magabrotheeeer/planzy/internal/config"
	"github.com/magabrotheeeer/planzy/internal/http/handlers/health"
	"github.com/magabrotheeeer/planzy/internal/http/middlewarectx"
	"github.com/magabrotheeeer/planzy/internal/http/request"
	"github.com/magabrotheeeer/planzy/internal/lib/jwt"
	"github.com/magabrotheeeer/planzy/internal/lib/mailer"
	"github.com/magabrotheeeer/planzy/internal/lib/oidc"
	"github.com/magabrotheeeer/planzy/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/planzy/internal/lib/sl"
	"github.com/magabrotheeeer/planzy/internal/migrations"
	"github.com/magabrotheeeer/planzy/internal/paymentprovider"
	authsvc "github.com/magabrotheeeer/planzy/internal/services/auth"
	"github.com/magabrotheeeer/planzy/internal/services/gateway"
	sendersvc "github.com/magabrotheeeer/planzy/internal/services/sender"
	"github.com/magabrotheeeer/planzy/internal/storage/repository"
	"github.com/magabrotheeeer/planzy/internal/store"
)

const shutdownTimeout = 15 * time.Second

// App — HTTP-приложение Planzy.
type App struct {
	server   *http.Server
	logger   *slog.Logger
	db       *repository.Storage
	cache    *cache.Cache
	conn     *amqp.Connection
	ch       *amqp.Channel
	sessions *store.Registry
}

// New подключает хранилища и брокер, применяет миграции и собирает маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.planzy.New"

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		_ = cacheRedis.Close()
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.NotificationQueues())
	if err != nil {
		_ = conn.Close()
		_ = cacheRedis.Close()
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	gw := gateway.New(db, cacheRedis, rabbitmq.NewPublisher(ch), logger, cfg.PlansCacheTTL)

	sender := sendersvc.NewSenderService(
		mailer.NewResendClient(cfg.Resend.URL, cfg.APIKey, cfg.Resend.From, cfg.TimeoutHTTP),
		mailer.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From),
		cfg.IsDevelopment(),
		logger,
	)
	authService := authsvc.NewAuthService(gw, sender, jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL),
		identityProviders(ctx, cfg, logger), logger)

	sessions := store.NewRegistry(gw, cfg.SessionTTL, logger,
		store.WithQueueSize(cfg.QueueSize),
		store.WithRetry(cfg.Store.MaxRetries, store.DefaultRetryInitial, cfg.MaxElapsed),
	)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, Deps{
		Auth:     authService,
		Tokens:   authService,
		Users:    gw,
		Sessions: sessions,
		Revoked:  cache.NewRevocations(cacheRedis),
		Admin:    gw,
		Charger:  paymentprovider.NewClient(cfg.PaymentProvider.URL, cfg.ShopID, cfg.SecretKey, cfg.PaymentProvider.Timeout),
		Limiter:  middlewarectx.NewRateLimiter(cfg.RateLimit, cfg.RateBurst),
		Checks: map[string]health.Check{
			"postgres": db.DB.PingContext,
			"redis": func(ctx context.Context) error {
				return cacheRedis.Db.Ping(ctx).Err()
			},
			"rabbitmq": func(context.Context) error {
				if conn.IsClosed() {
					return amqp.ErrClosed
				}
				return nil
			},
		},
	})

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP + request.SyncTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server:   srv,
		logger:   logger,
		db:       db,
		cache:    cacheRedis,
		conn:     conn,
		ch:       ch,
		sessions: sessions,
	}, nil
}

// identityProviders настраивает вход через OIDC-провайдера, если задан client_id.
// Недоступный провайдер не мешает запуску: вход по паролю продолжает работать.
func identityProviders(ctx context.Context, cfg *config.Config, logger *slog.Logger) map[string]authsvc.IdentityVerifier {
	if cfg.ClientID == "" {
		return nil
	}
	verifier, err := oidc.NewVerifier(ctx, cfg.Issuer, cfg.ClientID)
	if err != nil {
		logger.Warn("oidc provider is unavailable", slog.String("issuer", cfg.Issuer), sl.Err(err))
		return nil
	}
	return map[string]authsvc.IdentityVerifier{"google": verifier}
}

// Run обслуживает HTTP до отмены ctx, затем завершает работу: дожидается
// текущих запросов, сбрасывает очереди сессий и закрывает соединения.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		a.logger.Info("shutting down HTTP server gracefully")
	}

	timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if shutdownErr := a.server.Shutdown(timeoutCtx); shutdownErr != nil && err == nil {
		err = shutdownErr
	}
	a.close(timeoutCtx)
	return err
}

func (a *App) close(ctx context.Context) {
	if err := a.sessions.Close(ctx); err != nil {
		a.logger.Error("failed to flush sessions", sl.Err(err))
	}
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Error("failed to close cache", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", sl.Err(err))
	}
}
