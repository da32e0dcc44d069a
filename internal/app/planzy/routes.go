// Package planzy собирает HTTP-приложение Planzy: маршруты, зависимости и
// корректное завершение.
package planzy

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/planzy/internal/cache"
	"github.com/magabrotheeeer/planzy/internal/http/handlers/admin"
	"github.com/magabrotheeeer/planzy/internal/http/handlers/auth"
	"github.com/magabrotheeeer/planzy/internal/http/handlers/chats"
	"github.com/magabrotheeeer/planzy/internal/http/handlers/health"
	"github.com/magabrotheeeer/planzy/internal/http/handlers/notifications"
	"github.com/magabrotheeeer/planzy/internal/http/handlers/plans"
	"github.com/magabrotheeeer/planzy/internal/http/handlers/premium"
	"github.com/magabrotheeeer/planzy/internal/http/handlers/profile"
	"github.com/magabrotheeeer/planzy/internal/http/handlers/session"
	"github.com/magabrotheeeer/planzy/internal/http/handlers/tournaments"
	"github.com/magabrotheeeer/planzy/internal/http/handlers/users"
	"github.com/magabrotheeeer/planzy/internal/http/handlers/wallet"
	"github.com/magabrotheeeer/planzy/internal/http/middlewarectx"
	"github.com/magabrotheeeer/planzy/internal/models"
	"github.com/magabrotheeeer/planzy/internal/store"
)

// Deps — всё, что нужно маршрутам.
type Deps struct {
	Auth     auth.Service
	Tokens   middlewarectx.TokenValidator
	Users    middlewarectx.UserLoader
	Sessions *store.Registry
	Revoked  *cache.Revocations
	Admin    admin.Service
	Charger  wallet.Charger
	Limiter  *middlewarectx.RateLimiter
	Checks   map[string]health.Check
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, d Deps) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	authHandler := auth.New(logger, d.Auth, d.Sessions, d.Revoked)
	sessionHandler := session.New(logger)
	profileHandler := profile.New(logger)
	plansHandler := plans.New(logger)
	chatsHandler := chats.New(logger)
	walletHandler := wallet.New(logger, d.Charger)
	premiumHandler := premium.New(logger)
	tournamentsHandler := tournaments.New(logger)
	usersHandler := users.New(logger)
	notificationsHandler := notifications.New(logger)
	adminHandler := admin.New(logger, d.Admin)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Group(func(r chi.Router) {
			r.Use(d.Limiter.Middleware(logger))
			r.Post("/register", authHandler.Register)
			r.Post("/register/verify", authHandler.Verify)
			r.Post("/register/resend", authHandler.Resend)
			r.Post("/login", authHandler.Login)
			r.Post("/oauth/{provider}", authHandler.OAuth)
		})

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(d.Tokens, d.Sessions, d.Revoked, d.Users, logger))
			r.Use(d.Limiter.Middleware(logger))

			r.Post("/logout", authHandler.Logout)
			r.Get("/state", sessionHandler.State)
			r.Post("/sync", sessionHandler.Sync)
			r.Delete("/sync-errors", sessionHandler.DismissErrors)

			r.Patch("/me", profileHandler.Update)
			r.Post("/me/verify", profileHandler.Verify)
			r.Put("/me/settings", profileHandler.Settings)
			r.Get("/payment-methods", profileHandler.PaymentMethods)
			r.Post("/payment-methods", profileHandler.AddPaymentMethod)
			r.Delete("/payment-methods/{type}", profileHandler.RemovePaymentMethod)
			r.Put("/payment-methods/{type}/default", profileHandler.SetDefaultPaymentMethod)

			r.Route("/plans", func(r chi.Router) {
				r.Get("/", plansHandler.List)
				r.Post("/", plansHandler.Create)
				r.Get("/{id}", plansHandler.Get)
				r.Put("/{id}", plansHandler.Update)
				r.Delete("/{id}", plansHandler.Delete)
				r.Post("/{id}/favorite", plansHandler.Favorite)
				r.Post("/{id}/join", plansHandler.Join)
				r.Post("/{id}/leave", plansHandler.Leave)
				r.Post("/{id}/pay", plansHandler.Pay)
				r.Get("/{id}/chat", plansHandler.Chat)
			})

			r.Get("/chats", chatsHandler.List)
			r.Post("/chats/{id}/messages", chatsHandler.Send)
			r.Put("/chats/{id}/messages/{msgID}", chatsHandler.Edit)
			r.Delete("/chats/{id}/messages/{msgID}", chatsHandler.Delete)
			r.Post("/chats/{id}/read", chatsHandler.Read)
			r.Post("/private-chats", chatsHandler.StartPrivate)

			r.Get("/wallet", walletHandler.Get)
			r.Post("/wallet/deposit", walletHandler.Deposit)
			r.Post("/wallet/withdraw", walletHandler.Withdraw)
			r.Put("/premium", premiumHandler.Set)

			r.Get("/tournaments", tournamentsHandler.List)
			r.Post("/tournaments", tournamentsHandler.Create)

			r.Post("/users/{id}/block", usersHandler.Block)
			r.Delete("/users/{id}/block", usersHandler.Unblock)
			r.Post("/users/{id}/report", usersHandler.Report)

			r.Get("/notifications", notificationsHandler.List)
			r.Post("/notifications/{id}/read", notificationsHandler.Read)

			r.Route("/admin", func(r chi.Router) {
				r.Use(middlewarectx.RequireRole(models.RoleAdmin, logger))
				r.Get("/users", adminHandler.ListUsers)
				r.Delete("/users", adminHandler.DeleteByEmail)
				r.Delete("/users/unverified", adminHandler.DeleteUnverified)
			})
		})
	})

	r.Handle("/health", health.New(logger, d.Checks))
	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
