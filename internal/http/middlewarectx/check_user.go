package middlewarectx

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/planzy/internal/http/response"
)

// RequireRole пропускает запрос только пользователю с указанной ролью.
// Должен стоять после JWTMiddleware.
func RequireRole(role string, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFrom(r.Context())
			if !ok {
				log.Error("user identification missing")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("user identification missing"))
				return
			}

			if claims.Role != role {
				log.Warn("access denied", slog.String("user_uid", claims.UserUID), slog.String("role", claims.Role))
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.Error("access denied"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
