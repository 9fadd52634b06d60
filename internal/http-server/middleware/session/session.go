package session

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"timetable-service/internal/auth"
	"timetable-service/pkg/response"
	"timetable-service/pkg/sl"
)

type claimsKey struct{}

// New rejects requests without a valid bearer session with 401 and stores
// the claims in the request context.
func New(log *slog.Logger, secret, issuer string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		log := log.With(slog.String("component", "middleware/session"))

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r.Header.Get("Authorization"))
			if token == "" {
				log.Warn("missing session token", slog.String("request_id", middleware.GetReqID(r.Context())))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error(response.UNAUTHORIZED, "missing session token"))
				return
			}

			claims, err := auth.ParseToken(secret, issuer, token)
			if err != nil {
				log.Warn("invalid session token",
					slog.String("request_id", middleware.GetReqID(r.Context())),
					sl.Err(err),
				)
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error(response.UNAUTHORIZED, "invalid session token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireRole answers 403 unless the session role is one of roles. It must
// run after New.
func RequireRole(log *slog.Logger, roles ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error(response.UNAUTHORIZED, "missing session"))
				return
			}

			if !claims.HasRole(roles...) {
				log.Warn("role not allowed",
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.String("user_id", claims.UserID),
					slog.String("role", claims.Role),
				)
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.Error(response.FORBIDDEN, "role "+claims.Role+" may not modify the timetable"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

func ClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey{}).(*auth.Claims)
	return claims
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
