package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/parisxmas/OxiDB/OxiPlan/internal/errs"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/models"
)

type contextKey string

const actorContextKey contextKey = "actor"

// RoleLookup reads the role recorded on a user profile.
type RoleLookup interface {
	Role(ctx context.Context, userID string) (models.Role, error)
}

// Middleware authenticates the bearer token and resolves the request's
// Actor from the caller's profile. A profile with an unrecognised role still
// gets an Actor; the visibility rules refuse it downstream.
func Middleware(secret string, roles RoleLookup, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				unauthorized(w, "unauthorized")
				return
			}
			claims, err := ValidateToken(secret, strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				unauthorized(w, "invalid token")
				return
			}
			role, err := roles.Role(r.Context(), claims.UserID)
			switch {
			case errs.ClassOf(err) == errs.ClassNotFound:
				unauthorized(w, "unknown user")
				return
			case err != nil:
				logger.Error("resolve actor", "user", claims.UserID, "error", err)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"error":"identity unavailable"}`))
				return
			}
			actor := models.Actor{UserID: claims.UserID, Role: role}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

func unauthorized(w http.ResponseWriter, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + reason + `"}`))
}

func WithActor(ctx context.Context, a models.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, a)
}

// GetActor returns the authenticated actor, if any.
func GetActor(ctx context.Context) (models.Actor, bool) {
	a, ok := ctx.Value(actorContextKey).(models.Actor)
	return a, ok
}
