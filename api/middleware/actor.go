package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/delgadoservices/fieldstock-backend/pkg/logger"
)

const actorIDHeader = "X-Actor-Id"

type actorCtxKey struct{}

// ActorContext reads the acting user from the X-Actor-Id header. Identity is
// asserted upstream by the gateway; this service only threads it into audit
// entries and logs.
func ActorContext(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(actorIDHeader))
			ctx := r.Context()
			if raw != "" {
				if actorID, err := uuid.Parse(raw); err == nil {
					ctx = WithActor(ctx, actorID)
					if logg != nil {
						ctx = logg.WithActorID(ctx, actorID.String())
					}
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithActor stores the acting user id on the context.
func WithActor(ctx context.Context, actorID uuid.UUID) context.Context {
	return context.WithValue(ctx, actorCtxKey{}, actorID)
}

// ActorFromContext returns the acting user id, or uuid.Nil when absent.
func ActorFromContext(ctx context.Context) uuid.UUID {
	if actorID, ok := ctx.Value(actorCtxKey{}).(uuid.UUID); ok {
		return actorID
	}
	return uuid.Nil
}
