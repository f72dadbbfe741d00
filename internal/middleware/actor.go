package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/24981a0558-joel/manna-contribution/internal/domain"
)

// ActorResolver maps a signed-in identity onto its current role.
type ActorResolver interface {
	Resolve(ctx context.Context, id domain.Identity) (domain.Actor, error)
}

type actorContextKey struct{}

// ResolveActor looks the role up on every request so that grants and
// revocations apply without a new session. It must run after AuthJWT.
func ResolveActor(resolver ActorResolver, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing session")
				return
			}
			actor, err := resolver.Resolve(r.Context(), id)
			if err != nil {
				if errors.Is(err, domain.ErrUnauthorized) {
					writeError(w, http.StatusUnauthorized, "unauthorized", "unknown user")
					return
				}
				logger.Error().Err(err).Str("request_id", RequestIDFromContext(r.Context())).Msg("role lookup failed")
				writeError(w, http.StatusServiceUnavailable, "unavailable", "could not resolve role")
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), actor)))
		})
	}
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	a, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return a, ok
}

func ContextWithActor(ctx context.Context, a domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, a)
}
