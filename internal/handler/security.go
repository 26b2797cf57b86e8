package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/averline/marketplace/internal/domain/auth"
)

// APIKeyHeader carries the raw API key on inbound requests.
const APIKeyHeader = "X-API-Key"

type actorKey struct{}

// ActorFromContext returns the request actor. Requests that never passed the
// security middleware read as anonymous.
func ActorFromContext(ctx context.Context) auth.Actor {
	if a, ok := ctx.Value(actorKey{}).(auth.Actor); ok {
		return a
	}
	return auth.Anonymous()
}

// WithActor injects an actor into the context. Exposed for tests.
func WithActor(ctx context.Context, actor auth.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// Security resolves the request's API key to an actor and stores it in the
// request context. A missing key yields the anonymous actor so public
// operations still work; a present-but-invalid key is rejected outright
// rather than silently downgraded to anonymous.
func Security(authn *auth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(APIKeyHeader)
			if raw == "" {
				// Also accept "Authorization: Bearer <key>".
				if v := r.Header.Get("Authorization"); strings.HasPrefix(v, "Bearer ") {
					raw = strings.TrimPrefix(v, "Bearer ")
				}
			}

			actor, err := authn.Resolve(r.Context(), raw)
			if err != nil {
				writeError(w, r, auth.ErrUnauthenticated)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}
