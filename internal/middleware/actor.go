package middleware

import (
	"net/http"

	"github.com/rmorley/dqcheck/internal/auth"
)

const (
	actorHeader         = "X-Actor"
	sensitiveDataHeader = "X-Allow-Sensitive-Data"
)

// ActorMiddleware reads the acting identity from request headers and attaches
// it to the context. Requests without an identity run unattributed.
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := r.Header.Get(actorHeader)
		if name == "" {
			next.ServeHTTP(w, r)
			return
		}
		actor := auth.Actor{
			Name:                 name,
			CanViewSensitiveData: r.Header.Get(sensitiveDataHeader) == "true",
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithActor(r.Context(), actor)))
	})
}
