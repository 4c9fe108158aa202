package middleware

import (
	"context"
	"net/http"

	"github.com/rmorley/dqcheck/internal/checkloader"
	"github.com/rmorley/dqcheck/internal/repository"
)

type ctxKey string

const checkLoaderKey ctxKey = "checkLoader"

// DataLoaderMiddleware attaches a fresh per-request check loader to the
// request context, so fan-out reads within one request batch their lookups.
func DataLoaderMiddleware(repo repository.CheckRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loader := checkloader.NewCheckLoader(repo)
			ctx := context.WithValue(r.Context(), checkLoaderKey, loader)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CheckLoaderFromContext retrieves the per-request check loader, if present.
func CheckLoaderFromContext(ctx context.Context) *checkloader.CheckLoader {
	if loader, ok := ctx.Value(checkLoaderKey).(*checkloader.CheckLoader); ok {
		return loader
	}
	return nil
}
