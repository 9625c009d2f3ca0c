package utilities

import (
	"context"
	"sw360auth/internal/app/interceptors"
)

// EnvFromContext extracts env key from context
func EnvFromContext(ctx context.Context) string {
	if env, ok := ctx.Value(interceptors.EnvKey).(string); ok {
		return env
	}
	return interceptors.EnvProd // default
}

// SecureCookies reports whether cookies must carry the Secure attribute in this context
func SecureCookies(ctx context.Context) bool {
	return EnvFromContext(ctx) != interceptors.EnvLocal
}
