package interceptors

import (
	"context"
	"github.com/labstack/echo/v4"
	"google.golang.org/grpc"
	"time"
)

const (
	EnvDev   = "dev"
	EnvLocal = "local"
	EnvProd  = "prod"
)

type contextKey string

const EnvKey contextKey = "env"

// EnvUnaryInterceptor middleware for initializing context by env key-value
func EnvUnaryInterceptor(env string) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		return handler(context.WithValue(ctx, EnvKey, env), req)
	}
}

// TimeoutUnaryInterceptor bounds every unary call by timeout, zero disables it
func TimeoutUnaryInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if timeout <= 0 {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return handler(ctx, req)
	}
}

// EnvMiddleware puts the env into every http request context
func EnvMiddleware(env string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			c.SetRequest(req.WithContext(context.WithValue(req.Context(), EnvKey, env)))
			return next(c)
		}
	}
}
