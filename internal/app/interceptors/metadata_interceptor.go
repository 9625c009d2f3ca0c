package interceptors

import (
	"context"
	"fmt"
	"github.com/labstack/echo/v4"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"log/slog"
	"strings"
	"time"
)

// MetadataInterceptor debuggs key-value pairs from md
func MetadataInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		const op = "interceptors.MetadataInterceptor"
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return handler(ctx, req)
		}
		var metadataLog strings.Builder
		for k, v := range md {
			metadataLog.WriteString(fmt.Sprintf("%s: %s      ", k, v))
		}
		logger.With(slog.String("op", op), slog.String("method", info.FullMethod)).Debug(metadataLog.String())
		return handler(ctx, req)
	}
}

// RequestLogger logs every http request once it is served
// Cookie values are never logged, only their names
func RequestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			const op = "interceptors.RequestLogger"
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			cookies := make([]string, 0, len(req.Cookies()))
			for _, cookie := range req.Cookies() {
				cookies = append(cookies, cookie.Name)
			}
			logger.With(slog.String("op", op)).Debug("request served",
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.Int("status", c.Response().Status),
				slog.String("client_ip", c.RealIP()),
				slog.Any("cookies", cookies),
				slog.Duration("latency", time.Since(start)),
			)
			return nil
		}
	}
}
