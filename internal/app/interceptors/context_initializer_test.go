package interceptors

import (
	"context"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTimeoutUnaryInterceptor(t *testing.T) {
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	_, err := TimeoutUnaryInterceptor(time.Second)(context.Background(), nil, info,
		func(ctx context.Context, req interface{}) (interface{}, error) {
			deadline, ok := ctx.Deadline()
			require.True(t, ok)
			assert.WithinDuration(t, time.Now().Add(time.Second), deadline, 100*time.Millisecond)
			return nil, nil
		})
	require.NoError(t, err)

	_, err = TimeoutUnaryInterceptor(0)(context.Background(), nil, info,
		func(ctx context.Context, req interface{}) (interface{}, error) {
			_, ok := ctx.Deadline()
			assert.False(t, ok)
			return nil, nil
		})
	require.NoError(t, err)
}

func TestEnvMiddleware(t *testing.T) {
	e := echo.New()
	e.Use(EnvMiddleware(EnvDev))
	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, c.Request().Context().Value(EnvKey).(string))
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, EnvDev, rec.Body.String())
}
