package httpapp

import (
	"context"
	"github.com/stretchr/testify/assert"
	"io"
	"log/slog"
	"sw360auth/internal/domain/models"
	authhttp "sw360auth/internal/http/auth"
	"testing"
	"time"
)

type noopAuth struct{}

func (noopAuth) BeginSignIn(context.Context, string) (string, string, error) {
	return "", "", nil
}

func (noopAuth) CompleteSignIn(context.Context, string, string, string) (*models.SessionUser, string, error) {
	return nil, "", nil
}

func (noopAuth) AbortSignIn(context.Context, string, string, string) error {
	return nil
}

type noopSession struct{}

func (noopSession) Issue(*models.SessionUser) (string, time.Time, error) {
	return "", time.Time{}, nil
}

func (noopSession) Current(string) (*models.SessionUser, time.Time, error) {
	return nil, time.Time{}, nil
}

func TestNew_ServerTimeouts(t *testing.T) {
	a := New("local", slog.New(slog.NewTextHandler(io.Discard, nil)), noopAuth{}, noopSession{},
		authhttp.Cookies{Session: "s", State: "st", CSRF: "c"}, "http://localhost:3000", 0, 7*time.Second)

	assert.Equal(t, 7*time.Second, a.echo.Server.ReadTimeout)
	assert.Equal(t, 7*time.Second, a.echo.Server.ReadHeaderTimeout)
	assert.Equal(t, 7*time.Second, a.echo.Server.WriteTimeout)
	assert.Equal(t, 14*time.Second, a.echo.Server.IdleTimeout)
}
