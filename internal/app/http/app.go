package httpapp

import (
	"context"
	"errors"
	"fmt"
	"github.com/labstack/echo/v4"
	"log/slog"
	"net/http"
	"sw360auth/internal/app/interceptors"
	authhttp "sw360auth/internal/http/auth"
	"time"
)

type App struct {
	log  *slog.Logger
	echo *echo.Echo
	port int
}

// New creates new http server app serving the auth routes
func New(
	env string,
	log *slog.Logger,
	authService authhttp.Auth,
	sessionService authhttp.Session,
	cookies authhttp.Cookies,
	publicURL string,
	port int,
	timeout time.Duration,
) *App {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = timeout
	e.Server.ReadHeaderTimeout = timeout
	e.Server.WriteTimeout = timeout
	e.Server.IdleTimeout = 2 * timeout
	e.Use(
		interceptors.EnvMiddleware(env),
		interceptors.RequestLogger(log),
	)

	authhttp.Register(e, log, authService, sessionService, cookies, publicURL)

	return &App{
		log:  log,
		echo: e,
		port: port,
	}
}

// Handler exposes the router, used by tests
func (a *App) Handler() http.Handler {
	return a.echo
}

// MustRun runs http server and panic if any occurs
func (a *App) MustRun() {
	if err := a.Run(); err != nil {
		panic(err)
	}
}

// Run http server
func (a *App) Run() error {
	const op = "httpapp.Run"

	log := a.log.With(slog.String("op", op),
		slog.Int("port", a.port),
	)

	log.Info("starting http server")

	if err := a.echo.Start(fmt.Sprintf(":%d", a.port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Stop http server
func (a *App) Stop(ctx context.Context) {
	const op = "httpapp.Stop"

	a.log.With(slog.String("op", op)).Info("stopping http server")
	if err := a.echo.Shutdown(ctx); err != nil {
		a.log.With(slog.String("op", op)).Error("shutdown failed", slog.String("error", err.Error()))
	}
}
