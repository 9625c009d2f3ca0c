package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sw360auth/internal/app"
	"sw360auth/internal/app/interceptors"
	"sw360auth/internal/config"
	"syscall"
	"time"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("starting application...",
		slog.String("env", cfg.Env),
		slog.String("api_url", cfg.Backend.APIURL),
		slog.String("attempts_driver", cfg.Attempts.Driver),
		slog.Int("http_port", cfg.HTTP.Port),
		slog.Int("grpc_port", cfg.GRPC.Port))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Backend.RequestTimeout)
	application, err := app.New(ctx, log, cfg)
	if err != nil {
		cancel()
		log.Error("failed to init application", slog.String("error", err.Error()))
		os.Exit(1)
	}
	application.WarmUp(ctx)
	cancel()

	go application.HTTPSrv.MustRun()
	go application.GRPCSrv.MustRun()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)

	sign := <-stop
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	application.Stop(shutdownCtx)
	log.Info("application stopped.", slog.String("signal", sign.String()))
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case interceptors.EnvLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case interceptors.EnvDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case interceptors.EnvProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}
