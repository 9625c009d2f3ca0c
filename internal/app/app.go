package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sw360auth/internal/api/sw360"
	grpcapp "sw360auth/internal/app/grpc"
	httpapp "sw360auth/internal/app/http"
	"sw360auth/internal/config"
	authhttp "sw360auth/internal/http/auth"
	"sw360auth/internal/lib/jwt"
	"sw360auth/internal/lib/pkce"
	"sw360auth/internal/services/auth"
	"sw360auth/internal/services/auth/interfaces"
	"sw360auth/internal/services/session"
	"sw360auth/internal/storage/memory"
	"sw360auth/internal/storage/postgres"
	"sw360auth/internal/storage/protected"
	"sw360auth/internal/storage/redis"
	"sw360auth/internal/storage/repositories"
)

type App struct {
	log     *slog.Logger
	HTTPSrv *httpapp.App
	GRPCSrv *grpcapp.App
	backend *sw360.Client
	closers []func()
}

// New wires storage, the backend client and the services into the http and gRPC servers
func New(ctx context.Context, log *slog.Logger, cfg *config.Config) (*App, error) {
	const op = "app.New"

	if cfg.Vault.Enabled {
		if err := loadSecrets(ctx, cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	if cfg.Session.Secret == "" {
		return nil, fmt.Errorf("%s: session secret is empty", op)
	}

	a := &App{log: log}

	attempts, err := a.attemptStorage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	httpClient := &http.Client{Timeout: cfg.Backend.RequestTimeout}
	publicURL := cfg.HTTP.PublicURL
	a.backend = sw360.New(
		log,
		cfg.Backend.APIURL,
		cfg.Backend.ClientID,
		cfg.Backend.ClientSecret,
		publicURL+authhttp.BasePath+"/callback/"+sw360.ProviderID,
		sw360.WithHTTPClient(httpClient),
		sw360.WithMetadataTTL(cfg.Backend.MetadataCacheTTL),
	)

	codec, err := jwt.NewSessionCodec(cfg.Session.Secret, cfg.Session.MaxAge)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sessionService := session.New(log, codec)
	authService := auth.New(
		log,
		attempts,
		a.backend,
		a.backend,
		jwt.NewIDTokenVerifier(httpClient, cfg.Backend.MetadataCacheTTL),
		pkce.NewGenerator(nil),
		sessionService,
		cfg.Attempts.TTL,
		publicURL,
	)

	a.HTTPSrv = httpapp.New(
		cfg.Env,
		log,
		authService,
		sessionService,
		authhttp.Cookies{
			Session:  cfg.Session.CookieName,
			State:    cfg.Attempts.CookieName,
			StateTTL: cfg.Attempts.TTL,
			CSRF:     cfg.Session.CSRFCookieName,
		},
		publicURL,
		cfg.HTTP.Port,
		cfg.HTTP.Timeout,
	)
	a.GRPCSrv = grpcapp.New(cfg.Env, log, cfg.GRPC.Port, cfg.GRPC.Timeout)

	return a, nil
}

// WarmUp discovers the authorization server and reports the gateway healthy on success
// A failure is logged only, discovery is retried on the next sign in
func (a *App) WarmUp(ctx context.Context) {
	const op = "app.WarmUp"
	log := a.log.With(slog.String("op", op))

	if _, err := a.backend.Discover(ctx); err != nil {
		log.Warn("authorization server not reachable yet", slog.String("error", err.Error()))
		return
	}
	a.GRPCSrv.MarkServing()
	log.Info("authorization server discovered", slog.String("url", a.backend.MetadataURL()))
}

// Stop stops both servers and releases storage connections
func (a *App) Stop(ctx context.Context) {
	a.HTTPSrv.Stop(ctx)
	a.GRPCSrv.Stop()
	a.close()
}

func (a *App) close() {
	for _, closeFn := range a.closers {
		closeFn()
	}
	a.closers = nil
}

func (a *App) attemptStorage(ctx context.Context, cfg *config.Config) (interfaces.AttemptStorage, error) {
	const op = "app.attemptStorage"
	log := a.log.With(slog.String("op", op), slog.String("driver", cfg.Attempts.Driver))

	switch cfg.Attempts.Driver {
	case config.DriverMemory:
		log.Info("attempts kept in memory")
		return memory.New(), nil
	case config.DriverRedis:
		cache, err := redis.NewCache(&cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err := cache.Ping(ctx); err != nil {
			_ = cache.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		a.closers = append(a.closers, func() { _ = cache.Close() })
		log.Info("attempts kept in redis", slog.String("addr", cfg.Redis.Addr()))
		return cache, nil
	case config.DriverPostgres:
		storage, err := postgres.New(ctx, cfg.Postgres.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		a.closers = append(a.closers, storage.CloseStorage)
		log.Info("attempts kept in postgres")
		return repositories.NewPKCERepository(storage.Pool()), nil
	}
	return nil, fmt.Errorf("%s: unknown attempts driver %q", op, cfg.Attempts.Driver)
}

func loadSecrets(ctx context.Context, cfg *config.Config) error {
	v, err := protected.NewVaultClient(ctx, cfg.Vault)
	if err != nil {
		return err
	}
	secrets, err := v.Secrets(ctx)
	if err != nil {
		return err
	}
	secrets.Apply(cfg)
	if cfg.Backend.ClientSecret == "" {
		return errors.New("client secret is empty after reading vault")
	}
	return nil
}
