package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"github.com/segmentio/ksuid"
	"log/slog"
	"net/url"
	"strings"
	"sw360auth/internal/domain/models"
	"sw360auth/internal/lib/pkce"
	"sw360auth/internal/services/auth/interfaces"
	"sw360auth/internal/storage"
	"time"
	"unicode"
)

var (
	ErrRandomSource  = pkce.ErrRandomSource
	ErrDiscovery     = errors.New("authorization server discovery failed")
	ErrStateMismatch = errors.New("state mismatch")
	ErrTokenExchange = errors.New("token exchange failed")
	ErrProfile       = errors.New("user profile unavailable")
	ErrProviderError = errors.New("authorization server returned an error")
)

type Auth struct {
	log        *slog.Logger
	attempts   interfaces.AttemptStorage
	metadata   interfaces.MetadataProvider
	client     interfaces.OAuthClient
	verifier   interfaces.ProfileVerifier
	generator  interfaces.CredentialGenerator
	sessions   interfaces.SessionShaper
	attemptTTL time.Duration
	publicURL  *url.URL
	now        func() time.Time
}

// New returns a new instance of the Auth service
// publicURL is the frontend origin callback urls are restricted to
func New(
	log *slog.Logger,
	attempts interfaces.AttemptStorage,
	metadata interfaces.MetadataProvider,
	client interfaces.OAuthClient,
	verifier interfaces.ProfileVerifier,
	generator interfaces.CredentialGenerator,
	sessions interfaces.SessionShaper,
	attemptTTL time.Duration,
	publicURL string,
) *Auth {
	base, err := url.Parse(publicURL)
	if err != nil {
		base = &url.URL{}
	}
	return &Auth{
		log:        log,
		attempts:   attempts,
		metadata:   metadata,
		client:     client,
		verifier:   verifier,
		generator:  generator,
		sessions:   sessions,
		attemptTTL: attemptTTL,
		publicURL:  base,
		now:        time.Now,
	}
}

// BeginSignIn starts an authorization attempt and returns the authorization url and the state
// the browser must present again on callback
func (a *Auth) BeginSignIn(ctx context.Context, callbackURL string) (authURL string, state string, err error) {
	const op = "auth.BeginSignIn"
	attemptID := ksuid.New().String()
	log := a.log.With(slog.String("op", op), slog.String("attempt_id", attemptID))

	md, err := a.metadata.Discover(ctx)
	if err != nil {
		log.Error("failed to discover authorization server", slog.String("error", err.Error()))
		return "", "", fmt.Errorf("%s: %w: %w", op, ErrDiscovery, err)
	}
	if !md.SupportsChallengeMethod(pkce.MethodS256) {
		log.Error("authorization server does not support S256 challenge")
		return "", "", fmt.Errorf("%s: %w: S256 not supported", op, ErrDiscovery)
	}

	pair, err := a.generator.Generate()
	if err != nil {
		log.Error("failed to generate code verifier", slog.String("error", err.Error()))
		return "", "", fmt.Errorf("%s: %w", op, err)
	}
	state, err = a.generator.State()
	if err != nil {
		log.Error("failed to generate state", slog.String("error", err.Error()))
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	now := a.now()
	attempt := &models.PKCE{
		ID:            attemptID,
		State:         state,
		CodeVerifier:  pair.Verifier,
		CodeChallenge: pair.Challenge,
		Method:        pair.Method,
		CallbackURL:   a.SafeCallbackURL(callbackURL),
		CreatedAt:     now,
		ExpiresAt:     now.Add(a.attemptTTL),
	}
	if err := a.attempts.SavePKCE(ctx, attempt); err != nil {
		log.Error("failed to save authorization attempt", slog.String("error", err.Error()))
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	log.Info("authorization attempt started", slog.Time("expires_at", attempt.ExpiresAt))
	return a.client.AuthCodeURL(md, state, pair), state, nil
}

// CompleteSignIn finishes the attempt identified by state and returns the signed in user
// and the callback url the attempt was started with
// state comes from the authorization server redirect, cookieState from the browser
func (a *Auth) CompleteSignIn(ctx context.Context, state string, cookieState string, code string) (*models.SessionUser, string, error) {
	const op = "auth.CompleteSignIn"
	log := a.log.With(slog.String("op", op))

	attempt, err := a.consume(ctx, state, cookieState)
	if err != nil {
		log.Warn("authorization attempt rejected", slog.String("error", err.Error()))
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	log = log.With(slog.String("attempt_id", attempt.ID))

	if code == "" {
		return nil, "", fmt.Errorf("%s: %w: no authorization code", op, ErrTokenExchange)
	}

	md, err := a.metadata.Discover(ctx)
	if err != nil {
		log.Error("failed to discover authorization server", slog.String("error", err.Error()))
		return nil, "", fmt.Errorf("%s: %w: %w", op, ErrDiscovery, err)
	}

	token, err := a.client.Exchange(ctx, md, code, attempt.CodeVerifier)
	if err != nil {
		log.Error("failed to exchange authorization code", slog.String("error", err.Error()))
		return nil, "", fmt.Errorf("%s: %w: %w", op, ErrTokenExchange, err)
	}

	profile, err := a.profile(ctx, md, token)
	if err != nil {
		log.Error("failed to get user profile", slog.String("error", err.Error()))
		return nil, "", fmt.Errorf("%s: %w: %w", op, ErrProfile, err)
	}

	user, err := a.sessions.Shape(token, profile)
	if err != nil {
		log.Error("failed to shape session user", slog.String("error", err.Error()))
		return nil, "", fmt.Errorf("%s: %w: %w", op, ErrProfile, err)
	}

	log.Info("user signed in", slog.String("user_id", user.ID), slog.String("user_group", user.UserGroup))
	return user, attempt.CallbackURL, nil
}

// AbortSignIn discards the attempt after the authorization server redirected back with an error
func (a *Auth) AbortSignIn(ctx context.Context, state string, cookieState string, reason string) error {
	const op = "auth.AbortSignIn"
	log := a.log.With(slog.String("op", op), slog.String("reason", reason))

	if attempt, err := a.consume(ctx, state, cookieState); err == nil {
		log = log.With(slog.String("attempt_id", attempt.ID))
	}
	log.Warn("authorization denied by server")
	return fmt.Errorf("%s: %w: %s", op, ErrProviderError, reason)
}

// SafeCallbackURL keeps relative paths and urls on the frontend origin, anything else falls back to "/"
// Control characters and backslashes are rejected since browsers drop or rewrite them
func (a *Auth) SafeCallbackURL(raw string) string {
	if raw == "" || strings.ContainsFunc(raw, unicode.IsControl) || strings.ContainsRune(raw, '\\') {
		return "/"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "/"
	}
	if !u.IsAbs() {
		if u.Host != "" || u.User != nil || !strings.HasPrefix(u.Path, "/") {
			return "/"
		}
		if resolved := a.publicURL.ResolveReference(u); resolved.Host != a.publicURL.Host {
			return "/"
		}
		return raw
	}
	if a.publicURL.Host == "" {
		return "/"
	}
	if u.Scheme == a.publicURL.Scheme && u.Host == a.publicURL.Host {
		return u.String()
	}
	return "/"
}

func (a *Auth) consume(ctx context.Context, state string, cookieState string) (*models.PKCE, error) {
	if state == "" || subtle.ConstantTimeCompare([]byte(state), []byte(cookieState)) != 1 {
		return nil, ErrStateMismatch
	}
	attempt, err := a.attempts.ConsumePKCE(ctx, state)
	if err != nil {
		if errors.Is(err, storage.ErrAttemptNotFound) || errors.Is(err, storage.ErrAttemptExpired) {
			return nil, fmt.Errorf("%w: %w", ErrStateMismatch, err)
		}
		return nil, err
	}
	return attempt, nil
}

// profile prefers the verified id_token and falls back to the userinfo endpoint
func (a *Auth) profile(ctx context.Context, md *models.AuthServerMetadata, token *models.TokenPayload) (*models.Profile, error) {
	if token.IDToken != "" && md.JwksURI != "" {
		return a.verifier.Verify(ctx, md.JwksURI, token.IDToken, md.Issuer, a.client.ClientID())
	}
	return a.client.UserInfo(ctx, md, token.AccessToken)
}
