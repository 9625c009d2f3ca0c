package sw360

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/go-playground/validator/v10"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sw360auth/internal/domain/models"
	"sw360auth/internal/lib/pkce"
	"sync"
	"time"
)

const (
	// ProviderID names the backend provider in routes and cookies
	ProviderID = "sw360-backend"
	// ProviderName is the human readable provider name
	ProviderName = "sw360 backend"
	// MetadataPath is appended to the API base URL to discover the authorization server
	MetadataPath = "/authorization/.well-known/oauth-authorization-server"
)

// Scopes requested on every authorization, independent of the user
var Scopes = []string{"openid", "READ", "WRITE", "ADMIN"}

var (
	ErrMetadata = errors.New("authorization server metadata unavailable")
	ErrExchange = errors.New("token exchange failed")
	ErrUserInfo = errors.New("userinfo request failed")
)

// Client talks OAuth2 to the SW360 backend authorization server
type Client struct {
	log          *slog.Logger
	httpClient   *http.Client
	apiURL       string
	clientID     string
	clientSecret string
	redirectURL  string
	metadataTTL  time.Duration
	validate     *validator.Validate
	now          func() time.Time

	mu            sync.RWMutex
	metadata      *models.AuthServerMetadata
	fetchedAt     time.Time
	metadataGroup singleflight.Group
}

// Option configures the Client
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for discovery, token and userinfo requests
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithMetadataTTL sets how long discovered metadata is reused
func WithMetadataTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.metadataTTL = ttl
	}
}

// New creates a client for the backend at apiURL
func New(log *slog.Logger, apiURL string, clientID string, clientSecret string, redirectURL string, opts ...Option) *Client {
	c := &Client{
		log:          log,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		apiURL:       strings.TrimRight(apiURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURL:  redirectURL,
		metadataTTL:  30 * time.Minute,
		validate:     validator.New(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ClientID returns the OAuth client identifier, the expected id_token audience
func (c *Client) ClientID() string {
	return c.clientID
}

// RedirectURL returns the registered callback
func (c *Client) RedirectURL() string {
	return c.redirectURL
}

// MetadataURL returns the well-known metadata document location
func (c *Client) MetadataURL() string {
	return c.apiURL + MetadataPath
}

// Discover returns the authorization server metadata, cached for the metadata TTL
func (c *Client) Discover(ctx context.Context) (*models.AuthServerMetadata, error) {
	if md := c.cached(); md != nil {
		return md, nil
	}

	result, err, _ := c.metadataGroup.Do(c.MetadataURL(), func() (interface{}, error) {
		if md := c.cached(); md != nil {
			return md, nil
		}
		return c.fetchMetadata(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.AuthServerMetadata), nil
}

func (c *Client) cached() *models.AuthServerMetadata {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.metadata != nil && c.now().Sub(c.fetchedAt) < c.metadataTTL {
		return c.metadata
	}
	return nil
}

func (c *Client) fetchMetadata(ctx context.Context) (*models.AuthServerMetadata, error) {
	const op = "sw360.fetchMetadata"
	log := c.log.With(slog.String("op", op), slog.String("url", c.MetadataURL()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.MetadataURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMetadata, err)
	}
	req.Header.Set("Accept", "application/json")

	var md models.AuthServerMetadata
	if err := c.doJSON(req, &md); err != nil {
		log.Error("metadata discovery failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %w", ErrMetadata, err)
	}
	if err := c.validate.Struct(&md); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMetadata, err)
	}

	c.mu.Lock()
	c.metadata = &md
	c.fetchedAt = c.now()
	c.mu.Unlock()

	log.Debug("metadata discovered",
		slog.String("authorization_endpoint", md.AuthorizationEndpoint),
		slog.String("token_endpoint", md.TokenEndpoint),
	)
	return &md, nil
}

// OAuth2Config builds the oauth2 client configuration for md
func (c *Client) OAuth2Config(md *models.AuthServerMetadata) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  md.AuthorizationEndpoint,
			TokenURL: md.TokenEndpoint,
		},
		RedirectURL: c.redirectURL,
		Scopes:      Scopes,
	}
}

// AuthCodeURL builds the authorization request carrying the S256 challenge of pair
func (c *Client) AuthCodeURL(md *models.AuthServerMetadata, state string, pair *pkce.Pair) string {
	return c.OAuth2Config(md).AuthCodeURL(
		state,
		oauth2.SetAuthURLParam("code_challenge_method", pair.Method),
		oauth2.SetAuthURLParam("code_challenge", pair.Challenge),
	)
}

// Exchange trades the authorization code and verifier for tokens
func (c *Client) Exchange(ctx context.Context, md *models.AuthServerMetadata, code string, verifier string) (*models.TokenPayload, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	exchangedAt := c.now()

	token, err := c.OAuth2Config(md).Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode != "" {
			return nil, fmt.Errorf("%w: %s: %w", ErrExchange, retrieveErr.ErrorCode, retrieveErr)
		}
		return nil, fmt.Errorf("%w: %w", ErrExchange, err)
	}
	return tokenPayload(token, exchangedAt), nil
}

// tokenPayload flattens an oauth2 token, keeping iat/exp from the response when the server sent them
func tokenPayload(token *oauth2.Token, exchangedAt time.Time) *models.TokenPayload {
	payload := &models.TokenPayload{
		AccessToken:  token.AccessToken,
		TokenType:    token.TokenType,
		RefreshToken: token.RefreshToken,
		IssuedAt:     numericExtra(token, "iat"),
		ExpiresAt:    numericExtra(token, "exp"),
		ExpiresIn:    numericExtra(token, "expires_in"),
	}
	if scope, ok := token.Extra("scope").(string); ok {
		payload.Scope = scope
	}
	if idToken, ok := token.Extra("id_token").(string); ok {
		payload.IDToken = idToken
	}
	if payload.IssuedAt == 0 {
		payload.IssuedAt = exchangedAt.Unix()
	}
	if payload.ExpiresAt == 0 && !token.Expiry.IsZero() {
		payload.ExpiresAt = token.Expiry.Unix()
	}
	if payload.ExpiresIn == 0 && payload.ExpiresAt != 0 {
		payload.ExpiresIn = payload.ExpiresAt - payload.IssuedAt
	}
	return payload
}

func numericExtra(token *oauth2.Token, key string) int64 {
	switch v := token.Extra(key).(type) {
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

// UserInfo reads the profile of the token owner from the userinfo endpoint
func (c *Client) UserInfo(ctx context.Context, md *models.AuthServerMetadata, accessToken string) (*models.Profile, error) {
	if md.UserinfoEndpoint == "" {
		return nil, fmt.Errorf("%w: no userinfo endpoint advertised", ErrUserInfo)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, md.UserinfoEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUserInfo, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", models.BearerPrefix+accessToken)

	var profile models.Profile
	if err := c.doJSON(req, &profile); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUserInfo, err)
	}
	return &profile, nil
}

func (c *Client) doJSON(req *http.Request, v interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, req.URL.Redacted())
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", req.URL.Redacted(), err)
	}
	return nil
}
