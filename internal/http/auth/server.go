package auth

import (
	"context"
	"errors"
	"github.com/labstack/echo/v4"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sw360auth/internal/api/sw360"
	"sw360auth/internal/domain/models"
	"sw360auth/internal/lib/pkce"
	"sw360auth/internal/lib/utilities"
	"sw360auth/internal/services/auth"
	"time"
)

const (
	BasePath = "/api/auth"

	errorOAuthSignin   = "OAuthSignin"
	errorOAuthCallback = "OAuthCallback"
	errorCallback      = "Callback"
	errorAccessDenied  = "AccessDenied"
)

// Auth runs the authorization code flow
type Auth interface {
	BeginSignIn(ctx context.Context, callbackURL string) (authURL string, state string, err error)
	CompleteSignIn(ctx context.Context, state string, cookieState string, code string) (*models.SessionUser, string, error)
	AbortSignIn(ctx context.Context, state string, cookieState string, reason string) error
}

// Session issues and reads the session cookie value
type Session interface {
	Issue(user *models.SessionUser) (string, time.Time, error)
	Current(token string) (*models.SessionUser, time.Time, error)
}

// Cookies names the cookies the handlers own
type Cookies struct {
	Session  string
	State    string
	StateTTL time.Duration
	CSRF     string
}

// Provider describes the single configured provider the way NextAuth lists providers
type Provider struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	SigninURL   string `json:"signinUrl"`
	CallbackURL string `json:"callbackUrl"`
}

type sessionResponse struct {
	User    *models.SessionUser `json:"user,omitempty"`
	Expires string              `json:"expires,omitempty"`
}

type serverAPI struct {
	log       *slog.Logger
	auth      Auth
	session   Session
	cookies   Cookies
	publicURL string
	tokens    TokenSource
}

// Register mounts the auth routes on e
func Register(e *echo.Echo, log *slog.Logger, a Auth, s Session, cookies Cookies, publicURL string) {
	api := &serverAPI{
		log:       log,
		auth:      a,
		session:   s,
		cookies:   cookies,
		publicURL: strings.TrimRight(publicURL, "/"),
		tokens:    pkce.NewGenerator(nil),
	}

	g := e.Group(BasePath)
	g.GET("/signin/"+sw360.ProviderID, api.SignIn)
	g.POST("/signin/"+sw360.ProviderID, api.SignIn, api.requireCSRF)
	g.GET("/callback/"+sw360.ProviderID, api.Callback)
	g.GET("/session", api.Session)
	g.POST("/signout", api.SignOut, api.requireCSRF)
	g.GET("/csrf", api.CSRF)
	g.GET("/providers", api.Providers)
}

// SignIn starts the authorization and redirects the browser to the authorization server
func (s *serverAPI) SignIn(c echo.Context) error {
	const op = "http.auth.SignIn"
	log := s.log.With(slog.String("op", op))

	callbackURL := c.QueryParam("callbackUrl")
	if callbackURL == "" {
		callbackURL = c.FormValue("callbackUrl")
	}

	authURL, state, err := s.auth.BeginSignIn(c.Request().Context(), callbackURL)
	if err != nil {
		log.Error("sign in failed", slog.String("error", err.Error()))
		return s.redirectError(c, errorOAuthSignin)
	}

	c.SetCookie(s.cookie(c, s.cookies.State, state, s.cookies.StateTTL))
	return c.Redirect(http.StatusFound, authURL)
}

// Callback completes the authorization and stores the session cookie
func (s *serverAPI) Callback(c echo.Context) error {
	const op = "http.auth.Callback"
	log := s.log.With(slog.String("op", op))
	ctx := c.Request().Context()

	state := c.QueryParam("state")
	cookieState := ""
	if cookie, err := c.Cookie(s.cookies.State); err == nil {
		cookieState = cookie.Value
	}
	c.SetCookie(s.expired(c, s.cookies.State))

	if reason := c.QueryParam("error"); reason != "" {
		err := s.auth.AbortSignIn(ctx, state, cookieState, reason)
		log.Warn("authorization failed", slog.String("error", err.Error()))
		if reason == "access_denied" {
			return s.redirectError(c, errorAccessDenied)
		}
		return s.redirectError(c, errorOAuthCallback)
	}

	user, callbackURL, err := s.auth.CompleteSignIn(ctx, state, cookieState, c.QueryParam("code"))
	if err != nil {
		log.Error("callback failed", slog.String("error", err.Error()))
		return s.redirectError(c, callbackErrorCode(err))
	}

	token, expiresAt, err := s.session.Issue(user)
	if err != nil {
		log.Error("failed to issue session", slog.String("error", err.Error()))
		return s.redirectError(c, errorCallback)
	}

	c.SetCookie(s.cookie(c, s.cookies.Session, token, time.Until(expiresAt)))
	return c.Redirect(http.StatusFound, callbackURL)
}

// Session returns the current session or an empty object
func (s *serverAPI) Session(c echo.Context) error {
	const op = "http.auth.Session"
	log := s.log.With(slog.String("op", op))

	token, err := utilities.GetUserSession(c.Request(), s.cookies.Session, log)
	if err != nil {
		return c.JSON(http.StatusOK, sessionResponse{})
	}
	user, expiresAt, err := s.session.Current(token)
	if err != nil {
		c.SetCookie(s.expired(c, s.cookies.Session))
		return c.JSON(http.StatusOK, sessionResponse{})
	}
	return c.JSON(http.StatusOK, sessionResponse{
		User:    user,
		Expires: expiresAt.UTC().Format(time.RFC3339),
	})
}

// SignOut drops the session cookie
func (s *serverAPI) SignOut(c echo.Context) error {
	c.SetCookie(s.expired(c, s.cookies.Session))
	return c.Redirect(http.StatusFound, "/")
}

// Providers lists the configured provider
func (s *serverAPI) Providers(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]Provider{
		sw360.ProviderID: {
			ID:          sw360.ProviderID,
			Name:        sw360.ProviderName,
			Type:        "oauth",
			SigninURL:   s.publicURL + BasePath + "/signin/" + sw360.ProviderID,
			CallbackURL: s.publicURL + BasePath + "/callback/" + sw360.ProviderID,
		},
	})
}

func (s *serverAPI) redirectError(c echo.Context, code string) error {
	return c.Redirect(http.StatusFound, "/?error="+url.QueryEscape(code))
}

func (s *serverAPI) cookie(c echo.Context, name string, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   utilities.SecureCookies(c.Request().Context()),
		SameSite: http.SameSiteLaxMode,
	}
}

func (s *serverAPI) expired(c echo.Context, name string) *http.Cookie {
	cookie := s.cookie(c, name, "", 0)
	cookie.MaxAge = -1
	return cookie
}

// callbackErrorCode maps callback failures to the codes the sign-in page understands
func callbackErrorCode(err error) string {
	switch {
	case errors.Is(err, auth.ErrProviderError):
		return errorAccessDenied
	case errors.Is(err, auth.ErrProfile):
		return errorCallback
	default:
		return errorOAuthCallback
	}
}
