package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sw360auth/internal/app/interceptors"
	"sw360auth/internal/domain/models"
	"sw360auth/internal/lib/jwt"
	"sw360auth/internal/services/auth"
	"sw360auth/internal/services/session"
	"testing"
	"time"
)

type fakeAuth struct {
	beginErr    error
	completeErr error
	user        *models.SessionUser
	gotState    string
	gotCookie   string
	gotCode     string
	gotCallback string
	aborted     string
}

func (f *fakeAuth) BeginSignIn(_ context.Context, callbackURL string) (string, string, error) {
	f.gotCallback = callbackURL
	if f.beginErr != nil {
		return "", "", f.beginErr
	}
	return "https://sw360.example.org/authorize?state=state-1", "state-1", nil
}

func (f *fakeAuth) CompleteSignIn(_ context.Context, state string, cookieState string, code string) (*models.SessionUser, string, error) {
	f.gotState, f.gotCookie, f.gotCode = state, cookieState, code
	if f.completeErr != nil {
		return nil, "", f.completeErr
	}
	return f.user, "/projects", nil
}

func (f *fakeAuth) AbortSignIn(_ context.Context, _ string, _ string, reason string) error {
	f.aborted = reason
	return fmt.Errorf("%w: %s", auth.ErrProviderError, reason)
}

var testCookies = Cookies{
	Session:  "sw360.session-token",
	State:    "sw360.state",
	StateTTL: 10 * time.Minute,
	CSRF:     "sw360.csrf-token",
}

func newServer(t *testing.T, env string, a Auth) (*echo.Echo, *session.Session) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	codec, err := jwt.NewSessionCodec("secret", time.Hour)
	require.NoError(t, err)
	sessions := session.New(log, codec)

	e := echo.New()
	e.Use(interceptors.EnvMiddleware(env))
	Register(e, log, a, sessions, testCookies, "http://localhost:3000/")
	return e, sessions
}

func sessionUser() *models.SessionUser {
	return &models.SessionUser{
		ID:          gofakeit.UUID(),
		Email:       gofakeit.Email(),
		UserGroup:   "ADMIN",
		AccessToken: "Bearer abc123",
		TokenType:   "bearer",
		Scope:       "openid READ WRITE ADMIN",
		IssuedAt:    1700000000,
		ExpiresAt:   1700003600,
		ExpiresIn:   3600,
	}
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestSignIn(t *testing.T) {
	fa := &fakeAuth{}
	e, _ := newServer(t, interceptors.EnvProd, fa)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/auth/signin/sw360-backend?callbackUrl=%2Fprojects", nil))

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://sw360.example.org/authorize?state=state-1", rec.Header().Get("Location"))
	assert.Equal(t, "/projects", fa.gotCallback)

	cookie := findCookie(rec, testCookies.State)
	require.NotNil(t, cookie)
	assert.Equal(t, "state-1", cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, 600, cookie.MaxAge)
}

func TestSignIn_LocalCookiesNotSecure(t *testing.T) {
	e, _ := newServer(t, interceptors.EnvLocal, &fakeAuth{})

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/auth/signin/sw360-backend", nil))

	cookie := findCookie(rec, testCookies.State)
	require.NotNil(t, cookie)
	assert.False(t, cookie.Secure)
}

func TestSignIn_Failure(t *testing.T) {
	e, _ := newServer(t, interceptors.EnvLocal, &fakeAuth{beginErr: auth.ErrDiscovery})

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/auth/signin/sw360-backend", nil))

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/?error=OAuthSignin", rec.Header().Get("Location"))
	assert.Nil(t, findCookie(rec, testCookies.State))
}

func TestCallback(t *testing.T) {
	fa := &fakeAuth{user: sessionUser()}
	e, sessions := newServer(t, interceptors.EnvLocal, fa)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/callback/sw360-backend?code=the-code&state=state-1", nil)
	req.AddCookie(&http.Cookie{Name: testCookies.State, Value: "state-1"})
	rec := serve(e, req)

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/projects", rec.Header().Get("Location"))
	assert.Equal(t, "state-1", fa.gotState)
	assert.Equal(t, "state-1", fa.gotCookie)
	assert.Equal(t, "the-code", fa.gotCode)

	stateCookie := findCookie(rec, testCookies.State)
	require.NotNil(t, stateCookie)
	assert.Equal(t, -1, stateCookie.MaxAge)

	sessionCookie := findCookie(rec, testCookies.Session)
	require.NotNil(t, sessionCookie)
	user, _, err := sessions.Current(sessionCookie.Value)
	require.NoError(t, err)
	assert.Equal(t, fa.user, user)
}

func TestCallback_Errors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "state mismatch", err: auth.ErrStateMismatch, want: "/?error=OAuthCallback"},
		{name: "exchange", err: auth.ErrTokenExchange, want: "/?error=OAuthCallback"},
		{name: "profile", err: fmt.Errorf("%w: %w", auth.ErrProfile, session.ErrMissingField), want: "/?error=Callback"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, _ := newServer(t, interceptors.EnvLocal, &fakeAuth{completeErr: tc.err})
			rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/auth/callback/sw360-backend?code=c&state=s", nil))

			require.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, tc.want, rec.Header().Get("Location"))
			assert.Nil(t, findCookie(rec, testCookies.Session))
		})
	}
}

func TestCallback_ProviderError(t *testing.T) {
	fa := &fakeAuth{}
	e, _ := newServer(t, interceptors.EnvLocal, fa)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/auth/callback/sw360-backend?error=access_denied&state=s", nil))
	assert.Equal(t, "/?error=AccessDenied", rec.Header().Get("Location"))
	assert.Equal(t, "access_denied", fa.aborted)

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/api/auth/callback/sw360-backend?error=server_error&state=s", nil))
	assert.Equal(t, "/?error=OAuthCallback", rec.Header().Get("Location"))
}

func TestSession(t *testing.T) {
	e, sessions := newServer(t, interceptors.EnvLocal, &fakeAuth{})
	user := sessionUser()
	token, expiresAt, err := sessions.Issue(user)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.AddCookie(&http.Cookie{Name: testCookies.Session, Value: token})
	rec := serve(e, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		User    models.SessionUser `json:"user"`
		Expires string             `json:"expires"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, *user, body.User)
	assert.Equal(t, "Bearer abc123", body.User.AccessToken)
	assert.Equal(t, expiresAt.UTC().Format(time.RFC3339), body.Expires)
}

func TestSession_Anonymous(t *testing.T) {
	e, _ := newServer(t, interceptors.EnvLocal, &fakeAuth{})

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/auth/session", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{}`, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.AddCookie(&http.Cookie{Name: testCookies.Session, Value: "tampered"})
	rec = serve(e, req)
	assert.JSONEq(t, `{}`, rec.Body.String())
	cookie := findCookie(rec, testCookies.Session)
	require.NotNil(t, cookie)
	assert.Equal(t, -1, cookie.MaxAge)
}

func csrfToken(t *testing.T, e *echo.Echo) string {
	t.Helper()
	rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/auth/csrf", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		CSRFToken string `json:"csrfToken"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	cookie := findCookie(rec, testCookies.CSRF)
	require.NotNil(t, cookie)
	assert.Equal(t, body.CSRFToken, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	return body.CSRFToken
}

func signOutRequest(form url.Values, cookieToken string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signout", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	if cookieToken != "" {
		req.AddCookie(&http.Cookie{Name: testCookies.CSRF, Value: cookieToken})
	}
	return req
}

func TestCSRF_ReusesCookie(t *testing.T) {
	e, _ := newServer(t, interceptors.EnvLocal, &fakeAuth{})
	token := csrfToken(t, e)
	assert.Len(t, token, 43)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/csrf", nil)
	req.AddCookie(&http.Cookie{Name: testCookies.CSRF, Value: token})
	rec := serve(e, req)
	assert.JSONEq(t, `{"csrfToken":"`+token+`"}`, rec.Body.String())
	assert.Nil(t, findCookie(rec, testCookies.CSRF))
}

func TestSignOut_RequiresCSRF(t *testing.T) {
	e, _ := newServer(t, interceptors.EnvLocal, &fakeAuth{})
	token := csrfToken(t, e)

	cases := map[string]*http.Request{
		"no token":     signOutRequest(url.Values{}, token),
		"no cookie":    signOutRequest(url.Values{"csrfToken": {token}}, ""),
		"wrong token":  signOutRequest(url.Values{"csrfToken": {"forged"}}, token),
		"empty cookie": signOutRequest(url.Values{"csrfToken": {""}}, ""),
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			rec := serve(e, req)
			assert.Equal(t, http.StatusForbidden, rec.Code)
			assert.Nil(t, findCookie(rec, testCookies.Session))
		})
	}
}

func TestSignIn_PostRequiresCSRF(t *testing.T) {
	fa := &fakeAuth{}
	e, _ := newServer(t, interceptors.EnvLocal, fa)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signin/sw360-backend",
		strings.NewReader(url.Values{"callbackUrl": {"/projects"}}.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := serve(e, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, fa.gotCallback)

	token := csrfToken(t, e)
	req = httptest.NewRequest(http.MethodPost, "/api/auth/signin/sw360-backend",
		strings.NewReader(url.Values{"callbackUrl": {"/projects"}, "csrfToken": {token}}.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	req.AddCookie(&http.Cookie{Name: testCookies.CSRF, Value: token})
	rec = serve(e, req)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/projects", fa.gotCallback)
}

func TestSignOut(t *testing.T) {
	e, _ := newServer(t, interceptors.EnvLocal, &fakeAuth{})
	token := csrfToken(t, e)

	rec := serve(e, signOutRequest(url.Values{"csrfToken": {token}}, token))

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	req := signOutRequest(url.Values{}, token)
	req.Header.Set("X-CSRF-Token", token)
	rec = serve(e, req)
	assert.Equal(t, http.StatusFound, rec.Code)
	cookie := findCookie(rec, testCookies.Session)
	require.NotNil(t, cookie)
	assert.Equal(t, -1, cookie.MaxAge)
}

func TestProviders(t *testing.T) {
	e, _ := newServer(t, interceptors.EnvLocal, &fakeAuth{})

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/auth/providers", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var providers map[string]Provider
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &providers))
	require.Contains(t, providers, "sw360-backend")
	p := providers["sw360-backend"]
	assert.Equal(t, "oauth", p.Type)
	assert.Equal(t, "http://localhost:3000/api/auth/signin/sw360-backend", p.SigninURL)
	assert.Equal(t, "http://localhost:3000/api/auth/callback/sw360-backend", p.CallbackURL)
}
