package auth

import (
	"crypto/subtle"
	"github.com/labstack/echo/v4"
	"log/slog"
	"net/http"
)

const (
	csrfField  = "csrfToken"
	csrfHeader = "X-CSRF-Token"

	errorMissingCSRF = "MissingCSRF"
)

// TokenSource produces unguessable url-safe tokens
type TokenSource interface {
	State() (string, error)
}

type csrfResponse struct {
	CSRFToken string `json:"csrfToken"`
}

// CSRF returns the double-submit token, issuing the cookie when the browser has none
func (s *serverAPI) CSRF(c echo.Context) error {
	const op = "http.auth.CSRF"

	if cookie, err := c.Cookie(s.cookies.CSRF); err == nil && cookie.Value != "" {
		return c.JSON(http.StatusOK, csrfResponse{CSRFToken: cookie.Value})
	}
	token, err := s.tokens.State()
	if err != nil {
		s.log.With(slog.String("op", op)).Error("failed to generate csrf token", slog.String("error", err.Error()))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": errorMissingCSRF})
	}
	// no Max-Age, the cookie lives as long as the browser session
	c.SetCookie(s.cookie(c, s.cookies.CSRF, token, 0))
	return c.JSON(http.StatusOK, csrfResponse{CSRFToken: token})
}

// requireCSRF rejects state changing requests whose submitted token differs from the csrf cookie
func (s *serverAPI) requireCSRF(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		const op = "http.auth.requireCSRF"

		submitted := c.Request().Header.Get(csrfHeader)
		if submitted == "" {
			submitted = c.FormValue(csrfField)
		}
		cookie, err := c.Cookie(s.cookies.CSRF)
		if err != nil || cookie.Value == "" || submitted == "" ||
			subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(submitted)) != 1 {
			s.log.With(slog.String("op", op)).Warn("csrf check failed", slog.String("path", c.Path()))
			return c.JSON(http.StatusForbidden, map[string]string{"error": errorMissingCSRF})
		}
		return next(c)
	}
}
