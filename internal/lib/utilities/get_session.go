package utilities

import (
	"log/slog"
	"net/http"
	"sw360auth/internal/storage"
)

// GetUserSession support func for extracting the session token from the request cookies
func GetUserSession(r *http.Request, cookieName string, logger *slog.Logger) (string, error) {
	cookie, err := r.Cookie(cookieName)
	if err != nil || cookie.Value == "" {
		logger.Debug("user unauthenticated", slog.String("cookie", cookieName))
		return "", storage.ErrNoSessionCookie
	}
	return cookie.Value, nil
}
