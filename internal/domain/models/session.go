package models

import "strings"

// BearerPrefix precedes the access token so it can be used as Authorization header value as is
const BearerPrefix = "Bearer "

// SessionUser is the session-scoped user record consumed by the frontend and its REST client
type SessionUser struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	UserGroup    string `json:"userGroup"`
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	IssuedAt     int64  `json:"iat"`
	ExpiresAt    int64  `json:"exp"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

// Scopes splits the granted scope
func (u *SessionUser) Scopes() []string {
	return strings.Fields(u.Scope)
}
