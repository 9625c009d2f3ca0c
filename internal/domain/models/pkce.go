package models

import "time"

// PKCE is a single authorization attempt: the code verifier and challenge bound to the OAuth state
// It lives from the authorization request until the token exchange consumes it
type PKCE struct {
	ID            string    `json:"id" db:"id"`
	State         string    `json:"state" db:"state"`
	CodeVerifier  string    `json:"code_verifier" db:"code_verifier"`
	CodeChallenge string    `json:"code_challenge" db:"code_challenge"`
	Method        string    `json:"code_challenge_method" db:"code_challenge_method"`
	CallbackURL   string    `json:"callback_url" db:"callback_url"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	ExpiresAt     time.Time `json:"expires_at" db:"expires_at"`
}

// Expired reports whether the attempt can no longer be exchanged at t
func (p *PKCE) Expired(t time.Time) bool {
	return !p.ExpiresAt.IsZero() && !t.Before(p.ExpiresAt)
}
