package models

// TokenPayload is the token endpoint response of the SW360 authorization server
type TokenPayload struct {
	AccessToken  string `json:"access_token" validate:"required"`
	TokenType    string `json:"token_type" validate:"required"`
	Scope        string `json:"scope"`
	IssuedAt     int64  `json:"iat"`
	ExpiresAt    int64  `json:"exp"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token,omitempty"`
}

// Profile holds the identity claims of the signed in user
type Profile struct {
	Subject   string `json:"sub" validate:"required"`
	UserGroup string `json:"userGroup"`
	Email     string `json:"email" validate:"omitempty,email"`
}
