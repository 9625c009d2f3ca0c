package models

import "slices"

// AuthServerMetadata is the RFC 8414 document published by the SW360 authorization server
type AuthServerMetadata struct {
	Issuer                        string   `json:"issuer"`
	AuthorizationEndpoint         string   `json:"authorization_endpoint" validate:"required,url"`
	TokenEndpoint                 string   `json:"token_endpoint" validate:"required,url"`
	UserinfoEndpoint              string   `json:"userinfo_endpoint,omitempty"`
	JwksURI                       string   `json:"jwks_uri,omitempty"`
	ScopesSupported               []string `json:"scopes_supported,omitempty"`
	ResponseTypesSupported        []string `json:"response_types_supported,omitempty"`
	GrantTypesSupported           []string `json:"grant_types_supported,omitempty"`
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported,omitempty"`
}

// SupportsChallengeMethod reports whether method is advertised
// Servers that advertise nothing are assumed to accept it
func (m *AuthServerMetadata) SupportsChallengeMethod(method string) bool {
	if len(m.CodeChallengeMethodsSupported) == 0 {
		return true
	}
	return slices.Contains(m.CodeChallengeMethodsSupported, method)
}
