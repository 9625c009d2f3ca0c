package interfaces

import (
	"context"
	"sw360auth/internal/domain/models"
	"sw360auth/internal/lib/pkce"
)

// AttemptStorage keeps authorization attempts between the redirect and the callback
type AttemptStorage interface {
	SavePKCE(ctx context.Context, pkce *models.PKCE) error
	ConsumePKCE(ctx context.Context, state string) (*models.PKCE, error)
}

// MetadataProvider discovers the authorization server endpoints
type MetadataProvider interface {
	Discover(ctx context.Context) (*models.AuthServerMetadata, error)
}

// OAuthClient performs the authorization code grant against the backend
type OAuthClient interface {
	ClientID() string
	AuthCodeURL(md *models.AuthServerMetadata, state string, pair *pkce.Pair) string
	Exchange(ctx context.Context, md *models.AuthServerMetadata, code string, verifier string) (*models.TokenPayload, error)
	UserInfo(ctx context.Context, md *models.AuthServerMetadata, accessToken string) (*models.Profile, error)
}

// ProfileVerifier validates an id_token and extracts the user profile
type ProfileVerifier interface {
	Verify(ctx context.Context, jwksURI string, raw string, issuer string, audience string) (*models.Profile, error)
}

// CredentialGenerator produces the PKCE pair and the OAuth state of one attempt
type CredentialGenerator interface {
	Generate() (*pkce.Pair, error)
	State() (string, error)
}

// SessionShaper maps the exchange result to the session user
type SessionShaper interface {
	Shape(token *models.TokenPayload, profile *models.Profile) (*models.SessionUser, error)
}
