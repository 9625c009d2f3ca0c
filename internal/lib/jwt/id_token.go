package jwt

import (
	"context"
	"errors"
	"fmt"
	"github.com/lestrrat-go/jwx/jwk"
	jwxt "github.com/lestrrat-go/jwx/jwt"
	"net/http"
	"sw360auth/internal/domain/models"
	"sync"
	"time"
)

var ErrIDTokenInvalid = errors.New("id token is invalid")

type cachedKeySet struct {
	set       jwk.Set
	fetchedAt time.Time
}

// IDTokenVerifier validates id tokens against the authorization server's JWKS
type IDTokenVerifier struct {
	httpClient *http.Client
	ttl        time.Duration
	skew       time.Duration
	now        func() time.Time

	mu   sync.Mutex
	sets map[string]cachedKeySet
}

// NewIDTokenVerifier creates a verifier caching key sets for ttl
func NewIDTokenVerifier(httpClient *http.Client, ttl time.Duration) *IDTokenVerifier {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &IDTokenVerifier{
		httpClient: httpClient,
		ttl:        ttl,
		skew:       30 * time.Second,
		now:        time.Now,
		sets:       make(map[string]cachedKeySet),
	}
}

// Verify checks signature, issuer, audience and lifetime of raw and extracts the profile claims
// A failed check against a cached key set is retried once with a fresh set to follow key rotation
func (v *IDTokenVerifier) Verify(ctx context.Context, jwksURI string, raw string, issuer string, audience string) (*models.Profile, error) {
	set, cached, err := v.keySet(ctx, jwksURI, false)
	if err != nil {
		return nil, err
	}
	token, err := v.parse(raw, set, issuer, audience)
	if err != nil && cached {
		if set, _, err = v.keySet(ctx, jwksURI, true); err != nil {
			return nil, err
		}
		token, err = v.parse(raw, set, issuer, audience)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIDTokenInvalid, err)
	}

	profile := &models.Profile{
		Subject:   token.Subject(),
		Email:     stringClaim(token, "email"),
		UserGroup: stringClaim(token, "userGroup"),
	}
	return profile, nil
}

func (v *IDTokenVerifier) parse(raw string, set jwk.Set, issuer string, audience string) (jwxt.Token, error) {
	options := []jwxt.ParseOption{
		jwxt.WithKeySet(set),
		jwxt.UseDefaultKey(true),
		jwxt.InferAlgorithmFromKey(true),
		jwxt.WithValidate(true),
		jwxt.WithAudience(audience),
		jwxt.WithClock(jwxt.ClockFunc(v.now)),
		jwxt.WithAcceptableSkew(v.skew),
	}
	if issuer != "" {
		options = append(options, jwxt.WithIssuer(issuer))
	}
	return jwxt.Parse([]byte(raw), options...)
}

// keySet returns the key set for uri and whether it came from the cache
func (v *IDTokenVerifier) keySet(ctx context.Context, uri string, refresh bool) (jwk.Set, bool, error) {
	v.mu.Lock()
	entry, ok := v.sets[uri]
	v.mu.Unlock()
	if ok && !refresh && v.now().Sub(entry.fetchedAt) < v.ttl {
		return entry.set, true, nil
	}

	set, err := jwk.Fetch(ctx, uri, jwk.WithHTTPClient(v.httpClient))
	if err != nil {
		return nil, false, fmt.Errorf("fetch jwks %s: %w", uri, err)
	}
	v.mu.Lock()
	v.sets[uri] = cachedKeySet{set: set, fetchedAt: v.now()}
	v.mu.Unlock()
	return set, false, nil
}

func stringClaim(token jwxt.Token, name string) string {
	value, ok := token.Get(name)
	if !ok {
		return ""
	}
	s, _ := value.(string)
	return s
}
