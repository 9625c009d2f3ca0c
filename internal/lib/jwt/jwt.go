package jwt

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
	"io"
	"sw360auth/internal/domain/models"
	"time"
)

// SessionIssuer is the iss claim of every session token
const SessionIssuer = "sw360auth"

const (
	// signingKeyInfo binds the derived key to its purpose
	signingKeyInfo  = "sw360auth session signing key"
	signingKeyBytes = 32
)

var ErrTokenInvalid = errors.New("session token is invalid")

// SessionClaims is the payload of the session cookie
type SessionClaims struct {
	User models.SessionUser `json:"user"`
	jwt.RegisteredClaims
}

// SessionCodec signs and verifies session tokens with a key derived from the session secret
type SessionCodec struct {
	key    []byte
	maxAge time.Duration
	now    func() time.Time
}

// NewSessionCodec derives the HS256 signing key from secret with HKDF-SHA256
func NewSessionCodec(secret string, maxAge time.Duration) (*SessionCodec, error) {
	if secret == "" {
		return nil, errors.New("session secret is empty")
	}
	key, err := DeriveKey(secret, signingKeyInfo, signingKeyBytes)
	if err != nil {
		return nil, err
	}
	return &SessionCodec{key: key, maxAge: maxAge, now: time.Now}, nil
}

// DeriveKey expands secret into n bytes of key material bound to info
func DeriveKey(secret string, info string, n int) ([]byte, error) {
	key := make([]byte, n)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

// MaxAge returns how long an issued session stays valid
func (c *SessionCodec) MaxAge() time.Duration {
	return c.maxAge
}

// Issue creates a signed session token for user
func (c *SessionCodec) Issue(user *models.SessionUser) (string, time.Time, error) {
	now := c.now()
	expiresAt := now.Add(c.maxAge)
	claims := SessionClaims{
		User: *user,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    SessionIssuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return token, expiresAt, nil
}

// Parse verifies a session token and returns the user it carries and its expiry
func (c *SessionCodec) Parse(tokenString string) (*models.SessionUser, time.Time, error) {
	var claims SessionClaims
	_, err := jwt.ParseWithClaims(
		tokenString,
		&claims,
		func(token *jwt.Token) (interface{}, error) {
			return c.key, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(SessionIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	return &claims.User, claims.ExpiresAt.Time, nil
}
