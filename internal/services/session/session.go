package session

import (
	"errors"
	"fmt"
	"github.com/go-playground/validator/v10"
	"log/slog"
	"sw360auth/internal/domain/models"
	"sw360auth/internal/lib/utilities"
	"time"
)

var (
	ErrMissingField   = errors.New("required field is missing")
	ErrInvalidSession = errors.New("invalid session")
)

// TokenCodec signs and verifies the session token kept in the browser cookie
type TokenCodec interface {
	Issue(user *models.SessionUser) (token string, expiresAt time.Time, err error)
	Parse(token string) (user *models.SessionUser, expiresAt time.Time, err error)
}

type Session struct {
	log      *slog.Logger
	codec    TokenCodec
	validate *validator.Validate
}

// New returns a new instance of the Session service
func New(log *slog.Logger, codec TokenCodec) *Session {
	return &Session{
		log:      log,
		codec:    codec,
		validate: validator.New(),
	}
}

// Shape maps the token response and user profile into the session user record
// The access token is prefixed with "Bearer ", everything else passes through unchanged
func Shape(v *validator.Validate, token *models.TokenPayload, profile *models.Profile) (*models.SessionUser, error) {
	if token == nil || profile == nil {
		return nil, fmt.Errorf("%w: token or profile is absent", ErrMissingField)
	}
	if err := v.Struct(token); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, fieldNames(err))
	}
	if err := v.Struct(profile); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, fieldNames(err))
	}

	return &models.SessionUser{
		ID:           profile.Subject,
		Email:        profile.Email,
		UserGroup:    profile.UserGroup,
		AccessToken:  models.BearerPrefix + token.AccessToken,
		TokenType:    token.TokenType,
		Scope:        token.Scope,
		IssuedAt:     token.IssuedAt,
		ExpiresAt:    token.ExpiresAt,
		ExpiresIn:    token.ExpiresIn,
		RefreshToken: token.RefreshToken,
	}, nil
}

// Shape maps the exchange result into a session user using the service validator
func (s *Session) Shape(token *models.TokenPayload, profile *models.Profile) (*models.SessionUser, error) {
	return Shape(s.validate, token, profile)
}

// Issue signs the session user into the cookie value
func (s *Session) Issue(user *models.SessionUser) (string, time.Time, error) {
	const op = "session.Issue"

	token, expiresAt, err := s.codec.Issue(user)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}
	s.log.With(slog.String("op", op)).Debug("session issued",
		slog.String("user_id", user.ID),
		slog.Time("expires", expiresAt),
	)
	return token, expiresAt, nil
}

// Current returns the session user held by the cookie value
func (s *Session) Current(token string) (*models.SessionUser, time.Time, error) {
	const op = "session.Current"

	if token == "" {
		return nil, time.Time{}, ErrInvalidSession
	}
	user, expiresAt, err := s.codec.Parse(token)
	if err != nil {
		s.log.With(slog.String("op", op)).Info("session rejected", slog.String("error", err.Error()))
		return nil, time.Time{}, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	return user, expiresAt, nil
}

func fieldNames(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	return fmt.Sprint(utilities.Map(verrs, func(fe validator.FieldError) string {
		return fe.Namespace()
	}))
}
