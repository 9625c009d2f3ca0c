package repositories

import (
	"context"
	"errors"
	"fmt"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"sw360auth/internal/domain/models"
	"sw360auth/internal/storage"
	"time"
)

// PKCERepository makes queries to pkce_attempts table
type PKCERepository struct {
	db  *pgxpool.Pool
	now func() time.Time
}

// NewPKCERepository creates new PKCERepository
func NewPKCERepository(db *pgxpool.Pool) *PKCERepository {
	return &PKCERepository{
		db:  db,
		now: time.Now,
	}
}

// SavePKCE saves an attempt bound to its state and clears attempts that already expired
func (r *PKCERepository) SavePKCE(ctx context.Context, pkce *models.PKCE) (err error) {
	_, err = r.db.Exec(
		ctx,
		`DELETE FROM pkce_attempts WHERE expires_at < $1`,
		r.now(),
	)
	if err != nil {
		return fmt.Errorf("purge expired pkce: %w", err)
	}

	_, err = r.db.Exec(
		ctx,
		`INSERT INTO pkce_attempts (id, state, code_verifier, code_challenge, code_challenge_method, callback_url, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		pkce.ID,
		pkce.State,
		pkce.CodeVerifier,
		pkce.CodeChallenge,
		pkce.Method,
		pkce.CallbackURL,
		pkce.CreatedAt,
		pkce.ExpiresAt,
	)
	if err != nil {
		var pgxError *pgconn.PgError
		if errors.As(err, &pgxError) && pgxError.Code == "23505" {
			return storage.ErrAttemptExists
		}
		return fmt.Errorf("save PKCE: %w", err)
	}
	return nil
}

// ConsumePKCE removes the attempt bound to state and returns it
func (r *PKCERepository) ConsumePKCE(ctx context.Context, state string) (*models.PKCE, error) {
	var pkce models.PKCE
	err := r.db.QueryRow(
		ctx,
		`DELETE FROM pkce_attempts WHERE state = $1
		RETURNING id, state, code_verifier, code_challenge, code_challenge_method, callback_url, created_at, expires_at`,
		state,
	).Scan(
		&pkce.ID,
		&pkce.State,
		&pkce.CodeVerifier,
		&pkce.CodeChallenge,
		&pkce.Method,
		&pkce.CallbackURL,
		&pkce.CreatedAt,
		&pkce.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrAttemptNotFound
		}
		return nil, fmt.Errorf("consume PKCE: %w", err)
	}
	if pkce.Expired(r.now()) {
		return nil, storage.ErrAttemptExpired
	}
	return &pkce, nil
}
