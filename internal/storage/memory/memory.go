package memory

import (
	"context"
	"sw360auth/internal/domain/models"
	"sw360auth/internal/storage"
	"sync"
	"time"
)

// DefaultLimit caps the number of live attempts kept by New
const DefaultLimit = 10000

type queued struct {
	state     string
	expiresAt time.Time
}

// Storage keeps authorization attempts in process memory
// Suitable for a single gateway instance
type Storage struct {
	mu       sync.Mutex
	attempts map[string]models.PKCE
	// queue holds states in save order; with one attempt TTL it is also expiry order
	queue []queued
	limit int
	now   func() time.Time
}

// New creates an empty in-memory attempt storage holding at most DefaultLimit attempts
func New() *Storage {
	return NewWithLimit(DefaultLimit)
}

// NewWithLimit creates an empty in-memory attempt storage holding at most limit attempts
func NewWithLimit(limit int) *Storage {
	return &Storage{
		attempts: make(map[string]models.PKCE),
		limit:    limit,
		now:      time.Now,
	}
}

// SavePKCE stores an attempt under its state, dropping attempts that already expired
func (s *Storage) SavePKCE(_ context.Context, pkce *models.PKCE) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.purge(now)

	if existing, ok := s.attempts[pkce.State]; ok && !existing.Expired(now) {
		return storage.ErrAttemptExists
	}
	if s.limit > 0 && len(s.attempts) >= s.limit {
		return storage.ErrTooManyAttempts
	}
	s.attempts[pkce.State] = *pkce
	if !pkce.ExpiresAt.IsZero() {
		s.queue = append(s.queue, queued{state: pkce.State, expiresAt: pkce.ExpiresAt})
	}
	return nil
}

// purge pops expired entries from the head of the queue, it stops at the first live one
func (s *Storage) purge(now time.Time) {
	for len(s.queue) > 0 {
		head := s.queue[0]
		if now.Before(head.expiresAt) {
			return
		}
		if attempt, ok := s.attempts[head.state]; ok && attempt.ExpiresAt.Equal(head.expiresAt) {
			delete(s.attempts, head.state)
		}
		s.queue[0] = queued{}
		s.queue = s.queue[1:]
	}
}

// ConsumePKCE returns the attempt bound to state and removes it
func (s *Storage) ConsumePKCE(_ context.Context, state string) (*models.PKCE, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempt, ok := s.attempts[state]
	if !ok {
		return nil, storage.ErrAttemptNotFound
	}
	delete(s.attempts, state)
	if attempt.Expired(s.now()) {
		return nil, storage.ErrAttemptExpired
	}
	return &attempt, nil
}

// Len returns the number of stored attempts
func (s *Storage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.attempts)
}
