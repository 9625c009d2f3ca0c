package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

const (
	// VerifierBytes is the amount of random bytes behind every code verifier
	VerifierBytes = 32
	// MethodS256 is the only code challenge method sent to the authorization server
	MethodS256 = "S256"
)

// ErrRandomSource is returned when the secure random source could not be read
var ErrRandomSource = errors.New("secure random source failed")

// Pair holds one verifier and the challenge derived from it
type Pair struct {
	Verifier  string
	Challenge string
	Method    string
}

// Generator produces code verifiers from a random source
type Generator struct {
	random io.Reader
}

// NewGenerator creates a Generator reading from r, crypto/rand when r is nil
func NewGenerator(r io.Reader) *Generator {
	if r == nil {
		r = rand.Reader
	}
	return &Generator{random: r}
}

// Verifier draws VerifierBytes random bytes and encodes them
func (g *Generator) Verifier() (string, error) {
	return g.token(VerifierBytes)
}

// State draws a random OAuth state value with the same entropy as a verifier
func (g *Generator) State() (string, error) {
	return g.token(VerifierBytes)
}

// Generate creates a fresh verifier and its S256 challenge
func (g *Generator) Generate() (*Pair, error) {
	verifier, err := g.Verifier()
	if err != nil {
		return nil, err
	}
	return &Pair{
		Verifier:  verifier,
		Challenge: Challenge(verifier),
		Method:    MethodS256,
	}, nil
}

func (g *Generator) token(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(g.random, buf); err != nil {
		return "", fmt.Errorf("%w: %w", ErrRandomSource, err)
	}
	return Encode(buf), nil
}

// Challenge derives the S256 code challenge of verifier
func Challenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return Encode(hash[:])
}

// Encode encodes data to URL-safe base64 without padding
func Encode(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}
