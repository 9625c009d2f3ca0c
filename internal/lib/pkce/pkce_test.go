package pkce

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"regexp"
	"strings"
	"testing"
)

var urlSafe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy pool exhausted")
}

func TestVerifier_Format(t *testing.T) {
	g := NewGenerator(nil)
	for i := 0; i < 50; i++ {
		verifier, err := g.Verifier()
		require.NoError(t, err)
		assert.Len(t, verifier, 43)
		assert.Regexp(t, urlSafe, verifier)
	}
}

func TestVerifier_Unique(t *testing.T) {
	g := NewGenerator(nil)
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		verifier, err := g.Verifier()
		require.NoError(t, err)
		_, dup := seen[verifier]
		require.False(t, dup, "duplicate verifier generated")
		seen[verifier] = struct{}{}
	}
}

func TestVerifier_RandomSourceFailure(t *testing.T) {
	g := NewGenerator(failingReader{})

	_, err := g.Verifier()
	require.ErrorIs(t, err, ErrRandomSource)

	pair, err := g.Generate()
	require.ErrorIs(t, err, ErrRandomSource)
	assert.Nil(t, pair)
}

func TestVerifier_ShortRandomSource(t *testing.T) {
	g := NewGenerator(bytes.NewReader(make([]byte, 10)))

	_, err := g.Verifier()
	require.ErrorIs(t, err, ErrRandomSource)
}

func TestChallenge_Deterministic(t *testing.T) {
	g := NewGenerator(nil)
	v1, err := g.Verifier()
	require.NoError(t, err)
	v2, err := g.Verifier()
	require.NoError(t, err)

	assert.Equal(t, Challenge(v1), Challenge(v1))
	assert.NotEqual(t, Challenge(v1), Challenge(v2))
}

func TestChallenge_NoUnsafeCharacters(t *testing.T) {
	g := NewGenerator(nil)
	for i := 0; i < 200; i++ {
		pair, err := g.Generate()
		require.NoError(t, err)
		assert.False(t, strings.ContainsAny(pair.Challenge, "+/="), pair.Challenge)
		assert.Len(t, pair.Challenge, 43)
	}
}

// RFC 7636 appendix B
func TestChallenge_RFCVector(t *testing.T) {
	assert.Equal(t,
		"E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM",
		Challenge("dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"),
	)
}

func TestGenerate_ZeroRandomSource(t *testing.T) {
	g := NewGenerator(bytes.NewReader(make([]byte, VerifierBytes)))

	pair, err := g.Generate()
	require.NoError(t, err)

	assert.Equal(t, strings.Repeat("A", 43), pair.Verifier)
	assert.Equal(t, "DwBzhbb51LfusnSGBa_hqYSgo7-j8BTQnip4TOnlzRo", pair.Challenge)
	assert.Equal(t, MethodS256, pair.Method)

	hash := sha256.Sum256([]byte(pair.Verifier))
	assert.Equal(t, Encode(hash[:]), pair.Challenge)
}

func TestEncode_ZeroDigest(t *testing.T) {
	hash := sha256.Sum256(make([]byte, 32))
	assert.Equal(t, "Zmh6rfhivXdsj8GLjp-OIAiXFIVu4jOzkCpZHQ1fKSU", Encode(hash[:]))
}

func TestEncode_ReplacesUnsafeAlphabet(t *testing.T) {
	// 0xfb 0xff encodes to "+/8=" in standard base64
	assert.Equal(t, "-_8", Encode([]byte{0xfb, 0xff}))
	assert.Equal(t, "---_", Encode([]byte{0xfb, 0xef, 0xbf}))
}

func TestChallenge_MatchesOAuth2(t *testing.T) {
	pair, err := NewGenerator(nil).Generate()
	require.NoError(t, err)
	assert.Equal(t, oauth2.S256ChallengeFromVerifier(pair.Verifier), pair.Challenge)
}

func TestState_Format(t *testing.T) {
	state, err := NewGenerator(nil).State()
	require.NoError(t, err)
	assert.Len(t, state, 43)
	assert.Regexp(t, urlSafe, state)
}
