package postgres

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestConnStringFromEnv(t *testing.T) {
	t.Setenv("DB_USER", "sw360")
	t.Setenv("DB_PASS", "secret")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "5433")
	t.Setenv("DB_NAME", "auth")

	assert.Equal(t, "postgres://sw360:secret@db:5433/auth?sslmode=disable", ConnStringFromEnv())
}
