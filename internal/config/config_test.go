package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"DATABASE_URL", "TOKEN_TTL", "IMAGE_LINK_SECRET", "MAX_CONTENT_LENGTH", "COOKIE_SECURE"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "app.db", cfg.DatabaseURL)
	assert.False(t, cfg.IsPostgres())
	assert.Equal(t, time.Hour, cfg.TokenTTL)
	assert.Equal(t, 100*24*time.Hour, cfg.RefreshTokenTTL)
	assert.True(t, cfg.CookieSecure)
	assert.Equal(t, 8*1000*1000, cfg.MaxContentLength)
	assert.Len(t, cfg.ImageLinkSecret, 64, "a random secret is generated when unset")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/recipes")
	t.Setenv("TOKEN_TTL", "15m")
	t.Setenv("COOKIE_SECURE", "false")
	t.Setenv("MAX_CONTENT_LENGTH", "-5")
	t.Setenv("IMAGE_LINK_SECRET", "fixed")

	cfg := Load()
	assert.True(t, cfg.IsPostgres())
	assert.Equal(t, 15*time.Minute, cfg.TokenTTL)
	assert.False(t, cfg.CookieSecure)
	assert.Equal(t, 8*1000*1000, cfg.MaxContentLength, "non-positive sizes fall back")
	assert.Equal(t, "fixed", cfg.ImageLinkSecret)
}

func TestIsPostgres(t *testing.T) {
	cases := map[string]bool{
		"postgresql://localhost/db":          true,
		"host=localhost user=x dbname=db":    true,
		"file:test?mode=memory&cache=shared": false,
		"/var/lib/recipes.db":                false,
	}
	for url, want := range cases {
		assert.Equal(t, want, (&Config{DatabaseURL: url}).IsPostgres(), url)
	}
}
