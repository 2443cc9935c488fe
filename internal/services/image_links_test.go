package services

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/cookshelf/recipe-api/internal/testutil"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageLinkService_Sign(t *testing.T) {
	cfg := testutil.Config(t)
	svc := NewImageLinkService(cfg)
	file := strings.Repeat("ab", 16) + ".png"

	link, expiresAt, err := svc.Sign(7, 42, file)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(cfg.ImageLinkTTL), expiresAt, time.Second)

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "/api/1/images/signed/42/"+file, u.Path)

	var claims ImageClaims
	_, err = jwt.ParseWithClaims(u.Query().Get("sig"), &claims, func(*jwt.Token) (interface{}, error) {
		return svc.Secret(), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "7", claims.Subject)
	userID, ok := claims.UserID()
	require.True(t, ok)
	assert.Equal(t, uint(7), userID)
	assert.True(t, claims.Covers(42, file))
	assert.True(t, claims.Covers(42, file+".thumbnail"))
	assert.False(t, claims.Covers(43, file))
	assert.False(t, claims.Covers(42, strings.Repeat("cd", 16)+".png"))
}

func TestImageLinkService_Expired(t *testing.T) {
	cfg := testutil.Config(t)
	svc := NewImageLinkService(cfg)
	svc.now = func() time.Time { return time.Now().Add(-time.Hour) }

	link, _, err := svc.Sign(1, 1, strings.Repeat("a", 32)+".jpg")
	require.NoError(t, err)
	u, err := url.Parse(link)
	require.NoError(t, err)

	_, err = jwt.ParseWithClaims(u.Query().Get("sig"), &ImageClaims{}, func(*jwt.Token) (interface{}, error) {
		return svc.Secret(), nil
	})
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestImageClaims_UserID(t *testing.T) {
	for _, subject := range []string{"", "0", "abc", "-3"} {
		claims := ImageClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: subject}}
		_, ok := claims.UserID()
		assert.False(t, ok, subject)
	}
}
