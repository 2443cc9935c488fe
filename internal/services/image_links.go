package services

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/cookshelf/recipe-api/internal/config"
	"github.com/cookshelf/recipe-api/internal/dto"
	"github.com/golang-jwt/jwt/v5"
)

var ErrLinkMismatch = errors.New("signed link does not cover this image")

// ImageClaims authorizes reading one recipe's image files without a bearer
// token, so the URL can be used directly in an <img> tag.
type ImageClaims struct {
	RecipeID uint   `json:"rid"`
	File     string `json:"file"`
	jwt.RegisteredClaims
}

// Covers reports whether the claims grant access to file of recipeID. A
// link for an image also covers its thumbnail.
func (c *ImageClaims) Covers(recipeID uint, file string) bool {
	return c.RecipeID == recipeID && (file == c.File || file == c.File+".thumbnail")
}

// UserID returns the user the link was issued to.
func (c *ImageClaims) UserID() (uint, bool) {
	id, err := strconv.ParseUint(c.Subject, 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

type ImageLinkService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewImageLinkService(cfg *config.Config) *ImageLinkService {
	return &ImageLinkService{
		secret: []byte(cfg.ImageLinkSecret),
		ttl:    cfg.ImageLinkTTL,
		now:    time.Now,
	}
}

// Secret is the HMAC key links are signed with.
func (s *ImageLinkService) Secret() []byte { return s.secret }

// Sign builds a signed URL for file of recipeID, issued on behalf of userID.
func (s *ImageLinkService) Sign(userID, recipeID uint, file string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)

	claims := ImageClaims{
		RecipeID: recipeID,
		File:     file,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign image link: %w", err)
	}

	link := fmt.Sprintf("%s/images/signed/%d/%s?sig=%s", dto.APIPrefix, recipeID, url.PathEscape(file), url.QueryEscape(token))
	return link, expiresAt, nil
}
