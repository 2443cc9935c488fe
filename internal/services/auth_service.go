package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cookshelf/recipe-api/internal/config"
	"github.com/cookshelf/recipe-api/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	// A token with less than this left is replaced rather than reused.
	tokenReuseWindow = 60 * time.Second
	// Revocation backdates expirations instead of clearing the values.
	revokeOffset = 120 * time.Second
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid refresh token")
	ErrTokenExpired       = errors.New("refresh token expired")
	ErrUnauthenticated    = errors.New("invalid or expired token")
)

// dummyHash keeps Authenticate's timing flat when the username is unknown.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)

// TokenPair is a freshly issued bearer token and refresh token.
type TokenPair struct {
	Token                  string
	TokenExpiration        time.Time
	RefreshToken           string
	RefreshTokenExpiration time.Time
}

// AuthService owns every write to the token columns of users.
type AuthService struct {
	db  *gorm.DB
	cfg *config.Config
	now func() time.Time
}

func NewAuthService(db *gorm.DB, cfg *config.Config) *AuthService {
	return &AuthService{db: db, cfg: cfg, now: time.Now}
}

// Authenticate checks a username and password pair.
func (s *AuthService) Authenticate(username, password string) (*models.User, error) {
	var user models.User
	err := s.db.Preload("Roles").Where("username = ?", username).First(&user).Error
	if err != nil {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// Login issues a bearer token, reusing a still-valid one, and always mints a
// new refresh token. Both writes commit together.
func (s *AuthService) Login(user *models.User) (*TokenPair, error) {
	var pair TokenPair
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		pair.Token, pair.TokenExpiration, err = s.issueToken(tx, user, false)
		if err != nil {
			return err
		}
		pair.RefreshToken, pair.RefreshTokenExpiration, err = s.issueRefreshToken(tx, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &pair, nil
}

// IssueToken returns the user's bearer token. An existing token with more
// than a minute left is reused unless forceNew is set.
func (s *AuthService) IssueToken(user *models.User, forceNew bool) (string, time.Time, error) {
	return s.issueToken(s.db, user, forceNew)
}

// IssueRefreshToken always mints a new refresh token, replacing the old one.
func (s *AuthService) IssueRefreshToken(user *models.User) (string, time.Time, error) {
	return s.issueRefreshToken(s.db, user)
}

func (s *AuthService) issueToken(tx *gorm.DB, user *models.User, forceNew bool) (string, time.Time, error) {
	now := s.now()
	if !forceNew && user.Token != nil && user.TokenExpiration != nil &&
		user.TokenExpiration.After(now.Add(tokenReuseWindow)) {
		return *user.Token, *user.TokenExpiration, nil
	}

	token, err := randomHex(32)
	if err != nil {
		return "", time.Time{}, err
	}
	expiresAt := now.Add(s.cfg.TokenTTL)

	err = tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"token":            token,
		"token_expiration": expiresAt,
	}).Error
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to store token: %w", err)
	}

	user.Token = &token
	user.TokenExpiration = &expiresAt
	return token, expiresAt, nil
}

func (s *AuthService) issueRefreshToken(tx *gorm.DB, user *models.User) (string, time.Time, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)
	hash := hashToken(token)
	expiresAt := s.now().Add(s.cfg.RefreshTokenTTL)

	err := tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"refresh_token_hash":       hash,
		"refresh_token_expiration": expiresAt,
	}).Error
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to store refresh token: %w", err)
	}

	user.RefreshTokenHash = &hash
	user.RefreshTokenExpiration = &expiresAt
	return token, expiresAt, nil
}

// ValidateToken resolves a bearer token to its user. Unknown and expired
// tokens both fail with ErrUnauthenticated.
func (s *AuthService) ValidateToken(token string) (*models.User, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	var user models.User
	err := s.db.Preload("Roles").Where("token = ?", token).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}

	if user.TokenExpiration == nil || !user.TokenExpiration.After(s.now()) {
		return nil, ErrUnauthenticated
	}
	return &user, nil
}

// Refresh exchanges a refresh token for a new bearer token and a rotated
// refresh token.
func (s *AuthService) Refresh(refreshToken string) (*models.User, *TokenPair, error) {
	if refreshToken == "" {
		return nil, nil, ErrInvalidToken
	}

	var user models.User
	var pair TokenPair
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("refresh_token_hash = ?", hashToken(refreshToken)).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidToken
			}
			return fmt.Errorf("failed to look up refresh token: %w", err)
		}

		if user.RefreshTokenExpiration == nil || !user.RefreshTokenExpiration.After(s.now()) {
			return ErrTokenExpired
		}

		var err error
		pair.Token, pair.TokenExpiration, err = s.issueToken(tx, &user, true)
		if err != nil {
			return err
		}
		pair.RefreshToken, pair.RefreshTokenExpiration, err = s.issueRefreshToken(tx, &user)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	slog.Info("tokens refreshed", "user_id", user.ID)
	return &user, &pair, nil
}

// Revoke expires both tokens immediately. The values stay in place so
// concurrent requests see a consistent expired state.
func (s *AuthService) Revoke(user *models.User) error {
	past := s.now().Add(-revokeOffset)
	err := s.db.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"token_expiration":         past,
		"refresh_token_expiration": past,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to revoke tokens: %w", err)
	}

	user.TokenExpiration = &past
	user.RefreshTokenExpiration = &past
	return nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
