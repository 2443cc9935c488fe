package dto

import "time"

const APIPrefix = "/api/1"

// TokenResponse is returned by the token endpoints. The refresh token is
// never part of it; it travels in an HttpOnly cookie.
type TokenResponse struct {
	Token           string    `json:"token"`
	TokenExpiration time.Time `json:"token_expiration"`
	TokenLifetime   int64     `json:"token_lifetime"`
}

func NewTokenResponse(token string, expiresAt, now time.Time) TokenResponse {
	lifetime := int64(expiresAt.Sub(now).Seconds())
	if lifetime < 0 {
		lifetime = 0
	}
	return TokenResponse{
		Token:           token,
		TokenExpiration: expiresAt.UTC(),
		TokenLifetime:   lifetime,
	}
}

type ErrorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Healthy   bool   `json:"healthy"`
	Timestamp string `json:"timestamp"`
	DB        string `json:"db"`
}
