package handlers

import (
	"errors"
	"log/slog"
	"time"

	"github.com/cookshelf/recipe-api/internal/config"
	"github.com/cookshelf/recipe-api/internal/dto"
	"github.com/cookshelf/recipe-api/internal/services"
	"github.com/cookshelf/recipe-api/internal/visibility"
	"github.com/gofiber/fiber/v2"
)

const (
	RefreshCookieName = "refresh_token"
	refreshCookiePath = dto.APIPrefix + "/tokens"
)

type TokenHandler struct {
	authService *services.AuthService
	cfg         *config.Config
}

func NewTokenHandler(authService *services.AuthService, cfg *config.Config) *TokenHandler {
	return &TokenHandler{authService: authService, cfg: cfg}
}

// Issue answers GET /tokens after BasicAuth.
func (h *TokenHandler) Issue(c *fiber.Ctx) error {
	user, err := visibility.CurrentUser(c)
	if err != nil {
		return Fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	pair, err := h.authService.Login(user)
	if err != nil {
		slog.Error("token issue failed", "user_id", user.ID, "error", err)
		return Fail(c, fiber.StatusInternalServerError, "Internal server error")
	}

	h.setRefreshCookie(c, pair.RefreshToken, pair.RefreshTokenExpiration)
	return c.JSON(dto.NewTokenResponse(pair.Token, pair.TokenExpiration, time.Now()))
}

// Refresh answers GET /tokens/refresh using the refresh cookie.
func (h *TokenHandler) Refresh(c *fiber.Ctx) error {
	raw := c.Cookies(RefreshCookieName)
	if raw == "" {
		return Fail(c, fiber.StatusBadRequest, "Missing refresh token")
	}

	_, pair, err := h.authService.Refresh(raw)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidToken):
			return Fail(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrTokenExpired):
			h.clearRefreshCookie(c)
			return Fail(c, fiber.StatusNotFound, err.Error())
		}
		slog.Error("token refresh failed", "error", err)
		return Fail(c, fiber.StatusInternalServerError, "Internal server error")
	}

	h.setRefreshCookie(c, pair.RefreshToken, pair.RefreshTokenExpiration)
	return c.JSON(dto.NewTokenResponse(pair.Token, pair.TokenExpiration, time.Now()))
}

// Revoke answers DELETE /tokens after BearerAuth.
func (h *TokenHandler) Revoke(c *fiber.Ctx) error {
	user, err := visibility.CurrentUser(c)
	if err != nil {
		return Fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	if err := h.authService.Revoke(user); err != nil {
		slog.Error("token revoke failed", "user_id", user.ID, "error", err)
		return Fail(c, fiber.StatusInternalServerError, "Internal server error")
	}

	h.clearRefreshCookie(c)
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *TokenHandler) setRefreshCookie(c *fiber.Ctx, value string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     RefreshCookieName,
		Value:    value,
		Path:     refreshCookiePath,
		Expires:  expires,
		Secure:   h.cfg.CookieSecure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

func (h *TokenHandler) clearRefreshCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		Expires:  time.Unix(0, 0),
		Secure:   h.cfg.CookieSecure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}
