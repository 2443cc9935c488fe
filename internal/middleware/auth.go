package middleware

import (
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"

	"github.com/cookshelf/recipe-api/internal/dto"
	"github.com/cookshelf/recipe-api/internal/services"
	"github.com/cookshelf/recipe-api/internal/visibility"
	"github.com/gofiber/fiber/v2"
)

// BearerAuth resolves "Authorization: Bearer <token>" to a user and stores it
// for visibility.CurrentUser.
func BearerAuth(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := credentials(c, "Bearer")
		if !ok {
			return unauthorized(c, "Bearer", "Unauthorized: missing bearer token")
		}

		user, err := auth.ValidateToken(token)
		if err != nil {
			if !errors.Is(err, services.ErrUnauthenticated) {
				slog.Error("token lookup failed", "error", err, "request_id", requestID(c))
				return fiber.ErrInternalServerError
			}
			return unauthorized(c, "Bearer", "Unauthorized: invalid or expired token")
		}

		visibility.SetUser(c, user)
		return c.Next()
	}
}

// BasicAuth checks HTTP Basic credentials and stores the user.
func BasicAuth(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		encoded, ok := credentials(c, "Basic")
		if !ok {
			return unauthorized(c, "Basic", "Unauthorized: missing credentials")
		}

		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return unauthorized(c, "Basic", "Unauthorized: malformed credentials")
		}
		username, password, ok := strings.Cut(string(raw), ":")
		if !ok {
			return unauthorized(c, "Basic", "Unauthorized: malformed credentials")
		}

		user, err := auth.Authenticate(username, password)
		if err != nil {
			if !errors.Is(err, services.ErrInvalidCredentials) {
				slog.Error("authentication failed", "error", err, "request_id", requestID(c))
				return fiber.ErrInternalServerError
			}
			return unauthorized(c, "Basic", "Unauthorized: invalid username or password")
		}

		visibility.SetUser(c, user)
		return c.Next()
	}
}

func credentials(c *fiber.Ctx, scheme string) (string, bool) {
	header := c.Get(fiber.HeaderAuthorization)
	if len(header) <= len(scheme)+1 || !strings.EqualFold(header[:len(scheme)], scheme) || header[len(scheme)] != ' ' {
		return "", false
	}
	value := strings.TrimSpace(header[len(scheme)+1:])
	return value, value != ""
}

func unauthorized(c *fiber.Ctx, scheme, message string) error {
	c.Set(fiber.HeaderWWWAuthenticate, scheme+` realm="recipes"`)
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
		Error: true, Message: message,
	})
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return ""
}
