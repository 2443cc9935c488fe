package visibility

import (
	"errors"

	"github.com/cookshelf/recipe-api/internal/models"
	"github.com/gofiber/fiber/v2"
)

const userKey = "current_user"

var ErrNoUser = errors.New("no authenticated user in context")

// SetUser stores the authenticated user for the rest of the request.
func SetUser(c *fiber.Ctx, user *models.User) {
	c.Locals(userKey, user)
}

// CurrentUser extracts the authenticated user placed by the auth middleware.
func CurrentUser(c *fiber.Ctx) (*models.User, error) {
	user, ok := c.Locals(userKey).(*models.User)
	if !ok || user == nil {
		return nil, ErrNoUser
	}
	return user, nil
}
