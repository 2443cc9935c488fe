package middleware

import (
	"github.com/cookshelf/recipe-api/internal/dto"
	"github.com/cookshelf/recipe-api/internal/services"
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const imageLinkKey = "image_link"

// SignedImageLink verifies the ?sig= token of a signed image URL.
func SignedImageLink(links *services.ImageLinkService) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey: jwtware.SigningKey{
			JWTAlg: jwt.SigningMethodHS256.Alg(),
			Key:    links.Secret(),
		},
		TokenLookup: "query:sig",
		ContextKey:  imageLinkKey,
		Claims:      &services.ImageClaims{},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized: invalid or expired image link",
			})
		},
	})
}

// ImageLinkClaims returns the claims verified by SignedImageLink.
func ImageLinkClaims(c *fiber.Ctx) (*services.ImageClaims, bool) {
	token, ok := c.Locals(imageLinkKey).(*jwt.Token)
	if !ok || token == nil {
		return nil, false
	}
	claims, ok := token.Claims.(*services.ImageClaims)
	return claims, ok
}
