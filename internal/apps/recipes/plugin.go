package recipes

import (
	"github.com/cookshelf/recipe-api/internal/config"
	"github.com/cookshelf/recipe-api/internal/middleware"
	"github.com/cookshelf/recipe-api/internal/services"
	"github.com/cookshelf/recipe-api/internal/validation"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// RecipesPlugin serves recipes, ratings, tags and recipe images. Its service
// is built by the caller because the books module shares it.
type RecipesPlugin struct {
	service   *RecipeService
	links     *services.ImageLinkService
	validator *validation.Validator
}

func New(service *RecipeService, links *services.ImageLinkService, validator *validation.Validator) *RecipesPlugin {
	return &RecipesPlugin{service: service, links: links, validator: validator}
}

func (p *RecipesPlugin) ID() string { return "recipes" }

func (p *RecipesPlugin) Models() []interface{} {
	return []interface{}{
		&Tag{},
		&Recipe{},
		&Rating{},
	}
}

func (p *RecipesPlugin) RegisterPublicRoutes(router fiber.Router, db *gorm.DB, cfg *config.Config) {
	handler := NewRecipeHandler(p.service, p.links, p.validator)
	router.Get("/images/signed/:recipe_id/:file", middleware.SignedImageLink(p.links), handler.ServeSignedImage)
}

func (p *RecipesPlugin) RegisterRoutes(router fiber.Router, db *gorm.DB, cfg *config.Config) {
	handler := NewRecipeHandler(p.service, p.links, p.validator)

	router.Get("/recipes", handler.List)
	router.Post("/recipes", handler.Create)
	router.Get("/recipes/search", handler.Search)
	router.Get("/recipes/:id", handler.Get)
	router.Put("/recipes/:id", handler.Update)
	router.Delete("/recipes/:id", handler.Delete)

	router.Put("/recipes/:id/rating", handler.Rate)
	router.Delete("/recipes/:id/rating", handler.DeleteRating)
	router.Get("/recipes/:id/ratings", handler.Ratings)

	router.Put("/recipes/:id/image", handler.PutImage)
	router.Delete("/recipes/:id/image", handler.DeleteImage)
	router.Get("/recipes/:id/image/link", handler.ImageLink)
	router.Get("/images/:recipe_id/:file", handler.ServeImage)

	router.Get("/tags", handler.Tags)
}
