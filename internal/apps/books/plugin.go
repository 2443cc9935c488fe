package books

import (
	"github.com/cookshelf/recipe-api/internal/config"
	"github.com/cookshelf/recipe-api/internal/validation"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type BooksPlugin struct {
	validator *validation.Validator
	recipes   RecipeStore
}

func New(validator *validation.Validator, recipes RecipeStore) *BooksPlugin {
	return &BooksPlugin{validator: validator, recipes: recipes}
}

func (p *BooksPlugin) ID() string { return "books" }

func (p *BooksPlugin) Models() []interface{} {
	return []interface{}{
		&Book{},
	}
}

func (p *BooksPlugin) RegisterPublicRoutes(router fiber.Router, db *gorm.DB, cfg *config.Config) {
	handler := NewBookHandler(nil, p.validator)
	router.Get("/books/types", handler.Types)
}

func (p *BooksPlugin) RegisterRoutes(router fiber.Router, db *gorm.DB, cfg *config.Config) {
	svc := NewBookService(db, p.recipes)
	handler := NewBookHandler(svc, p.validator)

	router.Get("/books", handler.List)
	router.Post("/books", handler.Create)
	router.Get("/books/:id", handler.Get)
	router.Put("/books/:id", handler.Update)
	router.Delete("/books/:id", handler.Delete)
}
