package groups

import (
	"github.com/cookshelf/recipe-api/internal/config"
	"github.com/cookshelf/recipe-api/internal/validation"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type GroupsPlugin struct {
	validator *validation.Validator
}

func New(validator *validation.Validator) *GroupsPlugin {
	return &GroupsPlugin{validator: validator}
}

func (p *GroupsPlugin) ID() string { return "groups" }

// Models is empty: user_groups belongs to the shared schema because users
// reference it.
func (p *GroupsPlugin) Models() []interface{} { return nil }

func (p *GroupsPlugin) RegisterRoutes(router fiber.Router, db *gorm.DB, cfg *config.Config) {
	svc := NewGroupService(db)
	handler := NewGroupHandler(svc, p.validator)

	router.Post("/user_groups", handler.Create)
	router.Get("/user_groups/:id", handler.Get)
	router.Delete("/user_groups/:id", handler.Delete)
	router.Put("/user_groups/:id/users/email", handler.AddMemberByEmail)
	router.Put("/user_groups/:id/users", handler.AddMember)
	router.Delete("/user_groups/:id/users/:user_id", handler.RemoveMember)
}
