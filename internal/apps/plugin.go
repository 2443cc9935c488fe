package apps

import (
	"github.com/cookshelf/recipe-api/internal/config"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Plugin is a feature module: its tables plus the routes serving them.
type Plugin interface {
	// ID names the module in logs.
	ID() string

	// Models returns the list of GORM model pointers for AutoMigrate.
	Models() []interface{}

	// RegisterRoutes mounts routes on a group that already requires a bearer
	// token and is prefixed with /api/1.
	RegisterRoutes(router fiber.Router, db *gorm.DB, cfg *config.Config)
}

// PublicPlugin extends Plugin with routes that need no bearer token.
type PublicPlugin interface {
	Plugin

	// RegisterPublicRoutes mounts routes on the bare /api/1 group. These
	// are registered before the authenticated ones.
	RegisterPublicRoutes(router fiber.Router, db *gorm.DB, cfg *config.Config)
}

// CollectModels gathers the models of every plugin, in order.
func CollectModels(plugins []Plugin) []interface{} {
	var all []interface{}
	for _, p := range plugins {
		all = append(all, p.Models()...)
	}
	return all
}
