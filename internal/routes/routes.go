package routes

import (
	"time"

	"github.com/cookshelf/recipe-api/internal/apps"
	"github.com/cookshelf/recipe-api/internal/config"
	"github.com/cookshelf/recipe-api/internal/dto"
	"github.com/cookshelf/recipe-api/internal/handlers"
	"github.com/cookshelf/recipe-api/internal/middleware"
	"github.com/cookshelf/recipe-api/internal/ratelimit"
	"github.com/cookshelf/recipe-api/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"gorm.io/gorm"
)

type Handlers struct {
	Tokens *handlers.TokenHandler
	Health *handlers.HealthHandler
	Users  *handlers.UserHandler
}

func Setup(
	app *fiber.App,
	cfg *config.Config,
	db *gorm.DB,
	authService *services.AuthService,
	loginLimiter *ratelimit.KeyedRateLimiter,
	h Handlers,
	plugins []apps.Plugin,
) {
	api := app.Group(dto.APIPrefix)

	// General API rate limiter: 300 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               300,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	// Public routes. These must be registered before the bearer group below,
	// whose middleware covers every route added after it.
	api.Get("/healthy", h.Health.Check)

	api.Post("/users", h.Users.Register)
	api.Get("/users/exists", h.Users.Exists)

	api.Get("/tokens", middleware.Throttle(loginLimiter), middleware.BasicAuth(authService), h.Tokens.Issue)
	api.Get("/tokens/refresh", h.Tokens.Refresh)

	for _, p := range plugins {
		if pp, ok := p.(apps.PublicPlugin); ok {
			pp.RegisterPublicRoutes(api, db, cfg)
		}
	}

	protected := api.Group("", middleware.BearerAuth(authService))

	protected.Delete("/tokens", h.Tokens.Revoke)

	protected.Get("/users", middleware.AdminRequired(), h.Users.List)
	protected.Get("/users/me", h.Users.Me)
	protected.Get("/users/search/match", h.Users.Match)
	protected.Get("/users/:id", h.Users.Get)
	protected.Put("/users/:id", h.Users.Update)

	for _, p := range plugins {
		p.RegisterRoutes(protected, db, cfg)
	}
}
