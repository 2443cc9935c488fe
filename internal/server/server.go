// Package server assembles the fiber application: services, feature
// modules, middleware and routes.
package server

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cookshelf/recipe-api/internal/apps"
	"github.com/cookshelf/recipe-api/internal/apps/books"
	"github.com/cookshelf/recipe-api/internal/apps/groups"
	"github.com/cookshelf/recipe-api/internal/apps/recipes"
	"github.com/cookshelf/recipe-api/internal/config"
	"github.com/cookshelf/recipe-api/internal/handlers"
	"github.com/cookshelf/recipe-api/internal/media"
	"github.com/cookshelf/recipe-api/internal/middleware"
	"github.com/cookshelf/recipe-api/internal/ratelimit"
	"github.com/cookshelf/recipe-api/internal/routes"
	"github.com/cookshelf/recipe-api/internal/services"
	"github.com/cookshelf/recipe-api/internal/validation"
	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"gorm.io/gorm"
)

const (
	// Basic-auth attempts per client IP: a burst of 20, then one every 5s.
	loginRate  = 0.2
	loginBurst = 20
	loginIdle  = 10 * time.Minute
)

type Server struct {
	App *fiber.App

	cfg          *config.Config
	loginLimiter *ratelimit.KeyedRateLimiter
}

// Plugins lists the feature modules in registration order. The recipe
// service is shared with books, which cascades deletes into it.
func Plugins(recipeService *recipes.RecipeService, links *services.ImageLinkService, v *validation.Validator) []apps.Plugin {
	return []apps.Plugin{
		groups.New(v),
		books.New(v, recipeService),
		recipes.New(recipeService, links, v),
	}
}

// Models returns every model owned by a feature module, for migrations.
func Models() []interface{} {
	return apps.CollectModels(Plugins(nil, nil, nil))
}

// DropTables returns the feature-module tables in drop order, including the
// join tables AutoMigrate creates implicitly.
func DropTables() []interface{} {
	return append([]interface{}{recipes.TagJoinTable}, Models()...)
}

// New wires services and routes on a fresh fiber app. The database must
// already be migrated.
func New(cfg *config.Config, db *gorm.DB) (*Server, error) {
	storage, err := media.NewStorage(cfg.UploadFolder, media.DefaultThumbnailSize)
	if err != nil {
		return nil, fmt.Errorf("failed to open image storage: %w", err)
	}

	v := validation.New()
	links := services.NewImageLinkService(cfg)
	authService := services.NewAuthService(db, cfg)
	userService := services.NewUserService(db)
	recipeService := recipes.NewRecipeService(db, storage)
	plugins := Plugins(recipeService, links, v)

	app := fiber.New(fiber.Config{
		BodyLimit:    cfg.MaxContentLength,
		ErrorHandler: customErrorHandler,
	})

	if cfg.SentryDSN != "" {
		app.Use(sentryfiber.New(sentryfiber.Options{
			Repanic:         true,
			WaitForDelivery: false,
		}))
	}

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		return c.Next()
	})

	loginLimiter := ratelimit.New(loginRate, loginBurst, loginIdle)

	routes.Setup(app, cfg, db, authService, loginLimiter, routes.Handlers{
		Tokens: handlers.NewTokenHandler(authService, cfg),
		Health: handlers.NewHealthHandler(db),
		Users:  handlers.NewUserHandler(userService, v),
	}, plugins)

	for _, p := range plugins {
		slog.Debug("plugin registered", "plugin", p.ID())
	}

	return &Server{App: app, cfg: cfg, loginLimiter: loginLimiter}, nil
}

func (s *Server) Listen() error {
	slog.Info("server starting", "port", s.cfg.Port)
	return s.App.Listen(":" + s.cfg.Port)
}

// Shutdown stops accepting requests and releases background workers.
func (s *Server) Shutdown() error {
	s.loginLimiter.Stop()
	return s.App.Shutdown()
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		if hub := sentryfiber.GetHubFromContext(c); hub != nil {
			hub.CaptureException(err)
		} else {
			sentry.CaptureException(err)
		}
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
