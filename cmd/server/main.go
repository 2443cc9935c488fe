package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/cookshelf/recipe-api/internal/config"
	"github.com/cookshelf/recipe-api/internal/database"
	"github.com/cookshelf/recipe-api/internal/logging"
	"github.com/cookshelf/recipe-api/internal/server"
	"github.com/cookshelf/recipe-api/internal/services"
)

var rootCmd = &cobra.Command{
	Use:   "recipe-api",
	Short: "Recipe and cookbook catalogue API",
	// Running without a subcommand serves the API.
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(serveCmd, initDBCmd, populateCmd, dropDBCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Migrate the database and serve the API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, db, err := bootstrap()
		if err != nil {
			return err
		}
		if err := migrate(db); err != nil {
			return err
		}

		// Database log handler (ERROR+ async batch)
		dbLogHandler := logging.NewDBHandler(db, 5*time.Second)
		slog.SetDefault(slog.New(logging.NewMultiHandler(
			logging.Setup(cfg.LogLevel),
			dbLogHandler,
		)))

		// Log cleanup (30-day retention)
		cleanupDone := make(chan struct{})
		logging.StartCleanup(db, cleanupDone)

		// Sentry error tracking
		if cfg.SentryDSN != "" {
			if err := sentry.Init(sentry.ClientOptions{
				Dsn:              cfg.SentryDSN,
				EnableTracing:    true,
				TracesSampleRate: 0.2,
				Environment:      cfg.AppEnv,
			}); err != nil {
				slog.Error("sentry init failed", "error", err)
			}
		}

		srv, err := server.New(cfg, db)
		if err != nil {
			return err
		}

		// Graceful shutdown
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		go func() {
			if err := srv.Listen(); err != nil {
				slog.Error("server failed to start", "error", err)
				os.Exit(1)
			}
		}()

		<-quit
		slog.Info("shutting down server...")

		if err := srv.Shutdown(); err != nil {
			slog.Error("server shutdown error", "error", err)
		}

		close(cleanupDone)
		dbLogHandler.Stop()
		sentry.Flush(2 * time.Second)

		if err := database.Close(db); err != nil {
			slog.Error("database close error", "error", err)
		}

		slog.Info("server stopped")
		return nil
	},
}

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create or update all tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := bootstrap()
		if err != nil {
			return err
		}
		defer database.Close(db)

		if err := migrate(db); err != nil {
			return err
		}
		fmt.Println("Initialized the database.")
		return nil
	},
}

var populateCmd = &cobra.Command{
	Use:   "populate",
	Short: "Seed the roles and the bootstrap admin account",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, db, err := bootstrap()
		if err != nil {
			return err
		}
		defer database.Close(db)

		if cfg.AdminPassword == "" {
			return fmt.Errorf("ADMIN_PASSWORD environment variable is required")
		}
		if err := migrate(db); err != nil {
			return err
		}

		admin, err := services.NewUserService(db).Populate(cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			return err
		}
		fmt.Printf("Populated the database. Admin user: %s\n", admin.Username)
		return nil
	},
}

var dropDBCmd = &cobra.Command{
	Use:   "drop-db",
	Short: "Drop all tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := bootstrap()
		if err != nil {
			return err
		}
		defer database.Close(db)

		if err := database.DropAll(db, server.DropTables()); err != nil {
			return fmt.Errorf("failed to drop tables: %w", err)
		}
		fmt.Println("Dropped the database.")
		return nil
	},
}

// bootstrap loads configuration, installs the stdout logger and connects to
// the database.
func bootstrap() (*config.Config, *gorm.DB, error) {
	cfg := config.Load()
	logging.Setup(cfg.LogLevel)

	if err := database.Connect(cfg); err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}
	return cfg, database.DB, nil
}

func migrate(db *gorm.DB) error {
	if err := database.MigrateShared(db); err != nil {
		return fmt.Errorf("shared migration failed: %w", err)
	}
	if err := database.MigrateModels(db, server.Models()); err != nil {
		return fmt.Errorf("plugin migration failed: %w", err)
	}
	slog.Info("database migrated")
	return nil
}
