package database

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cookshelf/recipe-api/internal/config"
	"github.com/cookshelf/recipe-api/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// ErrUnexpectedRowCount signals a write that touched a different number of
// rows than the statement targeted.
var ErrUnexpectedRowCount = errors.New("unexpected number of rows affected")

func Connect(cfg *config.Config) error {
	db, err := Open(cfg)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

// Open connects to PostgreSQL or SQLite depending on cfg.DatabaseURL and
// tunes the pool for the selected driver.
func Open(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if cfg.IsPostgres() {
		dialector = postgres.Open(cfg.DatabaseURL)
	} else {
		dialector = sqlite.Open(cfg.DatabaseURL)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		// users.user_group_id and user_groups.group_admin_id reference each other.
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if cfg.IsPostgres() {
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetMaxIdleConns(25)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	} else {
		// SQLite serializes writers; a single connection avoids SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	}

	slog.Info("database connected", "driver", dialector.Name())
	return db, nil
}

// MigrateShared runs AutoMigrate for the identity and logging models.
func MigrateShared(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Role{},
		&models.User{},
		&models.UserGroup{},
		&models.SystemLog{},
	)
}

// MigrateModels runs AutoMigrate for arbitrary models (used by plugins).
func MigrateModels(db *gorm.DB, modelList []interface{}) error {
	if len(modelList) == 0 {
		return nil
	}
	return db.AutoMigrate(modelList...)
}

// DropAll removes every table known to the shared schema plus the given
// plugin models, in reverse dependency order.
func DropAll(db *gorm.DB, modelList []interface{}) error {
	tables := append([]interface{}{}, modelList...)
	tables = append(tables, "user_roles", &models.SystemLog{}, &models.UserGroup{}, &models.User{}, &models.Role{})
	return db.Migrator().DropTable(tables...)
}

func Ping(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
