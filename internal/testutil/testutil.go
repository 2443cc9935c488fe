// Package testutil builds isolated databases and fixtures for tests.
package testutil

import (
	"fmt"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cookshelf/recipe-api/internal/config"
	"github.com/cookshelf/recipe-api/internal/database"
	"github.com/cookshelf/recipe-api/internal/models"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Password is the plaintext password of every user made by CreateUser.
const Password = "correct-horse-battery"

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)
	dbCounter   atomic.Int64
	passHash    []byte
)

func init() {
	var err error
	passHash, err = bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
}

// Config returns a configuration suitable for tests: an in-memory SQLite
// database private to t and a temporary upload folder.
func Config(t *testing.T) *config.Config {
	t.Helper()
	name := unsafeChars.ReplaceAllString(t.Name(), "_")
	return &config.Config{
		DatabaseURL:      fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbCounter.Add(1)),
		TokenTTL:         time.Hour,
		RefreshTokenTTL:  100 * 24 * time.Hour,
		CookieSecure:     true,
		ImageLinkSecret:  "test-image-link-secret",
		ImageLinkTTL:     10 * time.Minute,
		UploadFolder:     t.TempDir(),
		MaxContentLength: 8 * 1000 * 1000,
		AdminUsername:    "admin",
		AdminEmail:       "admin@example.com",
		AdminPassword:    Password,
		Port:             "0",
		CORSOrigins:      "*",
		AppEnv:           "test",
		LogLevel:         "error",
	}
}

// NewDB opens the database described by cfg, migrates the shared schema plus
// extra models, and closes it when t finishes.
func NewDB(t *testing.T, cfg *config.Config, extra ...interface{}) *gorm.DB {
	t.Helper()
	db, err := database.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	require.NoError(t, database.MigrateShared(db))
	require.NoError(t, database.MigrateModels(db, extra))
	return db
}

// CreateUser inserts a user with the "user" role and Password as password.
func CreateUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	role := models.Role{Name: models.RoleUser}
	require.NoError(t, db.Where("name = ?", role.Name).FirstOrCreate(&role).Error)

	user := models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: string(passHash),
		Roles:        []models.Role{role},
	}
	require.NoError(t, db.Omit("Roles.*").Create(&user).Error)
	return &user
}

// CreateAdmin inserts a user holding both the admin and user roles.
func CreateAdmin(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := CreateUser(t, db, username)
	role := models.Role{Name: models.RoleAdmin}
	require.NoError(t, db.Where("name = ?", role.Name).FirstOrCreate(&role).Error)
	require.NoError(t, db.Model(user).Association("Roles").Append(&role))
	return Reload(t, db, user.ID)
}

// JoinGroup creates a group administered by admin and adds members to it,
// bypassing the group service.
func JoinGroup(t *testing.T, db *gorm.DB, name string, admin *models.User, members ...*models.User) *models.UserGroup {
	t.Helper()
	group := models.UserGroup{GroupName: name, GroupAdminID: admin.ID}
	require.NoError(t, db.Create(&group).Error)

	for _, u := range append([]*models.User{admin}, members...) {
		require.NoError(t, db.Model(&models.User{}).Where("id = ?", u.ID).Update("user_group_id", group.ID).Error)
		gid := group.ID
		u.UserGroupID = &gid
	}
	return &group
}

// Reload fetches a fresh copy of a user with roles.
func Reload(t *testing.T, db *gorm.DB, id uint) *models.User {
	t.Helper()
	var user models.User
	require.NoError(t, db.Preload("Roles").First(&user, id).Error)
	return &user
}
