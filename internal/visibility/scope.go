// Package visibility decides which owned rows a user may see: rows they own,
// plus rows owned by a member of their current group.
package visibility

import (
	"github.com/cookshelf/recipe-api/internal/models"
	"gorm.io/gorm"
)

// For returns a GORM scope restricting table to rows visible to user. The
// table must carry a user_id owner column.
//
// Group sharing is resolved against the owners' current membership at query
// time, so leaving a group hides everything shared through it immediately.
// A user without a group only sees their own rows; NULL group ids never
// match each other.
func For(table string, user *models.User) func(db *gorm.DB) *gorm.DB {
	owner := table + ".user_id"
	return func(db *gorm.DB) *gorm.DB {
		if user == nil {
			return db.Where("1 = 0")
		}
		if user.UserGroupID == nil {
			return db.Where(owner+" = ?", user.ID)
		}
		return db.Where(
			"("+owner+" = ? OR "+owner+" IN (SELECT id FROM users WHERE user_group_id = ?))",
			user.ID, *user.UserGroupID,
		)
	}
}
