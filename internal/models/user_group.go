package models

import "time"

// UserGroup shares visibility of everything its members own. The admin is
// always a member too.
type UserGroup struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	GroupName    string    `gorm:"size:128;not null" json:"group_name"`
	GroupAdminID uint      `gorm:"not null;uniqueIndex" json:"group_admin_id"`
	GroupAdmin   User      `gorm:"foreignKey:GroupAdminID" json:"-"`
	Users        []User    `gorm:"foreignKey:UserGroupID" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
