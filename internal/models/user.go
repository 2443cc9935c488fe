package models

import "time"

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User is an account holder. Token fields are written only by the auth
// service; UserGroupID only by the group registry.
type User struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Username     string `gorm:"size:64;not null;uniqueIndex" json:"username"`
	Email        string `gorm:"size:120;not null;uniqueIndex" json:"email"`
	PasswordHash string `gorm:"size:128;not null" json:"-"`

	Token                  *string    `gorm:"size:64;uniqueIndex" json:"-"`
	TokenExpiration        *time.Time `json:"-"`
	RefreshTokenHash       *string    `gorm:"size:64;uniqueIndex" json:"-"`
	RefreshTokenExpiration *time.Time `json:"-"`

	Roles       []Role `gorm:"many2many:user_roles" json:"roles"`
	UserGroupID *uint  `gorm:"index" json:"user_group_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) HasRole(name string) bool {
	for _, r := range u.Roles {
		if r.Name == name {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool { return u.HasRole(RoleAdmin) }

// InGroup reports whether u is a member of group id.
func (u *User) InGroup(id uint) bool {
	return u.UserGroupID != nil && *u.UserGroupID == id
}

func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	return names
}

type Role struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:64;not null;uniqueIndex" json:"name"`
}
