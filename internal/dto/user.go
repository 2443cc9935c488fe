package dto

import (
	"fmt"

	"github.com/cookshelf/recipe-api/internal/models"
)

type RegisterRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Email    string `json:"email" validate:"required,email,max=120"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// UpdateUserRequest replaces all three user fields at once.
type UpdateUserRequest = RegisterRequest

type Links struct {
	Self string `json:"self"`
}

type UserResponse struct {
	ID        uint     `json:"id"`
	Username  string   `json:"username"`
	Email     string   `json:"email,omitempty"`
	Roles     []string `json:"roles"`
	UserGroup *uint    `json:"user_group"`
	Links     Links    `json:"_links"`
}

func UserURL(id uint) string {
	return fmt.Sprintf("%s/users/%d", APIPrefix, id)
}

// NewUserResponse renders u. The email is only included for the user
// themself or an admin.
func NewUserResponse(u *models.User, includeEmail bool) UserResponse {
	resp := UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Roles:     u.RoleNames(),
		UserGroup: u.UserGroupID,
		Links:     Links{Self: UserURL(u.ID)},
	}
	if includeEmail {
		resp.Email = u.Email
	}
	return resp
}
