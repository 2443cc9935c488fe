package groups

import (
	"fmt"
	"time"

	"github.com/cookshelf/recipe-api/internal/dto"
	"github.com/cookshelf/recipe-api/internal/models"
)

type CreateGroupRequest struct {
	GroupName string `json:"group_name" validate:"required,max=128"`
}

type AddMemberRequest struct {
	UserID uint `json:"user_id" validate:"required"`
}

type AddMemberByEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type MemberResponse struct {
	ID       uint      `json:"id"`
	Username string    `json:"username"`
	Links    dto.Links `json:"_links"`
}

type GroupLinks struct {
	Self  string   `json:"self"`
	Users []string `json:"users"`
}

type GroupResponse struct {
	ID         uint             `json:"id"`
	GroupName  string           `json:"group_name"`
	GroupAdmin string           `json:"group_admin"`
	Users      []MemberResponse `json:"users"`
	CreatedAt  time.Time        `json:"created_at"`
	Links      GroupLinks       `json:"_links"`
}

func GroupURL(id uint) string {
	return fmt.Sprintf("%s/user_groups/%d", dto.APIPrefix, id)
}

func NewGroupResponse(g *models.UserGroup) GroupResponse {
	resp := GroupResponse{
		ID:         g.ID,
		GroupName:  g.GroupName,
		GroupAdmin: g.GroupAdmin.Username,
		Users:      make([]MemberResponse, 0, len(g.Users)),
		CreatedAt:  g.CreatedAt,
		Links: GroupLinks{
			Self:  GroupURL(g.ID),
			Users: make([]string, 0, len(g.Users)),
		},
	}
	for _, u := range g.Users {
		link := dto.UserURL(u.ID)
		resp.Users = append(resp.Users, MemberResponse{
			ID:       u.ID,
			Username: u.Username,
			Links:    dto.Links{Self: link},
		})
		resp.Links.Users = append(resp.Links.Users, link)
	}
	return resp
}
