package groups

import (
	"errors"
	"log/slog"

	"github.com/cookshelf/recipe-api/internal/handlers"
	"github.com/cookshelf/recipe-api/internal/models"
	"github.com/cookshelf/recipe-api/internal/validation"
	"github.com/cookshelf/recipe-api/internal/visibility"
	"github.com/gofiber/fiber/v2"
)

type GroupHandler struct {
	service   *GroupService
	validator *validation.Validator
}

func NewGroupHandler(service *GroupService, validator *validation.Validator) *GroupHandler {
	return &GroupHandler{service: service, validator: validator}
}

func (h *GroupHandler) Create(c *fiber.Ctx) error {
	user, err := visibility.CurrentUser(c)
	if err != nil {
		return handlers.Fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	var req CreateGroupRequest
	if err := handlers.Decode(c, &req, "group_name"); err != nil {
		return handlers.BadRequest(c, err)
	}
	if err := h.validator.Validate(&req); err != nil {
		return handlers.BadRequest(c, err)
	}

	group, err := h.service.Create(user, req.GroupName)
	if err != nil {
		return groupError(c, err)
	}

	c.Set(fiber.HeaderContentLocation, GroupURL(group.ID))
	return c.Status(fiber.StatusCreated).JSON(NewGroupResponse(group))
}

func (h *GroupHandler) Get(c *fiber.Ctx) error {
	user, id, ok := requesterAndGroup(c)
	if !ok {
		return handlers.NotFound(c)
	}

	group, err := h.service.Get(user, id)
	if err != nil {
		return groupError(c, err)
	}
	return c.JSON(NewGroupResponse(group))
}

func (h *GroupHandler) Delete(c *fiber.Ctx) error {
	user, id, ok := requesterAndGroup(c)
	if !ok {
		return handlers.NotFound(c)
	}

	if err := h.service.Delete(user, id); err != nil {
		return groupError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *GroupHandler) AddMember(c *fiber.Ctx) error {
	user, id, ok := requesterAndGroup(c)
	if !ok {
		return handlers.NotFound(c)
	}

	var req AddMemberRequest
	if err := handlers.Decode(c, &req, "user_id"); err != nil {
		return handlers.BadRequest(c, err)
	}

	group, err := h.service.AddMember(user, id, req.UserID)
	if err != nil {
		return groupError(c, err)
	}
	return c.JSON(NewGroupResponse(group))
}

func (h *GroupHandler) AddMemberByEmail(c *fiber.Ctx) error {
	user, id, ok := requesterAndGroup(c)
	if !ok {
		return handlers.NotFound(c)
	}

	var req AddMemberByEmailRequest
	if err := handlers.Decode(c, &req, "email"); err != nil {
		return handlers.BadRequest(c, err)
	}
	if err := h.validator.Validate(&req); err != nil {
		return handlers.BadRequest(c, err)
	}

	group, err := h.service.AddMemberByEmail(user, id, req.Email)
	if err != nil {
		return groupError(c, err)
	}
	return c.JSON(NewGroupResponse(group))
}

func (h *GroupHandler) RemoveMember(c *fiber.Ctx) error {
	user, id, ok := requesterAndGroup(c)
	if !ok {
		return handlers.NotFound(c)
	}
	targetID, ok := handlers.ParamID(c, "user_id")
	if !ok {
		return handlers.NotFound(c)
	}

	group, err := h.service.RemoveMember(user, id, targetID)
	if err != nil {
		return groupError(c, err)
	}
	return c.JSON(NewGroupResponse(group))
}

func requesterAndGroup(c *fiber.Ctx) (*models.User, uint, bool) {
	user, err := visibility.CurrentUser(c)
	if err != nil {
		return nil, 0, false
	}
	id, ok := handlers.ParamID(c, "id")
	return user, id, ok
}

func groupError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrGroupNotFound),
		errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrNotMember):
		return handlers.NotFound(c)
	case errors.Is(err, ErrNotGroupAdmin):
		return handlers.Fail(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, ErrAlreadyInGroup),
		errors.Is(err, ErrCannotAddSelf),
		errors.Is(err, ErrAdminSelfRemoval):
		return handlers.Fail(c, fiber.StatusBadRequest, err.Error())
	}
	slog.Error("group request failed", "path", c.Path(), "error", err)
	return handlers.Fail(c, fiber.StatusInternalServerError, "Internal server error")
}
