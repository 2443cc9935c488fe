package handlers

import (
	"errors"
	"log/slog"

	"github.com/cookshelf/recipe-api/internal/dto"
	"github.com/cookshelf/recipe-api/internal/models"
	"github.com/cookshelf/recipe-api/internal/services"
	"github.com/cookshelf/recipe-api/internal/validation"
	"github.com/cookshelf/recipe-api/internal/visibility"
	"github.com/gofiber/fiber/v2"
)

type UserHandler struct {
	userService *services.UserService
	validator   *validation.Validator
}

func NewUserHandler(userService *services.UserService, validator *validation.Validator) *UserHandler {
	return &UserHandler{userService: userService, validator: validator}
}

func (h *UserHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := Decode(c, &req, "username", "email", "password"); err != nil {
		return BadRequest(c, err)
	}
	if err := h.validator.Validate(&req); err != nil {
		return BadRequest(c, err)
	}

	user, err := h.userService.Register(&req)
	if err != nil {
		return h.userError(c, err)
	}

	c.Set(fiber.HeaderContentLocation, dto.UserURL(user.ID))
	return c.Status(fiber.StatusCreated).JSON(dto.NewUserResponse(user, true))
}

// List returns every user. Admin only.
func (h *UserHandler) List(c *fiber.Ctx) error {
	users, err := h.userService.List()
	if err != nil {
		return h.userError(c, err)
	}

	resp := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		resp = append(resp, dto.NewUserResponse(&users[i], true))
	}
	return c.JSON(resp)
}

func (h *UserHandler) Me(c *fiber.Ctx) error {
	user, err := visibility.CurrentUser(c)
	if err != nil {
		return Fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	return c.JSON(dto.NewUserResponse(user, true))
}

func (h *UserHandler) Get(c *fiber.Ctx) error {
	requester, err := visibility.CurrentUser(c)
	if err != nil {
		return Fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	id, ok := ParamID(c, "id")
	if !ok {
		return NotFound(c)
	}

	user, err := h.userService.Get(id)
	if err != nil {
		return h.userError(c, err)
	}
	return c.JSON(dto.NewUserResponse(user, canSeeEmail(requester, user)))
}

func (h *UserHandler) Update(c *fiber.Ctx) error {
	requester, err := visibility.CurrentUser(c)
	if err != nil {
		return Fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	id, ok := ParamID(c, "id")
	if !ok {
		return NotFound(c)
	}

	var req dto.UpdateUserRequest
	if err := Decode(c, &req, "username", "email", "password"); err != nil {
		return BadRequest(c, err)
	}
	if err := h.validator.Validate(&req); err != nil {
		return BadRequest(c, err)
	}

	user, err := h.userService.Update(requester, id, &req)
	if err != nil {
		return h.userError(c, err)
	}
	return c.JSON(dto.NewUserResponse(user, true))
}

// Match finds one user by ?username= or ?email=.
func (h *UserHandler) Match(c *fiber.Ctx) error {
	requester, err := visibility.CurrentUser(c)
	if err != nil {
		return Fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	var user *models.User
	switch {
	case c.Query("username") != "":
		user, err = h.userService.FindByUsername(c.Query("username"))
	case c.Query("email") != "":
		user, err = h.userService.FindByEmail(c.Query("email"))
	default:
		return Fail(c, fiber.StatusBadRequest, "Missing required query parameter: username or email")
	}
	if err != nil {
		return h.userError(c, err)
	}
	return c.JSON(dto.NewUserResponse(user, canSeeEmail(requester, user)))
}

// Exists answers whether ?username= or ?email= is taken. No auth required.
func (h *UserHandler) Exists(c *fiber.Ctx) error {
	username, email := c.Query("username"), c.Query("email")
	if username == "" && email == "" {
		return Fail(c, fiber.StatusBadRequest, "Missing required query parameter: username or email")
	}

	ok, err := h.userService.Exists(username, email)
	if err != nil {
		return h.userError(c, err)
	}
	return c.JSON(ok)
}

func (h *UserHandler) userError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrUsernameTaken), errors.Is(err, services.ErrEmailTaken):
		return Fail(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrUserNotFound):
		return NotFound(c)
	case errors.Is(err, services.ErrForbidden):
		return Fail(c, fiber.StatusForbidden, "Forbidden")
	}
	slog.Error("user request failed", "path", c.Path(), "error", err)
	return Fail(c, fiber.StatusInternalServerError, "Internal server error")
}

func canSeeEmail(requester, user *models.User) bool {
	return requester.ID == user.ID || requester.IsAdmin()
}
