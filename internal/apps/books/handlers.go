package books

import (
	"errors"
	"log/slog"

	"github.com/cookshelf/recipe-api/internal/handlers"
	"github.com/cookshelf/recipe-api/internal/models"
	"github.com/cookshelf/recipe-api/internal/validation"
	"github.com/cookshelf/recipe-api/internal/visibility"
	"github.com/gofiber/fiber/v2"
)

type BookHandler struct {
	service   *BookService
	validator *validation.Validator
}

func NewBookHandler(service *BookService, validator *validation.Validator) *BookHandler {
	return &BookHandler{service: service, validator: validator}
}

func (h *BookHandler) Types(c *fiber.Ctx) error {
	return c.JSON(BookTypes)
}

func (h *BookHandler) List(c *fiber.Ctx) error {
	user, err := visibility.CurrentUser(c)
	if err != nil {
		return handlers.Fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	list, err := h.service.List(user)
	if err != nil {
		return bookError(c, err)
	}
	recipeIDs, err := h.service.RecipeIDs(user, list...)
	if err != nil {
		return bookError(c, err)
	}

	resp := make([]BookResponse, 0, len(list))
	for i := range list {
		resp = append(resp, NewBookResponse(&list[i], recipeIDs[list[i].ID]))
	}
	return c.JSON(resp)
}

func (h *BookHandler) Get(c *fiber.Ctx) error {
	user, id, ok := requesterAndBook(c)
	if !ok {
		return handlers.NotFound(c)
	}

	book, err := h.service.Get(user, id)
	if err != nil {
		return bookError(c, err)
	}
	return h.render(c, fiber.StatusOK, user, book)
}

func (h *BookHandler) Create(c *fiber.Ctx) error {
	user, err := visibility.CurrentUser(c)
	if err != nil {
		return handlers.Fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	req, kind, err := h.decode(c)
	if err != nil {
		return handlers.BadRequest(c, err)
	}

	book, err := h.service.Create(user, kind, req)
	if err != nil {
		return bookError(c, err)
	}

	c.Set(fiber.HeaderContentLocation, NewBookResponse(book, nil).Links.Self)
	return h.render(c, fiber.StatusCreated, user, book)
}

func (h *BookHandler) Update(c *fiber.Ctx) error {
	user, id, ok := requesterAndBook(c)
	if !ok {
		return handlers.NotFound(c)
	}

	req, kind, err := h.decode(c)
	if err != nil {
		return handlers.BadRequest(c, err)
	}

	book, err := h.service.Update(user, id, kind, req)
	if err != nil {
		return bookError(c, err)
	}
	return h.render(c, fiber.StatusOK, user, book)
}

func (h *BookHandler) Delete(c *fiber.Ctx) error {
	user, id, ok := requesterAndBook(c)
	if !ok {
		return handlers.NotFound(c)
	}

	if err := h.service.Delete(user, id); err != nil {
		return bookError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *BookHandler) decode(c *fiber.Ctx) (*BookRequest, BookType, error) {
	var req BookRequest
	if err := handlers.Decode(c, &req, "title", "type"); err != nil {
		return nil, "", err
	}
	kind, err := ParseBookType(req.Type)
	if err != nil {
		return nil, "", err
	}
	if err := h.validator.Validate(&req); err != nil {
		return nil, "", err
	}
	return &req, kind, nil
}

func (h *BookHandler) render(c *fiber.Ctx, status int, user *models.User, book *Book) error {
	recipeIDs, err := h.service.RecipeIDs(user, *book)
	if err != nil {
		return bookError(c, err)
	}
	return c.Status(status).JSON(NewBookResponse(book, recipeIDs[book.ID]))
}

func requesterAndBook(c *fiber.Ctx) (*models.User, uint, bool) {
	user, err := visibility.CurrentUser(c)
	if err != nil {
		return nil, 0, false
	}
	id, ok := handlers.ParamID(c, "id")
	return user, id, ok
}

func bookError(c *fiber.Ctx, err error) error {
	if errors.Is(err, ErrBookNotFound) {
		return handlers.NotFound(c)
	}
	if validation.IsError(err) {
		return handlers.BadRequest(c, err)
	}
	slog.Error("book request failed", "path", c.Path(), "error", err)
	return handlers.Fail(c, fiber.StatusInternalServerError, "Internal server error")
}
