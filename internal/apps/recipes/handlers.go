package recipes

import (
	"errors"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/cookshelf/recipe-api/internal/apps/books"
	"github.com/cookshelf/recipe-api/internal/handlers"
	"github.com/cookshelf/recipe-api/internal/media"
	"github.com/cookshelf/recipe-api/internal/middleware"
	"github.com/cookshelf/recipe-api/internal/models"
	"github.com/cookshelf/recipe-api/internal/services"
	"github.com/cookshelf/recipe-api/internal/validation"
	"github.com/cookshelf/recipe-api/internal/visibility"
	"github.com/gofiber/fiber/v2"
)

type RecipeHandler struct {
	service   *RecipeService
	links     *services.ImageLinkService
	validator *validation.Validator
}

func NewRecipeHandler(service *RecipeService, links *services.ImageLinkService, validator *validation.Validator) *RecipeHandler {
	return &RecipeHandler{service: service, links: links, validator: validator}
}

func (h *RecipeHandler) List(c *fiber.Ctx) error {
	user, err := visibility.CurrentUser(c)
	if err != nil {
		return handlers.Fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	limit, err := validation.ParseLimit(c.Query("limit"), 0)
	if err != nil {
		return handlers.BadRequest(c, err)
	}

	list, err := h.service.List(user, limit)
	if err != nil {
		return recipeError(c, err)
	}
	return h.renderList(c, list)
}

func (h *RecipeHandler) Search(c *fiber.Ctx) error {
	user, err := visibility.CurrentUser(c)
	if err != nil {
		return handlers.Fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	q := SearchQuery{Text: c.Query("q"), Tag: c.Query("tag")}
	if q.Limit, err = validation.ParseLimit(c.Query("limit"), validation.MaxLimit); err != nil {
		return handlers.BadRequest(c, err)
	}
	if raw := c.Query("rating"); raw != "" {
		if q.MinRating, err = validation.ParseRating(raw); err != nil {
			return handlers.BadRequest(c, err)
		}
	}

	list, err := h.service.Search(user, q)
	if err != nil {
		return recipeError(c, err)
	}
	return h.renderList(c, list)
}

func (h *RecipeHandler) Get(c *fiber.Ctx) error {
	user, id, ok := requesterAndRecipe(c)
	if !ok {
		return handlers.NotFound(c)
	}

	recipe, err := h.service.Get(user, id)
	if err != nil {
		return recipeError(c, err)
	}
	return h.render(c, fiber.StatusOK, recipe)
}

func (h *RecipeHandler) Create(c *fiber.Ctx) error {
	user, err := visibility.CurrentUser(c)
	if err != nil {
		return handlers.Fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	in, err := h.decode(c)
	if err != nil {
		return handlers.BadRequest(c, err)
	}

	recipe, err := h.service.Create(user, in)
	if err != nil {
		return recipeError(c, err)
	}

	c.Set(fiber.HeaderContentLocation, NewRecipeResponse(recipe, 0).Links.Self)
	return h.render(c, fiber.StatusCreated, recipe)
}

func (h *RecipeHandler) Update(c *fiber.Ctx) error {
	user, id, ok := requesterAndRecipe(c)
	if !ok {
		return handlers.NotFound(c)
	}

	in, err := h.decode(c)
	if err != nil {
		return handlers.BadRequest(c, err)
	}

	recipe, err := h.service.Update(user, id, in)
	if err != nil {
		return recipeError(c, err)
	}
	return h.render(c, fiber.StatusOK, recipe)
}

func (h *RecipeHandler) Delete(c *fiber.Ctx) error {
	user, id, ok := requesterAndRecipe(c)
	if !ok {
		return handlers.NotFound(c)
	}

	if err := h.service.Delete(user, id); err != nil {
		return recipeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *RecipeHandler) Rate(c *fiber.Ctx) error {
	user, id, ok := requesterAndRecipe(c)
	if !ok {
		return handlers.NotFound(c)
	}

	args := c.Context().QueryArgs()
	if err := validation.RequiredQuery(func(key string) bool { return args.Has(key) }, "rating"); err != nil {
		return handlers.BadRequest(c, err)
	}
	value, err := validation.ParseRating(c.Query("rating"))
	if err != nil {
		return handlers.BadRequest(c, err)
	}

	recipe, err := h.service.Rate(user, id, value)
	if err != nil {
		return recipeError(c, err)
	}
	return h.render(c, fiber.StatusOK, recipe)
}

func (h *RecipeHandler) DeleteRating(c *fiber.Ctx) error {
	user, id, ok := requesterAndRecipe(c)
	if !ok {
		return handlers.NotFound(c)
	}

	recipe, err := h.service.DeleteRating(user, id)
	if err != nil {
		return recipeError(c, err)
	}
	return h.render(c, fiber.StatusOK, recipe)
}

func (h *RecipeHandler) Ratings(c *fiber.Ctx) error {
	user, id, ok := requesterAndRecipe(c)
	if !ok {
		return handlers.NotFound(c)
	}

	list, err := h.service.Ratings(user, id)
	if err != nil {
		return recipeError(c, err)
	}
	return c.JSON(list)
}

func (h *RecipeHandler) Tags(c *fiber.Ctx) error {
	list, err := h.service.Tags()
	if err != nil {
		return recipeError(c, err)
	}
	return c.JSON(list)
}

func (h *RecipeHandler) PutImage(c *fiber.Ctx) error {
	user, id, ok := requesterAndRecipe(c)
	if !ok {
		return handlers.NotFound(c)
	}

	header, err := c.FormFile("image")
	if err != nil {
		return handlers.Fail(c, fiber.StatusBadRequest, "Missing image file")
	}
	file, err := header.Open()
	if err != nil {
		return handlers.Fail(c, fiber.StatusBadRequest, "Invalid image file")
	}
	defer file.Close()

	recipe, err := h.service.SetImage(user, id, header.Filename, file)
	if err != nil {
		return recipeError(c, err)
	}
	return h.render(c, fiber.StatusOK, recipe)
}

func (h *RecipeHandler) DeleteImage(c *fiber.Ctx) error {
	user, id, ok := requesterAndRecipe(c)
	if !ok {
		return handlers.NotFound(c)
	}

	recipe, err := h.service.DeleteImage(user, id)
	if err != nil {
		return recipeError(c, err)
	}
	return h.render(c, fiber.StatusOK, recipe)
}

// ImageLink hands out a short-lived URL for the recipe's image that works
// without a bearer token.
func (h *RecipeHandler) ImageLink(c *fiber.Ctx) error {
	user, id, ok := requesterAndRecipe(c)
	if !ok {
		return handlers.NotFound(c)
	}

	recipe, err := h.service.Get(user, id)
	if err != nil {
		return recipeError(c, err)
	}
	if recipe.Image == nil {
		return handlers.NotFound(c)
	}

	url, expiresAt, err := h.links.Sign(user.ID, recipe.ID, *recipe.Image)
	if err != nil {
		return recipeError(c, err)
	}
	return c.JSON(ImageLinkResponse{URL: url, ExpiresAt: expiresAt.UTC()})
}

func (h *RecipeHandler) ServeImage(c *fiber.Ctx) error {
	user, id, ok := requesterAndParam(c, "recipe_id")
	if !ok {
		return handlers.NotFound(c)
	}

	file := c.Params("file")
	path, err := h.service.ImageFile(user, id, file)
	if err != nil {
		return recipeError(c, err)
	}
	return sendImage(c, path, file)
}

func (h *RecipeHandler) ServeSignedImage(c *fiber.Ctx) error {
	claims, ok := middleware.ImageLinkClaims(c)
	if !ok {
		return handlers.Fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	userID, ok := claims.UserID()
	if !ok {
		return handlers.Fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	id, ok := handlers.ParamID(c, "recipe_id")
	if !ok {
		return handlers.NotFound(c)
	}

	file := c.Params("file")
	if !claims.Covers(id, file) {
		return recipeError(c, services.ErrLinkMismatch)
	}

	path, err := h.service.SignedImageFile(userID, id, file)
	if err != nil {
		return recipeError(c, err)
	}
	return sendImage(c, path, file)
}

// sendImage serves path with the content type of the original image, which
// thumbnails share.
func sendImage(c *fiber.Ctx, path, file string) error {
	if err := c.SendFile(path); err != nil {
		return err
	}
	ext := filepath.Ext(strings.TrimSuffix(file, media.ThumbnailName("")))
	c.Type(strings.TrimPrefix(ext, "."))
	return nil
}

func (h *RecipeHandler) decode(c *fiber.Ctx) (*RecipeInput, error) {
	var req RecipeRequest
	if err := handlers.Decode(c, &req, "title", "book_id"); err != nil {
		return nil, err
	}
	if err := h.validator.Validate(&req); err != nil {
		return nil, err
	}
	return req.Input()
}

func (h *RecipeHandler) render(c *fiber.Ctx, status int, recipe *Recipe) error {
	avg, err := h.service.Averages(recipe.ID)
	if err != nil {
		return recipeError(c, err)
	}
	return c.Status(status).JSON(NewRecipeResponse(recipe, avg[recipe.ID]))
}

func (h *RecipeHandler) renderList(c *fiber.Ctx, list []Recipe) error {
	ids := make([]uint, 0, len(list))
	for _, r := range list {
		ids = append(ids, r.ID)
	}
	avg, err := h.service.Averages(ids...)
	if err != nil {
		return recipeError(c, err)
	}

	resp := make([]RecipeResponse, 0, len(list))
	for i := range list {
		resp = append(resp, NewRecipeResponse(&list[i], avg[list[i].ID]))
	}
	return c.JSON(resp)
}

func requesterAndRecipe(c *fiber.Ctx) (*models.User, uint, bool) {
	return requesterAndParam(c, "id")
}

func requesterAndParam(c *fiber.Ctx, name string) (*models.User, uint, bool) {
	user, err := visibility.CurrentUser(c)
	if err != nil {
		return nil, 0, false
	}
	id, ok := handlers.ParamID(c, name)
	return user, id, ok
}

func recipeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrRecipeNotFound),
		errors.Is(err, books.ErrBookNotFound),
		errors.Is(err, ErrRatingNotFound),
		errors.Is(err, ErrImageNotFound),
		errors.Is(err, media.ErrNotFound),
		errors.Is(err, services.ErrLinkMismatch):
		return handlers.NotFound(c)
	case errors.Is(err, media.ErrInvalidName),
		errors.Is(err, media.ErrUnsupportedType),
		errors.Is(err, media.ErrEmpty):
		return handlers.Fail(c, fiber.StatusBadRequest, err.Error())
	case validation.IsError(err):
		return handlers.BadRequest(c, err)
	}
	slog.Error("recipe request failed", "path", c.Path(), "error", err)
	return handlers.Fail(c, fiber.StatusInternalServerError, "Internal server error")
}
