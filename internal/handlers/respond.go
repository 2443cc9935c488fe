package handlers

import (
	"errors"
	"strconv"

	"github.com/cookshelf/recipe-api/internal/dto"
	"github.com/cookshelf/recipe-api/internal/validation"
	"github.com/gofiber/fiber/v2"
)

// Fail writes the standard error body with status.
func Fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(dto.ErrorResponse{Error: true, Message: message})
}

// NotFound is the single response for absent and invisible resources alike.
func NotFound(c *fiber.Ctx) error {
	return Fail(c, fiber.StatusNotFound, "Not Found")
}

// BadRequest reports a validation failure, or a generic message for any
// other error.
func BadRequest(c *fiber.Ctx, err error) error {
	var verr *validation.Error
	if errors.As(err, &verr) {
		return Fail(c, fiber.StatusBadRequest, verr.Message)
	}
	return Fail(c, fiber.StatusBadRequest, "Invalid request body")
}

// ParamID parses a positive integer route parameter.
func ParamID(c *fiber.Ctx, name string) (uint, bool) {
	n, err := strconv.ParseUint(c.Params(name), 10, 32)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}

// Decode checks required keys on the raw JSON body and then parses it into
// out.
func Decode(c *fiber.Ctx, out interface{}, required ...string) error {
	if err := validation.RequiredFields(c.Body(), required...); err != nil {
		return err
	}
	if err := c.BodyParser(out); err != nil {
		return &validation.Error{Message: "Invalid request body"}
	}
	return nil
}
