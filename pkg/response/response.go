package response

import "github.com/gofiber/fiber/v2"

// Body is the flat JSON object every endpoint returns. "success" is always
// present; other keys sit next to it.
type Body = fiber.Map

// Success returns a 200 success response
func Success(c *fiber.Ctx, fields Body) error {
	return WithStatus(c, fiber.StatusOK, fields)
}

// Accepted returns a 202 success response
func Accepted(c *fiber.Ctx, fields Body) error {
	return WithStatus(c, fiber.StatusAccepted, fields)
}

// WithStatus returns a success response with the given status code
func WithStatus(c *fiber.Ctx, statusCode int, fields Body) error {
	body := Body{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	return c.Status(statusCode).JSON(body)
}

// Error returns an error response with status code
func Error(c *fiber.Ctx, statusCode int, message string, fields Body) error {
	body := Body{"success": false, "error": message}
	for k, v := range fields {
		if k == "success" || k == "error" {
			continue
		}
		body[k] = v
	}
	return c.Status(statusCode).JSON(body)
}

// BadRequest returns a 400 error
func BadRequest(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadRequest, message, nil)
}

// NotFound returns a 404 error
func NotFound(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusNotFound, message, nil)
}

// InternalServerError returns a 500 error
func InternalServerError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, message, nil)
}
