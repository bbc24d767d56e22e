package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/dosecore/backend/internal/errs"
)

// writeErr writes an error response with the stable wire code and HTTP
// status from spec section 7. Internal errors never leak their cause.
func writeErr(c *fiber.Ctx, err error) error {
	appErr, ok := errs.As(err)
	if !ok {
		appErr = errs.Wrap(errs.Internal, "internal error", err)
	}
	message := appErr.Message
	if appErr.Code == errs.Internal {
		message = "an internal error occurred"
	}
	return c.Status(appErr.Status).JSON(fiber.Map{
		"error":   string(appErr.Code),
		"message": message,
	})
}
