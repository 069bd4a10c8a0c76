package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/gigflow/gigflow-backend/internal/apperr"
)

// writeError renders err as {"success": false, "message": ...}. Internal
// causes are logged and never sent to the client.
func writeError(c *fiber.Ctx, err error) error {
	status, msg := classify(err)
	if status >= fiber.StatusInternalServerError {
		slog.Error("request failed",
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"err", err,
		)
	}
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": msg,
	})
}

func classify(err error) (int, string) {
	if ae, ok := apperr.As(err); ok {
		return ae.Code, ae.Message
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code, fe.Message
	}
	return fiber.StatusInternalServerError, "Internal Server Error"
}

// ErrorHandler is the fiber.Config ErrorHandler.
func ErrorHandler(c *fiber.Ctx, err error) error {
	return writeError(c, err)
}

// RouteNotFound answers any request no route matched.
func RouteNotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"success": false,
		"message": "Route " + c.OriginalURL() + " not found",
	})
}
