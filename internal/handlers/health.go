package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type HealthHandler struct {
	DB          *gorm.DB
	Environment string
	StartedAt   time.Time
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	now := time.Now()
	body := fiber.Map{
		"status":      "healthy",
		"timestamp":   now.UTC().Format(time.RFC3339),
		"uptime":      now.Sub(h.StartedAt).Seconds(),
		"environment": h.Environment,
	}

	if h.DB != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if sqlDB, err := h.DB.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			body["status"] = "unhealthy"
			return c.Status(fiber.StatusServiceUnavailable).JSON(body)
		}
	}
	return c.JSON(body)
}
