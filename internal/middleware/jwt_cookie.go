package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/gigflow/gigflow-backend/internal/apperr"
	"github.com/gigflow/gigflow-backend/internal/models"
	"github.com/gigflow/gigflow-backend/internal/utils"
)

const (
	msgNoToken      = "Not authorized, no token"
	msgNotAuthed    = "Not authorized"
	msgUserNotFound = "User not found"
)

type AuthConfig struct {
	DB         *gorm.DB
	Secret     string
	CookieName string
}

// RequireAuth reads the token cookie, verifies it and loads the current
// user into Locals. Every failure is a 401.
func RequireAuth(cfg AuthConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := c.Cookies(cfg.CookieName)
		if tokenStr == "" {
			return apperr.Unauthorized(msgNoToken)
		}

		uid, err := utils.ParseJWT(cfg.Secret, tokenStr)
		if err != nil {
			return apperr.Unauthorized(msgNotAuthed)
		}

		var u models.User
		if err := cfg.DB.WithContext(c.UserContext()).First(&u, "id = ?", uid).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.Unauthorized(msgUserNotFound)
			}
			return apperr.Unauthorized(msgNotAuthed)
		}

		setUser(c, &u)
		return c.Next()
	}
}

// OptionalAuth attaches the user when a valid token is present and never
// rejects the request.
func OptionalAuth(cfg AuthConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := c.Cookies(cfg.CookieName)
		if tokenStr == "" {
			return c.Next()
		}
		uid, err := utils.ParseJWT(cfg.Secret, tokenStr)
		if err != nil {
			return c.Next()
		}
		var u models.User
		if err := cfg.DB.WithContext(c.UserContext()).First(&u, "id = ?", uid).Error; err == nil {
			setUser(c, &u)
		}
		return c.Next()
	}
}
