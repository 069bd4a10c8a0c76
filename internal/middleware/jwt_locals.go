package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/gigflow/gigflow-backend/internal/models"
)

// Locals keys set by the auth middleware.
const (
	LocalsUser   = "user"
	LocalsUserID = "userId"
)

func setUser(c *fiber.Ctx, u *models.User) {
	c.Locals(LocalsUser, u)
	c.Locals(LocalsUserID, u.ID)
}

// CurrentUser returns the user attached by RequireAuth or OptionalAuth.
func CurrentUser(c *fiber.Ctx) (*models.User, bool) {
	u, ok := c.Locals(LocalsUser).(*models.User)
	return u, ok && u != nil
}

func UserID(c *fiber.Ctx) (uuid.UUID, bool) {
	uid, ok := c.Locals(LocalsUserID).(uuid.UUID)
	return uid, ok && uid != uuid.Nil
}
