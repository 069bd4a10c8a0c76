package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/gigflow/gigflow-backend/internal/apperr"
	"github.com/gigflow/gigflow-backend/internal/middleware"
	"github.com/gigflow/gigflow-backend/internal/services/premium"
)

type PremiumHandler struct {
	Premium *premium.Service
}

func NewPremiumHandler(svc *premium.Service) *PremiumHandler {
	return &PremiumHandler{Premium: svc}
}

func (h *PremiumHandler) Plans(c *fiber.Ctx) error {
	return c.JSON(h.Premium.Plans())
}

type subscribeReq struct {
	PlanID        string `json:"planId"`
	PaymentMethod string `json:"paymentMethod"`
}

func (h *PremiumHandler) Subscribe(c *fiber.Ctx) error {
	uid, _ := middleware.UserID(c)

	var req subscribeReq
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, apperr.Validation("Invalid request body"))
	}

	u, expiresAt, err := h.Premium.Subscribe(c.UserContext(), uid, req.PlanID, req.PaymentMethod)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":   true,
		"message":   "Premium subscription activated successfully",
		"user":      u,
		"expiresAt": expiresAt,
	})
}

func (h *PremiumHandler) Cancel(c *fiber.Ctx) error {
	uid, _ := middleware.UserID(c)
	u, err := h.Premium.Cancel(c.UserContext(), uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Premium subscription cancelled",
		"user":    u,
	})
}

func (h *PremiumHandler) History(c *fiber.Ctx) error {
	uid, _ := middleware.UserID(c)
	subs, err := h.Premium.History(c.UserContext(), uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(subs)
}
