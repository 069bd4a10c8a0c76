package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/gigflow/gigflow-backend/internal/apperr"
	"github.com/gigflow/gigflow-backend/internal/middleware"
	"github.com/gigflow/gigflow-backend/internal/models"
	"github.com/gigflow/gigflow-backend/internal/services/bid"
)

type BidHandler struct {
	Bids *bid.Service
}

func NewBidHandler(bids *bid.Service) *BidHandler {
	return &BidHandler{Bids: bids}
}

type createBidReq struct {
	GigID   string  `json:"gigId"`
	Message string  `json:"message"`
	Price   float64 `json:"price"`
}

func (h *BidHandler) Create(c *fiber.Ctx) error {
	uid, _ := middleware.UserID(c)

	var req createBidReq
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, apperr.Validation("Invalid request body"))
	}
	gigID, err := uuid.Parse(req.GigID)
	if err != nil {
		return writeError(c, apperr.NotFound("Gig not found"))
	}

	b, err := h.Bids.Create(c.UserContext(), uid, bid.CreateInput{
		GigID:   gigID,
		Message: req.Message,
		Price:   req.Price,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(b.Response())
}

func (h *BidHandler) ListForGig(c *fiber.Ctx) error {
	uid, _ := middleware.UserID(c)
	gigID, err := parseID(c, "gigId", "Gig not found")
	if err != nil {
		return writeError(c, err)
	}

	g, bids, err := h.Bids.ListForGig(c.UserContext(), uid, gigID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"gig":  g.Response(),
		"bids": models.BidResponses(bids),
	})
}

func (h *BidHandler) Hire(c *fiber.Ctx) error {
	uid, _ := middleware.UserID(c)
	bidID, err := parseID(c, "bidId", "Bid not found")
	if err != nil {
		return writeError(c, err)
	}

	res, err := h.Bids.Hire(c.UserContext(), uid, bidID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"message":  "Freelancer hired successfully",
		"gig":      res.Gig.Response(),
		"hiredBid": res.Bid.Response(),
	})
}

func (h *BidHandler) Mine(c *fiber.Ctx) error {
	uid, _ := middleware.UserID(c)
	bids, err := h.Bids.Mine(c.UserContext(), uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(models.BidResponses(bids))
}
