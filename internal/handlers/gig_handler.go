package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/gigflow/gigflow-backend/internal/apperr"
	"github.com/gigflow/gigflow-backend/internal/middleware"
	"github.com/gigflow/gigflow-backend/internal/models"
	"github.com/gigflow/gigflow-backend/internal/services/bid"
	"github.com/gigflow/gigflow-backend/internal/services/gig"
)

type GigHandler struct {
	Gigs *gig.Service
	Bids *bid.Service
}

func NewGigHandler(gigs *gig.Service, bids *bid.Service) *GigHandler {
	return &GigHandler{Gigs: gigs, Bids: bids}
}

// List serves GET /api/gigs?search=&page=&limit=.
func (h *GigHandler) List(c *fiber.Ctx) error {
	res, err := h.Gigs.List(c.UserContext(), gig.ListParams{
		Search: c.Query("search"),
		Page:   c.QueryInt("page", 1),
		Limit:  c.QueryInt("limit", gig.DefaultLimit),
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(fiber.Map{
		"gigs":  models.GigResponses(res.Gigs),
		"page":  res.Page,
		"pages": res.Pages,
		"total": res.Total,
	})
}

func (h *GigHandler) Get(c *fiber.Ctx) error {
	id, err := parseID(c, "id", "Gig not found")
	if err != nil {
		return writeError(c, err)
	}
	g, err := h.Gigs.Get(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(g.Response())
}

type createGigReq struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Budget      *float64 `json:"budget"`
}

func (h *GigHandler) Create(c *fiber.Ctx) error {
	uid, _ := middleware.UserID(c)

	var req createGigReq
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, apperr.Validation("Invalid request body"))
	}
	if req.Budget == nil {
		return writeError(c, apperr.Validation("Please provide a budget"))
	}

	g, err := h.Gigs.Create(c.UserContext(), uid, gig.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Budget:      *req.Budget,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(g.Response())
}

// updateGigReq lists the only fields the owner may change.
type updateGigReq struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Budget      *float64 `json:"budget"`
}

func (h *GigHandler) Update(c *fiber.Ctx) error {
	uid, _ := middleware.UserID(c)
	id, err := parseID(c, "id", "Gig not found")
	if err != nil {
		return writeError(c, err)
	}

	var req updateGigReq
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, apperr.Validation("Invalid request body"))
	}

	g, err := h.Gigs.Update(c.UserContext(), uid, id, gig.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		Budget:      req.Budget,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(g.Response())
}

func (h *GigHandler) Delete(c *fiber.Ctx) error {
	uid, _ := middleware.UserID(c)
	id, err := parseID(c, "id", "Gig not found")
	if err != nil {
		return writeError(c, err)
	}
	if err := h.Gigs.Delete(c.UserContext(), uid, id); err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Gig removed"})
}

func (h *GigHandler) Mine(c *fiber.Ctx) error {
	uid, _ := middleware.UserID(c)
	gigs, err := h.Gigs.Mine(c.UserContext(), uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(models.GigResponses(gigs))
}

// MyBids mirrors GET /api/bids/my-bids under /api/gigs.
func (h *GigHandler) MyBids(c *fiber.Ctx) error {
	uid, _ := middleware.UserID(c)
	bids, err := h.Bids.Mine(c.UserContext(), uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(models.BidResponses(bids))
}

// parseID reads a uuid route param. A malformed id cannot name any record,
// so it is reported as notFoundMsg.
func parseID(c *fiber.Ctx, param, notFoundMsg string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(param))
	if err != nil {
		return uuid.Nil, apperr.NotFound(notFoundMsg)
	}
	return id, nil
}
