package gig

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gigflow/gigflow-backend/internal/apperr"
	"github.com/gigflow/gigflow-backend/internal/db"
	"github.com/gigflow/gigflow-backend/internal/models"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100

	// MaxPage keeps (page-1)*limit inside an int32 offset.
	MaxPage = math.MaxInt32 / MaxLimit
)

const (
	msgGigNotFound     = "Gig not found"
	msgUpdateForbidden = "Not authorized to update this gig"
	msgDeleteForbidden = "Not authorized to delete this gig"
	msgUpdateNotOpen   = "Can only update open gigs"
)

type Service struct {
	DB  *gorm.DB
	Log *slog.Logger
}

func NewService(gdb *gorm.DB, log *slog.Logger) *Service {
	return &Service{DB: gdb, Log: log}
}

type ListParams struct {
	Search string
	Page   int
	Limit  int
}

// Normalize clamps Page to [1, MaxPage] and Limit to [1, MaxLimit].
func (p ListParams) Normalize() ListParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	p.Search = strings.TrimSpace(p.Search)
	return p
}

type ListResult struct {
	Gigs  []models.Gig
	Page  int
	Pages int
	Total int64
}

// List returns open gigs, newest first, optionally matching a full-text search.
func (s *Service) List(ctx context.Context, p ListParams) (*ListResult, error) {
	p = p.Normalize()

	base := func() *gorm.DB {
		q := s.DB.WithContext(ctx).Model(&models.Gig{}).Where("status = ?", models.GigStatusOpen)
		return s.applySearch(q, p.Search)
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		s.Log.Error("count gigs failed", "err", err)
		return nil, apperr.Internal("Failed to fetch gigs", err)
	}

	var gigs []models.Gig
	offset := (p.Page - 1) * p.Limit
	if err := base().
		Preload("Owner").
		Order("created_at DESC").
		Offset(offset).
		Limit(p.Limit).
		Find(&gigs).Error; err != nil {
		s.Log.Error("list gigs failed", "err", err)
		return nil, apperr.Internal("Failed to fetch gigs", err)
	}

	return &ListResult{
		Gigs:  gigs,
		Page:  p.Page,
		Pages: int(math.Ceil(float64(total) / float64(p.Limit))),
		Total: total,
	}, nil
}

func (s *Service) applySearch(q *gorm.DB, search string) *gorm.DB {
	if search == "" {
		return q
	}
	if db.IsPostgres(s.DB) {
		return q.Where("to_tsvector('english', title || ' ' || description) @@ plainto_tsquery('english', ?)", search)
	}
	like := "%" + strings.ToLower(search) + "%"
	return q.Where("(LOWER(title) LIKE ? OR LOWER(description) LIKE ?)", like, like)
}

// Get loads a gig with its owner and hired freelancer.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Gig, error) {
	var g models.Gig
	err := s.DB.WithContext(ctx).
		Preload("Owner").
		Preload("HiredFreelancer").
		First(&g, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound(msgGigNotFound)
	}
	if err != nil {
		return nil, apperr.Internal("Failed to fetch gig", err)
	}
	return &g, nil
}

type CreateInput struct {
	Title       string
	Description string
	Budget      float64
}

func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, in CreateInput) (*models.Gig, error) {
	title := strings.TrimSpace(in.Title)
	desc := strings.TrimSpace(in.Description)
	if err := validateFields(&title, &desc, &in.Budget); err != nil {
		return nil, err
	}

	g := models.Gig{
		Title:       title,
		Description: desc,
		Budget:      in.Budget,
		OwnerID:     ownerID,
		Status:      models.GigStatusOpen,
	}
	if err := s.DB.WithContext(ctx).Create(&g).Error; err != nil {
		s.Log.Error("create gig failed", "owner_id", ownerID, "err", err)
		return nil, apperr.Internal("Failed to create gig", err)
	}
	return &g, nil
}

// UpdateInput holds the mutable fields; nil means unchanged. Status, owner
// and hired freelancer are only ever changed by the hire transaction.
type UpdateInput struct {
	Title       *string
	Description *string
	Budget      *float64
}

func (s *Service) Update(ctx context.Context, actorID, id uuid.UUID, in UpdateInput) (*models.Gig, error) {
	var title, desc *string
	if in.Title != nil {
		t := strings.TrimSpace(*in.Title)
		title = &t
	}
	if in.Description != nil {
		d := strings.TrimSpace(*in.Description)
		desc = &d
	}
	if err := validateFields(title, desc, in.Budget); err != nil {
		return nil, err
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var g models.Gig
		if err := db.ForUpdate(tx).First(&g, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound(msgGigNotFound)
			}
			return err
		}
		if !g.IsOwnedBy(actorID) {
			return apperr.Forbidden(msgUpdateForbidden)
		}
		if g.Status != models.GigStatusOpen {
			return apperr.Conflict(msgUpdateNotOpen)
		}

		updates := map[string]any{}
		if title != nil {
			updates["title"] = *title
		}
		if desc != nil {
			updates["description"] = *desc
		}
		if in.Budget != nil {
			updates["budget"] = *in.Budget
		}
		if len(updates) == 0 {
			return nil
		}

		res := tx.Model(&models.Gig{}).
			Where("id = ? AND status = ?", id, models.GigStatusOpen).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict(msgUpdateNotOpen)
		}
		return nil
	})
	if err != nil {
		if _, ok := apperr.As(err); ok {
			return nil, err
		}
		s.Log.Error("update gig failed", "gig_id", id, "err", err)
		return nil, apperr.Internal("Failed to update gig", err)
	}
	return s.Get(ctx, id)
}

// Delete removes a gig and its bids. Only the owner may delete, whatever the status.
func (s *Service) Delete(ctx context.Context, actorID, id uuid.UUID) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var g models.Gig
		if err := db.ForUpdate(tx).First(&g, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound(msgGigNotFound)
			}
			return err
		}
		if !g.IsOwnedBy(actorID) {
			return apperr.Forbidden(msgDeleteForbidden)
		}
		if err := tx.Where("gig_id = ?", id).Delete(&models.Bid{}).Error; err != nil {
			return fmt.Errorf("delete bids: %w", err)
		}
		return tx.Delete(&models.Gig{}, "id = ?", id).Error
	})
	if err != nil {
		if _, ok := apperr.As(err); ok {
			return err
		}
		s.Log.Error("delete gig failed", "gig_id", id, "err", err)
		return apperr.Internal("Failed to delete gig", err)
	}
	return nil
}

// Mine lists every gig posted by ownerID, newest first.
func (s *Service) Mine(ctx context.Context, ownerID uuid.UUID) ([]models.Gig, error) {
	var gigs []models.Gig
	if err := s.DB.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Preload("HiredFreelancer").
		Order("created_at DESC").
		Find(&gigs).Error; err != nil {
		return nil, apperr.Internal("Failed to fetch gigs", err)
	}
	return gigs, nil
}

func validateFields(title, desc *string, budget *float64) error {
	if title != nil {
		switch {
		case *title == "":
			return apperr.Validation("Please provide a title")
		case len([]rune(*title)) > models.MaxGigTitleLen:
			return apperr.Validation("Title cannot be more than 100 characters")
		}
	}
	if desc != nil {
		switch {
		case *desc == "":
			return apperr.Validation("Please provide a description")
		case len([]rune(*desc)) > models.MaxGigDescriptionLen:
			return apperr.Validation("Description cannot be more than 1000 characters")
		}
	}
	if budget != nil {
		switch {
		case *budget <= 0 || math.IsNaN(*budget) || math.IsInf(*budget, 0):
			return apperr.Validation("Budget must be greater than 0")
		case *budget < 1:
			return apperr.Validation("Budget must be at least 1")
		}
	}
	return nil
}
