package bid

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gigflow/gigflow-backend/internal/apperr"
	"github.com/gigflow/gigflow-backend/internal/db"
	"github.com/gigflow/gigflow-backend/internal/metrics"
	"github.com/gigflow/gigflow-backend/internal/models"
	"github.com/gigflow/gigflow-backend/internal/realtime"
)

const (
	msgGigNotFound     = "Gig not found"
	msgBidNotFound     = "Bid not found"
	msgGigClosed       = "Cannot bid on a gig that is not open"
	msgOwnGig          = "You cannot bid on your own gig"
	msgAlreadyBid      = "You have already placed a bid on this gig"
	msgViewForbidden   = "Not authorized to view bids for this gig"
	msgHireForbidden   = "Not authorized to hire for this gig"
	msgGigNotOpen      = "Gig is no longer open for hiring"
	msgBidNotAvailable = "This bid is no longer available for hiring"
	msgHireFailed      = "Failed to hire freelancer"
)

const maxMessageLen = 1000

const notifyTimeout = 3 * time.Second

type Service struct {
	DB       *gorm.DB
	Notifier realtime.Notifier
	Metrics  metrics.Recorder
	Log      *slog.Logger
}

func NewService(gdb *gorm.DB, notifier realtime.Notifier, rec metrics.Recorder, log *slog.Logger) *Service {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Service{DB: gdb, Notifier: notifier, Metrics: rec, Log: log}
}

type CreateInput struct {
	GigID   uuid.UUID
	Message string
	Price   float64
}

// Create places a bid by freelancerID. The (gig, freelancer) unique index is
// the final arbiter: a racing duplicate fails with the same Conflict as the
// pre-check.
func (s *Service) Create(ctx context.Context, freelancerID uuid.UUID, in CreateInput) (*models.Bid, error) {
	msg := strings.TrimSpace(in.Message)
	switch {
	case in.GigID == uuid.Nil:
		return nil, apperr.Validation("Please provide a gig")
	case msg == "":
		return nil, apperr.Validation("Please provide a message")
	case len([]rune(msg)) > maxMessageLen:
		return nil, apperr.Validation("Message cannot be more than 1000 characters")
	case in.Price <= 0 || math.IsNaN(in.Price) || math.IsInf(in.Price, 0):
		return nil, apperr.Validation("Price must be greater than 0")
	}

	var bidID uuid.UUID
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The shared lock holds off a concurrent hire until this bid is in,
		// so the hire either rejects it or this check sees the gig closed.
		var g models.Gig
		if err := db.ForShare(tx).First(&g, "id = ?", in.GigID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound(msgGigNotFound)
			}
			return err
		}
		if g.Status != models.GigStatusOpen {
			return apperr.Conflict(msgGigClosed)
		}
		if g.IsOwnedBy(freelancerID) {
			return apperr.Conflict(msgOwnGig)
		}

		var existing int64
		if err := tx.Model(&models.Bid{}).
			Where("gig_id = ? AND freelancer_id = ?", g.ID, freelancerID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return apperr.Conflict(msgAlreadyBid)
		}

		b := models.Bid{
			GigID:        g.ID,
			FreelancerID: freelancerID,
			Message:      msg,
			Price:        in.Price,
			Status:       models.BidStatusPending,
		}
		if err := tx.Create(&b).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Conflict(msgAlreadyBid)
			}
			return err
		}
		bidID = b.ID
		return nil
	})
	if err != nil {
		if _, ok := apperr.As(err); ok {
			return nil, err
		}
		s.Log.Error("create bid failed", "gig_id", in.GigID, "freelancer_id", freelancerID, "err", err)
		return nil, apperr.Internal("Failed to place bid", err)
	}
	s.Metrics.RecordBidCreated()

	var out models.Bid
	if err := s.DB.WithContext(ctx).Preload("Gig").Preload("Freelancer").First(&out, "id = ?", bidID).Error; err != nil {
		return nil, apperr.Internal("Failed to load bid", err)
	}
	return &out, nil
}

// ListForGig returns a gig and all its bids, newest first. Owner only.
func (s *Service) ListForGig(ctx context.Context, actorID, gigID uuid.UUID) (*models.Gig, []models.Bid, error) {
	tx := s.DB.WithContext(ctx)

	var g models.Gig
	if err := tx.First(&g, "id = ?", gigID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperr.NotFound(msgGigNotFound)
		}
		return nil, nil, apperr.Internal("Failed to fetch bids", err)
	}
	if !g.IsOwnedBy(actorID) {
		return nil, nil, apperr.Forbidden(msgViewForbidden)
	}

	var bids []models.Bid
	if err := tx.Where("gig_id = ?", gigID).
		Preload("Freelancer").
		Order("created_at DESC").
		Find(&bids).Error; err != nil {
		return nil, nil, apperr.Internal("Failed to fetch bids", err)
	}
	return &g, bids, nil
}

// Mine lists the bids placed by freelancerID with their gig and gig owner.
func (s *Service) Mine(ctx context.Context, freelancerID uuid.UUID) ([]models.Bid, error) {
	var bids []models.Bid
	if err := s.DB.WithContext(ctx).
		Where("freelancer_id = ?", freelancerID).
		Preload("Gig.Owner").
		Order("created_at DESC").
		Find(&bids).Error; err != nil {
		return nil, apperr.Internal("Failed to fetch bids", err)
	}
	return bids, nil
}
