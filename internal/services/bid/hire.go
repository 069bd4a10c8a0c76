package bid

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gigflow/gigflow-backend/internal/apperr"
	"github.com/gigflow/gigflow-backend/internal/db"
	"github.com/gigflow/gigflow-backend/internal/metrics"
	"github.com/gigflow/gigflow-backend/internal/models"
	"github.com/gigflow/gigflow-backend/internal/realtime"
)

type HireResult struct {
	Gig *models.Gig
	Bid *models.Bid
}

// HiredPayload is the body of the "hired" event sent to the freelancer.
type HiredPayload struct {
	Message string              `json:"message"`
	Gig     *models.GigResponse `json:"gig"`
	Bid     *models.BidResponse `json:"bid"`
}

// Hire assigns the bid's gig to the bid's freelancer, marks the bid hired
// and rejects every other pending bid on the gig, all in one transaction.
// Any failure leaves gig and bids as they were. On success the freelancer is
// notified; notification errors are logged and never fail the hire.
func (s *Service) Hire(ctx context.Context, actorID, bidID uuid.UUID) (*HireResult, error) {
	var gigID, freelancerID uuid.UUID

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock order is gig, then bids. Every hire on a gig queues on the gig
		// row, so the sibling reject below never waits on another hire's bid.
		var ref models.Bid
		if err := tx.Select("id", "gig_id").First(&ref, "id = ?", bidID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound(msgBidNotFound)
			}
			return err
		}

		var g models.Gig
		if err := db.ForUpdate(tx).First(&g, "id = ?", ref.GigID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound(msgGigNotFound)
			}
			return err
		}

		var b models.Bid
		if err := db.ForUpdate(tx).First(&b, "id = ?", bidID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound(msgBidNotFound)
			}
			return err
		}
		if b.GigID != g.ID {
			return apperr.Conflict(msgBidNotAvailable)
		}

		if !g.IsOwnedBy(actorID) {
			return apperr.Forbidden(msgHireForbidden)
		}
		if g.Status != models.GigStatusOpen {
			return apperr.Conflict(msgGigNotOpen)
		}
		if b.Status != models.BidStatusPending {
			return apperr.Conflict(msgBidNotAvailable)
		}

		res := tx.Model(&models.Gig{}).
			Where("id = ? AND status = ?", g.ID, models.GigStatusOpen).
			Updates(map[string]any{
				"status":              models.GigStatusAssigned,
				"hired_freelancer_id": b.FreelancerID,
			})
		if res.Error != nil {
			return fmt.Errorf("assign gig: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict(msgGigNotOpen)
		}

		res = tx.Model(&models.Bid{}).
			Where("id = ? AND status = ?", b.ID, models.BidStatusPending).
			Update("status", models.BidStatusHired)
		if res.Error != nil {
			return fmt.Errorf("mark bid hired: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict(msgBidNotAvailable)
		}

		if err := tx.Model(&models.Bid{}).
			Where("gig_id = ? AND id <> ? AND status = ?", g.ID, b.ID, models.BidStatusPending).
			Update("status", models.BidStatusRejected).Error; err != nil {
			return fmt.Errorf("reject sibling bids: %w", err)
		}

		gigID, freelancerID = g.ID, b.FreelancerID
		return nil
	})
	if err != nil {
		if _, ok := apperr.As(err); !ok {
			s.Log.Error("hire transaction failed", "bid_id", bidID, "actor_id", actorID, "err", err)
			err = apperr.TransactionFailure(msgHireFailed, err)
		}
		s.Metrics.RecordHire(hireOutcome(err))
		return nil, err
	}
	s.Metrics.RecordHire(metrics.HireSuccess)
	s.Log.Info("freelancer hired", "gig_id", gigID, "bid_id", bidID, "freelancer_id", freelancerID)

	result, err := s.loadHireResult(ctx, gigID, bidID)
	if err != nil {
		s.Log.Error("hire committed but reload failed", "gig_id", gigID, "bid_id", bidID, "err", err)
		return nil, apperr.Internal("Freelancer hired but the result could not be loaded", err)
	}

	s.notifyHired(ctx, freelancerID, result)
	return result, nil
}

func (s *Service) loadHireResult(ctx context.Context, gigID, bidID uuid.UUID) (*HireResult, error) {
	tx := s.DB.WithContext(ctx)

	var g models.Gig
	if err := tx.Preload("HiredFreelancer").First(&g, "id = ?", gigID).Error; err != nil {
		return nil, err
	}
	var b models.Bid
	if err := tx.Preload("Freelancer").Preload("Gig").First(&b, "id = ?", bidID).Error; err != nil {
		return nil, err
	}
	return &HireResult{Gig: &g, Bid: &b}, nil
}

func (s *Service) notifyHired(ctx context.Context, freelancerID uuid.UUID, r *HireResult) {
	if s.Notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	ev := realtime.Event{
		Type: realtime.EventHired,
		Payload: HiredPayload{
			Message: fmt.Sprintf("You have been hired for \"%s\"!", r.Gig.Title),
			Gig:     r.Gig.Response(),
			Bid:     r.Bid.Response(),
		},
	}
	if err := s.Notifier.Notify(ctx, freelancerID, ev); err != nil {
		s.Metrics.RecordNotification(metrics.NotifyFailed)
		s.Log.Warn("hire notification failed", "freelancer_id", freelancerID, "gig_id", r.Gig.ID, "err", err)
		return
	}
	s.Metrics.RecordNotification(metrics.NotifySent)
}

func hireOutcome(err error) string {
	ae, ok := apperr.As(err)
	if !ok {
		return metrics.HireError
	}
	switch ae.Kind {
	case apperr.KindNotFound:
		return metrics.HireNotFound
	case apperr.KindForbidden:
		return metrics.HireForbidden
	case apperr.KindConflict:
		return metrics.HireConflict
	}
	return metrics.HireError
}
