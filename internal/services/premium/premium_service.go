package premium

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/gigflow/gigflow-backend/internal/apperr"
	"github.com/gigflow/gigflow-backend/internal/db"
	"github.com/gigflow/gigflow-backend/internal/models"
)

type Service struct {
	DB  *gorm.DB
	Log *slog.Logger
	Now func() time.Time
}

func NewService(gdb *gorm.DB, log *slog.Logger) *Service {
	return &Service{DB: gdb, Log: log, Now: time.Now}
}

func (s *Service) Plans() []models.Plan {
	return models.Plans()
}

type planSnapshot struct {
	Name     string   `json:"name"`
	Price    int      `json:"price"`
	Period   string   `json:"period"`
	Features []string `json:"features"`
	GigBoost int      `json:"gigBoost"`
}

// Subscribe activates planID for userID. The user's premium fields and the
// ledger row are written in one transaction.
func (s *Service) Subscribe(ctx context.Context, userID uuid.UUID, planID, paymentMethod string) (*models.User, time.Time, error) {
	plan, ok := models.FindPlan(strings.TrimSpace(planID))
	if !ok {
		return nil, time.Time{}, apperr.Validation("Invalid plan selected")
	}

	now := s.Now()
	expires := now.AddDate(0, plan.Months, 0)

	meta, err := json.Marshal(planSnapshot{
		Name:     plan.Name,
		Price:    plan.Price,
		Period:   plan.Period,
		Features: plan.Features,
		GigBoost: plan.GigBoost,
	})
	if err != nil {
		return nil, time.Time{}, apperr.Internal("Failed to activate subscription", err)
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u models.User
		if err := db.ForUpdate(tx).First(&u, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("User not found")
			}
			return err
		}

		res := tx.Model(&models.User{}).
			Where("id = ?", userID).
			Updates(map[string]any{
				"is_premium":         true,
				"premium_plan":       plan.ID,
				"premium_since":      now,
				"premium_expires_at": expires,
				"gig_boost":          gorm.Expr("gig_boost + ?", plan.GigBoost),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("user %s not updated", userID)
		}

		ledger := models.PremiumSubscription{
			UserID:        userID,
			PlanID:        plan.ID,
			PaymentMethod: strings.TrimSpace(paymentMethod),
			StartedAt:     now,
			ExpiresAt:     expires,
			Metadata:      datatypes.JSON(meta),
		}
		return tx.Create(&ledger).Error
	})
	if err != nil {
		if _, ok := apperr.As(err); ok {
			return nil, time.Time{}, err
		}
		s.Log.Error("subscribe failed", "user_id", userID, "plan", plan.ID, "err", err)
		return nil, time.Time{}, apperr.Internal("Failed to activate subscription", err)
	}

	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, time.Time{}, err
	}
	s.Log.Info("premium activated", "user_id", userID, "plan", plan.ID, "expires_at", expires)
	return u, expires, nil
}

// Cancel clears the premium fields and stamps every open ledger row.
func (s *Service) Cancel(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	now := s.Now()

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("id = ?", userID).
			Updates(map[string]any{
				"is_premium":         false,
				"premium_plan":       nil,
				"premium_expires_at": nil,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("User not found")
		}

		return tx.Model(&models.PremiumSubscription{}).
			Where("user_id = ? AND cancelled_at IS NULL", userID).
			Update("cancelled_at", now).Error
	})
	if err != nil {
		if _, ok := apperr.As(err); ok {
			return nil, err
		}
		s.Log.Error("cancel premium failed", "user_id", userID, "err", err)
		return nil, apperr.Internal("Failed to cancel subscription", err)
	}
	return s.loadUser(ctx, userID)
}

// History lists a user's subscriptions, newest first.
func (s *Service) History(ctx context.Context, userID uuid.UUID) ([]models.PremiumSubscription, error) {
	var subs []models.PremiumSubscription
	if err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("started_at DESC").
		Find(&subs).Error; err != nil {
		return nil, apperr.Internal("Failed to fetch subscriptions", err)
	}
	return subs, nil
}

func (s *Service) loadUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var u models.User
	if err := s.DB.WithContext(ctx).First(&u, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, apperr.Internal("Failed to load user", err)
	}
	return &u, nil
}
