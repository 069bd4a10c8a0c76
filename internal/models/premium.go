package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PlanID string

const (
	PlanBasic  PlanID = "basic"
	PlanPro    PlanID = "pro"
	PlanAgency PlanID = "agency"
)

type Plan struct {
	ID       PlanID   `json:"id"`
	Name     string   `json:"name"`
	Price    int      `json:"price"`
	Period   string   `json:"period"`
	Features []string `json:"features"`

	Months   int `json:"-"`
	GigBoost int `json:"-"`
}

var plans = []Plan{
	{
		ID:     PlanBasic,
		Name:   "Starter",
		Price:  9,
		Period: "month",
		Features: []string{
			"Up to 10 active bids",
			"Basic gig visibility",
			"Email support",
			"Standard profile",
			"5 gig posts/month",
		},
		Months:   1,
		GigBoost: 1,
	},
	{
		ID:     PlanPro,
		Name:   "Pro",
		Price:  29,
		Period: "month",
		Features: []string{
			"Unlimited active bids",
			"10x gig visibility boost",
			"Priority support",
			"Verified badge",
			"Unlimited gig posts",
			"Advanced analytics",
			"Custom portfolio",
			"Direct client access",
		},
		Months:   1,
		GigBoost: 10,
	},
	{
		ID:     PlanAgency,
		Name:   "Agency",
		Price:  99,
		Period: "month",
		Features: []string{
			"Everything in Pro",
			"Team collaboration",
			"Custom branding",
			"API access",
			"White-label solutions",
			"Dedicated account manager",
			"Premium placement",
			"Custom contract templates",
		},
		Months:   1,
		GigBoost: 15,
	},
}

// Plans returns a copy of the plan catalogue.
func Plans() []Plan {
	out := make([]Plan, len(plans))
	copy(out, plans)
	return out
}

func FindPlan(id string) (Plan, bool) {
	for _, p := range plans {
		if string(p.ID) == id {
			return p, true
		}
	}
	return Plan{}, false
}

// PremiumSubscription is one subscribe call. Metadata keeps the plan as sold.
type PremiumSubscription struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"_id"`
	UserID        uuid.UUID      `gorm:"type:uuid;not null;index" json:"userId"`
	PlanID        PlanID         `gorm:"type:varchar(20);not null" json:"planId"`
	PaymentMethod string         `gorm:"type:varchar(50)" json:"paymentMethod"`
	StartedAt     time.Time      `gorm:"not null" json:"startedAt"`
	ExpiresAt     time.Time      `gorm:"not null" json:"expiresAt"`
	CancelledAt   *time.Time     `json:"cancelledAt"`
	Metadata      datatypes.JSON `json:"metadata"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

func (s *PremiumSubscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
