package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"_id"`
	Name  string    `gorm:"type:varchar(50);not null" json:"name"`
	Email string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`

	Password string `gorm:"not null" json:"-"`

	IsPremium        bool       `gorm:"not null;default:false" json:"isPremium"`
	PremiumPlan      *PlanID    `gorm:"type:varchar(20)" json:"premiumPlan"`
	PremiumSince     *time.Time `json:"premiumSince"`
	PremiumExpiresAt *time.Time `json:"premiumExpiresAt"`
	GigBoost         int        `gorm:"not null;default:0" json:"gigBoost"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// HasActivePremium reports whether the subscription flag is set and not expired at now.
func (u *User) HasActivePremium(now time.Time) bool {
	if !u.IsPremium || u.PremiumExpiresAt == nil {
		return false
	}
	return now.Before(*u.PremiumExpiresAt)
}
