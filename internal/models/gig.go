package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GigStatus string

const (
	GigStatusOpen      GigStatus = "open"
	GigStatusAssigned  GigStatus = "assigned"
	GigStatusCompleted GigStatus = "completed"
)

func (s GigStatus) Valid() bool {
	switch s {
	case GigStatusOpen, GigStatusAssigned, GigStatusCompleted:
		return true
	}
	return false
}

const (
	MaxGigTitleLen       = 100
	MaxGigDescriptionLen = 1000
)

// Gig is a job posting. HiredFreelancerID is set exactly when Status is
// assigned or completed.
type Gig struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"_id"`
	Title       string    `gorm:"type:varchar(100);not null" json:"title"`
	Description string    `gorm:"type:text;not null" json:"description"`
	Budget      float64   `gorm:"not null" json:"budget"`

	OwnerID           uuid.UUID  `gorm:"type:uuid;not null;index" json:"ownerId"`
	Status            GigStatus  `gorm:"type:varchar(20);not null;default:'open';index" json:"status"`
	HiredFreelancerID *uuid.UUID `gorm:"type:uuid" json:"hiredFreelancerId"`

	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Owner           *User `gorm:"foreignKey:OwnerID" json:"-"`
	HiredFreelancer *User `gorm:"foreignKey:HiredFreelancerID" json:"-"`
}

func (g *Gig) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	if g.Status == "" {
		g.Status = GigStatusOpen
	}
	return nil
}

func (g *Gig) IsOwnedBy(userID uuid.UUID) bool {
	return g.OwnerID == userID
}

// AssignmentConsistent checks the hired-freelancer/status pairing.
func (g *Gig) AssignmentConsistent() bool {
	hired := g.HiredFreelancerID != nil
	assigned := g.Status == GigStatusAssigned || g.Status == GigStatusCompleted
	return hired == assigned
}
