package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BidStatus string

const (
	BidStatusPending  BidStatus = "pending"
	BidStatusHired    BidStatus = "hired"
	BidStatusRejected BidStatus = "rejected"
)

// Terminal reports whether no further transition is allowed from s.
func (s BidStatus) Terminal() bool {
	return s == BidStatusHired || s == BidStatusRejected
}

// Bid is a freelancer's proposal on a gig. (GigID, FreelancerID) is unique.
type Bid struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"_id"`
	GigID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_bids_gig_freelancer,priority:1" json:"gigId"`
	FreelancerID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_bids_gig_freelancer,priority:2;index" json:"freelancerId"`

	Message string    `gorm:"type:text;not null" json:"message"`
	Price   float64   `gorm:"not null" json:"price"`
	Status  BidStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`

	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Gig        *Gig  `gorm:"foreignKey:GigID" json:"-"`
	Freelancer *User `gorm:"foreignKey:FreelancerID" json:"-"`
}

func (b *Bid) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.Status == "" {
		b.Status = BidStatusPending
	}
	return nil
}
