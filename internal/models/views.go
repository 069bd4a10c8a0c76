package models

import (
	"time"

	"github.com/google/uuid"
)

// UserMini is the public projection of a user embedded in other payloads.
type UserMini struct {
	ID    uuid.UUID `json:"_id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

func (u *User) Mini() *UserMini {
	if u == nil {
		return nil
	}
	return &UserMini{ID: u.ID, Name: u.Name, Email: u.Email}
}

type GigResponse struct {
	ID                uuid.UUID  `json:"_id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	Budget            float64    `json:"budget"`
	OwnerID           uuid.UUID  `json:"ownerId"`
	Status            GigStatus  `json:"status"`
	HiredFreelancerID *uuid.UUID `json:"hiredFreelancerId"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`

	Owner           *UserMini `json:"owner,omitempty"`
	HiredFreelancer *UserMini `json:"hiredFreelancer,omitempty"`
}

func (g *Gig) Response() *GigResponse {
	if g == nil {
		return nil
	}
	return &GigResponse{
		ID:                g.ID,
		Title:             g.Title,
		Description:       g.Description,
		Budget:            g.Budget,
		OwnerID:           g.OwnerID,
		Status:            g.Status,
		HiredFreelancerID: g.HiredFreelancerID,
		CreatedAt:         g.CreatedAt,
		UpdatedAt:         g.UpdatedAt,
		Owner:             g.Owner.Mini(),
		HiredFreelancer:   g.HiredFreelancer.Mini(),
	}
}

func GigResponses(gigs []Gig) []*GigResponse {
	out := make([]*GigResponse, 0, len(gigs))
	for i := range gigs {
		out = append(out, gigs[i].Response())
	}
	return out
}

type BidResponse struct {
	ID           uuid.UUID `json:"_id"`
	GigID        uuid.UUID `json:"gigId"`
	FreelancerID uuid.UUID `json:"freelancerId"`
	Message      string    `json:"message"`
	Price        float64   `json:"price"`
	Status       BidStatus `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`

	Gig        *GigResponse `json:"gig,omitempty"`
	Freelancer *UserMini    `json:"freelancer,omitempty"`
}

func (b *Bid) Response() *BidResponse {
	if b == nil {
		return nil
	}
	return &BidResponse{
		ID:           b.ID,
		GigID:        b.GigID,
		FreelancerID: b.FreelancerID,
		Message:      b.Message,
		Price:        b.Price,
		Status:       b.Status,
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
		Gig:          b.Gig.Response(),
		Freelancer:   b.Freelancer.Mini(),
	}
}

func BidResponses(bids []Bid) []*BidResponse {
	out := make([]*BidResponse, 0, len(bids))
	for i := range bids {
		out = append(out, bids[i].Response())
	}
	return out
}
