package dbtest

import (
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"

	"github.com/gigflow/gigflow-backend/internal/models"
)

// CreateUser inserts a user with fake name and email. The stored password
// is not a valid bcrypt hash.
func CreateUser(t testing.TB, gdb *gorm.DB) *models.User {
	t.Helper()
	u := &models.User{
		Name:     gofakeit.Name(),
		Email:    gofakeit.UUID() + "@" + gofakeit.DomainName(),
		Password: "x",
	}
	if err := gdb.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// CreateGig inserts an open gig owned by owner.
func CreateGig(t testing.TB, gdb *gorm.DB, owner *models.User, budget float64) *models.Gig {
	t.Helper()
	g := &models.Gig{
		Title:       gofakeit.JobTitle(),
		Description: gofakeit.Sentence(12),
		Budget:      budget,
		OwnerID:     owner.ID,
		Status:      models.GigStatusOpen,
	}
	if err := gdb.Create(g).Error; err != nil {
		t.Fatalf("create gig: %v", err)
	}
	return g
}

// CreateBid inserts a pending bid from freelancer on g.
func CreateBid(t testing.TB, gdb *gorm.DB, g *models.Gig, freelancer *models.User, price float64) *models.Bid {
	t.Helper()
	b := &models.Bid{
		GigID:        g.ID,
		FreelancerID: freelancer.ID,
		Message:      gofakeit.Sentence(8),
		Price:        price,
		Status:       models.BidStatusPending,
	}
	if err := gdb.Create(b).Error; err != nil {
		t.Fatalf("create bid: %v", err)
	}
	return b
}

// Reload reads the current row with the given id.
func Reload[T any](t testing.TB, gdb *gorm.DB, id any) *T {
	t.Helper()
	var v T
	if err := gdb.First(&v, "id = ?", id).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	return &v
}
