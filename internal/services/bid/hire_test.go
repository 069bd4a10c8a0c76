package bid

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gigflow/gigflow-backend/internal/apperr"
	"github.com/gigflow/gigflow-backend/internal/db/dbtest"
	"github.com/gigflow/gigflow-backend/internal/metrics"
	"github.com/gigflow/gigflow-backend/internal/models"
	"github.com/gigflow/gigflow-backend/internal/realtime"
)

type snapshot struct {
	Gig  models.Gig
	Bids []models.Bid
}

func takeSnapshot(t *testing.T, gdb *gorm.DB, gigID uuid.UUID) snapshot {
	t.Helper()
	var s snapshot
	if err := gdb.First(&s.Gig, "id = ?", gigID).Error; err != nil {
		t.Fatal(err)
	}
	if err := gdb.Where("gig_id = ?", gigID).Order("id").Find(&s.Bids).Error; err != nil {
		t.Fatal(err)
	}
	return s
}

func assertInvariants(t *testing.T, gdb *gorm.DB) {
	t.Helper()
	var gigs []models.Gig
	gdb.Find(&gigs)
	for _, g := range gigs {
		if !g.AssignmentConsistent() {
			t.Errorf("gig %s: status %s with hiredFreelancerId %v", g.ID, g.Status, g.HiredFreelancerID)
		}
		var hired int64
		gdb.Model(&models.Bid{}).Where("gig_id = ? AND status = ?", g.ID, models.BidStatusHired).Count(&hired)
		if hired > 1 {
			t.Errorf("gig %s has %d hired bids", g.ID, hired)
		}
	}
}

type hireScene struct {
	owner      *models.User
	gig        *models.Gig
	bids       []*models.Bid
	freelancer []*models.User
}

// newHireScene builds an open gig (budget 1500) with n pending bids from
// distinct freelancers.
func newHireScene(t *testing.T, gdb *gorm.DB, n int) *hireScene {
	t.Helper()
	s := &hireScene{owner: dbtest.CreateUser(t, gdb)}
	s.gig = dbtest.CreateGig(t, gdb, s.owner, 1500)
	for i := 0; i < n; i++ {
		fl := dbtest.CreateUser(t, gdb)
		s.freelancer = append(s.freelancer, fl)
		s.bids = append(s.bids, dbtest.CreateBid(t, gdb, s.gig, fl, float64(1000+100*i)))
	}
	return s
}

func TestHire_ThreeBidsHireSecond(t *testing.T) {
	f := newFixture(t)
	s := newHireScene(t, f.db, 3)
	b1, b2, b3 := s.bids[0], s.bids[1], s.bids[2]
	f2 := s.freelancer[1]

	res, err := f.svc.Hire(context.Background(), s.owner.ID, b2.ID)
	if err != nil {
		t.Fatalf("Hire: %v", err)
	}

	g := dbtest.Reload[models.Gig](t, f.db, s.gig.ID)
	if g.Status != models.GigStatusAssigned {
		t.Errorf("gig status = %s, want assigned", g.Status)
	}
	if g.HiredFreelancerID == nil || *g.HiredFreelancerID != f2.ID {
		t.Errorf("hiredFreelancerId = %v, want %s", g.HiredFreelancerID, f2.ID)
	}
	wantStatus := map[uuid.UUID]models.BidStatus{
		b1.ID: models.BidStatusRejected,
		b2.ID: models.BidStatusHired,
		b3.ID: models.BidStatusRejected,
	}
	for id, want := range wantStatus {
		if got := dbtest.Reload[models.Bid](t, f.db, id).Status; got != want {
			t.Errorf("bid %s status = %s, want %s", id, got, want)
		}
	}

	if res.Gig.HiredFreelancer == nil || res.Gig.HiredFreelancer.ID != f2.ID {
		t.Error("result gig missing hired freelancer")
	}
	if res.Bid.Status != models.BidStatusHired || res.Bid.Freelancer == nil {
		t.Errorf("result bid = %+v", res.Bid)
	}

	sent := f.notifier.events()
	if len(sent) != 1 {
		t.Fatalf("notifications = %d, want 1", len(sent))
	}
	if sent[0].userID != f2.ID || sent[0].event.Type != realtime.EventHired {
		t.Errorf("notification to %s type %s", sent[0].userID, sent[0].event.Type)
	}
	payload, ok := sent[0].event.Payload.(HiredPayload)
	if !ok {
		t.Fatalf("payload type %T", sent[0].event.Payload)
	}
	if want := `You have been hired for "` + s.gig.Title + `"!`; payload.Message != want {
		t.Errorf("message = %q, want %q", payload.Message, want)
	}

	if f.rec.hires[metrics.HireSuccess] != 1 || f.rec.notifications[metrics.NotifySent] != 1 {
		t.Errorf("metrics hires=%v notifications=%v", f.rec.hires, f.rec.notifications)
	}
	assertInvariants(t, f.db)
}

func TestHire_LeavesAlreadyRejectedBidsAlone(t *testing.T) {
	f := newFixture(t)
	s := newHireScene(t, f.db, 3)
	f.db.Model(s.bids[2]).Update("status", models.BidStatusRejected)
	before := dbtest.Reload[models.Bid](t, f.db, s.bids[2].ID)

	if _, err := f.svc.Hire(context.Background(), s.owner.ID, s.bids[0].ID); err != nil {
		t.Fatal(err)
	}

	after := dbtest.Reload[models.Bid](t, f.db, s.bids[2].ID)
	if !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Error("already rejected bid was rewritten")
	}
}

func TestHire_FailuresChangeNothing(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, f *fixture, s *hireScene) (actor, bid uuid.UUID)
		kind  apperr.Kind
		msg   string
	}{
		{
			name: "non-owner",
			setup: func(t *testing.T, f *fixture, s *hireScene) (uuid.UUID, uuid.UUID) {
				return dbtest.CreateUser(t, f.db).ID, s.bids[0].ID
			},
			kind: apperr.KindForbidden,
			msg:  "Not authorized to hire for this gig",
		},
		{
			name: "bid freelancer is not the owner either",
			setup: func(t *testing.T, f *fixture, s *hireScene) (uuid.UUID, uuid.UUID) {
				return s.freelancer[0].ID, s.bids[0].ID
			},
			kind: apperr.KindForbidden,
			msg:  "Not authorized to hire for this gig",
		},
		{
			name: "unknown bid",
			setup: func(t *testing.T, f *fixture, s *hireScene) (uuid.UUID, uuid.UUID) {
				return s.owner.ID, uuid.New()
			},
			kind: apperr.KindNotFound,
			msg:  "Bid not found",
		},
		{
			name: "bid already rejected",
			setup: func(t *testing.T, f *fixture, s *hireScene) (uuid.UUID, uuid.UUID) {
				f.db.Model(s.bids[0]).Update("status", models.BidStatusRejected)
				return s.owner.ID, s.bids[0].ID
			},
			kind: apperr.KindConflict,
			msg:  "This bid is no longer available for hiring",
		},
		{
			name: "gig completed",
			setup: func(t *testing.T, f *fixture, s *hireScene) (uuid.UUID, uuid.UUID) {
				f.db.Model(s.gig).Updates(map[string]any{"status": models.GigStatusCompleted, "hired_freelancer_id": s.freelancer[2].ID})
				return s.owner.ID, s.bids[0].ID
			},
			kind: apperr.KindConflict,
			msg:  "Gig is no longer open for hiring",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			s := newHireScene(t, f.db, 3)
			actor, bidID := tt.setup(t, f, s)
			before := takeSnapshot(t, f.db, s.gig.ID)

			_, err := f.svc.Hire(context.Background(), actor, bidID)
			requireKind(t, err, tt.kind, tt.msg)

			after := takeSnapshot(t, f.db, s.gig.ID)
			if !reflect.DeepEqual(before, after) {
				t.Errorf("state changed:\nbefore %+v\nafter  %+v", before, after)
			}
			if n := len(f.notifier.events()); n != 0 {
				t.Errorf("notifications sent on failure: %d", n)
			}
		})
	}
}

func TestHire_GigMissing(t *testing.T) {
	f := newFixture(t)
	s := newHireScene(t, f.db, 1)
	f.db.Delete(&models.Gig{}, "id = ?", s.gig.ID)

	_, err := f.svc.Hire(context.Background(), s.owner.ID, s.bids[0].ID)
	requireKind(t, err, apperr.KindNotFound, "Gig not found")
	if got := dbtest.Reload[models.Bid](t, f.db, s.bids[0].ID).Status; got != models.BidStatusPending {
		t.Errorf("bid status = %s, want pending", got)
	}
}

func TestHire_SecondHireOnSameGigConflicts(t *testing.T) {
	f := newFixture(t)
	s := newHireScene(t, f.db, 3)
	ctx := context.Background()

	if _, err := f.svc.Hire(ctx, s.owner.ID, s.bids[1].ID); err != nil {
		t.Fatal(err)
	}
	before := takeSnapshot(t, f.db, s.gig.ID)

	_, err := f.svc.Hire(ctx, s.owner.ID, s.bids[0].ID)
	requireKind(t, err, apperr.KindConflict, "Gig is no longer open for hiring")

	if after := takeSnapshot(t, f.db, s.gig.ID); !reflect.DeepEqual(before, after) {
		t.Error("second hire changed state")
	}
	if f.rec.hires[metrics.HireConflict] != 1 {
		t.Errorf("conflicts recorded = %d", f.rec.hires[metrics.HireConflict])
	}
	assertInvariants(t, f.db)
}

func TestHire_ConcurrentAttemptsSingleWinner(t *testing.T) {
	f := newFixture(t)
	s := newHireScene(t, f.db, 4)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Hire(context.Background(), s.owner.ID, s.bids[i].ID)
		}(i)
	}
	wg.Wait()

	var wins, conflicts int
	winner := -1
	for i, err := range errs {
		switch {
		case err == nil:
			wins++
			winner = i
		case apperr.IsKind(err, apperr.KindConflict):
			conflicts++
		default:
			t.Errorf("attempt %d: unexpected error %v", i, err)
		}
	}
	if wins != 1 || conflicts != 1 {
		t.Fatalf("wins=%d conflicts=%d, want 1/1", wins, conflicts)
	}

	g := dbtest.Reload[models.Gig](t, f.db, s.gig.ID)
	if g.Status != models.GigStatusAssigned || *g.HiredFreelancerID != s.freelancer[winner].ID {
		t.Errorf("gig = %s hired %v, want assigned to %s", g.Status, g.HiredFreelancerID, s.freelancer[winner].ID)
	}
	for i, b := range s.bids {
		want := models.BidStatusRejected
		if i == winner {
			want = models.BidStatusHired
		}
		if got := dbtest.Reload[models.Bid](t, f.db, b.ID).Status; got != want {
			t.Errorf("bid %d status = %s, want %s", i, got, want)
		}
	}
	assertInvariants(t, f.db)
}

func TestHire_NotificationFailureDoesNotFailHire(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("redis down")
	s := newHireScene(t, f.db, 2)

	if _, err := f.svc.Hire(context.Background(), s.owner.ID, s.bids[0].ID); err != nil {
		t.Fatalf("Hire: %v", err)
	}
	if got := dbtest.Reload[models.Gig](t, f.db, s.gig.ID).Status; got != models.GigStatusAssigned {
		t.Errorf("gig status = %s", got)
	}
	if f.rec.notifications[metrics.NotifyFailed] != 1 {
		t.Errorf("failed notifications = %d", f.rec.notifications[metrics.NotifyFailed])
	}
}

func TestHire_NilNotifier(t *testing.T) {
	f := newFixture(t)
	f.svc.Notifier = nil
	s := newHireScene(t, f.db, 1)

	if _, err := f.svc.Hire(context.Background(), s.owner.ID, s.bids[0].ID); err != nil {
		t.Fatalf("Hire: %v", err)
	}
}

func TestHire_StorageErrorRollsBack(t *testing.T) {
	f := newFixture(t)
	s := newHireScene(t, f.db, 3)
	before := takeSnapshot(t, f.db, s.gig.ID)

	diskFull := errors.New("disk full")
	err := f.db.Callback().Update().Before("gorm:update").Register("test:fail_bid_update", func(tx *gorm.DB) {
		if tx.Statement.Schema != nil && tx.Statement.Schema.Table == "bids" {
			_ = tx.AddError(diskFull)
		}
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.svc.Hire(context.Background(), s.owner.ID, s.bids[0].ID)
	requireKind(t, err, apperr.KindTransaction, "Failed to hire freelancer")
	if !errors.Is(err, diskFull) {
		t.Errorf("cause not preserved: %v", err)
	}

	// the gig update ran before the failing bid update and must be rolled back
	if after := takeSnapshot(t, f.db, s.gig.ID); !reflect.DeepEqual(before, after) {
		t.Errorf("partial hire visible:\nbefore %+v\nafter  %+v", before, after)
	}
	if f.rec.hires[metrics.HireError] != 1 {
		t.Errorf("error hires = %d", f.rec.hires[metrics.HireError])
	}
	if n := len(f.notifier.events()); n != 0 {
		t.Errorf("notified after failed hire: %d", n)
	}
}
