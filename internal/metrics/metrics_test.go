package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewCollector_ReturnsNonNil(t *testing.T) {
	if c := NewCollector(prometheus.NewRegistry()); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

func TestRecordHire_CountsByResult(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.RecordHire(HireSuccess)
	c.RecordHire(HireConflict)
	c.RecordHire(HireConflict)

	if got := testutil.ToFloat64(c.hireAttempts.WithLabelValues(HireSuccess)); got != 1 {
		t.Errorf("success = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.hireAttempts.WithLabelValues(HireConflict)); got != 2 {
		t.Errorf("conflict = %v, want 2", got)
	}
}

func TestRecordBidAndNotification(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.RecordBidCreated()
	c.RecordNotification(NotifySent)
	c.RecordNotification(NotifyFailed)

	if got := testutil.ToFloat64(c.bidsCreated); got != 1 {
		t.Errorf("bids = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.notifications.WithLabelValues(NotifyFailed)); got != 1 {
		t.Errorf("failed notifications = %v, want 1", got)
	}
}

func TestMiddlewareAndHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	app := fiber.New()
	app.Use(c.Middleware())
	app.Get("/api/gigs/:id", func(ctx *fiber.Ctx) error {
		return ctx.SendStatus(fiber.StatusNoContent)
	})
	app.Get("/metrics", Handler(reg))

	resp, err := app.Test(httptest.NewRequest("GET", "/api/gigs/abc", nil))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if got := testutil.ToFloat64(c.httpRequests.WithLabelValues("GET", "/api/gigs/:id", "204")); got != 1 {
		t.Errorf("requests{route=/api/gigs/:id} = %v, want 1", got)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/metrics", nil))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "gigflow_http_requests_total") {
		t.Errorf("exposition missing gigflow_http_requests_total:\n%s", body)
	}
}
