// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gigflow/gigflow-backend/internal/apperr"
)

// Recorder is what services report to.
type Recorder interface {
	RecordHire(result string)
	RecordBidCreated()
	RecordNotification(result string)
}

// Hire results.
const (
	HireSuccess   = "success"
	HireNotFound  = "not_found"
	HireForbidden = "forbidden"
	HireConflict  = "conflict"
	HireError     = "error"
)

// Notification results.
const (
	NotifySent   = "sent"
	NotifyFailed = "failed"
)

type Collector struct {
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	hireAttempts  *prometheus.CounterVec
	bidsCreated   prometheus.Counter
	notifications *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gigflow_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gigflow_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		hireAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gigflow_hire_attempts_total",
			Help: "Hire transactions by outcome.",
		}, []string{"result"}),
		bidsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gigflow_bids_created_total",
			Help: "Bids placed.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gigflow_notifications_total",
			Help: "Notification deliveries by outcome.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.hireAttempts,
		c.bidsCreated,
		c.notifications,
	)
	return c
}

func (c *Collector) RecordHire(result string) {
	c.hireAttempts.WithLabelValues(result).Inc()
}

func (c *Collector) RecordBidCreated() {
	c.bidsCreated.Inc()
}

func (c *Collector) RecordNotification(result string) {
	c.notifications.WithLabelValues(result).Inc()
}

func (c *Collector) RecordHTTP(method, route string, status int, d time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Middleware records every request under its matched route pattern, so
// path parameters do not explode label cardinality.
func (c *Collector) Middleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		start := time.Now()
		err := ctx.Next()

		status := ctx.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			} else if ae, ok := apperr.As(err); ok {
				status = ae.Code
			}
		}
		route := ctx.Route().Path
		if route == "" || route == "/" {
			route = "unmatched"
		}
		c.RecordHTTP(ctx.Method(), route, status, time.Since(start))
		return err
	}
}

// Handler serves the Prometheus exposition for gatherer.
func Handler(gatherer prometheus.Gatherer) fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordHire(string)         {}
func (Nop) RecordBidCreated()         {}
func (Nop) RecordNotification(string) {}
