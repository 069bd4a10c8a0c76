// Package server assembles the Fiber application: middleware, handlers and routes.
package server

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/gigflow/gigflow-backend/internal/config"
	"github.com/gigflow/gigflow-backend/internal/handlers"
	"github.com/gigflow/gigflow-backend/internal/metrics"
	"github.com/gigflow/gigflow-backend/internal/middleware"
	"github.com/gigflow/gigflow-backend/internal/realtime"
	"github.com/gigflow/gigflow-backend/internal/services/bid"
	"github.com/gigflow/gigflow-backend/internal/services/gig"
	"github.com/gigflow/gigflow-backend/internal/services/premium"
)

type Deps struct {
	Config *config.Config
	DB     *gorm.DB
	Log    *slog.Logger

	// Hub holds this instance's websocket clients. Notifier is what the hire
	// path publishes to; it is the Hub itself unless Redis fans out.
	Hub      *realtime.Hub
	Notifier realtime.Notifier

	Metrics  *metrics.Collector
	Gatherer prometheus.Gatherer

	// AccessLog receives Fiber's request log; nil disables it.
	AccessLog io.Writer
}

type Server struct {
	App      *fiber.App
	limiters []*middleware.RateLimiter
}

func New(d Deps) *Server {
	cfg := d.Config
	log := d.Log
	if log == nil {
		log = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	if d.Hub == nil {
		d.Hub = realtime.NewHub(log)
	}
	if d.Notifier == nil {
		d.Notifier = d.Hub
	}
	var rec metrics.Recorder = metrics.Nop{}
	if d.Metrics != nil {
		rec = d.Metrics
	}

	app := fiber.New(fiber.Config{
		AppName:      "gigflow",
		ErrorHandler: handlers.ErrorHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	})

	app.Use(recover.New())
	if d.AccessLog != nil {
		app.Use(fiberlogger.New(fiberlogger.Config{Output: d.AccessLog}))
	}
	if d.Metrics != nil {
		app.Use(d.Metrics.Middleware())
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With",
		ExposeHeaders:    "Set-Cookie",
		AllowCredentials: true,
	}))

	gigSvc := gig.NewService(d.DB, log)
	bidSvc := bid.NewService(d.DB, d.Notifier, rec, log)
	premiumSvc := premium.NewService(d.DB, log)

	authH := &handlers.AuthHandler{
		DB:         d.DB,
		JWTSecret:  cfg.JWTSecret,
		Expires:    cfg.JWTExpires,
		CookieName: cfg.CookieName,
		Secure:     cfg.IsProduction(),
	}
	gigH := handlers.NewGigHandler(gigSvc, bidSvc)
	bidH := handlers.NewBidHandler(bidSvc)
	premiumH := handlers.NewPremiumHandler(premiumSvc)
	wsH := handlers.NewWSHandler(d.Hub)
	healthH := &handlers.HealthHandler{DB: d.DB, Environment: cfg.AppEnv, StartedAt: time.Now()}

	authCfg := middleware.AuthConfig{DB: d.DB, Secret: cfg.JWTSecret, CookieName: cfg.CookieName}
	requireAuth := middleware.RequireAuth(authCfg)
	optionalAuth := middleware.OptionalAuth(authCfg)

	authLimit := middleware.NewRateLimiter("auth", middleware.PerMinute(cfg.RateLimitAuthPerMin))
	bidLimit := middleware.NewRateLimiter("bids", middleware.PerMinute(cfg.RateLimitBidsPerMin))
	s := &Server{App: app, limiters: []*middleware.RateLimiter{authLimit, bidLimit}}

	if d.Gatherer != nil {
		app.Get("/metrics", metrics.Handler(d.Gatherer))
	}

	api := app.Group("/api")
	api.Get("/health", healthH.Health)

	auth := api.Group("/auth")
	auth.Post("/register", authLimit.Handler(middleware.ByIP), authH.Register)
	auth.Post("/login", authLimit.Handler(middleware.ByIP), authH.Login)
	auth.Post("/logout", authH.Logout)
	auth.Get("/me", requireAuth, authH.Me)
	if cfg.GoogleEnabled() {
		googleH := &handlers.GoogleOAuthHandler{
			Auth:            authH,
			GoogleClientID:  cfg.GoogleClientID,
			GoogleSecret:    cfg.GoogleSecret,
			GoogleRedirect:  cfg.GoogleRedirect,
			FrontendBaseURL: cfg.FrontendBaseURL,
		}
		auth.Get("/google/start", googleH.GoogleStart)
		auth.Get("/google/callback", googleH.GoogleCallback)
	}

	gigs := api.Group("/gigs")
	gigs.Get("/", optionalAuth, gigH.List)
	gigs.Get("/my-gigs", requireAuth, gigH.Mine)
	gigs.Get("/my-bids", requireAuth, gigH.MyBids)
	gigs.Get("/:id", gigH.Get)
	gigs.Post("/", requireAuth, gigH.Create)
	gigs.Put("/:id", requireAuth, gigH.Update)
	gigs.Delete("/:id", requireAuth, gigH.Delete)

	// Auth is per route so unknown /api/bids/* paths reach the 404 fallback.
	bids := api.Group("/bids")
	bids.Post("/", requireAuth, bidLimit.Handler(middleware.ByUser), bidH.Create)
	bids.Get("/my-bids", requireAuth, bidH.Mine)
	bids.Get("/:gigId", requireAuth, bidH.ListForGig)
	bids.Patch("/:bidId/hire", requireAuth, bidH.Hire)

	prem := api.Group("/premium")
	prem.Get("/plans", premiumH.Plans)
	prem.Post("/subscribe", requireAuth, premiumH.Subscribe)
	prem.Post("/cancel", requireAuth, premiumH.Cancel)
	prem.Get("/subscriptions", requireAuth, premiumH.History)

	api.Get("/ws", requireAuth, wsH.Upgrade, wsH.Serve())

	app.Use(handlers.RouteNotFound)
	return s
}

// Close stops background work owned by the server. It does not shut the app down.
func (s *Server) Close() {
	for _, l := range s.limiters {
		l.Stop()
	}
}
