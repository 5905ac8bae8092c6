// Package api provides the HTTP API for GreenGig.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/greengig/greengig/internal/api/handler"
	"github.com/greengig/greengig/internal/api/middleware"
	"github.com/greengig/greengig/internal/auth"
	"github.com/greengig/greengig/internal/featureflags"
	"github.com/greengig/greengig/internal/provider/resilience"
	"github.com/greengig/greengig/internal/reward"
	"github.com/greengig/greengig/internal/submission"
	"github.com/greengig/greengig/internal/user"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	RequireTLS  bool

	Validator middleware.TokenValidator

	Submissions        *submission.Service
	UserService        *user.Service
	RewardEngine       *reward.Engine
	RewardCatalog      reward.Catalog
	FeatureFlagService *featureflags.Service
	Registry           *resilience.Registry
	Database           handler.Pinger

	// MaxUploadBytes <= 0 uses handler.DefaultMaxUploadBytes.
	MaxUploadBytes int64

	// Per-minute limits; zero keeps the middleware defaults.
	RequestsPerMinute int
	UploadsPerMinute  int
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "greengig-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))         // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))       // Panic recovery
	r.Use(chimiddleware.RealIP)                  // Real IP extraction
	r.Use(middleware.SecurityHeaders)            // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS(cfg.RequireTLS)) // TLS enforcement
	r.Use(middleware.ContentTypeJSON)            // JSON content type

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Database:  cfg.Database,
		Registry:  cfg.Registry,
		Flags:     cfg.FeatureFlagService,
	})
	proofHandler := handler.NewProofHandler(cfg.Submissions, cfg.MaxUploadBytes, cfg.Logger)
	rewardHandler := handler.NewRewardHandler(cfg.UserService, cfg.RewardEngine, cfg.RewardCatalog, cfg.Logger)
	featureFlagsHandler := handler.NewFeatureFlagsHandler(cfg.FeatureFlagService, cfg.Logger)

	authMiddleware := middleware.Auth(cfg.Validator)
	reviewerOnly := middleware.RequireRole(auth.RoleReviewer)

	standardLimit := middleware.PerMinute(cfg.RequestsPerMinute, middleware.StandardRateLimit)
	uploadLimit := middleware.PerMinute(cfg.UploadsPerMinute, middleware.UploadRateLimit)

	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			// Provider status is for reviewers only
			r.With(authMiddleware, reviewerOnly).Get("/status", opsHandler.SystemStatus)
		})

		// Reference data (public) - IP rate limiting
		r.With(middleware.RateLimitByIP(standardLimit)).Get("/emission-factors", proofHandler.EmissionFactors)

		// Authenticated endpoints - user-based rate limiting
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RateLimitByUser(standardLimit))

			r.Get("/me", rewardHandler.GetMe)
			r.Get("/rewards", rewardHandler.ListRules)

			r.Route("/travel-proofs", func(r chi.Router) {
				// Uploads spend classifier quota
				r.With(middleware.RateLimitByUser(uploadLimit)).Post("/", proofHandler.Submit)
				r.Get("/stats", proofHandler.Stats)
				r.Get("/{proofId}", proofHandler.Get)
			})

			r.Route("/users/{userId}", func(r chi.Router) {
				r.Get("/travel-proofs", proofHandler.List)
				r.Post("/badges:award", rewardHandler.AwardBadges)
			})

			r.Get("/concerts/{concertId}/emission-suggestions", proofHandler.Suggestions)
		})

		// Admin endpoints (reviewer role)
		r.Route("/admin", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(reviewerOnly)
			r.Use(middleware.RateLimitByUser(middleware.AdminRateLimit))
			r.Use(middleware.RequireJSON)

			r.Post("/travel-proofs/{proofId}/review", proofHandler.Review)

			// Feature flags management
			r.Route("/feature-flags", func(r chi.Router) {
				r.Get("/", featureFlagsHandler.ListFeatureFlags)
				r.Put("/", featureFlagsHandler.UpsertFeatureFlags)
				r.Post("/invalidate", featureFlagsHandler.InvalidateCache)
			})
		})
	})

	return r
}
