package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nikhilbhutani/fiscalassistant/internal/api/handlers"
	"github.com/nikhilbhutani/fiscalassistant/internal/api/middleware"
	"github.com/nikhilbhutani/fiscalassistant/internal/auth"
	"github.com/nikhilbhutani/fiscalassistant/internal/billing"
	"github.com/nikhilbhutani/fiscalassistant/internal/chat"
	"github.com/nikhilbhutani/fiscalassistant/internal/config"
	"github.com/nikhilbhutani/fiscalassistant/internal/document"
	"github.com/nikhilbhutani/fiscalassistant/internal/metrics"
)

// Deps are the collaborators built once in main.
type Deps struct {
	DB          handlers.Pinger
	Redis       handlers.Pinger
	Storage     handlers.StorageProbe
	Documents   *document.Service
	Chat        *chat.Orchestrator
	Ledger      *billing.Ledger
	Metrics     *metrics.HTTPServerMetrics
	RateLimiter *middleware.RateLimiter
}

type Router struct {
	mux  *chi.Mux
	cfg  *config.Config
	deps Deps
	jwt  *auth.JWTMiddleware
}

func NewRouter(cfg *config.Config, deps Deps) *Router {
	if deps.RateLimiter == nil {
		deps.RateLimiter = middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	}
	return &Router{
		mux:  chi.NewRouter(),
		cfg:  cfg,
		deps: deps,
		jwt:  auth.NewJWTMiddleware(cfg.Auth.JWTSecret),
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.cfg.Server.CORSOrigins))
	if rt.deps.Metrics != nil {
		r.Use(rt.deps.Metrics.Middleware)
		r.Handle("/metrics", rt.deps.Metrics.Handler())
	}

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.deps.DB, rt.deps.Redis, rt.deps.Storage)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.jwt.Authenticate)
		r.Use(rt.deps.RateLimiter.Limit)

		docH := handlers.NewDocumentHandler(rt.deps.Documents, rt.deps.Metrics, rt.cfg.Server.MaxUploadBytes)
		r.Route("/documents", func(r chi.Router) {
			r.Post("/", docH.Upload)
			r.Get("/", docH.List)
			r.Get("/{id}", docH.Get)
			r.Get("/{id}/status", docH.Status)
			r.Get("/{id}/file", docH.File)
			r.Delete("/{id}", docH.Delete)
		})

		chatH := handlers.NewChatHandler(rt.deps.Chat)
		r.Route("/chat/messages", func(r chi.Router) {
			r.Post("/", chatH.Ask)
			r.Get("/", chatH.History)
		})

		billingH := handlers.NewBillingHandler(rt.deps.Ledger)
		r.Get("/billing", billingH.Summary)
	})

	return r
}
