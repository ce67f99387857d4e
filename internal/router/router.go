package router

import (
	"net/http"

	"household-inventory-api/internal/handler"
	"household-inventory-api/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler             *handler.Handler
	InventoryHandler    *handler.InventoryHandler
	ExpiryHandler       *handler.ExpiryHandler
	NotificationHandler *handler.NotificationHandler
	RecipeHandler       *handler.RecipeHandler
	ShoppingHandler     *handler.ShoppingHandler
	AdminHandler        *handler.AdminHandler
	Metrics             http.Handler
	AdminAPIKeys        []string
	AllowedOrigins      []string
	Logger              *zap.Logger
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r.Use(middleware.NewRecovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.NewLogging(cfg.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-API-Key", middleware.MemberHeader},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	// Public routes
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Handler != nil {
			r.Get("/health", cfg.Handler.Health)
			r.Get("/ready", cfg.Handler.Ready)
		}

		// Operator routes
		if cfg.AdminHandler != nil {
			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.NewAPIKeyMiddleware(cfg.AdminAPIKeys))
				r.Get("/stats", cfg.AdminHandler.GetStats)
				r.Post("/sweeps/{sweep}", cfg.AdminHandler.RunSweep)
			})
		}

		// Member-scoped routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireMember)

			if h := cfg.InventoryHandler; h != nil {
				r.Route("/inventory", func(r chi.Router) {
					r.Get("/", h.List)
					r.Post("/", h.Create)
					r.Get("/stats", h.Stats)
					r.Post("/use-for-recipe", h.UseForRecipe)
					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", h.Get)
						r.Patch("/", h.Update)
						r.Delete("/", h.Delete)
						r.Post("/use", h.Use)
						r.Post("/restock", h.Restock)
						r.Post("/waste", h.Waste)
						r.Get("/usage", h.Usage)
					})
				})
			}

			if h := cfg.ExpiryHandler; h != nil {
				r.Route("/expiry", func(r chi.Router) {
					r.Get("/summary", h.Summary)
					r.Get("/trends", h.Trends)
					r.Post("/dispose", h.Dispose)
					r.Post("/notify", h.Notify)
				})
			}

			if h := cfg.NotificationHandler; h != nil {
				r.Route("/notifications", func(r chi.Router) {
					r.Get("/", h.List)
					r.Get("/unread-count", h.UnreadCount)
					r.Get("/config", h.GetConfig)
					r.Put("/config", h.UpdateConfig)
					r.Post("/generate", h.Generate)
					r.Post("/read-all", h.MarkAllRead)
					r.Post("/{id}/read", h.MarkRead)
					r.Delete("/{id}", h.Delete)
				})
			}

			if h := cfg.RecipeHandler; h != nil {
				r.Route("/recipes", func(r chi.Router) {
					r.Get("/recommendations", h.Recommendations)
					r.Get("/expiring", h.Expiring)
					r.Get("/history", h.History)
					r.Get("/{id}/match", h.Match)
					r.Post("/{id}/cook", h.Cook)
				})
			}

			if h := cfg.ShoppingHandler; h != nil {
				r.Route("/shopping", func(r chi.Router) {
					r.Get("/suggestions", h.Suggestions)
					r.Post("/optimize", h.Optimize)
					r.Post("/purchases", h.Purchases)
				})
			}
		})
	})

	return r
}
