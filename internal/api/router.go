package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/lendingdesk/lending-api/internal/api/handlers"
	"github.com/lendingdesk/lending-api/internal/auth"
	"github.com/lendingdesk/lending-api/internal/services"
	"github.com/lendingdesk/lending-api/internal/websocket"
)

// NewRouter creates and configures a new Chi router. All routes are bound
// explicitly here; nothing registers itself.
func NewRouter(hub *websocket.Hub, userService services.UserServiceProvider, loanService services.LoanServiceProvider, accessService services.AccessServiceProvider, eventService services.EventServiceProvider) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(auth.Middleware())

	// CORS configuration for development
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService, accessService)
	loanHandler := handlers.NewLoanHandler(loanService)
	eventHandler := handlers.NewEventHandler(eventService)
	wsHandler := handlers.NewWebSocketHandler(hub)

	// API versioning
	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket event stream endpoint
		r.Get("/ws", wsHandler.Serve)

		r.Post("/auth/token", userHandler.IssueToken)

		r.Route("/users", func(r chi.Router) {
			r.Post("/", userHandler.Create)
			r.Get("/", userHandler.List)
			r.Get("/{userID}/loans", userHandler.VisibleLoans)
		})

		r.Route("/loans", func(r chi.Router) {
			r.Post("/", loanHandler.Create)
			r.Get("/", loanHandler.ListByOwner)
			r.Route("/{loanID}", func(r chi.Router) {
				r.Get("/", loanHandler.GetSchedule)
				r.Put("/", loanHandler.Update)
				r.Get("/month/{month}", loanHandler.GetSummary)
				r.Post("/share", loanHandler.Share)
			})
		})

		r.Get("/events", eventHandler.GetRecent)
	})

	return r
}
