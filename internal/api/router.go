package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jmoiron/sqlx"

	"github.com/gudangmitra/gudang/internal/auth"
	"github.com/gudangmitra/gudang/internal/model"
	"github.com/gudangmitra/gudang/internal/workflow"
)

// Options configures the API router.
type Options struct {
	DB             *sqlx.DB
	Workflow       *workflow.Service
	Issuer         *auth.Issuer
	Production     bool          // hide internal error text
	Timeout        time.Duration // per-request deadline; 0 disables
	AllowedOrigins []string      // CORS origins; empty disables CORS
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(opts Options) http.Handler {
	rs := responder{Production: opts.Production}

	authHandler := &AuthHandler{DB: opts.DB, Issuer: opts.Issuer, responder: rs}
	usersHandler := &UsersHandler{DB: opts.DB, responder: rs}
	itemsHandler := &ItemsHandler{DB: opts.DB, responder: rs}
	categoriesHandler := &CategoriesHandler{DB: opts.DB, responder: rs}
	requestsHandler := &RequestsHandler{DB: opts.DB, Workflow: opts.Workflow, responder: rs}
	loansHandler := &LoansHandler{DB: opts.DB, Workflow: opts.Workflow, responder: rs}
	notificationsHandler := &NotificationsHandler{DB: opts.DB, responder: rs}

	authMW := AuthMiddleware(opts.Issuer, opts.DB)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireManager := RequireRole(model.RoleManager)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, LoggingMiddleware, middleware.Recoverer)
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
			ExposedHeaders: []string{middleware.RequestIDHeader},
			MaxAge:         300,
		}))
	}
	if opts.Timeout > 0 {
		r.Use(middleware.Timeout(opts.Timeout))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		// Public: login.
		r.Post("/auth/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(authMW)

			r.Post("/auth/logout", authHandler.Logout)
			r.Put("/auth/password", authHandler.ChangePassword)
			r.Get("/auth/me", authHandler.Me)

			// Users (admin only).
			r.Route("/users", func(r chi.Router) {
				r.Use(requireAdmin)
				r.Get("/", usersHandler.List)
				r.Post("/", usersHandler.Create)
				r.Get("/{id}", usersHandler.Get)
				r.Put("/{id}", usersHandler.Update)
				r.Put("/{id}/password", usersHandler.ResetPassword)
				r.Delete("/{id}", usersHandler.Delete)
			})

			// Items: read (all roles), write (manager+).
			r.Route("/items", func(r chi.Router) {
				r.Get("/", itemsHandler.List)
				r.Get("/{id}", itemsHandler.Get)
				r.Get("/{id}/image", itemsHandler.GetImage)
				r.Group(func(r chi.Router) {
					r.Use(requireManager)
					r.Post("/", itemsHandler.Create)
					r.Post("/bulk", itemsHandler.BulkCreate)
					r.Post("/bulk-update-stock", itemsHandler.BulkUpdateStock)
					r.Put("/{id}", itemsHandler.Update)
					r.Delete("/{id}", itemsHandler.Delete)
					r.Put("/{id}/image", itemsHandler.UploadImage)
				})
			})

			// Categories: read (all roles), write (manager+).
			r.Route("/categories", func(r chi.Router) {
				r.Get("/", categoriesHandler.List)
				r.With(requireManager).Post("/", categoriesHandler.Create)
				r.With(requireManager).Put("/{id}", categoriesHandler.Update)
				r.With(requireManager).Delete("/{id}", categoriesHandler.Delete)
			})

			// Requests and loans: the workflow decides who may do what.
			r.Route("/requests", func(r chi.Router) {
				r.Get("/", requestsHandler.List)
				r.Post("/", requestsHandler.Create)
				r.Get("/{id}", requestsHandler.Get)
				r.Patch("/{id}/status", requestsHandler.UpdateStatus)
				r.Delete("/{id}", requestsHandler.Delete)
			})
			r.Route("/loans", func(r chi.Router) {
				r.Get("/", loansHandler.List)
				r.Post("/", loansHandler.Create)
				r.Get("/{id}", loansHandler.Get)
				r.Patch("/{id}/status", loansHandler.UpdateStatus)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/user/{id}", notificationsHandler.List)
				r.Patch("/user/{id}/read-all", notificationsHandler.MarkAllRead)
				r.Patch("/{id}/read", notificationsHandler.MarkRead)
			})
		})
	})

	return r
}
