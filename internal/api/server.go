// It defines the API server, sets up the routes (endpoints)
// using chi, and links them to the handler functions.

package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/aniways/anipush/internal/core"
	"github.com/aniways/anipush/internal/db"
	"github.com/aniways/anipush/internal/store"
)

// Runner processes one raw webhook event. Satisfied by the processing
// pipeline; swapped out in handler tests.
type Runner interface {
	Run(ctx context.Context, source db.Table, raw []byte)
}

// Server holds the dependencies for our API.
type Server struct {
	app      *core.App
	db       *sql.DB
	store    *store.Store
	pipeline Runner
}

// Store returns the store instance.
func (s *Server) Store() *store.Store {
	return s.store
}

// NewServer creates a new Server instance.
func NewServer(app *core.App, pipeline Runner) *Server {
	return &Server{
		app:      app,
		db:       app.DB,
		store:    store.New(app.DB),
		pipeline: pipeline,
	}
}

// Router sets up and returns the main router for the application.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)    // Logs requests to the console
	r.Use(middleware.Recoverer) // Recovers from panics
	r.Use(middleware.Timeout(60 * time.Second))

	r.Post("/webhook", s.handleWebhook)

	r.Route("/api", func(r chi.Router) {
		r.Get("/targets", s.handleGetTargets)
		r.Post("/targets/register", s.handleRegisterTarget)
		r.Post("/targets/unregister", s.handleUnregisterTarget)
		r.Post("/targets/block", s.handleBlockTargets)
		r.Post("/targets/restore", s.handleRestoreTargets)

		r.Post("/subscribe", s.handleSubscribe)
		r.Delete("/subscribe", s.handleUnsubscribe)
	})

	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		if err := s.db.Ping(); err != nil {
			RespondWithError(w, http.StatusServiceUnavailable, "Database connection failed")
			return
		}
		RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
