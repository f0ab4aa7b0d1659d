// Package router assembles the HTTP surface of the wellness API.
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sparshcare/wellness-platform/internal/api/handlers"
)

// Deps carries the wired handlers the router mounts.
type Deps struct {
	Chat  *handlers.ChatHandler
	Slots *handlers.SlotsHandler
	Tasks *handlers.TasksHandler
}

// New builds the chi router with the standard middleware stack.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", handlers.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/chat", func(r chi.Router) {
			r.Post("/message", deps.Chat.PostMessage)
			r.Get("/{sessionID}/history", deps.Chat.GetHistory)
			r.Get("/{sessionID}/ws", deps.Chat.Subscribe)
		})

		r.Route("/slots", func(r chi.Router) {
			r.Get("/", deps.Slots.ListOpen)
			r.Post("/", deps.Slots.Create)
			r.Post("/{slotID}/request", deps.Slots.Request)
			r.Post("/{slotID}/confirm", deps.Slots.Confirm)
			r.Post("/{slotID}/reject", deps.Slots.Reject)
		})

		r.Get("/students/{studentID}/tasks", deps.Tasks.ListForStudent)
		r.Post("/tasks/{taskID}/completion", deps.Tasks.SetCompletion)
	})

	return r
}
