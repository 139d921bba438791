package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterOptions struct {
	AllowedOrigins []string
	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler
}

func NewHandler(historyHandler *HistoryHandler, healthHandler *HealthHandler, wsHandler http.Handler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/ws", wsHandler.ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("welcome"))
		})
		r.Get("/health", healthHandler.Health)
		r.Get("/polls/history", historyHandler.ListEndedPolls)
		r.Get("/messages", historyHandler.ListChatMessages)
	})

	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}

	return r
}
