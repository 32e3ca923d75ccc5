// Package server wires the chi router and composes every module's HTTP
// handlers onto it.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/catalystengine/screener/internal/server/analyzehandlers"
	"github.com/catalystengine/screener/internal/server/datahandlers"
	"github.com/catalystengine/screener/internal/server/jobshandlers"
	"github.com/catalystengine/screener/internal/server/monitorhandlers"
	"github.com/catalystengine/screener/internal/server/screenhandlers"
)

// Server wraps the composed chi.Mux.
type Server struct {
	router *chi.Mux
	log    zerolog.Logger
}

// New builds the HTTP server and registers every module's routes.
func New(log zerolog.Logger, analyze *analyzehandlers.Handler, screen *screenhandlers.Handler, jobsH *jobshandlers.Handler, monitor *monitorhandlers.Handler, data *datahandlers.Handler) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	analyze.RegisterRoutes(r)
	screen.RegisterRoutes(r)
	jobsH.RegisterRoutes(r)
	monitor.RegisterRoutes(r)
	data.RegisterRoutes(r)

	return &Server{router: r, log: log.With().Str("component", "server").Logger()}
}

// Handler returns the composed http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}
