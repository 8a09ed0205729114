package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

type Server struct{ mux *chi.Mux }

// New builds the router. jwtSecret signs bearer tokens; an empty secret
// leaves every request anonymous. trustProxy rewrites RemoteAddr from
// X-Forwarded-For / X-Real-IP and must only be set behind a proxy that
// overwrites those headers.
func New(jwtSecret string, trustProxy bool) *Server {
	m := chi.NewRouter()

	// middlewares go before any routes are added
	if trustProxy {
		m.Use(chimw.RealIP)
	}
	m.Use(chimw.RequestID)
	m.Use(Recover)
	m.Use(Timeout(15 * time.Second))
	m.Use(Metrics)
	m.Use(Logger(log.Logger))
	m.Use(Identify([]byte(jwtSecret)))

	return &Server{mux: m}
}

func (s *Server) Mux() http.Handler { return s.mux }

// Mount attaches any extra handler (e.g., /metrics) to the router.
func (s *Server) Mount(path string, h http.Handler) {
	s.mux.Handle(path, h)
}
