package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jamoran1356/promptmind/internal/data"
	"github.com/jamoran1356/promptmind/internal/ratelimit"
	"github.com/jamoran1356/promptmind/internal/settlement"
)

const (
	serviceName    = "promptmind"
	serviceVersion = "1.0.0"

	defaultTake = 20
	maxTake     = 100
)

// Server exposes the marketplace over REST.
type Server struct {
	store      data.Store
	settlement *settlement.Service
	limiter    *ratelimit.Limiter
	jwtSecret  []byte
	log        *slog.Logger
	startedAt  time.Time

	httpServer *http.Server
}

func NewServer(
	addr string,
	store data.Store,
	svc *settlement.Service,
	limiter *ratelimit.Limiter,
	jwtSecret string,
	log *slog.Logger,
) *Server {
	s := &Server{
		store:      store,
		settlement: svc,
		limiter:    limiter,
		jwtSecret:  []byte(jwtSecret),
		log:        log,
		startedAt:  time.Now(),
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router builds the route tree. Exposed separately so tests can drive the
// handlers without a listening socket.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.With(s.rateLimit("health")).Get("/health", s.handleHealth)

		r.Route("/prompts", func(r chi.Router) {
			r.Use(s.rateLimit("prompts"))
			r.Get("/", s.handleListPrompts)
			r.Get("/{id}", s.handleGetPrompt)
			r.With(s.requireAuth).Post("/", s.handleCreatePrompt)
		})

		r.Route("/trades", func(r chi.Router) {
			r.Use(s.rateLimit("trades"))
			r.Get("/", s.handleListTrades)
			r.With(s.requireAuth).Post("/", s.handleCreateTrade)
		})

		r.Route("/breeding", func(r chi.Router) {
			r.Use(s.rateLimit("breeding"))
			r.Get("/", s.handleListBreedingEvents)
			r.With(s.requireAuth).Post("/", s.handleCreateBreeding)
		})

		r.With(s.rateLimit("prompts")).Get("/leaderboard", s.handleLeaderboard)
	})

	return r
}

// Run serves until ctx is cancelled, then drains with a shutdown grace
// period.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
