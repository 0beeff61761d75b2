// Package server — HTTP API поверх ledger и казино.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	log "github.com/sirupsen/logrus"

	botmw "github.com/Sharedvaluevending/RevQR-sub006/internal/bot/middleware"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/admin"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/casino"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/economy"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/streak"
	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/voting"
)

// Deps — сервисы, которые обслуживает API. nil Voting/Streak — фича выключена.
type Deps struct {
	Ledger      *economy.Service
	Casino      *casino.Service
	Voting      *voting.Service
	Streak      *streak.Service
	Admin       *admin.Service
	Auth        *admin.Authenticator
	RateLimiter *botmw.RateLimiter // лимит игр на пользователя; nil — без лимита
	Ping        func(ctx context.Context) error
}

// Server — HTTP-сервер API.
type Server struct {
	deps   Deps
	router chi.Router
	http   *http.Server
}

// New собирает роутер и HTTP-сервер.
func New(addr string, deps Deps) *Server {
	s := &Server{deps: deps}
	s.router = s.routes()
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}
	return s
}

// Handler возвращает корневой http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           60 * 15,
	}))

	r.Get("/healthz", s.health)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/tables", s.tables)
		r.Post("/play", s.play)

		r.Route("/users/{id}", func(r chi.Router) {
			r.Get("/balance", s.balance)
			r.Get("/transactions", s.transactions)
			r.Get("/stats", s.stats)
			r.Post("/votes", s.vote)
			r.Get("/daily", s.dailyStatus)
			r.Post("/daily", s.claimDaily)
		})

		r.Route("/admin/users/{id}", func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Post("/give", s.adminGive)
			r.Post("/take", s.adminTake)
			r.Get("/entitlements", s.adminEntitlements)
			r.Post("/entitlements", s.adminSetEntitlement)
		})
	})

	return r
}

// Run слушает адрес до отмены ctx, затем корректно останавливается.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", s.http.Addr).Info("HTTP сервер запущен")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("HTTP сервер остановлен")
	return nil
}
