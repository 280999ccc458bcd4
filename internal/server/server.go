// Package server wires the services into one chi router and runs the HTTP
// server until its context ends.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"comanda/internal/auth"
	"comanda/internal/config"
	"comanda/internal/httpx"
	"comanda/internal/imagestore"
	"comanda/internal/logger"
	"comanda/internal/messaging"
	"comanda/internal/repository"
	"comanda/internal/services/ordering"
	"comanda/internal/services/orderitems"
	"comanda/internal/services/orders"
	"comanda/internal/services/products"
	"comanda/internal/services/surveys"
	"comanda/internal/services/tables"
	"comanda/internal/services/users"
)

// Deps are the collaborators built by main.
type Deps struct {
	Store  *repository.Store
	Tokens *auth.TokenManager
	Images imagestore.Store
	Events messaging.StatusPublisher
	Logger *logger.Logger
}

// Server owns the services and their routes.
type Server struct {
	cfg    config.HTTPConfig
	deps   Deps
	router chi.Router

	Tables   *tables.Service
	Orders   *orders.Service
	Items    *orderitems.Service
	Ordering *ordering.Service
	Products *products.Service
	Users    *users.Service
	Surveys  *surveys.Service
}

func New(cfg config.HTTPConfig, deps Deps) *Server {
	store, log := deps.Store, deps.Logger
	s := &Server{cfg: cfg, deps: deps}

	s.Tables = tables.NewService(store.Tables, log)
	s.Orders = orders.NewService(store.Orders, store.OrderItems, log)
	s.Items = orderitems.NewService(store.OrderItems, store.Orders, log)
	s.Products = products.NewService(store.Products, log)
	s.Users = users.NewService(store.Users, deps.Tokens, log)
	s.Surveys = surveys.NewService(store.Surveys, store.Orders, log)
	s.Ordering = ordering.NewService(s.Tables, s.Orders, s.Items, store.Products, deps.Images, deps.Events, log)

	s.router = s.routes()
	return s
}

// Handler is the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	log := s.deps.Logger
	guards := s.deps.Tokens.Guards()

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(httpx.WithLogging(log))

	r.Get("/health", s.HealthCheck)

	tables.NewHandler(s.Tables, log).RegisterRoutes(r, guards)
	ordering.NewHandler(s.Ordering, log, s.cfg.MaxUploadBytes).RegisterRoutes(r, guards)
	orders.NewHandler(s.Orders, log).RegisterRoutes(r, guards)
	orderitems.NewHandler(s.Items, log).RegisterRoutes(r, guards)
	products.NewHandler(s.Products, log).RegisterRoutes(r, guards)
	users.NewHandler(s.Users, log).RegisterRoutes(r, guards)
	surveys.NewHandler(s.Surveys, log).RegisterRoutes(r, guards)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteErrorResponse(w, r, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteErrorResponse(w, r, http.StatusMethodNotAllowed, "Method not allowed")
	})
	return r
}

// HealthCheck handles GET /health requests
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "comanda",
	}
	code := http.StatusOK
	if err := s.deps.Store.Ping(ctx); err != nil {
		s.deps.Logger.Error("health_check_failed", "Store is unreachable", logger.RequestIDFrom(r.Context()), err, nil)
		response["status"] = "unhealthy"
		code = http.StatusServiceUnavailable
	}
	httpx.WriteJSON(w, s.deps.Logger, r, code, response)
}

// Run serves on the configured port until ctx is done, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	log := s.deps.Logger
	requestID := logger.GenerateRequestID()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("service_started", fmt.Sprintf("API listening on port %d", s.cfg.Port), requestID,
			map[string]interface{}{"port": s.cfg.Port})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	log.Info("graceful_shutdown", "Shutting down HTTP server", requestID, nil)
	return server.Shutdown(shutdownCtx)
}
