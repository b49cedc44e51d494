// Package httpapi is the control surface from spec section 6: venue
// CRUD and trading endpoints, strategy lifecycle, and persisted
// configuration, all JSON over HTTP. Ground on teacher's
// internal/interfaces/http/server.go (mux router, middleware chain,
// ServerConfig/NewServer/Start/Shutdown shape); handlers are organized one
// file per resource the way teacher's handlers package is, but hold real
// dependencies (venue registry, strategy registry, config store) instead
// of the teacher's empty placeholder Handlers struct.
package httpapi

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/sawpanic/tradebot/internal/config"
	strategyregistry "github.com/sawpanic/tradebot/internal/strategy/registry"
	"github.com/sawpanic/tradebot/internal/venue"
	venueregistry "github.com/sawpanic/tradebot/internal/venue/registry"
)

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultServerConfig binds to localhost only, matching the teacher's
// local-only-by-default posture for a control plane that can place orders.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "127.0.0.1",
		Port:         8090,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Server is the control-plane HTTP server.
type Server struct {
	router *mux.Router
	server *http.Server
	config ServerConfig
	log    zerolog.Logger

	venues      *venueregistry.Registry
	strategies  *strategyregistry.Registry
	configStore *config.Store
	venueFactory func(venue.Config) (venue.Adapter, error)
}

// New builds a Server wired to the live venue registry, strategy registry
// and config store, and checks the configured port is available up front.
// venueFactory builds a fresh adapter for a venue_id posted to POST
// /exchanges (spec section 6), mirroring the adapter-implementation table
// the venue registry itself doesn't own.
func New(cfg ServerConfig, venues *venueregistry.Registry, strategies *strategyregistry.Registry, store *config.Store, venueFactory func(venue.Config) (venue.Adapter, error), log zerolog.Logger) (*Server, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("port %d is busy or unavailable: %w", cfg.Port, err)
	}
	ln.Close()

	s := &Server{
		router:       mux.NewRouter(),
		config:       cfg,
		log:          log.With().Str("component", "httpapi").Logger(),
		venues:       venues,
		strategies:   strategies,
		configStore:  store,
		venueFactory: venueFactory,
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.timeoutMiddleware)
	s.router.Use(s.corsMiddleware)

	api := s.router.PathPrefix("/").Subrouter()
	api.Use(s.jsonContentTypeMiddleware)

	api.HandleFunc("/exchanges", s.listVenues).Methods(http.MethodGet)
	api.HandleFunc("/exchanges", s.addVenue).Methods(http.MethodPost)
	api.HandleFunc("/exchanges/{id}", s.getVenue).Methods(http.MethodGet)
	api.HandleFunc("/exchanges/{id}", s.deleteVenue).Methods(http.MethodDelete)
	api.HandleFunc("/exchanges/{id}/test", s.testVenue).Methods(http.MethodPost)
	api.HandleFunc("/exchanges/{id}/balance", s.venueBalance).Methods(http.MethodGet)
	api.HandleFunc("/exchanges/{id}/markets", s.venueMarkets).Methods(http.MethodGet)
	api.HandleFunc("/exchanges/{id}/ticker/{symbol}", s.venueTicker).Methods(http.MethodGet)
	api.HandleFunc("/exchanges/{id}/orders", s.venueOrders).Methods(http.MethodGet)
	api.HandleFunc("/exchanges/{id}/orders", s.venueCreateOrder).Methods(http.MethodPost)
	api.HandleFunc("/exchanges/{id}/orders/{order_id}", s.venueCancelOrder).Methods(http.MethodDelete)

	api.HandleFunc("/strategies", s.listStrategies).Methods(http.MethodGet)
	api.HandleFunc("/strategies/{id}", s.getStrategy).Methods(http.MethodGet)
	api.HandleFunc("/strategies/active", s.setActiveStrategy).Methods(http.MethodPost)
	api.HandleFunc("/strategies/start", s.startActiveStrategy).Methods(http.MethodPost)
	api.HandleFunc("/strategies/stop", s.stopActiveStrategy).Methods(http.MethodPost)
	api.HandleFunc("/strategies/status", s.activeStrategyStatus).Methods(http.MethodGet)

	api.HandleFunc("/config", s.getConfig).Methods(http.MethodGet)
	api.HandleFunc("/config", s.postConfig).Methods(http.MethodPost)
	api.HandleFunc("/supported-exchanges", s.supportedExchanges).Methods(http.MethodGet)

	api.HandleFunc("/health", s.health).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(s.notFound)
}

// Start blocks serving HTTP until the server is shut down.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("control plane listening")
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("control plane shutting down")
	return s.server.Shutdown(ctx)
}

type requestIDKey struct{}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()[:8]
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return "unknown"
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.log.Info().
			Str("request_id", requestID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) timeoutMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if strings.Contains(origin, "localhost") || strings.Contains(origin, "127.0.0.1") {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, http.StatusNotFound, "endpoint_not_found", "the requested endpoint does not exist")
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "venues": len(s.venues.VenueIDs())})
}
