package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"garagebook/internal/auth"
	"garagebook/internal/config"
	"garagebook/internal/domain"
	"garagebook/internal/export"
	"garagebook/internal/models"

	"github.com/rs/zerolog"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type TokenVerifier interface {
	Verify(raw string) (*auth.Claims, error)
}

// Deps are the collaborators the HTTP API is wired to.
type Deps struct {
	Bookings domain.BookingService
	Auth     domain.AuthService
	Tokens   TokenVerifier
	Store    Pinger
}

// HTTPServer exposes the booking JSON API.
type HTTPServer struct {
	cfg     config.APIConfig
	deps    Deps
	gate    *Gate
	clients *clientResolver
	limiter *rateLimiter
	server  *http.Server
	logger  *zerolog.Logger

	writeWorkbook func(w io.Writer, bookings []models.Booking) error
}

func NewHTTPServer(cfg config.APIConfig, deps Deps, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	clients := newClientResolver(cfg.TrustedProxies, logger)
	srv := &HTTPServer{
		cfg:     cfg,
		deps:    deps,
		gate:    NewGate(deps.Tokens, logger),
		clients: clients,
		limiter: newRateLimiter(cfg.RateLimit, clients),
		logger:  logger,

		writeWorkbook: export.WriteBookings,
	}

	mux := http.NewServeMux()
	srv.routes(mux)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           wrapMiddleware(cfg, logger, mux),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /admin/login", s.handleLogin)
	mux.HandleFunc("POST /api/bookings", s.limiter.Wrap(s.handleCreateBooking))

	mux.HandleFunc("GET /api/bookings", s.gate.Wrap(s.handleListBookings))
	mux.HandleFunc("GET /api/bookings/export", s.gate.Wrap(s.handleExportBookings))
	mux.HandleFunc("GET /api/bookings/search/{term}", s.gate.Wrap(s.handleSearchBookings))
	mux.HandleFunc("GET /api/bookings/{id}", s.gate.Wrap(s.handleGetBooking))
	mux.HandleFunc("PUT /api/bookings/{id}/complete", s.gate.Wrap(s.handleCompleteBooking))
	mux.HandleFunc("PUT /api/bookings/{id}/archive", s.gate.Wrap(s.handleArchiveBooking))
	mux.HandleFunc("DELETE /api/bookings/{id}", s.gate.Wrap(s.handleDeleteBooking))
	mux.HandleFunc("GET /api/dashboard/stats", s.gate.Wrap(s.handleDashboardStats))
}

// wrapMiddleware orders the chain so a recovered panic still carries its
// request id into the access log and metrics.
func wrapMiddleware(cfg config.APIConfig, logger *zerolog.Logger, next http.Handler) http.Handler {
	return requestIDMiddleware(
		loggingMiddleware(logger,
			recoveryMiddleware(logger,
				corsMiddleware(cfg.CORS, next))))
}

// Handler returns the fully wrapped handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeMessage(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"message": message})
}
