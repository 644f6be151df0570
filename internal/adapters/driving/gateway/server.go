// Package gateway exposes the diagnosis services as a JSON HTTP API.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/custodia-labs/sizhen/internal/core/ports/driving"
	"github.com/custodia-labs/sizhen/internal/logger"
	"github.com/custodia-labs/sizhen/internal/resilience"
)

// MaxBodyBytes bounds request bodies; modality payloads carry base64 media.
const MaxBodyBytes = 32 << 20

// ErrMissingDiagnosisService is returned when the diagnosis service is not provided.
var ErrMissingDiagnosisService = errors.New("gateway: diagnosis service is required")

// Ports aggregates the driving ports served over HTTP.
type Ports struct {
	Diagnosis driving.DiagnosisService

	// Fusion and Reasoning enable the stand-alone engine routes.
	Fusion    driving.FusionService
	Reasoning driving.ReasoningService

	// Breakers, when set, are reported by /healthz.
	Breakers *resilience.Registry
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Diagnosis == nil {
		return ErrMissingDiagnosisService
	}
	return nil
}

// Server is the HTTP API.
type Server struct {
	ports    Ports
	validate *validator.Validate
	router   chi.Router
}

// NewServer creates the API server and its routes.
func NewServer(ports Ports) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	s := &Server{
		ports:    ports,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/diagnoses", s.handleGenerateReport)
		r.Get("/reports/{id}", s.handleGetReport)
		r.Route("/sessions/{userID}/{sessionID}", func(r chi.Router) {
			r.Get("/progress", s.handleGetProgress)
			r.Get("/reports", s.handleListReports)
		})
		r.Post("/fusion", s.handleFuse)
		r.Post("/differentiation", s.handleDifferentiate)
	})

	return r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves the API on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown when context is cancelled
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.Debug("%s %s -> %d in %s (request %s)",
			r.Method, r.URL.Path, ww.Status(), time.Since(start), middleware.GetReqID(r.Context()))
	})
}
