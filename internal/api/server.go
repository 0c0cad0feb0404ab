package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/edustack/academy-api/internal/bootstrap"
	"github.com/edustack/academy-api/internal/config"
	"github.com/edustack/academy-api/internal/email"
	"github.com/edustack/academy-api/internal/health"
	"github.com/edustack/academy-api/internal/metrics"
	"github.com/edustack/academy-api/internal/pkg/logger"
	"github.com/edustack/academy-api/internal/storage"
)

// Server is the HTTP front of the service.
type Server struct {
	cfg     config.ServerConfig
	handler http.Handler
	server  *http.Server

	storage   *storage.Service
	email     *email.Service
	checker   *health.Checker
	collector *metrics.Collector
	report    bootstrap.InitReport
	startedAt time.Time
}

// NewServer wires the handlers and middleware stack.
func NewServer(
	cfg config.ServerConfig,
	storageSvc *storage.Service,
	emailSvc *email.Service,
	checker *health.Checker,
	collector *metrics.Collector,
	report bootstrap.InitReport,
) *Server {
	s := &Server{
		cfg:       cfg,
		storage:   storageSvc,
		email:     emailSvc,
		checker:   checker,
		collector: collector,
		report:    report,
		startedAt: time.Now(),
	}
	s.handler = s.routes()
	return s
}

// Handler exposes the routed stack, mainly for tests.
func (s *Server) Handler() http.Handler { return s.handler }

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.GetHost(), s.cfg.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.handler,
		// Timeouts are generous to support large course-asset uploads.
		ReadTimeout:       10 * time.Minute,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       2 * time.Minute,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("http server starting", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
