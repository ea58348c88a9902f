// Package api exposes the planner pipeline over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/maisonhai3/AI-planning-for-students/internal/contract"
	"github.com/maisonhai3/AI-planning-for-students/internal/domain"
	"github.com/maisonhai3/AI-planning-for-students/internal/metrics"
	"github.com/maisonhai3/AI-planning-for-students/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const serviceName = "student-planner-api"

// Config holds HTTP server configuration.
type Config struct {
	Host              string   `koanf:"host"`
	Port              int      `koanf:"port"`
	BodyLimit         string   `koanf:"body_limit"`
	RatePerSecond     float64  `koanf:"rate_per_second"`
	RateBurst         int      `koanf:"rate_burst"`
	CORSOrigins       []string `koanf:"cors_origins"`
	ShareBaseURL      string   `koanf:"share_base_url"`
	ShutdownTimeoutMs int      `koanf:"shutdown_timeout_ms"`
}

// DefaultConfig listens on :8000 and allows the local web client.
func DefaultConfig() Config {
	return Config{
		Host:              "0.0.0.0",
		Port:              8000,
		BodyLimit:         "256K",
		RatePerSecond:     2,
		RateBurst:         10,
		CORSOrigins:       []string{"http://localhost:3000"},
		ShareBaseURL:      "http://localhost:3000",
		ShutdownTimeoutMs: 10000,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Port)
	case c.RatePerSecond < 0 || c.RateBurst < 0:
		return fmt.Errorf("server rate limit must not be negative")
	case c.ShareBaseURL == "":
		return fmt.Errorf("server.share_base_url is required")
	}
	return nil
}

// ShutdownTimeout is the grace period for in-flight requests.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutMs) * time.Millisecond
}

// Pipeline produces guarded plans from raw input.
type Pipeline interface {
	Generate(ctx context.Context, input string) (*service.Generated, error)
}

// Delivery persists and serves plans and feedback.
type Delivery interface {
	Persist(ctx context.Context, plan *domain.StudyPlan, html string) (*service.Saved, error)
	Retrieve(ctx context.Context, id string) (*domain.PlanRecord, error)
	SetMilestone(ctx context.Context, id string, index int, completed bool) (*domain.PlanRecord, error)
	RecordFeedback(ctx context.Context, req contract.FeedbackRequest) (*domain.Feedback, error)
	ListFeedback(ctx context.Context, planID string) ([]*domain.Feedback, error)
}

// Pinger reports store reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ModelProbe reports model reachability.
type ModelProbe interface {
	Available(ctx context.Context) bool
}

// Server provides the planner HTTP endpoints.
type Server struct {
	echo     *echo.Echo
	cfg      Config
	pipeline Pipeline
	delivery Delivery
	logger   *zap.Logger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	store    Pinger
	backend  string
	model    ModelProbe
	version  string
}

// Option customizes a Server.
type Option func(*Server)

func WithLogger(l *zap.Logger) Option { return func(s *Server) { s.logger = l } }

// WithMetrics records HTTP metrics into m and serves g on /metrics.
func WithMetrics(m *metrics.Metrics, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = g
	}
}

// WithHealth wires the dependencies reported by the health endpoint.
func WithHealth(store Pinger, backend string, model ModelProbe) Option {
	return func(s *Server) {
		s.store = store
		s.backend = backend
		s.model = model
	}
}

func WithVersion(v string) Option { return func(s *Server) { s.version = v } }

// NewServer creates the HTTP server and registers its routes.
func NewServer(cfg Config, pipeline Pipeline, delivery Delivery, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if pipeline == nil || delivery == nil {
		return nil, errors.New("pipeline and delivery are required")
	}

	s := &Server{
		cfg:      cfg,
		pipeline: pipeline,
		delivery: delivery,
		version:  "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleHTTPError

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.RequestID())
	e.Use(s.requestContext)
	e.Use(s.accessLog)
	e.Use(middleware.Recover())
	e.Use(middleware.Secure())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderXRequestID},
	}))
	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}
	if cfg.RatePerSecond > 0 {
		e.Use(s.rateLimiter())
	}

	s.echo = e
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	if s.gatherer != nil {
		s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	v1 := s.echo.Group("/api/v1")
	v1.GET("/health", s.handleHealth)
	v1.POST("/generate", s.handleGenerate)
	v1.POST("/plans", s.handleSavePlan)
	v1.GET("/plans/:id", s.handleGetPlan)
	v1.GET("/plans/:id/html", s.handlePlanHTML)
	v1.PATCH("/plans/:id/milestones/:index", s.handleMilestone)
	v1.GET("/plans/:id/feedback", s.handleListFeedback)
	v1.POST("/feedback", s.handleFeedback)
}

// ServeHTTP lets the server be mounted or exercised with httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Addr is the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
}

// Start serves until Shutdown. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting http server", zap.String("addr", s.Addr()))
	if err := s.echo.Start(s.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
