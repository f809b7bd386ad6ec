// Package server exposes sentiment classification and embeddings over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/crimson-sun/anchorsense/internal/engine"
	"github.com/crimson-sun/anchorsense/internal/engine/anchors"
	"github.com/crimson-sun/anchorsense/internal/engine/embedder"
	"github.com/crimson-sun/anchorsense/internal/model"
)

// DefaultMaxTexts caps the number of texts accepted in one request.
const DefaultMaxTexts = 2048

// HealthCheck is a named readiness check.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Server struct {
	echo     *echo.Echo
	engine   *engine.Engine
	embedder embedder.Embedder

	anchors        model.AnchorSet
	requestAnchors bool
	model          string
	maxTexts       int
	registry       *prometheus.Registry
	healthChecks   []HealthCheck
	startTime      time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithAnchors sets the anchor set used when a request carries none.
func WithAnchors(set model.AnchorSet) Option {
	return func(s *Server) { s.anchors = set }
}

// WithRequestAnchors controls whether a sentiment request may carry its own
// anchor set. Each distinct set costs one provider call and an anchor cache
// entry. Enabled by default.
func WithRequestAnchors(enabled bool) Option {
	return func(s *Server) { s.requestAnchors = enabled }
}

// WithModel names the model the embedder serves. Embedding requests for any
// other model are rejected.
func WithModel(name string) Option {
	return func(s *Server) { s.model = name }
}

// WithMaxTexts caps the texts per request.
func WithMaxTexts(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxTexts = n
		}
	}
}

// WithRegistry serves reg on GET /metrics.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) { s.registry = reg }
}

// WithHealthCheck adds a readiness check.
func WithHealthCheck(name string, check func(ctx context.Context) error) Option {
	return func(s *Server) {
		s.healthChecks = append(s.healthChecks, HealthCheck{Name: name, Check: check})
	}
}

// New creates a Server classifying with eng and embedding with emb.
func New(eng *engine.Engine, emb embedder.Embedder, opts ...Option) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:           e,
		engine:         eng,
		embedder:       emb,
		anchors:        anchors.Default(),
		requestAnchors: true,
		model:          embedder.DefaultModel,
		maxTexts:       DefaultMaxTexts,
		startTime:      time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registerRoutes()
	return s
}

// ServeHTTP lets the server be mounted or exercised with httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on addr and blocks until the server stops. It returns nil
// after a clean Shutdown.
func (s *Server) Start(addr string) error {
	slog.Info("starting server", "addr", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: start: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
