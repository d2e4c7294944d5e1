package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"lanzoufetch/internal"
)

// Server exposes share link resolution over HTTP
type Server struct {
	router   *gin.Engine
	resolver internal.LinkResolver
	metrics  *Metrics
	timeout  time.Duration
	registry *prometheus.Registry
}

// Option configures a Server
type Option func(*Server)

// WithRegistry registers metrics on reg instead of a private registry
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = reg
	}
}

// WithResolveTimeout bounds each resolution; zero means only the request context applies
func WithResolveTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.timeout = d
	}
}

// NewServer builds the router around resolver
func NewServer(resolver internal.LinkResolver, opts ...Option) *Server {
	s := &Server{
		router:   gin.New(),
		resolver: resolver,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics = NewMetrics(s.registry)

	s.router.Use(gin.Recovery())
	s.router.Use(requestID())
	s.router.Use(accessLog(s.metrics))
	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := s.router.Group("/api")
	api.Use(cors())
	{
		api.POST("/parse", s.handleParse)
		api.OPTIONS("/*path", func(c *gin.Context) {})
	}
}

// Handler returns the HTTP handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Metrics returns the server's collectors
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

const (
	defaultWriteTimeout = 120 * time.Second
	writeSlack          = 30 * time.Second
)

// httpServer builds the listener config. WriteTimeout always outlasts the
// resolve timeout so a slow resolution can still answer.
func (s *Server) httpServer(addr string) *http.Server {
	writeTimeout := defaultWriteTimeout
	if s.timeout > 0 {
		writeTimeout = s.timeout + writeSlack
	}
	return &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      writeTimeout,
		MaxHeaderBytes:    1 << 20,
	}
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := s.httpServer(addr)

	errCh := make(chan error, 1)
	go func() {
		internal.LogInfo("HTTP API listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	internal.LogInfo("shutting down HTTP API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
