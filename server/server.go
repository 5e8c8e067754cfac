// Package server exposes pose analysis over HTTP and websockets.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/nvr-ai/go-pose/classifier"
	"github.com/nvr-ai/go-pose/coach"
	"github.com/nvr-ai/go-pose/detector"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Options configures the server.
type Options struct {
	Addr          string
	ModelDir      string
	PoseThreshold float32
	Gate          coach.Gate
	MaxBodyBytes  int64
	// ShutdownTimeout bounds the graceful shutdown in Run.
	ShutdownTimeout time.Duration
}

// DefaultOptions returns the options used by posectl serve.
func DefaultOptions() Options {
	return Options{
		Addr:            ":8080",
		ModelDir:        "model",
		PoseThreshold:   coach.DefaultPoseThreshold,
		Gate:            coach.DefaultGate(),
		MaxBodyBytes:    10 << 20,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Server is the HTTP API.
type Server struct {
	opts     Options
	analyzer *Analyzer
	logger   *zap.Logger
	router   *gin.Engine
	upgrader websocket.Upgrader
}

// New builds the router. model may be nil to serve keypoints only.
func New(opts Options, det detector.Detector, model *classifier.Model, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		opts:     opts,
		analyzer: NewAnalyzer(det, model, opts.Gate),
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	router := gin.New()
	router.Use(RequestLogger(logger))
	router.Use(gin.Recovery())
	router.Use(Metrics())

	router.GET("/healthz", s.health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", s.handleWebSocket)

	api := router.Group("/api/v1")
	api.Use(RequestSizeLimit(opts.MaxBodyBytes))
	{
		api.POST("/classify", s.classify)
		api.POST("/overlay", s.overlay)
	}

	if opts.ModelDir != "" {
		router.Static("/model", opts.ModelDir)
	}

	s.router = router
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", zap.String("addr", s.opts.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	timeout := s.opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	s.logger.Info("server exited")
	return nil
}
