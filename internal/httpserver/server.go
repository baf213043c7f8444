package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/celebration-webhook/internal/auth"
	"github.com/PratikDhanave/celebration-webhook/internal/config"
	"github.com/PratikDhanave/celebration-webhook/internal/handlers"
	"github.com/PratikDhanave/celebration-webhook/internal/hub"
	"github.com/PratikDhanave/celebration-webhook/internal/logger"
	"github.com/PratikDhanave/celebration-webhook/internal/metrics"
	"github.com/PratikDhanave/celebration-webhook/internal/store"
)

// Deps are the collaborators wired into the router. LED is required for the
// celebration profile; Store and Hub enable the device API; the rest are optional.
type Deps struct {
	Store   store.DeviceStore
	Hub     *hub.Hub
	LED     handlers.Celebrator
	Metrics *metrics.Metrics
	Limiter *auth.RateLimiter
}

// NewRouter wires the profile's webhook routes and the device API.
// Public: /healthz, /health, /ready, /metrics, /ws, GET /devices/:id/prefs
// Admin (X-API-Key): /register, PUT prefs, notify-config, /test/broadcast
func NewRouter(cfg config.Config, d Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(auth.RequestIDMiddleware())
	r.Use(accessLog(logger.Get(logger.HTTP)))

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	// Liveness: confirms the process is running.
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "profile": cfg.Profile})
	})

	// Readiness: confirms the device store is reachable.
	r.GET("/ready", func(c *gin.Context) {
		if d.Store == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ready"})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if err := d.Store.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	if d.Metrics != nil {
		handlers.RegisterMetricRoutes(r, d.Metrics)
	}

	hooks := r.Group("/")
	if d.Limiter != nil {
		hooks.Use(d.Limiter.Middleware())
	}

	wd := handlers.WebhookDeps{
		Profile: cfg.Profile,
		LED:     d.LED,
		Metrics: d.Metrics,
		Hold:    cfg.CelebrationHold,
		Timeout: cfg.CelebrationTimeout,
	}
	if d.Hub != nil {
		wd.Devices = d.Hub
	}

	switch cfg.Profile {
	case config.ProfileListener:
		handlers.RegisterListenerRoutes(hooks, wd)
	case config.ProfileCelebration:
		handlers.RegisterCelebrationRoutes(hooks, wd)
	case config.ProfileRelay:
		handlers.RegisterRelayRoutes(hooks, wd)
	}

	if d.Store != nil && d.Hub != nil {
		// Admin group enforces X-API-Key when keys are configured.
		admin := r.Group("/")
		admin.Use(auth.APIKeyMiddleware(cfg.AdminKeys))

		handlers.RegisterDeviceRoutes(r, admin, d.Store, d.Hub)
		handlers.RegisterSocketRoutes(r, d.Store, d.Hub, cfg.AuthMaxSkew)
	}

	return r
}

func accessLog(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("Request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"request_id", auth.RequestID(c),
		)
	}
}

// Server serves the router on cfg.Addr().
type Server struct {
	addr      string
	handler   http.Handler
	server    *http.Server
	listener  net.Listener
	ctx       context.Context
	cancel    context.CancelFunc
	log       *slog.Logger
	writeWait time.Duration
}

// NewServer creates a server for the given profile and collaborators.
func NewServer(cfg config.Config, d Deps) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	// Celebration responses are written only after the strip has finished.
	writeWait := 30 * time.Second
	if cfg.CelebrationTimeout+5*time.Second > writeWait {
		writeWait = cfg.CelebrationTimeout + 5*time.Second
	}

	return &Server{
		addr:      cfg.Addr(),
		handler:   NewRouter(cfg, d),
		ctx:       ctx,
		cancel:    cancel,
		log:       logger.Get(logger.HTTP),
		writeWait: writeWait,
	}
}

// Start binds the listener and begins serving in the background.
func (s *Server) Start() error {
	s.server = &http.Server{
		Handler:           s.handler,
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      s.writeWait,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.log.Info("Webhook server listening", "addr", listener.Addr().String())

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("HTTP server stopped", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
