// Package api provides the local HTTP REST API and WebSocket server for displayd.
//
// It exposes the display registry to local tools and dashboards: monitor
// listing, brightness and contrast control, history, rescans, diagnostics and
// a live event stream.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-displays/internal/diagnostics"
	"github.com/nerrad567/gray-logic-displays/internal/display"
	"github.com/nerrad567/gray-logic-displays/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-displays/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-displays/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// MQTTStatus reports broker connectivity for the metrics endpoint.
// *mqtt.Client satisfies it.
type MQTTStatus interface {
	IsConnected() bool
	SubscriptionCount() int
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	Registry *display.Registry

	// History serves /monitors/{slug}/history. Nil disables the endpoint.
	History display.HistoryRepository

	// MQTT and DB are optional and only feed /metrics.
	MQTT MQTTStatus
	DB   *database.DB

	// Diagnostics configures GET /diagnostics probes.
	Diagnostics diagnostics.Options

	Version string
}

// Server is the HTTP API server for displayd.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	registry  *display.Registry
	history   display.HistoryRepository
	mqtt      MQTTStatus
	db        *database.DB
	diagOpts  diagnostics.Options
	version   string
	startTime time.Time

	server         *http.Server
	hub            *Hub
	removeListener func()
	cancel         context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("display registry is required")
	}

	diagOpts := deps.Diagnostics
	if diagOpts.Version == "" {
		diagOpts.Version = deps.Version
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		registry:  deps.Registry,
		history:   deps.History,
		mqtt:      deps.MQTT,
		db:        deps.DB,
		diagOpts:  diagOpts,
		version:   deps.Version,
		startTime: time.Now(),
		hub:       NewHub(deps.WS, deps.Logger),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, relays registry events to it, and launches
// the HTTP listener in a background goroutine. The server can be stopped
// with Close().
func (s *Server) Start(ctx context.Context) error {
	// Internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	s.removeListener = s.registry.AddListener(s.broadcastEvent)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// broadcastEvent relays a registry event to WebSocket clients on the
// channel named after its type.
func (s *Server) broadcastEvent(ev display.Event) {
	s.hub.Broadcast(string(ev.Type), ev)
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.removeListener != nil {
		s.removeListener()
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
