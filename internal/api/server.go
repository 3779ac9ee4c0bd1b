package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-appliance-bridge/internal/audit"
	"github.com/nerrad567/gray-logic-appliance-bridge/internal/device"
	"github.com/nerrad567/gray-logic-appliance-bridge/internal/field"
	"github.com/nerrad567/gray-logic-appliance-bridge/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-appliance-bridge/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// DeviceService is the device surface the API serves. *device.Manager
// satisfies it.
type DeviceService interface {
	List() []*device.Device
	Get(id string) (*device.Device, error)
	SetProperty(ctx context.Context, deviceID, name string, v field.Value) error
	Stats() device.Stats
}

// FailureLister lists recorded transform failures. *device.SQLiteFailureLog
// satisfies it.
type FailureLister interface {
	List(ctx context.Context, deviceID string) ([]device.Failure, error)
}

// CommandLister lists recorded property writes. *audit.SQLiteRepository
// satisfies it.
type CommandLister interface {
	List(ctx context.Context, filter audit.Filter) (*audit.ListResult, error)
}

// HealthChecker is implemented by infrastructure clients (database, MQTT,
// InfluxDB).
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Devices  DeviceService
	Failures FailureLister            // optional
	Commands CommandLister            // optional
	Checks   map[string]HealthChecker // reported by /health
	Hub      *Hub                     // if set, used instead of an internal hub
	Version  string
}

// Server is the HTTP API server.
type Server struct {
	cfg            config.APIConfig
	wsCfg          config.WebSocketConfig
	jwtSecret      string
	allowedOrigins []string
	upgrader       websocket.Upgrader
	logger         *logging.Logger
	devices        DeviceService
	failures       FailureLister
	commands       CommandLister
	checks         map[string]HealthChecker
	version        string
	server         *http.Server
	listener       net.Listener
	hub            *Hub
	externalHub    bool
	cancel         context.CancelFunc
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Devices == nil {
		return nil, fmt.Errorf("device service is required")
	}
	if deps.Security.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	s := &Server{
		cfg:            deps.Config,
		wsCfg:          deps.WS,
		jwtSecret:      deps.Security.JWT.Secret,
		allowedOrigins: deps.Security.AllowedOrigins,
		logger:         deps.Logger,
		devices:        deps.Devices,
		failures:       deps.Failures,
		commands:       deps.Commands,
		checks:         deps.Checks,
		version:        deps.Version,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	if deps.Hub != nil {
		s.hub = deps.Hub
		s.externalHub = true
	}
	return s, nil
}

// Hub returns the server's WebSocket hub, or nil before Start when none
// was injected.
func (s *Server) Hub() *Hub { return s.hub }

// Start binds the listener and serves in a background goroutine. The
// server can be stopped with Close().
//
// Returns:
//   - error: If the listener cannot be bound (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
	}
	if !s.externalHub {
		go s.hub.Run(srvCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("binding API listener: %w", err)
	}
	s.listener = ln
	s.logger.Info("API server listening", "address", ln.Addr().String())

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server, waiting up to 10 seconds for
// in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
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

// HealthCheck verifies the API server is running.
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
