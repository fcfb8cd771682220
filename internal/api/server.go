package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/seqtester/internal/archive"
	"github.com/nerrad567/seqtester/internal/camera"
	"github.com/nerrad567/seqtester/internal/infrastructure/config"
	"github.com/nerrad567/seqtester/internal/infrastructure/database"
	"github.com/nerrad567/seqtester/internal/infrastructure/logging"
	"github.com/nerrad567/seqtester/internal/infrastructure/mqtt"
	"github.com/nerrad567/seqtester/internal/setting"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	Settings *setting.Logger
	Camera   *camera.Simulator
	Frames   archive.Repository // optional
	MQTT     *mqtt.Client       // optional
	DB       *database.DB       // optional, used for health and metrics

	// FrameInterval is the sequence interval used when a request omits one.
	FrameInterval time.Duration
	Version       string
}

// Server is the HTTP API server for the sequence tester.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg           config.APIConfig
	wsCfg         config.WebSocketConfig
	logger        *logging.Logger
	settings      *setting.Logger
	camera        *camera.Simulator
	frames        archive.Repository
	mqtt          *mqtt.Client
	db            *database.DB
	frameInterval time.Duration
	version       string
	startTime     time.Time

	hub    *Hub
	server *http.Server
	addr   net.Addr
	ctx    context.Context    // server lifetime; parent of sequence acquisitions
	cancel context.CancelFunc // stops the hub and any sequence on Close()
}

// New creates a new API server with the given dependencies.
//
// The WebSocket hub exists from construction so it can be registered as a
// camera sink before the server starts. The server is not started until
// Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, settings, camera)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Settings == nil {
		return nil, fmt.Errorf("setting logger is required")
	}
	if deps.Camera == nil {
		return nil, fmt.Errorf("camera is required")
	}
	if deps.FrameInterval <= 0 {
		deps.FrameInterval = 100 * time.Millisecond
	}

	return &Server{
		cfg:           deps.Config,
		wsCfg:         deps.WS,
		logger:        deps.Logger,
		settings:      deps.Settings,
		camera:        deps.Camera,
		frames:        deps.Frames,
		mqtt:          deps.MQTT,
		db:            deps.DB,
		frameInterval: deps.FrameInterval,
		version:       deps.Version,
		startTime:     time.Now(),
		hub:           NewHub(deps.WS, deps.Logger),
		ctx:           context.Background(),
	}, nil
}

// Hub returns the WebSocket hub. It implements camera.Sink.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the fully wired HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, binds the listener synchronously so port
// conflicts are reported here, and serves in a background goroutine. The
// server can be stopped with Close().
//
// Parameters:
//   - ctx: Parent context for the hub and sequence acquisitions (not used
//     for listener lifetime)
//
// Returns:
//   - error: If the listener cannot be bound
func (s *Server) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(s.ctx)

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
		return fmt.Errorf("listening on %s: %w", s.server.Addr, err)
	}
	s.addr = ln.Addr()

	s.logger.Info("API server starting", "address", s.addr.String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// sequenceContext returns the context sequence acquisitions run under.
func (s *Server) sequenceContext() context.Context {
	return s.ctx
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
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

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
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
