// Package server wires configuration, logging, metrics, the buffer
// manager and the HTTP API into one runnable process.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/AgentOS/webterm/internal/api/http"
	"github.com/GriffinCanCode/AgentOS/webterm/internal/api/middleware"
	"github.com/GriffinCanCode/AgentOS/webterm/internal/api/ws"
	"github.com/GriffinCanCode/AgentOS/webterm/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/webterm/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/webterm/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/webterm/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/AgentOS/webterm/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/webterm/internal/providers/clipboard"
	"github.com/GriffinCanCode/AgentOS/webterm/internal/surface"
	"github.com/GriffinCanCode/AgentOS/webterm/internal/surface/chrome"
	"github.com/GriffinCanCode/AgentOS/webterm/internal/surface/sandbox"
	"github.com/GriffinCanCode/AgentOS/webterm/internal/terminal"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the HTTP server and dependencies
type Server struct {
	config  *config.Config
	logger  *logging.Logger
	metrics *monitoring.Metrics
	tracer  *tracing.Tracer
	hub     *ws.Hub
	manager *terminal.Manager
	router  *gin.Engine
	http    *http.Server
}

// Option customizes a Server.
type Option func(*options)

type options struct {
	logger     *logging.Logger
	newSurface surface.Factory
	launcher   terminal.Launcher
	clipboard  clipboard.Clipboard
}

// WithLogger replaces the logger built from the config.
func WithLogger(l *logging.Logger) Option { return func(o *options) { o.logger = l } }

// WithSurfaceFactory replaces the driver selected by the config.
func WithSurfaceFactory(f surface.Factory) Option { return func(o *options) { o.newSurface = f } }

// WithLauncher replaces the os/exec terminal-server launcher.
func WithLauncher(l terminal.Launcher) Option { return func(o *options) { o.launcher = l } }

// WithClipboard replaces the system clipboard.
func WithClipboard(c clipboard.Clipboard) Option { return func(o *options) { o.clipboard = c } }

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		var err error
		logger, err = newLogger(cfg.Logging)
		if err != nil {
			return nil, err
		}
	}
	logger.Info("initializing webterm",
		zap.String("addr", addr(cfg.Server)),
		zap.String("surface", surfaceDriver(cfg.Surface)),
		zap.Strings("terminal_server", cfg.Terminal.ServerCommand),
	)

	metrics := monitoring.NewMetrics()
	tracer := tracing.New("webterm", logger)
	hub := ws.NewHub(logger, metrics)

	newSurface := o.newSurface
	if newSurface == nil {
		f, err := surfaceFactory(cfg.Surface, logger)
		if err != nil {
			tracer.Close()
			return nil, err
		}
		newSurface = f
	}

	darkMode, err := terminal.ParseDarkMode(cfg.Terminal.DarkMode)
	if err != nil {
		tracer.Close()
		return nil, fmt.Errorf("terminal dark_mode: %w", err)
	}

	manager := terminal.NewManager(terminal.Options{
		Command: cfg.Terminal.Shell,
		Vars: terminal.HostVars{
			DarkMode:  darkMode,
			ThemeMode: cfg.Terminal.ThemeMode,
			FontSize:  cfg.Terminal.FontSize,
		},
		ServerCommand: cfg.Terminal.ServerCommand,
		TemplatePath:  cfg.Terminal.TemplatePath,
		AssetsURL:     cfg.Terminal.AssetsURL,
		PollInterval:  cfg.Terminal.PollInterval.Std(),
		FocusDelay:    cfg.Terminal.FocusDelay.Std(),
		ReadyTimeout:  cfg.Terminal.ReadyTimeout.Std(),
		CallTimeout:   cfg.Surface.CallTimeout.Std(),
		OutputBytes:   cfg.Terminal.OutputBytes,
		Launcher:      o.launcher,
		NewSurface:    newSurface,
		Clipboard:     o.clipboard,
		Host:          hub,
		Logger:        logger,
		Metrics:       metrics,
	})
	hub.SetExecutor(manager)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.AccessLog(logger), middleware.Recovery(logger))
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	router.Use(middleware.BodyLimit(middleware.MaxBodySize))
	if cfg.RateLimit.Enabled {
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
		logger.Info("rate limiting enabled",
			zap.Int("rps", rl.RequestsPerSecond),
			zap.Int("burst", rl.Burst),
		)
	}
	apihttp.NewHandlers(manager, hub, metrics, tracer, logger).Register(router)

	s := &Server{
		config:  cfg,
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
		hub:     hub,
		manager: manager,
		router:  router,
	}
	s.http = &http.Server{
		Addr:              addr(cfg.Server),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func newLogger(cfg config.LogConfig) (*logging.Logger, error) {
	lc := logging.DefaultConfig()
	if cfg.Development {
		lc = logging.DevelopmentConfig()
	}
	if cfg.Level != "" {
		lc.Level = cfg.Level
	}
	return logging.New(lc)
}

func addr(cfg config.ServerConfig) string {
	return net.JoinHostPort(cfg.Host, cfg.Port)
}

const (
	driverChrome  = "chrome"
	driverSandbox = "sandbox"
)

// surfaceDriver resolves the configured driver name. An empty name means
// the real browser.
func surfaceDriver(cfg config.SurfaceConfig) string {
	if cfg.Driver == "" {
		return driverChrome
	}
	return cfg.Driver
}

// surfaceFactory builds the page renderer named by cfg.Driver, guarded by
// a circuit breaker.
func surfaceFactory(cfg config.SurfaceConfig, logger *logging.Logger) (surface.Factory, error) {
	var f surface.Factory
	switch driver := surfaceDriver(cfg); driver {
	case driverChrome:
		f = chrome.Factory(chrome.Config{
			Bin:        cfg.ChromeBin,
			ControlURL: cfg.ChromeURL,
			Headless:   cfg.Headless,
		}, logger.Named("chrome"))
	case driverSandbox:
		// The sandbox never fetches <script src>, so pages that build the
		// terminal from external assets stay inert under it.
		logger.Warn("sandbox surface runs inline scripts only; external terminal assets will not load")
		sc := sandbox.DefaultConfig()
		sc.Timeout = cfg.CallTimeout.Std()
		f = sandbox.Factory(sc, logger.Named("sandbox"))
	default:
		return nil, fmt.Errorf("unknown surface driver %q", driver)
	}

	failures := uint32(cfg.BreakerFailures)
	if cfg.BreakerFailures <= 0 {
		return f, nil
	}
	breaker := resilience.New("surface", resilience.Settings{
		Cooldown: cfg.BreakerCooldown.Std(),
		Trip:     func(c resilience.Counts) bool { return c.ConsecutiveFailures >= failures },
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})
	return surface.Guarded(f, breaker), nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Manager returns the buffer manager.
func (s *Server) Manager() *terminal.Manager { return s.manager }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.http.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("starting HTTP server", zap.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.Close(context.Background())
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Close(shutdownCtx)
}

// Close stops accepting requests, closes every buffer and flushes logs.
func (s *Server) Close(ctx context.Context) error {
	s.logger.Info("shutting down server")
	var errs []error
	if err := s.http.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := s.manager.CloseAll(ctx); err != nil {
		errs = append(errs, err)
	}
	s.hub.Close()
	s.tracer.Close()
	_ = s.logger.Sync()
	return errors.Join(errs...)
}
