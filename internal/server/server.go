package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/GriffinCanCode/remplhost/internal/config"
	"github.com/GriffinCanCode/remplhost/internal/editor"
	handlers "github.com/GriffinCanCode/remplhost/internal/http"
	"github.com/GriffinCanCode/remplhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/remplhost/internal/logging"
	"github.com/GriffinCanCode/remplhost/internal/middleware"
	"github.com/GriffinCanCode/remplhost/internal/remote"
	"github.com/GriffinCanCode/remplhost/internal/sandbox"
	"github.com/GriffinCanCode/remplhost/internal/settings"
	"github.com/GriffinCanCode/remplhost/internal/transport"
	"github.com/GriffinCanCode/remplhost/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Version is reported by /, /health and getHostInfo
const Version = "0.3.0"

// Server wraps the HTTP server and the host it exposes
type Server struct {
	router    *gin.Engine
	handler   http.Handler
	http      *http.Server
	config    *config.Config
	logger    *logging.Logger
	metrics   *monitoring.Metrics
	registry  *prometheus.Registry
	window    *transport.Window
	transport *transport.Transport
	settings  *settings.Store
	workspace *editor.Workspace
	plugin    *editor.Plugin
	pool      *sandbox.Pool
	remote    *remote.Client
	wsHandler *ws.Handler
	debugSub  settings.Disposable

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	loop    chan struct{}
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	logger.Info("Initializing rempl host",
		zap.String("port", cfg.Server.Port),
		zap.String("transport", cfg.Transport.Name),
		zap.String("connect_to", cfg.Transport.ConnectTo),
		zap.String("workspace", cfg.Editor.WorkspaceRoot),
	)

	// Metrics are registered first; every component reports into them
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(registry)

	store := settings.NewStore(cfg.Editor.SettingsPath)
	if err := store.Load(); err != nil {
		logger.Warn("Failed to load settings", zap.Error(err))
	}
	if cfg.Transport.Debug {
		_ = store.Set(settings.KeyDebug, true)
	}
	if cfg.Editor.ServerURL != "" && cfg.Editor.ServerURL != settings.DefaultServerURL {
		_ = store.Set(settings.KeyServerURL, cfg.Editor.ServerURL)
	}
	debugSub := store.Observe(settings.KeyDebug, func(value interface{}) {
		enabled, _ := value.(bool)
		logger.SetDebug(enabled)
	})

	window := transport.NewWindow(logger.Named("window"))
	tr := transport.New(window, transport.Config{
		Name:      cfg.Transport.Name,
		ConnectTo: cfg.Transport.ConnectTo,
		Logger:    logger.Logger,
		Metrics:   metrics,
		Settings:  store,
	})
	logger.Info("Transport ready", zap.String("channel", tr.InputChannelID()))

	workspace, err := editor.NewWorkspace(cfg.Editor.WorkspaceRoot)
	if err != nil {
		debugSub.Dispose()
		tr.Dispose()
		return nil, fmt.Errorf("failed to open workspace: %w", err)
	}

	sandboxCfg := sandbox.DefaultConfig()
	sandboxCfg.Timeout = cfg.Sandbox.Timeout
	sandboxCfg.Logger = logger.Logger
	pool, err := sandbox.NewPool(sandboxCfg, cfg.Sandbox.PoolSize)
	if err != nil {
		debugSub.Dispose()
		tr.Dispose()
		return nil, fmt.Errorf("failed to create sandbox pool: %w", err)
	}

	remoteCfg := remote.DefaultConfig()
	remoteCfg.Timeout = cfg.Remote.Timeout
	remoteCfg.Retries = cfg.Remote.Retries
	remoteCfg.Logger = logger.Logger
	client := remote.NewClient(remoteCfg)

	plugin, err := editor.NewPlugin(editor.Options{
		Version:   Version,
		Workspace: workspace,
		Transport: tr,
		Opener:    editor.NewSandboxOpener(pool, window, client, logger.Logger),
		Dialog:    editor.NewServerDialog(store.String(settings.KeyServerURL), client),
		State:     editor.NewStateStore(cfg.Editor.StatePath),
		Metrics:   metrics,
		Logger:    logger.Logger,
	})
	if err != nil {
		debugSub.Dispose()
		tr.Dispose()
		_ = pool.Close()
		return nil, err
	}

	wsCfg := ws.DefaultConfig()
	wsCfg.MessagesPerSecond = cfg.WS.MessagesPerSecond
	wsCfg.Burst = cfg.WS.Burst
	wsHandler := ws.NewHandler(window, tr, wsCfg, metrics, logger.Logger)
	wsHandler.OnConnect(func(c *ws.Conn) { plugin.AttachEndpoint(c) })
	wsHandler.OnDisconnect(func(c *ws.Conn) { plugin.DetachEndpoint(c) })

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger.Logger))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	h := handlers.NewHandlers(plugin, tr, store, client, metrics, Version, wsHandler.Connections)

	// Register routes
	router.GET("/", h.Root)
	router.GET("/health", h.Health)

	// Views
	router.GET("/views", h.ListViews)
	router.POST("/views", h.OpenView)
	router.GET("/views/:id", h.GetView)
	router.DELETE("/views/:id", h.CloseView)

	// Environments
	router.POST("/broadcast", h.Broadcast)
	router.POST("/probe", h.Probe)

	// Settings
	router.GET("/settings", h.ListSettings)
	router.POST("/debug", h.SetDebug)

	// WebSocket endpoints
	router.GET("/stream", wsHandler.HandleConnection)

	// Metrics
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry, DisableCompression: true})))

	logger.Info("Server initialized successfully")

	// Responses are gzipped; upgrades go straight to the router
	compressed := gzhttp.GzipHandler(router)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if websocket.IsWebSocketUpgrade(r) {
			router.ServeHTTP(w, r)
			return
		}
		compressed.ServeHTTP(w, r)
	})

	return &Server{
		router:    router,
		handler:   handler,
		config:    cfg,
		logger:    logger,
		metrics:   metrics,
		registry:  registry,
		window:    window,
		transport: tr,
		settings:  store,
		workspace: workspace,
		plugin:    plugin,
		pool:      pool,
		remote:    client,
		wsHandler: wsHandler,
		debugSub:  debugSub,
	}, nil
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler { return s.handler }

// Plugin returns the editor plugin
func (s *Server) Plugin() *editor.Plugin { return s.plugin }

// Transport returns the host transport
func (s *Server) Transport() *transport.Transport { return s.transport }

// Settings returns the settings store
func (s *Server) Settings() *settings.Store { return s.settings }

// Start runs the message loop, activates the plugin and restores saved
// views. It does not serve HTTP.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	loopCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.loop = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.loop)
		_ = s.window.Run(loopCtx)
	}()

	s.plugin.Activate()

	restored, err := s.plugin.RestoreState(ctx)
	if err != nil {
		s.logger.Warn("Failed to restore views", zap.Error(err))
	} else if restored > 0 {
		s.logger.Info("Restored views", zap.Int("views", restored))
	}
	return nil
}

// Run starts the host and serves HTTP until Shutdown
func (s *Server) Run() error {
	if err := s.Start(context.Background()); err != nil {
		return err
	}

	addr := net.JoinHostPort(s.config.Server.Host, s.config.Server.Port)
	s.mu.Lock()
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.http
	s.mu.Unlock()

	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown saves state and releases everything the server owns
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var errs []error

	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop http server: %w", err))
		}
	}
	s.wsHandler.Shutdown(ctx)

	if s.plugin.Active() {
		if err := s.plugin.SaveState(); err != nil {
			errs = append(errs, fmt.Errorf("failed to save views: %w", err))
		}
	}
	if err := s.settings.Save(); err != nil {
		errs = append(errs, fmt.Errorf("failed to save settings: %w", err))
	}

	for _, view := range s.plugin.Views() {
		s.plugin.CloseView(view.ID())
	}
	s.plugin.Deactivate()
	s.debugSub.Dispose()
	s.transport.Dispose()

	s.mu.Lock()
	cancel, loop := s.cancel, s.loop
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		select {
		case <-loop:
		case <-ctx.Done():
		}
	}

	if err := s.pool.Close(); err != nil {
		errs = append(errs, err)
	}

	_ = s.logger.Sync()
	return errors.Join(errs...)
}
