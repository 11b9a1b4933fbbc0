package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	nethttp "net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"

	"github.com/AutomataNexus/remote-portal/internal/api/http"
	"github.com/AutomataNexus/remote-portal/internal/api/middleware"
	"github.com/AutomataNexus/remote-portal/internal/api/ws"
	"github.com/AutomataNexus/remote-portal/internal/infrastructure/config"
	"github.com/AutomataNexus/remote-portal/internal/infrastructure/logging"
	"github.com/AutomataNexus/remote-portal/internal/infrastructure/monitoring"
	"github.com/AutomataNexus/remote-portal/internal/infrastructure/resilience"
	"github.com/AutomataNexus/remote-portal/internal/infrastructure/tracing"
	"github.com/AutomataNexus/remote-portal/internal/providers/notify"
	"github.com/AutomataNexus/remote-portal/internal/providers/proxy"
	"github.com/AutomataNexus/remote-portal/internal/providers/system"
	"github.com/AutomataNexus/remote-portal/internal/providers/terminal"
	"github.com/AutomataNexus/remote-portal/internal/providers/weather"
	"github.com/AutomataNexus/remote-portal/web"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router     *gin.Engine
	httpServer *nethttp.Server
	terminals  *terminal.Manager
	logger     *logging.Logger
	config     *config.Config
	metrics    *monitoring.Metrics
}

// Option customizes server construction.
type Option func(*options)

type options struct {
	logger *logging.Logger
	runner system.Runner
}

// WithLogger uses logger instead of one built from the configuration.
func WithLogger(logger *logging.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithProbeRunner replaces the command runner of the system probe.
func WithProbeRunner(runner system.Runner) Option {
	return func(o *options) { o.runner = runner }
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, opts ...Option) (*Server, error) {
	o := options{runner: system.ExecRunner{}}
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		var err error
		logger, err = NewLogger(cfg.Logging)
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}

	logger.Info("Initializing AutomataNexus Remote Portal",
		zap.String("addr", cfg.Addr()),
		zap.String("serial", cfg.Controller.Serial),
		zap.String("location", cfg.Controller.Location),
	)
	if cfg.Auth.APIKey == "" {
		logger.Warn("API_AUTH_KEY is not set; every /api request will be rejected")
	}

	// Initialize metrics first (needed by other components)
	metrics := monitoring.NewMetrics()

	tracer := tracing.New("portal", logger.Logger)

	public, err := web.Public(cfg.Server.PublicDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open public files: %w", err)
	}

	flowProxy, err := proxy.New(cfg.Proxy.Target, cfg.Proxy.Prefix, logger.Named("proxy"), metrics)
	if err != nil {
		return nil, err
	}

	// Providers
	probe := system.NewProbe(o.runner, system.Identity{
		Serial:   cfg.Controller.Serial,
		Location: cfg.Controller.Location,
	}, logger.Named("probe"), metrics)

	weatherService := weather.NewService(weather.Config{
		Enabled:       bool(cfg.Weather.Enabled),
		Location:      cfg.Weather.Location,
		Units:         cfg.Weather.Units,
		APIKey:        cfg.Weather.APIKey,
		BaseURL:       cfg.Weather.BaseURL,
		SiteLocation:  cfg.Controller.Location,
		RatePerSecond: cfg.Weather.RatePerSecond,
		Breaker: resilience.Settings{
			Threshold: cfg.Weather.BreakerThreshold,
			Cooldown:  cfg.Weather.BreakerCooldown,
		},
	}, logger.Named("weather"), metrics)

	sender := notify.NewSender(notify.Config{
		APIKey:        cfg.Email.APIKey,
		From:          cfg.Email.From,
		To:            cfg.Email.To,
		BaseURL:       cfg.Email.BaseURL,
		Serial:        cfg.Controller.Serial,
		Location:      cfg.Controller.Location,
		RatePerSecond: cfg.Email.RatePerSecond,
		Breaker: resilience.Settings{
			Threshold: cfg.Email.BreakerThreshold,
			Cooldown:  cfg.Email.BreakerCooldown,
		},
	}, logger.Named("notify"), metrics)

	terminals := terminal.NewManager(terminal.Options{
		Shell:   cfg.Terminal.Shell,
		HomeDir: cfg.Terminal.HomeDir,
	}, logger.Named("terminal"), metrics)

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(middleware.CORSConfigFromOrigin(cfg.CORS.Origin)))

	// Create handlers
	handlers := http.NewHandlers(http.Deps{
		Probe:    probe,
		Weather:  weatherService,
		Notifier: sender,
		Sessions: terminals,
		Logs:     logger.Recent(),
		Stats:    metrics,
		Config:   cfg,
		Logger:   logger.Logger,
	})
	wsHandler := ws.NewHandler(terminals, ws.Config{
		Serial:     cfg.Controller.Serial,
		APIKey:     cfg.Auth.APIKey,
		RequireKey: cfg.Auth.TerminalRequireKey,
	}, logger.Named("ws"), metrics)

	// Register routes
	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// One limiter covers every /api path, routed or not.
	var limit gin.HandlerFunc
	api := router.Group("/api")
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("max", cfg.RateLimit.Max),
			zap.Duration("window", cfg.RateLimit.Window),
		)
		limit = middleware.RateLimit(middleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
		})
		api.Use(limit)
	}
	api.Use(middleware.APIKey(cfg.Auth.APIKey, logger.Logger))
	api.Use(middleware.BodyLimit(middleware.MaxBodySize))
	{
		api.GET("/system-info", handlers.SystemInfo)
		api.GET("/weather", handlers.Weather)
		api.POST("/notifications", handlers.SendNotification)
		api.GET("/logs", handlers.GetLogs)
		api.POST("/logs", handlers.StreamLogs)
		api.GET("/config", handlers.GetConfig)
		api.GET("/terminals", handlers.Terminals)
	}

	// Flow editor
	router.Any(flowProxy.Prefix()+"/*path", gin.WrapH(flowProxy))

	// Terminal socket
	router.GET("/ws/terminal", wsHandler.HandleConnection)

	// Static files
	if err := mountStatic(router, public); err != nil {
		return nil, err
	}
	index, err := fs.ReadFile(public, web.IndexFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", web.IndexFile, err)
	}
	fallback := []gin.HandlerFunc{spaFallback(index, cfg.Auth.APIKey)}
	if limit != nil {
		fallback = append([]gin.HandlerFunc{apiOnly(limit)}, fallback...)
	}
	router.NoRoute(fallback...)

	logger.Info("Server initialized successfully",
		zap.String("node_red", cfg.Proxy.Target),
		zap.Bool("weather_enabled", bool(cfg.Weather.Enabled)),
	)

	return &Server{
		router: router,
		httpServer: &nethttp.Server{
			Addr:    cfg.Addr(),
			Handler: router,
		},
		terminals: terminals,
		logger:    logger,
		config:    cfg,
		metrics:   metrics,
	}, nil
}

// NewLogger builds the process logger from the logging configuration.
func NewLogger(cfg config.LogConfig) (*logging.Logger, error) {
	lc := logging.DefaultConfig()
	if cfg.Development {
		lc = logging.DevelopmentConfig()
	}
	if cfg.Level != "" {
		lc.Level = cfg.Level
	}
	if cfg.RecentSize > 0 {
		lc.RecentSize = cfg.RecentSize
	}
	if cfg.ToFile {
		lc.FileDir = cfg.Path
	}
	return logging.New(lc)
}

// mountStatic serves /static from the public root and /assets from
// public/assets, gzip-compressed when the client accepts it.
func mountStatic(router *gin.Engine, public fs.FS) error {
	assets, err := fs.Sub(public, "assets")
	if err != nil {
		return fmt.Errorf("failed to open assets: %w", err)
	}

	static := gzhttp.GzipHandler(nethttp.StripPrefix("/static", nethttp.FileServer(nethttp.FS(public))))
	router.GET("/static/*filepath", gin.WrapH(static))
	router.HEAD("/static/*filepath", gin.WrapH(static))

	assetHandler := gzhttp.GzipHandler(nethttp.StripPrefix("/assets", nethttp.FileServer(nethttp.FS(assets))))
	router.GET("/assets/*filepath", gin.WrapH(assetHandler))
	router.HEAD("/assets/*filepath", gin.WrapH(assetHandler))
	return nil
}

func isAPIPath(path string) bool {
	return path == "/api" || strings.HasPrefix(path, "/api/")
}

// apiOnly runs h for /api paths and passes everything else through.
func apiOnly(h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if isAPIPath(c.Request.URL.Path) {
			h(c)
			return
		}
		c.Next()
	}
}

// spaFallback serves the SPA shell for unknown GET paths. Unknown /api paths
// stay behind the key check and answer with JSON.
func spaFallback(index []byte, apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if isAPIPath(c.Request.URL.Path) {
			if !middleware.KeyMatches(apiKey, c.GetHeader(middleware.APIKeyHeader)) {
				c.JSON(nethttp.StatusUnauthorized, gin.H{"error": "Unauthorized"})
				return
			}
			c.JSON(nethttp.StatusNotFound, gin.H{"error": "Not found"})
			return
		}

		if c.Request.Method != nethttp.MethodGet && c.Request.Method != nethttp.MethodHead {
			c.JSON(nethttp.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		c.Data(nethttp.StatusOK, "text/html; charset=utf-8", index)
	}
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() nethttp.Handler {
	return s.router
}

// Logger returns the server logger.
func (s *Server) Logger() *logging.Logger {
	return s.logger
}

// Terminals returns the terminal session manager.
func (s *Server) Terminals() *terminal.Manager {
	return s.terminals
}

// Run starts the HTTP server and blocks until it stops. A graceful Shutdown
// makes Run return nil.
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server",
		zap.String("addr", s.httpServer.Addr),
		zap.String("node_red_proxy", s.config.Proxy.Prefix),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, kills every terminal session and waits
// for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	err := s.httpServer.Shutdown(ctx)
	// Hijacked terminal sockets are not tracked by http.Server.
	s.terminals.CloseAll()

	_ = s.logger.Sync()
	return err
}
