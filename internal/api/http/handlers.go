package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/AutomataNexus/remote-portal/internal/infrastructure/config"
	"github.com/AutomataNexus/remote-portal/internal/infrastructure/logging"
	"github.com/AutomataNexus/remote-portal/internal/infrastructure/monitoring"
	"github.com/AutomataNexus/remote-portal/internal/infrastructure/tracing"
	"github.com/AutomataNexus/remote-portal/internal/providers/notify"
	"github.com/AutomataNexus/remote-portal/internal/providers/system"
	"github.com/AutomataNexus/remote-portal/internal/providers/terminal"
	"github.com/AutomataNexus/remote-portal/internal/providers/weather"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Version is reported by the health endpoint.
const Version = "2.0.0"

// MetricsProbe produces the controller health snapshot.
type MetricsProbe interface {
	Collect(ctx context.Context) (*system.Info, error)
}

// WeatherSource answers current conditions; it never fails.
type WeatherSource interface {
	Current(ctx context.Context) *weather.Report
}

// Notifier delivers alert emails.
type Notifier interface {
	Send(ctx context.Context, n notify.Notification) (string, error)
}

// SessionLister reports live terminal sessions.
type SessionLister interface {
	Count() int
	List() []terminal.SessionInfo
}

// LogSource serves recent log entries.
type LogSource interface {
	Get(limit int, level string) []logging.Entry
	Len() int
	Cap() int
}

// RequestStats reports running request totals.
type RequestStats interface {
	UptimeSeconds() float64
	Snapshot() monitoring.Snapshot
}

// Deps are the collaborators of the REST handlers.
type Deps struct {
	Probe    MetricsProbe
	Weather  WeatherSource
	Notifier Notifier
	Sessions SessionLister
	Logs     LogSource
	Stats    RequestStats
	Config   *config.Config
	Logger   *zap.Logger
}

// Handlers contains all HTTP handlers
type Handlers struct {
	probe    MetricsProbe
	weather  WeatherSource
	notifier Notifier
	sessions SessionLister
	logs     LogSource
	stats    RequestStats
	cfg      *config.Config
	logger   *zap.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(deps Deps) *Handlers {
	return &Handlers{
		probe:    deps.Probe,
		weather:  deps.Weather,
		notifier: deps.Notifier,
		sessions: deps.Sessions,
		logs:     deps.Logs,
		stats:    deps.Stats,
		cfg:      deps.Config,
		logger:   deps.Logger,
	}
}

// Health handles the liveness check
func (h *Handlers) Health(c *gin.Context) {
	body := gin.H{
		"status":            "healthy",
		"service":           "AutomataNexus Remote Portal",
		"version":           Version,
		"terminal_sessions": h.sessions.Count(),
	}
	if h.stats != nil {
		body["uptime_seconds"] = int64(h.stats.UptimeSeconds())
		body["requests"] = h.stats.Snapshot()
	}
	c.JSON(http.StatusOK, body)
}

// Terminals lists the live terminal sessions, oldest first
func (h *Handlers) Terminals(c *gin.Context) {
	sessions := h.sessions.List()
	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// SystemInfo returns the controller health snapshot
func (h *Handlers) SystemInfo(c *gin.Context) {
	ctx := c.Request.Context()

	info, err := h.probe.Collect(ctx)
	if err != nil {
		h.logger.Error("system info error", zap.Error(err), tracing.Field(ctx))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.logger.Info("system info requested", tracing.Field(ctx))
	c.JSON(http.StatusOK, info)
}

// Weather returns current conditions or a placeholder
func (h *Handlers) Weather(c *gin.Context) {
	c.JSON(http.StatusOK, h.weather.Current(c.Request.Context()))
}

// SendNotification emails an alert to the site administrator
func (h *Handlers) SendNotification(c *gin.Context) {
	var req notify.Notification
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification request"})
		return
	}

	id, err := h.notifier.Send(c.Request.Context(), req)
	switch {
	case errors.Is(err, notify.ErrInvalidNotification):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		// Provider details stay in the log.
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send notification"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"messageId": id,
	})
}

// GetConfig returns the effective configuration with secrets masked
func (h *Handlers) GetConfig(c *gin.Context) {
	r := h.cfg.Redacted()

	c.JSON(http.StatusOK, gin.H{
		"server": gin.H{
			"host":       r.Server.Host,
			"port":       r.Server.Port,
			"public_dir": r.Server.PublicDir,
		},
		"auth": gin.H{
			"api_key":              r.Auth.APIKey,
			"terminal_require_key": r.Auth.TerminalRequireKey,
		},
		"cors": gin.H{"origin": r.CORS.Origin},
		"rate_limit": gin.H{
			"enabled": r.RateLimit.Enabled,
			"max":     r.RateLimit.Max,
			"window":  r.RateLimit.Window.String(),
		},
		"weather": gin.H{
			"enabled":           r.Weather.Enabled,
			"location":          r.Weather.Location,
			"units":             r.Weather.Units,
			"api_key":           r.Weather.APIKey,
			"rate_per_second":   r.Weather.RatePerSecond,
			"breaker_threshold": r.Weather.BreakerThreshold,
		},
		"email": gin.H{
			"from":              r.Email.From,
			"to":                r.Email.To,
			"api_key":           r.Email.APIKey,
			"rate_per_second":   r.Email.RatePerSecond,
			"breaker_threshold": r.Email.BreakerThreshold,
		},
		"controller": gin.H{
			"serial":   r.Controller.Serial,
			"location": r.Controller.Location,
		},
		"proxy": gin.H{
			"target": r.Proxy.Target,
			"prefix": r.Proxy.Prefix,
		},
		"logging": gin.H{
			"level":   r.Logging.Level,
			"to_file": r.Logging.ToFile,
			"path":    r.Logging.Path,
		},
	})
}

// queryInt reads a positive integer query parameter.
func queryInt(c *gin.Context, key string, fallback int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
