package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/AutomataNexus/remote-portal/internal/api/middleware"
	"github.com/AutomataNexus/remote-portal/internal/providers/terminal"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 1 << 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS_ORIGIN governs browsers; the socket follows the portal
	},
}

// Sessions is the terminal session store used by the handler.
type Sessions interface {
	Start(connID string, size terminal.Size, onOutput func([]byte)) (*terminal.Session, error)
	Write(connID string, input []byte) error
	Resize(connID string, size terminal.Size) error
	Kill(connID string)
}

// EventRecorder counts socket events.
type EventRecorder interface {
	RecordWSMessage(direction, event string)
}

// Config configures the terminal socket.
type Config struct {
	Serial string
	// APIKey is checked when RequireKey is set.
	APIKey     string
	RequireKey bool
}

// Handler bridges terminal sockets to PTY sessions.
type Handler struct {
	sessions Sessions
	cfg      Config
	logger   *zap.Logger
	events   EventRecorder
}

// NewHandler creates a terminal socket handler. events may be nil.
func NewHandler(sessions Sessions, cfg Config, logger *zap.Logger, events EventRecorder) *Handler {
	return &Handler{
		sessions: sessions,
		cfg:      cfg,
		logger:   logger,
		events:   events,
	}
}

// conn serializes writes to one socket.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) send(event string, data any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(outbound{Event: event, Data: data})
}

// HandleConnection upgrades the request and runs the terminal protocol until
// the socket closes. The connection's shell never outlives this call.
func (h *Handler) HandleConnection(c *gin.Context) {
	if h.cfg.RequireKey {
		key := c.Query("key")
		if key == "" {
			key = c.GetHeader(middleware.APIKeyHeader)
		}
		if !middleware.KeyMatches(h.cfg.APIKey, key) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("terminal socket upgrade failed", zap.Error(err))
		return
	}

	connID := uuid.NewString()
	client := &conn{ws: ws}
	log := h.logger.With(zap.String("conn_id", connID))
	log.Info("terminal connection established", zap.String("client_ip", c.ClientIP()))

	closed := make(chan struct{})
	defer func() {
		close(closed)
		h.sessions.Kill(connID)
		_ = ws.Close()
		log.Info("terminal disconnected")
	}()

	ws.SetReadLimit(maxMessageSize)

	started := false
	for {
		var msg Message
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("terminal socket read error", zap.Error(err))
			}
			return
		}
		h.record("in", msg.Event)

		switch msg.Event {
		case EventInit:
			if started {
				log.Debug("ignoring repeated terminal-init")
				continue
			}
			session, err := h.start(connID, client, msg.Data)
			if err != nil {
				log.Error("failed to start terminal", zap.Error(err))
				_ = client.send(EventError, "failed to start terminal")
				h.record("out", EventError)
				return
			}
			started = true

			// A shell that exits on its own ends the connection.
			go func() {
				select {
				case <-session.Done():
					_ = ws.Close()
				case <-closed:
				}
			}()

		case EventInput:
			if !started {
				continue
			}
			var input string
			if err := json.Unmarshal(msg.Data, &input); err != nil {
				log.Debug("malformed terminal-input", zap.Error(err))
				continue
			}
			if err := h.sessions.Write(connID, []byte(input)); err != nil {
				log.Debug("terminal write failed", zap.Error(err))
			}

		case EventResize:
			if !started {
				continue
			}
			var size terminal.Size
			if err := json.Unmarshal(msg.Data, &size); err != nil {
				log.Debug("malformed terminal-resize", zap.Error(err))
				continue
			}
			if err := h.sessions.Resize(connID, size); err != nil {
				log.Debug("terminal resize failed", zap.Error(err))
			}

		default:
			log.Debug("unknown terminal event", zap.String("event", msg.Event))
		}
	}
}

func (h *Handler) start(connID string, client *conn, data json.RawMessage) (*terminal.Session, error) {
	var size terminal.Size
	if len(data) > 0 {
		// Malformed sizes fall back to the defaults.
		_ = json.Unmarshal(data, &size)
	}

	// Shell output waits until the banner is on the socket.
	bannerSent := make(chan struct{})
	carry := &utf8Carry{}
	session, err := h.sessions.Start(connID, size, func(chunk []byte) {
		<-bannerSent
		text := carry.split(chunk)
		if text == "" {
			return
		}
		if err := client.send(EventOutput, text); err != nil {
			h.logger.Debug("terminal output dropped", zap.String("conn_id", connID), zap.Error(err))
			return
		}
		h.record("out", EventOutput)
	})
	if err != nil {
		return nil, err
	}

	for _, line := range terminal.Banner(h.cfg.Serial) {
		if err := client.send(EventOutput, line); err != nil {
			break
		}
		h.record("out", EventOutput)
	}
	close(bannerSent)
	return session, nil
}

func (h *Handler) record(direction, event string) {
	if h.events == nil {
		return
	}
	switch event {
	case EventInit, EventInput, EventResize, EventOutput, EventError:
	default:
		event = "unknown"
	}
	h.events.RecordWSMessage(direction, event)
}
