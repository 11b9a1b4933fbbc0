package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AutomataNexus/remote-portal/internal/infrastructure/config"
	"github.com/AutomataNexus/remote-portal/internal/infrastructure/logging"
	"github.com/AutomataNexus/remote-portal/internal/infrastructure/monitoring"
	"github.com/AutomataNexus/remote-portal/internal/providers/notify"
	"github.com/AutomataNexus/remote-portal/internal/providers/system"
	"github.com/AutomataNexus/remote-portal/internal/providers/terminal"
	"github.com/AutomataNexus/remote-portal/internal/providers/weather"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockProbe struct{ mock.Mock }

func (m *mockProbe) Collect(ctx context.Context) (*system.Info, error) {
	args := m.Called(ctx)
	info, _ := args.Get(0).(*system.Info)
	return info, args.Error(1)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) Send(ctx context.Context, n notify.Notification) (string, error) {
	args := m.Called(ctx, n)
	return args.String(0), args.Error(1)
}

type staticWeather struct{ report *weather.Report }

func (s staticWeather) Current(context.Context) *weather.Report { return s.report }

type sessionList []terminal.SessionInfo

func (s sessionList) Count() int                   { return len(s) }
func (s sessionList) List() []terminal.SessionInfo { return s }

type fixture struct {
	router   *gin.Engine
	probe    *mockProbe
	notifier *mockNotifier
	logger   *logging.Logger
}

func setup(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fixture{
		probe:    &mockProbe{},
		notifier: &mockNotifier{},
		logger:   logging.NewNop(),
	}
	cfg := config.Default()
	cfg.Auth.APIKey = "secret"
	cfg.Email.APIKey = "re-key"

	h := NewHandlers(Deps{
		Probe:    f.probe,
		Weather:  staticWeather{report: weather.Disabled("Boiler Room")},
		Notifier: f.notifier,
		Sessions: sessionList{
			{ID: "conn-a", Shell: "bash", Cols: 80, Rows: 24, StartedAt: time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC), Active: true},
			{ID: "conn-b", Shell: "bash", Cols: 120, Rows: 40, StartedAt: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC), Active: true},
		},
		Logs:     f.logger.Recent(),
		Config:   cfg,
		Logger:   f.logger.Logger,
	})

	f.router = gin.New()
	f.router.GET("/health", h.Health)
	f.router.GET("/api/system-info", h.SystemInfo)
	f.router.GET("/api/weather", h.Weather)
	f.router.POST("/api/notifications", h.SendNotification)
	f.router.GET("/api/logs", h.GetLogs)
	f.router.POST("/api/logs", h.StreamLogs)
	f.router.GET("/api/config", h.GetConfig)
	f.router.GET("/api/terminals", h.Terminals)
	return f
}

func (f *fixture) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			_ = json.NewEncoder(&buf).Encode(body)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	f := setup(t)

	w := f.do(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(2), body["terminal_sessions"])
	assert.NotContains(t, body, "requests")
}

func TestHealthReportsRequestTotals(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := monitoring.NewMetrics()
	metrics.RecordHTTPRequest("GET", "/api/weather", "200", 0, 10)
	metrics.RecordHTTPRequest("GET", "/api/weather", "429", 0, 10)

	h := NewHandlers(Deps{Sessions: sessionList(nil), Stats: metrics, Logger: zap.NewNop()})
	router := gin.New()
	router.GET("/health", h.Health)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Uptime   *int64              `json:"uptime_seconds"`
		Requests monitoring.Snapshot `json:"requests"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotNil(t, body.Uptime)
	assert.Equal(t, int64(2), body.Requests.TotalRequests)
	assert.Equal(t, int64(1), body.Requests.TotalErrors)
}

func TestSystemInfo(t *testing.T) {
	f := setup(t)
	f.probe.On("Collect", mock.Anything).Return(&system.Info{
		Hostname:   "controller",
		Serial:     "BMS-000123",
		MemTotal:   1024,
		MemUsed:    512,
		MemFree:    512,
		MemPercent: 50,
		CPUTemp:    "N/A",
		CPUUsage:   "3.5",
	}, nil).Once()

	w := f.do(http.MethodGet, "/api/system-info", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var info system.Info
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, 1024, info.MemTotal)
	assert.Equal(t, 50, info.MemPercent)
	assert.Equal(t, "3.5", info.CPUUsage)
	f.probe.AssertExpectations(t)
}

func TestSystemInfoFailure(t *testing.T) {
	f := setup(t)
	f.probe.On("Collect", mock.Anything).Return(nil, system.ErrProbeFailed).Once()

	w := f.do(http.MethodGet, "/api/system-info", nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"system probe failed"}`, w.Body.String())
}

func TestWeather(t *testing.T) {
	f := setup(t)

	w := f.do(http.MethodGet, "/api/weather", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"temperature":72,"condition":"Weather Disabled","humidity":0,"location":"Boiler Room","icon":"01d"}`, w.Body.String())
}

func TestSendNotification(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		sendID     string
		sendErr    error
		expectSend bool
		wantStatus int
		wantBody   string
	}{
		{
			name:       "sent",
			body:       notify.Notification{Subject: "High temp", Message: "95F", Type: "warning"},
			sendID:     "msg_1",
			expectSend: true,
			wantStatus: http.StatusOK,
			wantBody:   `{"success":true,"messageId":"msg_1"}`,
		},
		{
			name:       "provider failure",
			body:       notify.Notification{Subject: "High temp", Message: "95F"},
			sendErr:    notify.ErrProviderRejected,
			expectSend: true,
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"Failed to send notification"}`,
		},
		{
			name:       "missing fields",
			body:       notify.Notification{Type: "info"},
			sendErr:    notify.ErrInvalidNotification,
			expectSend: true,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"subject and message are required"}`,
		},
		{
			name:       "malformed json",
			body:       `{"subject":`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"Invalid notification request"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			if tt.expectSend {
				f.notifier.On("Send", mock.Anything, mock.AnythingOfType("notify.Notification")).
					Return(tt.sendID, tt.sendErr).Once()
			}

			w := f.do(http.MethodPost, "/api/notifications", tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
			if tt.expectSend {
				f.notifier.AssertExpectations(t)
			} else {
				f.notifier.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestTerminals(t *testing.T) {
	f := setup(t)

	w := f.do(http.MethodGet, "/api/terminals", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Sessions []terminal.SessionInfo `json:"sessions"`
		Count    int                    `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	require.Len(t, body.Sessions, 2)
	assert.Equal(t, "conn-a", body.Sessions[0].ID)
	assert.Equal(t, 120, body.Sessions[1].Cols)
}

func TestLogs(t *testing.T) {
	f := setup(t)
	f.logger.Info("first")
	f.logger.Warn("second")
	f.logger.Info("third")

	w := f.do(http.MethodGet, "/api/logs?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Logs     []logging.Entry `json:"logs"`
		Count    int             `json:"count"`
		Held     int             `json:"held"`
		Capacity int             `json:"capacity"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, 2, body.Count)
	assert.Equal(t, 3, body.Held)
	assert.Equal(t, f.logger.Recent().Cap(), body.Capacity)
	assert.Equal(t, "third", body.Logs[0].Message)
	assert.Equal(t, "second", body.Logs[1].Message)

	w = f.do(http.MethodGet, "/api/logs?level=warn", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "second", body.Logs[0].Message)
}

func TestStreamLogs(t *testing.T) {
	f := setup(t)

	w := f.do(http.MethodPost, "/api/logs", ClientReportBatch{
		Source: "ui",
		Entries: []ClientReport{
			{ID: "1", Level: "error", Message: "chart failed", Context: map[string]any{"view": "dashboard"}},
			{ID: "2", Level: "fatal", Message: "not fatal here"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	entries := f.logger.Recent().Get(1, "error")
	require.Len(t, entries, 1)
	assert.Equal(t, "chart failed", entries[0].Message)
	assert.Equal(t, "ui", entries[0].Logger)
	assert.Equal(t, "dashboard", entries[0].Fields["view"])
	assert.Equal(t, "1", entries[0].Fields["report_id"])

	demoted := f.logger.Recent().Get(1, "info")
	require.Len(t, demoted, 1)
	assert.Equal(t, "not fatal here", demoted[0].Message)

	w = f.do(http.MethodPost, "/api/logs", ClientReportBatch{Source: "server", Entries: []ClientReport{{}}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, "/api/logs", ClientReportBatch{Source: "ui"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, "/api/logs", ClientReportBatch{Source: "ui", Entries: make([]ClientReport, maxReports+1)})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abc…", truncate("abcdef", 3))
	// Never splits a multi-byte rune
	assert.Equal(t, "a…", truncate("aé", 2))
}

func TestGetConfigRedactsSecrets(t *testing.T) {
	f := setup(t)

	w := f.do(http.MethodGet, "/api/config", nil)
	require.Equal(t, http.StatusOK, w.Code)

	assert.NotContains(t, w.Body.String(), "secret")
	assert.NotContains(t, w.Body.String(), "re-key")

	var body map[string]map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "********", body["auth"]["api_key"])
	assert.Equal(t, "http://localhost:1880", body["proxy"]["target"])
	assert.Equal(t, "15m0s", body["rate_limit"]["window"])
}

func TestNewHandlersWithNopLogger(t *testing.T) {
	h := NewHandlers(Deps{Logger: zap.NewNop(), Sessions: sessionList(nil)})
	assert.NotNil(t, h)
}
