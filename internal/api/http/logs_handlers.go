package http

import (
	"net/http"
	"sort"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// defaultLogLimit is used when /api/logs has no limit parameter.
	defaultLogLimit = 100
	// maxReports caps one batch from the browser.
	maxReports = 100
	// maxReportMessage truncates long browser messages.
	maxReportMessage = 2048
	// reportSource is the only source the dashboard sends.
	reportSource = "ui"
)

// ClientReport is one message the dashboard reports, usually an uncaught error.
type ClientReport struct {
	ID        string         `json:"id"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context"`
	Timestamp string         `json:"timestamp"`
}

// ClientReportBatch is the body of POST /api/logs.
type ClientReportBatch struct {
	Source  string         `json:"source"`
	Entries []ClientReport `json:"entries"`
}

// StreamLogs writes dashboard reports into the server log under the "ui"
// logger, so they show up in GET /api/logs next to server entries.
func (h *Handlers) StreamLogs(c *gin.Context) {
	var batch ClientReportBatch
	if err := c.ShouldBindJSON(&batch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid log request format"})
		return
	}
	switch {
	case batch.Source != reportSource:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid log source"})
		return
	case len(batch.Entries) == 0:
		c.JSON(http.StatusBadRequest, gin.H{"error": "No log entries provided"})
		return
	case len(batch.Entries) > maxReports:
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Too many log entries"})
		return
	}

	logger := h.logger.Named(reportSource).With(
		zap.String("client_ip", c.ClientIP()),
		zap.String("user_agent", c.Request.UserAgent()),
	)
	for _, report := range batch.Entries {
		logReport(logger, report)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"entries_received": len(batch.Entries),
	})
}

func logReport(logger *zap.Logger, report ClientReport) {
	level, err := zapcore.ParseLevel(report.Level)
	if err != nil || level > zapcore.ErrorLevel {
		// Browsers never get to panic or fatal the server log.
		level = zapcore.InfoLevel
	}

	fields := make([]zap.Field, 0, len(report.Context)+2)
	fields = append(fields,
		zap.String("report_id", report.ID),
		zap.String("reported_at", report.Timestamp),
	)
	keys := make([]string, 0, len(report.Context))
	for key := range report.Context {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fields = append(fields, zap.Any(key, report.Context[key]))
	}

	if ce := logger.Check(level, truncate(report.Message, maxReportMessage)); ce != nil {
		ce.Write(fields...)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s + "…"
}

// GetLogs returns recent log entries, newest first. limit is capped at the
// ring capacity; level filters on the exact level name. held is the number
// of entries the ring currently keeps.
func (h *Handlers) GetLogs(c *gin.Context) {
	limit := min(queryInt(c, "limit", defaultLogLimit), h.logs.Cap())

	entries := h.logs.Get(limit, c.Query("level"))
	c.JSON(http.StatusOK, gin.H{
		"logs":     entries,
		"count":    len(entries),
		"held":     h.logs.Len(),
		"capacity": h.logs.Cap(),
	})
}
