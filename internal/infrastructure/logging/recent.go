package logging

import (
	"sync"
	"time"

	"go.uber.org/zap/zapcore"
)

// Entry is a log record kept in memory for the /api/logs endpoint.
type Entry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Logger    string                 `json:"logger,omitempty"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Recent is a thread-safe circular buffer of log entries.
type Recent struct {
	entries []Entry
	head    int
	size    int
	maxSize int
	mu      sync.RWMutex
}

// NewRecent creates a ring holding at most maxSize entries.
func NewRecent(maxSize int) *Recent {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &Recent{
		entries: make([]Entry, maxSize),
		maxSize: maxSize,
	}
}

// Add inserts an entry, overwriting the oldest when full.
func (r *Recent) Add(entry Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[r.head] = entry
	r.head = (r.head + 1) % r.maxSize
	if r.size < r.maxSize {
		r.size++
	}
}

// Get returns up to limit entries, newest first, optionally filtered by level.
// A non-positive limit returns everything held.
func (r *Recent) Get(limit int, level string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 || limit > r.size {
		limit = r.size
	}

	result := make([]Entry, 0, limit)
	for i := 0; i < r.size && len(result) < limit; i++ {
		idx := (r.head - 1 - i + r.maxSize) % r.maxSize
		entry := r.entries[idx]
		if level == "" || entry.Level == level {
			result = append(result, entry)
		}
	}
	return result
}

// Len returns the number of entries held.
func (r *Recent) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Cap returns the ring capacity.
func (r *Recent) Cap() int {
	return r.maxSize
}

// recentCore is a zapcore.Core feeding a Recent ring.
type recentCore struct {
	zapcore.LevelEnabler
	ring   *Recent
	fields []zapcore.Field
}

func newRecentCore(ring *Recent, enabler zapcore.LevelEnabler) zapcore.Core {
	return &recentCore{LevelEnabler: enabler, ring: ring}
}

func (c *recentCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &recentCore{LevelEnabler: c.LevelEnabler, ring: c.ring, fields: merged}
}

func (c *recentCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *recentCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	var encoded map[string]interface{}
	if len(c.fields)+len(fields) > 0 {
		enc := zapcore.NewMapObjectEncoder()
		for _, f := range c.fields {
			f.AddTo(enc)
		}
		for _, f := range fields {
			f.AddTo(enc)
		}
		encoded = enc.Fields
	}

	c.ring.Add(Entry{
		Timestamp: ent.Time,
		Level:     ent.Level.String(),
		Logger:    ent.LoggerName,
		Message:   ent.Message,
		Fields:    encoded,
	})
	return nil
}

func (c *recentCore) Sync() error {
	return nil
}
