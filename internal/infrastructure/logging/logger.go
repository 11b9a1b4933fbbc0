package logging

import (
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileName is the log file written under Config.FileDir.
const FileName = "automata-portal.log"

// Logger wraps zap.Logger with convenience methods.
type Logger struct {
	*zap.Logger
	recent *Recent
}

// Config defines logger configuration.
type Config struct {
	Level       string // "debug", "info", "warn", "error"
	Development bool
	OutputPaths []string
	// FileDir enables a rotating log file in this directory when non-empty.
	FileDir    string
	RecentSize int
}

// DefaultConfig returns production-ready logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:       "info",
		Development: false,
		OutputPaths: []string{"stdout"},
		RecentSize:  500,
	}
}

// DevelopmentConfig returns development logger configuration.
func DevelopmentConfig() Config {
	return Config{
		Level:       "debug",
		Development: true,
		OutputPaths: []string{"stdout"},
		RecentSize:  500,
	}
}

// New creates a new logger with the provided configuration.
func New(cfg Config) (*Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	enabler := zap.NewAtomicLevelAt(level)

	paths := cfg.OutputPaths
	if len(paths) == 0 {
		paths = []string{"stdout"}
	}
	sink, _, err := zap.Open(paths...)
	if err != nil {
		return nil, err
	}

	size := cfg.RecentSize
	if size <= 0 {
		size = DefaultConfig().RecentSize
	}
	recent := NewRecent(size)

	cores := []zapcore.Core{
		zapcore.NewCore(encoder(cfg.Development), sink, enabler),
		newRecentCore(recent, enabler),
	}

	if cfg.FileDir != "" {
		rotator := &lumberjack.Logger{
			Filename:   filepath.Join(cfg.FileDir, FileName),
			MaxSize:    50, // MB
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		// The file always gets JSON, whatever the console format.
		cores = append(cores, zapcore.NewCore(encoder(false), zapcore.AddSync(rotator), enabler))
	}

	opts := []zap.Option{zap.AddCaller()}
	if cfg.Development {
		opts = append(opts, zap.Development(), zap.AddStacktrace(zapcore.WarnLevel))
	} else {
		opts = append(opts, zap.AddStacktrace(zapcore.DPanicLevel))
	}

	return &Logger{
		Logger: zap.New(zapcore.NewTee(cores...), opts...),
		recent: recent,
	}, nil
}

// NewNop returns a logger that discards output but still records recent entries.
func NewNop() *Logger {
	recent := NewRecent(DefaultConfig().RecentSize)
	return &Logger{
		Logger: zap.New(newRecentCore(recent, zapcore.DebugLevel)),
		recent: recent,
	}
}

// Recent returns the in-memory ring of recent entries.
func (l *Logger) Recent() *Recent {
	return l.recent
}

func encoder(development bool) zapcore.Encoder {
	if development {
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(ec)
	}

	// Same keys as the portal's previous JSON log lines.
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "timestamp"
	ec.MessageKey = "message"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewJSONEncoder(ec)
}
