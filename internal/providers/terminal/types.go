package terminal

import (
	"errors"
	"math"
	"os"
	"os/exec"
	"sync"
	"time"
)

// Default terminal dimensions.
const (
	DefaultCols = 80
	DefaultRows = 24
)

var (
	// ErrSessionNotFound is returned for operations on an unknown connection.
	ErrSessionNotFound = errors.New("terminal session not found")
	// ErrSessionExists is returned when a connection already owns a session.
	ErrSessionExists = errors.New("terminal session already exists")
	// ErrSessionClosed is returned for writes after the shell has gone.
	ErrSessionClosed = errors.New("terminal session closed")
)

// Size is a terminal window size in character cells.
type Size struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

// normalized replaces non-positive dimensions with the defaults and clamps
// the rest to what a window size can carry.
func (s Size) normalized() Size {
	if s.Cols <= 0 {
		s.Cols = DefaultCols
	}
	if s.Rows <= 0 {
		s.Rows = DefaultRows
	}
	s.Cols = min(s.Cols, math.MaxUint16)
	s.Rows = min(s.Rows, math.MaxUint16)
	return s
}

// Session is a shell attached to a pseudo-terminal, owned by one connection.
type Session struct {
	ID         string
	Shell      string
	WorkingDir string
	Cols       int
	Rows       int
	StartedAt  time.Time

	// Process management
	cmd  *exec.Cmd
	ptmx *os.File

	// Lifecycle
	mu       sync.RWMutex
	closed   bool
	killOnce sync.Once
	readDone chan struct{}
	done     chan struct{}
}

// Done is closed once the shell process has exited and been reaped.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Pid returns the shell process id.
func (s *Session) Pid() int {
	if s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

// Info returns the public view of the session.
func (s *Session) Info() SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return SessionInfo{
		ID:         s.ID,
		Shell:      s.Shell,
		WorkingDir: s.WorkingDir,
		Cols:       s.Cols,
		Rows:       s.Rows,
		StartedAt:  s.StartedAt,
		Active:     !s.closed,
	}
}

// SessionInfo is the public representation of a session
type SessionInfo struct {
	ID         string    `json:"id"`
	Shell      string    `json:"shell"`
	WorkingDir string    `json:"working_dir"`
	Cols       int       `json:"cols"`
	Rows       int       `json:"rows"`
	StartedAt  time.Time `json:"started_at"`
	Active     bool      `json:"active"`
}
