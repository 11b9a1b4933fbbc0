package terminal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"sync"
	"time"

	"github.com/creack/pty"
	"go.uber.org/zap"
)

// drainTimeout bounds how long a finished shell waits for its output to be
// read before the session reports done.
const drainTimeout = time.Second

// Recorder observes session lifecycle.
type Recorder interface {
	TerminalOpened()
	TerminalClosed()
}

// Options configures spawned shells.
type Options struct {
	Shell   string
	HomeDir string
}

// Manager manages terminal sessions, at most one per connection.
type Manager struct {
	shell    string
	homeDir  string
	logger   *zap.Logger
	recorder Recorder

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a new session manager. recorder may be nil.
func NewManager(opts Options, logger *zap.Logger, recorder Recorder) *Manager {
	shell := opts.Shell
	if shell == "" {
		shell = "bash"
	}

	homeDir := opts.HomeDir
	if homeDir == "" {
		homeDir = os.Getenv("HOME")
	}
	if homeDir == "" {
		homeDir = os.TempDir()
	}

	return &Manager{
		shell:    shell,
		homeDir:  homeDir,
		logger:   logger,
		recorder: recorder,
		sessions: make(map[string]*Session),
	}
}

// Start spawns a shell for connID and streams its output to onOutput from a
// dedicated goroutine. onOutput owns the slice it is given.
func (m *Manager) Start(connID string, size Size, onOutput func([]byte)) (*Session, error) {
	size = size.normalized()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[connID]; exists {
		return nil, ErrSessionExists
	}

	cmd := exec.Command(m.shell)
	cmd.Dir = m.homeDir
	// The shell inherits the portal's full environment.
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: uint16(size.Rows),
		Cols: uint16(size.Cols),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start PTY: %w", err)
	}

	session := &Session{
		ID:         connID,
		Shell:      m.shell,
		WorkingDir: m.homeDir,
		Cols:       size.Cols,
		Rows:       size.Rows,
		StartedAt:  time.Now(),
		cmd:        cmd,
		ptmx:       ptmx,
		readDone:   make(chan struct{}),
		done:       make(chan struct{}),
	}
	m.sessions[connID] = session

	if m.recorder != nil {
		m.recorder.TerminalOpened()
	}
	m.logger.Info("terminal session started",
		zap.String("conn_id", connID),
		zap.String("shell", m.shell),
		zap.Int("pid", session.Pid()),
		zap.Int("cols", size.Cols),
		zap.Int("rows", size.Rows),
	)

	go m.readOutput(session, onOutput)
	go m.monitorProcess(session)

	return session, nil
}

// readOutput forwards PTY output until the PTY is closed or the shell exits.
func (m *Manager) readOutput(session *Session, onOutput func([]byte)) {
	defer close(session.readDone)

	buf := make([]byte, 4096)
	for {
		n, err := session.ptmx.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			onOutput(chunk)
		}
		if err != nil {
			// EIO is how Linux reports a hung-up PTY; it is the normal end.
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				m.logger.Debug("terminal read ended", zap.String("conn_id", session.ID), zap.Error(err))
			}
			return
		}
	}
}

// monitorProcess waits for the shell to exit and marks the session done.
func (m *Manager) monitorProcess(session *Session) {
	err := session.cmd.Wait()

	select {
	case <-session.readDone:
	case <-time.After(drainTimeout):
	}

	session.mu.Lock()
	session.closed = true
	session.mu.Unlock()

	m.logger.Info("terminal process exited", zap.String("conn_id", session.ID), zap.Error(err))
	close(session.done)
}

func (m *Manager) get(connID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[connID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Write sends input to a session verbatim.
func (m *Manager) Write(connID string, input []byte) error {
	session, err := m.get(connID)
	if err != nil {
		return err
	}

	session.mu.RLock()
	closed := session.closed
	session.mu.RUnlock()
	if closed {
		return ErrSessionClosed
	}

	_, err = session.ptmx.Write(input)
	return err
}

// Resize changes terminal dimensions
func (m *Manager) Resize(connID string, size Size) error {
	session, err := m.get(connID)
	if err != nil {
		return err
	}
	size = size.normalized()

	session.mu.Lock()
	defer session.mu.Unlock()

	if session.closed {
		return ErrSessionClosed
	}

	session.Cols = size.Cols
	session.Rows = size.Rows

	return pty.Setsize(session.ptmx, &pty.Winsize{
		Rows: uint16(size.Rows),
		Cols: uint16(size.Cols),
	})
}

// Kill terminates the session of connID, closes its PTY and forgets it.
// Killing an unknown or already killed session is a no-op.
func (m *Manager) Kill(connID string) {
	m.mu.Lock()
	session, ok := m.sessions[connID]
	delete(m.sessions, connID)
	m.mu.Unlock()

	if !ok {
		return
	}
	m.terminate(session)
}

func (m *Manager) terminate(session *Session) {
	session.killOnce.Do(func() {
		session.mu.Lock()
		session.closed = true
		session.mu.Unlock()

		if session.cmd.Process != nil {
			if err := session.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				m.logger.Warn("failed to kill terminal process", zap.String("conn_id", session.ID), zap.Error(err))
			}
		}
		_ = session.ptmx.Close()

		if m.recorder != nil {
			m.recorder.TerminalClosed()
		}
		m.logger.Info("terminal session closed", zap.String("conn_id", session.ID))
	})
}

// List returns all live sessions ordered by start time.
func (m *Manager) List() []SessionInfo {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	infos := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].StartedAt.Before(infos[j].StartedAt) })
	return infos
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CloseAll kills every session; used on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		m.terminate(s)
	}
}
